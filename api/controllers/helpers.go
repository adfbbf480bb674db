package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/keyward/keyward-backend/api/middleware"
	"github.com/keyward/keyward-backend/api/validators"
	pkgerrors "github.com/keyward/keyward-backend/pkg/errors"
	pkgpagination "github.com/keyward/keyward-backend/pkg/pagination"
)

func actorFromContext(ctx context.Context) (uuid.UUID, error) {
	id := middleware.ActorIDFromContext(ctx)
	if id == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return id, nil
}

func pageParams(r *http.Request) (pkgpagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pkgpagination.DefaultLimit, 1, pkgpagination.MaxLimit)
	if err != nil {
		return pkgpagination.Params{}, err
	}
	return pkgpagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}
