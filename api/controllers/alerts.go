package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/keyward/keyward-backend/api/responses"
	"github.com/keyward/keyward-backend/api/validators"
	alertsvc "github.com/keyward/keyward-backend/internal/alerts"
	"github.com/keyward/keyward-backend/pkg/enums"
	pkgerrors "github.com/keyward/keyward-backend/pkg/errors"
	"github.com/keyward/keyward-backend/pkg/logger"
)

// ListAlerts returns a cursor page of alerts, newest first.
func ListAlerts(svc alertsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := alertsvc.ListParams{
			UnreadOnly: strings.EqualFold(r.URL.Query().Get("unread"), "true"),
			Params:     page,
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
			alertType, err := enums.ParseAlertType(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type filter"))
				return
			}
			params.Type = &alertType
		}

		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// MarkAlertRead flags an alert as handled.
func MarkAlertRead(svc alertsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.MarkRead(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteNoContent(w)
	}
}
