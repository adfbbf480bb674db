package controllers

import (
	"net/http"
	"strings"

	"github.com/keyward/keyward-backend/api/responses"
	"github.com/keyward/keyward-backend/api/validators"
	auditsvc "github.com/keyward/keyward-backend/internal/audit"
	"github.com/keyward/keyward-backend/pkg/enums"
	pkgerrors "github.com/keyward/keyward-backend/pkg/errors"
	"github.com/keyward/keyward-backend/pkg/logger"
)

// ListAuditLogs returns a cursor page of audit entries with optional filters.
func ListAuditLogs(svc auditsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := auditsvc.ListParams{
			Table:  validators.SanitizeString(r.URL.Query().Get("table"), 63),
			Params: page,
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("operation")); raw != "" {
			operation, err := enums.ParseAuditOperation(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid operation filter"))
				return
			}
			params.Operation = &operation
		}

		if params.UserID, err = validators.ParseQueryUUID(r, "user_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
