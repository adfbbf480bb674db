package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/keyward/keyward-backend/api/responses"
	"github.com/keyward/keyward-backend/api/validators"
	facilitysvc "github.com/keyward/keyward-backend/internal/facilities"
	"github.com/keyward/keyward-backend/pkg/enums"
	pkgerrors "github.com/keyward/keyward-backend/pkg/errors"
	"github.com/keyward/keyward-backend/pkg/logger"
)

type facilityRequest struct {
	Code     string  `json:"code" validate:"required,max=20"`
	Name     string  `json:"name" validate:"required,max=100"`
	Location *string `json:"location,omitempty" validate:"omitempty,max=200"`
	TypeID   string  `json:"type_id" validate:"required,uuid"`
	Status   string  `json:"status,omitempty"`
}

type facilityTypeRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

func (b facilityRequest) toInput() (facilitysvc.Input, error) {
	typeID, err := uuid.Parse(strings.TrimSpace(b.TypeID))
	if err != nil {
		return facilitysvc.Input{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type id")
	}

	status := enums.RecordStatusActive
	if raw := strings.TrimSpace(b.Status); raw != "" {
		parsed, err := enums.ParseRecordStatus(raw)
		if err != nil {
			return facilitysvc.Input{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		status = parsed
	}

	return facilitysvc.Input{
		Code:     b.Code,
		Name:     b.Name,
		Location: b.Location,
		TypeID:   typeID,
		Status:   status,
	}, nil
}

// ListFacilities returns a cursor page of facilities with optional filters.
func ListFacilities(svc facilitysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := facilitysvc.ListParams{
			Search: validators.SanitizeString(r.URL.Query().Get("search"), 100),
			Params: page,
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseRecordStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			params.Status = &status
		}

		if params.TypeID, err = validators.ParseQueryUUID(r, "type_id"); err != nil {
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

// GetFacility returns one facility.
func GetFacility(svc facilitysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		facility, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, facility)
	}
}

// CreateFacility registers a new facility.
func CreateFacility(svc facilitysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body facilityRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := body.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		facility, err := svc.Create(r.Context(), actorID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, facility)
	}
}

// UpdateFacility changes the mutable facility fields.
func UpdateFacility(svc facilitysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body facilityRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := body.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		facility, err := svc.Update(r.Context(), actorID, id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, facility)
	}
}

// DeleteFacility removes a facility with no keys attached.
func DeleteFacility(svc facilitysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), actorID, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteNoContent(w)
	}
}

// ListFacilityTypes returns the full catalog of facility types.
func ListFacilityTypes(svc facilitysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		types, err := svc.ListTypes(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, types)
	}
}

// CreateFacilityType adds a facility type to the catalog.
func CreateFacilityType(svc facilitysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body facilityTypeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.CreateType(r.Context(), actorID, body.Name)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}
