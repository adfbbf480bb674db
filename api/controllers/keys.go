package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/keyward/keyward-backend/api/responses"
	"github.com/keyward/keyward-backend/api/validators"
	keysvc "github.com/keyward/keyward-backend/internal/keys"
	"github.com/keyward/keyward-backend/pkg/enums"
	pkgerrors "github.com/keyward/keyward-backend/pkg/errors"
	"github.com/keyward/keyward-backend/pkg/logger"
)

type keyRequest struct {
	Code       string  `json:"code" validate:"required,max=50"`
	NumCopies  int     `json:"num_copies" validate:"required,min=1"`
	FacilityID string  `json:"facility_id" validate:"required,uuid"`
	IsMaster   bool    `json:"is_master"`
	Notes      *string `json:"notes,omitempty" validate:"omitempty,max=500"`
}

type keyStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type keyAuthorizeRequest struct {
	PersonID string `json:"person_id" validate:"required,uuid"`
}

// ListKeys returns a cursor page of keys with optional filters.
func ListKeys(svc keysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := keysvc.ListParams{
			Search: validators.SanitizeString(r.URL.Query().Get("search"), 100),
			Params: page,
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseKeyStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			params.Status = &status
		}

		facilityID, err := validators.ParseQueryUUID(r, "facility_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.FacilityID = facilityID

		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// GetKey returns one key with its facility, recent movements and authorizations.
func GetKey(svc keysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, detail)
	}
}

// CreateKey registers a new key in available state.
func CreateKey(svc keysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body keyRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := body.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		key, err := svc.Create(r.Context(), actorID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, key)
	}
}

// UpdateKey changes the mutable key fields. Status moves elsewhere.
func UpdateKey(svc keysvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		var body keyRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := body.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		key, err := svc.Update(r.Context(), actorID, id, keysvc.UpdateInput(input))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, key)
	}
}

// ChangeKeyStatus toggles a key between available and inactive.
func ChangeKeyStatus(svc keysvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		var body keyStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		target, err := enums.ParseKeyStatus(strings.TrimSpace(body.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		key, err := svc.ChangeStatus(r.Context(), actorID, id, target)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, key)
	}
}

// DeleteKey removes a key that has no history.
func DeleteKey(svc keysvc.Service, logg *logger.Logger) http.HandlerFunc {
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

// AuthorizeKeyPerson grants a person standing authorization for a key.
func AuthorizeKeyPerson(svc keysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		keyID, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body keyAuthorizeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		personID, err := uuid.Parse(body.PersonID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid person id"))
			return
		}

		if err := svc.Authorize(r.Context(), actorID, keyID, personID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]string{"status": "authorized"})
	}
}

// RevokeKeyPerson removes a person's authorization for a key.
func RevokeKeyPerson(svc keysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		keyID, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		personID, err := validators.ParsePathUUID(chi.URLParam(r, "personID"), "personID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.RevokeAuthorization(r.Context(), actorID, keyID, personID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteNoContent(w)
	}
}

func (b keyRequest) toInput() (keysvc.CreateInput, error) {
	facilityID, err := uuid.Parse(strings.TrimSpace(b.FacilityID))
	if err != nil {
		return keysvc.CreateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid facility id")
	}
	return keysvc.CreateInput{
		Code:       b.Code,
		NumCopies:  b.NumCopies,
		FacilityID: facilityID,
		IsMaster:   b.IsMaster,
		Notes:      b.Notes,
	}, nil
}
