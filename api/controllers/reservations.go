package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/keyward/keyward-backend/api/responses"
	"github.com/keyward/keyward-backend/api/validators"
	reservationsvc "github.com/keyward/keyward-backend/internal/reservations"
	"github.com/keyward/keyward-backend/pkg/enums"
	pkgerrors "github.com/keyward/keyward-backend/pkg/errors"
	"github.com/keyward/keyward-backend/pkg/logger"
)

type createReservationRequest struct {
	KeyID    string    `json:"key_id" validate:"required,uuid"`
	PersonID string    `json:"person_id" validate:"required,uuid"`
	StartsAt time.Time `json:"starts_at" validate:"required"`
	EndsAt   time.Time `json:"ends_at" validate:"required"`
}

// CreateReservation books a key for a future window.
func CreateReservation(svc reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createReservationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		keyID, err := uuid.Parse(strings.TrimSpace(body.KeyID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid key id"))
			return
		}
		personID, err := uuid.Parse(strings.TrimSpace(body.PersonID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid person id"))
			return
		}

		reservation, err := svc.Create(r.Context(), actorID, reservationsvc.CreateInput{
			KeyID:    keyID,
			PersonID: personID,
			StartsAt: body.StartsAt,
			EndsAt:   body.EndsAt,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, reservation)
	}
}

// GetReservation returns one reservation.
func GetReservation(svc reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reservation, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, reservation)
	}
}

// ListReservations returns a cursor page of reservations with optional filters.
func ListReservations(svc reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := reservationsvc.ListParams{Params: page}

		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseReservationStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			params.Status = &status
		}

		if params.KeyID, err = validators.ParseQueryUUID(r, "key_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if params.PersonID, err = validators.ParseQueryUUID(r, "person_id"); err != nil {
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

func reservationTransition(
	logg *logger.Logger,
	apply func(r *http.Request, actorID, id uuid.UUID) (any, error),
) http.HandlerFunc {
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

		result, err := apply(r, actorID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// ConfirmReservation moves a pending reservation to confirmed.
func ConfirmReservation(svc reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return reservationTransition(logg, func(r *http.Request, actorID, id uuid.UUID) (any, error) {
		return svc.Confirm(r.Context(), actorID, id)
	})
}

// UseReservation marks a confirmed reservation as used.
func UseReservation(svc reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return reservationTransition(logg, func(r *http.Request, actorID, id uuid.UUID) (any, error) {
		return svc.MarkUsed(r.Context(), actorID, id)
	})
}

// CancelReservation voids an open reservation.
func CancelReservation(svc reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return reservationTransition(logg, func(r *http.Request, actorID, id uuid.UUID) (any, error) {
		return svc.Cancel(r.Context(), actorID, id)
	})
}
