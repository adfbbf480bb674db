package enums

import "fmt"

// ReservationStatus tracks the lifecycle of a key reservation.
type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "P"
	ReservationStatusConfirmed ReservationStatus = "C"
	ReservationStatusUsed      ReservationStatus = "U"
	ReservationStatusCanceled  ReservationStatus = "X"
)

var validReservationStatuses = []ReservationStatus{
	ReservationStatusPending,
	ReservationStatusConfirmed,
	ReservationStatusUsed,
	ReservationStatusCanceled,
}

// String implements fmt.Stringer.
func (r ReservationStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReservationStatus.
func (r ReservationStatus) IsValid() bool {
	for _, candidate := range validReservationStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsOpen reports whether the reservation still blocks the key (pending or confirmed).
func (r ReservationStatus) IsOpen() bool {
	return r == ReservationStatusPending || r == ReservationStatusConfirmed
}

// ParseReservationStatus converts raw input into a ReservationStatus.
func ParseReservationStatus(value string) (ReservationStatus, error) {
	for _, candidate := range validReservationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reservation status %q", value)
}
