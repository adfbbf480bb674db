package enums

import "fmt"

// AlertType classifies generated alerts.
type AlertType string

const (
	AlertTypeOverdue     AlertType = "OVERDUE"
	AlertTypeLost        AlertType = "LOST"
	AlertTypeReturn      AlertType = "RETURN"
	AlertTypeReservation AlertType = "RESERVATION"
)

var validAlertTypes = []AlertType{
	AlertTypeOverdue,
	AlertTypeLost,
	AlertTypeReturn,
	AlertTypeReservation,
}

// String implements fmt.Stringer.
func (a AlertType) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AlertType.
func (a AlertType) IsValid() bool {
	for _, candidate := range validAlertTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAlertType converts raw input into an AlertType.
func ParseAlertType(value string) (AlertType, error) {
	for _, candidate := range validAlertTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid alert type %q", value)
}
