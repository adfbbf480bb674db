package enums

import "fmt"

// KeyStatus tracks the lifecycle of a physical key.
type KeyStatus string

const (
	KeyStatusAvailable KeyStatus = "D"
	KeyStatusLoaned    KeyStatus = "P"
	KeyStatusReserved  KeyStatus = "R"
	KeyStatusInactive  KeyStatus = "I"
)

var validKeyStatuses = []KeyStatus{
	KeyStatusAvailable,
	KeyStatusLoaned,
	KeyStatusReserved,
	KeyStatusInactive,
}

// String implements fmt.Stringer.
func (k KeyStatus) String() string {
	return string(k)
}

// IsValid reports whether the value is a known KeyStatus.
func (k KeyStatus) IsValid() bool {
	for _, candidate := range validKeyStatuses {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseKeyStatus converts raw input into a KeyStatus.
func ParseKeyStatus(value string) (KeyStatus, error) {
	for _, candidate := range validKeyStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid key status %q", value)
}
