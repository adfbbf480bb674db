package enums

import "fmt"

// LoanStatus tracks the lifecycle of a key loan.
type LoanStatus string

const (
	LoanStatusActive   LoanStatus = "A"
	LoanStatusReturned LoanStatus = "D"
	LoanStatusOverdue  LoanStatus = "V"
	LoanStatusCanceled LoanStatus = "C"
)

var validLoanStatuses = []LoanStatus{
	LoanStatusActive,
	LoanStatusReturned,
	LoanStatusOverdue,
	LoanStatusCanceled,
}

// String implements fmt.Stringer.
func (l LoanStatus) String() string {
	return string(l)
}

// IsValid reports whether the value is a known LoanStatus.
func (l LoanStatus) IsValid() bool {
	for _, candidate := range validLoanStatuses {
		if candidate == l {
			return true
		}
	}
	return false
}

// IsClosed reports whether the loan has reached a terminal state.
func (l LoanStatus) IsClosed() bool {
	return l == LoanStatusReturned || l == LoanStatusOverdue || l == LoanStatusCanceled
}

// ParseLoanStatus converts raw input into a LoanStatus.
func ParseLoanStatus(value string) (LoanStatus, error) {
	for _, candidate := range validLoanStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid loan status %q", value)
}
