package enums

import "fmt"

// AuditOperation names the operations recorded in the audit trail.
type AuditOperation string

const (
	AuditOperationInsert AuditOperation = "INSERT"
	AuditOperationUpdate AuditOperation = "UPDATE"
	AuditOperationDelete AuditOperation = "DELETE"
	AuditOperationLogin  AuditOperation = "LOGIN"
	AuditOperationLogout AuditOperation = "LOGOUT"
)

var validAuditOperations = []AuditOperation{
	AuditOperationInsert,
	AuditOperationUpdate,
	AuditOperationDelete,
	AuditOperationLogin,
	AuditOperationLogout,
}

// String implements fmt.Stringer.
func (a AuditOperation) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AuditOperation.
func (a AuditOperation) IsValid() bool {
	for _, candidate := range validAuditOperations {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAuditOperation converts raw input into an AuditOperation.
func ParseAuditOperation(value string) (AuditOperation, error) {
	for _, candidate := range validAuditOperations {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit operation %q", value)
}
