package app

import "fmt"

// DomainError is a document operation failure that already knows its
// HTTP shape: duplicate client names map to 409, stale revisions to
// 409, unreachable stores to 502 and so on. mapError passes it through
// unchanged; any other error becomes a generic 500.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}
