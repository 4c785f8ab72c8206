package model

import (
	"fmt"
	"strconv"
)

// StructuralError reports input that cannot be turned into an invoice:
// a missing required field, a mistyped value or an empty line list.
type StructuralError struct {
	Field   string
	Message string
	Cause   error
}

func (e *StructuralError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid input on %s: %s (%v)", e.Field, e.Message, e.Cause)
	}
	return fmt.Sprintf("invalid input on %s: %s", e.Field, e.Message)
}

func (e *StructuralError) Unwrap() error {
	return e.Cause
}

// NewStructuralError creates a new structural error
func NewStructuralError(field, message string, cause error) *StructuralError {
	return &StructuralError{
		Field:   field,
		Message: message,
		Cause:   cause,
	}
}

func linePath(i int, field string) string {
	return "lines[" + strconv.Itoa(i) + "]." + field
}
