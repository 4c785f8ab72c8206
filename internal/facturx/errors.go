package facturx

import "fmt"

// Error codes for packaging failures
const (
	ErrCodeInvalidPDF     = "INVALID_PDF"
	ErrCodeSchemaRejected = "SCHEMA_REJECTED"
	ErrCodeAttachFailed   = "ATTACH_FAILED"
)

// PackagingError reports that the page bytes and the XML could not be
// combined into a Factur-X document. It happens after the XML was produced
// and is distinct from business-rule violations.
type PackagingError struct {
	Code     string
	Message  string
	Messages []string
	Cause    error
}

func (e *PackagingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *PackagingError) Unwrap() error {
	return e.Cause
}

// NewPackagingError creates a new packaging error
func NewPackagingError(code, message string, cause error) *PackagingError {
	return &PackagingError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ErrInvalidPDF returns error when the page bytes are not a readable PDF
func ErrInvalidPDF(cause error) *PackagingError {
	return NewPackagingError(ErrCodeInvalidPDF, "page content is not a valid PDF", cause)
}

// ErrSchemaRejected returns error when the XML fails the packager's schema check
func ErrSchemaRejected(messages []string) *PackagingError {
	e := NewPackagingError(ErrCodeSchemaRejected, "XML rejected by schema check", nil)
	e.Messages = messages
	return e
}

// ErrAttachFailed returns error when the XML could not be embedded
func ErrAttachFailed(cause error) *PackagingError {
	return NewPackagingError(ErrCodeAttachFailed, "failed to embed XML attachment", cause)
}
