// Package schema checks CII documents against the EN16931 XSD.
//
// The check is optional: when no validator binary or schema file is
// available the outcome is StatusUnavailable, which callers report but never
// treat as a failure.
package schema

import "context"

// Status is the outcome of a schema check
type Status string

const (
	StatusPassed      Status = "passed"
	StatusFailed      Status = "failed"
	StatusUnavailable Status = "unavailable"
)

// UnavailableMessage is reported when the check could not run
const UnavailableMessage = "XSD non disponible, validation ignorée"

// Result carries the status and the diagnostics of one check
type Result struct {
	Status   Status   `json:"status"`
	Messages []string `json:"errors"`
}

// Passed returns true only when the document was checked and conforms
func (r Result) Passed() bool {
	return r.Status == StatusPassed
}

// Failed returns true when the document was checked and rejected
func (r Result) Failed() bool {
	return r.Status == StatusFailed
}

// Validator checks XML bytes against a schema
type Validator interface {
	Validate(ctx context.Context, xml []byte) Result
}

// PassedResult is a successful check
func PassedResult() Result {
	return Result{Status: StatusPassed, Messages: []string{}}
}

// FailedResult is a rejected document with its diagnostics
func FailedResult(messages []string) Result {
	if messages == nil {
		messages = []string{}
	}
	return Result{Status: StatusFailed, Messages: messages}
}

// UnavailableResult reports that no check was performed
func UnavailableResult() Result {
	return Result{Status: StatusUnavailable, Messages: []string{UnavailableMessage}}
}

type unavailable struct{}

// Unavailable returns a validator that never checks anything. It is the
// default when no XSD is configured.
func Unavailable() Validator {
	return unavailable{}
}

func (unavailable) Validate(context.Context, []byte) Result {
	return UnavailableResult()
}
