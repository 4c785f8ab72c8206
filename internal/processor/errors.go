package processor

import (
	"fmt"
	"strings"
)

// SchemaMessage is the headline of a schema rejection
const SchemaMessage = "XML non conforme EN16931"

// SchemaError reports that the generated XML failed the XSD check. No
// document is produced.
type SchemaError struct {
	Messages []string
}

func (e *SchemaError) Error() string {
	if len(e.Messages) == 0 {
		return SchemaMessage
	}
	return fmt.Sprintf("%s: %s", SchemaMessage, strings.Join(e.Messages, "; "))
}

// NewSchemaError creates a new schema error
func NewSchemaError(messages []string) *SchemaError {
	return &SchemaError{Messages: messages}
}
