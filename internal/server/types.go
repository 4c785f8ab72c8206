package server

import (
	"time"
)

// HealthResponse is the response for the health endpoint
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ValidateXMLResponse is the response for the validate-xml endpoint
type ValidateXMLResponse struct {
	Valid      bool     `json:"valid"`
	Status     string   `json:"status"`
	Errors     []string `json:"errors"`
	XMLPreview string   `json:"xml_preview"`
}

// InvoiceFile describes a stored document
type InvoiceFile struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// ListResponse is the response for the invoice listing endpoint
type ListResponse struct {
	Invoices []InvoiceFile `json:"invoices"`
}

// ErrorResponse is the standard error response
type ErrorResponse struct {
	Error   string   `json:"error"`
	Field   string   `json:"field,omitempty"`
	Code    string   `json:"code,omitempty"`
	Details string   `json:"details,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// SchemaErrorResponse is returned when the generated XML fails the schema check
type SchemaErrorResponse struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}
