// Package facturx provides a public API for producing Factur-X invoices.
//
// It exposes the invoice model, the dry run and the generation pipeline.
//
// Example usage:
//
//	inv, err := facturx.DecodeInvoice(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	report := facturx.DryRun(inv)
//	if !report.Valid {
//	    log.Fatal(report.Errors)
//	}
//	doc, err := facturx.NewDefaultGenerator().Generate(ctx, inv)
package facturx

import (
	"github.com/rezonia/facturx-engine/internal/cii"
	packaging "github.com/rezonia/facturx-engine/internal/facturx"
	"github.com/rezonia/facturx-engine/internal/model"
	"github.com/rezonia/facturx-engine/internal/processor"
	"github.com/rezonia/facturx-engine/internal/schema"
	"github.com/rezonia/facturx-engine/internal/validation"
)

// Re-export core types for public API
type (
	Invoice      = model.Invoice
	CreditNote   = model.CreditNote
	InvoiceLine  = model.InvoiceLine
	Party        = model.Party
	Address      = model.Address
	DocumentType = model.DocumentType
	VATGroup     = cii.VATGroup
	Report       = validation.Report
	Totals       = validation.Totals
	SchemaResult = schema.Result
)

// Re-export document types
const (
	DocumentTypeInvoice    = model.DocumentTypeInvoice
	DocumentTypeCreditNote = model.DocumentTypeCreditNote
)

// Re-export error types
type (
	StructuralError = model.StructuralError
	SchemaError     = processor.SchemaError
	PackagingError  = packaging.PackagingError
)

// ErrSerialization marks a defect in the XML serializer
var ErrSerialization = cii.ErrSerialization

// NewInvoice applies defaults and checks the structure of an invoice
func NewInvoice(in Invoice) (*Invoice, error) {
	return model.NewInvoice(in)
}

// NewCreditNote builds a credit note
func NewCreditNote(in CreditNote) (*CreditNote, error) {
	return model.NewCreditNote(in)
}

// DecodeInvoice parses a JSON invoice record
func DecodeInvoice(data []byte) (*Invoice, error) {
	return model.DecodeInvoice(data)
}

// DecodeCreditNote parses a JSON credit note record
func DecodeCreditNote(data []byte) (*CreditNote, error) {
	return model.DecodeCreditNote(data)
}

// DryRun checks an invoice against the French rules
func DryRun(inv *Invoice) *Report {
	return validation.DryRun(inv)
}

// DryRunCreditNote checks a credit note against the French rules
func DryRunCreditNote(cn *CreditNote) *Report {
	return validation.DryRunCreditNote(cn)
}

// GenerateXML serializes an invoice to CII XML
func GenerateXML(inv *Invoice) ([]byte, error) {
	return cii.Serialize(inv, model.DocumentTypeInvoice)
}

// GenerateCreditNoteXML serializes a credit note to CII XML
func GenerateCreditNoteXML(cn *CreditNote) ([]byte, error) {
	return cii.SerializeCreditNote(cn)
}

// VATBreakdown groups the lines of inv by VAT rate, in first-seen order
func VATBreakdown(inv *Invoice) []VATGroup {
	return cii.VATBreakdown(inv)
}

// ExtractXML returns the CII XML embedded in a Factur-X PDF
func ExtractXML(pdf []byte) ([]byte, error) {
	return packaging.ExtractXML(pdf)
}
