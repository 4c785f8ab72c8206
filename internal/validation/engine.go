// Package validation implements the dry run: the French business rules an
// invoice must satisfy before it is issued.
//
// Rules never block construction or serialization. They are collected into a
// Report together with the computed totals, so callers can always show the
// amounts even when the invoice is not issuable.
package validation

import (
	"fmt"
	"unicode/utf8"

	"github.com/rezonia/facturx-engine/internal/cii"
	money "github.com/rezonia/facturx-engine/internal/decimal"
	"github.com/rezonia/facturx-engine/internal/model"
)

// rule appends its findings to the report
type rule func(inv *model.Invoice, r *Report)

// rules run in this order; report order follows it
var rules = []rule{
	checkSIRET,
	checkVATNumber,
	checkIBAN,
	checkDates,
	checkPaymentTerms,
	checkCurrency,
	checkCountries,
	checkPostalCodes,
	checkLines,
}

// DryRun evaluates every rule against inv and returns the report.
// Totals stay empty when a line carries a value out of range.
func DryRun(inv *model.Invoice) *Report {
	r := NewReport()
	for _, check := range rules {
		check(inv, r)
	}
	if !linesInRange(inv) {
		return r
	}
	r.Totals = Totals{
		TotalHT:  money.FormatAmount(inv.TotalHT()),
		TotalVAT: money.FormatAmount(inv.TotalVAT()),
		TotalTTC: money.FormatAmount(inv.TotalTTC()),
	}
	return r
}

func linesInRange(inv *model.Invoice) bool {
	for _, l := range inv.Lines {
		if !l.InRange() {
			return false
		}
	}
	return true
}

// DryRunCreditNote runs the invoice rules plus the credit note reference check
func DryRunCreditNote(cn *model.CreditNote) *Report {
	r := DryRun(&cn.Invoice)
	if cn.OriginalInvoiceNumber == cn.Number {
		r.AddError(fmt.Sprintf("Référence facture d'origine identique au numéro de l'avoir : %s", cn.Number))
	}
	return r
}

// Engine is a dry run that can attach a serialized preview to its report
type Engine struct {
	preview      bool
	previewLimit int
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithPreview attaches the serialized XML to each report. A positive limit
// truncates the preview to that many bytes.
func WithPreview(limit int) EngineOption {
	return func(e *Engine) {
		e.preview = true
		e.previewLimit = limit
	}
}

// NewEngine creates a new dry-run engine
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DryRun evaluates inv. A value out of range, or a serializer failure while
// building the preview, is returned as an error, never folded into the report.
func (e *Engine) DryRun(inv *model.Invoice) (*Report, error) {
	if !linesInRange(inv) {
		return nil, fmt.Errorf("%w: invoice %s has a value out of range", cii.ErrSerialization, inv.Number)
	}
	r := DryRun(inv)
	if !e.preview {
		return r, nil
	}
	xml, err := cii.Serialize(inv, model.DocumentTypeInvoice)
	if err != nil {
		return nil, fmt.Errorf("failed to build XML preview: %w", err)
	}
	r.XMLPreview = Truncate(xml, e.previewLimit)
	return r, nil
}

// DryRunCreditNote is DryRun for credit notes
func (e *Engine) DryRunCreditNote(cn *model.CreditNote) (*Report, error) {
	if !linesInRange(&cn.Invoice) {
		return nil, fmt.Errorf("%w: credit note %s has a value out of range", cii.ErrSerialization, cn.Number)
	}
	r := DryRunCreditNote(cn)
	if !e.preview {
		return r, nil
	}
	xml, err := cii.SerializeCreditNote(cn)
	if err != nil {
		return nil, fmt.Errorf("failed to build XML preview: %w", err)
	}
	r.XMLPreview = Truncate(xml, e.previewLimit)
	return r, nil
}

// Truncate returns at most limit bytes of data as a string, cutting on a
// rune boundary. A non-positive limit keeps everything.
func Truncate(data []byte, limit int) string {
	if limit <= 0 || len(data) <= limit {
		return string(data)
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(data[cut]) {
		cut--
	}
	return string(data[:cut])
}
