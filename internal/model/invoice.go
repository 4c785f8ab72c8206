// Package model holds the invoice value objects consumed by the serializer
// and the dry-run engine.
//
// Values are built once through NewInvoice / NewCreditNote (or the JSON
// decoders) and must not be modified afterwards.
package model

import (
	"strings"

	"github.com/shopspring/decimal"

	money "github.com/rezonia/facturx-engine/internal/decimal"
)

// DocumentType is the CII document type code
type DocumentType string

const (
	DocumentTypeInvoice    DocumentType = "380"
	DocumentTypeCreditNote DocumentType = "381"
)

// Defaults applied at construction time
const (
	DefaultCountry  = "FR"
	DefaultCurrency = "EUR"
	DefaultUnit     = "EA"
)

// Address is a postal address
type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Party is a seller or buyer
type Party struct {
	Name      string  `json:"name"`
	SIRET     string  `json:"siret"`
	VATNumber string  `json:"vat_number"`
	Address   Address `json:"address"`
	Email     string  `json:"email,omitempty"`
}

// InvoiceLine is a single billed item
type InvoiceLine struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	VATRate     decimal.Decimal `json:"vat_rate"`
}

// LineTotal returns quantity * unit price
func (l InvoiceLine) LineTotal() decimal.Decimal {
	return money.LineTotal(l.Quantity, l.UnitPrice)
}

// VATAmount returns line total * rate / 100
func (l InvoiceLine) VATAmount() decimal.Decimal {
	return money.PercentOf(l.LineTotal(), l.VATRate)
}

// outOfRange names the first numeric field that does not fit MaxPrecision
func (l InvoiceLine) outOfRange() string {
	switch {
	case !money.InRange(l.Quantity):
		return "quantity"
	case !money.InRange(l.UnitPrice):
		return "unit_price"
	case !money.InRange(l.VATRate):
		return "vat_rate"
	}
	return ""
}

// InRange reports whether every amount of the line fits MaxPrecision
func (l InvoiceLine) InRange() bool {
	return l.outOfRange() == ""
}

// Invoice is a commercial invoice
type Invoice struct {
	Number       string        `json:"invoice_number"`
	IssueDate    string        `json:"issue_date"`
	DueDate      string        `json:"due_date,omitempty"`
	Currency     string        `json:"currency"`
	Seller       Party         `json:"seller"`
	Buyer        Party         `json:"buyer"`
	Lines        []InvoiceLine `json:"lines"`
	PaymentTerms string        `json:"payment_terms,omitempty"`
	IBAN         string        `json:"bank_iban,omitempty"`
}

// TotalHT is the sum of line totals before tax
func (inv *Invoice) TotalHT() decimal.Decimal {
	total := money.Zero
	for _, l := range inv.Lines {
		total = total.Add(l.LineTotal())
	}
	return total
}

// TotalVAT is the sum of line VAT amounts
func (inv *Invoice) TotalVAT() decimal.Decimal {
	total := money.Zero
	for _, l := range inv.Lines {
		total = total.Add(l.VATAmount())
	}
	return total
}

// TotalTTC is TotalHT + TotalVAT
func (inv *Invoice) TotalTTC() decimal.Decimal {
	return inv.TotalHT().Add(inv.TotalVAT())
}

// HasIBAN reports whether a bank account was supplied
func (inv *Invoice) HasIBAN() bool {
	return strings.TrimSpace(inv.IBAN) != ""
}

// CreditNote cancels (part of) a previously issued invoice
type CreditNote struct {
	Invoice
	OriginalInvoiceNumber string `json:"original_invoice_number"`
}

// NewInvoice applies defaults, checks structural invariants and returns a
// copy that does not share its line slice with the argument.
func NewInvoice(in Invoice) (*Invoice, error) {
	inv := in
	inv.Lines = make([]InvoiceLine, len(in.Lines))
	copy(inv.Lines, in.Lines)

	if inv.Currency == "" {
		inv.Currency = DefaultCurrency
	}
	applyPartyDefaults(&inv.Seller)
	applyPartyDefaults(&inv.Buyer)
	for i := range inv.Lines {
		if inv.Lines[i].Unit == "" {
			inv.Lines[i].Unit = DefaultUnit
		}
	}

	if err := checkStructure(&inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// NewCreditNote builds a credit note; the original invoice number is mandatory
func NewCreditNote(in CreditNote) (*CreditNote, error) {
	inv, err := NewInvoice(in.Invoice)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.OriginalInvoiceNumber) == "" {
		return nil, NewStructuralError("original_invoice_number", "field required", nil)
	}
	return &CreditNote{
		Invoice:               *inv,
		OriginalInvoiceNumber: in.OriginalInvoiceNumber,
	}, nil
}

func applyPartyDefaults(p *Party) {
	if p.Address.Country == "" {
		p.Address.Country = DefaultCountry
	}
}

func checkStructure(inv *Invoice) error {
	required := []struct {
		field string
		value string
	}{
		{"invoice_number", inv.Number},
		{"issue_date", inv.IssueDate},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return NewStructuralError(r.field, "field required", nil)
		}
	}

	if err := checkParty("seller", &inv.Seller); err != nil {
		return err
	}
	if err := checkParty("buyer", &inv.Buyer); err != nil {
		return err
	}

	if len(inv.Lines) == 0 {
		return NewStructuralError("lines", "at least one line is required", nil)
	}
	for i, l := range inv.Lines {
		if strings.TrimSpace(l.ID) == "" {
			return NewStructuralError(linePath(i, "id"), "field required", nil)
		}
		if strings.TrimSpace(l.Description) == "" {
			return NewStructuralError(linePath(i, "description"), "field required", nil)
		}
		if field := l.outOfRange(); field != "" {
			return NewStructuralError(linePath(i, field), "decimal out of range", nil)
		}
	}
	return nil
}

func checkParty(prefix string, p *Party) error {
	fields := []struct {
		field string
		value string
	}{
		{"name", p.Name},
		{"siret", p.SIRET},
		{"vat_number", p.VATNumber},
		{"address.street", p.Address.Street},
		{"address.city", p.Address.City},
		{"address.postal_code", p.Address.PostalCode},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return NewStructuralError(prefix+"."+f.field, "field required", nil)
		}
	}
	return nil
}
