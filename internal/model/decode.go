package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	money "github.com/rezonia/facturx-engine/internal/decimal"
)

// JSON input shapes. Required fields are pointers or tagged so that a missing
// value is distinguishable from a zero value.
type addressInput struct {
	Street     string `json:"street" validate:"required"`
	City       string `json:"city" validate:"required"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country"`
}

type partyInput struct {
	Name      string        `json:"name" validate:"required"`
	SIRET     string        `json:"siret" validate:"required"`
	VATNumber string        `json:"vat_number" validate:"required"`
	Address   *addressInput `json:"address" validate:"required"`
	Email     string        `json:"email"`
}

type lineInput struct {
	ID          string           `json:"id" validate:"required"`
	Description string           `json:"description" validate:"required"`
	Quantity    *json.RawMessage `json:"quantity" validate:"required"`
	Unit        string           `json:"unit"`
	UnitPrice   *json.RawMessage `json:"unit_price" validate:"required"`
	VATRate     *json.RawMessage `json:"vat_rate" validate:"required"`
}

type invoiceInput struct {
	Number       string      `json:"invoice_number" validate:"required"`
	IssueDate    string      `json:"issue_date" validate:"required"`
	DueDate      string      `json:"due_date"`
	Currency     string      `json:"currency"`
	Seller       *partyInput `json:"seller" validate:"required"`
	Buyer        *partyInput `json:"buyer" validate:"required"`
	Lines        []lineInput `json:"lines" validate:"required,min=1,dive"`
	PaymentTerms string      `json:"payment_terms"`
	IBAN         string      `json:"bank_iban"`
}

type creditNoteRefInput struct {
	OriginalInvoiceNumber string `json:"original_invoice_number" validate:"required"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func inputValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// DecodeInvoice parses a JSON invoice record and builds the model
func DecodeInvoice(data []byte) (*Invoice, error) {
	var in invoiceInput
	if err := decodeStrict(data, &in); err != nil {
		return nil, err
	}
	inv, err := in.toModel()
	if err != nil {
		return nil, err
	}
	return NewInvoice(inv)
}

// DecodeCreditNote parses a JSON credit note record and builds the model
func DecodeCreditNote(data []byte) (*CreditNote, error) {
	var in invoiceInput
	if err := decodeStrict(data, &in); err != nil {
		return nil, err
	}
	var ref creditNoteRefInput
	if err := decodeStrict(data, &ref); err != nil {
		return nil, err
	}
	inv, err := in.toModel()
	if err != nil {
		return nil, err
	}
	return NewCreditNote(CreditNote{
		Invoice:               inv,
		OriginalInvoiceNumber: ref.OriginalInvoiceNumber,
	})
}

func decodeStrict(data []byte, v interface{}) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return NewStructuralError("body", "empty request body", nil)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return translateDecodeError(err)
	}

	if err := inputValidator().Struct(v); err != nil {
		return translateValidationError(err)
	}
	return nil
}

func translateDecodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return NewStructuralError(field, "expected "+typeErr.Type.String()+", got "+typeErr.Value, err)
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return NewStructuralError("body", "malformed JSON", err)
	}
	return NewStructuralError("body", "unreadable JSON", err)
}

func translateValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return NewStructuralError("body", "invalid input", err)
	}

	fe := fieldErrs[0]
	field := fe.Namespace()
	if idx := strings.Index(field, "."); idx >= 0 {
		field = field[idx+1:]
	}

	switch fe.Tag() {
	case "required":
		return NewStructuralError(field, "field required", nil)
	case "min":
		return NewStructuralError(field, "at least one line is required", nil)
	default:
		return NewStructuralError(field, "failed on "+fe.Tag(), nil)
	}
}

func (in *invoiceInput) toModel() (Invoice, error) {
	inv := Invoice{
		Number:       in.Number,
		IssueDate:    in.IssueDate,
		DueDate:      in.DueDate,
		Currency:     in.Currency,
		Seller:       in.Seller.toModel(),
		Buyer:        in.Buyer.toModel(),
		Lines:        make([]InvoiceLine, 0, len(in.Lines)),
		PaymentTerms: in.PaymentTerms,
		IBAN:         in.IBAN,
	}

	for i, l := range in.Lines {
		qty, err := toDecimal(linePath(i, "quantity"), l.Quantity)
		if err != nil {
			return Invoice{}, err
		}
		price, err := toDecimal(linePath(i, "unit_price"), l.UnitPrice)
		if err != nil {
			return Invoice{}, err
		}
		rate, err := toDecimal(linePath(i, "vat_rate"), l.VATRate)
		if err != nil {
			return Invoice{}, err
		}
		inv.Lines = append(inv.Lines, InvoiceLine{
			ID:          l.ID,
			Description: l.Description,
			Quantity:    qty,
			Unit:        l.Unit,
			UnitPrice:   price,
			VATRate:     rate,
		})
	}
	return inv, nil
}

func (p *partyInput) toModel() Party {
	return Party{
		Name:      p.Name,
		SIRET:     p.SIRET,
		VATNumber: p.VATNumber,
		Address: Address{
			Street:     p.Address.Street,
			City:       p.Address.City,
			PostalCode: p.Address.PostalCode,
			Country:    p.Address.Country,
		},
		Email: p.Email,
	}
}

// toDecimal accepts a JSON number or a numeric string. Parsing the raw
// literal keeps the exact digits the caller sent.
func toDecimal(field string, raw *json.RawMessage) (decimal.Decimal, error) {
	literal := strings.TrimSpace(string(*raw))
	var quoted string
	if err := json.Unmarshal(*raw, &quoted); err == nil {
		literal = strings.TrimSpace(quoted)
	}

	d, err := decimal.NewFromString(literal)
	if err != nil {
		return decimal.Decimal{}, NewStructuralError(field, "not a decimal number", err)
	}
	if !money.InRange(d) {
		return decimal.Decimal{}, NewStructuralError(field, "decimal out of range", nil)
	}
	return d, nil
}
