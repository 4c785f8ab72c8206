// Package render produces the human-readable PDF page of an invoice.
//
// Layout of the A4 page:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  FACTURE / AVOIR N°            Dates (émission, échéance)    │
//	│  ─────────────────────────────────────────────────────────  │
//	│  VENDEUR                      │  ACHETEUR                    │
//	│  ─────────────────────────────────────────────────────────  │
//	│  # | Description | Qté | Unité | PU HT | TVA % | Total HT   │
//	│  ─────────────────────────────────────────────────────────  │
//	│  Récapitulatif TVA             Total HT / TVA / TTC          │
//	│  Conditions de paiement, IBAN, référence facture d'origine  │
//	└─────────────────────────────────────────────────────────────┘
package render

import (
	"context"
	"fmt"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/rezonia/facturx-engine/internal/cii"
	money "github.com/rezonia/facturx-engine/internal/decimal"
	"github.com/rezonia/facturx-engine/internal/model"
)

// PDF metadata
const (
	DefaultAuthor = "Factur-X Engine"
	Subject       = "Facture électronique Factur-X"
	Keywords      = "Factur-X, EN16931"
)

var (
	colorDark = &props.Color{Red: 44, Green: 62, Blue: 80}
	colorBlue = &props.Color{Red: 52, Green: 152, Blue: 219}
	colorGray = &props.Color{Red: 110, Green: 110, Blue: 110}
)

// Document is what gets rendered: an invoice or a credit note
type Document struct {
	Invoice *model.Invoice
	Type    model.DocumentType
	// OriginalInvoiceNumber is set for credit notes
	OriginalInvoiceNumber string
}

// InvoiceDocument wraps an invoice
func InvoiceDocument(inv *model.Invoice) Document {
	return Document{Invoice: inv, Type: model.DocumentTypeInvoice}
}

// CreditNoteDocument wraps a credit note
func CreditNoteDocument(cn *model.CreditNote) Document {
	return Document{
		Invoice:               &cn.Invoice,
		Type:                  model.DocumentTypeCreditNote,
		OriginalInvoiceNumber: cn.OriginalInvoiceNumber,
	}
}

// Title returns the heading of the document, e.g. "FACTURE N° F-001"
func (d Document) Title() string {
	if d.Type == model.DocumentTypeCreditNote {
		return "AVOIR N° " + d.Invoice.Number
	}
	return "FACTURE N° " + d.Invoice.Number
}

// Renderer turns a document into PDF page bytes
type Renderer interface {
	Render(ctx context.Context, doc Document) ([]byte, error)
}

// MarotoRenderer renders A4 pages with maroto
type MarotoRenderer struct {
	author string
}

// Option configures a MarotoRenderer
type Option func(*MarotoRenderer)

// WithAuthor sets the PDF author metadata
func WithAuthor(author string) Option {
	return func(r *MarotoRenderer) {
		r.author = author
	}
}

// NewMarotoRenderer creates a new renderer
func NewMarotoRenderer(opts ...Option) *MarotoRenderer {
	r := &MarotoRenderer{author: DefaultAuthor}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render builds the page and returns its bytes
func (r *MarotoRenderer) Render(_ context.Context, doc Document) ([]byte, error) {
	if doc.Invoice == nil {
		return nil, fmt.Errorf("render: nil invoice")
	}
	inv := doc.Invoice

	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(20).WithRightMargin(20).
		WithTopMargin(20).WithBottomMargin(20).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle(doc.Title(), true).
		WithAuthor(r.author, true).
		WithSubject(Subject, true).
		WithKeywords(Keywords, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(doc))
	m.AddRows(line.NewRow(1, props.Line{Color: colorDark, Thickness: 0.5}))
	m.AddRows(partiesRows(inv)...)
	m.AddRows(line.NewRow(4))

	m.AddRows(linesHeaderRow())
	m.AddRows(lineRows(inv)...)
	m.AddRows(line.NewRow(1, props.Line{Color: colorDark, Thickness: 0.3}))

	m.AddRows(vatRows(inv)...)
	m.AddRows(totalsRow(inv))

	m.AddRows(row.New(6))
	m.AddRows(footerRows(doc)...)

	out, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("render: generate document: %w", err)
	}
	return out.GetBytes(), nil
}

func headerRow(doc Document) core.Row {
	inv := doc.Invoice
	dueDate := ""
	if inv.DueDate != "" {
		dueDate = "Date d'échéance : " + inv.DueDate
	}

	return row.New(18).Add(
		col.New(7).Add(
			text.New(doc.Title(), props.Text{
				Style: fontstyle.Bold, Size: 16, Color: colorDark, Top: 2,
			}),
		),
		col.New(5).Add(
			text.New("Date d'émission : "+inv.IssueDate, props.Text{
				Size: 9, Align: align.Right, Top: 3,
			}),
			text.New(dueDate, props.Text{
				Size: 9, Align: align.Right, Top: 9, Color: colorGray,
			}),
		),
	)
}

func partiesRows(inv *model.Invoice) []core.Row {
	heading := func(label string) core.Col {
		return col.New(6).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 10, Color: colorBlue, Top: 1,
		}))
	}
	cell := func(s string) core.Col {
		return col.New(6).Add(text.New(s, props.Text{Size: 9, Top: 1}))
	}
	pair := func(seller, buyer string) core.Row {
		return row.New(5).Add(cell(seller), cell(buyer))
	}

	s, b := inv.Seller, inv.Buyer
	return []core.Row{
		row.New(7).Add(heading("VENDEUR"), heading("ACHETEUR")),
		pair(s.Name, b.Name),
		pair(s.Address.Street, b.Address.Street),
		pair(s.Address.PostalCode+" "+s.Address.City+" ("+s.Address.Country+")",
			b.Address.PostalCode+" "+b.Address.City+" ("+b.Address.Country+")"),
		pair("SIRET : "+s.SIRET, "SIRET : "+b.SIRET),
		pair("TVA : "+s.VATNumber, "TVA : "+b.VATNumber),
	}
}

func linesHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorBlue, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("#", 1, align.Left),
		h("Description", 4, align.Left),
		h("Qté", 1, align.Right),
		h("Unité", 1, align.Center),
		h("PU HT", 2, align.Right),
		h("TVA %", 1, align.Right),
		h("Total HT", 2, align.Right),
	)
}

func lineRows(inv *model.Invoice) []core.Row {
	rows := make([]core.Row, 0, len(inv.Lines))
	for _, l := range inv.Lines {
		cell := func(s string, size int, a align.Type) core.Col {
			return col.New(size).Add(text.New(s, props.Text{
				Size: 8, Align: a, Top: 1, Left: 1, Right: 1,
			}))
		}
		rows = append(rows, row.New(7).Add(
			cell(l.ID, 1, align.Left),
			cell(l.Description, 4, align.Left),
			cell(l.Quantity.String(), 1, align.Right),
			cell(l.Unit, 1, align.Center),
			cell(formatMoney(money.FormatAmount(l.UnitPrice), inv.Currency), 2, align.Right),
			cell(money.FormatPercent(l.VATRate)+"%", 1, align.Right),
			cell(formatMoney(money.FormatAmount(l.LineTotal()), inv.Currency), 2, align.Right),
		))
	}
	return rows
}

func vatRows(inv *model.Invoice) []core.Row {
	rows := []core.Row{
		row.New(7).Add(col.New(12).Add(text.New("Récapitulatif TVA", props.Text{
			Style: fontstyle.Bold, Size: 9, Color: colorDark, Top: 2,
		}))),
	}
	for _, g := range cii.VATBreakdown(inv) {
		rows = append(rows, row.New(5).Add(
			col.New(6).Add(text.New(
				fmt.Sprintf("TVA %s%% sur %s", money.FormatPercent(g.Rate), formatMoney(money.FormatAmount(g.Basis), inv.Currency)),
				props.Text{Size: 8, Color: colorGray, Top: 1},
			)),
			col.New(6).Add(text.New(
				formatMoney(money.FormatAmount(g.Tax), inv.Currency),
				props.Text{Size: 8, Align: align.Right, Color: colorGray, Top: 1, Right: 1},
			)),
		))
	}
	return rows
}

func totalsRow(inv *model.Invoice) core.Row {
	label := func(s string, top float64) core.Component {
		return text.New(s, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Top: top, Right: 2})
	}
	value := func(s string, top float64) core.Component {
		return text.New(formatMoney(s, inv.Currency), props.Text{Size: 9, Align: align.Right, Top: top, Right: 1})
	}

	return row.New(22).Add(
		col.New(6),
		col.New(3).Add(
			label("Total HT :", 2),
			label("Total TVA :", 8),
			text.New("Total TTC :", props.Text{
				Style: fontstyle.Bold, Size: 11, Align: align.Right, Color: colorDark, Top: 14, Right: 2,
			}),
		),
		col.New(3).Add(
			value(money.FormatAmount(inv.TotalHT()), 2),
			value(money.FormatAmount(inv.TotalVAT()), 8),
			text.New(formatMoney(money.FormatAmount(inv.TotalTTC()), inv.Currency), props.Text{
				Style: fontstyle.Bold, Size: 11, Align: align.Right, Color: colorDark, Top: 14, Right: 1,
			}),
		),
	)
}

func footerRows(doc Document) []core.Row {
	inv := doc.Invoice
	var rows []core.Row
	note := func(s string) core.Row {
		return row.New(6).Add(col.New(12).Add(text.New(s, props.Text{Size: 9, Top: 1})))
	}

	if doc.Type == model.DocumentTypeCreditNote && doc.OriginalInvoiceNumber != "" {
		rows = append(rows, note("Avoir sur facture N° "+doc.OriginalInvoiceNumber))
	}
	if inv.PaymentTerms != "" {
		rows = append(rows, note("Conditions de paiement : "+inv.PaymentTerms))
	}
	if inv.HasIBAN() {
		rows = append(rows, note("IBAN : "+inv.IBAN))
	}
	rows = append(rows, row.New(8).Add(col.New(12).Add(text.New(
		"Facture électronique au format Factur-X (EN16931). Le fichier XML joint fait foi.",
		props.Text{Size: 7, Color: colorGray, Top: 3},
	))))
	return rows
}

func formatMoney(amount, currency string) string {
	return amount + " " + currency
}
