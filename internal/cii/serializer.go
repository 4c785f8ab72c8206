// Package cii serializes invoices into Cross Industry Invoice XML, the
// document embedded in a Factur-X PDF.
package cii

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	money "github.com/rezonia/facturx-engine/internal/decimal"
	"github.com/rezonia/facturx-engine/internal/model"
)

// XML namespaces
const (
	NamespaceRSM = "urn:un:unece:uncefact:data:standard:CrossIndustryInvoice:100"
	NamespaceRAM = "urn:un:unece:uncefact:data:standard:ReusableAggregateBusinessInformationEntity:100"
	NamespaceUDT = "urn:un:unece:uncefact:data:standard:UnqualifiedDataType:100"
	NamespaceXSI = "http://www.w3.org/2001/XMLSchema-instance"
)

// GuidelineID names the conformance profile of the produced documents
const GuidelineID = "urn:cen.eu:en16931:2017#conformant#urn:factur-x.eu:1p0:extended"

// Code lists used by the serializer
const (
	dateFormatCompact    = "102"
	schemeLegalSIRET     = "0002"
	schemeTaxVAT         = "VA"
	taxTypeVAT           = "VAT"
	taxCategoryStandard  = "S"
	paymentMeansTransfer = "30"
)

// ErrSerialization is returned when a model cannot be turned into XML.
// No partial document is ever returned alongside it.
var ErrSerialization = errors.New("cii serialization failed")

// Serialize renders inv as a CII document of the given type.
// Output is deterministic: the same invoice always yields the same bytes.
func Serialize(inv *model.Invoice, typ model.DocumentType) ([]byte, error) {
	return serialize(inv, typ, "")
}

// SerializeCreditNote renders a 381 document referencing the cancelled invoice
func SerializeCreditNote(cn *model.CreditNote) ([]byte, error) {
	if cn == nil {
		return nil, fmt.Errorf("%w: nil credit note", ErrSerialization)
	}
	return serialize(&cn.Invoice, model.DocumentTypeCreditNote, cn.OriginalInvoiceNumber)
}

func serialize(inv *model.Invoice, typ model.DocumentType, originalNumber string) ([]byte, error) {
	if inv == nil {
		return nil, fmt.Errorf("%w: nil invoice", ErrSerialization)
	}
	if typ != model.DocumentTypeInvoice && typ != model.DocumentTypeCreditNote {
		return nil, fmt.Errorf("%w: unknown document type %q", ErrSerialization, typ)
	}
	if len(inv.Lines) == 0 {
		return nil, fmt.Errorf("%w: invoice %s has no lines", ErrSerialization, inv.Number)
	}
	for i, l := range inv.Lines {
		if !l.InRange() {
			return nil, fmt.Errorf("%w: line %d has a value out of range", ErrSerialization, i+1)
		}
	}

	b := &builder{inv: inv, currency: inv.Currency}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("rsm:CrossIndustryInvoice")
	root.CreateAttr("xmlns:rsm", NamespaceRSM)
	root.CreateAttr("xmlns:ram", NamespaceRAM)
	root.CreateAttr("xmlns:udt", NamespaceUDT)
	root.CreateAttr("xmlns:xsi", NamespaceXSI)

	ctx := root.CreateElement("rsm:ExchangedDocumentContext")
	guideline := ctx.CreateElement("ram:GuidelineSpecifiedDocumentContextParameter")
	text(guideline, "ram:ID", GuidelineID)

	header := root.CreateElement("rsm:ExchangedDocument")
	text(header, "ram:ID", inv.Number)
	text(header, "ram:TypeCode", string(typ))
	date(header, "ram:IssueDateTime", inv.IssueDate)

	tx := root.CreateElement("rsm:SupplyChainTradeTransaction")
	for _, line := range inv.Lines {
		b.line(tx, line)
	}

	agreement := tx.CreateElement("ram:ApplicableHeaderTradeAgreement")
	party(agreement, "ram:SellerTradeParty", inv.Seller)
	party(agreement, "ram:BuyerTradeParty", inv.Buyer)

	tx.CreateElement("ram:ApplicableHeaderTradeDelivery")

	settlement := tx.CreateElement("ram:ApplicableHeaderTradeSettlement")
	text(settlement, "ram:InvoiceCurrencyCode", inv.Currency)
	if inv.HasIBAN() {
		means := settlement.CreateElement("ram:SpecifiedTradeSettlementPaymentMeans")
		text(means, "ram:TypeCode", paymentMeansTransfer)
		account := means.CreateElement("ram:PayeePartyCreditorFinancialAccount")
		text(account, "ram:IBANID", inv.IBAN)
	}
	for _, g := range VATBreakdown(inv) {
		b.vatGroup(settlement, g)
	}
	b.totals(settlement)

	if typ == model.DocumentTypeCreditNote && strings.TrimSpace(originalNumber) != "" {
		ref := settlement.CreateElement("ram:InvoiceReferencedDocument")
		text(ref, "ram:IssuerAssignedID", originalNumber)
	}

	doc.Indent(2)
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return out, nil
}

type builder struct {
	inv      *model.Invoice
	currency string
}

func (b *builder) line(parent *etree.Element, l model.InvoiceLine) {
	item := parent.CreateElement("ram:IncludedSupplyChainTradeLineItem")

	lineDoc := item.CreateElement("ram:AssociatedDocumentLineDocument")
	text(lineDoc, "ram:LineID", l.ID)

	product := item.CreateElement("ram:SpecifiedTradeProduct")
	text(product, "ram:Name", l.Description)

	agreement := item.CreateElement("ram:SpecifiedLineTradeAgreement")
	gross := agreement.CreateElement("ram:GrossPriceProductTradePrice")
	b.amount(gross, "ram:ChargeAmount", l.UnitPrice)
	net := agreement.CreateElement("ram:NetPriceProductTradePrice")
	b.amount(net, "ram:ChargeAmount", l.UnitPrice)

	delivery := item.CreateElement("ram:SpecifiedLineTradeDelivery")
	qty := text(delivery, "ram:BilledQuantity", money.FormatQuantity(l.Quantity))
	qty.CreateAttr("unitCode", l.Unit)

	settlement := item.CreateElement("ram:SpecifiedLineTradeSettlement")
	tax := settlement.CreateElement("ram:ApplicableTradeTax")
	text(tax, "ram:TypeCode", taxTypeVAT)
	text(tax, "ram:CategoryCode", taxCategoryStandard)
	text(tax, "ram:RateApplicablePercent", money.FormatPercent(l.VATRate))

	sum := settlement.CreateElement("ram:SpecifiedTradeSettlementLineMonetarySummation")
	b.amount(sum, "ram:LineTotalAmount", l.LineTotal())
}

func (b *builder) vatGroup(parent *etree.Element, g VATGroup) {
	tax := parent.CreateElement("ram:ApplicableTradeTax")
	b.amount(tax, "ram:CalculatedAmount", g.Tax)
	text(tax, "ram:TypeCode", taxTypeVAT)
	b.amount(tax, "ram:BasisAmount", g.Basis)
	text(tax, "ram:CategoryCode", taxCategoryStandard)
	text(tax, "ram:RateApplicablePercent", money.FormatPercent(g.Rate))
}

// totals writes the header summation. No allowances or charges are
// modelled, so the tax basis equals the line total and due payable equals
// the grand total.
func (b *builder) totals(parent *etree.Element) {
	ht := b.inv.TotalHT()
	ttc := b.inv.TotalTTC()

	sums := parent.CreateElement("ram:SpecifiedTradeSettlementHeaderMonetarySummation")
	b.amount(sums, "ram:LineTotalAmount", ht)
	b.amount(sums, "ram:TaxBasisTotalAmount", ht)
	b.amount(sums, "ram:TaxTotalAmount", b.inv.TotalVAT())
	b.amount(sums, "ram:GrandTotalAmount", ttc)
	b.amount(sums, "ram:DuePayableAmount", ttc)
}

func (b *builder) amount(parent *etree.Element, tag string, value decimal.Decimal) {
	el := text(parent, tag, money.FormatAmount(value))
	el.CreateAttr("currencyID", b.currency)
}

func party(parent *etree.Element, tag string, p model.Party) {
	el := parent.CreateElement(tag)
	text(el, "ram:Name", p.Name)

	legal := el.CreateElement("ram:SpecifiedLegalOrganization")
	text(legal, "ram:ID", p.SIRET).CreateAttr("schemeID", schemeLegalSIRET)

	addr := el.CreateElement("ram:PostalTradeAddress")
	text(addr, "ram:PostcodeCode", p.Address.PostalCode)
	text(addr, "ram:LineOne", p.Address.Street)
	text(addr, "ram:CityName", p.Address.City)
	text(addr, "ram:CountryID", p.Address.Country)

	reg := el.CreateElement("ram:SpecifiedTaxRegistration")
	text(reg, "ram:ID", p.VATNumber).CreateAttr("schemeID", schemeTaxVAT)
}

func date(parent *etree.Element, tag, value string) {
	container := parent.CreateElement(tag)
	dts := text(container, "udt:DateTimeString", CompactDate(value))
	dts.CreateAttr("format", dateFormatCompact)
}

func text(parent *etree.Element, tag, value string) *etree.Element {
	el := parent.CreateElement(tag)
	el.SetText(value)
	return el
}

// CompactDate turns YYYY-MM-DD into YYYYMMDD
func CompactDate(value string) string {
	return strings.ReplaceAll(value, "-", "")
}
