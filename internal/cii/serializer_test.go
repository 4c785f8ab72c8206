package cii_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/facturx-engine/internal/cii"
	"github.com/rezonia/facturx-engine/internal/model"
)

func line(id, qty, price, rate string) model.InvoiceLine {
	return model.InvoiceLine{
		ID:          id,
		Description: "Article " + id,
		Quantity:    decimal.RequireFromString(qty),
		UnitPrice:   decimal.RequireFromString(price),
		VATRate:     decimal.RequireFromString(rate),
	}
}

func newInvoice(t *testing.T, lines ...model.InvoiceLine) *model.Invoice {
	t.Helper()
	inv, err := model.NewInvoice(model.Invoice{
		Number:    "TEST-001",
		IssueDate: "2024-06-01",
		Seller: model.Party{
			Name:      "ACME SAS",
			SIRET:     "12345678900017",
			VATNumber: "FR12345678900",
			Address:   model.Address{Street: "12 rue de la Paix", City: "Paris", PostalCode: "75001"},
		},
		Buyer: model.Party{
			Name:      "CLIENT SARL",
			SIRET:     "98765432100012",
			VATNumber: "FR98765432100",
			Address:   model.Address{Street: "5 avenue Victor Hugo", City: "Lyon", PostalCode: "69001"},
		},
		Lines: lines,
	})
	require.NoError(t, err)
	return inv
}

func parse(t *testing.T, data []byte) *etree.Document {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(data))
	return doc
}

func TestSerialize_EndToEnd(t *testing.T) {
	inv := newInvoice(t, line("1", "1", "100", "20"))

	out, err := cii.Serialize(inv, model.DocumentTypeInvoice)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte(`<?xml version="1.0" encoding="UTF-8"?>`)))

	doc := parse(t, out)
	root := doc.Root()
	require.NotNil(t, root)
	assert.Equal(t, "CrossIndustryInvoice", root.Tag)
	assert.Equal(t, cii.NamespaceRSM, root.SelectAttrValue("xmlns:rsm", ""))
	assert.Equal(t, cii.NamespaceRAM, root.SelectAttrValue("xmlns:ram", ""))
	assert.Equal(t, cii.NamespaceUDT, root.SelectAttrValue("xmlns:udt", ""))

	guideline := doc.FindElement("//ram:GuidelineSpecifiedDocumentContextParameter/ram:ID")
	require.NotNil(t, guideline)
	assert.Equal(t, cii.GuidelineID, guideline.Text())

	assert.Equal(t, "380", doc.FindElement("//rsm:ExchangedDocument/ram:TypeCode").Text())
	dts := doc.FindElement("//ram:IssueDateTime/udt:DateTimeString")
	require.NotNil(t, dts)
	assert.Equal(t, "20240601", dts.Text())
	assert.Equal(t, "102", dts.SelectAttrValue("format", ""))

	groups := doc.FindElements("//ram:ApplicableHeaderTradeSettlement/ram:ApplicableTradeTax")
	require.Len(t, groups, 1)
	assert.Equal(t, "100.00", groups[0].SelectElement("ram:BasisAmount").Text())
	assert.Equal(t, "20.00", groups[0].SelectElement("ram:CalculatedAmount").Text())
	assert.Equal(t, "20.00", groups[0].SelectElement("ram:RateApplicablePercent").Text())

	sums := doc.FindElement("//ram:SpecifiedTradeSettlementHeaderMonetarySummation")
	require.NotNil(t, sums)
	assert.Equal(t, "100.00", sums.SelectElement("ram:LineTotalAmount").Text())
	assert.Equal(t, "100.00", sums.SelectElement("ram:TaxBasisTotalAmount").Text())
	assert.Equal(t, "20.00", sums.SelectElement("ram:TaxTotalAmount").Text())
	assert.Equal(t, "120.00", sums.SelectElement("ram:GrandTotalAmount").Text())
	assert.Equal(t, "120.00", sums.SelectElement("ram:DuePayableAmount").Text())
}

func TestSerialize_LineItem(t *testing.T) {
	inv := newInvoice(t, line("L1", "2.5", "10.005", "5.5"))

	out, err := cii.Serialize(inv, model.DocumentTypeInvoice)
	require.NoError(t, err)
	doc := parse(t, out)

	item := doc.FindElement("//ram:IncludedSupplyChainTradeLineItem")
	require.NotNil(t, item)
	assert.Equal(t, "L1", item.FindElement("ram:AssociatedDocumentLineDocument/ram:LineID").Text())
	assert.Equal(t, "Article L1", item.FindElement("ram:SpecifiedTradeProduct/ram:Name").Text())

	gross := item.FindElement("ram:SpecifiedLineTradeAgreement/ram:GrossPriceProductTradePrice/ram:ChargeAmount")
	net := item.FindElement("ram:SpecifiedLineTradeAgreement/ram:NetPriceProductTradePrice/ram:ChargeAmount")
	assert.Equal(t, "10.01", gross.Text())
	assert.Equal(t, gross.Text(), net.Text())

	qty := item.FindElement("ram:SpecifiedLineTradeDelivery/ram:BilledQuantity")
	assert.Equal(t, "2.5000", qty.Text())
	assert.Equal(t, "EA", qty.SelectAttrValue("unitCode", ""))

	tax := item.FindElement("ram:SpecifiedLineTradeSettlement/ram:ApplicableTradeTax")
	assert.Equal(t, "VAT", tax.SelectElement("ram:TypeCode").Text())
	assert.Equal(t, "S", tax.SelectElement("ram:CategoryCode").Text())
	assert.Equal(t, "5.50", tax.SelectElement("ram:RateApplicablePercent").Text())

	// 2.5 * 10.005 = 25.0125
	total := item.FindElement("ram:SpecifiedLineTradeSettlement/ram:SpecifiedTradeSettlementLineMonetarySummation/ram:LineTotalAmount")
	assert.Equal(t, "25.01", total.Text())
}

func TestSerialize_Parties(t *testing.T) {
	inv := newInvoice(t, line("1", "1", "100", "20"))
	out, err := cii.Serialize(inv, model.DocumentTypeInvoice)
	require.NoError(t, err)
	doc := parse(t, out)

	agreement := doc.FindElement("//ram:ApplicableHeaderTradeAgreement")
	require.NotNil(t, agreement)
	children := agreement.ChildElements()
	require.Len(t, children, 2)
	assert.Equal(t, "SellerTradeParty", children[0].Tag)
	assert.Equal(t, "BuyerTradeParty", children[1].Tag)

	seller := children[0]
	assert.Equal(t, "ACME SAS", seller.SelectElement("ram:Name").Text())
	legal := seller.FindElement("ram:SpecifiedLegalOrganization/ram:ID")
	assert.Equal(t, "12345678900017", legal.Text())
	assert.Equal(t, "0002", legal.SelectAttrValue("schemeID", ""))

	addr := seller.SelectElement("ram:PostalTradeAddress")
	var tags []string
	for _, c := range addr.ChildElements() {
		tags = append(tags, c.Tag)
	}
	assert.Equal(t, []string{"PostcodeCode", "LineOne", "CityName", "CountryID"}, tags)
	assert.Equal(t, "FR", addr.SelectElement("ram:CountryID").Text())

	vat := seller.FindElement("ram:SpecifiedTaxRegistration/ram:ID")
	assert.Equal(t, "FR12345678900", vat.Text())
	assert.Equal(t, "VA", vat.SelectAttrValue("schemeID", ""))

	delivery := doc.FindElement("//ram:ApplicableHeaderTradeDelivery")
	require.NotNil(t, delivery)
	assert.Empty(t, delivery.ChildElements())
}

func TestSerialize_Deterministic(t *testing.T) {
	inv := newInvoice(t,
		line("1", "3", "33.33", "20"),
		line("2", "1", "9.99", "5.5"),
		line("3", "7", "0.10", "10"),
	)

	first, err := cii.Serialize(inv, model.DocumentTypeInvoice)
	require.NoError(t, err)
	second, err := cii.Serialize(inv, model.DocumentTypeInvoice)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSerialize_CurrencyOnEveryAmount(t *testing.T) {
	inv := newInvoice(t, line("1", "1", "100", "20"), line("2", "2", "5", "5.5"))
	inv.Currency = "CHF"

	out, err := cii.Serialize(inv, model.DocumentTypeInvoice)
	require.NoError(t, err)
	doc := parse(t, out)

	amountTags := map[string]bool{
		"ChargeAmount": true, "LineTotalAmount": true, "CalculatedAmount": true,
		"BasisAmount": true, "TaxBasisTotalAmount": true, "TaxTotalAmount": true,
		"GrandTotalAmount": true, "DuePayableAmount": true,
	}
	count := 0
	for _, el := range doc.FindElements("//*") {
		if amountTags[el.Tag] {
			count++
			assert.Equal(t, "CHF", el.SelectAttrValue("currencyID", ""), el.Tag)
		}
	}
	assert.Positive(t, count)
}

func TestSerialize_PaymentMeans(t *testing.T) {
	inv := newInvoice(t, line("1", "1", "100", "20"))

	out, err := cii.Serialize(inv, model.DocumentTypeInvoice)
	require.NoError(t, err)
	assert.Nil(t, parse(t, out).FindElement("//ram:SpecifiedTradeSettlementPaymentMeans"))

	inv.IBAN = "FR7630006000011234567890189"
	out, err = cii.Serialize(inv, model.DocumentTypeInvoice)
	require.NoError(t, err)

	means := parse(t, out).FindElement("//ram:SpecifiedTradeSettlementPaymentMeans")
	require.NotNil(t, means)
	assert.Equal(t, "30", means.SelectElement("ram:TypeCode").Text())
	assert.Equal(t, "FR7630006000011234567890189",
		means.FindElement("ram:PayeePartyCreditorFinancialAccount/ram:IBANID").Text())
}

func TestSerialize_GroupsInFirstSeenOrder(t *testing.T) {
	inv := newInvoice(t,
		line("1", "1", "10", "5.5"),
		line("2", "1", "100", "20"),
		line("3", "2", "10", "5.5"),
	)

	out, err := cii.Serialize(inv, model.DocumentTypeInvoice)
	require.NoError(t, err)

	groups := parse(t, out).FindElements("//ram:ApplicableHeaderTradeSettlement/ram:ApplicableTradeTax")
	require.Len(t, groups, 2)
	assert.Equal(t, "5.50", groups[0].SelectElement("ram:RateApplicablePercent").Text())
	assert.Equal(t, "30.00", groups[0].SelectElement("ram:BasisAmount").Text())
	assert.Equal(t, "20.00", groups[1].SelectElement("ram:RateApplicablePercent").Text())
}

func TestSerializeCreditNote(t *testing.T) {
	inv := newInvoice(t, line("1", "1", "100", "20"))
	cn, err := model.NewCreditNote(model.CreditNote{Invoice: *inv, OriginalInvoiceNumber: "F-2024-001"})
	require.NoError(t, err)

	out, err := cii.SerializeCreditNote(cn)
	require.NoError(t, err)
	doc := parse(t, out)

	assert.Equal(t, "381", doc.FindElement("//rsm:ExchangedDocument/ram:TypeCode").Text())
	ref := doc.FindElement("//ram:InvoiceReferencedDocument/ram:IssuerAssignedID")
	require.NotNil(t, ref)
	assert.Equal(t, "F-2024-001", ref.Text())

	settlement := doc.FindElement("//ram:ApplicableHeaderTradeSettlement")
	children := settlement.ChildElements()
	assert.Equal(t, "InvoiceReferencedDocument", children[len(children)-1].Tag)
}

func TestSerialize_InvoiceHasNoReference(t *testing.T) {
	inv := newInvoice(t, line("1", "1", "100", "20"))
	out, err := cii.Serialize(inv, model.DocumentTypeCreditNote)
	require.NoError(t, err)

	doc := parse(t, out)
	assert.Equal(t, "381", doc.FindElement("//rsm:ExchangedDocument/ram:TypeCode").Text())
	assert.Nil(t, doc.FindElement("//ram:InvoiceReferencedDocument"))
}

func TestSerialize_Errors(t *testing.T) {
	_, err := cii.Serialize(nil, model.DocumentTypeInvoice)
	assert.True(t, errors.Is(err, cii.ErrSerialization))

	inv := newInvoice(t, line("1", "1", "100", "20"))
	out, err := cii.Serialize(inv, model.DocumentType("999"))
	assert.True(t, errors.Is(err, cii.ErrSerialization))
	assert.Nil(t, out)

	_, err = cii.SerializeCreditNote(nil)
	assert.True(t, errors.Is(err, cii.ErrSerialization))
}

func TestSerialize_ValueOutOfRange(t *testing.T) {
	// built without NewInvoice, which would refuse it
	inv := *newInvoice(t, line("1", "1", "100", "20"))
	inv.Lines = []model.InvoiceLine{line("1", "1e-30000000", "100", "20")}

	out, err := cii.Serialize(&inv, model.DocumentTypeInvoice)
	require.Error(t, err)
	assert.True(t, errors.Is(err, cii.ErrSerialization))
	assert.Nil(t, out)
}

func TestCompactDate(t *testing.T) {
	assert.Equal(t, "20240601", cii.CompactDate("2024-06-01"))
	assert.Equal(t, "20240601", cii.CompactDate("20240601"))
}
