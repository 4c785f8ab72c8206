package facturx

import (
	"bytes"
	"errors"

	"github.com/beevik/etree"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Factur-X profile declared in the XMP packet
const (
	DocumentType     = "INVOICE"
	Version          = "1.0"
	ConformanceLevel = "EXTENDED"

	// Relationship is the AFRelationship of factur-x.xml for the
	// EN16931 and EXTENDED profiles
	Relationship = "Alternative"
)

// XMP namespaces
const (
	nsX       = "adobe:ns:meta/"
	nsRDF     = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	nsDC      = "http://purl.org/dc/elements/1.1/"
	nsPDF     = "http://ns.adobe.com/pdf/1.3/"
	nsPDFAID  = "http://www.aiim.org/pdfa/ns/id/"
	nsPDFAExt = "http://www.aiim.org/pdfa/ns/extension/"
	nsPDFAS   = "http://www.aiim.org/pdfa/ns/schema#"
	nsPDFAP   = "http://www.aiim.org/pdfa/ns/property#"
	nsFX      = "urn:factur-x:pdfa:CrossIndustryDocument:invoice:1p0#"
)

var errNoFileSpec = errors.New("factur-x.xml file specification not found")

// Properties are the document-level properties of a Factur-X PDF
type Properties struct {
	Title    string
	Author   string
	Subject  string
	Keywords string

	// Relationship is the AFRelationship of the factur-x.xml file spec
	Relationship string
	// Associated is set when the catalog /AF array lists factur-x.xml
	Associated bool
	// Metadata is set when the catalog carries an XMP stream
	Metadata bool
}

// describe marks factur-x.xml as an associated file of the document and
// attaches the Factur-X XMP packet to the catalog
func describe(pdf []byte, conf *model.Configuration) ([]byte, error) {
	ctx, err := api.ReadContext(bytes.NewReader(pdf), conf)
	if err != nil {
		return nil, err
	}
	catalog, err := ctx.Catalog()
	if err != nil {
		return nil, err
	}

	ref, spec, err := fileSpec(ctx, catalog)
	if err != nil {
		return nil, err
	}
	if spec == nil {
		return nil, errNoFileSpec
	}
	spec["AFRelationship"] = types.Name(Relationship)
	catalog["AF"] = types.Array{ref}

	packet, err := xmpPacket(info(ctx))
	if err != nil {
		return nil, err
	}
	sd := types.NewStreamDict(types.Dict{
		"Type":    types.Name("Metadata"),
		"Subtype": types.Name("XML"),
	}, 0, nil, nil, nil)
	sd.Content = packet
	if err := sd.Encode(); err != nil {
		return nil, err
	}
	metaRef, err := ctx.IndRefForNewObject(sd)
	if err != nil {
		return nil, err
	}
	catalog["Metadata"] = *metaRef

	var out bytes.Buffer
	if err := api.WriteContext(ctx, &out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Describe reads back the Factur-X properties of a PDF
func Describe(pdf []byte) (*Properties, error) {
	ctx, err := api.ReadContext(bytes.NewReader(pdf), newConfiguration())
	if err != nil {
		return nil, ErrInvalidPDF(err)
	}
	catalog, err := ctx.Catalog()
	if err != nil {
		return nil, ErrInvalidPDF(err)
	}

	p := info(ctx)
	_, p.Metadata = catalog["Metadata"]

	ref, spec, err := fileSpec(ctx, catalog)
	if err != nil || spec == nil {
		return &p, nil
	}
	if rel, ok := spec["AFRelationship"].(types.Name); ok {
		p.Relationship = string(rel)
	}
	af, _ := ctx.DereferenceArray(catalog["AF"])
	for _, o := range af {
		if r, ok := o.(types.IndirectRef); ok && r.ObjectNumber == ref.ObjectNumber {
			p.Associated = true
		}
	}
	return &p, nil
}

// fileSpec walks the EmbeddedFiles name tree for factur-x.xml
func fileSpec(ctx *model.Context, catalog types.Dict) (types.IndirectRef, types.Dict, error) {
	names, err := ctx.DereferenceDict(catalog["Names"])
	if err != nil || names == nil {
		return types.IndirectRef{}, nil, err
	}
	tree, err := ctx.DereferenceDict(names["EmbeddedFiles"])
	if err != nil || tree == nil {
		return types.IndirectRef{}, nil, err
	}
	return findInTree(ctx, tree)
}

func findInTree(ctx *model.Context, node types.Dict) (types.IndirectRef, types.Dict, error) {
	entries, err := ctx.DereferenceArray(node["Names"])
	if err != nil {
		return types.IndirectRef{}, nil, err
	}
	for i := 0; i+1 < len(entries); i += 2 {
		if literal(entries[i]) != AttachmentName {
			continue
		}
		ref, ok := entries[i+1].(types.IndirectRef)
		if !ok {
			continue
		}
		spec, err := ctx.DereferenceDict(ref)
		if err != nil {
			return types.IndirectRef{}, nil, err
		}
		return ref, spec, nil
	}

	kids, err := ctx.DereferenceArray(node["Kids"])
	if err != nil {
		return types.IndirectRef{}, nil, err
	}
	for _, kid := range kids {
		d, err := ctx.DereferenceDict(kid)
		if err != nil || d == nil {
			continue
		}
		if ref, spec, err := findInTree(ctx, d); err != nil || spec != nil {
			return ref, spec, err
		}
	}
	return types.IndirectRef{}, nil, nil
}

// info reads the document information dictionary
func info(ctx *model.Context) Properties {
	var p Properties
	if ctx.Info == nil {
		return p
	}
	d, err := ctx.DereferenceDict(*ctx.Info)
	if err != nil || d == nil {
		return p
	}
	p.Title = literal(d["Title"])
	p.Author = literal(d["Author"])
	p.Subject = literal(d["Subject"])
	p.Keywords = literal(d["Keywords"])
	return p
}

func literal(o types.Object) string {
	switch v := o.(type) {
	case types.StringLiteral:
		if s, err := types.StringLiteralToString(v); err == nil {
			return s
		}
	case types.HexLiteral:
		if s, err := types.HexLiteralToString(v); err == nil {
			return s
		}
	}
	return ""
}

// xmpPacket builds the PDF/A-3 identification, the document properties and
// the Factur-X extension schema
func xmpPacket(p Properties) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xpacket", `begin="`+"\ufeff"+`" id="W5M0MpCehiHzreSzNTczkc9d"`)

	meta := doc.CreateElement("x:xmpmeta")
	meta.CreateAttr("xmlns:x", nsX)
	rdf := meta.CreateElement("rdf:RDF")
	rdf.CreateAttr("xmlns:rdf", nsRDF)

	aid := description(rdf, "pdfaid", nsPDFAID)
	aid.CreateElement("pdfaid:part").SetText("3")
	aid.CreateElement("pdfaid:conformance").SetText("B")

	dc := description(rdf, "dc", nsDC)
	langAlt(dc, "dc:title", p.Title)
	creator := dc.CreateElement("dc:creator").CreateElement("rdf:Seq")
	creator.CreateElement("rdf:li").SetText(p.Author)
	langAlt(dc, "dc:description", p.Subject)

	pdf := description(rdf, "pdf", nsPDF)
	pdf.CreateElement("pdf:Keywords").SetText(p.Keywords)

	fx := description(rdf, "fx", nsFX)
	fx.CreateElement("fx:DocumentType").SetText(DocumentType)
	fx.CreateElement("fx:DocumentFileName").SetText(AttachmentName)
	fx.CreateElement("fx:Version").SetText(Version)
	fx.CreateElement("fx:ConformanceLevel").SetText(ConformanceLevel)

	extensionSchema(rdf)

	doc.CreateProcInst("xpacket", `end="w"`)
	doc.Indent(1)
	return doc.WriteToBytes()
}

func description(rdf *etree.Element, prefix, ns string) *etree.Element {
	d := rdf.CreateElement("rdf:Description")
	d.CreateAttr("rdf:about", "")
	d.CreateAttr("xmlns:"+prefix, ns)
	return d
}

func langAlt(parent *etree.Element, tag, value string) {
	li := parent.CreateElement(tag).CreateElement("rdf:Alt").CreateElement("rdf:li")
	li.CreateAttr("xml:lang", "x-default")
	li.SetText(value)
}

// extensionSchema declares the fx properties for PDF/A validators
func extensionSchema(rdf *etree.Element) {
	d := description(rdf, "pdfaExtension", nsPDFAExt)
	d.CreateAttr("xmlns:pdfaSchema", nsPDFAS)
	d.CreateAttr("xmlns:pdfaProperty", nsPDFAP)

	schema := d.CreateElement("pdfaExtension:schemas").CreateElement("rdf:Bag").CreateElement("rdf:li")
	schema.CreateAttr("rdf:parseType", "Resource")
	schema.CreateElement("pdfaSchema:schema").SetText("Factur-X PDFA Extension Schema")
	schema.CreateElement("pdfaSchema:namespaceURI").SetText(nsFX)
	schema.CreateElement("pdfaSchema:prefix").SetText("fx")

	props := schema.CreateElement("pdfaSchema:property").CreateElement("rdf:Seq")
	for _, prop := range []struct{ name, desc string }{
		{"DocumentFileName", "name of the embedded XML invoice file"},
		{"DocumentType", "INVOICE"},
		{"Version", "The actual version of the Factur-X XML schema"},
		{"ConformanceLevel", "The conformance level of the embedded Factur-X data"},
	} {
		li := props.CreateElement("rdf:li")
		li.CreateAttr("rdf:parseType", "Resource")
		li.CreateElement("pdfaProperty:name").SetText(prop.name)
		li.CreateElement("pdfaProperty:valueType").SetText("Text")
		li.CreateElement("pdfaProperty:category").SetText("external")
		li.CreateElement("pdfaProperty:description").SetText(prop.desc)
	}
}
