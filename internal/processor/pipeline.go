// Package processor runs the document generation pipeline: serialize the
// invoice, check the XML, render the page, package both into Factur-X and
// store the result.
package processor

import (
	"context"
	"fmt"

	"github.com/beevik/etree"

	"github.com/rezonia/facturx-engine/internal/cii"
	"github.com/rezonia/facturx-engine/internal/facturx"
	"github.com/rezonia/facturx-engine/internal/logger"
	"github.com/rezonia/facturx-engine/internal/model"
	"github.com/rezonia/facturx-engine/internal/render"
	"github.com/rezonia/facturx-engine/internal/schema"
	"github.com/rezonia/facturx-engine/internal/storage"
)

// File name prefixes of generated documents
const (
	PrefixInvoice    = "facture"
	PrefixCreditNote = "avoir"
)

// Result contains a generated document
type Result struct {
	Filename string
	XML      []byte
	PDF      []byte
	Schema   schema.Result
	Stored   bool
}

// XMLCheck is the outcome of serializing and checking an invoice without
// producing a PDF
type XMLCheck struct {
	XML    []byte
	Schema schema.Result
}

// Pipeline orchestrates document generation
type Pipeline struct {
	renderer  render.Renderer
	packager  facturx.Packager
	validator schema.Validator
	store     storage.Store
	log       *logger.Logger
}

// Option configures the pipeline
type Option func(*Pipeline)

// WithRenderer sets the page renderer
func WithRenderer(r render.Renderer) Option {
	return func(p *Pipeline) {
		p.renderer = r
	}
}

// WithPackager sets the Factur-X packager
func WithPackager(pk facturx.Packager) Option {
	return func(p *Pipeline) {
		p.packager = pk
	}
}

// WithSchemaValidator sets the XSD validator
func WithSchemaValidator(v schema.Validator) Option {
	return func(p *Pipeline) {
		p.validator = v
	}
}

// WithStore persists generated documents. Without a store nothing is kept.
func WithStore(s storage.Store) Option {
	return func(p *Pipeline) {
		p.store = s
	}
}

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(p *Pipeline) {
		p.log = l
	}
}

// NewPipeline creates a new pipeline
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{
		renderer:  render.NewMarotoRenderer(),
		packager:  facturx.NewPDFCPUPackager(),
		validator: schema.Unavailable(),
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.Component("pipeline")
	return p
}

// Store returns the configured store, or nil
func (p *Pipeline) Store() storage.Store {
	return p.store
}

// GenerateInvoice produces the Factur-X PDF of an invoice
func (p *Pipeline) GenerateInvoice(ctx context.Context, inv *model.Invoice) (*Result, error) {
	xml, err := cii.Serialize(inv, model.DocumentTypeInvoice)
	if err != nil {
		return nil, err
	}
	return p.generate(ctx, render.InvoiceDocument(inv), xml, PrefixInvoice)
}

// GenerateCreditNote produces the Factur-X PDF of a credit note
func (p *Pipeline) GenerateCreditNote(ctx context.Context, cn *model.CreditNote) (*Result, error) {
	xml, err := cii.SerializeCreditNote(cn)
	if err != nil {
		return nil, err
	}
	return p.generate(ctx, render.CreditNoteDocument(cn), xml, PrefixCreditNote)
}

func (p *Pipeline) generate(ctx context.Context, doc render.Document, xml []byte, prefix string) (*Result, error) {
	number := doc.Invoice.Number
	log := p.log.With().Str("invoice", number).Str("type", string(doc.Type)).Logger()
	log.Info().Int("bytes", len(xml)).Msg("xml generated")

	check := p.validator.Validate(ctx, xml)
	switch check.Status {
	case schema.StatusFailed:
		log.Error().Strs("errors", check.Messages).Msg("xml rejected by schema")
		return nil, NewSchemaError(check.Messages)
	case schema.StatusUnavailable:
		log.Warn().Msg("schema check skipped")
	default:
		log.Info().Msg("xml passed schema check")
	}

	page, err := p.renderer.Render(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("render failed: %w", err)
	}
	log.Info().Int("bytes", len(page)).Msg("pdf rendered")

	pdf, err := p.packager.Package(ctx, page, xml)
	if err != nil {
		log.Error().Err(err).Msg("packaging failed")
		return nil, err
	}
	log.Info().Int("bytes", len(pdf)).Msg("factur-x built")

	result := &Result{
		Filename: storage.FileName(prefix, number),
		XML:      xml,
		PDF:      pdf,
		Schema:   check,
	}

	if p.store != nil {
		if err := p.store.Put(ctx, result.Filename, pdf); err != nil {
			// the caller still receives the document
			log.Error().Err(err).Str("file", result.Filename).Msg("failed to store document")
		} else {
			result.Stored = true
			log.Info().Str("file", result.Filename).Msg("document stored")
		}
	}
	return result, nil
}

// ValidateXML serializes inv and runs the schema check
func (p *Pipeline) ValidateXML(ctx context.Context, inv *model.Invoice) (*XMLCheck, error) {
	xml, err := cii.Serialize(inv, model.DocumentTypeInvoice)
	if err != nil {
		return nil, err
	}
	return &XMLCheck{XML: xml, Schema: p.validator.Validate(ctx, xml)}, nil
}

// ValidateCreditNoteXML is ValidateXML for credit notes
func (p *Pipeline) ValidateCreditNoteXML(ctx context.Context, cn *model.CreditNote) (*XMLCheck, error) {
	xml, err := cii.SerializeCreditNote(cn)
	if err != nil {
		return nil, err
	}
	return &XMLCheck{XML: xml, Schema: p.validator.Validate(ctx, xml)}, nil
}

// CheckDocument checks an existing CII XML file, or the XML embedded in a
// Factur-X PDF. Malformed XML is reported as a failed check.
func (p *Pipeline) CheckDocument(ctx context.Context, data []byte) (*XMLCheck, error) {
	xml := data
	switch DetectFormat(data) {
	case FormatPDF:
		extracted, err := facturx.ExtractXML(data)
		if err != nil {
			return nil, err
		}
		xml = extracted
	case FormatUnknown:
		return nil, fmt.Errorf("unsupported document format")
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xml); err != nil {
		return &XMLCheck{XML: xml, Schema: schema.FailedResult([]string{"XML malformé : " + err.Error()})}, nil
	}
	return &XMLCheck{XML: xml, Schema: p.validator.Validate(ctx, xml)}, nil
}
