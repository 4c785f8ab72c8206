package facturx

import (
	"context"

	packaging "github.com/rezonia/facturx-engine/internal/facturx"
	"github.com/rezonia/facturx-engine/internal/processor"
	"github.com/rezonia/facturx-engine/internal/render"
	"github.com/rezonia/facturx-engine/internal/schema"
	"github.com/rezonia/facturx-engine/internal/storage"
)

// Options configures a Generator
type Options struct {
	// XSDPath enables the schema check with xmllint. Empty disables it.
	XSDPath     string
	XMLLintPath string

	// CheckInPackager re-checks the XML right before it is embedded
	CheckInPackager bool

	// StoreDir keeps a copy of every generated PDF. Empty disables storage.
	StoreDir string

	// Author is written to the PDF metadata
	Author string
}

// DefaultOptions returns options without schema check or storage
func DefaultOptions() Options {
	return Options{
		CheckInPackager: true,
		Author:          render.DefaultAuthor,
	}
}

// Document is a generated Factur-X PDF
type Document struct {
	Filename string
	PDF      []byte
	XML      []byte
	Schema   SchemaResult
	Stored   bool
}

// Generator produces Factur-X documents
type Generator struct {
	pipeline *processor.Pipeline
}

// NewGenerator creates a generator with the given options
func NewGenerator(opts Options) *Generator {
	validator := schema.Unavailable()
	if opts.XSDPath != "" {
		var lintOpts []schema.XMLLintOption
		if opts.XMLLintPath != "" {
			lintOpts = append(lintOpts, schema.WithXMLLintPath(opts.XMLLintPath))
		}
		validator = schema.NewXMLLintValidator(opts.XSDPath, lintOpts...)
	}

	var packOpts []packaging.Option
	if opts.CheckInPackager {
		packOpts = append(packOpts, packaging.WithSchemaCheck(validator))
	}

	var renderOpts []render.Option
	if opts.Author != "" {
		renderOpts = append(renderOpts, render.WithAuthor(opts.Author))
	}

	pipelineOpts := []processor.Option{
		processor.WithRenderer(render.NewMarotoRenderer(renderOpts...)),
		processor.WithPackager(packaging.NewPDFCPUPackager(packOpts...)),
		processor.WithSchemaValidator(validator),
	}
	if opts.StoreDir != "" {
		pipelineOpts = append(pipelineOpts, processor.WithStore(storage.NewOSStore(opts.StoreDir)))
	}

	return &Generator{pipeline: processor.NewPipeline(pipelineOpts...)}
}

// NewDefaultGenerator creates a generator with default options
func NewDefaultGenerator() *Generator {
	return NewGenerator(DefaultOptions())
}

// Generate produces the Factur-X PDF of an invoice
func (g *Generator) Generate(ctx context.Context, inv *Invoice) (*Document, error) {
	result, err := g.pipeline.GenerateInvoice(ctx, inv)
	if err != nil {
		return nil, err
	}
	return toDocument(result), nil
}

// GenerateCreditNote produces the Factur-X PDF of a credit note
func (g *Generator) GenerateCreditNote(ctx context.Context, cn *CreditNote) (*Document, error) {
	result, err := g.pipeline.GenerateCreditNote(ctx, cn)
	if err != nil {
		return nil, err
	}
	return toDocument(result), nil
}

// ValidateXML serializes an invoice and runs the schema check only
func (g *Generator) ValidateXML(ctx context.Context, inv *Invoice) (SchemaResult, []byte, error) {
	check, err := g.pipeline.ValidateXML(ctx, inv)
	if err != nil {
		return SchemaResult{}, nil, err
	}
	return check.Schema, check.XML, nil
}

// Check validates an existing CII XML file or Factur-X PDF
func (g *Generator) Check(ctx context.Context, data []byte) (SchemaResult, error) {
	check, err := g.pipeline.CheckDocument(ctx, data)
	if err != nil {
		return SchemaResult{}, err
	}
	return check.Schema, nil
}

func toDocument(r *processor.Result) *Document {
	return &Document{
		Filename: r.Filename,
		PDF:      r.PDF,
		XML:      r.XML,
		Schema:   r.Schema,
		Stored:   r.Stored,
	}
}
