// Package facturx combines a rendered PDF page with its CII XML into a
// Factur-X document.
package facturx

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/rezonia/facturx-engine/internal/schema"
)

// AttachmentName is the file name Factur-X readers look for
const AttachmentName = "factur-x.xml"

// PDF magic bytes
var pdfMagic = []byte("%PDF")

func init() {
	// pdfcpu must not create a config dir under the user's home
	model.ConfigPath = "disable"
}

// Packager embeds XML into PDF page bytes
type Packager interface {
	Package(ctx context.Context, pdf, xml []byte) ([]byte, error)
}

// PDFCPUPackager attaches the XML with pdfcpu
type PDFCPUPackager struct {
	validator schema.Validator
}

// Option configures a PDFCPUPackager
type Option func(*PDFCPUPackager)

// WithSchemaCheck re-validates the XML before embedding it. A failed
// check aborts packaging; an unavailable validator is ignored.
func WithSchemaCheck(v schema.Validator) Option {
	return func(p *PDFCPUPackager) {
		p.validator = v
	}
}

// NewPDFCPUPackager creates a new packager
func NewPDFCPUPackager(opts ...Option) *PDFCPUPackager {
	p := &PDFCPUPackager{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Package validates the page PDF, optionally checks the XML and returns the
// PDF with the XML attached as factur-x.xml, declared as the document's
// alternative representation in the catalog and the XMP metadata
func (p *PDFCPUPackager) Package(ctx context.Context, pdf, xml []byte) ([]byte, error) {
	conf := newConfiguration()

	if !bytes.HasPrefix(pdf, pdfMagic) {
		return nil, ErrInvalidPDF(nil)
	}
	if err := api.Validate(bytes.NewReader(pdf), conf); err != nil {
		return nil, ErrInvalidPDF(err)
	}

	if p.validator != nil {
		if res := p.validator.Validate(ctx, xml); res.Failed() {
			return nil, ErrSchemaRejected(res.Messages)
		}
	}

	// pdfcpu attaches files from disk, named after their base name
	dir, err := os.MkdirTemp("", "facturx-*")
	if err != nil {
		return nil, ErrAttachFailed(err)
	}
	defer os.RemoveAll(dir)

	xmlPath := filepath.Join(dir, AttachmentName)
	if err := os.WriteFile(xmlPath, xml, 0o600); err != nil {
		return nil, ErrAttachFailed(err)
	}

	var out bytes.Buffer
	if err := api.AddAttachments(bytes.NewReader(pdf), &out, []string{xmlPath}, false, conf); err != nil {
		return nil, ErrAttachFailed(err)
	}
	described, err := describe(out.Bytes(), conf)
	if err != nil {
		return nil, ErrAttachFailed(err)
	}
	return described, nil
}

// Attachments lists the attachment file names of a PDF
func Attachments(pdf []byte) ([]string, error) {
	atts, err := api.Attachments(bytes.NewReader(pdf), newConfiguration())
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(atts))
	for _, a := range atts {
		names = append(names, a.FileName)
	}
	return names, nil
}

// ErrNoXML is returned when a PDF carries no factur-x.xml attachment
var ErrNoXML = errors.New("no factur-x.xml attachment found")

// ExtractXML returns the CII XML embedded in a Factur-X PDF
func ExtractXML(pdf []byte) ([]byte, error) {
	atts, err := api.ExtractAttachmentsRaw(bytes.NewReader(pdf), "", []string{AttachmentName}, newConfiguration())
	if err != nil {
		return nil, ErrInvalidPDF(err)
	}
	for _, a := range atts {
		if a.FileName != AttachmentName || a.Reader == nil {
			continue
		}
		return io.ReadAll(a)
	}
	return nil, ErrNoXML
}

func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}
