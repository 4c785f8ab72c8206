package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rezonia/facturx-engine/internal/cii"
	"github.com/rezonia/facturx-engine/internal/facturx"
	"github.com/rezonia/facturx-engine/internal/model"
	"github.com/rezonia/facturx-engine/internal/processor"
	"github.com/rezonia/facturx-engine/internal/storage"
	"github.com/rezonia/facturx-engine/internal/validation"
)

const (
	generateTimeout = 2 * time.Minute
	checkTimeout    = 30 * time.Second
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: s.config.Version,
	})
}

func (s *Server) handleGenerateInvoice(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	inv, err := model.DecodeInvoice(body)
	if err != nil {
		s.respondError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), generateTimeout)
	defer cancel()

	result, err := s.pipeline.GenerateInvoice(ctx, inv)
	if err != nil {
		s.respondError(c, err)
		return
	}
	sendPDF(c, result)
}

func (s *Server) handleGenerateCreditNote(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	cn, err := model.DecodeCreditNote(body)
	if err != nil {
		s.respondError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), generateTimeout)
	defer cancel()

	result, err := s.pipeline.GenerateCreditNote(ctx, cn)
	if err != nil {
		s.respondError(c, err)
		return
	}
	sendPDF(c, result)
}

// handleDryRunInvoice always answers 200 with the report, valid or not.
// ?preview=true attaches the first bytes of the XML.
func (s *Server) handleDryRunInvoice(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	inv, err := model.DecodeInvoice(body)
	if err != nil {
		s.respondError(c, err)
		return
	}

	report, err := s.engine(c).DryRun(inv)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleDryRunCreditNote(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	cn, err := model.DecodeCreditNote(body)
	if err != nil {
		s.respondError(c, err)
		return
	}

	report, err := s.engine(c).DryRunCreditNote(cn)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleValidateXML(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	inv, err := model.DecodeInvoice(body)
	if err != nil {
		s.respondError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()

	check, err := s.pipeline.ValidateXML(ctx, inv)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, xmlCheckResponse(check))
}

// handleCheckDocument checks an uploaded CII XML file or Factur-X PDF
func (s *Server) handleCheckDocument(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}
	if processor.DetectFormat(body) == processor.FormatUnknown {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unsupported file format"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()

	check, err := s.pipeline.CheckDocument(ctx, body)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "no Factur-X XML found",
			Details: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, xmlCheckResponse(check))
}

func (s *Server) handleListInvoices(c *gin.Context) {
	files := []InvoiceFile{}

	store := s.pipeline.Store()
	if store != nil {
		objects, err := store.List(c.Request.Context())
		if err != nil {
			s.respondError(c, err)
			return
		}
		for _, o := range objects {
			files = append(files, InvoiceFile{Name: o.Name, Size: o.Size, Modified: o.Modified})
		}
	}

	c.JSON(http.StatusOK, ListResponse{Invoices: files})
}

func (s *Server) handleGetInvoice(c *gin.Context) {
	name := c.Param("name")

	store := s.pipeline.Store()
	if store == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "document introuvable"})
		return
	}

	data, err := store.Get(c.Request.Context(), name)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, "application/pdf", data)
}

// respondError maps pipeline and input errors to HTTP responses
func (s *Server) respondError(c *gin.Context, err error) {
	var (
		structErr  *model.StructuralError
		schemaErr  *processor.SchemaError
		packErr    *facturx.PackagingError
		storageErr *storage.Error
	)

	switch {
	case errors.As(err, &structErr):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: structErr.Error(),
			Field: structErr.Field,
		})
	case errors.As(err, &schemaErr):
		c.JSON(http.StatusUnprocessableEntity, SchemaErrorResponse{
			Message: processor.SchemaMessage,
			Errors:  schemaErr.Messages,
		})
	case errors.As(err, &packErr):
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "packaging failed",
			Code:    packErr.Code,
			Details: packErr.Message,
			Errors:  packErr.Messages,
		})
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "document introuvable"})
	case errors.As(err, &storageErr):
		s.log.Error().Err(err).Msg("storage failure")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "storage failure"})
	case errors.Is(err, cii.ErrSerialization):
		s.log.Error().Err(err).Msg("serialization defect")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "serialization failed", Details: err.Error()})
	default:
		s.log.Error().Err(err).Msg("request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

func readBody(c *gin.Context) ([]byte, bool) {
	body, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
				Error: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			})
			return nil, false
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "failed to read request body"})
		return nil, false
	}
	return body, true
}

func sendPDF(c *gin.Context, result *processor.Result) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, result.Filename))
	c.Header("X-Schema-Status", string(result.Schema.Status))
	c.Data(http.StatusOK, "application/pdf", result.PDF)
}

// engine picks the dry-run engine for the request
func (s *Server) engine(c *gin.Context) *validation.Engine {
	if wantPreview(c) {
		return s.preview
	}
	return s.dryRun
}

func wantPreview(c *gin.Context) bool {
	switch c.Query("preview") {
	case "1", "true", "yes":
		return true
	}
	return false
}

func xmlCheckResponse(check *processor.XMLCheck) ValidateXMLResponse {
	errs := check.Schema.Messages
	if errs == nil {
		errs = []string{}
	}
	return ValidateXMLResponse{
		Valid:      !check.Schema.Failed(),
		Status:     string(check.Schema.Status),
		Errors:     errs,
		XMLPreview: validation.Truncate(check.XML, PreviewLimit),
	}
}
