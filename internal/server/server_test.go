package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/facturx-engine/internal/facturx"
	"github.com/rezonia/facturx-engine/internal/processor"
	"github.com/rezonia/facturx-engine/internal/render"
	"github.com/rezonia/facturx-engine/internal/schema"
	"github.com/rezonia/facturx-engine/internal/server"
	"github.com/rezonia/facturx-engine/internal/storage"
	"github.com/rezonia/facturx-engine/internal/validation"
)

const invoiceJSON = `{
	"invoice_number": "FAC-2024-001",
	"issue_date": "2024-06-01",
	"due_date": "2024-07-01",
	"seller": {
		"name": "ACME SAS", "siret": "12345678900017", "vat_number": "FR12345678900",
		"address": {"street": "1 rue de la Paix", "city": "Paris", "postal_code": "75001"}
	},
	"buyer": {
		"name": "CLIENT SARL", "siret": "98765432100012", "vat_number": "FR98765432100",
		"address": {"street": "5 avenue Victor Hugo", "city": "Lyon", "postal_code": "69001"}
	},
	"lines": [{"id": "1", "description": "Conseil", "quantity": 1, "unit_price": 100, "vat_rate": 20}],
	"payment_terms": "30 jours",
	"bank_iban": "FR7630006000011234567890189"
}`

const creditNoteJSON = `{
	"invoice_number": "AV-2024-001",
	"original_invoice_number": "FAC-2024-001",
	"issue_date": "2024-06-10",
	"seller": {
		"name": "ACME SAS", "siret": "12345678900017", "vat_number": "FR12345678900",
		"address": {"street": "1 rue de la Paix", "city": "Paris", "postal_code": "75001"}
	},
	"buyer": {
		"name": "CLIENT SARL", "siret": "98765432100012", "vat_number": "FR98765432100",
		"address": {"street": "5 avenue Victor Hugo", "city": "Lyon", "postal_code": "69001"}
	},
	"lines": [{"id": "1", "description": "Remise", "quantity": 1, "unit_price": 10, "vat_rate": 20}]
}`

type stubRenderer struct{}

func (stubRenderer) Render(context.Context, render.Document) ([]byte, error) {
	return []byte("%PDF-1.7 page"), nil
}

type stubPackager struct {
	err error
}

func (p stubPackager) Package(_ context.Context, pdf, _ []byte) ([]byte, error) {
	if p.err != nil {
		return nil, p.err
	}
	return pdf, nil
}

type stubValidator struct {
	result schema.Result
}

func (v stubValidator) Validate(context.Context, []byte) schema.Result {
	return v.result
}

type testEnv struct {
	srv   *server.Server
	store *storage.FSStore
}

func newTestServer(t testing.TB, clients map[string]string, opts ...processor.Option) testEnv {
	t.Helper()
	store := storage.NewFSStore(afero.NewMemMapFs(), "/invoices")

	base := []processor.Option{
		processor.WithRenderer(stubRenderer{}),
		processor.WithPackager(stubPackager{}),
		processor.WithStore(store),
	}
	pipeline := processor.NewPipeline(append(base, opts...)...)

	srv := server.NewServer(&server.Config{
		Address: ":8080",
		Version: "1.0.0",
		Clients: clients,
		Debug:   true,
	}, pipeline, nil)
	return testEnv{srv: srv, store: store}
}

func do(t testing.TB, srv *server.Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestServer(t, map[string]string{"acme": "secret"})

	w := do(t, env.srv, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var response server.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, "1.0.0", response.Version)
	assert.NotEmpty(t, w.Header().Get(server.HeaderRequestID))
}

func TestRequestIDIsEchoed(t *testing.T) {
	env := newTestServer(t, nil)

	w := do(t, env.srv, http.MethodGet, "/health", "", map[string]string{server.HeaderRequestID: "req-42"})
	assert.Equal(t, "req-42", w.Header().Get(server.HeaderRequestID))
}

func TestAPIKeyAuth(t *testing.T) {
	env := newTestServer(t, map[string]string{"acme": "test-key-123"})

	tests := []struct {
		name     string
		headers  map[string]string
		expected int
	}{
		{"missing key", nil, http.StatusForbidden},
		{"wrong key", map[string]string{server.HeaderAPIKey: "fausse-cle"}, http.StatusForbidden},
		{"valid key", map[string]string{server.HeaderAPIKey: "test-key-123"}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, env.srv, http.MethodPost, "/v1/invoice/dry-run", invoiceJSON, tt.headers)
			assert.Equal(t, tt.expected, w.Code)
		})
	}
}

func TestGenerateInvoiceEndpoint(t *testing.T) {
	env := newTestServer(t, nil)

	w := do(t, env.srv, http.MethodPost, "/v1/invoice/generate", invoiceJSON, nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="facture_FAC-2024-001.pdf"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "unavailable", w.Header().Get("X-Schema-Status"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))

	stored, err := env.store.Get(context.Background(), "facture_FAC-2024-001.pdf")
	require.NoError(t, err)
	assert.Equal(t, w.Body.Bytes(), stored)
}

func TestGenerateCreditNoteEndpoint(t *testing.T) {
	env := newTestServer(t, nil)

	w := do(t, env.srv, http.MethodPost, "/v1/credit-note/generate", creditNoteJSON, nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, `attachment; filename="avoir_AV-2024-001.pdf"`, w.Header().Get("Content-Disposition"))
}

func TestGenerateEndpoint_StructuralError(t *testing.T) {
	env := newTestServer(t, nil)

	tests := []struct {
		name  string
		path  string
		body  string
		field string
	}{
		{"empty body", "/v1/invoice/generate", "", "body"},
		{"missing number", "/v1/invoice/generate", `{}`, "invoice_number"},
		{"bad quantity", "/v1/invoice/generate", strings.Replace(invoiceJSON, `"quantity": 1`, `"quantity": "abc"`, 1), "lines[0].quantity"},
		{"credit note without reference", "/v1/credit-note/generate", invoiceJSON, "original_invoice_number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, env.srv, http.MethodPost, tt.path, tt.body, nil)
			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

			var response server.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, tt.field, response.Field)
			assert.NotEmpty(t, response.Error)
		})
	}
}

func TestGenerateEndpoint_SchemaFailed(t *testing.T) {
	env := newTestServer(t, nil, processor.WithSchemaValidator(
		stubValidator{result: schema.FailedResult([]string{"line 3: element X not expected"})},
	))

	w := do(t, env.srv, http.MethodPost, "/v1/invoice/generate", invoiceJSON, nil)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var response server.SchemaErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "XML non conforme EN16931", response.Message)
	assert.Equal(t, []string{"line 3: element X not expected"}, response.Errors)
}

func TestGenerateEndpoint_PackagingFailed(t *testing.T) {
	env := newTestServer(t, nil, processor.WithPackager(stubPackager{err: facturx.ErrInvalidPDF(assert.AnError)}))

	w := do(t, env.srv, http.MethodPost, "/v1/invoice/generate", invoiceJSON, nil)

	assert.Equal(t, http.StatusBadGateway, w.Code)

	var response server.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "packaging failed", response.Error)
	assert.Equal(t, facturx.ErrCodeInvalidPDF, response.Code)
}

func TestDryRunEndpoint(t *testing.T) {
	env := newTestServer(t, nil)

	w := do(t, env.srv, http.MethodPost, "/v1/invoice/dry-run", invoiceJSON, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var report validation.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.True(t, report.Valid)
	assert.Empty(t, report.Errors)
	assert.Equal(t, "100.00", report.Totals.TotalHT)
	assert.Equal(t, "20.00", report.Totals.TotalVAT)
	assert.Equal(t, "120.00", report.Totals.TotalTTC)
	assert.Empty(t, report.XMLPreview)
}

func TestDryRunEndpoint_InvalidStill200(t *testing.T) {
	env := newTestServer(t, nil)
	body := strings.Replace(invoiceJSON, `"siret": "12345678900017"`, `"siret": "123"`, 1)
	body = strings.Replace(body, `"bank_iban": "FR7630006000011234567890189"`, `"bank_iban": ""`, 1)

	w := do(t, env.srv, http.MethodPost, "/v1/invoice/dry-run", body, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var report validation.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.False(t, report.Valid)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "SIRET vendeur invalide")
	assert.NotEmpty(t, report.Warnings)
}

func TestDryRunEndpoint_Preview(t *testing.T) {
	env := newTestServer(t, nil)

	w := do(t, env.srv, http.MethodPost, "/v1/invoice/dry-run?preview=true", invoiceJSON, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var report validation.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Contains(t, report.XMLPreview, "<rsm:CrossIndustryInvoice")
	assert.LessOrEqual(t, len(report.XMLPreview), server.PreviewLimit)
}

func TestDryRunEndpoint_ValueOutOfRange(t *testing.T) {
	env := newTestServer(t, nil)
	body := strings.Replace(invoiceJSON, `"quantity": 1,`, `"quantity": "1e-30000000",`, 1)

	for _, path := range []string{"/v1/invoice/dry-run", "/v1/invoice/dry-run?preview=true", "/v1/invoice/validate-xml"} {
		w := do(t, env.srv, http.MethodPost, path, body, nil)
		require.Equal(t, http.StatusUnprocessableEntity, w.Code, path)

		var response server.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "lines[0].quantity", response.Field)
	}
}

func TestBodyLimit(t *testing.T) {
	srv := server.NewServer(&server.Config{MaxBodyBytes: 64}, processor.NewPipeline(), nil)

	w := do(t, srv, http.MethodPost, "/v1/invoice/dry-run", invoiceJSON, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	var response server.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Contains(t, response.Error, "64 bytes")

	// under the limit the body reaches the decoder
	w = do(t, srv, http.MethodPost, "/v1/invoice/dry-run", `{}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestDryRunCreditNoteEndpoint(t *testing.T) {
	env := newTestServer(t, nil)
	body := strings.Replace(creditNoteJSON, `"original_invoice_number": "FAC-2024-001"`, `"original_invoice_number": "AV-2024-001"`, 1)

	w := do(t, env.srv, http.MethodPost, "/v1/credit-note/dry-run", body, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var report validation.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.False(t, report.Valid)
}

func TestValidateXMLEndpoint(t *testing.T) {
	tests := []struct {
		name   string
		result schema.Result
		valid  bool
		status string
	}{
		{"unavailable", schema.UnavailableResult(), true, "unavailable"},
		{"passed", schema.PassedResult(), true, "passed"},
		{"failed", schema.FailedResult([]string{"bad"}), false, "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestServer(t, nil, processor.WithSchemaValidator(stubValidator{result: tt.result}))

			w := do(t, env.srv, http.MethodPost, "/v1/invoice/validate-xml", invoiceJSON, nil)
			require.Equal(t, http.StatusOK, w.Code)

			var response server.ValidateXMLResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, tt.valid, response.Valid)
			assert.Equal(t, tt.status, response.Status)
			assert.NotNil(t, response.Errors)
			assert.True(t, strings.HasPrefix(response.XMLPreview, "<?xml"))
			assert.LessOrEqual(t, len(response.XMLPreview), server.PreviewLimit)
		})
	}
}

func TestCheckDocumentEndpoint(t *testing.T) {
	env := newTestServer(t, nil, processor.WithSchemaValidator(stubValidator{result: schema.PassedResult()}))

	w := do(t, env.srv, http.MethodPost, "/v1/documents/check", `<?xml version="1.0"?><a/>`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var response server.ValidateXMLResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response.Valid)

	w = do(t, env.srv, http.MethodPost, "/v1/documents/check", "plain text", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAndDownloadInvoices(t *testing.T) {
	env := newTestServer(t, nil)

	w := do(t, env.srv, http.MethodGet, "/v1/invoices", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"invoices":[]}`, w.Body.String())

	w = do(t, env.srv, http.MethodPost, "/v1/invoice/generate", invoiceJSON, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, env.srv, http.MethodGet, "/v1/invoices", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var list server.ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Invoices, 1)
	assert.Equal(t, "facture_FAC-2024-001.pdf", list.Invoices[0].Name)
	assert.Greater(t, list.Invoices[0].Size, int64(0))

	w = do(t, env.srv, http.MethodGet, "/v1/invoices/facture_FAC-2024-001.pdf", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))

	w = do(t, env.srv, http.MethodGet, "/v1/invoices/missing.pdf", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDownloadInvoice_NoStore(t *testing.T) {
	srv := server.NewServer(&server.Config{Version: "1.0.0"}, processor.NewPipeline(), nil)

	w := do(t, srv, http.MethodGet, "/v1/invoices/facture_1.pdf", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, srv, http.MethodGet, "/v1/invoices", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func BenchmarkDryRun(b *testing.B) {
	env := newTestServer(b, nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		do(b, env.srv, http.MethodPost, "/v1/invoice/dry-run", invoiceJSON, nil)
	}
}

func BenchmarkHealth(b *testing.B) {
	env := newTestServer(b, nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		do(b, env.srv, http.MethodGet, "/health", "", nil)
	}
}
