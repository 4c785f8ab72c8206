package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const invoiceJSON = `{
	"invoice_number": "F-001",
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

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestDryRunCommand_JSON(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "invoice.json", invoiceJSON)

	out, err := execute(t, "dry-run", file, "-f", "json", "--credit-note=false", "--preview=false")
	require.NoError(t, err)

	var results []DryRunResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.True(t, results[0].OK())
	assert.Equal(t, "120.00", results[0].Report.Totals.TotalTTC)
}

func TestDryRunCommand_YAMLInvalid(t *testing.T) {
	dir := t.TempDir()
	body := strings.Replace(invoiceJSON, `"issue_date": "2024-06-01"`, `"issue_date": "01/06/2024"`, 1)
	file := writeFile(t, dir, "bad.json", body)

	out, err := execute(t, "dry-run", file, "-f", "yaml", "--credit-note=false", "--preview=false")
	require.Error(t, err)

	var results []DryRunResult
	require.NoError(t, yaml.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	require.NotNil(t, results[0].Report)
	assert.False(t, results[0].Report.Valid)
	assert.Contains(t, results[0].Report.Errors[0], "Date d'émission invalide")
}

func TestDryRunCommand_StructuralError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "empty.json", `{}`)
	writeFile(t, dir, "notes.txt", "ignored")

	out, err := execute(t, "dry-run", dir, "-f", "json", "--credit-note=false", "--preview=false")
	require.Error(t, err)

	var results []DryRunResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "invoice_number", results[0].Field)
}

func TestDryRunCommand_Table(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "invoice.json", invoiceJSON)

	out, err := execute(t, "dry-run", file, "-f", "table", "--credit-note=false", "--preview=false")
	require.NoError(t, err)
	assert.Contains(t, out, "VALID")
	assert.Contains(t, out, "120.00")
}

func TestXMLCommand(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "invoice.json", invoiceJSON)

	out, err := execute(t, "xml", file, "--credit-note=false", "--output=")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "<?xml"))
	assert.Contains(t, out, "<ram:TypeCode>380</ram:TypeCode>")
}

func TestXMLCommand_CreditNote(t *testing.T) {
	dir := t.TempDir()
	body := strings.Replace(invoiceJSON, `"invoice_number": "F-001",`,
		`"invoice_number": "AV-001", "original_invoice_number": "F-001",`, 1)
	file := writeFile(t, dir, "avoir.json", body)
	target := filepath.Join(dir, "avoir.xml")

	_, err := execute(t, "xml", file, "--credit-note", "-o", target)
	require.NoError(t, err)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<ram:TypeCode>381</ram:TypeCode>")
}

func TestValidateXMLCommand_Unavailable(t *testing.T) {
	t.Setenv("XSD_PATH", "")
	dir := t.TempDir()
	file := writeFile(t, dir, "facture.xml", `<?xml version="1.0"?><a/>`)

	out, err := execute(t, "validate-xml", file, "-f", "json")
	require.NoError(t, err)

	var result XMLCheckResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Valid)
	assert.Equal(t, "unavailable", string(result.Status))
}

func TestValidateXMLCommand_Malformed(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "broken.xml", `<a><b></a>`)

	_, err := execute(t, "validate-xml", file, "-f", "json")
	assert.Error(t, err)
}

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", "{}")
	writeFile(t, dir, "b.JSON", "{}")
	writeFile(t, dir, "c.xml", "<a/>")

	files, err := collectFiles([]string{dir}, ".json")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	files, err = collectFiles([]string{filepath.Join(dir, "*.xml")}, ".xml")
	require.NoError(t, err)
	assert.Len(t, files, 1)

	_, err = collectFiles([]string{filepath.Join(dir, "missing.json")}, ".json")
	assert.Error(t, err)
}
