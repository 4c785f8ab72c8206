package schema

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// Exit status used by xmllint when the schema itself cannot be compiled
const xmllintSchemaCompileError = 5

// XMLLintValidator validates documents by piping them to xmllint
type XMLLintValidator struct {
	xsdPath     string
	xmllintPath string
	available   bool
	timeout     time.Duration
}

// XMLLintOption configures an XMLLintValidator
type XMLLintOption func(*XMLLintValidator)

// WithXMLLintPath uses the given binary instead of searching for xmllint
func WithXMLLintPath(path string) XMLLintOption {
	return func(v *XMLLintValidator) {
		v.xmllintPath = path
	}
}

// WithTimeout bounds each xmllint run
func WithTimeout(d time.Duration) XMLLintOption {
	return func(v *XMLLintValidator) {
		v.timeout = d
	}
}

// NewXMLLintValidator creates a validator for the XSD at xsdPath. The
// validator is unavailable when the XSD or the binary cannot be found.
func NewXMLLintValidator(xsdPath string, opts ...XMLLintOption) *XMLLintValidator {
	v := &XMLLintValidator{
		xsdPath: xsdPath,
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(v)
	}

	path, found := detectXMLLint(v.xmllintPath)
	v.xmllintPath = path
	v.available = found && schemaExists(xsdPath)
	return v
}

// Validate runs xmllint on data
func (v *XMLLintValidator) Validate(ctx context.Context, data []byte) Result {
	if !v.available {
		return UnavailableResult()
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, v.xmllintPath, "--noout", "--schema", v.xsdPath, "-")
	cmd.Stdin = bytes.NewReader(data)
	var stderr bytes.Buffer
	cmd.Stdout = &stderr
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return PassedResult()
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		// xmllint did not run to completion
		return UnavailableResult()
	}
	if exitErr.ExitCode() == xmllintSchemaCompileError {
		return UnavailableResult()
	}

	messages := ParseXMLLintOutput(stderr.String())
	if len(messages) == 0 {
		messages = []string{fmt.Sprintf("xmllint exited with status %d", exitErr.ExitCode())}
	}
	return FailedResult(messages)
}

// IsAvailable returns whether the check can run
func (v *XMLLintValidator) IsAvailable() bool {
	return v.available
}

// XMLLintPath returns the detected binary (for testing/debugging)
func (v *XMLLintValidator) XMLLintPath() string {
	return v.xmllintPath
}

// detectXMLLint looks for xmllint in common locations
func detectXMLLint(explicit string) (string, bool) {
	if explicit != "" {
		if path, err := exec.LookPath(explicit); err == nil {
			return path, true
		}
		return explicit, false
	}

	paths := []string{
		"xmllint",                   // PATH
		"/usr/bin/xmllint",          // Linux
		"/opt/homebrew/bin/xmllint", // macOS Homebrew ARM
		"/usr/local/bin/xmllint",    // macOS Homebrew Intel
	}
	for _, p := range paths {
		if path, err := exec.LookPath(p); err == nil {
			return path, true
		}
	}
	return "", false
}

func schemaExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
