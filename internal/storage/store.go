// Package storage persists generated documents keyed by file name.
//
// Writes are last-write-wins: concurrent generations of the same invoice
// number overwrite each other and no locking is performed.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrNotFound is returned when a document does not exist
var ErrNotFound = errors.New("document not found")

// Object describes a stored document
type Object struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Store persists documents
type Store interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	List(ctx context.Context) ([]Object, error)
}

// Error wraps a backend failure with the operation and document name
type Error struct {
	Op    string
	Name  string
	Cause error
}

func (e *Error) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("storage %s %s: %v", e.Op, e.Name, e.Cause)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new storage error
func NewError(op, name string, cause error) *Error {
	return &Error{Op: op, Name: name, Cause: cause}
}

var foldAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// FileName builds a safe document name such as "facture_F-2024-001.pdf".
// Accents are folded and anything outside [A-Za-z0-9._-] becomes "_".
func FileName(prefix, number string) string {
	folded, _, err := transform.String(foldAccents, number)
	if err != nil {
		folded = number
	}

	var b strings.Builder
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	name := b.String()
	for strings.Contains(name, "..") {
		name = strings.ReplaceAll(name, "..", ".")
	}
	name = strings.TrimLeft(name, ".")
	if name == "" {
		name = "_"
	}
	return prefix + "_" + name + ".pdf"
}

// ValidName reports whether name can be used as a document key: no path
// separators, no parent references, no hidden files.
func ValidName(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return false
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}
