package processor

import "bytes"

// Format represents a detected input document format
type Format int

const (
	FormatUnknown Format = iota
	FormatXML
	FormatPDF
)

// String returns the format name
func (f Format) String() string {
	switch f {
	case FormatXML:
		return "xml"
	case FormatPDF:
		return "pdf"
	default:
		return "unknown"
	}
}

// DetectFormat detects the format from magic bytes
func DetectFormat(data []byte) Format {
	trimmed := bytes.TrimLeft(data, " \t\r\n\xef\xbb\xbf")
	switch {
	case bytes.HasPrefix(trimmed, []byte("%PDF")):
		return FormatPDF
	case bytes.HasPrefix(trimmed, []byte("<")):
		return FormatXML
	default:
		return FormatUnknown
	}
}
