package validation

// Totals are the computed invoice amounts, rendered with two decimals
type Totals struct {
	TotalHT  string `json:"total_ht" yaml:"total_ht"`
	TotalVAT string `json:"total_vat" yaml:"total_vat"`
	TotalTTC string `json:"total_ttc" yaml:"total_ttc"`
}

// Report is the outcome of a dry run. Errors make the invoice non-issuable,
// warnings never do. Both keep the order in which rules were evaluated.
type Report struct {
	Valid      bool     `json:"valid" yaml:"valid"`
	Errors     []string `json:"errors" yaml:"errors"`
	Warnings   []string `json:"warnings" yaml:"warnings"`
	Totals     Totals   `json:"totals" yaml:"totals"`
	XMLPreview string   `json:"xml_preview,omitempty" yaml:"xml_preview,omitempty"`
}

// NewReport creates an empty, valid report
func NewReport() *Report {
	return &Report{
		Valid:    true,
		Errors:   make([]string, 0),
		Warnings: make([]string, 0),
	}
}

// AddError records a blocking rule violation and marks the report invalid
func (r *Report) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Valid = false
}

// AddWarning records an advisory finding
func (r *Report) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// HasWarnings returns true if the report carries warnings
func (r *Report) HasWarnings() bool {
	return len(r.Warnings) > 0
}
