package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rezonia/facturx-engine/internal/model"
	"github.com/rezonia/facturx-engine/internal/validation"
)

var withPreview bool

var dryRunCmd = &cobra.Command{
	Use:   "dry-run [files...]",
	Short: "Check JSON invoices against the French rules",
	Long: `Check one or more JSON invoice records without producing any document.

Checks performed:
  - SIRET (14 digits), VAT number and IBAN formats
  - Issue and due dates (YYYY-MM-DD, due date not before issue date)
  - Currency, countries, postcodes
  - Line quantities, prices, VAT rates and units

Examples:
  facturx dry-run invoice.json
  facturx dry-run invoices/ -f yaml
  facturx dry-run avoir.json --credit-note --preview -f json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDryRun,
}

func init() {
	rootCmd.AddCommand(dryRunCmd)

	dryRunCmd.Flags().BoolVar(&creditNote, "credit-note", false, "Inputs are credit notes")
	dryRunCmd.Flags().BoolVar(&withPreview, "preview", false, "Attach the beginning of the XML to each report")
}

// DryRunResult holds the report of a single file
type DryRunResult struct {
	File   string             `json:"file" yaml:"file"`
	Report *validation.Report `json:"report,omitempty" yaml:"report,omitempty"`
	Error  string             `json:"error,omitempty" yaml:"error,omitempty"`
	Field  string             `json:"field,omitempty" yaml:"field,omitempty"`
}

// OK reports whether the file decoded and passed every rule
func (r *DryRunResult) OK() bool {
	return r.Error == "" && r.Report != nil && r.Report.Valid
}

func runDryRun(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args, ".json")
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found to check")
	}
	printVerbose("Found %d files to check\n", len(files))

	var opts []validation.EngineOption
	if withPreview {
		opts = append(opts, validation.WithPreview(2000))
	}
	engine := validation.NewEngine(opts...)

	results := make([]*DryRunResult, 0, len(files))
	allValid := true
	for _, file := range files {
		result := dryRunFile(engine, file)
		results = append(results, result)
		if !result.OK() {
			allValid = false
		}
	}

	w := cmd.OutOrStdout()
	done, err := writeStructured(w, results)
	if err != nil {
		return err
	}
	if !done {
		printDryRunTable(w, results)
	}

	if !allValid {
		return fmt.Errorf("dry run failed for some files")
	}
	return nil
}

func dryRunFile(engine *validation.Engine, file string) *DryRunResult {
	result := &DryRunResult{File: file}

	data, err := os.ReadFile(file)
	if err != nil {
		result.Error = fmt.Sprintf("failed to read file: %v", err)
		return result
	}

	if creditNote {
		cn, err := model.DecodeCreditNote(data)
		if err != nil {
			return withDecodeError(result, err)
		}
		result.Report, err = engine.DryRunCreditNote(cn)
		if err != nil {
			result.Error = err.Error()
		}
		return result
	}

	inv, err := model.DecodeInvoice(data)
	if err != nil {
		return withDecodeError(result, err)
	}
	result.Report, err = engine.DryRun(inv)
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

func withDecodeError(result *DryRunResult, err error) *DryRunResult {
	result.Error = err.Error()
	var se *model.StructuralError
	if errors.As(err, &se) {
		result.Field = se.Field
	}
	return result
}

func printDryRunTable(w io.Writer, results []*DryRunResult) {
	for _, r := range results {
		switch {
		case r.Error != "":
			fmt.Fprintf(w, "✗ %s: ERROR %s\n", r.File, r.Error)
			continue
		case r.Report.Valid:
			fmt.Fprintf(w, "✓ %s: VALID\n", r.File)
		default:
			fmt.Fprintf(w, "✗ %s: INVALID\n", r.File)
		}
		for _, e := range r.Report.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
		for _, warn := range r.Report.Warnings {
			fmt.Fprintf(w, "  ⚠ %s\n", warn)
		}

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "  HT\t%s\n", r.Report.Totals.TotalHT)
		fmt.Fprintf(tw, "  TVA\t%s\n", r.Report.Totals.TotalVAT)
		fmt.Fprintf(tw, "  TTC\t%s\n", r.Report.Totals.TotalTTC)
		_ = tw.Flush()
	}
}
