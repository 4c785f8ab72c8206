package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/facturx-engine/internal/processor"
	"github.com/rezonia/facturx-engine/internal/schema"
)

var validateXMLCmd = &cobra.Command{
	Use:   "validate-xml <file>",
	Short: "Check a CII XML file or a Factur-X PDF against the XSD",
	Long: `Check an existing CII XML file, or the factur-x.xml embedded in a
Factur-X PDF, against the XSD configured with XSD_PATH.

When xmllint or the XSD is missing the check is reported as unavailable
and does not fail.

Examples:
  facturx validate-xml facture.xml
  facturx validate-xml facture_F-001.pdf -f json`,
	Args: cobra.ExactArgs(1),
	RunE: runValidateXML,
}

func init() {
	rootCmd.AddCommand(validateXMLCmd)

	validateXMLCmd.Flags().DurationVar(&checkTimeout, "timeout", 30*time.Second, "Check timeout")
}

var checkTimeout time.Duration

// XMLCheckResult is the outcome of validate-xml
type XMLCheckResult struct {
	File   string        `json:"file" yaml:"file"`
	Valid  bool          `json:"valid" yaml:"valid"`
	Status schema.Status `json:"status" yaml:"status"`
	Errors []string      `json:"errors" yaml:"errors"`
}

func runValidateXML(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := cliLogger()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
	defer cancel()

	pipeline := processor.NewPipeline(
		processor.WithSchemaValidator(newSchemaValidator(cfg, log)),
		processor.WithLogger(log),
	)
	check, err := pipeline.CheckDocument(ctx, data)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	result := XMLCheckResult{
		File:   args[0],
		Valid:  !check.Schema.Failed(),
		Status: check.Schema.Status,
		Errors: check.Schema.Messages,
	}

	w := cmd.OutOrStdout()
	done, err := writeStructured(w, result)
	if err != nil {
		return err
	}
	if !done {
		fmt.Fprintf(w, "%s: %s\n", result.File, result.Status)
		for _, e := range result.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
	}

	if !result.Valid {
		return fmt.Errorf("XML rejected by schema")
	}
	return nil
}
