package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/facturx-engine/internal/model"
	"github.com/rezonia/facturx-engine/internal/processor"
)

var (
	outputFile  string
	creditNote  bool
	storeResult bool
	timeout     time.Duration
)

var generateCmd = &cobra.Command{
	Use:   "generate <invoice.json>",
	Short: "Generate a Factur-X PDF from a JSON invoice",
	Long: `Generate a Factur-X PDF/A-3 document from a JSON invoice record.

The CII XML is checked against the configured XSD (XSD_PATH) when xmllint is
available, then embedded in the rendered PDF as factur-x.xml.

Examples:
  facturx generate invoice.json
  facturx generate invoice.json -o out.pdf
  facturx generate avoir.json --credit-note --store`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: facture_<number>.pdf)")
	generateCmd.Flags().BoolVar(&creditNote, "credit-note", false, "Input is a credit note")
	generateCmd.Flags().BoolVar(&storeResult, "store", false, "Also save the document to the configured storage")
	generateCmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Generation timeout")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := cliLogger()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	pipeline := newPipeline(cfg, nil, log)
	if storeResult {
		store, closeStore, err := newStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStore()
		pipeline = newPipeline(cfg, store, log)
	}

	result, err := generate(ctx, pipeline, data)
	if err != nil {
		return err
	}

	target := outputFile
	if target == "" {
		target = result.Filename
	}
	if err := os.WriteFile(target, result.PDF, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}

	printVerbose("schema check: %s\n", result.Schema.Status)
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bytes)\n", target, len(result.PDF))
	return nil
}

func generate(ctx context.Context, pipeline *processor.Pipeline, data []byte) (*processor.Result, error) {
	if creditNote {
		cn, err := model.DecodeCreditNote(data)
		if err != nil {
			return nil, err
		}
		return pipeline.GenerateCreditNote(ctx, cn)
	}

	inv, err := model.DecodeInvoice(data)
	if err != nil {
		return nil, err
	}
	return pipeline.GenerateInvoice(ctx, inv)
}
