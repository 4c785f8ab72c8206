package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rezonia/facturx-engine/internal/cii"
	"github.com/rezonia/facturx-engine/internal/model"
)

var xmlOutput string

var xmlCmd = &cobra.Command{
	Use:   "xml <invoice.json>",
	Short: "Print the CII XML of a JSON invoice",
	Long: `Serialize a JSON invoice record to Cross Industry Invoice XML
(EN16931 profile) without rendering a PDF.

Examples:
  facturx xml invoice.json
  facturx xml avoir.json --credit-note -o avoir.xml`,
	Args: cobra.ExactArgs(1),
	RunE: runXML,
}

func init() {
	rootCmd.AddCommand(xmlCmd)

	xmlCmd.Flags().BoolVar(&creditNote, "credit-note", false, "Input is a credit note")
	xmlCmd.Flags().StringVarP(&xmlOutput, "output", "o", "", "Output file (default: stdout)")
}

func runXML(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	xml, err := serialize(data)
	if err != nil {
		return err
	}

	if xmlOutput != "" {
		return os.WriteFile(xmlOutput, xml, 0o644)
	}
	_, err = cmd.OutOrStdout().Write(xml)
	return err
}

func serialize(data []byte) ([]byte, error) {
	if creditNote {
		cn, err := model.DecodeCreditNote(data)
		if err != nil {
			return nil, err
		}
		return cii.SerializeCreditNote(cn)
	}

	inv, err := model.DecodeInvoice(data)
	if err != nil {
		return nil, err
	}
	return cii.Serialize(inv, model.DocumentTypeInvoice)
}
