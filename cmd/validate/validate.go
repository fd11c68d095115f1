// Package validate handles the record validation command
package validate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"fjacquet/statement-import/cmd/root"
	"fjacquet/statement-import/internal/validator"

	"github.com/spf13/cobra"
)

// Cmd represents the validate command
var Cmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a JSON batch of extracted transaction records",
	Long: `Validate a JSON array of extracted transaction candidates, as returned by an
extraction service, and report the field errors of every rejected record.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := root.GetContainer(cmd.Context())
		if err != nil {
			return err
		}
		data, err := os.ReadFile(root.SharedFlags.Input)
		if err != nil {
			return fmt.Errorf("error reading %s: %w", root.SharedFlags.Input, err)
		}
		result, err := Run(c.GetValidator(), data, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if len(result.Invalid) > 0 {
			return fmt.Errorf("%d of %d records are invalid", len(result.Invalid), result.Total())
		}
		return nil
	},
}

// Run decodes data as a JSON array and validates every element.
func Run(v *validator.Validator, data []byte, w io.Writer) (validator.BatchResult, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return validator.BatchResult{}, fmt.Errorf("input must be a JSON array of records: %w", err)
	}

	result := v.ValidateBatch(raw)
	fmt.Fprintf(w, "Valid:   %d\n", len(result.Valid))
	fmt.Fprintf(w, "Invalid: %d\n", len(result.Invalid))
	for _, inv := range result.Invalid {
		fmt.Fprintf(w, "  record %d:\n", inv.Index)
		for _, msg := range inv.Errors {
			fmt.Fprintf(w, "    - %s\n", msg)
		}
	}
	return result, nil
}
