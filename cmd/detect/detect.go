// Package detect handles the bank detection command
package detect

import (
	"fmt"
	"io"

	"fjacquet/statement-import/cmd/common"
	"fjacquet/statement-import/cmd/root"
	"fjacquet/statement-import/internal/container"
	"fjacquet/statement-import/internal/logging"

	"github.com/spf13/cobra"
)

var showCandidates bool

// Cmd represents the detect command
var Cmd = &cobra.Command{
	Use:   "detect",
	Short: "Identify the bank that issued a statement",
	Long: `Identify the issuing bank of a statement file from its content, falling back
to the file name when the content is not conclusive.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := root.GetContainer(cmd.Context())
		if err != nil {
			return err
		}
		return Run(c, root.SharedFlags.Input, showCandidates, cmd.OutOrStdout())
	},
}

func init() {
	Cmd.Flags().BoolVar(&showCandidates, "candidates", false, "Also list every scored bank")
}

// Run detects the bank of the statement at path and writes the result to w.
func Run(c *container.Container, path string, candidates bool, w io.Writer) error {
	meta, content, err := common.LoadStatement(path, c.GetManager().Options().Upload.MaxFileSizeBytes)
	if err != nil {
		return err
	}

	text, format, err := c.GetTextSource().Extract(meta.Name, meta.MIMEType, content)
	if err != nil {
		c.GetLogger().WithError(err).Warn("Could not read statement text, using the file name only",
			logging.Field{Key: logging.FieldFileName, Value: meta.Name})
	}

	result := c.GetDetector().DetectCombined(text, meta.Name, format)
	common.PrintDetection(w, result)

	if candidates {
		for _, cand := range c.GetDetector().Rank(text) {
			fmt.Fprintf(w, "  %-20s score=%-3d keywords=%d confidence=%.2f\n",
				cand.Signature.Name, cand.Score, cand.KeywordsFound, cand.Confidence)
		}
	}
	return nil
}
