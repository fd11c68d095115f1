// Package banks handles the bank catalog command
package banks

import (
	"fmt"
	"io"
	"strings"

	"fjacquet/statement-import/cmd/root"
	"fjacquet/statement-import/internal/catalog"
	"fjacquet/statement-import/internal/models"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var asYAML bool

// Cmd represents the catalog command
var Cmd = &cobra.Command{
	Use:     "catalog",
	Aliases: []string{"banks"},
	Short:   "List the banks that can be detected",
	Long: `List the bank signatures used for detection. With --yaml the catalog is
printed in the format accepted by catalog.file, ready to be customized.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := root.GetContainer(cmd.Context())
		if err != nil {
			return err
		}
		return Run(c.GetCatalog(), asYAML, cmd.OutOrStdout())
	},
}

func init() {
	Cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print the catalog as YAML")
}

// Run writes the catalog to w in catalog order.
func Run(cat *catalog.Catalog, yamlOutput bool, w io.Writer) error {
	signatures := cat.Signatures()
	if yamlOutput {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(struct {
			Banks []models.BankSignature `yaml:"banks"`
		}{signatures}); err != nil {
			return fmt.Errorf("error encoding catalog: %w", err)
		}
		return enc.Close()
	}

	for i, sig := range signatures {
		fmt.Fprintf(w, "%2d. %s\n", i+1, sig.Name)
		fmt.Fprintf(w, "    keywords: %s\n", strings.Join(sig.Keywords, ", "))
		if len(sig.HeaderPatterns) > 0 {
			fmt.Fprintf(w, "    header:   %s\n", strings.Join(sig.HeaderPatterns, ", "))
		}
	}
	return nil
}
