// Package catalog holds the read-only registry of known banks and how they
// identify themselves in statements.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"fjacquet/statement-import/internal/models"

	"gopkg.in/yaml.v3"
)

//go:embed banks.yaml
var defaultCatalogYAML []byte

// catalogFile is the on-disk shape of a catalog.
type catalogFile struct {
	Banks []models.BankSignature `yaml:"banks"`
}

// Catalog is an ordered, immutable list of bank signatures. It is safe for
// concurrent use because nothing mutates it after construction.
type Catalog struct {
	signatures []models.BankSignature
	byName     map[string]int
}

// New builds a catalog from signatures, normalizing keywords and patterns to lower case.
// Signatures without a name or with a duplicate name are rejected.
func New(signatures []models.BankSignature) (*Catalog, error) {
	c := &Catalog{
		signatures: make([]models.BankSignature, 0, len(signatures)),
		byName:     make(map[string]int, len(signatures)),
	}
	for i, s := range signatures {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return nil, fmt.Errorf("bank signature %d has no name", i)
		}
		key := strings.ToLower(name)
		if _, dup := c.byName[key]; dup {
			return nil, fmt.Errorf("duplicate bank signature %q", name)
		}
		c.byName[key] = len(c.signatures)
		c.signatures = append(c.signatures, models.BankSignature{
			Name:           name,
			Keywords:       normalize(s.Keywords),
			HeaderPatterns: normalize(s.HeaderPatterns),
		})
	}
	return c, nil
}

func normalize(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Parse decodes a YAML catalog ("banks: [...]" or a bare list).
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err == nil && len(file.Banks) > 0 {
		return New(file.Banks)
	}

	var banks []models.BankSignature
	if err := yaml.Unmarshal(data, &banks); err != nil {
		return nil, fmt.Errorf("error parsing bank catalog: %w", err)
	}
	return New(banks)
}

// Load reads a YAML catalog from path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading bank catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded bank catalog is invalid: %v", err))
	}
	return c
}

// LoadOrDefault loads path when set, otherwise the built-in catalog.
func LoadOrDefault(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Len returns the number of signatures.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.signatures)
}

// Signatures returns a copy of the signatures in catalog order.
func (c *Catalog) Signatures() []models.BankSignature {
	if c == nil {
		return nil
	}
	out := make([]models.BankSignature, len(c.signatures))
	for i, s := range c.signatures {
		out[i] = cloneSignature(s)
	}
	return out
}

// Lookup finds a signature by bank name, case-insensitively.
func (c *Catalog) Lookup(name string) (models.BankSignature, bool) {
	if c == nil {
		return models.BankSignature{}, false
	}
	i, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return models.BankSignature{}, false
	}
	return cloneSignature(c.signatures[i]), true
}

func cloneSignature(s models.BankSignature) models.BankSignature {
	return models.BankSignature{
		Name:           s.Name,
		Keywords:       append([]string(nil), s.Keywords...),
		HeaderPatterns: append([]string(nil), s.HeaderPatterns...),
	}
}
