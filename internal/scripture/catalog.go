package scripture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// CatalogFile is the optional metadata file inside the scripture directory.
const CatalogFile = "catalog.yaml"

// Catalog overrides display names and excludes files from loading.
//
//	names:
//	  bgita.pdf: Bhagavad Gita As It Is
//	skip:
//	  - draft.txt
type Catalog struct {
	Names map[string]string `yaml:"names"`
	Skip  []string          `yaml:"skip"`
}

// LoadCatalog reads a catalog file. A missing file yields an empty catalog.
func LoadCatalog(path string) (Catalog, error) {
	var c Catalog
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return c, fmt.Errorf("reading catalog: %w", err)
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return Catalog{}, fmt.Errorf("parsing catalog: %w", err)
	}
	return c, nil
}

func (c Catalog) name(file string) string {
	if n, ok := c.Names[file]; ok && n != "" {
		return n
	}
	return ReadableName(file)
}

func (c Catalog) skipped(file string) bool {
	for _, s := range c.Skip {
		if s == file {
			return true
		}
	}
	return false
}

// ReadableName maps a scripture file name to a display name.
func ReadableName(source string) string {
	lower := strings.ToLower(source)
	switch {
	case strings.Contains(lower, "bgita"):
		return "Bhagavad Gita"
	case strings.Contains(lower, "sb3"):
		return "Srimad Bhagavatam"
	case strings.Contains(lower, "upanishad"):
		return "The Upanishads"
	}
	base := strings.TrimSuffix(source, filepath.Ext(source))
	return strings.NewReplacer("-", " ", "_", " ").Replace(base)
}
