package plans

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type catalogFile struct {
	Plans []Plan `yaml:"plans"`
}

// LoadFile reads a plan catalog from a YAML file. The file replaces the
// built-in catalog entirely, so it must list every plan the deployment
// serves, including disabled legacy plans existing subscribers are on.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan catalog file: %w", err)
	}
	return Parse(data)
}

// Parse builds a catalog from YAML bytes
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse plan catalog: %w", err)
	}
	catalog, err := NewCatalog(file.Plans)
	if err != nil {
		return nil, fmt.Errorf("invalid plan catalog: %w", err)
	}
	return catalog, nil
}
