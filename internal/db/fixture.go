package db

import (
	"fmt"
	"os"

	_ "embed"

	"gopkg.in/yaml.v3"

	"schoa/pkg"
)

//go:embed fixture.yaml
var defaultFixtureYAML []byte

// fixtureDoc is the on-disk layout of a fixture file.
type fixtureDoc struct {
	Patients   []pkg.Patient         `yaml:"patients"`
	Financials []pkg.FinancialRecord `yaml:"financials"`
}

// ParseFixture decodes a YAML fixture document.
func ParseFixture(data []byte) (*Fixture, error) {
	var doc fixtureDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	return NewFixture(doc.Patients, doc.Financials)
}

// LoadFixture reads a fixture from path.  An empty path loads the embedded
// demo data.
func LoadFixture(path string) (*Fixture, error) {
	if path == "" {
		return DefaultFixture()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(data)
}

// DefaultFixture returns the embedded demo records: four patients and five
// months of figures.
func DefaultFixture() (*Fixture, error) {
	return ParseFixture(defaultFixtureYAML)
}
