package channels

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Entry is one modifier an auxiliary channel may attach.
type Entry struct {
	Name string `yaml:"name"`

	// Tag is the modifier kind tag handed to the host.
	Tag string `yaml:"tag"`

	// MinGain is the lowest event gain value for which the entry is eligible.
	MinGain float64 `yaml:"min_gain"`

	// Strength is the modifier strength. Zero means the event's gain value.
	Strength float64 `yaml:"strength"`
}

func (e Entry) strength(gain float64) float64 {
	if e.Strength > 0 {
		return e.Strength
	}
	return gain
}

// Catalog lists the entries of every channel.
type Catalog struct {
	Gear      []Entry `yaml:"gear"`
	Implants  []Entry `yaml:"implants"`
	Chemicals []Entry `yaml:"chemicals"`

	// MaxImplants bounds the implants grafted onto one agent. Zero or less means 1.
	MaxImplants int `yaml:"max_implants"`
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("channels: built-in catalog: %v", err))
	}
	return c
}

// LoadCatalog reads a catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("channels: read catalog: %w", err)
	}
	c, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("channels: %s: %w", path, err)
	}
	return c, nil
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks every entry has a tag and a non-negative threshold.
func (c *Catalog) Validate() error {
	for section, entries := range map[string][]Entry{
		"gear":      c.Gear,
		"implants":  c.Implants,
		"chemicals": c.Chemicals,
	} {
		for i, e := range entries {
			if e.Tag == "" {
				return fmt.Errorf("%s[%d] %q: missing tag", section, i, e.Name)
			}
			if e.MinGain < 0 || e.Strength < 0 {
				return fmt.Errorf("%s[%d] %q: min_gain and strength must not be negative", section, i, e.Name)
			}
		}
	}
	return nil
}

func eligible(entries []Entry, gain float64) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.MinGain <= gain {
			out = append(out, e)
		}
	}
	return out
}
