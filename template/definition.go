package template

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Definition is a logical template as authored in YAML, with concept
// identifiers not yet resolved against a snapshot.
//
//	name: infection-by-organism
//	ungrouped:
//	  - type: "246075003"
//	groups:
//	  - cardinality: "1..*"
//	    attributes:
//	      - type: "246075003"
//	      - type: "363698007"
//	        value: "39937001"
type Definition struct {
	Name        string                `yaml:"name" json:"name"`
	Description string                `yaml:"description,omitempty" json:"description,omitempty"`
	Domain      string                `yaml:"domain,omitempty" json:"domain,omitempty"`
	Ungrouped   []AttributeDefinition `yaml:"ungrouped,omitempty" json:"ungrouped,omitempty"`
	Groups      []GroupDefinition     `yaml:"groups" json:"groups"`

	// Source is the file the definition was read from, if any.
	Source string `yaml:"-" json:"-"`
}

// GroupDefinition is one attribute group of a Definition.
type GroupDefinition struct {
	Cardinality string                `yaml:"cardinality,omitempty" json:"cardinality,omitempty"`
	Attributes  []AttributeDefinition `yaml:"attributes" json:"attributes"`
}

// AttributeDefinition names an attribute type and, optionally, a fixed value.
type AttributeDefinition struct {
	Type  string `yaml:"type" json:"type"`
	Value string `yaml:"value,omitempty" json:"value,omitempty"`
}

// Parse decodes a YAML template definition and validates it.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadFile reads and parses one template definition file.
func LoadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template file: %w", err)
	}
	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	def.Source = path
	return def, nil
}

// Validate checks internal consistency: a name, at least one group, valid
// cardinalities, and no attribute type repeated within a group.
func (d *Definition) Validate() error {
	var errs []error
	if d.Name == "" {
		errs = append(errs, errors.New("template name is required"))
	}
	if len(d.Groups) == 0 && len(d.Ungrouped) == 0 {
		errs = append(errs, errors.New("template declares no groups"))
	}
	if err := checkAttributes("ungrouped", d.Ungrouped); err != nil {
		errs = append(errs, err)
	}
	for i, g := range d.Groups {
		where := fmt.Sprintf("group %d", i+1)
		if _, err := ParseCardinality(g.Cardinality); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", where, err))
		}
		if len(g.Attributes) == 0 {
			errs = append(errs, fmt.Errorf("%s: no attributes", where))
		}
		if err := checkAttributes(where, g.Attributes); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

func checkAttributes(where string, attrs []AttributeDefinition) error {
	seen := make(map[string]bool)
	for _, a := range attrs {
		if a.Type == "" {
			return fmt.Errorf("%s: attribute without type", where)
		}
		if seen[a.Type] {
			return fmt.Errorf("%s: type %s appears twice", where, a.Type)
		}
		seen[a.Type] = true
	}
	return nil
}
