package odm

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// KindDefinition is one kind's entry in a definitions file.
type KindDefinition struct {
	Required   []string `yaml:"required_vars"`
	Admissible []string `yaml:"admissible_vars"`
}

// Definitions maps kind names to their attribute sets:
//
//	Persona:
//	  required_vars: [nombre, apellido]
//	  admissible_vars: [edad, direccion]
type Definitions map[string]KindDefinition

// Kinds returns the defined kind names, sorted.
func (d Definitions) Kinds() []string {
	out := make([]string, 0, len(d))
	for k := range d {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// LoadDefinitions reads a YAML definitions file.
func LoadDefinitions(path string) (Definitions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("odm: read definitions: %w", err)
	}
	return ParseDefinitions(data)
}

// ParseDefinitions decodes YAML definitions. Unknown keys are rejected.
func ParseDefinitions(data []byte) (Definitions, error) {
	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("odm: parse definitions: %w", err)
	}
	defs := make(Definitions, len(raw))
	for kind, node := range raw {
		if kind == "" {
			return nil, errors.New("odm: parse definitions: empty kind name")
		}
		var def KindDefinition
		if err := decodeStrict(&node, &def); err != nil {
			return nil, fmt.Errorf("odm: parse definitions: kind %q: %w", kind, err)
		}
		defs[kind] = def
	}
	return defs, nil
}

func decodeStrict(node *yaml.Node, def *KindDefinition) error {
	if node.Kind != yaml.MappingNode {
		return errors.New("expected a mapping")
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		switch key := node.Content[i].Value; key {
		case "required_vars", "admissible_vars":
		default:
			return fmt.Errorf("unknown key %q", key)
		}
	}
	return node.Decode(def)
}
