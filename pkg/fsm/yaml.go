package fsm

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// yamlDefinition mirrors the YAML document shape for a single dimension:
//
//	initial: pending
//	states: [pending, paid, failed]
//	final: [failed]
//	transitions:
//	  - {name: pay, from: pending, to: paid}
//	  - {name: fail, from: pending, to: failed}
type yamlDefinition struct {
	Initial     string           `yaml:"initial"`
	States      []string         `yaml:"states"`
	Final       []string         `yaml:"final"`
	Transitions []yamlTransition `yaml:"transitions"`
}

type yamlTransition struct {
	Name string `yaml:"name"`
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// ParseYAML builds a Definition from a YAML document. The document must
// declare the full configuration of one dimension; validation rules are the
// same as for Builder.Build.
func ParseYAML(data []byte) (*Definition, error) {
	var doc yamlDefinition
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse definition yaml: %w", err)
	}

	b := NewBuilder().Initial(State(doc.Initial))
	for _, s := range doc.States {
		b.States(State(s))
	}
	for _, s := range doc.Final {
		b.Final(State(s))
	}
	for _, t := range doc.Transitions {
		b.Transition(t.Name, State(t.From), State(t.To))
	}
	return b.Build()
}
