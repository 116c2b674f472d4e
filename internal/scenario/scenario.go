// Package scenario bundles ready-to-run simulation definitions: the event
// schemas, entity types, and flows of one simulated domain, selectable by
// name from the CLI.
package scenario

import (
	"fmt"
	"sort"

	"github.com/roach88/mirage/internal/engine"
	"github.com/roach88/mirage/internal/schema"
)

// Scenario is one named simulation definition.
type Scenario struct {
	Name        string
	Description string

	// Register installs the scenario's event schemas and entity types.
	Register func(reg *schema.Registry) error

	// Flows returns the scenario's flow definitions in the order they
	// should be registered.
	Flows func() []engine.Flow
}

var scenarios = map[string]Scenario{}

// register installs a scenario into the package catalog. Called from init
// functions; panics on a duplicate name.
func register(s Scenario) {
	if _, ok := scenarios[s.Name]; ok {
		panic(fmt.Sprintf("duplicate scenario: %s", s.Name))
	}
	scenarios[s.Name] = s
}

// Lookup returns the scenario with the given name.
func Lookup(name string) (Scenario, error) {
	s, ok := scenarios[name]
	if !ok {
		return Scenario{}, fmt.Errorf("unknown scenario %q (available: %v)", name, Names())
	}
	return s, nil
}

// Names returns all registered scenario names, sorted.
func Names() []string {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
