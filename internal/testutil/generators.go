// Package testutil provides deterministic generator implementations for
// tests: sequential id generators and a scripted value generator that
// remove the random source from a test's control flow.
package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates "prefix-1", "prefix-2", ... deterministically.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs creates a generator with the given prefix.
func NewSequentialIDs(prefix string) *SequentialIDs {
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next id in the sequence.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Reset restarts the sequence. The next Generate returns "prefix-1".
func (g *SequentialIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}

// ScriptedGenerator is a value generator that returns canned values per
// hint, consuming each hint's script in order. When a hint's script is
// exhausted the last value repeats, so short scripts stay convenient.
type ScriptedGenerator struct {
	// Script maps hint name to the values returned for that hint in order.
	Script map[string][]any

	used map[string]int
}

// NewScriptedGenerator creates a generator over the given script.
func NewScriptedGenerator(script map[string][]any) *ScriptedGenerator {
	return &ScriptedGenerator{Script: script, used: make(map[string]int)}
}

// Generate returns the next scripted value for the hint.
func (g *ScriptedGenerator) Generate(hint string, params map[string]any) (any, error) {
	values, ok := g.Script[hint]
	if !ok || len(values) == 0 {
		return nil, fmt.Errorf("no scripted values for hint %q", hint)
	}
	if g.used == nil {
		g.used = make(map[string]int)
	}
	i := g.used[hint]
	if i >= len(values) {
		i = len(values) - 1
	} else {
		g.used[hint]++
	}
	return values[i], nil
}
