package core

import (
	"fmt"
	"slices"
	"sort"
)

// Registry is an immutable set of import definitions keyed by kind.
// It is built once at startup and shared by every run.
type Registry struct {
	defs map[Kind]Definition
}

// NewRegistry validates and indexes the given definitions.
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{defs: make(map[Kind]Definition, len(defs))}

	for _, def := range defs {
		if def.Kind == "" {
			return nil, fmt.Errorf("definition %q has no kind", def.Label)
		}
		if _, exists := r.defs[def.Kind]; exists {
			return nil, fmt.Errorf("kind already registered: %s", def.Kind)
		}
		if def.Table == "" {
			return nil, fmt.Errorf("kind %s has no table", def.Kind)
		}
		if len(def.Fields) == 0 {
			return nil, fmt.Errorf("kind %s has no fields", def.Kind)
		}

		seen := make(map[string]bool, len(def.Fields))
		for _, f := range def.Fields {
			if f.StorageKey == "" || f.Label == "" {
				return nil, fmt.Errorf("kind %s: field needs both a label and a storage key", def.Kind)
			}
			if seen[f.StorageKey] {
				return nil, fmt.Errorf("kind %s: duplicate storage key %s", def.Kind, f.StorageKey)
			}
			seen[f.StorageKey] = true
		}
		if def.Example != nil && len(def.Example) != len(def.Fields) {
			return nil, fmt.Errorf("kind %s: example has %d cells, want %d", def.Kind, len(def.Example), len(def.Fields))
		}

		def.Fields = slices.Clone(def.Fields)
		def.Example = slices.Clone(def.Example)
		r.defs[def.Kind] = def
	}

	return r, nil
}

// MustRegistry is like NewRegistry but panics on an invalid definition.
func MustRegistry(defs ...Definition) *Registry {
	r, err := NewRegistry(defs...)
	if err != nil {
		panic(err)
	}
	return r
}

// Get returns a definition by kind.
// Returns false if not found.
func (r *Registry) Get(kind Kind) (Definition, bool) {
	def, ok := r.defs[kind]
	return def, ok
}

// All returns all definitions sorted by kind.
func (r *Registry) All() []Definition {
	result := make([]Definition, 0, len(r.defs))
	for _, def := range r.defs {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Kind < result[j].Kind
	})

	return result
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []Kind {
	kinds := make([]Kind, 0, len(r.defs))
	for k := range r.defs {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}
