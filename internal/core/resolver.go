package core

import (
	"fmt"
	"strings"
)

// MatchStrength grades how well a file header matches a field token.
type MatchStrength int

const (
	MatchNone MatchStrength = iota
	MatchLoose
	MatchExact
)

// HeaderMatcher compares a normalized file header to a normalized field token.
type HeaderMatcher interface {
	Match(header, token string) MatchStrength
}

// SubstringMatcher accepts headers equal to the token or where either one
// contains the other. "telephone_mobile" loosely matches "telephone".
type SubstringMatcher struct{}

func (SubstringMatcher) Match(header, token string) MatchStrength {
	h, t := compact(header), compact(token)
	if h == "" || t == "" {
		return MatchNone
	}
	if h == t {
		return MatchExact
	}
	if strings.Contains(h, t) || strings.Contains(t, h) {
		return MatchLoose
	}
	return MatchNone
}

// ExactMatcher only accepts headers equal to the token.
type ExactMatcher struct{}

func (ExactMatcher) Match(header, token string) MatchStrength {
	h, t := compact(header), compact(token)
	if h != "" && h == t {
		return MatchExact
	}
	return MatchNone
}

// MatcherByName returns the matcher selected in configuration.
func MatcherByName(name string) (HeaderMatcher, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "substring":
		return SubstringMatcher{}, nil
	case "exact":
		return ExactMatcher{}, nil
	default:
		return nil, fmt.Errorf("unknown header matcher %q (want substring or exact)", name)
	}
}

// ResolveColumns maps each field to the first file column that matches it.
//
// headers must already be normalized. Exact matches are resolved for all
// fields before any loose match, and a column claimed by one field is
// never given to another. Without that ordering "nom" would bind to a
// "prenom" column that appears first.
//
// A required field left unresolved yields a SchemaError listing every
// missing label.
func ResolveColumns(headers []string, fields []CanonicalField, m HeaderMatcher) (ColumnMapping, error) {
	if m == nil {
		m = SubstringMatcher{}
	}

	tokens := make([][]string, len(fields))
	for i, f := range fields {
		tokens[i] = fieldTokens(f)
	}

	mapping := make(ColumnMapping, len(fields))
	claimed := make([]bool, len(headers))

	for _, want := range []MatchStrength{MatchExact, MatchLoose} {
		for i, f := range fields {
			if _, done := mapping[f.StorageKey]; done {
				continue
			}
			if idx := firstMatch(headers, claimed, tokens[i], m, want); idx >= 0 {
				mapping[f.StorageKey] = idx
				claimed[idx] = true
			}
		}
	}

	var missing []string
	for _, f := range fields {
		if _, ok := mapping[f.StorageKey]; f.Required && !ok {
			missing = append(missing, f.Label)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}

	return mapping, nil
}

func firstMatch(headers []string, claimed []bool, tokens []string, m HeaderMatcher, want MatchStrength) int {
	for idx, h := range headers {
		if claimed[idx] {
			continue
		}
		for _, tok := range tokens {
			if m.Match(h, tok) >= want {
				return idx
			}
		}
	}
	return -1
}

func fieldTokens(f CanonicalField) []string {
	tokens := make([]string, 0, 1+len(f.Aliases))
	tokens = append(tokens, NormalizeHeader(f.Label))
	for _, a := range f.Aliases {
		tokens = append(tokens, NormalizeHeader(a))
	}
	return tokens
}
