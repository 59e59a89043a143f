package core

import (
	"context"
	"strings"
)

// dedupFields are the storage keys loaded once per run to seed the key sets.
var dedupFields = []string{FieldEmail, FieldFirstName, FieldLastName}

// DedupSets holds the keys of every record already stored or imported
// earlier in the same run. Both sets are lower-cased.
type DedupSets struct {
	Emails map[string]struct{}
	Names  map[string]struct{} // "first|last"
}

// NewDedupSets returns empty sets.
func NewDedupSets() DedupSets {
	return DedupSets{
		Emails: make(map[string]struct{}),
		Names:  make(map[string]struct{}),
	}
}

// dedupKeys are the lookup keys of one record. Empty means absent.
type dedupKeys struct {
	email string
	name  string
}

func keysOf(rec Record) dedupKeys {
	var k dedupKeys
	k.email = strings.ToLower(stringValue(rec[FieldEmail]))
	first := stringValue(rec[FieldFirstName])
	last := stringValue(rec[FieldLastName])
	if first != "" && last != "" {
		k.name = strings.ToLower(first + "|" + last)
	}
	return k
}

// Contains reports whether either key of rec is already known.
func (s DedupSets) Contains(rec Record) bool {
	return s.has(keysOf(rec))
}

func (s DedupSets) has(k dedupKeys) bool {
	if k.email != "" {
		if _, ok := s.Emails[k.email]; ok {
			return true
		}
	}
	if k.name != "" {
		if _, ok := s.Names[k.name]; ok {
			return true
		}
	}
	return false
}

// Add records the keys of rec.
func (s DedupSets) Add(rec Record) {
	s.add(keysOf(rec))
}

func (s DedupSets) add(k dedupKeys) {
	if k.email != "" {
		s.Emails[k.email] = struct{}{}
	}
	if k.name != "" {
		s.Names[k.name] = struct{}{}
	}
}

// PreloadKeys reads the dedup keys of every stored record of kind.
func PreloadKeys(ctx context.Context, store Store, kind Kind) (DedupSets, error) {
	sets := NewDedupSets()

	existing, err := store.QueryExisting(ctx, kind, dedupFields)
	if err != nil {
		return sets, &StorageError{Op: "chargement des enregistrements existants", Err: err}
	}

	for _, rec := range existing {
		sets.Add(rec)
	}
	return sets, nil
}
