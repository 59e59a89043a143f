// Package memory provides an in-process core.Store for dry runs and tests.
package memory

import (
	"context"
	"errors"
	"maps"
	"strings"
	"sync"

	"github.com/JonMunkholm/clinicimport/internal/core"
)

// ErrDuplicateEmail mirrors the unique email index of the database store.
var ErrDuplicateEmail = errors.New("duplicate key value violates unique constraint on email")

// Store keeps records per kind in memory. It is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	records map[core.Kind][]core.Record
	emails  map[core.Kind]map[string]struct{}

	uniqueEmail map[core.Kind]bool
	insertHook  func(core.Kind, core.Record) error
	queryErr    error
	inserts     int
}

// Option configures a Store.
type Option func(*Store)

// WithUniqueEmail rejects a second record of kind with the same email.
func WithUniqueEmail(kinds ...core.Kind) Option {
	return func(s *Store) {
		for _, k := range kinds {
			s.uniqueEmail[k] = true
		}
	}
}

// WithInsertHook runs fn before each insert; a non-nil error rejects the record.
func WithInsertHook(fn func(core.Kind, core.Record) error) Option {
	return func(s *Store) { s.insertHook = fn }
}

// WithQueryError makes every QueryExisting call fail with err.
func WithQueryError(err error) Option {
	return func(s *Store) { s.queryErr = err }
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		records:     make(map[core.Kind][]core.Record),
		emails:      make(map[core.Kind]map[string]struct{}),
		uniqueEmail: make(map[core.Kind]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seed adds records without running hooks or constraints.
func (s *Store) Seed(kind core.Kind, recs ...core.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range recs {
		s.put(kind, rec)
	}
}

// QueryExisting returns a projection of every stored record of kind.
func (s *Store) QueryExisting(ctx context.Context, kind core.Kind, fields []string) ([]core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.queryErr != nil {
		return nil, s.queryErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.Record, 0, len(s.records[kind]))
	for _, rec := range s.records[kind] {
		row := make(core.Record, len(fields))
		for _, f := range fields {
			row[f] = rec[f]
		}
		out = append(out, row)
	}
	return out, nil
}

// InsertOne stores a copy of rec.
func (s *Store) InsertOne(ctx context.Context, kind core.Kind, rec core.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.insertHook != nil {
		if err := s.insertHook(kind, rec); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.uniqueEmail[kind] {
		if email := emailOf(rec); email != "" {
			if _, taken := s.emails[kind][email]; taken {
				return ErrDuplicateEmail
			}
		}
	}

	s.put(kind, rec)
	s.inserts++
	return nil
}

func (s *Store) put(kind core.Kind, rec core.Record) {
	s.records[kind] = append(s.records[kind], maps.Clone(rec))
	if email := emailOf(rec); email != "" {
		if s.emails[kind] == nil {
			s.emails[kind] = make(map[string]struct{})
		}
		s.emails[kind][email] = struct{}{}
	}
}

// Records returns copies of the stored records of kind in insertion order.
func (s *Store) Records(kind core.Kind) []core.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.Record, len(s.records[kind]))
	for i, rec := range s.records[kind] {
		out[i] = maps.Clone(rec)
	}
	return out
}

// InsertCount returns the number of successful InsertOne calls.
func (s *Store) InsertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inserts
}

func emailOf(rec core.Record) string {
	email, _ := rec[core.FieldEmail].(string)
	return strings.ToLower(strings.TrimSpace(email))
}
