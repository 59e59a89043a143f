package core

import (
	"context"
	"time"
)

// Kind identifies an import schema.
type Kind string

const (
	KindPersons Kind = "persons"
	KindEvents  Kind = "events"
)

// Storage keys shared by the dedup logic and the schema tables.
const (
	FieldEmail     = "email"
	FieldFirstName = "first_name"
	FieldLastName  = "last_name"
)

// RawRow is one tokenized CSV line. Cells are already trimmed unless quoted.
type RawRow []string

// Record is a transformed row keyed by storage key.
type Record map[string]any

// ColumnMapping maps a storage key to its column index in the file.
type ColumnMapping map[string]int

// CanonicalField describes one target field of an import kind.
type CanonicalField struct {
	Label      string            // Human label, also the template header
	StorageKey string            // Key in Record and column in storage
	Required   bool              // Column must be present in the file
	Aliases    []string          // Extra header spellings
	Validate   func(string) bool // Optional, applied to non-empty cells
	Transform  func(string) any  // Optional, applied after validation
}

// Definition contains everything needed to import one kind of file.
type Definition struct {
	Kind   Kind
	Label  string
	Table  string
	Fields []CanonicalField

	// Dedup enables the existing-keys preload and the per-row duplicate check.
	Dedup bool

	// CheckRecord runs after all fields are extracted. A non-nil error
	// becomes the row's error message.
	CheckRecord func(Record) error

	// Example is the sample data row written to the template, one cell per field.
	Example []string
}

// Labels returns the field labels in declaration order.
func (d Definition) Labels() []string {
	labels := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		labels[i] = f.Label
	}
	return labels
}

// Store is the persistence collaborator of the pipeline.
type Store interface {
	// QueryExisting returns the requested fields of every stored record of kind.
	QueryExisting(ctx context.Context, kind Kind, fields []string) ([]Record, error)

	// InsertOne persists a single record. A returned error is row-scoped.
	InsertOne(ctx context.Context, kind Kind, rec Record) error
}

// ProgressFunc is called once per data row with a 1-based position.
type ProgressFunc func(current, total int)

// ImportPhase indicates the current stage of an import run.
type ImportPhase string

const (
	PhaseQueued    ImportPhase = "queued"
	PhaseParsing   ImportPhase = "parsing"
	PhaseImporting ImportPhase = "importing"
	PhaseComplete  ImportPhase = "complete"
	PhaseFailed    ImportPhase = "failed"
)

// ImportProgress is a snapshot of a run, broadcast to subscribers.
type ImportProgress struct {
	RunID      string      `json:"run_id"`
	Kind       Kind        `json:"kind"`
	Phase      ImportPhase `json:"phase"`
	FileName   string      `json:"file_name"`
	Current    int         `json:"current"`
	Total      int         `json:"total"`
	Success    int         `json:"success"`
	Duplicates int         `json:"duplicates"`
	Errors     int         `json:"errors"`
	Error      string      `json:"error,omitempty"` // Non-empty if Phase is PhaseFailed
}

// Percent returns the progress as a percentage (0-100).
func (p ImportProgress) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	return (p.Current * 100) / p.Total
}

// Done reports whether the run has reached a terminal phase.
func (p ImportProgress) Done() bool {
	return p.Phase == PhaseComplete || p.Phase == PhaseFailed
}

// RowErrorKind separates rows rejected by validation from rows rejected by storage.
type RowErrorKind string

const (
	RowValidation  RowErrorKind = "validation"
	RowPersistence RowErrorKind = "persistence"
)

// RowError describes a data row that was neither imported nor skipped.
type RowError struct {
	Row     int          `json:"row"` // File line number, header is line 1
	Message string       `json:"error"`
	Data    RawRow       `json:"data"`
	Kind    RowErrorKind `json:"kind"`
}

// ImportResult is the outcome of one run.
type ImportResult struct {
	RunID      string        `json:"run_id,omitempty"`
	Kind       Kind          `json:"kind"`
	FileName   string        `json:"file_name,omitempty"`
	Headers    RawRow        `json:"headers"`
	TotalRows  int           `json:"total_rows"`
	Success    int           `json:"success"`
	Duplicates int           `json:"duplicates"`
	Errors     []RowError    `json:"errors"`
	Duration   time.Duration `json:"duration_ns"`
}
