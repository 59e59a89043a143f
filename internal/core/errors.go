package core

import (
	"errors"
	"fmt"
	"strings"
)

// FatalPrefix starts the message of every run-aborting error.
const FatalPrefix = "Erreur lors de l'import: "

// ErrUnknownKind is returned when an import names a kind that is not registered.
var ErrUnknownKind = errors.New("unknown import kind")

// ErrRunNotFound is returned when a run ID is unknown or has expired.
var ErrRunNotFound = errors.New("import run not found")

// StructuralError means the file cannot be read as an import at all.
type StructuralError struct {
	Reason string
}

func (e *StructuralError) Error() string { return e.Reason }

// SchemaError means required columns are missing from the header row.
type SchemaError struct {
	Missing []string // Human labels
}

func (e *SchemaError) Error() string {
	return "colonnes requises manquantes: " + strings.Join(e.Missing, ", ")
}

// StorageError means the store failed outside the row loop.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ImportError wraps any error that aborted a run before the row loop finished.
// errors.As reaches the underlying StructuralError, SchemaError or StorageError.
type ImportError struct {
	Err error
}

func (e *ImportError) Error() string {
	return FatalPrefix + e.Err.Error()
}

func (e *ImportError) Unwrap() error { return e.Err }

func fatal(err error) error {
	var ie *ImportError
	if errors.As(err, &ie) {
		return err
	}
	return &ImportError{Err: err}
}

var errTooFewRows = &StructuralError{
	Reason: "le fichier doit contenir une ligne d'en-tête et au moins une ligne de données",
}
