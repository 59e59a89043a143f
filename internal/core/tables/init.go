// Package tables defines the patient and appointment import schemas.
package tables

import "github.com/JonMunkholm/clinicimport/internal/core"

// Definitions returns every built-in import definition.
func Definitions() []core.Definition {
	return []core.Definition{Persons(), Events()}
}

// Registry returns a registry holding the built-in definitions.
func Registry() *core.Registry {
	return core.MustRegistry(Definitions()...)
}
