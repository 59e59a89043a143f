// Package core provides the business logic for clinic CSV imports.
//
// This package contains all import logic independent of any transport or
// database. It is used by the web handlers, the importctl CLI, and tests
// with the in-memory store.
//
// # Definitions
//
// Each import kind is described by a [Definition]: its canonical fields,
// whether rows are deduplicated, and an optional whole-record check.
// Definitions are held by an immutable [Registry] built once at startup:
//
//	reg := core.MustRegistry(core.Definition{
//	    Kind:  "persons",
//	    Table: "patients",
//	    Fields: []core.CanonicalField{
//	        {Label: "Prénom", StorageKey: "first_name", Required: true},
//	        {Label: "Email", StorageKey: "email", Validate: isEmail},
//	    },
//	    Dedup: true,
//	})
//
// # Import Flow
//
// A run holds the whole file in memory and processes rows strictly in order:
//
//  1. [DecodeText] strips a BOM and replaces invalid UTF-8
//  2. [Tokenize] splits the text into rows, the first being the header
//  3. [ResolveColumns] maps normalized headers to canonical fields
//  4. [PreloadKeys] loads the emails and names already stored
//  5. Each row is extracted, validated, checked for duplicates and inserted
//
// Every data row ends up counted as a success or a duplicate, or listed in
// [ImportResult.Errors] with its file line number. Only an unreadable file,
// missing required columns or a failed preload abort the run; those are
// returned as [*ImportError].
//
// # Service
//
// [Service] adds run tracking on top of [Pipeline]: a concurrency limit,
// asynchronous runs with [Service.SubscribeProgress], and results kept for
// a retention period so failed rows can be downloaded.
//
// # Error Handling
//
// Technical errors are mapped to French user messages using [MapError].
// Each message carries a code for support reference:
//
//   - DB001-DB009: storage constraints and connectivity
//   - IMP001-IMP006: file structure, schema and upload errors
//   - RUN001-RUN004: run lifecycle (busy, expired, cancelled, timed out)
//   - RATE001: request throttling
package core
