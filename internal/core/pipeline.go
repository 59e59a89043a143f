package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Pipeline imports the rows of one file into a store.
//
// Rows are processed strictly in file order, one awaited insert at a time.
// Only structural, schema and preload failures abort a run; everything that
// goes wrong with a single row is recorded in the result and the loop moves on.
// The row loop does not check ctx: a cancelled context surfaces through the
// store as per-row persistence errors.
type Pipeline struct {
	def     Definition
	store   Store
	matcher HeaderMatcher
	logger  *slog.Logger
}

// NewPipeline creates a pipeline for def. A nil matcher selects SubstringMatcher.
func NewPipeline(def Definition, store Store, matcher HeaderMatcher, logger *slog.Logger) *Pipeline {
	if matcher == nil {
		matcher = SubstringMatcher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{def: def, store: store, matcher: matcher, logger: logger}
}

// Run tokenizes text and imports its data rows.
func (p *Pipeline) Run(ctx context.Context, text string, progress ProgressFunc) (*ImportResult, error) {
	header, data, err := SplitHeader(Tokenize(text))
	if err != nil {
		return nil, fatal(err)
	}
	return p.RunRows(ctx, header, data, progress)
}

// RunRows imports already tokenized rows.
func (p *Pipeline) RunRows(ctx context.Context, header RawRow, data []RawRow, progress ProgressFunc) (*ImportResult, error) {
	mapping, err := ResolveColumns(NormalizeHeaders(header), p.def.Fields, p.matcher)
	if err != nil {
		return nil, fatal(err)
	}

	sets := NewDedupSets()
	if p.def.Dedup {
		sets, err = PreloadKeys(ctx, p.store, p.def.Kind)
		if err != nil {
			return nil, fatal(err)
		}
		p.logger.Debug("dedup keys loaded", "emails", len(sets.Emails), "names", len(sets.Names))
	}

	state := foldState{sets: sets, result: newResult(p.def.Kind, header, len(data))}
	for i, row := range data {
		state = p.step(ctx, state, mapping, i, row)
		if progress != nil {
			progress(i+1, len(data))
		}
	}

	return state.result, nil
}

// foldState is threaded from one row to the next.
type foldState struct {
	sets   DedupSets
	result *ImportResult
}

type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeDuplicate
	outcomeError
)

// rowOutcome is the single result of processing one data row.
type rowOutcome struct {
	kind outcomeKind
	keys dedupKeys // set on success, used to grow the dedup sets
	err  RowError  // set on outcomeError
}

func (p *Pipeline) step(ctx context.Context, state foldState, mapping ColumnMapping, i int, row RawRow) foldState {
	out := p.processRow(ctx, state.sets, mapping, i+2, row)

	switch out.kind {
	case outcomeSuccess:
		if p.def.Dedup {
			state.sets.add(out.keys)
		}
	case outcomeError:
		p.logger.Debug("row rejected", "row", out.err.Row, "kind", out.err.Kind, "error", out.err.Message)
	}

	state.result.record(out)
	return state
}

func (p *Pipeline) processRow(ctx context.Context, sets DedupSets, mapping ColumnMapping, line int, row RawRow) (out rowOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = rowFailure(line, row, RowValidation, fmt.Sprintf("erreur interne: %v", r))
		}
	}()

	rec, msg := p.extract(mapping, row)
	if msg != "" {
		return rowFailure(line, row, RowValidation, msg)
	}

	if p.def.CheckRecord != nil {
		if err := p.def.CheckRecord(rec); err != nil {
			return rowFailure(line, row, RowValidation, err.Error())
		}
	}

	var keys dedupKeys
	if p.def.Dedup {
		keys = keysOf(rec)
		if sets.has(keys) {
			return rowOutcome{kind: outcomeDuplicate}
		}
	}

	if err := p.store.InsertOne(ctx, p.def.Kind, rec); err != nil {
		return rowFailure(line, row, RowPersistence, err.Error())
	}

	return rowOutcome{kind: outcomeSuccess, keys: keys}
}

// extract builds the record for one row. A non-empty message rejects the row.
func (p *Pipeline) extract(mapping ColumnMapping, row RawRow) (Record, string) {
	rec := make(Record, len(p.def.Fields))

	for _, f := range p.def.Fields {
		idx, ok := mapping[f.StorageKey]
		if !ok {
			if f.Required {
				return nil, "Colonne requise absente: " + f.Label
			}
			continue
		}
		if idx >= len(row) {
			continue
		}

		value := strings.TrimSpace(row[idx])
		if value != "" && f.Validate != nil && !f.Validate(value) {
			return nil, fmt.Sprintf("%s invalide: %s", f.Label, value)
		}

		var v any = value
		if f.Transform != nil {
			v = f.Transform(value)
		}
		if isTruthy(v) {
			rec[f.StorageKey] = v
		}
	}

	return rec, ""
}

func rowFailure(line int, row RawRow, kind RowErrorKind, msg string) rowOutcome {
	return rowOutcome{
		kind: outcomeError,
		err:  RowError{Row: line, Message: msg, Data: row, Kind: kind},
	}
}
