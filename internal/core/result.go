package core

// newResult returns an empty result with a non-nil error list.
func newResult(kind Kind, header RawRow, total int) *ImportResult {
	return &ImportResult{
		Kind:      kind,
		Headers:   header,
		TotalRows: total,
		Errors:    []RowError{},
	}
}

// record folds one row outcome into the counters.
func (r *ImportResult) record(o rowOutcome) {
	switch o.kind {
	case outcomeSuccess:
		r.Success++
	case outcomeDuplicate:
		r.Duplicates++
	case outcomeError:
		r.Errors = append(r.Errors, o.err)
	}
}

// Processed is the number of rows that reached an outcome.
func (r *ImportResult) Processed() int {
	return r.Success + r.Duplicates + len(r.Errors)
}

// HasFailures reports whether any row was rejected.
func (r *ImportResult) HasFailures() bool {
	return len(r.Errors) > 0
}

// ErrorsUpTo returns at most limit row errors and the number left out.
// A limit of zero or less returns all of them.
func (r *ImportResult) ErrorsUpTo(limit int) ([]RowError, int) {
	if limit <= 0 || len(r.Errors) <= limit {
		return r.Errors, 0
	}
	return r.Errors[:limit], len(r.Errors) - limit
}
