package core

import "strings"

// Tokenize splits CSV text into rows.
//
// Fields are comma separated. A field that starts with a double quote may
// contain commas, quotes written as "" and line breaks. LF, CRLF and a lone
// CR all end a line. Unquoted fields are trimmed; quoted content is kept as
// written. Lines without a single non-blank field are dropped, and a final
// line without a terminator is still emitted.
//
// The tokenizer is lenient: a quote in the middle of an unquoted field is
// literal, and an unterminated quoted field runs to the end of the input.
func Tokenize(text string) []RawRow {
	var (
		rows []RawRow
		row  RawRow

		field     strings.Builder
		inQuotes  bool // between an opening and a closing quote
		wasQuoted bool // current field opened with a quote
		closed    bool // closing quote seen, field content is final
	)

	endField := func() {
		v := field.String()
		if !wasQuoted {
			v = strings.TrimSpace(v)
		}
		row = append(row, v)
		field.Reset()
		wasQuoted, closed = false, false
	}

	endLine := func() {
		endField()
		if !isEmptyRow(row) {
			rows = append(rows, row)
		}
		row = nil
	}

	for i := 0; i < len(text); i++ {
		c := text[i]

		if inQuotes {
			if c != '"' {
				field.WriteByte(c)
				continue
			}
			if i+1 < len(text) && text[i+1] == '"' {
				field.WriteByte('"')
				i++
				continue
			}
			inQuotes, closed = false, true
			continue
		}

		switch c {
		case ',':
			endField()
		case '\n':
			endLine()
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			endLine()
		case '"':
			if !wasQuoted && strings.TrimSpace(field.String()) == "" {
				field.Reset()
				inQuotes, wasQuoted = true, true
				continue
			}
			field.WriteByte(c)
		case ' ', '\t':
			// Padding after a closing quote is not part of the value.
			if !closed {
				field.WriteByte(c)
			}
		default:
			field.WriteByte(c)
		}
	}

	if field.Len() > 0 || len(row) > 0 || wasQuoted {
		endLine()
	}

	return rows
}

// SplitHeader separates the header row from the data rows.
// At least one data row is required.
func SplitHeader(rows []RawRow) (RawRow, []RawRow, error) {
	if len(rows) < 2 {
		return nil, nil, errTooFewRows
	}
	return rows[0], rows[1:], nil
}

// isEmptyRow returns true if all fields in the row are empty or whitespace.
func isEmptyRow(row RawRow) bool {
	for _, field := range row {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
