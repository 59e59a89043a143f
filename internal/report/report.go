// Package report writes the failed rows of an import so they can be fixed
// and imported again. Each report row is the original row prefixed with its
// line number in the source file and the error message.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/clinicimport/internal/core"
)

// Leading report columns.
const (
	ColumnLine  = "_ligne"
	ColumnError = "_erreur"
)

const sheetName = "Erreurs"

// Format is a report file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts "csv", "xlsx" or empty for CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported report format %q", s)
}

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// FileName returns erreurs_{kind}_{date}.{ext}.
func FileName(kind core.Kind, f Format, now time.Time) string {
	return fmt.Sprintf("erreurs_%s_%s.%s", kind, now.Format("2006-01-02"), f)
}

// Header returns the report header row for result.
func Header(result *core.ImportResult) []string {
	return append([]string{ColumnLine, ColumnError}, result.Headers...)
}

// Rows returns one row per failed data row, padded to the header width.
func Rows(result *core.ImportResult) [][]string {
	width := len(result.Headers)
	rows := make([][]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		row := make([]string, 2, 2+max(width, len(e.Data)))
		row[0] = fmt.Sprint(e.Row)
		row[1] = e.Message
		row = append(row, e.Data...)
		for len(row) < 2+width {
			row = append(row, "")
		}
		rows = append(rows, row)
	}
	return rows
}

// Write writes result in format f.
func Write(w io.Writer, f Format, result *core.ImportResult) error {
	if f == FormatXLSX {
		return WriteXLSX(w, result)
	}
	return WriteCSV(w, result)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteCSV writes a BOM-prefixed CSV report, the same shape as the import templates.
func WriteCSV(w io.Writer, result *core.ImportResult) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Header(result)); err != nil {
		return err
	}
	for _, row := range Rows(result) {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes the report as a single-sheet workbook with a bold header.
func WriteXLSX(w io.Writer, result *core.ImportResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	header := toCells(Header(result))
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetRowStyle(sheetName, 1, 1, bold); err != nil {
		return err
	}

	for i, row := range Rows(result) {
		cells := toCells(row)
		cells[0] = result.Errors[i].Row

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cell, &cells); err != nil {
			return err
		}
	}

	return f.Write(w)
}

func toCells(row []string) []any {
	cells := make([]any, len(row))
	for i, v := range row {
		cells[i] = v
	}
	return cells
}
