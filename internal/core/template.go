package core

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"
)

// utf8BOM makes spreadsheet software open the file as UTF-8.
const utf8BOM = "\xEF\xBB\xBF"

// TemplateFileName returns the download name, template_{kind}_{YYYY-MM-DD}.csv.
func TemplateFileName(kind Kind, now time.Time) string {
	return fmt.Sprintf("template_%s_%s.csv", kind, now.Format("2006-01-02"))
}

// TemplateCSV renders the import template of def: a BOM, the field labels
// and one example row. Tokenize reads the output back unchanged.
func TemplateCSV(def Definition) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(utf8BOM)

	w := csv.NewWriter(&buf)
	if err := w.Write(def.Labels()); err != nil {
		return nil, fmt.Errorf("write template header: %w", err)
	}
	if len(def.Example) > 0 {
		if err := w.Write(def.Example); err != nil {
			return nil, fmt.Errorf("write template example: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("write template: %w", err)
	}

	return buf.Bytes(), nil
}
