// Package templates renders the HTML fragments returned to HTMX requests.
package templates

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/clinicimport/internal/core"
)

// ResultParams is the input of ImportResult.
type ResultParams struct {
	Result *core.ImportResult

	// ErrorLimit caps the rows listed in the error table. Zero lists all.
	ErrorLimit int

	// ReportURL links to the failed-rows download when set.
	ReportURL string

	// Preview titles the summary as a simulation; nothing was written.
	Preview bool
}

// ImportResult renders the summary of a finished run and its row errors.
func ImportResult(p ResultParams) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		res := p.Result
		b := &htmlWriter{w: w}

		b.raw(`<div class="import-result" data-run-id="`)
		b.text(res.RunID)
		title, imported := "Import terminé: ", "Importés"
		if p.Preview {
			title, imported = "Aperçu de l'import: ", "À importer"
		}
		b.raw(`"><h3>`)
		b.text(title + res.FileName)
		b.raw(`</h3><ul class="import-counts">`)
		b.count(imported, res.Success)
		b.count("Doublons ignorés", res.Duplicates)
		b.count("Erreurs", len(res.Errors))
		b.raw(`</ul>`)

		if len(res.Errors) > 0 {
			shown, hidden := res.ErrorsUpTo(p.ErrorLimit)
			b.raw(`<table class="import-errors"><thead><tr><th>Ligne</th><th>Erreur</th></tr></thead><tbody>`)
			for _, e := range shown {
				b.raw(`<tr><td>`)
				b.text(strconv.Itoa(e.Row))
				b.raw(`</td><td>`)
				b.text(e.Message)
				b.raw(`</td></tr>`)
			}
			b.raw(`</tbody></table>`)
			if hidden > 0 {
				b.raw(`<p class="import-errors-more">`)
				b.text(fmt.Sprintf("… et %d autres erreurs", hidden))
				b.raw(`</p>`)
			}
			if p.ReportURL != "" {
				b.raw(`<a class="import-report" href="`)
				b.text(p.ReportURL)
				b.raw(`">Télécharger les lignes en erreur</a>`)
			}
		}

		b.raw(`</div>`)
		return b.err
	})
}

// ErrorAlert renders a coded error message with its suggested action.
func ErrorAlert(msg core.UserMessage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		b := &htmlWriter{w: w}

		b.raw(`<div class="alert alert-error" role="alert"><strong>`)
		b.text(msg.Message)
		if msg.Detail != "" {
			b.text(": " + msg.Detail)
		}
		b.raw(`</strong>`)
		if msg.Action != "" {
			b.raw(`<p>`)
			b.text(msg.Action)
			b.raw(`</p>`)
		}
		b.raw(`<small>Code: `)
		b.text(msg.Code)
		b.raw(`</small></div>`)
		return b.err
	})
}

// htmlWriter keeps the first write error so components can write unconditionally.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (b *htmlWriter) raw(s string) {
	if b.err == nil {
		_, b.err = io.WriteString(b.w, s)
	}
}

func (b *htmlWriter) text(s string) {
	b.raw(templ.EscapeString(s))
}

func (b *htmlWriter) count(label string, n int) {
	b.raw(`<li>`)
	b.text(label)
	b.raw(`: <span>`)
	b.text(strconv.Itoa(n))
	b.raw(`</span></li>`)
}
