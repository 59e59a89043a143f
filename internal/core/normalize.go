package core

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeHeader turns a free-form label into a comparable token.
//
//	"Date de Naissance" -> "date_de_naissance"
//	"  Prénom  "        -> "prenom"
//	"E-mail (perso)"    -> "e_mail_perso"
func NormalizeHeader(s string) string {
	s = foldAccents(strings.ToLower(strings.TrimSpace(s)))

	var b strings.Builder
	b.Grow(len(s))
	sep := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if sep && b.Len() > 0 {
				b.WriteByte('_')
			}
			sep = false
			b.WriteRune(r)
			continue
		}
		sep = true
	}
	return b.String()
}

// NormalizeHeaders normalizes every cell of a header row.
func NormalizeHeaders(header RawRow) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = NormalizeHeader(h)
	}
	return out
}

// foldAccents strips combining marks after canonical decomposition, so
// "é" becomes "e". Letters without a decomposition (ø, ß) are left alone.
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

// compact drops separators so "pre_nom" and "prenom" compare equal.
func compact(token string) string {
	return strings.ReplaceAll(token, "_", "")
}
