package core

import (
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultMaxFileSize bounds the bytes read from one upload.
const DefaultMaxFileSize = 10 << 20

// DecodeText reads the whole file and returns it as valid UTF-8 text.
//
// A leading byte order mark is consumed. UTF-16 files with a BOM are
// transcoded; everything else is treated as UTF-8 and invalid sequences
// become U+FFFD. Files larger than maxSize fail with a StructuralError.
func DecodeText(r io.Reader, maxSize int64) (string, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	raw, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	if int64(len(raw)) > maxSize {
		return "", &StructuralError{
			Reason: "fichier trop volumineux (maximum " + formatSize(maxSize) + ")",
		}
	}

	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	text, _, err := transform.Bytes(decoder, raw)
	if err != nil {
		return "", &StructuralError{Reason: "encodage du fichier illisible: " + err.Error()}
	}

	return string(text), nil
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%d Mo", n>>20)
	case n >= 1<<10:
		return fmt.Sprintf("%d Ko", n>>10)
	default:
		return fmt.Sprintf("%d octets", n)
	}
}
