package ingest

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/jblondin/etl/pkg/errors"
)

// Encoding is the character encoding a cell was decoded from.
type Encoding int

const (
	UTF8 Encoding = iota
	Latin1
	Windows1252
)

func (e Encoding) String() string {
	switch e {
	case UTF8:
		return "utf-8"
	case Latin1:
		return "iso-8859-1"
	case Windows1252:
		return "windows-1252"
	}
	return "unknown"
}

var fallbacks = []struct {
	enc     Encoding
	charmap *charmap.Charmap
}{
	{Latin1, charmap.ISO8859_1},
	{Windows1252, charmap.Windows1252},
}

// Decode returns raw as UTF-8 text. Valid UTF-8 is returned unchanged;
// otherwise ISO-8859-1 and then Windows-1252 are tried. A candidate decoding
// is rejected when it contains C1 control characters, which is how bytes
// 0x80-0x9F fall through from Latin-1 to Windows-1252 and how the bytes
// Windows-1252 leaves undefined fail both.
func Decode(raw string) (string, Encoding, error) {
	if utf8.ValidString(raw) {
		return raw, UTF8, nil
	}
	for _, fb := range fallbacks {
		s, err := fb.charmap.NewDecoder().String(raw)
		if err == nil && printable(s) {
			return s, fb.enc, nil
		}
	}
	return "", UTF8, errors.New(errors.ErrorTypeDecode,
		"cell is not valid UTF-8, ISO-8859-1 or Windows-1252")
}

func printable(s string) bool {
	for _, r := range s {
		if r == utf8.RuneError || (r >= 0x80 && r <= 0x9f) {
			return false
		}
	}
	return true
}
