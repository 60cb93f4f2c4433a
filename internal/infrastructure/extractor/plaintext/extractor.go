package plaintext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Extractor reads product and system text files. UTF-8 is expected; files
// saved as UTF-16 with a BOM or as Big5 are converted.
type Extractor struct {
	maxBytes int64
}

func NewExtractor(maxBytes int64) *Extractor {
	if maxBytes <= 0 {
		maxBytes = 8 << 20
	}
	return &Extractor{maxBytes: maxBytes}
}

func (e *Extractor) Extract(_ context.Context, name string, r io.Reader) (string, error) {
	raw, err := io.ReadAll(io.LimitReader(r, e.maxBytes))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	text := strings.ReplaceAll(decode(raw), "\r\n", "\n")
	return strings.TrimSpace(text), nil
}

func decode(raw []byte) string {
	switch {
	case bytes.HasPrefix(raw, utf8BOM):
		raw = raw[len(utf8BOM):]
	case bytes.HasPrefix(raw, []byte{0xFF, 0xFE}), bytes.HasPrefix(raw, []byte{0xFE, 0xFF}):
		if out, err := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder().Bytes(raw); err == nil {
			return string(out)
		}
	case !utf8.Valid(raw):
		// Only accept Big5 when every byte pair mapped; otherwise this is
		// damaged UTF-8 and the bad bytes are dropped below.
		if out, err := traditionalchinese.Big5.NewDecoder().Bytes(raw); err == nil && !bytes.ContainsRune(out, utf8.RuneError) {
			return string(out)
		}
	}
	return strings.ToValidUTF8(string(raw), "")
}
