package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Extractor pulls the plain text layer out of PDF documents.
type Extractor struct {
	maxBytes int64
}

func NewExtractor(maxBytes int64) *Extractor {
	if maxBytes <= 0 {
		maxBytes = 32 << 20
	}
	return &Extractor{maxBytes: maxBytes}
}

func (e *Extractor) Extract(_ context.Context, name string, r io.Reader) (text string, err error) {
	raw, err := io.ReadAll(io.LimitReader(r, e.maxBytes))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}

	// The parser panics on some malformed inputs.
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = fmt.Errorf("parse pdf %s: %v", name, rec)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", name, err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text %s: %w", name, err)
	}
	var b bytes.Buffer
	if _, err := b.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read pdf text %s: %w", name, err)
	}
	return strings.TrimSpace(b.String()), nil
}
