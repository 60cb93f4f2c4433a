package plaintext

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
)

func extract(t *testing.T, raw []byte) string {
	t.Helper()
	got, err := NewExtractor(0).Extract(context.Background(), "product_LX-10.md", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	return got
}

func TestExtractUTF8WithBOM(t *testing.T) {
	raw := append([]byte{0xEF, 0xBB, 0xBF}, []byte("名稱: 照度計\r\nModel: LX-10\r\n")...)
	if got := extract(t, raw); got != "名稱: 照度計\nModel: LX-10" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestExtractBig5(t *testing.T) {
	raw, err := traditionalchinese.Big5.NewEncoder().Bytes([]byte("產品名稱：照度計\n型號：LX-10"))
	if err != nil {
		t.Fatalf("encode big5: %v", err)
	}
	if got := extract(t, raw); got != "產品名稱：照度計\n型號：LX-10" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestExtractUTF16(t *testing.T) {
	raw, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes([]byte("型號：SRI-2000"))
	if err != nil {
		t.Fatalf("encode utf16: %v", err)
	}
	if got := extract(t, raw); got != "型號：SRI-2000" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestExtractDropsStrayBytes(t *testing.T) {
	got := extract(t, []byte("照度Model: LX-10 \xff\xfe\xfd"))
	if got != "照度Model: LX-10" || strings.ContainsRune(got, utf8.RuneError) {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestExtractRespectsLimit(t *testing.T) {
	got, err := NewExtractor(5).Extract(context.Background(), "a.md", strings.NewReader("abcdefgh"))
	if err != nil || got != "abcde" {
		t.Fatalf("Extract() = %q, %v", got, err)
	}
}
