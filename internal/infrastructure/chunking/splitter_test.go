package chunking

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSplitEmpty(t *testing.T) {
	if got := NewSplitter(10, 2).Split(""); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestSplitShortTextIsOneChunk(t *testing.T) {
	got := NewSplitter(100, 10).Split("  型號：LX-10\n照度計  ")
	if diff := cmp.Diff([]string{"型號：LX-10\n照度計"}, got); diff != "" {
		t.Fatalf("unexpected chunks (-want +got):\n%s", diff)
	}
}

func TestSplitPrefersSentenceBoundary(t *testing.T) {
	// The first sentence is 13 runes; a 16-rune window breaks after it.
	text := "量測範圍為零到兩千勒克斯。" + "解析度為零點一勒克斯的。"
	got := NewSplitter(16, 0).Split(text)
	want := []string{"量測範圍為零到兩千勒克斯。", "解析度為零點一勒克斯的。"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected chunks (-want +got):\n%s", diff)
	}
}

func TestSplitHardCutWithOverlap(t *testing.T) {
	got := NewSplitter(4, 1).Split("abcdefghij")
	want := []string{"abcd", "defg", "ghij"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected chunks (-want +got):\n%s", diff)
	}
}

func TestNewSplitterNormalizesOverlap(t *testing.T) {
	s := NewSplitter(8, 8)
	if s.Overlap != 2 {
		t.Fatalf("expected overlap 2, got %d", s.Overlap)
	}
	for _, chunk := range s.Split(strings.Repeat("x", 40)) {
		if n := len([]rune(chunk)); n > 8 {
			t.Fatalf("chunk exceeds size: %d", n)
		}
	}
}
