package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kirillkom/product-advisor/internal/core/domain"
)

func hitTexts(hits []domain.VectorHit) []string {
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.Text)
	}
	return out
}

func TestMultiSearchMergesByTextAndKeepsSmallestDistance(t *testing.T) {
	searcher := &searcherFake{
		byQuery: map[string][]domain.VectorHit{
			"q1": {
				{Text: "UVC 輻照度量測", Distance: distance(0.5)},
				{Text: "照度計 LX-10", Distance: distance(0.3)},
			},
			"q2": {
				{Text: "  uvc   輻照度量測 ", Distance: distance(0.1)},
				{Text: "no distance"},
			},
		},
		fail: map[string]error{"q3": errors.New("qdrant down")},
	}
	ms := NewMultiSearch(searcher, testLogger())

	got := ms.Search(context.Background(), []string{"q1", "q2", "q3"}, 4, 0)

	want := []string{"  uvc   輻照度量測 ", "照度計 LX-10", "no distance"}
	if diff := cmp.Diff(want, hitTexts(got)); diff != "" {
		t.Fatalf("unexpected merge (-want +got):\n%s", diff)
	}
	if len(searcher.queries) != 3 {
		t.Fatalf("expected every query to run, got %v", searcher.queries)
	}
}

func TestMultiSearchCapsResults(t *testing.T) {
	searcher := &searcherFake{hits: []domain.VectorHit{
		{Text: "a", Distance: distance(0.3)},
		{Text: "b", Distance: distance(0.1)},
		{Text: "c", Distance: distance(0.2)},
	}}
	got := NewMultiSearch(searcher, testLogger()).Search(context.Background(), []string{"q"}, 3, 2)
	if diff := cmp.Diff([]string{"b", "c"}, hitTexts(got)); diff != "" {
		t.Fatalf("unexpected capped hits (-want +got):\n%s", diff)
	}
}

func TestMultiSearchWithoutSearcher(t *testing.T) {
	if got := NewMultiSearch(nil, nil).Search(context.Background(), []string{"q"}, 3, 0); got != nil {
		t.Fatalf("expected nil hits, got %#v", got)
	}
}

func TestDedupeAndCap(t *testing.T) {
	hits := []domain.VectorHit{
		{Text: "one", Metadata: map[string]string{"source": "a.md"}, Distance: distance(0.4)},
		{Text: "two", Metadata: map[string]string{"source": "a.md"}, Distance: distance(0.1)},
		{Text: "three", Metadata: map[string]string{"source": "a.md"}, Distance: distance(0.2)},
		{Text: "TWO", Metadata: map[string]string{"file": "b.md"}, Distance: distance(0.3)},
		{Text: "   ", Metadata: map[string]string{"source": "c.md"}, Distance: distance(0.05)},
		{Text: "orphan", ID: "p9"},
	}

	got := DedupeAndCap(hits, 2, true)
	if diff := cmp.Diff([]string{"two", "three", "orphan"}, hitTexts(got)); diff != "" {
		t.Fatalf("unexpected dedupe (-want +got):\n%s", diff)
	}

	got = DedupeAndCap(hits, 2, false)
	if diff := cmp.Diff([]string{"two", "three", "TWO", "orphan"}, hitTexts(got)); diff != "" {
		t.Fatalf("unexpected cap without text dedupe (-want +got):\n%s", diff)
	}
}

func TestHitKeyTruncates(t *testing.T) {
	long := strings.Repeat("光", hitKeyChars+50)
	if got := []rune(hitKey(long)); len(got) != hitKeyChars {
		t.Fatalf("expected %d runes, got %d", hitKeyChars, len(got))
	}
	if hitKey(" A\n\tB ") != "a b" {
		t.Fatalf("unexpected key %q", hitKey(" A\n\tB "))
	}
}
