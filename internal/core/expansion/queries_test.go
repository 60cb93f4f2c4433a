package expansion

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuildSearchQueriesOrderAndDedupe(t *testing.T) {
	got := BuildSearchQueries("SRI-2000 照度", []string{"SRI-2000 照度", "sri2000"}, []string{"UVC 輻照度"}, "SRI-2000")
	want := []string{
		"SRI-2000 照度",
		"SRI-2000",
		"sri2000",
		"UVC 輻照度",
		"照度",
		"lux",
		"illuminance",
		"SRI-2000 UVC 輻照度 SRI-2000 照度 sri2000",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected queries (-want +got):\n%s", diff)
	}
}

func TestBuildSearchQueriesCapsAtTen(t *testing.T) {
	got := BuildSearchQueries("ppfd uvc", nil, nil, "")
	if len(got) != MaxQueries {
		t.Fatalf("expected %d queries, got %d: %v", MaxQueries, len(got), got)
	}
	if got[0] != "ppfd uvc" || got[1] != "PPFD" {
		t.Fatalf("unexpected leading queries: %v", got)
	}
}

func TestBuildSearchQueriesBlankInput(t *testing.T) {
	if got := BuildSearchQueries("  ", nil, nil, ""); len(got) != 0 {
		t.Fatalf("expected no queries, got %v", got)
	}
}
