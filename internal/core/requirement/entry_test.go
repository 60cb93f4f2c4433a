package requirement

import "testing"

func TestShouldEnter(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"我想選型，量測 UVC LED", true},
		{"幫我推薦一台照度計", true},
		{"SRI-2000 的規格", false},
		{"SRI-2000 適合哪個場景？幫我選", true},
		{"SRI-2000 vs LX-10", false},
		{"SRI-2000 versus 舊款 推薦", false},
		{"SRI-2000 和舊款差異 推薦", false},
		{"公司地址在哪", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := ShouldEnter(tc.text); got != tc.want {
			t.Fatalf("ShouldEnter(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestLooksLikeComparison(t *testing.T) {
	if !LooksLikeComparison("SRI-2000 與 sri-2000 以及 LX-10") {
		t.Fatalf("two distinct models should compare")
	}
	if LooksLikeComparison("SRI-2000 與 sri-2000") {
		t.Fatalf("the same model twice is not a comparison")
	}
	if LooksLikeComparison("比較一下光譜儀") {
		t.Fatalf("comparison words without models must not count")
	}
}
