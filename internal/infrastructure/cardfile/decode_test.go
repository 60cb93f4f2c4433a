package cardfile

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/product-advisor/internal/core/domain"
)

func TestDecodeJSON(t *testing.T) {
	raw := `[{"title":" 照度計 ","model":"LX-10","url":"https://example.com/lx-10"},{"title":""}]`
	got, err := Decode("cards.json", strings.NewReader(raw))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	want := []domain.ProductCard{{Title: "照度計", Model: "LX-10", URL: "https://example.com/lx-10"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected cards (-want +got):\n%s", diff)
	}
}

func TestDecodeYAML(t *testing.T) {
	raw := "- title: 高速光譜儀\n  model: SRI-2000\n  specifications: 200-1100nm\n"
	got, err := Decode("cards.yml", strings.NewReader(raw))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	want := []domain.ProductCard{{Title: "高速光譜儀", Model: "SRI-2000", Specifications: "200-1100nm"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected cards (-want +got):\n%s", diff)
	}
}

func TestDecodeEmptyYAML(t *testing.T) {
	got, err := Decode("cards.yaml", strings.NewReader(""))
	if err != nil || len(got) != 0 {
		t.Fatalf("Decode() = %v, %v", got, err)
	}
}

func TestDecodeWorkbook(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Model", "Title", "Category"},
		{"LX-10", "照度計", "meter"},
		{"", "", ""},
		{"SRI-2000", "高速光譜儀"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	got, err := Decode("cards.xlsx", &buf)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	want := []domain.ProductCard{
		{Title: "照度計", Model: "LX-10", Category: "meter"},
		{Title: "高速光譜儀", Model: "SRI-2000"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected cards (-want +got):\n%s", diff)
	}
}

func TestDecodeRejectsUnknownFormat(t *testing.T) {
	_, err := Decode("cards.csv", strings.NewReader("title\nx"))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
