// Package cardfile reads product card batches for import into the card
// store. JSON and YAML files hold a list of cards; a workbook holds one card
// per row of its first sheet under a header row.
package cardfile

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/kirillkom/product-advisor/internal/core/domain"
)

// Decode picks the format from the extension of name. Rows without a title
// are dropped.
func Decode(name string, r io.Reader) ([]domain.ProductCard, error) {
	var (
		cards []domain.ProductCard
		err   error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		err = json.NewDecoder(r).Decode(&cards)
	case ".yaml", ".yml":
		err = yaml.NewDecoder(r).Decode(&cards)
		if err == io.EOF {
			err = nil
		}
	case ".xlsx":
		cards, err = decodeSheet(r)
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "decode cards", fmt.Errorf("unsupported file %q", name))
	}
	if err != nil {
		return nil, fmt.Errorf("decode cards %s: %w", name, err)
	}

	out := cards[:0]
	for _, c := range cards {
		c.Title = strings.TrimSpace(c.Title)
		if c.Title == "" {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func decodeSheet(r io.Reader) ([]domain.ProductCard, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	col := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := col["title"]; !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "decode card sheet", fmt.Errorf("missing title column"))
	}

	cards := make([]domain.ProductCard, 0, len(rows)-1)
	for _, row := range rows[1:] {
		cell := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		cards = append(cards, domain.ProductCard{
			Title:          cell("title"),
			Model:          cell("model"),
			Category:       cell("category"),
			URL:            cell("url"),
			Description:    cell("description"),
			Specifications: cell("specifications"),
		})
	}
	return cards, nil
}
