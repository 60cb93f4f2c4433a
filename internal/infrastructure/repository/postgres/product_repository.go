package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/kirillkom/product-advisor/internal/core/domain"
)

type ProductCardRepository struct {
	db *sql.DB
}

func NewProductCardRepository(db *sql.DB) *ProductCardRepository {
	return &ProductCardRepository{db: db}
}

const productColumns = `id, title, model, category, url, description, specifications`

// SearchByKeyword matches the keyword anywhere in the title, case-insensitively.
func (r *ProductCardRepository) SearchByKeyword(ctx context.Context, keyword string, limit int) ([]domain.ProductCard, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" || limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+productColumns+`
FROM products
WHERE title ILIKE $1 ESCAPE '\'
ORDER BY id ASC
LIMIT $2
`, "%"+escapeLike(keyword)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("search products by keyword: %w", err)
	}
	defer rows.Close()
	return scanCards(rows, limit)
}

// GetByTitles returns cards whose title is one of titles.
func (r *ProductCardRepository) GetByTitles(ctx context.Context, titles []string, limit int) ([]domain.ProductCard, error) {
	args := make([]any, 0, len(titles)+1)
	placeholders := make([]string, 0, len(titles))
	for _, title := range titles {
		title = strings.TrimSpace(title)
		if title == "" {
			continue
		}
		args = append(args, title)
		placeholders = append(placeholders, "$"+strconv.Itoa(len(args)))
	}
	if len(args) == 0 || limit <= 0 {
		return nil, nil
	}
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, `
SELECT `+productColumns+`
FROM products
WHERE title IN (`+strings.Join(placeholders, ",")+`)
ORDER BY id ASC
LIMIT $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("get products by titles: %w", err)
	}
	defer rows.Close()
	return scanCards(rows, limit)
}

// Upsert inserts or replaces a card keyed by title and returns its id.
func (r *ProductCardRepository) Upsert(ctx context.Context, card domain.ProductCard) (int64, error) {
	if strings.TrimSpace(card.Title) == "" {
		return 0, domain.WrapError(domain.ErrInvalidInput, "upsert product card", fmt.Errorf("empty title"))
	}
	row := r.db.QueryRowContext(ctx, `
INSERT INTO products (title, model, category, url, description, specifications)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (title) DO UPDATE SET
	model = EXCLUDED.model,
	category = EXCLUDED.category,
	url = EXCLUDED.url,
	description = EXCLUDED.description,
	specifications = EXCLUDED.specifications,
	updated_at = now()
RETURNING id
`, strings.TrimSpace(card.Title), card.Model, card.Category, card.URL, card.Description, card.Specifications)

	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert product card: %w", err)
	}
	return id, nil
}

func (r *ProductCardRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func scanCards(rows *sql.Rows, limit int) ([]domain.ProductCard, error) {
	out := make([]domain.ProductCard, 0, limit)
	for rows.Next() {
		var card domain.ProductCard
		if err := rows.Scan(
			&card.ID,
			&card.Title,
			&card.Model,
			&card.Category,
			&card.URL,
			&card.Description,
			&card.Specifications,
		); err != nil {
			return nil, fmt.Errorf("scan product card: %w", err)
		}
		card.Title = strings.TrimSpace(card.Title)
		card.Description = strings.TrimSpace(card.Description)
		card.Specifications = strings.TrimSpace(card.Specifications)
		out = append(out, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product cards: %w", err)
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
