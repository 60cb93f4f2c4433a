package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/product-advisor/internal/core/domain"
)

var cardColumns = []string{"id", "title", "model", "category", "url", "description", "specifications"}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestSearchByKeywordEscapesLikePattern(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProductCardRepository(db)

	rows := sqlmock.NewRows(cardColumns).
		AddRow(int64(3), " SRI-2000 高速光譜儀 ", "SRI-2000", "光譜", "https://example.com/sri", " 說明 ", "")
	mock.ExpectQuery("WHERE title ILIKE").
		WithArgs(`%SRI\_2000\%%`, 8).
		WillReturnRows(rows)

	cards, err := repo.SearchByKeyword(context.Background(), " SRI_2000% ", 8)
	if err != nil {
		t.Fatalf("SearchByKeyword() error = %v", err)
	}
	if len(cards) != 1 || cards[0].Title != "SRI-2000 高速光譜儀" || cards[0].Description != "說明" || cards[0].ID != 3 {
		t.Fatalf("unexpected cards %+v", cards)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSearchByKeywordSkipsBlank(t *testing.T) {
	db, mock := newMock(t)
	cards, err := NewProductCardRepository(db).SearchByKeyword(context.Background(), "   ", 8)
	if err != nil || cards != nil {
		t.Fatalf("expected no query for blank keyword, got %v %v", cards, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByTitlesBuildsPlaceholders(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProductCardRepository(db)

	rows := sqlmock.NewRows(cardColumns).
		AddRow(int64(1), "LX-10 照度計", "LX-10", "", "", "", "照度 0-200000 lux").
		AddRow(int64(2), "SRI-2000", "SRI-2000", "", "", "", "")
	mock.ExpectQuery(`WHERE title IN \(\$1,\$2\)\s+ORDER BY id ASC\s+LIMIT \$3`).
		WithArgs("LX-10 照度計", "SRI-2000", 4).
		WillReturnRows(rows)

	cards, err := repo.GetByTitles(context.Background(), []string{"LX-10 照度計", "", "SRI-2000"}, 4)
	if err != nil {
		t.Fatalf("GetByTitles() error = %v", err)
	}
	if len(cards) != 2 || cards[0].Specifications != "照度 0-200000 lux" {
		t.Fatalf("unexpected cards %+v", cards)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByTitlesWrapsQueryError(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("FROM products").WillReturnError(errors.New("conn reset"))

	_, err := NewProductCardRepository(db).GetByTitles(context.Background(), []string{"x"}, 1)
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestUpsertReturnsID(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("INSERT INTO products").
		WithArgs("LX-10 照度計", "LX-10", "照度", "", "", "").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, err := NewProductCardRepository(db).Upsert(context.Background(), domain.ProductCard{Title: " LX-10 照度計", Model: "LX-10", Category: "照度"})
	if err != nil || id != 7 {
		t.Fatalf("Upsert() = %d, %v", id, err)
	}
	if _, err := NewProductCardRepository(db).Upsert(context.Background(), domain.ProductCard{}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty title, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSessionRepositoryLoadMissingReturnsFresh(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("FROM chat_sessions").WithArgs("s-1").WillReturnError(sql.ErrNoRows)

	s, err := NewSessionRepository(db).Load(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.ID != "s-1" || len(s.Messages) != 0 {
		t.Fatalf("unexpected session %+v", s)
	}
}

func TestSessionRepositoryRoundTrip(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSessionRepository(db)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	s := &domain.Session{ID: "s-1", Messages: []domain.Message{{Role: domain.RoleUser, Content: "SRI-2000 規格"}}}
	mock.ExpectExec("INSERT INTO chat_sessions").
		WithArgs("s-1", sqlmock.AnyArg(), fixed).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.Save(context.Background(), s); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	raw, _ := json.Marshal(s)
	mock.ExpectQuery("FROM chat_sessions").
		WithArgs("s-1").
		WillReturnRows(sqlmock.NewRows([]string{"state"}).AddRow(raw))
	loaded, err := repo.Load(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(loaded.Messages) != 1 || loaded.Messages[0].Content != "SRI-2000 規格" || !loaded.UpdatedAt.Equal(fixed) {
		t.Fatalf("unexpected session %+v", loaded)
	}

	mock.ExpectExec("DELETE FROM chat_sessions").WithArgs("s-1").WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.Delete(context.Background(), "s-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSessionRepositorySaveRequiresID(t *testing.T) {
	db, _ := newMock(t)
	err := NewSessionRepository(db).Save(context.Background(), &domain.Session{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestEnsureSchemaTakesAdvisoryLock(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS products").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
