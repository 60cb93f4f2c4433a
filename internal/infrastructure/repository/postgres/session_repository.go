package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/product-advisor/internal/core/domain"
)

// SessionRepository keeps chat sessions as JSONB rows for deployments that
// run several API instances behind one load balancer.
type SessionRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db, now: time.Now}
}

func (r *SessionRepository) Load(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT state
FROM chat_sessions
WHERE id = $1
`, id)

	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.Session{ID: id}, nil
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	var s domain.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return &domain.Session{ID: id}, nil
	}
	s.ID = id
	return &s, nil
}

func (r *SessionRepository) Save(ctx context.Context, s *domain.Session) error {
	if s == nil || s.ID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "save session", errors.New("missing session id"))
	}
	s.UpdatedAt = r.now().UTC()
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO chat_sessions (id, state, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at
`, s.ID, raw, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
