package localfs

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kirillkom/product-advisor/internal/core/domain"
)

// SessionStore keeps one JSON file per session. Writes are atomic; an
// unreadable file is treated as a fresh session.
type SessionStore struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

func NewSessionStore(dir string, logger *slog.Logger) (*SessionStore, error) {
	if dir == "" {
		dir = "./data/sessions"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{dir: dir, logger: logger, now: time.Now}, nil
}

func (s *SessionStore) Load(_ context.Context, id string) (*domain.Session, error) {
	raw, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &domain.Session{ID: id}, nil
		}
		return nil, fmt.Errorf("read session: %w", err)
	}

	var sess domain.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		s.logger.Warn("session_file_corrupt", "session_id", id, "error", err)
		return &domain.Session{ID: id}, nil
	}
	sess.ID = id
	return &sess, nil
}

func (s *SessionStore) Save(_ context.Context, sess *domain.Session) error {
	if sess == nil || sess.ID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "save session", errors.New("missing session id"))
	}
	sess.UpdatedAt = s.now().UTC()
	raw, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := writeAtomic(s.path(sess.ID), bytes.NewReader(raw), 0o600); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SessionStore) Delete(_ context.Context, id string) error {
	if err := os.Remove(s.path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SessionStore) path(id string) string {
	return filepath.Join(s.dir, fileKey(id)+".json")
}

// fileKey keeps simple ids readable and hashes anything else.
func fileKey(id string) string {
	if id != "" && len(id) <= 64 {
		safe := true
		for _, r := range id {
			if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
				safe = false
				break
			}
		}
		if safe {
			return id
		}
	}
	sum := sha1.Sum([]byte(id))
	return "h_" + hex.EncodeToString(sum[:])
}
