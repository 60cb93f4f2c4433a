package company

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/kirillkom/product-advisor/internal/core/domain"
)

// Store reads the profile document and re-parses it only when the file's
// modification time changes.
type Store struct {
	path   string
	logger *slog.Logger

	mu    sync.Mutex
	mtime time.Time
	info  domain.CompanyInfo
}

func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger}
}

// Path returns the configured profile location.
func (s *Store) Path() string {
	return s.path
}

// Get returns the cached profile, reloading it when the file changed.
func (s *Store) Get() domain.CompanyInfo {
	return s.load(false)
}

// Reload forces a re-read.
func (s *Store) Reload() domain.CompanyInfo {
	return s.load(true)
}

func (s *Store) load(force bool) domain.CompanyInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return domain.CompanyInfo{}
	}
	st, err := os.Stat(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("company_info_stat_failed", "path", s.path, "error", err)
		}
		s.mtime, s.info = time.Time{}, domain.CompanyInfo{}
		return s.info
	}
	if !force && s.info.Raw != "" && st.ModTime().Equal(s.mtime) {
		return s.info
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		s.logger.Warn("company_info_read_failed", "path", s.path, "error", err)
		return domain.CompanyInfo{}
	}
	s.info = Parse(string(data))
	s.mtime = st.ModTime()
	return s.info
}
