package usecase

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/kirillkom/product-advisor/internal/core/catalog"
	"github.com/kirillkom/product-advisor/internal/core/domain"
	"github.com/kirillkom/product-advisor/internal/core/expansion"
	"github.com/kirillkom/product-advisor/internal/core/lexical"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func catalogFS() fstest.MapFS {
	return fstest.MapFS{
		"product_SRI-2000.md": {Data: []byte("產品名稱：高速光譜儀\n型號：SRI-2000\n紫外線 光譜 量測 spectrometer UVC LED\n產品頁面連結：\nhttps://example.com/sri-2000")},
		"product_LX-10.md":    {Data: []byte("名稱: 照度計\nModel: LX-10\n照度 lux meter illuminance")},
	}
}

func newTestCatalog(t *testing.T, aliases *expansion.Expander) *catalog.Index {
	t.Helper()
	ix := catalog.New(catalogFS(), catalog.Config{}, aliases, testLogger())
	if _, err := ix.Rebuild(context.Background()); err != nil {
		t.Fatalf("rebuild catalog: %v", err)
	}
	return ix
}

func newSystemIndex() *lexical.Index {
	ix := lexical.NewIndex(lexical.Params{})
	ix.Rebuild([]lexical.Input{
		{ID: "faq", Source: "faq.md", Text: "保固 一年 維修 流程 請聯絡客服"},
		{ID: "company_info", Source: "company_info.md", Text: "公司 地址 台北市 電話 營業時間"},
	})
	return ix
}

func distance(d float64) *float64 {
	return &d
}

type searcherFake struct {
	mu      sync.Mutex
	hits    []domain.VectorHit
	byQuery map[string][]domain.VectorHit
	fail    map[string]error
	queries []string
}

func (f *searcherFake) Search(_ context.Context, query string, _ int) ([]domain.VectorHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if err := f.fail[query]; err != nil {
		return nil, err
	}
	if hits, ok := f.byQuery[query]; ok {
		return hits, nil
	}
	return f.hits, nil
}

type sessionStoreFake struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	deleted  []string
}

func newSessionStoreFake() *sessionStoreFake {
	return &sessionStoreFake{sessions: make(map[string]domain.Session)}
}

func (f *sessionStoreFake) Load(_ context.Context, id string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return &domain.Session{ID: id}, nil
	}
	s.Messages = append([]domain.Message(nil), s.Messages...)
	if s.Cache != nil {
		c := *s.Cache
		s.Cache = &c
	}
	return &s, nil
}

func (f *sessionStoreFake) Save(_ context.Context, s *domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID] = *s
	return nil
}

func (f *sessionStoreFake) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *sessionStoreFake) get(id string) (domain.Session, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	return s, ok
}

type generatorFake struct {
	mu      sync.Mutex
	answer  string
	err     error
	block   bool
	started chan struct{}
	once    sync.Once
	reqs    []domain.GenerationRequest
}

func (f *generatorFake) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.block {
		f.once.Do(func() { close(f.started) })
		<-ctx.Done()
		return "", context.Cause(ctx)
	}
	return f.answer, f.err
}

func (f *generatorFake) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

func (f *generatorFake) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.reqs) == 0 {
		return ""
	}
	return f.reqs[len(f.reqs)-1].Prompt
}

type cardStoreFake struct {
	byKeyword map[string][]domain.ProductCard
	byTitle   map[string]domain.ProductCard
	keywords  []string
}

func (f *cardStoreFake) SearchByKeyword(_ context.Context, keyword string, limit int) ([]domain.ProductCard, error) {
	f.keywords = append(f.keywords, keyword)
	got := f.byKeyword[keyword]
	if len(got) > limit {
		got = got[:limit]
	}
	return got, nil
}

func (f *cardStoreFake) GetByTitles(_ context.Context, titles []string, limit int) ([]domain.ProductCard, error) {
	var out []domain.ProductCard
	for _, t := range titles {
		if c, ok := f.byTitle[t]; ok {
			out = append(out, c)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type companyFake struct {
	info domain.CompanyInfo
}

func (f companyFake) Get() domain.CompanyInfo {
	return f.info
}

func testCompanyInfo() domain.CompanyInfo {
	return domain.CompanyInfo{
		Name:    "尚澤光電股份有限公司",
		Address: "台北市信義區松高路 1 號",
		Phone:   "02-1111-2222",
		Raw:     "# 尚澤光電股份有限公司\n地址：台北市信義區松高路 1 號\n電話：02-1111-2222",
	}
}

type storageFake struct {
	mu    sync.Mutex
	files map[string]string
	err   error
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.files == nil {
		f.files = make(map[string]string)
	}
	f.files[key] = string(raw)
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return io.NopCloser(strings.NewReader(f.files[key])), nil
}

type publisherFake struct {
	mu     sync.Mutex
	events []domain.ReloadEvent
	err    error
}

func (f *publisherFake) PublishReload(_ context.Context, event domain.ReloadEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}
