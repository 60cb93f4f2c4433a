package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/product-advisor/internal/config"
	"github.com/kirillkom/product-advisor/internal/core/catalog"
	"github.com/kirillkom/product-advisor/internal/core/company"
	"github.com/kirillkom/product-advisor/internal/core/domain"
	"github.com/kirillkom/product-advisor/internal/core/expansion"
	"github.com/kirillkom/product-advisor/internal/core/fusion"
	"github.com/kirillkom/product-advisor/internal/core/generation"
	"github.com/kirillkom/product-advisor/internal/core/guard"
	"github.com/kirillkom/product-advisor/internal/core/intent"
	"github.com/kirillkom/product-advisor/internal/core/lexical"
	"github.com/kirillkom/product-advisor/internal/core/ports"
	"github.com/kirillkom/product-advisor/internal/core/requirement"
	"github.com/kirillkom/product-advisor/internal/core/session"
	"github.com/kirillkom/product-advisor/internal/core/usecase"
	"github.com/kirillkom/product-advisor/internal/infrastructure/aliases"
	"github.com/kirillkom/product-advisor/internal/infrastructure/cache"
	"github.com/kirillkom/product-advisor/internal/infrastructure/chunking"
	"github.com/kirillkom/product-advisor/internal/infrastructure/corpus"
	"github.com/kirillkom/product-advisor/internal/infrastructure/extractor"
	"github.com/kirillkom/product-advisor/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/product-advisor/internal/infrastructure/queue/nats"
	"github.com/kirillkom/product-advisor/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/product-advisor/internal/infrastructure/resilience"
	"github.com/kirillkom/product-advisor/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/product-advisor/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/product-advisor/internal/infrastructure/watch"
)

const (
	watchDebounce     = 1500 * time.Millisecond
	sessionBackendSQL = "postgres"
	vectorCachePrefix = "advisor:vec:"
)

// Observers receive measurements from the wired components. Every field is
// optional.
type Observers struct {
	Resilience resilience.Observer
	Reload     usecase.ReloadObserver
	Chat       usecase.ChatObserver
	Publish    PublishObserver
}

// PublishObserver counts reload fan-out publishes.
type PublishObserver interface {
	ObservePublish(err error)
}

type App struct {
	Config config.Config
	Logger *slog.Logger

	Catalog    *catalog.Index
	System     *lexical.Index
	Expander   *expansion.Expander
	Company    *company.Store
	Extractors *extractor.Registry

	Reload    *usecase.ReloadUseCase
	Chat      *usecase.ChatUseCase
	Ingest    *usecase.ProductIngestUseCase
	Vectorize *usecase.VectorizeUseCase

	// Cards and Bus are nil when Postgres or NATS is not configured.
	Cards *postgres.ProductCardRepository
	Bus   *nats.ReloadBus

	Probes map[string]ports.Pinger

	closeFns []func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger, obs Observers) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg, Logger: logger, Probes: make(map[string]ports.Pinger)}
	if err := app.wire(ctx, obs); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) wire(ctx context.Context, obs Observers) error {
	cfg := a.Config
	logger := a.Logger

	lookupExec := newExecutor(resilience.LookupPolicy(), logger, obs.Resilience)
	generationExec := newExecutor(resilience.GenerationPolicy(), logger, obs.Resilience)

	ollamaCfg := ollama.Config{
		BaseURL:    cfg.OllamaURL,
		EmbedModel: cfg.OllamaEmbedModel,
		KeepAlive:  cfg.OllamaKeepAlive,
		Timeout:    cfg.OllamaTimeout,
	}
	genClient := ollama.New(ollamaCfg, generationExec, logger)
	generator := ollama.NewGenerator(genClient)
	embedder := ollama.NewEmbedder(ollama.New(ollamaCfg, lookupExec, logger))
	a.Probes["ollama"] = genClient

	a.Extractors = extractor.NewRegistry()

	var (
		searcher    ports.VectorSearcher
		fingerprint ports.Fingerprinter
	)
	if cfg.QdrantURL != "" {
		qdrantClient := qdrant.New(qdrant.Config{
			BaseURL:    cfg.QdrantURL,
			Collection: cfg.QdrantCollection,
		}, lookupExec, logger)
		text := qdrant.NewTextSearcher(embedder, qdrantClient)
		searcher, fingerprint = text, text
		a.Probes["qdrant"] = qdrantClient

		if cfg.RedisAddr != "" {
			store, err := cache.NewRedisStore(ctx, cache.RedisConfig{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
				Prefix:   vectorCachePrefix,
			})
			if err != nil {
				return fmt.Errorf("init redis cache: %w", err)
			}
			a.onClose(func() { _ = store.Close() })
			a.Probes["redis"] = store
			cached := cache.NewCachedSearcher(text, text, store, cfg.RedisCacheTTL, logger)
			searcher, fingerprint = cached, cached
		}

		a.Vectorize = usecase.NewVectorizeUseCase(
			a.Extractors,
			chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
			embedder,
			qdrantClient,
			logger,
		)
	}
	var (
		cards    ports.ProductCardStore
		sessions ports.SessionStore
	)
	if cfg.PostgresDSN != "" {
		db, err := postgres.OpenDB(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		a.onClose(func() { _ = db.Close() })
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		a.Cards = postgres.NewProductCardRepository(db)
		cards = a.Cards
		a.Probes["postgres"] = a.Cards
		if strings.EqualFold(cfg.SessionBackend, sessionBackendSQL) {
			sessions = postgres.NewSessionRepository(db)
		}
	}
	if sessions == nil {
		store, err := newFileSessions(cfg, logger)
		if err != nil {
			return err
		}
		sessions = store
	}

	var publisher ports.ReloadPublisher
	if cfg.NATSURL != "" {
		bus, err := nats.New(cfg.NATSURL, cfg.NATSReloadSubject, nats.Options{
			Name:               "product-advisor",
			ResilienceExecutor: newExecutor(resilience.BroadcastPolicy(), logger, obs.Resilience),
			Logger:             logger,
		})
		if err != nil {
			return fmt.Errorf("init reload bus: %w", err)
		}
		a.onClose(bus.Close)
		a.Bus = bus
		a.Probes["nats"] = bus
		publisher = bus
		if obs.Publish != nil {
			publisher = observedPublisher{next: bus, obs: obs.Publish}
		}
	}

	storage, err := localfs.New(cfg.CatalogDir, cfg.UploadArchiveKeep)
	if err != nil {
		return fmt.Errorf("init catalog storage: %w", err)
	}

	a.Expander = expansion.NewExpander(nil)
	a.Catalog = newCatalog(cfg, a.Expander, logger)
	a.System = lexical.NewIndex(lexical.Params{
		K1:       cfg.BM25K1,
		B:        cfg.BM25B,
		MaxChars: cfg.SystemBM25MaxChars,
	})
	a.Company = company.NewStore(cfg.CompanyInfoPath, logger)

	a.Reload = usecase.NewReloadUseCase(
		a.Catalog,
		a.System,
		corpus.NewLoader(cfg.CompanyInfoPath, cfg.SystemDocsDir, a.Extractors, logger),
		a.Expander,
		aliases.NewFileLoader(cfg.AliasPath),
		a.Company,
		publisher,
		fingerprint,
		instanceID(cfg),
		logger,
	)
	if obs.Reload != nil {
		a.Reload.WithObserver(obs.Reload)
	}
	a.Ingest = usecase.NewProductIngestUseCase(storage, a.Reload)

	contextBuilder := usecase.NewContextBuilder(
		a.Catalog,
		a.Expander,
		cards,
		usecase.NewMultiSearch(searcher, logger),
		a.System,
		usecase.ContextConfig{
			TopKCard:             cfg.TopKCard,
			ChunkMaxChars:        cfg.RAGChunkMaxChars,
			MaxBlocks:            cfg.RAGMaxBlocks,
			MaxBlocksWhenDoc:     cfg.RAGMaxBlocksWhenDoc,
			PerSourceMax:         cfg.RAGPerSourceMax,
			DedupeText:           cfg.RAGDedupeText,
			LexicalEnabled:       cfg.BM25Enabled,
			LexicalTopN:          cfg.BM25TopN,
			SystemLexicalEnabled: cfg.SystemBM25Enabled,
			SystemTopN:           cfg.SystemBM25TopN,
		},
		logger,
	)

	deps := usecase.ChatDeps{
		Sessions:   sessions,
		Locks:      session.NewLocks(),
		Catalog:    a.Catalog,
		Context:    contextBuilder,
		Classifier: intent.NewClassifier(a.Catalog, a.Expander, generator, cfg.OllamaIntentModel, logger),
		Machine:    requirement.NewMachine(nil),
		Fuser: fusion.NewFuser(fusion.Config{
			Enabled:         cfg.FusionEnabled,
			RRFK:            cfg.FusionRRFK,
			LexicalTopN:     cfg.FusionBM25TopN,
			VectorTopN:      cfg.FusionVecTopN,
			LowConfMinAllow: cfg.FusionLowConfMinAllow,
			MaxItems:        cfg.AllowlistMaxItems,
			ForceNonEmpty:   cfg.FusionForceNonEmpty,
			LowConfAllowAll: cfg.FusionLowConfAllowAll,
		}, a.Catalog),
		Enforcer:    guard.NewEnforcer(cfg.StrictAllowlist, cfg.ModelTokenIgnore),
		Company:     a.Company,
		Generator:   generator,
		Gate:        generation.NewGate(cfg.OllamaMaxConcurrent, cfg.OllamaQueueTimeout),
		Cancels:     generation.NewRegistry(),
		Fingerprint: a.Reload,
	}
	if obs.Chat != nil {
		deps.Observer = obs.Chat
	}
	a.Chat = usecase.NewChatUseCase(deps, usecase.ChatConfig{
		AnswerModel:         cfg.OllamaAnswerModel,
		TopKNormal:          cfg.TopKNormal,
		TopKFast:            cfg.TopKFast,
		NormalTemperature:   cfg.AnswerTemperature,
		NormalNumPredict:    cfg.AnswerNumPredict,
		FastTemperature:     cfg.AnswerFastTemperature,
		FastNumPredict:      cfg.AnswerFastNumPredict,
		MaxPromptChars:      cfg.MaxPromptChars,
		SessionMaxTurns:     cfg.SessionMaxTurns,
		MinRequestInterval:  cfg.MinRequestInterval,
		SessionCacheEnabled: cfg.SessionCacheEnabled,
		AppendContact:       cfg.AppendContactOnUnknown,
		AllowlistMaxItems:   cfg.AllowlistMaxItems,
		ForceNonEmpty:       cfg.FusionForceNonEmpty,
		PromptVersion:       cfg.PromptVersion,
		Brand:               cfg.BrandName,
	}, logger)
	return nil
}

// NewWatcher watches the catalog, the system docs, the company profile and
// the alias file. onChange receives the changed paths of one debounced batch.
func (a *App) NewWatcher(onChange func(context.Context, []string)) *watch.CatalogWatcher {
	targets := []watch.Target{
		{Dir: a.Config.CatalogDir, Match: catalog.IsProductFile},
		{Dir: a.Config.SystemDocsDir, Match: a.Extractors.Supported},
		watch.FileMatch(a.Config.CompanyInfoPath),
		watch.FileMatch(a.Config.AliasPath),
	}
	return watch.NewCatalogWatcher(targets, watchDebounce, onChange, a.Logger)
}

func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}

func (a *App) onClose(fn func()) {
	a.closeFns = append(a.closeFns, fn)
}

func newExecutor(cfg resilience.Config, logger *slog.Logger, observer resilience.Observer) *resilience.Executor {
	opts := []resilience.Option{resilience.WithLogger(logger)}
	if observer != nil {
		opts = append(opts, resilience.WithObserver(observer))
	}
	return resilience.NewExecutor(cfg, opts...)
}

func newFileSessions(cfg config.Config, logger *slog.Logger) (*localfs.SessionStore, error) {
	store, err := localfs.NewSessionStore(cfg.SessionsDir, logger)
	if err != nil {
		return nil, fmt.Errorf("init session store: %w", err)
	}
	return store, nil
}

// instanceID tags reload events so an instance ignores its own broadcasts.
func instanceID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.InstanceID); id != "" {
		return id
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "advisor"
	}
	return host + "-" + uuid.NewString()[:8]
}

type observedPublisher struct {
	next ports.ReloadPublisher
	obs  PublishObserver
}

func (p observedPublisher) PublishReload(ctx context.Context, event domain.ReloadEvent) error {
	err := p.next.PublishReload(ctx, event)
	p.obs.ObservePublish(err)
	return err
}
