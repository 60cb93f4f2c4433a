package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kirillkom/product-advisor/internal/core/catalog"
	"github.com/kirillkom/product-advisor/internal/core/company"
	"github.com/kirillkom/product-advisor/internal/core/domain"
	"github.com/kirillkom/product-advisor/internal/core/expansion"
	"github.com/kirillkom/product-advisor/internal/core/lexical"
	"github.com/kirillkom/product-advisor/internal/core/ports"
)

// SystemDocsLoader reads the system-documents corpus.
type SystemDocsLoader interface {
	Load(ctx context.Context) ([]lexical.Input, error)
}

// AliasLoader reads the alias dictionary.
type AliasLoader interface {
	Load(ctx context.Context) (*expansion.Dictionary, error)
}

// ReloadObserver receives rebuild measurements.
type ReloadObserver interface {
	ObserveReload(trigger string, report domain.ReloadReport, err error)
}

// ReloadUseCase rebuilds the catalog, system corpus, aliases and company
// profile as one unit and tells other instances about it.
type ReloadUseCase struct {
	catalog    *catalog.Index
	system     *lexical.Index
	systemDocs SystemDocsLoader
	aliases    *expansion.Expander
	aliasSrc   AliasLoader
	company    *company.Store
	publisher  ports.ReloadPublisher
	vectors    ports.Fingerprinter
	observer   ReloadObserver
	origin     string
	logger     *slog.Logger

	mu         sync.Mutex
	generation atomic.Uint64
	last       atomic.Pointer[domain.ReloadReport]
}

func NewReloadUseCase(
	cat *catalog.Index,
	system *lexical.Index,
	systemDocs SystemDocsLoader,
	aliases *expansion.Expander,
	aliasSrc AliasLoader,
	companyStore *company.Store,
	publisher ports.ReloadPublisher,
	vectors ports.Fingerprinter,
	origin string,
	logger *slog.Logger,
) *ReloadUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReloadUseCase{
		catalog:    cat,
		system:     system,
		systemDocs: systemDocs,
		aliases:    aliases,
		aliasSrc:   aliasSrc,
		company:    companyStore,
		publisher:  publisher,
		vectors:    vectors,
		origin:     origin,
		logger:     logger,
	}
}

// WithObserver attaches rebuild metrics.
func (uc *ReloadUseCase) WithObserver(o ReloadObserver) *ReloadUseCase {
	uc.observer = o
	return uc
}

// Reload rebuilds everything and publishes a reload event.
func (uc *ReloadUseCase) Reload(ctx context.Context, reason string) (domain.ReloadReport, error) {
	report, err := uc.rebuild(ctx, "local")
	if err != nil {
		return report, err
	}
	uc.publish(ctx, reason)
	return report, nil
}

// Warm performs the startup build without notifying other instances.
func (uc *ReloadUseCase) Warm(ctx context.Context) (domain.ReloadReport, error) {
	return uc.rebuild(ctx, "startup")
}

// ApplyRemote rebuilds in response to another instance's event. Events this
// instance published itself are ignored.
func (uc *ReloadUseCase) ApplyRemote(ctx context.Context, event domain.ReloadEvent) error {
	if event.Origin != "" && event.Origin == uc.origin {
		return nil
	}
	uc.logger.Info("reload_event_received", "origin", event.Origin, "reason", event.Reason)
	_, err := uc.rebuild(ctx, "remote")
	return err
}

// RebuildCatalog refreshes only the product catalog.
func (uc *ReloadUseCase) RebuildCatalog(ctx context.Context) (catalog.Stats, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	stats, err := uc.catalog.Rebuild(ctx)
	if err != nil {
		return stats, fmt.Errorf("rebuild catalog: %w", err)
	}
	uc.generation.Add(1)
	return stats, nil
}

func (uc *ReloadUseCase) rebuild(ctx context.Context, trigger string) (domain.ReloadReport, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	started := time.Now()
	report := domain.ReloadReport{At: started.UTC()}
	err := uc.rebuildLocked(ctx, &report)
	report.DurationMS = time.Since(started).Milliseconds()
	if uc.observer != nil {
		uc.observer.ObserveReload(trigger, report, err)
	}
	if err != nil {
		uc.logger.Error("reload_failed", "trigger", trigger, "error", err)
		return report, err
	}
	uc.generation.Add(1)
	uc.last.Store(&report)
	uc.logger.Info("reload_done",
		"trigger", trigger,
		"catalog_files", report.CatalogFiles,
		"known_models", report.KnownModels,
		"system_docs", report.SystemDocs,
		"aliases", report.Aliases,
		"duration_ms", report.DurationMS,
	)
	return report, nil
}

func (uc *ReloadUseCase) rebuildLocked(ctx context.Context, report *domain.ReloadReport) error {
	if uc.aliasSrc != nil && uc.aliases != nil {
		dict, err := uc.aliasSrc.Load(ctx)
		if err != nil {
			return fmt.Errorf("load aliases: %w", err)
		}
		uc.aliases.Replace(dict)
		report.Aliases = dict.Len()
	}

	stats, err := uc.catalog.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("rebuild catalog: %w", err)
	}
	report.CatalogFiles = stats.Files
	report.KnownModels = stats.KnownModels

	if uc.systemDocs != nil && uc.system != nil {
		inputs, err := uc.systemDocs.Load(ctx)
		if err != nil {
			return fmt.Errorf("load system docs: %w", err)
		}
		report.SystemDocs = uc.system.Rebuild(inputs)
	}

	if uc.company != nil {
		report.CompanyInfo = uc.company.Reload().Raw != ""
	}
	return nil
}

func (uc *ReloadUseCase) publish(ctx context.Context, reason string) {
	if uc.publisher == nil {
		return
	}
	event := domain.ReloadEvent{Origin: uc.origin, Reason: reason, At: time.Now().UTC()}
	if err := uc.publisher.PublishReload(ctx, event); err != nil {
		uc.logger.Warn("reload_publish_failed", "error", err)
	}
}

// Generation counts completed rebuilds.
func (uc *ReloadUseCase) Generation() uint64 {
	return uc.generation.Load()
}

// Fingerprint combines the vector collection fingerprint with the rebuild
// generation, so cached answers expire on either change.
func (uc *ReloadUseCase) Fingerprint(ctx context.Context) (string, error) {
	gen := strconv.FormatUint(uc.generation.Load(), 10)
	if uc.vectors == nil {
		return "g" + gen, nil
	}
	fp, err := uc.vectors.Fingerprint(ctx)
	if err != nil {
		return "", err
	}
	return fp + "#g" + gen, nil
}

// CompanyInfo exposes the parsed company profile.
func (uc *ReloadUseCase) CompanyInfo() domain.CompanyInfo {
	if uc.company == nil {
		return domain.CompanyInfo{}
	}
	return uc.company.Get()
}

// Status reports the catalog size, rebuild generation and vector fingerprint.
func (uc *ReloadUseCase) Status(ctx context.Context) domain.IndexStatus {
	st := domain.IndexStatus{
		KnownModels:   len(uc.catalog.KnownModels()),
		Generation:    uc.generation.Load(),
		CompanyLoaded: !uc.CompanyInfo().IsZero(),
	}
	if fp, err := uc.Fingerprint(ctx); err == nil {
		st.Fingerprint = fp
	} else {
		uc.logger.Warn("fingerprint_failed", "error", err)
	}
	if last := uc.last.Load(); last != nil {
		report := *last
		st.LastReload = &report
	}
	return st
}
