package fusion

import (
	"math"

	"github.com/kirillkom/product-advisor/internal/core/domain"
	"github.com/kirillkom/product-advisor/internal/core/modelkey"
)

const (
	highOverlapRatio  = 0.25
	highOverlapAllow  = 8
	someOverlapAllow  = 12
	minLowConfAllow   = 12
	overlapWindow     = 8
	metaCandidateTake = 10
	minLexicalTake    = 12
	minVectorTake     = 12
	minRRFK           = 10
	minFusedTopN      = 8
)

type Config struct {
	Enabled         bool
	RRFK            int
	LexicalTopN     int
	VectorTopN      int
	LowConfMinAllow int
	MaxItems        int
	ForceNonEmpty   bool
	LowConfAllowAll bool
}

func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		RRFK:            60,
		LexicalTopN:     8,
		VectorTopN:      10,
		LowConfMinAllow: 12,
		MaxItems:        24,
		ForceNonEmpty:   true,
	}
}

// Fuser builds the fused allowlist from lexical and vector evidence.
type Fuser struct {
	cfg     Config
	catalog Catalog
}

func NewFuser(cfg Config, cat Catalog) *Fuser {
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = 24
	}
	return &Fuser{cfg: cfg, catalog: cat}
}

type Result struct {
	Allow []string
	Meta  domain.FusionMeta
}

// Build fuses lexically ranked stems with candidates extracted from vector
// hits. Agreement between both lists shrinks the allowlist; disagreement
// widens it.
func (f *Fuser) Build(lexicalRanked []string, hits []domain.VectorHit) Result {
	if !f.cfg.Enabled {
		return Result{Meta: domain.FusionMeta{Enabled: false}}
	}

	vec := VectorCandidates(f.catalog, hits, max(minVectorTake, f.cfg.VectorTopN))
	bm := head(lexicalRanked, max(minLexicalTake, f.cfg.LexicalTopN))

	fused := FuseRRF([][]string{bm, vec}, max(minRRFK, f.cfg.RRFK), max(minFusedTopN, f.cfg.MaxItems))

	overlap := overlapCount(head(bm, overlapWindow), head(vec, overlapWindow))
	ratio := float64(overlap) / float64(max(1, min(len(bm), len(vec), overlapWindow)))

	var kAllow int
	switch {
	case ratio >= highOverlapRatio:
		kAllow = highOverlapAllow
	case ratio > 0:
		kAllow = someOverlapAllow
	default:
		kAllow = max(f.cfg.LowConfMinAllow, minLowConfAllow)
	}

	allow := head(fused, min(f.cfg.MaxItems, kAllow))
	lowConf := ratio == 0
	if len(allow) == 0 && f.cfg.ForceNonEmpty {
		lowConf = true
		known := f.catalog.KnownModels()
		switch {
		case f.cfg.LowConfAllowAll && len(known) > 0:
			allow = head(known, f.cfg.MaxItems)
		case len(bm) > 0:
			allow = head(bm, f.cfg.MaxItems)
		default:
			allow = head(vec, f.cfg.MaxItems)
		}
	}

	return Result{
		Allow: allow,
		Meta: domain.FusionMeta{
			Enabled:           true,
			LexicalCandidates: head(bm, metaCandidateTake),
			VectorCandidates:  head(vec, metaCandidateTake),
			Overlap:           overlap,
			OverlapRatio:      math.Round(ratio*1000) / 1000,
			KAllow:            kAllow,
			LowConfidence:     lowConf,
		},
	}
}

func overlapCount(a, b []string) int {
	left := make(map[string]struct{}, len(a))
	for _, x := range a {
		left[modelkey.Key(x)] = struct{}{}
	}
	seen := make(map[string]struct{}, len(b))
	n := 0
	for _, x := range b {
		k := modelkey.Key(x)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if _, ok := left[k]; ok {
			n++
		}
	}
	return n
}

func head(items []string, n int) []string {
	if n <= 0 || len(items) == 0 {
		return nil
	}
	if len(items) > n {
		items = items[:n]
	}
	out := make([]string, len(items))
	copy(out, items)
	return out
}
