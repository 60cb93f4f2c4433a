package domain

import "strings"

// MissingDistance ranks vector hits without a usable distance last.
const MissingDistance = 9999.0

// VectorHit is one similarity-search result from the vector store.
// Distance is nil when the store did not report a numeric distance.
type VectorHit struct {
	ID       string            `json:"id,omitempty"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Distance *float64          `json:"distance,omitempty"`
}

func (h VectorHit) EffectiveDistance() float64 {
	if h.Distance == nil {
		return MissingDistance
	}
	return *h.Distance
}

func (h VectorHit) Meta(key string) string {
	if h.Metadata == nil {
		return ""
	}
	return strings.TrimSpace(h.Metadata[key])
}

// SourceKey identifies the originating document of a hit for per-source caps.
func (h VectorHit) SourceKey() string {
	for _, key := range []string{"source", "file"} {
		if v := h.Meta(key); v != "" {
			return v
		}
	}
	if id := strings.TrimSpace(h.ID); id != "" {
		return id
	}
	return "_"
}

// SearchHit is a lexical (BM25) result over an in-memory corpus.
type SearchHit struct {
	DocID  string  `json:"doc_id"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
	Text   string  `json:"text"`
}

// FusionMeta describes how an allowlist was derived.
type FusionMeta struct {
	Enabled           bool     `json:"enabled"`
	LexicalCandidates []string `json:"bm25_candidates,omitempty"`
	VectorCandidates  []string `json:"vec_candidates,omitempty"`
	Overlap           int      `json:"overlap"`
	OverlapRatio      float64  `json:"overlap_ratio"`
	KAllow            int      `json:"k_allow"`
	LowConfidence     bool     `json:"low_confidence"`
	ForcedAllowAll    bool     `json:"forced_allow_all,omitempty"`
}
