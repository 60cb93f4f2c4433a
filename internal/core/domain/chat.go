package domain

import "time"

type Intent string

const (
	IntentProductSpec    Intent = "PRODUCT_SPEC"
	IntentCompanyInfo    Intent = "COMPANY_INFO"
	IntentTechSupport    Intent = "TECH_SUPPORT"
	IntentOther          Intent = "OTHER"
	IntentDecision       Intent = "DECISION"
	IntentDecisionResult Intent = "DECISION_RESULT"
	IntentFAQ            Intent = "FAQ"
	IntentCached         Intent = "CACHED"
	IntentRateLimit      Intent = "RATE_LIMIT"
	IntentBusy           Intent = "BUSY"
	IntentCancelled      Intent = "CANCELLED"
)

// IsProduct reports whether answers of this intent recommend models.
func (i Intent) IsProduct() bool {
	return i == IntentProductSpec || i == IntentDecisionResult
}

type AnswerMode string

const (
	ModeNormal AnswerMode = "NORMAL"
	ModeFast   AnswerMode = "FAST"
)

type ChatRequest struct {
	SessionID string
	RequestID string
	Message   string
	Mode      AnswerMode
}

// AnswerSources summarizes which evidence backed an answer.
type AnswerSources struct {
	ProductDocs  []string    `json:"product_md"`
	VectorBlocks int         `json:"rag_blocks"`
	CardBlocks   int         `json:"db_blocks"`
	LexicalTop   []string    `json:"bm25_models"`
	Fusion       *FusionMeta `json:"fusion,omitempty"`
}

type ChatResponse struct {
	SessionID     string             `json:"session_id"`
	RequestID     string             `json:"rid"`
	Answer        string             `json:"response"`
	Intent        Intent             `json:"intent"`
	Mode          AnswerMode         `json:"answer_mode"`
	Cached        bool               `json:"cached"`
	Cards         []ProductCard      `json:"relevant_docs"`
	Allowlist     []string           `json:"allowlist_picks,omitempty"`
	Blocked       bool               `json:"blocked"`
	BadModels     []string           `json:"bad_models,omitempty"`
	QueryTerms    []string           `json:"query_terms,omitempty"`
	Sources       *AnswerSources     `json:"answer_sources,omitempty"`
	Requirement   *ConversationState `json:"decision,omitempty"`
	PromptVersion string             `json:"prompt_version"`
	Fingerprint   string             `json:"vdb_fingerprint,omitempty"`
	ElapsedMS     int64              `json:"elapsed_ms"`
	GenerationMS  int64              `json:"ollama_ms,omitempty"`
}

// GenerationRequest is one sampling call against the answer model.
type GenerationRequest struct {
	Model       string
	Prompt      string
	Temperature float64
	NumPredict  int
	Cancel      CancelSignal
}

// CancelSignal is polled by streaming generators between output chunks.
type CancelSignal interface {
	Cancelled() bool
}

// ReloadEvent announces that catalog data changed on some instance.
type ReloadEvent struct {
	Origin string    `json:"origin"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// ReloadReport describes one full reload.
type ReloadReport struct {
	CatalogFiles int       `json:"catalog_files"`
	KnownModels  int       `json:"known_models"`
	SystemDocs   int       `json:"system_docs"`
	Aliases      int       `json:"aliases"`
	CompanyInfo  bool      `json:"company_info_loaded"`
	DurationMS   int64     `json:"duration_ms"`
	At           time.Time `json:"at"`
}

// UploadResult describes a stored product document.
type UploadResult struct {
	SavedAs     string `json:"saved_as"`
	KnownModels int    `json:"known_models_count"`
}

// IndexStatus is a snapshot of the serving indexes.
type IndexStatus struct {
	KnownModels   int           `json:"known_models_count"`
	Generation    uint64        `json:"generation"`
	Fingerprint   string        `json:"vdb_fingerprint"`
	CompanyLoaded bool          `json:"company_info_loaded"`
	LastReload    *ReloadReport `json:"last_reload,omitempty"`
}
