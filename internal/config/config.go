package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIPort    string
	LogLevel   string
	InstanceID string

	CatalogDir        string
	SystemDocsDir     string
	CompanyInfoPath   string
	AliasPath         string
	SessionsDir       string
	WatchCatalog      bool
	UploadArchiveKeep int

	PostgresDSN    string
	SessionBackend string

	NATSURL           string
	NATSReloadSubject string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisCacheTTL time.Duration

	OllamaURL             string
	OllamaIntentModel     string
	OllamaAnswerModel     string
	OllamaEmbedModel      string
	OllamaKeepAlive       string
	OllamaTimeout         time.Duration
	OllamaMaxConcurrent   int
	OllamaQueueTimeout    time.Duration
	AnswerTemperature     float64
	AnswerNumPredict      int
	AnswerFastTemperature float64
	AnswerFastNumPredict  int

	QdrantURL        string
	QdrantCollection string
	ChunkSize        int
	ChunkOverlap     int

	TopKNormal          int
	TopKFast            int
	TopKCard            int
	RAGChunkMaxChars    int
	RAGMaxBlocks        int
	RAGMaxBlocksWhenDoc int
	RAGPerSourceMax     int
	RAGDedupeText       bool

	BM25Enabled      bool
	BM25K1           float64
	BM25B            float64
	BM25TopN         int
	BM25TextMaxChars int

	SystemBM25Enabled  bool
	SystemBM25TopN     int
	SystemBM25MaxChars int

	FusionEnabled         bool
	FusionRRFK            int
	FusionBM25TopN        int
	FusionVecTopN         int
	FusionLowConfMinAllow int
	FusionForceNonEmpty   bool
	FusionLowConfAllowAll bool

	AllowlistMaxItems int
	StrictAllowlist   bool
	ModelTokenIgnore  []string

	MaxPromptChars         int
	SessionMaxTurns        int
	MinRequestInterval     time.Duration
	SessionCacheEnabled    bool
	AppendContactOnUnknown bool
	PromptVersion          string
	BrandName              string

	ReloadToken string
	AdminToken  string

	RateLimitRPS            float64
	RateLimitBurst          int
	BackpressureMaxInFlight int
	BackpressureWait        time.Duration

	WorkerMetricsPort string
}

func Load() Config {
	return Config{
		APIPort:    mustEnv("API_PORT", "8080"),
		LogLevel:   mustEnv("LOG_LEVEL", "info"),
		InstanceID: mustEnv("INSTANCE_ID", ""),

		CatalogDir:        mustEnv("CATALOG_DIR", "./data/products"),
		SystemDocsDir:     mustEnv("SYSTEM_DOCS_DIR", "./data/system"),
		CompanyInfoPath:   mustEnv("COMPANY_INFO_PATH", "./data/company_info.md"),
		AliasPath:         mustEnv("ALIAS_PATH", "./data/aliases.json"),
		SessionsDir:       mustEnv("SESSIONS_DIR", "./data/sessions"),
		WatchCatalog:      mustEnvBool("WATCH_CATALOG", false),
		UploadArchiveKeep: mustEnvInt("UPLOAD_ARCHIVE_KEEP", 3),

		PostgresDSN:    mustEnv("POSTGRES_DSN", ""),
		SessionBackend: mustEnv("SESSION_BACKEND", "file"),

		NATSURL:           mustEnv("NATS_URL", ""),
		NATSReloadSubject: mustEnv("NATS_RELOAD_SUBJECT", "advisor.reload"),

		RedisAddr:     mustEnv("REDIS_ADDR", ""),
		RedisPassword: mustEnv("REDIS_PASSWORD", ""),
		RedisDB:       mustEnvInt("REDIS_DB", 0),
		RedisCacheTTL: mustEnvDuration("REDIS_CACHE_TTL", 10*time.Minute),

		OllamaURL:             mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaIntentModel:     mustEnv("OLLAMA_MODEL_INTENT", "qwen2.5:7b"),
		OllamaAnswerModel:     mustEnv("OLLAMA_MODEL_ANSWER", "qwen2.5:14b"),
		OllamaEmbedModel:      mustEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
		OllamaKeepAlive:       mustEnv("OLLAMA_KEEP_ALIVE", "5m"),
		OllamaTimeout:         time.Duration(mustEnvInt("OLLAMA_TIMEOUT", 180)) * time.Second,
		OllamaMaxConcurrent:   mustEnvInt("OLLAMA_MAX_CONCURRENT", 2),
		OllamaQueueTimeout:    mustEnvDuration("OLLAMA_QUEUE_TIMEOUT", 6*time.Second),
		AnswerTemperature:     mustEnvFloat("ANSWER_TEMPERATURE", 0.2),
		AnswerNumPredict:      mustEnvInt("ANSWER_NUM_PREDICT", 1100),
		AnswerFastTemperature: mustEnvFloat("ANSWER_FAST_TEMPERATURE", 0.1),
		AnswerFastNumPredict:  mustEnvInt("ANSWER_FAST_NUM_PREDICT", 520),

		QdrantURL:        mustEnv("QDRANT_URL", ""),
		QdrantCollection: mustEnv("QDRANT_COLLECTION", "products"),
		ChunkSize:        mustEnvInt("CHUNK_SIZE", 900),
		ChunkOverlap:     mustEnvInt("CHUNK_OVERLAP", 120),

		TopKNormal:          mustEnvInt("TOPK_NORMAL", 6),
		TopKFast:            mustEnvInt("TOPK_FAST", 3),
		TopKCard:            mustEnvInt("TOPK_CARD", 8),
		RAGChunkMaxChars:    mustEnvInt("RAG_CHUNK_MAX_CHARS", 900),
		RAGMaxBlocks:        mustEnvInt("RAG_MAX_BLOCKS", 6),
		RAGMaxBlocksWhenDoc: mustEnvInt("RAG_MAX_BLOCKS_WHEN_MD", 3),
		RAGPerSourceMax:     mustEnvInt("RAG_PER_SOURCE_MAX", 2),
		RAGDedupeText:       mustEnvBool("RAG_DEDUPE_TEXT", true),

		BM25Enabled:      mustEnvBool("BM25_ENABLED", true),
		BM25K1:           mustEnvFloat("BM25_K1", 1.5),
		BM25B:            mustEnvFloat("BM25_B", 0.75),
		BM25TopN:         mustEnvInt("BM25_TOPN", 8),
		BM25TextMaxChars: mustEnvInt("BM25_TEXT_MAX_CHARS", 3500),

		SystemBM25Enabled:  mustEnvBool("SYSTEM_BM25_ENABLED", true),
		SystemBM25TopN:     mustEnvInt("SYSTEM_BM25_TOPN", 4),
		SystemBM25MaxChars: mustEnvInt("SYSTEM_BM25_MAX_CHARS", 6500),

		FusionEnabled:         mustEnvBool("FUSION_ENABLED", true),
		FusionRRFK:            mustEnvInt("FUSION_RRF_K", 60),
		FusionBM25TopN:        mustEnvInt("FUSION_BM25_TOPN", 8),
		FusionVecTopN:         mustEnvInt("FUSION_VEC_TOPN", 10),
		FusionLowConfMinAllow: mustEnvInt("FUSION_LOWCONF_MIN_ALLOW", 12),
		FusionForceNonEmpty:   mustEnvBool("FUSION_FORCE_NONEMPTY", true),
		FusionLowConfAllowAll: mustEnvBool("FUSION_LOWCONF_ALLOW_ALL", false),

		AllowlistMaxItems: mustEnvInt("ALLOWLIST_MAX_ITEMS", 24),
		StrictAllowlist:   mustEnvBool("STRICT_ALLOWLIST", true),
		ModelTokenIgnore:  mustEnvList("MODEL_TOKEN_IGNORE", nil),

		MaxPromptChars:         mustEnvInt("MAX_PROMPT_CHARS", 14000),
		SessionMaxTurns:        mustEnvInt("SESSION_MAX_TURNS", 10),
		MinRequestInterval:     time.Duration(mustEnvInt("MIN_REQUEST_INTERVAL_MS", 650)) * time.Millisecond,
		SessionCacheEnabled:    mustEnvBool("SESSION_CACHE_ENABLED", true),
		AppendContactOnUnknown: mustEnvBool("APPEND_CONTACT_ON_UNKNOWN", true),
		PromptVersion:          mustEnv("PROMPT_VERSION", "v3"),
		BrandName:              mustEnv("BRAND_NAME", "尚澤光電"),

		ReloadToken: mustEnv("RELOAD_TOKEN", ""),
		AdminToken:  mustEnv("ADMIN_TOKEN", ""),

		RateLimitRPS:            mustEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst:          mustEnvInt("RATE_LIMIT_BURST", 40),
		BackpressureMaxInFlight: mustEnvInt("BACKPRESSURE_MAX_IN_FLIGHT", 64),
		BackpressureWait:        mustEnvDuration("BACKPRESSURE_WAIT", 250*time.Millisecond),

		WorkerMetricsPort: mustEnv("WORKER_METRICS_PORT", "9090"),
	}
}

// LoadDotEnv populates the process environment from a .env file without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func mustEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	out := make([]string, 0, 4)
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
