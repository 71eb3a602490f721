package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	GinMode     string
	CORSOrigins []string

	MongoURI string
	DBName   string

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Access tokens are issued by the identity provider and signed with this secret
	AccessSecret string

	// Gemini
	GeminiAPIKey string
	GeminiModel  string
	GeminiTier   string

	// Embeddings configuration
	EmbeddingsProvider    string // "google" (default), "genai"
	GoogleEmbeddingsModel string // e.g., "text-embedding-004"

	// Web search
	TavilyAPIKey        string
	TavilyURL           string
	DuckDuckGoURL       string
	WebSearchMaxResults int
	WebSearchTimeout    time.Duration
	WebSearchCacheTTL   time.Duration

	// Retrieval and pipeline
	RetrievalTopK           int
	FusionVectorWeight      float64
	FusionLexicalWeight     float64
	ClaimAgreementThreshold int
	PipelineMaxSources      int
	SummarizeConcurrency    int
	PipelineTimeout         time.Duration

	// Per-user indices
	IndexIdleTTL        time.Duration
	IndexSweepInterval  time.Duration
	MaxDocumentsPerUser int

	// Uploads
	MaxFileSize        int64
	ChunkWords         int
	ChunkOverlapWords  int
	FileStorageDir     string
	AsyncUploadEnabled bool

	RateLimitReqs   int
	RateLimitWindow int

	OTelExporterEndpoint string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173"), ","),

		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/researchmind"),
		DBName:   getEnv("DB_NAME", "researchmind"),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		AccessSecret: getEnv("ACCESS_SECRET", ""),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiTier:   getEnv("GEMINI_TIER", "free"),

		EmbeddingsProvider:    getEnv("EMBEDDINGS_PROVIDER", "google"),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),

		TavilyAPIKey:        getEnv("TAVILY_API_KEY", ""),
		TavilyURL:           getEnv("TAVILY_URL", "https://api.tavily.com/search"),
		DuckDuckGoURL:       getEnv("DUCKDUCKGO_URL", "https://lite.duckduckgo.com/lite/"),
		WebSearchMaxResults: getEnvInt("WEB_SEARCH_MAX_RESULTS", 4),
		WebSearchTimeout:    getEnvDuration("WEB_SEARCH_TIMEOUT", 10*time.Second),
		WebSearchCacheTTL:   getEnvDuration("WEB_SEARCH_CACHE_TTL", 30*time.Minute),

		RetrievalTopK:           getEnvInt("RETRIEVAL_TOP_K", 5),
		FusionVectorWeight:      getEnvFloat64("FUSION_VECTOR_WEIGHT", 0.5),
		FusionLexicalWeight:     getEnvFloat64("FUSION_LEXICAL_WEIGHT", 0.5),
		ClaimAgreementThreshold: getEnvInt("CLAIM_AGREEMENT_THRESHOLD", 2),
		PipelineMaxSources:      getEnvInt("PIPELINE_MAX_SOURCES", 7),
		SummarizeConcurrency:    getEnvInt("SUMMARIZE_CONCURRENCY", 4),
		PipelineTimeout:         getEnvDuration("PIPELINE_TIMEOUT", 3*time.Minute),

		IndexIdleTTL:        getEnvDuration("INDEX_IDLE_TTL", 30*time.Minute),
		IndexSweepInterval:  getEnvDuration("INDEX_SWEEP_INTERVAL", 5*time.Minute),
		MaxDocumentsPerUser: getEnvInt("MAX_DOCUMENTS_PER_USER", 10),

		MaxFileSize:        getEnvInt64("MAX_FILE_SIZE", 20971520), // 20MB
		ChunkWords:         getEnvInt("CHUNK_WORDS", 300),
		ChunkOverlapWords:  getEnvInt("CHUNK_OVERLAP_WORDS", 50),
		FileStorageDir:     getEnv("FILE_STORAGE_DIR", "./storage"),
		AsyncUploadEnabled: getEnvBool("ASYNC_UPLOAD_ENABLED", true),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 10),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		OTelExporterEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", ""),
	}

	// Validate required fields
	if cfg.AccessSecret == "" {
		return nil, fmt.Errorf("ACCESS_SECRET is required - set it in .env file")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	if cfg.FusionVectorWeight < 0 || cfg.FusionLexicalWeight < 0 || cfg.FusionVectorWeight+cfg.FusionLexicalWeight == 0 {
		return nil, fmt.Errorf("FUSION_VECTOR_WEIGHT and FUSION_LEXICAL_WEIGHT must be non-negative and not both zero")
	}

	if cfg.ChunkOverlapWords >= cfg.ChunkWords {
		return nil, fmt.Errorf("CHUNK_OVERLAP_WORDS must be smaller than CHUNK_WORDS")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
