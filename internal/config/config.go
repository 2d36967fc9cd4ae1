// Package config loads cortex's runtime configuration: the indexer's
// batching/ignore/extension overrides, the embedding cache's eviction
// policy, the PRF engine's expansion parameters, and the reranker and
// embedding provider endpoints. Grounded on the teacher's
// internal/config/config.go (a plain struct with a Default()
// constructor) and internal/cli/root.go's viper AutomaticEnv pattern,
// retargeted from the teacher's embedding-model/chunking-strategy
// fields onto the environment variables spec §6 documents.
package config

// Config is the complete cortex configuration, populated from defaults,
// an optional config file, and environment variable overrides.
type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding" mapstructure:"embedding"`
	Indexer   IndexerConfig   `yaml:"indexer" mapstructure:"indexer"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	PRF       PRFConfig       `yaml:"prf" mapstructure:"prf"`
	Reranker  RerankerConfig  `yaml:"reranker" mapstructure:"reranker"`
}

// EmbeddingConfig configures the embedding provider (spec §6's
// EmbeddingProvider interface is external; this selects and addresses
// an implementation of it).
type EmbeddingConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"` // "mock" or "http"
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"` // base URL for the "http" provider
}

// IndexerConfig configures the C7 Indexer (spec §4.7).
type IndexerConfig struct {
	Hybrid               bool     `yaml:"hybrid_mode" mapstructure:"hybrid_mode"`
	EmbeddingBatchSize   int      `yaml:"embedding_batch_size" mapstructure:"embedding_batch_size"`
	ChunkLimit           int      `yaml:"chunk_limit" mapstructure:"chunk_limit"`
	CustomExtensions     []string `yaml:"custom_extensions" mapstructure:"custom_extensions"`
	CustomIgnorePatterns []string `yaml:"custom_ignore_patterns" mapstructure:"custom_ignore_patterns"`
}

// CacheConfig configures the C2 EmbeddingCache's eviction policy (spec
// §4.2).
type CacheConfig struct {
	MaxAgeDays           int  `yaml:"max_age_days" mapstructure:"max_age_days"`
	MaxSizeMB            int  `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	CleanupIntervalHours int  `yaml:"cleanup_interval_hours" mapstructure:"cleanup_interval_hours"`
	CleanupEnabled       bool `yaml:"cleanup_enabled" mapstructure:"cleanup_enabled"`
}

// PRFConfig configures the C5 PRFEngine (spec §4.5).
type PRFConfig struct {
	TopK           int `yaml:"top_k" mapstructure:"top_k"`
	ExpansionTerms int `yaml:"expansion_terms" mapstructure:"expansion_terms"`
	MinTermLength  int `yaml:"min_term_length" mapstructure:"min_term_length"`
}

// RerankerConfig configures the optional external reranker (spec §6).
type RerankerConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
}

// Default returns spec-documented defaults (§4.2, §4.5, §4.7).
func Default() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Provider: "mock",
		},
		Indexer: IndexerConfig{
			Hybrid:             true,
			EmbeddingBatchSize: 100,
			ChunkLimit:         450000,
		},
		Cache: CacheConfig{
			MaxAgeDays:           7,
			MaxSizeMB:            500,
			CleanupIntervalHours: 24,
			CleanupEnabled:       true,
		},
		PRF: PRFConfig{
			TopK:           7,
			ExpansionTerms: 8,
			MinTermLength:  3,
		},
		Reranker: RerankerConfig{
			Enabled: false,
		},
	}
}
