package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	rootDir string
}

// NewLoader creates a new configuration loader for the given root directory.
func NewLoader(rootDir string) Loader {
	return &loader{
		rootDir: rootDir,
	}
}

// Load loads configuration with the following priority (highest to
// lowest): spec §6 environment variables, then a .cortex/config.yml
// file, then built-in defaults.
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	configDir := filepath.Join(l.rootDir, ".cortex")
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Bind the exact environment variable names spec §6 documents.
	v.BindEnv("indexer.hybrid_mode", "HYBRID_MODE")
	v.BindEnv("indexer.embedding_batch_size", "EMBEDDING_BATCH_SIZE")
	v.BindEnv("indexer.chunk_limit", "CHUNK_LIMIT")
	v.BindEnv("indexer.custom_extensions", "CUSTOM_EXTENSIONS")
	v.BindEnv("indexer.custom_ignore_patterns", "CUSTOM_IGNORE_PATTERNS")

	v.BindEnv("cache.max_age_days", "CACHE_MAX_AGE_DAYS")
	v.BindEnv("cache.max_size_mb", "CACHE_MAX_SIZE_MB")
	v.BindEnv("cache.cleanup_interval_hours", "CACHE_CLEANUP_INTERVAL_HOURS")
	v.BindEnv("cache.cleanup_enabled", "CACHE_CLEANUP_ENABLED")

	v.BindEnv("prf.top_k", "PRF_TOP_K")
	v.BindEnv("prf.expansion_terms", "PRF_EXPANSION_TERMS")
	v.BindEnv("prf.min_term_length", "PRF_MIN_TERM_LENGTH")

	v.BindEnv("reranker.enabled", "RERANKER_ENABLED")
	v.BindEnv("reranker.endpoint", "RERANKER_ENDPOINT")

	v.BindEnv("embedding.provider", "EMBEDDING_PROVIDER")
	v.BindEnv("embedding.endpoint", "EMBEDDING_ENDPOINT")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults configures viper with the values from Default().
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.endpoint", d.Embedding.Endpoint)

	v.SetDefault("indexer.hybrid_mode", d.Indexer.Hybrid)
	v.SetDefault("indexer.embedding_batch_size", d.Indexer.EmbeddingBatchSize)
	v.SetDefault("indexer.chunk_limit", d.Indexer.ChunkLimit)
	v.SetDefault("indexer.custom_extensions", d.Indexer.CustomExtensions)
	v.SetDefault("indexer.custom_ignore_patterns", d.Indexer.CustomIgnorePatterns)

	v.SetDefault("cache.max_age_days", d.Cache.MaxAgeDays)
	v.SetDefault("cache.max_size_mb", d.Cache.MaxSizeMB)
	v.SetDefault("cache.cleanup_interval_hours", d.Cache.CleanupIntervalHours)
	v.SetDefault("cache.cleanup_enabled", d.Cache.CleanupEnabled)

	v.SetDefault("prf.top_k", d.PRF.TopK)
	v.SetDefault("prf.expansion_terms", d.PRF.ExpansionTerms)
	v.SetDefault("prf.min_term_length", d.PRF.MinTermLength)

	v.SetDefault("reranker.enabled", d.Reranker.Enabled)
	v.SetDefault("reranker.endpoint", d.Reranker.Endpoint)
}

// LoadConfig is a convenience function that creates a loader and loads config.
// It uses the current working directory as the root.
func LoadConfig() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return NewLoader(wd).Load()
}

// LoadConfigFromDir loads configuration from a specific directory.
func LoadConfigFromDir(rootDir string) (*Config, error) {
	return NewLoader(rootDir).Load()
}
