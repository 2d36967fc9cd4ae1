package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidProvider indicates an unsupported embedding provider.
	ErrInvalidProvider = errors.New("invalid embedding provider")

	// ErrEmptyEndpoint indicates a missing endpoint where one is required.
	ErrEmptyEndpoint = errors.New("empty endpoint")

	// ErrInvalidBatchSize indicates a non-positive embedding_batch_size.
	ErrInvalidBatchSize = errors.New("invalid embedding batch size")

	// ErrInvalidChunkLimit indicates a non-positive chunk_limit.
	ErrInvalidChunkLimit = errors.New("invalid chunk limit")

	// ErrInvalidCacheSettings indicates invalid cache configuration.
	ErrInvalidCacheSettings = errors.New("invalid cache settings")

	// ErrInvalidPRFSettings indicates invalid PRF configuration.
	ErrInvalidPRFSettings = errors.New("invalid prf settings")
)

// Validate checks that the configuration is valid and complete.
func Validate(cfg *Config) error {
	var errs []error

	if err := validateEmbedding(&cfg.Embedding); err != nil {
		errs = append(errs, err)
	}
	if err := validateIndexer(&cfg.Indexer); err != nil {
		errs = append(errs, err)
	}
	if err := validateCache(&cfg.Cache); err != nil {
		errs = append(errs, err)
	}
	if err := validatePRF(&cfg.PRF); err != nil {
		errs = append(errs, err)
	}
	if err := validateReranker(&cfg.Reranker); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}
	return nil
}

func validateEmbedding(cfg *EmbeddingConfig) error {
	provider := strings.ToLower(cfg.Provider)
	if provider != "mock" && provider != "http" {
		return fmt.Errorf("%w: must be 'mock' or 'http', got '%s'", ErrInvalidProvider, cfg.Provider)
	}
	if provider == "http" && strings.TrimSpace(cfg.Endpoint) == "" {
		return fmt.Errorf("%w: endpoint is required for the http provider", ErrEmptyEndpoint)
	}
	return nil
}

func validateIndexer(cfg *IndexerConfig) error {
	var errs []error
	if cfg.EmbeddingBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: embedding_batch_size must be positive, got %d", ErrInvalidBatchSize, cfg.EmbeddingBatchSize))
	}
	if cfg.ChunkLimit <= 0 {
		errs = append(errs, fmt.Errorf("%w: chunk_limit must be positive, got %d", ErrInvalidChunkLimit, cfg.ChunkLimit))
	}
	if len(errs) > 0 {
		return joinErrors(errs)
	}
	return nil
}

func validateCache(cfg *CacheConfig) error {
	var errs []error
	if cfg.MaxAgeDays < 0 {
		errs = append(errs, fmt.Errorf("%w: max_age_days cannot be negative, got %d", ErrInvalidCacheSettings, cfg.MaxAgeDays))
	}
	if cfg.MaxSizeMB < 0 {
		errs = append(errs, fmt.Errorf("%w: max_size_mb cannot be negative, got %d", ErrInvalidCacheSettings, cfg.MaxSizeMB))
	}
	if cfg.CleanupIntervalHours < 0 {
		errs = append(errs, fmt.Errorf("%w: cleanup_interval_hours cannot be negative, got %d", ErrInvalidCacheSettings, cfg.CleanupIntervalHours))
	}
	if len(errs) > 0 {
		return joinErrors(errs)
	}
	return nil
}

func validatePRF(cfg *PRFConfig) error {
	var errs []error
	if cfg.TopK <= 0 {
		errs = append(errs, fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidPRFSettings, cfg.TopK))
	}
	if cfg.ExpansionTerms <= 0 {
		errs = append(errs, fmt.Errorf("%w: expansion_terms must be positive, got %d", ErrInvalidPRFSettings, cfg.ExpansionTerms))
	}
	if cfg.MinTermLength <= 0 {
		errs = append(errs, fmt.Errorf("%w: min_term_length must be positive, got %d", ErrInvalidPRFSettings, cfg.MinTermLength))
	}
	if len(errs) > 0 {
		return joinErrors(errs)
	}
	return nil
}

func validateReranker(cfg *RerankerConfig) error {
	if cfg.Enabled && strings.TrimSpace(cfg.Endpoint) == "" {
		return fmt.Errorf("%w: endpoint is required when reranker is enabled", ErrEmptyEndpoint)
	}
	return nil
}

// joinErrors combines multiple errors into a single error with clear formatting.
func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	if len(errs) == 1 {
		return errs[0]
	}

	var msgs []string
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}

	return fmt.Errorf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}
