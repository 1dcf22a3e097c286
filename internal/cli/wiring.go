package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"docrag/config"
	"docrag/internal/adapter/embedding"
	"docrag/internal/adapter/store"
	"docrag/internal/domain"
	"docrag/internal/port"
)

// newEmbedder builds the configured embedding provider. Missing credentials
// are reported before any store is opened.
func newEmbedder(cfg *config.Config) (port.Embedder, error) {
	ec := cfg.Embedding
	if ec.Provider == "hash" {
		return embedding.NewHashEmbedder(ec.Dimension), nil
	}

	key, err := ec.APIKey()
	if err != nil {
		return nil, err
	}
	if ec.Provider == "ollama" {
		key = "ollama"
	}
	return embedding.New(embedding.Options{
		Provider:   ec.Provider,
		APIKey:     key,
		Model:      ec.Model,
		BaseURL:    ec.BaseURL,
		Dimension:  ec.Dimension,
		Timeout:    ec.Timeout,
		MaxRetries: ec.MaxRetries,
		Logger:     logger,
	})
}

// openStore opens the configured backend for the embedder's model.
func openStore(ctx context.Context, cfg *config.Config, dir string, embedder port.Embedder) (port.VectorStore, error) {
	opts := store.Options{
		Collection: cfg.Store.Collection,
		Model:      embedder.ModelName(),
		Dimension:  cfg.Embedding.Dimension,
	}

	switch cfg.Store.Backend {
	case "bolt":
		if err := cfg.EnsureStoreDir(dir); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
		return store.NewBoltVectorStore(cfg.StorePath(dir), opts)
	case "sqlite":
		if err := cfg.EnsureStoreDir(dir); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
		return store.NewSQLiteVectorStore(ctx, cfg.StorePath(dir), opts)
	case "qdrant":
		dim, err := resolveDimension(ctx, embedder)
		if err != nil {
			return nil, err
		}
		opts.Dimension = dim
		qc := cfg.Store.Qdrant
		var apiKey string
		if qc.APIKeyEnv != "" {
			apiKey = os.Getenv(qc.APIKeyEnv)
		}
		return store.NewQdrantVectorStore(ctx, store.QdrantConfig{
			Host:   qc.Host,
			Port:   qc.Port,
			APIKey: apiKey,
			UseTLS: qc.UseTLS,
		}, opts)
	case "memory":
		return nil, &domain.ConfigurationError{
			Field: "Store.Backend",
			Err:   errors.New("memory backend does not persist between commands, use bolt or sqlite"),
		}
	}
	return nil, &domain.ConfigurationError{
		Field: "Store.Backend",
		Err:   fmt.Errorf("unknown store backend %q", cfg.Store.Backend),
	}
}

// resolveDimension returns the embedder's vector size. Models missing from
// the built-in table only learn it from a response, so one short text is
// embedded when the size is still unknown.
func resolveDimension(ctx context.Context, embedder port.Embedder) (int, error) {
	if dim := embedder.Dimension(); dim > 0 {
		return dim, nil
	}
	logger.Debug("embedding dimension unknown, asking the provider", "model", embedder.ModelName())
	vec, err := embedder.Embed(ctx, "dimension check")
	if err != nil {
		return 0, fmt.Errorf("failed to determine embedding dimension (set embedding.dimension): %w", err)
	}
	return len(vec), nil
}

// openPipeline builds the embedder and store used by every command.
func openPipeline(ctx context.Context) (port.Embedder, port.VectorStore, error) {
	cfg := GetConfig()
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, nil, err
	}
	st, err := openStore(ctx, cfg, GetRootDir(), embedder)
	if err != nil {
		return nil, nil, err
	}
	return embedder, st, nil
}
