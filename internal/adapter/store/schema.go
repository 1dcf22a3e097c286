package store

import (
	"errors"
	"fmt"

	"docrag/internal/domain"
)

// CurrentSchemaVersion is the current schema version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

var errModelMismatch = errors.New("embedding model mismatch")

// SchemaInfo describes how a collection was populated.
type SchemaInfo struct {
	Version   int    `json:"version"`
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
}

// Options configures a vector store for one collection.
type Options struct {
	Collection string
	Model      string
	// Dimension is the expected vector size. Zero adopts the stored size, or
	// the size of the first record written to an empty collection.
	Dimension int
}

// reconcile merges the stored schema with the requested options. It fails
// when an existing collection was built with a different model or dimension.
func reconcile(stored SchemaInfo, opts Options) (SchemaInfo, error) {
	if stored.Version > CurrentSchemaVersion {
		return stored, fmt.Errorf("schema version %d is newer than supported version %d", stored.Version, CurrentSchemaVersion)
	}

	merged := SchemaInfo{
		Version:   CurrentSchemaVersion,
		Model:     stored.Model,
		Dimension: stored.Dimension,
	}

	if opts.Model != "" {
		if stored.Model != "" && stored.Model != opts.Model {
			return stored, fmt.Errorf("%w: collection built with %q, configured %q", errModelMismatch, stored.Model, opts.Model)
		}
		merged.Model = opts.Model
	}

	if opts.Dimension > 0 {
		if stored.Dimension > 0 && stored.Dimension != opts.Dimension {
			return stored, fmt.Errorf("%w: collection has %d, configured %d", domain.ErrDimensionMismatch, stored.Dimension, opts.Dimension)
		}
		merged.Dimension = opts.Dimension
	}

	return merged, nil
}

func checkDimension(want, got int) error {
	if want > 0 && got != want {
		return fmt.Errorf("%w: expected %d, got %d", domain.ErrDimensionMismatch, want, got)
	}
	if got == 0 {
		return fmt.Errorf("%w: empty vector", domain.ErrDimensionMismatch)
	}
	return nil
}
