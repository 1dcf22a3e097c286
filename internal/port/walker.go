package port

import (
	"context"

	"docrag/internal/domain"
)

// FileWalker lists the candidate files under a root directory.
type FileWalker interface {
	Walk(root string) ([]FileInfo, error)
}

type FileInfo struct {
	Path    string
	ModTime int64
	Size    int64
}

// DocumentSource enumerates ingestion inputs in a stable order.
type DocumentSource interface {
	Documents(ctx context.Context) ([]domain.Document, error)
}
