package fs

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"docrag/internal/domain"
	"docrag/internal/port"
)

// DirectorySource reads plain-text documents from a directory tree. The
// document id is the file's base name.
type DirectorySource struct {
	root   string
	walker port.FileWalker
	logger *slog.Logger
}

func NewDirectorySource(root string, walker port.FileWalker, logger *slog.Logger) *DirectorySource {
	if walker == nil {
		walker = NewWalker([]string{"**/*.txt", "**/*.md"}, nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DirectorySource{root: root, walker: walker, logger: logger}
}

// Documents returns the documents in sorted path order. When two files share
// a base name only the first one is kept.
func (s *DirectorySource) Documents(ctx context.Context) ([]domain.Document, error) {
	files, err := s.walker.Walk(s.root)
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", s.root, err)
	}

	seen := make(map[string]string, len(files))
	docs := make([]domain.Document, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		id := filepath.Base(f.Path)
		if prev, ok := seen[id]; ok {
			s.logger.Warn("duplicate document id, skipping file", "id", id, "path", f.Path, "kept", prev)
			continue
		}

		text, err := ReadFile(f.Path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Path, err)
		}
		seen[id] = f.Path
		docs = append(docs, domain.Document{ID: id, Text: text})
	}
	return docs, nil
}

// Load reads a single file as a document.
func Load(path string) (domain.Document, error) {
	text, err := ReadFile(path)
	if err != nil {
		return domain.Document{}, err
	}
	return domain.Document{ID: filepath.Base(path), Text: text}, nil
}
