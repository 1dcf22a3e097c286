package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"docrag/internal/adapter/cache"
	"docrag/internal/domain"
	"docrag/internal/port"
)

// Gate modes decide which documents an ingestion run embeds.
const (
	// GateCollection skips the whole run when the collection already holds
	// any record.
	GateCollection = "collection"
	// GateDocument skips only documents whose id is already stored.
	GateDocument = "document"
	// GateNone embeds every document and overwrites stored records whose text
	// changed.
	GateNone = "none"
)

// IngestOptions tunes an ingestion run.
type IngestOptions struct {
	Gate            string
	Workers         int
	ContinueOnError bool
	Logger          *slog.Logger
	// OnDocument is called after each document is stored, skipped or failed.
	OnDocument func(id string)
}

// IngestUseCase is the only writer of the vector store.
type IngestUseCase struct {
	embedder port.Embedder
	store    port.VectorStore
	opts     IngestOptions

	// mu serializes runs so the gate is evaluated once per run.
	mu sync.Mutex
}

func NewIngestUseCase(embedder port.Embedder, store port.VectorStore, opts IngestOptions) *IngestUseCase {
	if opts.Gate == "" {
		opts.Gate = GateCollection
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &IngestUseCase{
		embedder: embedder,
		store:    store,
		opts:     opts,
	}
}

// Ingest loads the source into the store. In collection gate mode the source
// is not enumerated at all when the store is already populated.
func (u *IngestUseCase) Ingest(ctx context.Context, source port.DocumentSource) (*domain.IngestReport, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	start := time.Now()
	report := &domain.IngestReport{}

	if u.opts.Gate == GateCollection {
		n, err := u.store.Count(ctx)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			u.opts.Logger.Info("collection already populated, skipping ingestion", "count", n)
			report.Skipped = true
			report.Existing = n
			report.Duration = time.Since(start)
			return report, nil
		}
	}

	docs, err := source.Documents(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate documents: %w", err)
	}

	if err := u.ingestDocuments(ctx, docs, report); err != nil {
		return nil, err
	}

	report.Duration = time.Since(start)
	u.opts.Logger.Info("ingestion finished",
		"ingested", report.Ingested,
		"existing", report.Existing,
		"failed", len(report.Failed),
		"duration", report.Duration,
	)
	return report, nil
}

func (u *IngestUseCase) ingestDocuments(ctx context.Context, docs []domain.Document, report *domain.IngestReport) error {
	embedder := cache.NewCachedEmbedder(u.embedder)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.opts.Workers)

	var mu sync.Mutex
	for _, doc := range u.dropRepeatedIDs(docs, report) {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			stored, err := u.ingestOne(gctx, embedder, doc)

			mu.Lock()
			defer mu.Unlock()
			if u.opts.OnDocument != nil {
				defer u.opts.OnDocument(doc.ID)
			}

			switch {
			case err != nil && u.opts.ContinueOnError:
				u.opts.Logger.Warn("document failed", "id", doc.ID, "error", err)
				report.Failed = append(report.Failed, domain.DocumentFailure{ID: doc.ID, Err: err})
				return nil
			case err != nil:
				return fmt.Errorf("ingest %q: %w", doc.ID, err)
			case stored:
				report.Ingested++
			default:
				report.Existing++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	// A cancelled parent stops enumeration without a worker error.
	return ctx.Err()
}

// dropRepeatedIDs keeps the first document for each id so one run stores and
// counts every id at most once.
func (u *IngestUseCase) dropRepeatedIDs(docs []domain.Document, report *domain.IngestReport) []domain.Document {
	seen := make(map[string]struct{}, len(docs))
	kept := docs[:0:0]
	for _, doc := range docs {
		if _, dup := seen[doc.ID]; dup && doc.ID != "" {
			u.opts.Logger.Warn("duplicate document id in source, skipping", "id", doc.ID)
			report.Duplicates++
			if u.opts.OnDocument != nil {
				u.opts.OnDocument(doc.ID)
			}
			continue
		}
		seen[doc.ID] = struct{}{}
		kept = append(kept, doc)
	}
	return kept
}

// ingestOne embeds and stores one document. It reports false when the
// document gate found the id already stored, or when the none gate found the
// same text already stored.
func (u *IngestUseCase) ingestOne(ctx context.Context, embedder port.Embedder, doc domain.Document) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if doc.ID == "" {
		return false, domain.ErrEmptyID
	}

	if u.opts.Gate == GateDocument {
		ok, err := u.store.Exists(ctx, doc.ID)
		if err != nil {
			return false, err
		}
		if ok {
			u.opts.Logger.Debug("document already stored", "id", doc.ID)
			return false, nil
		}
	}

	if u.opts.Gate == GateNone {
		if reader, ok := u.store.(port.RecordReader); ok {
			rec, found, err := reader.Get(ctx, doc.ID)
			if err != nil {
				return false, err
			}
			if found && rec.Text == doc.Text {
				u.opts.Logger.Debug("document unchanged", "id", doc.ID)
				return false, nil
			}
		}
	}

	vec, err := embedder.Embed(ctx, doc.Text)
	if err != nil {
		return false, err
	}
	if err := u.store.Put(ctx, doc.ID, doc.Text, vec); err != nil {
		return false, err
	}
	u.opts.Logger.Debug("document stored", "id", doc.ID, "dimension", len(vec))
	return true, nil
}

// Documents is a fixed, in-memory DocumentSource.
type Documents []domain.Document

func (d Documents) Documents(ctx context.Context) ([]domain.Document, error) {
	return d, nil
}

// FailureError joins the per-document failures of a report into one error,
// or returns nil when there were none.
func FailureError(report *domain.IngestReport) error {
	if report == nil || len(report.Failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(report.Failed))
	for _, f := range report.Failed {
		errs = append(errs, fmt.Errorf("%s: %w", f.ID, f.Err))
	}
	return errors.Join(errs...)
}
