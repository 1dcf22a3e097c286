package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"docrag/internal/adapter/fs"
	"docrag/internal/domain"
	"docrag/internal/port"
	"docrag/internal/usecase"
)

var (
	ingestGate            string
	ingestWorkers         int
	ingestContinueOnError bool
	ingestWatch           bool
	ingestNoProgress      bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [source-dir]",
	Short: "Embed documents into the vector store",
	Long: `Embed every matching document under the source directory (default ./data)
and store it under its file name.

By default ingestion runs only when the collection is empty. Use --gate document
to add documents whose id is not stored yet, and --watch to keep ingesting new
and modified files.

Examples:
  docrag ingest
  docrag ingest ./corpus --gate document --workers 4
  docrag ingest --watch`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVar(&ingestGate, "gate", "", "idempotency gate: collection or document (default from config)")
	ingestCmd.Flags().IntVarP(&ingestWorkers, "workers", "w", 0, "parallel embedding workers (default from config)")
	ingestCmd.Flags().BoolVar(&ingestContinueOnError, "continue-on-error", false, "record failed documents and keep going")
	ingestCmd.Flags().BoolVar(&ingestWatch, "watch", false, "keep running and ingest new or modified files")
	ingestCmd.Flags().BoolVar(&ingestNoProgress, "no-progress", false, "disable the progress bar")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	sourceDir := cfg.SourceDir(GetRootDir())
	if len(args) > 0 {
		sourceDir = args[0]
	}
	info, err := os.Stat(sourceDir)
	if err != nil {
		return fmt.Errorf("source directory does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source is not a directory: %s", sourceDir)
	}

	gate := cfg.Ingest.Gate
	if ingestGate != "" {
		if ingestGate != usecase.GateCollection && ingestGate != usecase.GateDocument {
			return &domain.ConfigurationError{Field: "gate", Err: fmt.Errorf("unknown gate %q", ingestGate)}
		}
		gate = ingestGate
	}
	workers := cfg.Ingest.Workers
	if ingestWorkers > 0 {
		workers = ingestWorkers
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	embedder, st, err := openPipeline(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	walker := fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes)
	source := &progressSource{
		DocumentSource: fs.NewDirectorySource(sourceDir, walker, logger),
		enabled:        !ingestNoProgress,
	}

	ingestUC := usecase.NewIngestUseCase(embedder, st, usecase.IngestOptions{
		Gate:            gate,
		Workers:         workers,
		ContinueOnError: ingestContinueOnError || cfg.Ingest.ContinueOnError,
		Logger:          logger,
		OnDocument:      source.advance,
	})

	fmt.Printf("Ingesting %s (gate: %s, workers: %d)...\n", sourceDir, gate, workers)
	report, err := ingestUC.Ingest(ctx, source)
	source.finish()
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	printReport(report)

	if ingestWatch {
		return watchSource(ctx, sourceDir, walker, embedder, st, workers)
	}
	return usecase.FailureError(report)
}

func printReport(report *domain.IngestReport) {
	if report.Skipped {
		fmt.Printf("\nCollection already holds %d documents, nothing to do.\n", report.Existing)
		return
	}

	fmt.Printf("\nIngestion complete:\n")
	fmt.Printf("  Documents ingested: %d\n", report.Ingested)
	if report.Existing > 0 {
		fmt.Printf("  Already stored:     %d\n", report.Existing)
	}
	if report.Duplicates > 0 {
		fmt.Printf("  Duplicate ids:      %d\n", report.Duplicates)
	}
	fmt.Printf("  Duration:           %s\n", formatDuration(report.Duration))

	if len(report.Failed) > 0 {
		fmt.Printf("\nFailed:\n")
		for _, f := range report.Failed {
			fmt.Printf("  - %s: %v\n", f.ID, f.Err)
		}
	}
}

// watchSource ingests new files through the document gate and re-embeds
// modified files until ctx is cancelled.
func watchSource(ctx context.Context, dir string, walker *fs.Walker, embedder port.Embedder, st port.VectorStore, workers int) error {
	w, err := fs.NewWatcher(dir, walker, logger)
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer w.Close()

	events, err := w.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	opts := usecase.IngestOptions{Workers: workers, ContinueOnError: true, Logger: logger}
	opts.Gate = usecase.GateDocument
	created := usecase.NewIngestUseCase(embedder, st, opts)
	opts.Gate = usecase.GateNone
	modified := usecase.NewIngestUseCase(embedder, st, opts)

	fmt.Printf("\nWatching %s for changes (Ctrl+C to stop)...\n", dir)
	for ev := range events {
		doc, err := fs.Load(ev.Path)
		if err != nil {
			logger.Warn("failed to read changed file", "path", ev.Path, "error", err)
			continue
		}

		uc := created
		if ev.Op == fs.FileModified {
			uc = modified
		}
		report, err := uc.Ingest(ctx, usecase.Documents{doc})
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return fmt.Errorf("ingestion failed: %w", err)
		}
		if report.Ingested > 0 {
			fmt.Printf("  ingested %s\n", doc.ID)
		}
	}
	return nil
}

// progressSource shows a progress bar sized once the documents are known.
type progressSource struct {
	port.DocumentSource
	enabled bool

	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

func (s *progressSource) Documents(ctx context.Context) ([]domain.Document, error) {
	docs, err := s.DocumentSource.Documents(ctx)
	if err != nil || !s.enabled || len(docs) == 0 {
		return docs, err
	}

	s.mu.Lock()
	s.bar = progressbar.NewOptions(len(docs),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)
	s.mu.Unlock()
	return docs, nil
}

func (s *progressSource) advance(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bar != nil {
		s.bar.Add(1)
	}
}

func (s *progressSource) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bar != nil {
		s.bar.Finish()
	}
}
