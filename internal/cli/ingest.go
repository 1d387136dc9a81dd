package cli

import (
	"fmt"
	"sort"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"docrag/internal/adapter/chunker"
	"docrag/internal/adapter/embedding"
	"docrag/internal/adapter/extract"
	"docrag/internal/adapter/fs"
	"docrag/internal/adapter/memstore"
	"docrag/internal/adapter/store"
	"docrag/internal/port"
	"docrag/internal/usecase"
)

var ingestDryRun bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [documents...]",
	Short: "Build the corpus from documents",
	Long: `Extract, chunk and embed the configured documents and replace the stored
corpus with the result. Arguments override ingest.documents from the config
and may be paths or glob patterns.

Missing or unreadable documents are skipped. The run fails, leaving any
previous corpus untouched, if no document yields text.

Examples:
  docrag ingest
  docrag ingest "data/Mutual Funds Complete Guide.pdf" data/*.md
  docrag ingest --dry-run             # Report chunk counts without writing`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "run the pipeline but keep the corpus in memory")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	sources := cfg.Ingest.Documents
	if len(args) > 0 {
		sources = args
	}

	chk, err := chunker.NewWindowChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	if err != nil {
		return err
	}

	embedder, err := embedding.New(cfg.Embedding, log)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	var st port.CorpusStore = store.NewBoltCorpusStore(cfg.Corpus.Path)
	if ingestDryRun {
		st = memstore.NewCorpusStore()
	}
	ingestUC := usecase.NewIngestUseCase(
		fs.NewResolver(cfg.Ingest.Excludes),
		extract.NewRegistry(),
		chk,
		embedder,
		st,
		usecase.IngestOptions{BatchSize: cfg.Embedding.BatchSize, Logger: log},
	)

	var bar *progressbar.ProgressBar
	progress := func(embedded, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(cmd.ErrOrStderr())
				}),
			)
		}
		bar.Set(embedded)
	}

	result, err := ingestUC.Ingest(cmd.Context(), sources, progress)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nIngestion complete:\n")
	fmt.Fprintf(out, "  Corpus:     %s\n", result.CorpusID)
	fmt.Fprintf(out, "  Model:      %s (dimension %d)\n", result.Model, result.Dimension)
	fmt.Fprintf(out, "  Documents:  %d\n", result.Documents)
	fmt.Fprintf(out, "  Chunks:     %d\n", result.Chunks)

	names := make([]string, 0, len(result.PerSource))
	for name := range result.PerSource {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "    %-40s %d\n", name, result.PerSource[name])
	}

	if len(result.Skipped) > 0 {
		fmt.Fprintf(out, "\nSkipped:\n")
		for _, s := range result.Skipped {
			fmt.Fprintf(out, "  - %s: %s\n", s.Path, s.Reason)
		}
	}

	if ingestDryRun {
		fmt.Fprintf(out, "\nDry run: %s left unchanged\n", cfg.Corpus.Path)
	} else {
		fmt.Fprintf(out, "\nCorpus stored at: %s\n", cfg.Corpus.Path)
	}
	return nil
}
