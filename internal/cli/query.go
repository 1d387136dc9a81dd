package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"docrag/config"
	"docrag/internal/adapter/embedding"
	"docrag/internal/adapter/store"
	"docrag/internal/domain"
	"docrag/internal/port"
	"docrag/internal/usecase"
)

var (
	queryText  string
	queryTopK  int
	queryJSON  bool
	queryCtx   bool
	queryBatch string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Retrieve the chunks nearest to a query",
	Long: `Embed the query and return the k nearest chunks of the stored corpus,
closest first, with the document each chunk came from.

With --batch, queries are read one per line from a file ("-" for stdin);
blank lines and lines starting with # are ignored. Repeated queries are
served from the query cache when retrieve.cache_size is set.

Examples:
  docrag query -q "exit load on equity funds"
  docrag query -q "expense ratio" --top-k 8 --json
  docrag query -q "what is an SIP" --context
  docrag query --batch questions.txt --json`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.Flags().BoolVar(&queryCtx, "context", false, "output as a source-tagged context block")
	queryCmd.Flags().StringVar(&queryBatch, "batch", "", "file of queries, one per line (- for stdin)")
	queryCmd.MarkFlagsMutuallyExclusive("query", "batch")
	queryCmd.MarkFlagsOneRequired("query", "batch")
}

// queryResult is the JSON shape handed to downstream consumers.
type queryResult struct {
	Text     string  `json:"text"`
	Source   string  `json:"source"`
	Slot     int     `json:"slot"`
	Distance float64 `json:"distance"`
}

// batchResult pairs one query with its results.
type batchResult struct {
	Query   string
	Results []domain.ScoredChunk
}

// openRetriever loads the corpus and returns the retriever serving it.
// A missing or inconsistent corpus is an error.
func openRetriever(cfg *config.Config) (port.Retriever, *usecase.RetrieveUseCase, error) {
	embedder, err := embedding.New(cfg.Embedding, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	corpus, err := store.NewBoltCorpusStore(cfg.Corpus.Path).Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load corpus (run 'docrag ingest' first?): %w", err)
	}

	retrieveUC, err := usecase.NewRetrieveUseCase(corpus, embedder)
	if err != nil {
		return nil, nil, err
	}
	return retrieveUC.Cached(cfg.Retrieve.CacheSize, cfg.Retrieve.CacheTTL), retrieveUC, nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	queries := []string{queryText}
	if queryBatch != "" {
		var err error
		if queries, err = loadQueries(cmd.InOrStdin(), queryBatch); err != nil {
			return err
		}
	}

	retriever, retrieveUC, err := openRetriever(cfg)
	if err != nil {
		return err
	}
	log.Debug("corpus loaded", "id", retrieveUC.Info().ID, "chunks", retrieveUC.Len())

	topK := cfg.Retrieve.TopK
	if queryTopK > 0 {
		topK = queryTopK
	}

	batch, err := searchAll(cmd.Context(), retriever, queries, topK)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, b := range batch {
		printResults(out, b, retrieveUC.Len() == 0)
	}
	return nil
}

// searchAll runs every query in order and stops at the first failure.
func searchAll(ctx context.Context, r port.Retriever, queries []string, k int) ([]batchResult, error) {
	batch := make([]batchResult, 0, len(queries))
	for _, q := range queries {
		chunks, err := r.Search(ctx, q, k)
		if err != nil {
			return nil, fmt.Errorf("search failed for %q: %w", q, err)
		}
		batch = append(batch, batchResult{Query: q, Results: chunks})
	}
	return batch, nil
}

func loadQueries(stdin io.Reader, path string) ([]string, error) {
	if path == "-" {
		return readQueries(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open batch file: %w", err)
	}
	defer f.Close()
	return readQueries(f)
}

// readQueries returns the non-blank, non-comment lines of r, trimmed.
func readQueries(r io.Reader) ([]string, error) {
	var queries []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		queries = append(queries, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read queries: %w", err)
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("no queries found")
	}
	return queries, nil
}

func printResults(out io.Writer, b batchResult, emptyCorpus bool) {
	results := make([]queryResult, 0, len(b.Results))
	for _, c := range b.Results {
		results = append(results, queryResult{
			Text:     c.Chunk.Text,
			Source:   c.Chunk.Source,
			Slot:     c.Slot,
			Distance: c.Distance,
		})
	}

	if queryJSON {
		if queryBatch != "" {
			output, _ := json.Marshal(struct {
				Query   string        `json:"query"`
				Results []queryResult `json:"results"`
			}{b.Query, results})
			fmt.Fprintln(out, string(output))
			return
		}
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Fprintln(out, string(output))
		return
	}

	if emptyCorpus {
		fmt.Fprintln(out, "No indexed context available.")
		return
	}

	if queryCtx {
		fmt.Fprintln(out, usecase.FormatContext(b.Results))
		return
	}

	fmt.Fprintf(out, "Found %d results for: %s\n\n", len(results), b.Query)
	for i, r := range results {
		fmt.Fprintf(out, "--- [%d] [Source: %s] (distance: %.4f) ---\n", i+1, r.Source, r.Distance)
		fmt.Fprintln(out, r.Text)
		fmt.Fprintln(out)
	}
}
