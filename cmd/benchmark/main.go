package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"docrag/config"
	"docrag/internal/adapter/embedding"
	"docrag/internal/adapter/store"
	"docrag/internal/logger"
	"docrag/internal/port"
	"docrag/internal/usecase"
)

func main() {
	dir := flag.String("dir", ".", "Directory holding docrag.yaml")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", 4, "Number of results")
	runs := flag.Int("n", 20, "Number of timed searches")
	cached := flag.Bool("cache", false, "Serve repeats from the query cache")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -dir . -q \"query\" [-k 4] [-n 20] [-cache]")
		fmt.Println("\nMeasures:")
		fmt.Println("  1. Corpus load time")
		fmt.Println("  2. Search latency (query embedding + exact scan)")
		fmt.Println("  3. Distance spread of the returned chunks")
		fmt.Println("  4. Cold vs warm latency with -cache")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := config.LoadEnv(*dir); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading env: %v\n", err)
		os.Exit(1)
	}

	embedder, err := embedding.New(cfg.Embedding, logger.New(cfg.Logging, os.Stderr))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating embedder: %v\n", err)
		os.Exit(1)
	}

	loadStart := time.Now()
	corpus, err := store.NewBoltCorpusStore(cfg.Corpus.Path).Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading corpus: %v\n", err)
		os.Exit(1)
	}
	loadTime := time.Since(loadStart)

	retrieveUC, err := usecase.NewRetrieveUseCase(corpus, embedder)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening retriever: %v\n", err)
		os.Exit(1)
	}

	var retriever port.Retriever = retrieveUC
	if *cached {
		retriever = retrieveUC.Cached(max(cfg.Retrieve.CacheSize, 16), cfg.Retrieve.CacheTTL)
	}

	fmt.Println("RETRIEVAL BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Chunks indexed: %d\n", retrieveUC.Len())
	fmt.Printf("Query cache: %v\n", *cached)
	fmt.Printf("Model: %s (%s)\n", corpus.Info.Model, cfg.Embedding.Provider)
	fmt.Printf("Dimension: %d\n", corpus.Info.Dimension)
	fmt.Printf("Corpus load: %v\n", loadTime)
	fmt.Println()

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	ctx := context.Background()
	if *runs < 1 {
		*runs = 1
	}
	latencies := make([]time.Duration, 0, *runs)
	var last int
	for i := 0; i < *runs; i++ {
		start := time.Now()
		results, err := retriever.Search(ctx, *query, *topK)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
			os.Exit(1)
		}
		latencies = append(latencies, time.Since(start))
		last = len(results)

		if i == 0 {
			fmt.Printf("Top %d matches:\n\n", len(results))
			for j, r := range results {
				preview := strings.ReplaceAll(r.Chunk.Text, "\n", " ")
				if len(preview) > 80 {
					preview = preview[:80] + "..."
				}
				fmt.Printf("%d. [%.4f] %s (slot %d)\n", j+1, r.Distance, r.Chunk.Source, r.Slot)
				fmt.Printf("   %s\n\n", preview)
			}
			if len(results) > 1 {
				spread := results[len(results)-1].Distance - results[0].Distance
				fmt.Printf("Distance spread: %.4f\n\n", spread)
			}
		}
	}

	cold := latencies[0]
	var warm time.Duration
	if len(latencies) > 1 {
		for _, d := range latencies[1:] {
			warm += d
		}
		warm /= time.Duration(len(latencies) - 1)
	}

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	var total time.Duration
	for _, d := range latencies {
		total += d
	}

	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Searches: %d (%d results each)\n", len(latencies), last)
	fmt.Printf("Cold:     %v\n", cold)
	if len(latencies) > 1 {
		fmt.Printf("Warm:     %v (mean of %d)\n", warm, len(latencies)-1)
	}
	fmt.Printf("Mean:     %v\n", total/time.Duration(len(latencies)))
	fmt.Printf("p50:      %v\n", latencies[len(latencies)/2])
	fmt.Printf("p95:      %v\n", latencies[(len(latencies)*95)/100])
	fmt.Printf("Max:      %v\n", latencies[len(latencies)-1])
}
