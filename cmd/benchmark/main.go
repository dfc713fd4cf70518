package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/justineyoo1/PDFResearchAssistant/config"
	"github.com/justineyoo1/PDFResearchAssistant/internal/app"
	"github.com/justineyoo1/PDFResearchAssistant/internal/logging"
)

func main() {
	dir := flag.String("dir", ".", "Project directory holding the data dir")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", 10, "Number of results")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run cmd/benchmark/main.go -dir ./papers -q \"query\"")
		fmt.Println("\nReports:")
		fmt.Println("  1. Embedding infrastructure (model connection, vector index)")
		fmt.Println("  2. Retrieval similarity (query vs results)")
		fmt.Println("  3. Result spread across documents")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	rt, err := app.Open(cfg, *dir, logging.New(os.Stderr, "warn", cfg.Logging.Format))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening index: %v\n", err)
		os.Exit(1)
	}
	defer rt.Close()

	if rt.Assistant.IndexedChunks() == 0 {
		fmt.Fprintln(os.Stderr, "No vectors indexed - run 'assistant ingest' first")
		os.Exit(1)
	}

	fmt.Println("RETRIEVAL BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Vectors indexed: %d\n", rt.Assistant.IndexedChunks())
	fmt.Printf("Model: %s (%s)\n", cfg.Embedding.Model, cfg.Embedding.Provider)
	fmt.Printf("Metric: %s\n", cfg.Index.Metric)
	fmt.Println()

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	start := time.Now()
	results, err := rt.Assistant.Search(context.Background(), *query, *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Search took %s\n\n", time.Since(start).Round(time.Millisecond))

	if len(results) == 0 {
		fmt.Println("No results.")
		return
	}

	fmt.Printf("Top %d matches:\n\n", len(results))

	totalScore := 0.0
	docs := make(map[string]string)
	for i, r := range results {
		name, ok := docs[r.Chunk.DocID]
		if !ok {
			doc, _ := rt.Assistant.GetDocument(r.Chunk.DocID)
			name = doc.Filename
			docs[r.Chunk.DocID] = name
		}

		preview := r.Chunk.Text
		if len(preview) > 150 {
			preview = preview[:150] + "..."
		}
		preview = strings.ReplaceAll(preview, "\n", " ")

		totalScore += r.Score

		rating := "LOW"
		if r.Score > 0.85 {
			rating = "HIGH"
		} else if r.Score > 0.75 {
			rating = "GOOD"
		} else if r.Score > 0.65 {
			rating = "OK"
		}

		fmt.Printf("%d. [%s %.3f] %s #%d (bytes %d-%d)\n", i+1, rating, r.Score, name, r.Chunk.Position, r.Chunk.Span.Start, r.Chunk.Span.End)
		fmt.Printf("   %s\n\n", preview)
	}

	avgScore := totalScore / float64(len(results))
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Average score:      %.3f\n", avgScore)
	fmt.Printf("  Top-1 score:        %.3f\n", results[0].Score)
	fmt.Printf("  Distinct documents: %d\n", len(docs))

	if avgScore > 0.75 {
		fmt.Println("  Status: GOOD - retrieval working well")
	} else if avgScore > 0.65 {
		fmt.Println("  Status: OK - results are somewhat related")
	} else {
		fmt.Println("  Status: POOR - may need a better embedding model or re-ingestion")
	}
}
