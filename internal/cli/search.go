package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	searchQuery string
	searchTopK  int
	searchDocs  []string
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search ingested passages without generating an answer",
	Long: `Rank passages by vector similarity to the query. Scores are normalized
to [0, 1]; near-duplicate neighboring passages are collapsed.

Examples:
  assistant search -q "learning rate schedule"
  assistant search -q "dataset size" --top-k 10 --json`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchQuery, "query", "q", "", "search query (required)")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of results (default from config)")
	searchCmd.Flags().StringArrayVar(&searchDocs, "doc", nil, "restrict to a document id (repeatable)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
	searchCmd.MarkFlagRequired("query")
}

// SearchResult is a simplified result for CLI output.
type SearchResult struct {
	DocID    string  `json:"doc_id"`
	Filename string  `json:"filename"`
	Position int     `json:"position"`
	Start    int     `json:"start"`
	End      int     `json:"end"`
	Score    float64 `json:"score"`
	Text     string  `json:"text"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	chunks, err := rt.Assistant.Search(cmd.Context(), searchQuery, searchTopK, searchDocs...)
	if err != nil {
		return err
	}

	filenames := make(map[string]string)
	results := make([]SearchResult, 0, len(chunks))
	for _, sc := range chunks {
		name, ok := filenames[sc.Chunk.DocID]
		if !ok {
			if doc, err := rt.Assistant.GetDocument(sc.Chunk.DocID); err == nil {
				name = doc.Filename
			}
			filenames[sc.Chunk.DocID] = name
		}
		results = append(results, SearchResult{
			DocID:    sc.Chunk.DocID,
			Filename: name,
			Position: sc.Chunk.Position,
			Start:    sc.Chunk.Span.Start,
			End:      sc.Chunk.Span.End,
			Score:    sc.Score,
			Text:     sc.Chunk.Text,
		})
	}

	if searchJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(results)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	for i, r := range results {
		fmt.Printf("\n[%d] %s #%d (score: %.3f)\n", i+1, r.Filename, r.Position, r.Score)
		fmt.Println(strings.Repeat("-", 60))
		text := r.Text
		if len(text) > 500 {
			text = text[:500] + "..."
		}
		fmt.Println(text)
	}
	return nil
}
