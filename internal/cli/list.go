package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/justineyoo1/PDFResearchAssistant/internal/domain"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested documents",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "output as JSON")
}

type listOutput struct {
	Documents   []domain.Document `json:"documents"`
	TotalDocs   int               `json:"total_documents"`
	TotalChunks int               `json:"total_chunks"`
}

func runList(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	docs, err := rt.Assistant.ListDocuments()
	if err != nil {
		return err
	}

	out := listOutput{Documents: docs, TotalDocs: len(docs)}
	if out.Documents == nil {
		out.Documents = []domain.Document{}
	}
	for _, d := range docs {
		out.TotalChunks += d.ChunkCount
	}

	if listJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(out)
	}

	if len(docs) == 0 {
		fmt.Println("No documents ingested yet. Run 'assistant ingest <path>' first.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFILENAME\tCHUNKS\tADDED")
	for _, d := range docs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", d.ID, d.Filename, d.ChunkCount, d.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	w.Flush()

	fmt.Printf("\n%d document(s), %d chunk(s)\n", out.TotalDocs, out.TotalChunks)
	return nil
}
