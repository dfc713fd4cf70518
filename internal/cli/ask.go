package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/justineyoo1/PDFResearchAssistant/internal/domain"
)

var (
	askQuestion string
	askTopK     int
	askDocs     []string
	askJSON     bool
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer a question from the ingested documents",
	Long: `Retrieve the most relevant passages, assemble them within the token budget
and ask the language model for an answer that cites its sources.

Examples:
  assistant ask -q "What optimizer did the authors use?"
  assistant ask -q "Compare the two methods" --doc <id> --doc <id> --json`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askQuestion, "question", "q", "", "question to answer (required)")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of passages to retrieve (default from config)")
	askCmd.Flags().StringArrayVar(&askDocs, "doc", nil, "restrict to a document id (repeatable)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output as JSON")
	askCmd.MarkFlagRequired("question")
}

func runAsk(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	answer, err := rt.Assistant.Ask(cmd.Context(), askQuestion, askTopK, askDocs...)
	if err != nil {
		return err
	}

	if askJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(answer)
	}

	fmt.Println(answer.Text)
	printCitations(answer.Citations)
	return nil
}

func printCitations(citations []domain.Citation) {
	if len(citations) == 0 {
		return
	}
	fmt.Printf("\nSources:\n")
	for _, c := range citations {
		fmt.Printf("  [%d] %s (bytes %d-%d, doc %s)\n", c.Marker, c.Filename, c.Start, c.End, shortID(c.DocID))
	}
}

func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
