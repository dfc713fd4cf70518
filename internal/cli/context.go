package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	contextQuestion string
	contextTopK     int
	contextBudget   int
	contextDocs     []string
	contextOutput   string
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Assemble the cited context for a question",
	Long: `Retrieve passages for a question and assemble them into a token-bounded
context grouped by document, as it would be sent to the language model.

Examples:
  assistant context -q "What is the main result?"
  assistant context -q "Limitations" -b 1500 -o context.json`,
	RunE: runContext,
}

func init() {
	rootCmd.AddCommand(contextCmd)
	contextCmd.Flags().StringVarP(&contextQuestion, "question", "q", "", "question (required)")
	contextCmd.Flags().IntVarP(&contextTopK, "top-k", "k", 0, "number of passages to retrieve (default from config)")
	contextCmd.Flags().IntVarP(&contextBudget, "budget", "b", 0, "token budget (default from config)")
	contextCmd.Flags().StringArrayVar(&contextDocs, "doc", nil, "restrict to a document id (repeatable)")
	contextCmd.Flags().StringVarP(&contextOutput, "output", "o", "", "write JSON to file instead of stdout")
	contextCmd.MarkFlagRequired("question")
}

func runContext(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	assembled, err := rt.Assistant.Context(cmd.Context(), contextQuestion, contextTopK, contextBudget, contextDocs...)
	if err != nil {
		return err
	}

	output, err := json.MarshalIndent(assembled, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode context: %w", err)
	}

	if contextOutput != "" {
		if err := os.WriteFile(contextOutput, output, 0644); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		fmt.Printf("Context written to %s (%d/%d tokens)\n", contextOutput, assembled.UsedTokens, assembled.BudgetTokens)
		return nil
	}

	fmt.Println(string(output))
	return nil
}
