package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	promptQuestion string
	promptTopK     int
	promptDocs     []string
	promptJSON     bool
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the prompt that ask would send to the model",
	Long: `Render the system and user prompt for a question without calling the
language model. Useful for manual orchestration or for inspecting context.

Examples:
  assistant prompt -q "How was the model evaluated?"
  assistant prompt -q "Key findings" --json > prompt.json`,
	RunE: runPrompt,
}

func init() {
	rootCmd.AddCommand(promptCmd)
	promptCmd.Flags().StringVarP(&promptQuestion, "question", "q", "", "question (required)")
	promptCmd.Flags().IntVarP(&promptTopK, "top-k", "k", 0, "number of passages to retrieve (default from config)")
	promptCmd.Flags().StringArrayVar(&promptDocs, "doc", nil, "restrict to a document id (repeatable)")
	promptCmd.Flags().BoolVar(&promptJSON, "json", false, "output as JSON")
	promptCmd.MarkFlagRequired("question")
}

func runPrompt(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	prompt, err := rt.Assistant.Prompt(cmd.Context(), promptQuestion, promptTopK, promptDocs...)
	if err != nil {
		return err
	}

	if promptJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(prompt)
	}

	fmt.Println("### System")
	fmt.Println(prompt.System)
	fmt.Println()
	fmt.Println("### User")
	fmt.Println(prompt.User)
	return nil
}
