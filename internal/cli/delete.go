package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/justineyoo1/PDFResearchAssistant/internal/domain"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete documents with their chunks and vectors",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	var errs []error
	for _, id := range args {
		if err := rt.Assistant.DeleteDocument(id); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				fmt.Printf("Not found: %s\n", id)
			}
			errs = append(errs, err)
			continue
		}
		fmt.Printf("Deleted %s\n", id)
	}
	return errors.Join(errs...)
}
