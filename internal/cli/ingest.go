package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/justineyoo1/PDFResearchAssistant/internal/adapter/fs"
	"github.com/justineyoo1/PDFResearchAssistant/internal/usecase"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file|dir>...",
	Short: "Ingest documents for question answering",
	Long: `Extract, chunk and embed documents so they can be searched and cited.
Directories are walked recursively using the include and exclude patterns
from the configuration. Unchanged documents are recognized and skipped.

Examples:
  assistant ingest paper.pdf notes.md
  assistant ingest ./papers`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	walker := fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes)

	var paths []string
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
		files, err := walker.Walk(abs)
		if err != nil {
			return fmt.Errorf("failed to scan %s: %w", arg, err)
		}
		for _, f := range files {
			paths = append(paths, f.Path)
		}
	}
	if len(paths) == 0 {
		fmt.Println("No matching documents found.")
		return nil
	}

	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	fmt.Printf("Ingesting %d document(s)...\n", len(paths))

	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)

	var barMu sync.Mutex
	startTime := time.Now()
	processed := 0
	progress := func(usecase.FileResult) {
		barMu.Lock()
		defer barMu.Unlock()

		processed++
		bar.Set(processed)
		elapsed := time.Since(startTime)
		rate := float64(processed) / elapsed.Seconds()
		if remaining := len(paths) - processed; rate > 0 && remaining > 0 {
			eta := time.Duration(float64(remaining)/rate) * time.Second
			bar.Describe(fmt.Sprintf("[cyan]Ingesting[reset] ETA: %s", formatDuration(eta)))
		}
	}

	result, err := rt.Assistant.IngestFiles(ctx, paths, progress)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Printf("\nIngestion complete:\n")
	fmt.Printf("  Documents ingested: %d\n", result.Ingested)
	fmt.Printf("  Already present:    %d\n", result.Existing)
	fmt.Printf("  Failed:             %d\n", result.Failed)
	fmt.Printf("  Indexed chunks:     %d\n", rt.Assistant.IndexedChunks())

	if result.Failed > 0 {
		fmt.Printf("\nErrors:\n")
		for _, f := range result.Files {
			if f.Err != nil {
				fmt.Printf("  - %s: %v\n", filepath.Base(f.Path), f.Err)
			}
		}
	}
	if errors.Is(err, context.Canceled) {
		fmt.Println("\nInterrupted; documents that finished are committed.")
	}
	return nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
