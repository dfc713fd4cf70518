package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/justineyoo1/PDFResearchAssistant/internal/adapter/store"
	"github.com/justineyoo1/PDFResearchAssistant/internal/app"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show storage, schema and configuration status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	fmt.Printf("Data directory:  %s\n", cfg.DataDir(GetRootDir()))
	fmt.Printf("Store backend:   %s\n", cfg.Store.Backend)
	fmt.Printf("Index backend:   %s (%s)\n", cfg.Index.Backend, cfg.Index.Metric)
	fmt.Printf("Embedding:       %s / %s (%d dims)\n", cfg.Embedding.Provider, cfg.Embedding.Model, cfg.Embedding.Dimension)
	fmt.Printf("Generation:      %s / %s\n", cfg.Generation.Provider, cfg.Generation.Model)
	fmt.Printf("Chunking:        %d %s, overlap %d\n", cfg.Ingest.ChunkSize, cfg.Ingest.ChunkUnit, cfg.Ingest.ChunkOverlap)

	meta, err := app.OpenMeta(cfg, GetRootDir())
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	if meta == nil {
		fmt.Println("\nNo index found. Run 'assistant ingest <path>' first.")
		return nil
	}

	info, err := meta.GetSchemaInfo()
	if err != nil {
		meta.Close()
		return err
	}
	result, err := meta.CheckMigration(cfg)
	meta.Close()
	if err != nil {
		return fmt.Errorf("failed to check migration: %w", err)
	}

	fmt.Printf("\nSchema version:  v%d (current v%d)\n", info.Version, store.CurrentSchemaVersion)
	fmt.Printf("Config hash:     %s (current %s)\n", info.ConfigHash, store.ComputeConfigHash(cfg))
	switch {
	case result.NeedsRebuild:
		fmt.Printf("Status:          rebuild required (%s)\n", result.Reason)
		return nil
	case result.NeedsMigration:
		fmt.Printf("Status:          migration pending (%s)\n", result.Reason)
	default:
		fmt.Println("Status:          up to date")
	}

	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	docs, err := rt.Assistant.ListDocuments()
	if err != nil {
		return err
	}
	chunks := 0
	for _, d := range docs {
		chunks += d.ChunkCount
	}
	fmt.Printf("Documents:       %d\n", len(docs))
	fmt.Printf("Chunks:          %d\n", chunks)
	fmt.Printf("Vectors:         %d\n", rt.Assistant.IndexedChunks())
	return nil
}
