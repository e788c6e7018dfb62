package main

import (
	"fmt"
	"io"

	"leannerd/internal/embedding"
	"leannerd/internal/retrieval"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	indexInput   string
	indexNoEmbed bool
)

// indexCmd builds the theorem index from a JSONL dump
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the theorem index from a JSONL corpus",
	Long: `Loads theorem records from a JSONL file (one record per line with
name, signature, informal and kind fields), embeds them with the
configured embedding backend, and upserts them into the SQLite store.

Re-running on the same corpus updates records in place; records are
keyed by name.

Example:
  leannerd index --input mathlib_theorems.jsonl`,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVarP(&indexInput, "input", "i", "", "JSONL corpus file (required)")
	indexCmd.Flags().BoolVar(&indexNoEmbed, "no-embed", false, "skip embeddings, keyword search only")
	_ = indexCmd.MarkFlagRequired("input")
}

func runIndex(cmd *cobra.Command, args []string) error {
	records, err := retrieval.LoadJSONL(indexInput)
	if err != nil {
		return err
	}
	logger.Info("loaded corpus", zap.Int("records", len(records)), zap.String("input", indexInput))

	var engine embedding.Engine
	if !indexNoEmbed {
		engine, err = embedding.New(embedding.Config{
			Provider:       cfg.Embedding.Provider,
			OllamaEndpoint: cfg.Embedding.OllamaEndpoint,
			OllamaModel:    cfg.Embedding.OllamaModel,
			GenAIAPIKey:    cfg.Embedding.GenAIAPIKey,
			GenAIModel:     cfg.Embedding.GenAIModel,
			Purpose:        embedding.PurposeDocument,
		})
		if err != nil {
			return fmt.Errorf("embedding engine unavailable (use --no-embed for keyword-only index): %w", err)
		}
		if c, ok := engine.(io.Closer); ok {
			defer c.Close()
		}
	}

	store, err := retrieval.OpenStore(cfg.Retrieval.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := retrieval.BuildIndex(cmd.Context(), store, engine, records); err != nil {
		return err
	}

	count, err := store.Count(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Indexed %d records (%d total in %s)\n", len(records), count, cfg.Retrieval.DBPath)
	return nil
}
