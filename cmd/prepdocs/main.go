package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"sectioner/internal/chunker"
	"sectioner/internal/config"
	"sectioner/internal/content"
	"sectioner/internal/index"
	"sectioner/internal/logger"
	"sectioner/internal/pipeline"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	// Environment variables provide the flag defaults so a configured shell
	// needs no flags at all.
	cfg := config.Load()

	root := &cobra.Command{
		Use:   "prepdocs",
		Short: "Section documents into the search index",
		Long: `Prepdocs splits text into bounded, overlapping sections aligned to
sentence boundaries and uploads them to the search index. Text can come
from local files or from Contentful.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().String("db-url", cfg.DBURL, "Postgres connection string")
	root.PersistentFlags().String("category", "", "Category stamped on every section")
	root.PersistentFlags().Int("max-section-length", cfg.MaxSectionLength, "Maximum section length in characters")
	root.PersistentFlags().Int("sentence-search-limit", cfg.SentenceSearchLimit, "How far past the window to look for a sentence ending")
	root.PersistentFlags().Int("section-overlap", cfg.SectionOverlap, "Characters shared by adjacent sections")
	root.PersistentFlags().Int("batch-size", cfg.UploadBatchSize, "Sections uploaded per batch")
	root.PersistentFlags().BoolP("verbose", "v", false, "Verbose logging")

	root.AddCommand(newFilesCmd())
	root.AddCommand(newContentfulCmd(cfg))

	return root
}

// runtime bundles what every subcommand needs.
type runtime struct {
	log      *slog.Logger
	cfg      chunker.Config
	idx      *index.PostgresIndex
	batch    int
	category string
}

func buildRuntime(cmd *cobra.Command) (*runtime, error) {
	dbURL, _ := cmd.Flags().GetString("db-url")
	category, _ := cmd.Flags().GetString("category")
	maxLen, _ := cmd.Flags().GetInt("max-section-length")
	searchLimit, _ := cmd.Flags().GetInt("sentence-search-limit")
	overlap, _ := cmd.Flags().GetInt("section-overlap")
	batch, _ := cmd.Flags().GetInt("batch-size")
	verbose, _ := cmd.Flags().GetBool("verbose")

	level := "info"
	if verbose {
		level = "debug"
	}
	log := logger.New(level, "text")

	cfg := chunker.DefaultConfig()
	cfg.MaxSectionLength = maxLen
	cfg.SentenceSearchLimit = searchLimit
	cfg.SectionOverlap = overlap
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if dbURL == "" {
		return nil, fmt.Errorf("--db-url or DB_URL is required")
	}
	idx, err := index.NewPostgres(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Postgres: %w", err)
	}

	return &runtime{log: log, cfg: cfg, idx: idx, batch: batch, category: category}, nil
}

func newFilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "files [glob...]",
		Short: "Section local text or PDF files into the search index",
		Long:  "Section local .txt and .pdf files into the search index. Each argument is a glob pattern.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runFiles,
	}
}

func runFiles(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.idx.Close()

	p := pipeline.New(rt.log, rt.cfg, nil, rt.idx, rt.batch)

	matched, failed := 0, 0
	for _, pattern := range args {
		names, err := filepath.Glob(pattern)
		if err != nil {
			return fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		for _, name := range names {
			matched++
			rt.log.Info("processing file", "file", name)

			raw, err := os.ReadFile(name)
			if err != nil {
				rt.log.Error("failed to read file", "file", name, "err", err)
				failed++
				continue
			}
			text := content.ExtractText(rt.log, name, raw)

			stats, err := p.Upload(cmd.Context(), pipeline.UploadPayload{
				Text:       text,
				Category:   rt.category,
				SourceFile: filepath.Base(name),
			})
			if err != nil {
				rt.log.Error("failed to index file", "file", name, "err", err)
				failed++
				continue
			}
			rt.log.Info("indexed file", "file", name, "sections", stats.Sections, "succeeded", stats.Succeeded)
		}
	}

	if matched == 0 {
		return fmt.Errorf("no files matched")
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, matched)
	}
	return nil
}

func newContentfulCmd(cfg config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contentful",
		Short: "Pull a text field from Contentful and section it into the search index",
		RunE:  runContentful,
	}
	cmd.Flags().String("space", cfg.ContentfulSpace, "Contentful space id")
	cmd.Flags().String("environment", cfg.ContentfulEnvironment, "Contentful environment")
	cmd.Flags().String("access-token", cfg.ContentfulAccessToken, "Contentful delivery API token")
	cmd.Flags().String("content-url", cfg.ContentfulURL, "Contentful delivery API base URL")
	cmd.Flags().String("content-type", cfg.ContentType, "Content type to pull entries for")
	cmd.Flags().String("field", cfg.ContentField, "Field holding the text")
	cmd.Flags().String("sourcefile", "", "Source name stamped on every section (defaults to the content type)")

	return cmd
}

func runContentful(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.idx.Close()

	space, _ := cmd.Flags().GetString("space")
	environment, _ := cmd.Flags().GetString("environment")
	token, _ := cmd.Flags().GetString("access-token")
	baseURL, _ := cmd.Flags().GetString("content-url")
	contentType, _ := cmd.Flags().GetString("content-type")
	field, _ := cmd.Flags().GetString("field")
	sourceFile, _ := cmd.Flags().GetString("sourcefile")

	if space == "" || token == "" {
		return fmt.Errorf("--space and --access-token are required")
	}
	if contentType == "" || field == "" {
		return fmt.Errorf("--content-type and --field are required")
	}
	if sourceFile == "" {
		sourceFile = contentType
	}

	fetcher := content.NewContentfulClient(baseURL, space, environment, token)
	p := pipeline.New(rt.log, rt.cfg, fetcher, rt.idx, rt.batch)

	stats, err := p.Ingest(cmd.Context(), pipeline.IngestPayload{
		ContentType: contentType,
		Field:       field,
		Category:    rt.category,
		SourceFile:  sourceFile,
	})
	if err != nil {
		return err
	}
	rt.log.Info("ingest complete", "sections", stats.Sections, "succeeded", stats.Succeeded, "batches", stats.Batches)
	return nil
}
