// Package main provides the ragpipe CLI for document ingestion,
// retrieval, and summarization.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/docstack/ragpipe/internal/config"
	"github.com/docstack/ragpipe/internal/embedding"
	"github.com/docstack/ragpipe/internal/extract"
	"github.com/docstack/ragpipe/internal/ingest"
	"github.com/docstack/ragpipe/internal/llm"
	"github.com/docstack/ragpipe/internal/loader"
	"github.com/docstack/ragpipe/internal/rag"
	"github.com/docstack/ragpipe/internal/registry"
	"github.com/docstack/ragpipe/internal/splitter"
	"github.com/docstack/ragpipe/internal/summarize"
	"github.com/docstack/ragpipe/internal/vectorstore"
)

var rootCmd = &cobra.Command{
	Use:   "ragpipe",
	Short: "Document retrieval pipeline",
	Long: `ragpipe ingests documents into a Qdrant vector index and answers
questions over them with retrieval-augmented generation.

Environment variables:
  OPENAI_API_KEY OpenAI API key (required)
  QDRANT_HOST    Qdrant hostname (default: localhost)
  QDRANT_PORT    Qdrant gRPC port (default: 6334)
  NAMESPACE      Default index namespace`,
}

var (
	flagNamespace string
	flagTopK      int
)

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVarP(&flagNamespace, "namespace", "n", "", "index namespace (overrides NAMESPACE)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles the constructed components one command run needs.
type app struct {
	cfg       *config.Config
	store     *vectorstore.Store
	embedder  *embedding.Service
	chat      *llm.Client
	pipeline  *rag.Pipeline
	ingestor  *ingest.Service
	summarize *summarize.Service
	chain     *summarize.Chain
	extractor *extract.Extractor
	registry  registry.Registry
}

// buildApp constructs the full component stack from the environment.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	logger := slog.Default()

	store, err := vectorstore.New(cfg.QdrantHost, cfg.QdrantPort, cfg.Dimension, logger)
	if err != nil {
		return nil, fmt.Errorf("connecting to Qdrant: %w", err)
	}
	if err := store.EnsureCollection(ctx); err != nil {
		return nil, fmt.Errorf("ensuring collection: %w", err)
	}

	embedClient, err := embedding.NewClient(cfg.OpenAIAPIKey, cfg.EmbeddingModel, cfg.RateLimitPerMinute)
	if err != nil {
		return nil, err
	}
	cache, err := embedding.NewCache(cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	if cfg.CachePath != "" {
		if n, err := cache.Load(cfg.CachePath); err == nil {
			logger.Info("loaded embedding cache", "entries", n)
		}
	}
	embedder := embedding.NewService(
		embedding.NewEmbedder(embedClient, cfg.EmbedBatchSize, cfg.EmbedConcurrency),
		cache, logger)

	chat := llm.NewClient(cfg.OpenAIAPIKey, cfg.ChatModel, cfg.RateLimitPerMinute)
	reg := registry.NewMemory()
	chain := summarize.NewChain(chat, logger)

	return &app{
		cfg:       cfg,
		store:     store,
		embedder:  embedder,
		chat:      chat,
		pipeline:  rag.New(embedder, store, chat, logger),
		ingestor:  ingest.New(loader.New(logger), splitter.NewAdaptive(cfg.ChunkSize, cfg.ChunkOverlap), embedder, store, reg, logger),
		summarize: summarize.NewService(chain, reg, cfg.WorkerCount, logger),
		chain:     chain,
		extractor: extract.New(chat, logger),
		registry:  reg,
	}, nil
}

func (a *app) close() {
	if a.cfg.CachePath != "" {
		if err := a.embedder.Cache().Save(a.cfg.CachePath); err != nil {
			slog.Default().Warn("saving embedding cache", "error", err)
		}
	}
	_ = a.store.Close()
}

func (a *app) namespace() string {
	if flagNamespace != "" {
		return flagNamespace
	}
	return a.cfg.Namespace
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Ingest a document into the index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		path := args[0]
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		declaredType := strings.TrimPrefix(filepath.Ext(path), ".")

		result, err := a.ingestor.Process(ctx, content, filepath.Base(path), declaredType, a.namespace())
		if err != nil {
			return err
		}
		fmt.Printf("Ingested %s\n", path)
		fmt.Printf("  Document ID: %s\n", result.DocumentID)
		fmt.Printf("  Chunks: %d (upserted %d)\n", result.Chunks, result.Upserted)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Semantic search without answer generation",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		results, err := a.pipeline.Search(ctx, strings.Join(args, " "), flagTopK, a.namespace(), nil)
		if err != nil {
			return err
		}
		printSources(results)
		return nil
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question over indexed documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		withSources, _ := cmd.Flags().GetBool("sources")
		answer, err := a.pipeline.Answer(ctx, rag.AskRequest{
			Question:       strings.Join(args, " "),
			Namespace:      a.namespace(),
			TopK:           flagTopK,
			IncludeSources: withSources,
		})
		if err != nil {
			if answer != nil && len(answer.Sources) > 0 {
				fmt.Println("Answer generation failed; retrieved passages:")
				printSources(answer.Sources)
			}
			return err
		}
		fmt.Println(answer.Text)
		fmt.Println()
		fmt.Printf("Sources (%d), %d tokens:\n", len(answer.Sources), answer.Usage.TotalTokens)
		printSources(answer.Sources)
		return nil
	},
}

var similarCmd = &cobra.Command{
	Use:   "similar <document-id>",
	Short: "Find documents similar to an indexed document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		results, err := a.pipeline.FindSimilar(ctx, args[0], flagTopK, a.namespace())
		if err != nil {
			return err
		}
		printSources(results)
		return nil
	},
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize <file>",
	Short: "Summarize a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		length, _ := cmd.Flags().GetString("length")
		docType, _ := cmd.Flags().GetString("type")

		segments, err := loader.New(nil).LoadFile(args[0])
		if err != nil {
			return err
		}
		texts := make([]string, len(segments))
		for i, seg := range segments {
			texts[i] = seg.Text
		}

		result, err := a.chain.Summarize(ctx, strings.Join(texts, "\n\n"),
			summarize.Length(length), summarize.DocType(docType))
		if err != nil {
			return err
		}
		fmt.Println(result.Summary)
		fmt.Println()
		fmt.Printf("(%s, %d sections, %d tokens)\n", result.Method, result.Sections, result.Usage.TotalTokens)
		return nil
	},
}

var summarizeBatchCmd = &cobra.Command{
	Use:   "summarize-batch <file>...",
	Short: "Summarize several documents as one job",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		length, _ := cmd.Flags().GetString("length")
		docType, _ := cmd.Flags().GetString("type")

		ld := loader.New(nil)
		ids := make([]string, 0, len(args))
		names := make(map[string]string)
		for _, path := range args {
			segments, err := ld.LoadFile(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			texts := make([]string, len(segments))
			for i, seg := range segments {
				texts[i] = seg.Text
			}
			id := filepath.Base(path)
			if err := a.registry.Put(ctx, registry.Document{
				ID:       id,
				Filename: filepath.Base(path),
				Status:   registry.StatusCompleted,
				Text:     strings.Join(texts, "\n\n"),
			}); err != nil {
				return err
			}
			ids = append(ids, id)
			names[id] = path
		}

		jobID, err := a.summarize.BatchSummarize(ctx, ids,
			summarize.Length(length), summarize.DocType(docType))
		if err != nil {
			return err
		}

		job, err := waitForJob(ctx, a.summarize, jobID)
		if err != nil {
			return err
		}
		fmt.Printf("Job %s: %s (%d/%d)\n", job.ID, job.Status, job.Completed, job.Total)
		for _, outcome := range job.Outcomes {
			fmt.Println()
			fmt.Printf("== %s ==\n", names[outcome.DocumentID])
			if outcome.Error != "" {
				fmt.Printf("failed: %s\n", outcome.Error)
				continue
			}
			fmt.Println(outcome.Summary)
		}
		return nil
	},
}

func waitForJob(ctx context.Context, svc *summarize.Service, jobID string) (summarize.Job, error) {
	for {
		job, err := svc.JobStatus(jobID)
		if err != nil {
			return summarize.Job{}, err
		}
		if job.Status == summarize.JobCompleted || job.Status == summarize.JobFailed {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return summarize.Job{}, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Extract structured meeting notes from a transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		content, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		notes, err := a.extractor.MeetingNotes(ctx, string(content))
		if err != nil {
			return err
		}

		fmt.Println("Decisions:")
		for _, d := range notes.Decisions {
			fmt.Printf("  - %s\n", d.Decision)
		}
		fmt.Println("Action items:")
		for _, item := range notes.ActionItems {
			line := item.Task
			if item.Owner != "" {
				line += " (" + item.Owner
				if item.DueDate != "" {
					line += ", due " + item.DueDate
				}
				line += ")"
			}
			fmt.Printf("  - %s\n", line)
		}
		fmt.Println("Key points:")
		for _, p := range notes.KeyPoints {
			fmt.Printf("  - %s\n", p)
		}
		if len(notes.Participants) > 0 {
			fmt.Printf("Participants: %s\n", strings.Join(notes.Participants, ", "))
		}
		if len(notes.NextSteps) > 0 {
			fmt.Println("Next steps:")
			for _, s := range notes.NextSteps {
				fmt.Printf("  - %s\n", s)
			}
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <document-id>",
	Short: "Delete a document and its index entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.store.DeleteByFilter(ctx, map[string]string{"document_id": args[0]}, a.namespace()); err != nil {
			return err
		}
		fmt.Printf("Deleted index entries for %s\n", args[0])
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		count, err := a.store.Count(ctx, a.namespace())
		if err != nil {
			return err
		}
		ns := a.namespace()
		if ns == "" {
			ns = "(default)"
		}
		fmt.Printf("Namespace: %s\n", ns)
		fmt.Printf("Indexed chunks: %d\n", count)
		return nil
	},
}

func printSources(sources []rag.Source) {
	for i, s := range sources {
		fmt.Printf("%d. %s (score %.4f)\n", i+1, s.ID, s.Score)
		if text := s.Text; text != "" {
			if len(text) > 200 {
				text = text[:200] + "..."
			}
			fmt.Printf("   %s\n", text)
		}
	}
}

func init() {
	askCmd.Flags().Bool("sources", false, "ask the model to cite source ids")
	for _, c := range []*cobra.Command{summarizeCmd, summarizeBatchCmd} {
		c.Flags().String("length", string(summarize.LengthStandard), "summary length: brief, standard, detailed")
		c.Flags().String("type", string(summarize.DocTypeGeneral), "document type: general, technical")
	}

	for _, c := range []*cobra.Command{searchCmd, askCmd, similarCmd} {
		c.Flags().IntVarP(&flagTopK, "top-k", "k", rag.DefaultTopK, "number of passages to retrieve")
	}

	rootCmd.AddCommand(ingestCmd, searchCmd, askCmd, similarCmd, summarizeCmd, summarizeBatchCmd, extractCmd, deleteCmd, statsCmd)
}
