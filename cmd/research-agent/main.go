package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mikeboe/research-agent/pkg/clients"
	"github.com/mikeboe/research-agent/pkg/config"
	"github.com/mikeboe/research-agent/pkg/database"
	"github.com/mikeboe/research-agent/pkg/embeddings"
	"github.com/mikeboe/research-agent/pkg/ingest"
	"github.com/mikeboe/research-agent/pkg/research"
	"github.com/mikeboe/research-agent/pkg/vectorstore"
)

var (
	question       string
	collectionName string
)

func main() {
	handler := slog.NewTextHandler(os.Stderr, nil)
	slog.SetDefault(slog.New(handler))

	// It's okay if .env doesn't exist, as long as env vars are set
	_ = godotenv.Load()

	cfg := config.Load()
	collectionName = cfg.CollectionName

	rootCmd := &cobra.Command{
		Use:   "research-agent",
		Short: "A terminal-based deep research agent",
		Long:  `research-agent answers questions about an indexed corpus by iterating through a plan-search-synthesize-reflect loop.`,
		Run: func(cmd *cobra.Command, args []string) {
			if !cmd.Flags().Changed("question") {
				reader := bufio.NewReader(os.Stdin)
				fmt.Print("Enter research question: ")
				input, _ := reader.ReadString('\n')
				question = strings.TrimSpace(input)
			}
			if question == "" {
				slog.Error("Question cannot be empty")
				os.Exit(1)
			}

			runResearch(cfg, question)
		},
	}

	rootCmd.Flags().StringVarP(&question, "question", "q", "", "The research question")
	rootCmd.PersistentFlags().StringVarP(&collectionName, "collection", "c", cfg.CollectionName, "The target vector DB collection name")

	rootCmd.AddCommand(newIngestCmd(cfg))

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}

func runResearch(cfg *config.Config, question string) {
	ctx := context.Background()

	db, store, embedder := mustConnect(ctx, cfg)
	defer db.Close()

	llmClient, err := clients.GoogleAi(ctx, cfg.GoogleApiKey, clients.ProModel)
	if err != nil {
		slog.Error("Failed to create LLM client", "error", err)
		os.Exit(1)
	}

	engine := research.NewEngine(research.Config{
		Model:               cfg.ReasoningModel,
		MaxIterations:       cfg.MaxIterations,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		MaxParallelQueries:  cfg.MaxParallelQueries,
		QueriesPerIteration: cfg.QueriesPerIteration,
		SearchK:             cfg.SearchK,
		MaxEvidenceChunks:   cfg.MaxEvidenceChunks,
		EvidenceMaxChars:    cfg.EvidenceSummaryMaxChars,
	}, clients.NewGoogleLLM(llmClient), embedder, store, slog.Default())

	engine.OnEvent = printEvent

	result := engine.Research(ctx, question, nil)

	fmt.Println()
	fmt.Println(result.Answer)
	fmt.Println()
	fmt.Printf("[%s after %d iteration(s), %d evidence passages, confidence %.2f]\n",
		result.Reason, result.Iterations, result.EvidenceCount, result.Confidence)
}

func printEvent(ev research.Event) {
	switch ev.Type {
	case research.EventIterationStart:
		fmt.Printf("\n--- Iteration %d ---\n", ev.Iteration)
	case research.EventSearchPlanned:
		fmt.Printf("Planned queries: %s\n", strings.Join(ev.Queries, "; "))
	case research.EventSearchComplete:
		fmt.Printf("Collected %d evidence passages so far\n", ev.Count)
	case research.EventReflectionComplete:
		fmt.Printf("Confidence: %.2f\n", ev.Confidence)
	case research.EventGenerating:
		fmt.Println("\nGenerating final answer...")
	}
}

func newIngestCmd(cfg *config.Config) *cobra.Command {
	var (
		files      []string
		url        string
		arxivQuery string
		arxivMax   int
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load documents into the research corpus",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			db, store, embedder := mustConnect(ctx, cfg)
			defer db.Close()

			ing := ingest.New(store, embedder, cfg.ChunkSize, cfg.ChunkOverlap, slog.Default())

			total := 0
			switch {
			case len(files) > 0:
				for _, res := range ing.IngestFiles(ctx, files) {
					if res.Err != nil {
						slog.Error("Ingestion failed", "path", res.Path, "error", res.Err)
						continue
					}
					total += res.Chunks
				}
			case url != "":
				chunks, err := ing.IngestURL(ctx, url)
				if err != nil {
					slog.Error("Ingestion failed", "url", url, "error", err)
					os.Exit(1)
				}
				total = chunks
			case arxivQuery != "":
				chunks, err := ing.IngestArxiv(ctx, arxivQuery, arxivMax)
				if err != nil {
					slog.Error("arXiv ingestion failed", "query", arxivQuery, "error", err)
					os.Exit(1)
				}
				total = chunks
			default:
				fmt.Println("Nothing to ingest: pass --file, --url, or --arxiv")
				return
			}

			fmt.Printf("Ingested %d chunks into collection %q\n", total, collectionName)
		},
	}

	cmd.Flags().StringSliceVarP(&files, "file", "f", nil, "File(s) to ingest")
	cmd.Flags().StringVarP(&url, "url", "u", "", "URL to ingest (PDF URLs go through OCR)")
	cmd.Flags().StringVar(&arxivQuery, "arxiv", "", "arXiv search query; matching papers are ingested")
	cmd.Flags().IntVar(&arxivMax, "arxiv-max", 5, "Maximum arXiv results to ingest")

	return cmd
}

func mustConnect(ctx context.Context, cfg *config.Config) (*database.PostgresDB, *vectorstore.PGVectorStore, *embeddings.GoogleEmbedder) {
	db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := db.EnsureVectorExtension(ctx); err != nil {
		slog.Error("Failed to ensure pgvector extension", "error", err)
		os.Exit(1)
	}
	if err := db.CreateEmbeddingsTable(ctx, collectionName, embeddings.DefaultDimensions); err != nil {
		slog.Error("Failed to create embeddings table", "error", err)
		os.Exit(1)
	}

	store, err := vectorstore.NewPGVectorStore(db.Pool, collectionName)
	if err != nil {
		slog.Error("Invalid collection name", "error", err)
		os.Exit(1)
	}

	embedder, err := embeddings.NewGoogleEmbedder(ctx, cfg.EmbeddingModel, cfg.GoogleApiKey)
	if err != nil {
		slog.Error("Failed to create embedder", "error", err)
		os.Exit(1)
	}

	return db, store, embedder
}
