package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/mikeboe/research-agent/pkg/chat"
	"github.com/mikeboe/research-agent/pkg/clients"
	"github.com/mikeboe/research-agent/pkg/config"
	"github.com/mikeboe/research-agent/pkg/database"
	"github.com/mikeboe/research-agent/pkg/embeddings"
	"github.com/mikeboe/research-agent/pkg/research"
	"github.com/mikeboe/research-agent/pkg/server"
	"github.com/mikeboe/research-agent/pkg/vectorstore"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()
	ctx := context.Background()

	db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}
	if err := db.EnsureVectorExtension(ctx); err != nil {
		log.Fatalf("Failed to ensure pgvector extension: %v", err)
	}
	if err := db.CreateEmbeddingsTable(ctx, cfg.CollectionName, embeddings.DefaultDimensions); err != nil {
		log.Fatalf("Failed to create embeddings table: %v", err)
	}

	store, err := vectorstore.NewPGVectorStore(db.Pool, cfg.CollectionName)
	if err != nil {
		log.Fatalf("Invalid collection name: %v", err)
	}

	embedder, err := embeddings.NewGoogleEmbedder(ctx, cfg.EmbeddingModel, cfg.GoogleApiKey)
	if err != nil {
		log.Fatalf("Failed to create embedder: %v", err)
	}

	llmClient, err := clients.GoogleAi(ctx, cfg.GoogleApiKey, clients.ProModel)
	if err != nil {
		log.Fatalf("Failed to create LLM client: %v", err)
	}

	researchCfg := research.Config{
		Model:               cfg.ReasoningModel,
		MaxIterations:       cfg.MaxIterations,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		MaxParallelQueries:  cfg.MaxParallelQueries,
		QueriesPerIteration: cfg.QueriesPerIteration,
		SearchK:             cfg.SearchK,
		MaxEvidenceChunks:   cfg.MaxEvidenceChunks,
		EvidenceMaxChars:    cfg.EvidenceSummaryMaxChars,
	}

	chatSvc, err := chat.NewService(ctx, db, cfg)
	if err != nil {
		log.Fatalf("Failed to init chat service: %v", err)
	}

	ragTools := chat.NewRagToolset(db, embedder, cfg)

	svc := server.NewService(db, researchCfg, clients.NewGoogleLLM(llmClient), embedder, store)
	handler := server.NewHandler(svc, chatSvc, ragTools)

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"}, // Allow all for dev
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Mcp-Session-Id"},
		ExposeHeaders:    []string{"Content-Length", "Mcp-Session-Id"},
		AllowCredentials: true,
	}))

	handler.RegisterRoutes(r)

	fmt.Printf("Server starting on port %s\n", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
