package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/mikeboe/research-agent/pkg/embeddings"
	"github.com/mikeboe/research-agent/pkg/vectorstore"
)

// Ingestor loads corpus documents into the vector store: fetch or read,
// chunk, embed, insert.
type Ingestor struct {
	store    *vectorstore.PGVectorStore
	embedder *embeddings.GoogleEmbedder
	splitter textsplitter.TextSplitter
	logger   *slog.Logger

	// MaxConcurrent bounds parallel document ingestion in IngestFiles.
	MaxConcurrent int
}

func New(store *vectorstore.PGVectorStore, embedder *embeddings.GoogleEmbedder, chunkSize, chunkOverlap int, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		store: store,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
		embedder:      embedder,
		logger:        logger,
		MaxConcurrent: 3,
	}
}

// IngestText chunks, embeds, and stores a single text. Returns the number
// of chunks written.
func (in *Ingestor) IngestText(ctx context.Context, text, source string, metadata map[string]interface{}) (int, error) {
	chunks, err := in.splitter.SplitText(text)
	if err != nil {
		return 0, fmt.Errorf("failed to split text: %w", err)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	vecs, err := in.embedder.EmbedTexts(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("failed to embed chunks: %w", err)
	}

	docs := make([]vectorstore.Document, 0, len(chunks))
	for i, chunk := range chunks {
		meta := map[string]interface{}{
			"source":      source,
			"chunk_index": i,
			"chunk_count": len(chunks),
		}
		for k, v := range metadata {
			meta[k] = v
		}
		docs = append(docs, vectorstore.Document{
			Content:   chunk,
			Metadata:  meta,
			Embedding: vecs[i],
		})
	}

	if err := in.store.AddDocuments(ctx, docs); err != nil {
		return 0, fmt.Errorf("failed to store documents: %w", err)
	}

	in.logger.Info("Ingested document", "source", source, "chunks", len(chunks))
	return len(chunks), nil
}

// IngestFile reads a local text file and ingests its contents. The OCR
// scraper only accepts hosted documents, so local PDFs are rejected.
func (in *Ingestor) IngestFile(ctx context.Context, path string) (int, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return 0, fmt.Errorf("local PDF ingestion is not supported; host the file and use IngestURL")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read file: %w", err)
	}

	return in.IngestText(ctx, string(data), filepath.Base(path), map[string]interface{}{
		"path": path,
	})
}

// IngestURL fetches a URL and ingests its contents. PDF URLs are extracted
// to markdown via the OCR API first.
func (in *Ingestor) IngestURL(ctx context.Context, rawURL string) (int, error) {
	if strings.HasSuffix(strings.ToLower(rawURL), ".pdf") {
		text, err := ScrapePDF(ctx, rawURL)
		if err != nil {
			return 0, fmt.Errorf("failed to scrape PDF: %w", err)
		}
		return in.IngestText(ctx, text, rawURL, map[string]interface{}{"format": "pdf"})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fetch failed with status: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read response body: %w", err)
	}

	return in.IngestText(ctx, string(body), rawURL, nil)
}

// FileResult reports the outcome of one file in a batch ingestion.
type FileResult struct {
	Path   string
	Chunks int
	Err    error
}

// IngestFiles ingests multiple files concurrently, bounded by
// MaxConcurrent. Results are returned in input order; per-file failures
// do not abort the batch.
func (in *Ingestor) IngestFiles(ctx context.Context, paths []string) []FileResult {
	results := make([]FileResult, len(paths))

	var wg sync.WaitGroup
	sem := make(chan struct{}, in.MaxConcurrent)

	for i, path := range paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			chunks, err := in.IngestFile(ctx, path)
			results[i] = FileResult{Path: path, Chunks: chunks, Err: err}
			if err != nil {
				in.logger.Error("Failed to ingest file", "path", path, "error", err)
			}
		}(i, path)
	}

	wg.Wait()
	return results
}
