package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

type pdfPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

type ocrResponse struct {
	Pages []pdfPage `json:"pages"`
}

// ScrapePDF extracts the contents of a hosted PDF as markdown text using
// the Mistral OCR API. Requires MISTRAL_API_KEY.
func ScrapePDF(ctx context.Context, url string) (string, error) {
	url = strings.Replace(url, "http://", "https://", 1)

	apiKey := os.Getenv("MISTRAL_API_KEY")
	if apiKey == "" {
		return "", fmt.Errorf("MISTRAL_API_KEY is not set")
	}

	reqBody := map[string]interface{}{
		"model": "mistral-ocr-latest",
		"document": map[string]string{
			"type":         "document_url",
			"document_url": url,
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.mistral.ai/v1/ocr", bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make API request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API request failed with status: %s, body: %s", resp.Status, string(body))
	}

	var ocr ocrResponse
	if err := json.Unmarshal(body, &ocr); err != nil {
		return "", fmt.Errorf("failed to unmarshal OCR response: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("-----\n")
	sb.WriteString(fmt.Sprintf("# URL: %s\n", url))
	sb.WriteString("-----\n\n")
	for _, page := range ocr.Pages {
		sb.WriteString(fmt.Sprintf("- Page %d -\n", page.Index))
		sb.WriteString(page.Markdown)
		sb.WriteString("\n\n")
	}
	return sb.String(), nil
}
