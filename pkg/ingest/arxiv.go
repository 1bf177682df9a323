package ingest

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// ArxivPaper is one result from an arXiv search.
type ArxivPaper struct {
	Title     string
	Summary   string
	Published string
	PDFLink   string
}

type arxivEntry struct {
	Title     string      `xml:"title"`
	Summary   string      `xml:"summary"`
	Published string      `xml:"published"`
	Link      []arxivLink `xml:"link"`
}

type arxivLink struct {
	Href string `xml:"href,attr"`
	Type string `xml:"type,attr"`
}

type arxivFeed struct {
	XMLName xml.Name     `xml:"feed"`
	Entry   []arxivEntry `xml:"entry"`
}

// SearchArxiv queries the arXiv API. The returned papers carry PDF links
// suitable for IngestURL.
func SearchArxiv(ctx context.Context, query string, maxResults int) ([]ArxivPaper, error) {
	if maxResults <= 0 {
		maxResults = 5
	}

	params := url.Values{}
	params.Add("search_query", query)
	params.Add("max_results", strconv.Itoa(maxResults))
	params.Add("start", "0")

	apiURL := "https://export.arxiv.org/api/query?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API returned non-200 status code: %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return parseArxivFeed(body)
}

func parseArxivFeed(body []byte) ([]ArxivPaper, error) {
	var feed arxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal XML: %w", err)
	}

	papers := make([]ArxivPaper, 0, len(feed.Entry))
	for _, entry := range feed.Entry {
		paper := ArxivPaper{
			Title:     strings.TrimSpace(entry.Title),
			Summary:   strings.TrimSpace(entry.Summary),
			Published: entry.Published,
		}
		for _, link := range entry.Link {
			if link.Type == "application/pdf" {
				paper.PDFLink = link.Href
				break
			}
		}
		papers = append(papers, paper)
	}

	return papers, nil
}

// IngestArxiv searches arXiv and ingests the PDF of every result that has
// one. Returns the total number of chunks written.
func (in *Ingestor) IngestArxiv(ctx context.Context, query string, maxResults int) (int, error) {
	papers, err := SearchArxiv(ctx, query, maxResults)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, paper := range papers {
		if paper.PDFLink == "" {
			continue
		}
		// arXiv PDF links have no .pdf suffix, so go through the
		// scraper directly rather than IngestURL's sniffing.
		text, err := ScrapePDF(ctx, paper.PDFLink)
		if err != nil {
			in.logger.Error("Failed to scrape arXiv paper", "title", paper.Title, "error", err)
			continue
		}
		chunks, err := in.IngestText(ctx, text, paper.PDFLink, map[string]interface{}{
			"title":     paper.Title,
			"published": paper.Published,
			"format":    "pdf",
		})
		if err != nil {
			in.logger.Error("Failed to ingest arXiv paper", "title", paper.Title, "error", err)
			continue
		}
		total += chunks
	}
	return total, nil
}
