package ingest

import "testing"

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <title>  Attention Is All You Need </title>
    <summary> We propose the Transformer. </summary>
    <published>2017-06-12T00:00:00Z</published>
    <link href="http://arxiv.org/abs/1706.03762" type="text/html"/>
    <link href="http://arxiv.org/pdf/1706.03762" type="application/pdf"/>
  </entry>
  <entry>
    <title>No PDF Here</title>
    <summary>Abstract only.</summary>
    <published>2020-01-01T00:00:00Z</published>
    <link href="http://arxiv.org/abs/2001.00001" type="text/html"/>
  </entry>
</feed>`

func TestParseArxivFeed(t *testing.T) {
	papers, err := parseArxivFeed([]byte(sampleFeed))
	if err != nil {
		t.Fatalf("parseArxivFeed() error = %v", err)
	}

	if len(papers) != 2 {
		t.Fatalf("parseArxivFeed() returned %d papers, want 2", len(papers))
	}

	if papers[0].Title != "Attention Is All You Need" {
		t.Errorf("title = %q, want trimmed title", papers[0].Title)
	}
	if papers[0].PDFLink != "http://arxiv.org/pdf/1706.03762" {
		t.Errorf("pdf link = %q", papers[0].PDFLink)
	}
	if papers[1].PDFLink != "" {
		t.Errorf("expected empty pdf link for entry without one, got %q", papers[1].PDFLink)
	}
}

func TestParseArxivFeedInvalidXML(t *testing.T) {
	if _, err := parseArxivFeed([]byte("not xml at all <")); err == nil {
		t.Error("parseArxivFeed() expected error for invalid XML")
	}
}

func TestParseArxivFeedEmpty(t *testing.T) {
	papers, err := parseArxivFeed([]byte(`<feed xmlns="http://www.w3.org/2005/Atom"></feed>`))
	if err != nil {
		t.Fatalf("parseArxivFeed() error = %v", err)
	}
	if len(papers) != 0 {
		t.Errorf("expected no papers, got %d", len(papers))
	}
}
