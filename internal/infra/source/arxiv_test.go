package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const arxivFeedFixture = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>ArXiv Query Results</title>
  <entry>
    <id>http://arxiv.org/abs/2401.01234v2</id>
    <updated>2024-01-09T12:00:00Z</updated>
    <published>2024-01-03T08:00:00Z</published>
    <title>Retry Budgets for
  Distributed Fetchers</title>
    <summary>We study exponential backoff
  under partial failure.</summary>
    <author><name>Ada One</name></author>
    <author><name>Ben Two</name></author>
    <author><name>Cai Three</name></author>
    <author><name>Dee Four</name></author>
    <link href="http://arxiv.org/abs/2401.01234v2" rel="alternate" type="text/html"/>
    <category term="cs.DC" scheme="http://arxiv.org/schemas/atom"/>
  </entry>
</feed>`

func TestArxiv_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("search_query")
		if query != "cat:cs.AI OR cat:cs.LG" {
			t.Errorf("unexpected search_query %q", query)
		}
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(arxivFeedFixture))
	}))
	defer server.Close()

	a := NewArxiv(Config{Name: "arxiv"}, HTTPConfig{}, nil)
	a.apiBase = server.URL

	items, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 paper, got %d", len(items))
	}

	paper := items[0]
	if paper.Title != "Retry Budgets for Distributed Fetchers" {
		t.Errorf("expected collapsed title, got %q", paper.Title)
	}
	if paper.Author != "Ada One, Ben Two, Cai Three, et al." {
		t.Errorf("unexpected author line %q", paper.Author)
	}
	if paper.URL != "http://arxiv.org/abs/2401.01234v2" {
		t.Errorf("unexpected url %q", paper.URL)
	}
	if len(paper.Keywords) != 1 || paper.Keywords[0] != "cs.DC" {
		t.Errorf("expected keywords [cs.DC], got %v", paper.Keywords)
	}
}

func TestArxiv_EmptyFeedIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(`<?xml version="1.0"?><feed xmlns="http://www.w3.org/2005/Atom"><title>empty</title></feed>`))
	}))
	defer server.Close()

	a := NewArxiv(Config{Name: "arxiv"}, HTTPConfig{}, nil)
	a.apiBase = server.URL

	if _, err := a.Fetch(context.Background()); err == nil {
		t.Fatal("expected error for empty feed")
	}
}
