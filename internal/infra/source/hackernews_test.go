package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHackerNews_Fetch(t *testing.T) {
	stories := map[string]map[string]any{
		"/item/101.json": {
			"id":          float64(101),
			"title":       "Show HN: A tiny database",
			"url":         "https://example.com/tinydb",
			"by":          "alice",
			"score":       float64(321),
			"descendants": float64(87),
			"type":        "story",
		},
		"/item/102.json": {
			"id":    float64(102),
			"title": "Ask HN: How do you test retries?",
			"by":    "bob",
			"score": float64(54),
			"type":  "story",
		},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/topstories.json" {
			_ = json.NewEncoder(w).Encode([]int64{101, 102, 103})
			return
		}
		story, ok := stories[r.URL.Path]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(story)
	}))
	defer server.Close()

	hn := NewHackerNews(Config{Name: "hackernews", Limit: 2}, HTTPConfig{}, nil)
	hn.apiBase = server.URL

	items, err := hn.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	first := items[0]
	if first.Title != "Show HN: A tiny database" {
		t.Errorf("expected story title, got %q", first.Title)
	}
	if first.URL != "https://example.com/tinydb" {
		t.Errorf("expected external url, got %q", first.URL)
	}
	if first.Author != "alice" {
		t.Errorf("expected author alice, got %q", first.Author)
	}
	if first.HotScore != 321 {
		t.Errorf("expected hot score 321, got %v", first.HotScore)
	}
	if first.Category != "tech" {
		t.Errorf("expected default category tech, got %q", first.Category)
	}

	// Story without an external url falls back to the comments page.
	second := items[1]
	if !strings.Contains(second.URL, "news.ycombinator.com/item?id=102") {
		t.Errorf("expected comments page fallback, got %q", second.URL)
	}
}

func TestHackerNews_FetchTopStoriesError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "over capacity", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	hn := NewHackerNews(Config{Name: "hackernews"}, HTTPConfig{}, nil)
	hn.apiBase = server.URL

	if _, err := hn.Fetch(context.Background()); err == nil {
		t.Fatal("expected error when story list is unavailable")
	}
}

func TestHackerNews_AllStoriesDead(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/topstories.json" {
			_ = json.NewEncoder(w).Encode([]int64{201, 202})
			return
		}
		// Deleted stories come back as JSON null.
		_, _ = w.Write([]byte("null"))
	}))
	defer server.Close()

	hn := NewHackerNews(Config{Name: "hackernews"}, HTTPConfig{}, nil)
	hn.apiBase = server.URL

	if _, err := hn.Fetch(context.Background()); err == nil {
		t.Fatal("expected error when every story is dead")
	}
}
