package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func rssDocument(itemCount int) string {
	var items strings.Builder
	for i := 1; i <= itemCount; i++ {
		items.WriteString(fmt.Sprintf(`
		<item>
			<title>Item %d</title>
			<link>https://example.com/items/%d?utm_source=rss</link>
			<guid>item-%d</guid>
			<description>Description %d</description>
		</item>`, i, i, i, i))
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
	<channel>
		<title>Test Feed</title>
		<link>https://example.com</link>
		<description>Test</description>%s
	</channel>
</rss>`, items.String())
}

func newTestFetcher(handler http.Handler) (*Fetcher, *httptest.Server) {
	server := httptest.NewServer(handler)
	fetcher := NewFetcherWithClient(server.Client(), "oppradar-test/1.0")
	return fetcher, server
}

func TestFetcherNormalizesItems(t *testing.T) {
	fetcher, server := newTestFetcher(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssDocument(2))
	}))
	defer server.Close()

	result, err := fetcher.Fetch(context.Background(), "feed-1", server.URL, 0, 0)
	if err != nil {
		t.Fatalf("Failed to fetch: %v", err)
	}

	if len(result.Candidates) != 2 {
		t.Fatalf("Expected 2 candidates, got %d", len(result.Candidates))
	}

	first := result.Candidates[0]
	if first.SourceFeedID != "feed-1" {
		t.Errorf("Expected source feed id 'feed-1', got %q", first.SourceFeedID)
	}
	if first.Title != "Item 1" {
		t.Errorf("Expected title 'Item 1', got %q", first.Title)
	}
	if first.IdentityKey != "https://example.com/items/1" {
		t.Errorf("Expected canonicalized identity key, got %q", first.IdentityKey)
	}
	if first.RawContent != "Description 1" {
		t.Errorf("Expected description as raw content, got %q", first.RawContent)
	}
}

func TestFetcherOffsetWindowing(t *testing.T) {
	fetcher, server := newTestFetcher(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssDocument(10))
	}))
	defer server.Close()

	// First run consumes items 1-4
	result, err := fetcher.Fetch(context.Background(), "feed-1", server.URL, 0, 4)
	if err != nil {
		t.Fatalf("Failed to fetch: %v", err)
	}
	if len(result.Candidates) != 4 {
		t.Fatalf("Expected 4 candidates, got %d", len(result.Candidates))
	}
	if result.NextOffset != 4 {
		t.Errorf("Expected next offset 4, got %d", result.NextOffset)
	}
	if result.TotalItems != 10 {
		t.Errorf("Expected 10 total items, got %d", result.TotalItems)
	}

	// Second run continues where the first left off
	result, err = fetcher.Fetch(context.Background(), "feed-1", server.URL, result.NextOffset, 4)
	if err != nil {
		t.Fatalf("Failed to fetch: %v", err)
	}
	if result.Candidates[0].Title != "Item 5" {
		t.Errorf("Expected window to start at item 5, got %q", result.Candidates[0].Title)
	}
	if result.NextOffset != 8 {
		t.Errorf("Expected next offset 8, got %d", result.NextOffset)
	}

	// Third run drains the backlog and wraps the offset
	result, err = fetcher.Fetch(context.Background(), "feed-1", server.URL, result.NextOffset, 4)
	if err != nil {
		t.Fatalf("Failed to fetch: %v", err)
	}
	if len(result.Candidates) != 2 {
		t.Errorf("Expected 2 remaining candidates, got %d", len(result.Candidates))
	}
	if result.NextOffset != 0 {
		t.Errorf("Expected offset to wrap to 0, got %d", result.NextOffset)
	}
}

func TestFetcherOffsetBeyondBacklog(t *testing.T) {
	fetcher, server := newTestFetcher(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssDocument(3))
	}))
	defer server.Close()

	// Feed shrank since the offset was recorded; window restarts from the top
	result, err := fetcher.Fetch(context.Background(), "feed-1", server.URL, 50, 2)
	if err != nil {
		t.Fatalf("Failed to fetch: %v", err)
	}
	if len(result.Candidates) != 2 {
		t.Fatalf("Expected 2 candidates after reset, got %d", len(result.Candidates))
	}
	if result.Candidates[0].Title != "Item 1" {
		t.Errorf("Expected restart from item 1, got %q", result.Candidates[0].Title)
	}
	if result.StartOffset != 0 {
		t.Errorf("Expected effective start offset 0 after reset, got %d", result.StartOffset)
	}
}

func TestFetcherTransportErrors(t *testing.T) {
	fetcher, server := newTestFetcher(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/status":
			w.WriteHeader(http.StatusServiceUnavailable)
		case "/garbage":
			fmt.Fprint(w, "this is not a feed")
		}
	}))
	defer server.Close()

	if _, err := fetcher.Fetch(context.Background(), "feed-1", server.URL+"/status", 0, 0); err == nil {
		t.Error("Expected error on non-200 response")
	}
	if _, err := fetcher.Fetch(context.Background(), "feed-1", server.URL+"/garbage", 0, 0); err == nil {
		t.Error("Expected error on unparseable body")
	}
}

func TestFetcherHonorsContext(t *testing.T) {
	fetcher, server := newTestFetcher(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		fmt.Fprint(w, rssDocument(1))
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := fetcher.Fetch(ctx, "feed-1", server.URL, 0, 0); err == nil {
		t.Error("Expected error when context deadline is exceeded")
	}
}
