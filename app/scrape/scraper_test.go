package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func longParagraph(n int) string {
	return strings.Repeat(fmt.Sprintf("Sentence number %d about a giveaway with a deadline and a prize. ", n), 4)
}

func newTestScraper(handler http.Handler) (*Scraper, *httptest.Server) {
	server := httptest.NewServer(handler)
	return NewScraperWithClient(server.Client(), "oppradar-test/1.0"), server
}

func TestScraperSemanticContainer(t *testing.T) {
	page := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
	<title>Win a Laptop | Example</title>
	<meta name="description" content="Enter to win a laptop">
	<meta property="og:image" content="https://example.com/laptop.jpg">
</head>
<body>
	<nav>Home About Contact</nav>
	<article>
		<h1>Win a Laptop</h1>
		<p>%s</p>
		<p>%s</p>
	</article>
	<footer>Copyright</footer>
</body>
</html>`, longParagraph(1), longParagraph(2))

	scraper, server := newTestScraper(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page)
	}))
	defer server.Close()

	result := scraper.Scrape(context.Background(), server.URL)
	if result == nil {
		t.Fatal("Expected a result, got nil")
	}

	if !strings.Contains(result.Text, "Sentence number 1") {
		t.Error("Expected article text in extraction")
	}
	if strings.Contains(result.Text, "Copyright") {
		t.Error("Expected footer to be stripped")
	}
	if result.Description != "Enter to win a laptop" {
		t.Errorf("Expected meta description, got %q", result.Description)
	}
	if result.Image != "https://example.com/laptop.jpg" {
		t.Errorf("Expected og:image, got %q", result.Image)
	}
	if result.Title == "" {
		t.Error("Expected a title")
	}
}

func TestScraperDensestContainerFallback(t *testing.T) {
	// No article/main container, content lives in a plain div
	page := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><title>Scholarship Listing</title></head>
<body>
	<div class="sidebar"><p>Ad one</p></div>
	<div id="content">
		<p>%s</p>
		<p>%s</p>
		<p>%s</p>
	</div>
</body>
</html>`, longParagraph(1), longParagraph(2), longParagraph(3))

	scraper, server := newTestScraper(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page)
	}))
	defer server.Close()

	result := scraper.Scrape(context.Background(), server.URL)
	if result == nil {
		t.Fatal("Expected a result, got nil")
	}
	if !strings.Contains(result.Text, "Sentence number 3") {
		t.Error("Expected densest container text in extraction")
	}
}

func TestScraperReturnsNilOnFailure(t *testing.T) {
	scraper, server := newTestScraper(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/thin":
			fmt.Fprint(w, "<html><body><p>too short</p></body></html>")
		}
	}))
	defer server.Close()

	if result := scraper.Scrape(context.Background(), server.URL+"/missing"); result != nil {
		t.Errorf("Expected nil for HTTP 404, got %+v", result)
	}
	if result := scraper.Scrape(context.Background(), server.URL+"/thin"); result != nil {
		t.Errorf("Expected nil for page with insufficient text, got %+v", result)
	}
	if result := scraper.Scrape(context.Background(), "http://127.0.0.1:0/unreachable"); result != nil {
		t.Errorf("Expected nil for unreachable host, got %+v", result)
	}
}
