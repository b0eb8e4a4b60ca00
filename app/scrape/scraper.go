package scrape

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/doyensec/safeurl"
	readability "github.com/go-shiori/go-readability"
)

const maxPageBody = 5 << 20

// Extracted text shorter than this is treated as a failed extraction and
// triggers the density fallback.
const minTextLength = 150

// Result holds readable content extracted from a linked page.
type Result struct {
	Title       string
	Description string
	Text        string
	HTML        string
	Image       string
}

// Scraper fetches a candidate's linked page and extracts its readable
// content. Extraction prefers readability, then semantic containers, then
// the densest paragraph container. Every failure mode yields nil rather
// than an error so the pipeline can continue with feed-native content.
type Scraper struct {
	client    *http.Client
	userAgent string
}

func NewScraper(timeout time.Duration, userAgent string) *Scraper {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()

	return &Scraper{
		client:    safeurl.Client(config).Client,
		userAgent: userAgent,
	}
}

// NewScraperWithClient bypasses the SSRF guard. Used by tests.
func NewScraperWithClient(client *http.Client, userAgent string) *Scraper {
	return &Scraper{client: client, userAgent: userAgent}
}

// Scrape returns nil when the page cannot be fetched or no usable content
// can be extracted. Nil is a valid outcome, not an error.
func (s *Scraper) Scrape(ctx context.Context, pageURL string) *Result {
	body, err := s.download(ctx, pageURL)
	if err != nil {
		slog.Debug("Page fetch failed", "url", pageURL, "error", err)
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		slog.Debug("Page parse failed", "url", pageURL, "error", err)
		return nil
	}

	result := &Result{
		Title:       pageTitle(doc),
		Description: metaContent(doc, "description"),
		Image:       metaProperty(doc, "og:image"),
	}

	if article, err := readability.FromReader(strings.NewReader(body), nil); err == nil {
		text := strings.TrimSpace(article.TextContent)
		if len(text) >= minTextLength {
			result.Text = text
			result.HTML = article.Content
			if result.Title == "" {
				result.Title = article.Title
			}
			return result
		}
	}

	stripChrome(doc)

	container := semanticContainer(doc)
	if container == nil || len(strings.TrimSpace(container.Text())) < minTextLength {
		container = densestContainer(doc)
	}
	if container == nil {
		return nil
	}

	text := normalizeWhitespace(container.Text())
	if len(text) < minTextLength {
		return nil
	}

	result.Text = text
	if html, err := container.Html(); err == nil {
		result.HTML = html
	}
	return result
}

func (s *Scraper) download(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &httpStatusError{status: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBody))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

type httpStatusError struct {
	status int
}

func (e *httpStatusError) Error() string {
	return http.StatusText(e.status)
}

// stripChrome removes page furniture that pollutes text extraction.
func stripChrome(doc *goquery.Document) {
	doc.Find("script, style, noscript, nav, footer, header, aside, form, iframe").Remove()
	doc.Find("[class*='ad-'], [class*='advert'], [id*='comments'], [class*='comments'], [class*='sidebar']").Remove()
}

func semanticContainer(doc *goquery.Document) *goquery.Selection {
	for _, selector := range []string{"article", "main", "[role='main']"} {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			return sel
		}
	}
	return nil
}

// densestContainer picks the element with the most direct paragraph children
// as the likeliest content region.
func densestContainer(doc *goquery.Document) *goquery.Selection {
	var best *goquery.Selection
	bestCount := 0

	doc.Find("div, section, td").Each(func(_ int, sel *goquery.Selection) {
		count := sel.ChildrenFiltered("p").Length()
		if count > bestCount {
			best = sel
			bestCount = count
		}
	})

	if best == nil {
		if body := doc.Find("body").First(); body.Length() > 0 {
			return body
		}
	}
	return best
}

func pageTitle(doc *goquery.Document) string {
	if title := metaProperty(doc, "og:title"); title != "" {
		return title
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func metaContent(doc *goquery.Document, name string) string {
	content, _ := doc.Find("meta[name='" + name + "']").First().Attr("content")
	return strings.TrimSpace(content)
}

func metaProperty(doc *goquery.Document, property string) string {
	content, _ := doc.Find("meta[property='" + property + "']").First().Attr("content")
	return strings.TrimSpace(content)
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
