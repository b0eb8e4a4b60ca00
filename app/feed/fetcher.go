package feed

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
	"github.com/mmcdole/gofeed"
)

// Feed documents larger than this are truncated at read time.
const maxFeedBody = 10 << 20

// Fetcher retrieves a feed document over HTTP and parses it into an ordered
// candidate window. The HTTP client blocks requests to private, loopback and
// link-local addresses, which also covers DNS rebinding since safeurl
// validates resolved addresses at dial time.
type Fetcher struct {
	client    *http.Client
	parser    *gofeed.Parser
	userAgent string
}

func NewFetcher(timeout time.Duration, userAgent string) *Fetcher {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()

	return &Fetcher{
		client:    safeurl.Client(config).Client,
		parser:    gofeed.NewParser(),
		userAgent: userAgent,
	}
}

// NewFetcherWithClient bypasses the SSRF guard. Used by tests that fetch
// from a local server.
func NewFetcherWithClient(client *http.Client, userAgent string) *Fetcher {
	return &Fetcher{
		client:    client,
		parser:    gofeed.NewParser(),
		userAgent: userAgent,
	}
}

// Fetch retrieves and parses the feed at url, then windows the parsed items
// by offset and maxPosts. NextOffset resumes after the consumed window; once
// the backlog is exhausted the offset wraps to zero so the next run rescans
// from the top and picks up fresh items.
func (f *Fetcher) Fetch(ctx context.Context, feedID, url string, offset, maxPosts int) (*FetchResult, error) {
	data, err := f.download(ctx, url)
	if err != nil {
		return nil, err
	}

	parsed, err := f.parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	total := len(parsed.Items)
	if offset >= total {
		offset = 0
	}

	end := total
	if maxPosts > 0 && offset+maxPosts < end {
		end = offset + maxPosts
	}

	candidates := make([]Candidate, 0, end-offset)
	for _, item := range parsed.Items[offset:end] {
		candidates = append(candidates, f.normalizeItem(feedID, item))
	}

	return &FetchResult{
		Candidates:  candidates,
		TotalItems:  total,
		StartOffset: offset,
		NextOffset:  end % cmp.Or(total, 1),
	}, nil
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching feed", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read feed body: %w", err)
	}
	return data, nil
}

func (f *Fetcher) normalizeItem(feedID string, item *gofeed.Item) Candidate {
	candidate := Candidate{
		SourceFeedID: feedID,
		IdentityKey:  IdentityKey(item.Link, item.GUID),
		Title:        strings.TrimSpace(item.Title),
		Link:         item.Link,
		RawContent:   cmp.Or(item.Content, item.Description),
		PublishedAt:  item.PublishedParsed,
	}

	if item.Image != nil {
		candidate.ImageURL = item.Image.URL
	} else {
		for _, enc := range item.Enclosures {
			if enc != nil && strings.HasPrefix(enc.Type, "image/") {
				candidate.ImageURL = enc.URL
				break
			}
		}
	}

	return candidate
}
