package publish

import (
	"cmp"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/dbelyaev/oppradar/app/ai"
	"github.com/dbelyaev/oppradar/app/blob"
	"github.com/dbelyaev/oppradar/app/database"
	"github.com/dbelyaev/oppradar/app/feed"
	"github.com/dbelyaev/oppradar/app/notify"
)

// How many numbered suffixes to try before falling back to a random one.
const slugAttempts = 10

// Featured images larger than this are truncated at read time.
const maxImageBody = 5 << 20

const imageFetchTimeout = 15 * time.Second

const (
	KindOpportunity = "opportunity"
	KindPost        = "post"
)

// Outcome describes what the publisher persisted for one candidate.
type Outcome struct {
	Kind   string
	ID     string
	Slug   string
	Status string
}

// Publisher turns an accepted verdict into a persisted opportunity or, for
// article-type feeds, an evergreen post. Inserting the entity, linking its
// dedup record and bumping the feed's counters happen in one transaction,
// so a retry can never double-count.
type Publisher struct {
	opportunities database.OpportunityRepository
	notifier      *notify.Notifier
	blobs         blob.Store
	client        *http.Client
	sanitizer     *bluemonday.Policy
}

// NewPublisher builds a publisher whose image fetches go through an
// SSRF-guarded client. A nil blob store disables image mirroring.
func NewPublisher(opportunities database.OpportunityRepository, notifier *notify.Notifier,
	blobs blob.Store) *Publisher {
	config := safeurl.GetConfigBuilder().
		SetTimeout(imageFetchTimeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()

	return NewPublisherWithClient(opportunities, notifier, blobs, safeurl.Client(config).Client)
}

// NewPublisherWithClient bypasses the SSRF guard. Used by tests that fetch
// images from a local server.
func NewPublisherWithClient(opportunities database.OpportunityRepository, notifier *notify.Notifier,
	blobs blob.Store, client *http.Client) *Publisher {
	return &Publisher{
		opportunities: opportunities,
		notifier:      notifier,
		blobs:         blobs,
		client:        client,
		sanitizer:     bluemonday.UGCPolicy(),
	}
}

func (p *Publisher) Publish(source *database.Feed, candidate feed.Candidate, verdict *ai.Verdict) (*Outcome, error) {
	title := cmp.Or(verdict.Title, candidate.Title)

	slug, err := p.uniqueSlug(title)
	if err != nil {
		return nil, err
	}

	status := database.StatusDraft
	var publishedAt *time.Time
	if source.AutoPublish {
		status = database.StatusPublished
		now := time.Now().UTC()
		publishedAt = &now
	}

	content := p.sanitizer.Sanitize(cmp.Or(verdict.Content, candidate.RawContent))
	imageURL := cmp.Or(candidate.ImageURL, source.FallbackImageURL)
	now := time.Now().UTC()

	if source.OpportunityType == "article" {
		post := database.Post{
			ID:               uuid.NewString(),
			Slug:             slug,
			Title:            title,
			Excerpt:          verdict.Excerpt,
			Content:          content,
			FeaturedImageURL: imageURL,
			SourceFeedID:     source.ID,
			Status:           status,
			PublishedAt:      publishedAt,
			CreatedAt:        now,
		}
		if err := p.opportunities.CreatePost(post, candidate.IdentityKey); err != nil {
			return nil, fmt.Errorf("failed to persist post: %w", err)
		}
		return &Outcome{Kind: KindPost, ID: post.ID, Slug: slug, Status: status}, nil
	}

	id := uuid.NewString()

	// Mirror the featured image into local storage; a failed mirror keeps
	// the remote URL instead of failing the publish.
	var mediaPath string
	if p.blobs != nil && imageURL != "" {
		name, localURL, err := p.mirrorImage(id, imageURL)
		if err != nil {
			slog.Debug("Featured image mirror failed", "url", imageURL, "error", err)
		} else {
			mediaPath = name
			imageURL = localURL
		}
	}

	op := database.Opportunity{
		ID:               id,
		Slug:             slug,
		Title:            title,
		Excerpt:          verdict.Excerpt,
		Content:          content,
		OpportunityType:  source.OpportunityType,
		Status:           status,
		Deadline:         verdict.ParsedDeadline(),
		PrizeValue:       verdict.PrizeValue,
		Location:         verdict.Location,
		Requirements:     verdict.Requirements,
		FeaturedImageURL: imageURL,
		SourceFeedID:     source.ID,
		PublishedAt:      publishedAt,
		CreatedAt:        now,
	}
	if err := p.opportunities.Create(op, candidate.IdentityKey); err != nil {
		if mediaPath != "" {
			if removeErr := p.blobs.Remove(mediaPath); removeErr != nil {
				slog.Warn("Failed to remove orphaned media file", "path", mediaPath, "error", removeErr)
			}
		}
		return nil, fmt.Errorf("failed to persist opportunity: %w", err)
	}

	if mediaPath != "" {
		if err := p.opportunities.AttachMedia(op.ID, mediaPath, imageURL); err != nil {
			slog.Warn("Failed to attach media record", "opportunity", op.ID, "error", err)
		}
	}

	if status == database.StatusPublished {
		p.notifier.Publish(notify.Event{
			OpportunityID:   op.ID,
			Slug:            op.Slug,
			Title:           op.Title,
			OpportunityType: op.OpportunityType,
			PublishedAt:     *publishedAt,
		})
	}

	return &Outcome{Kind: KindOpportunity, ID: op.ID, Slug: slug, Status: status}, nil
}

// mirrorImage downloads the featured image and stores it under a name
// derived from the owning entity. Returns the storage path and local URL.
func (p *Publisher) mirrorImage(entityID, imageURL string) (string, string, error) {
	req, err := http.NewRequest(http.MethodGet, imageURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to create image request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("unexpected status %d fetching image", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBody))
	if err != nil {
		return "", "", fmt.Errorf("failed to read image body: %w", err)
	}
	if len(data) == 0 {
		return "", "", fmt.Errorf("empty image body")
	}

	contentType := resp.Header.Get("Content-Type")
	name := entityID + imageExtension(imageURL, contentType)

	localURL, err := p.blobs.Upload(name, data, contentType)
	if err != nil {
		return "", "", err
	}
	return name, localURL, nil
}

func imageExtension(rawURL, contentType string) string {
	switch {
	case strings.Contains(contentType, "jpeg"):
		return ".jpg"
	case strings.Contains(contentType, "png"):
		return ".png"
	case strings.Contains(contentType, "gif"):
		return ".gif"
	case strings.Contains(contentType, "webp"):
		return ".webp"
	}
	if u, err := url.Parse(rawURL); err == nil {
		if ext := path.Ext(u.Path); ext != "" && len(ext) <= 5 {
			return ext
		}
	}
	return ".img"
}

// uniqueSlug appends numbered suffixes on collision and a short random one
// when the numbered range is exhausted.
func (p *Publisher) uniqueSlug(title string) (string, error) {
	base := Slugify(title)

	candidate := base
	for i := 2; i <= slugAttempts+1; i++ {
		exists, err := p.opportunities.SlugExists(candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check slug: %w", err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}

	return fmt.Sprintf("%s-%s", base, uuid.NewString()[:8]), nil
}
