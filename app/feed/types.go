package feed

import (
	"time"
)

// Candidate is a normalized feed item queued for the pipeline. It lives only
// for the duration of a processing run.
type Candidate struct {
	SourceFeedID string
	IdentityKey  string
	Title        string
	Link         string
	RawContent   string
	ImageURL     string
	PublishedAt  *time.Time
}

// FetchResult carries the windowed candidates of one run plus the offset the
// feed should resume from on the next run. StartOffset is the effective
// window start after any reset, so callers that stop mid-window can compute
// the position of the first unconsumed item.
type FetchResult struct {
	Candidates  []Candidate
	TotalItems  int
	StartOffset int
	NextOffset  int
}
