package pipeline

// RunResult summarizes one feed's processing run.
type RunResult struct {
	FeedID               string   `json:"feedId"`
	FeedName             string   `json:"feedName"`
	Success              bool     `json:"success"`
	ItemsProcessed       int      `json:"itemsProcessed"`
	OpportunitiesCreated int      `json:"opportunitiesCreated"`
	PostsCreated         int      `json:"postsCreated"`
	DuplicatesSkipped    int      `json:"duplicatesSkipped"`
	AIRejections         int      `json:"aiRejections"`
	Errors               []string `json:"errors"`
}

// BatchResult aggregates a processAllFeeds invocation.
type BatchResult struct {
	Results              []RunResult `json:"results"`
	FeedsProcessed       int         `json:"feedsProcessed"`
	FeedsFailed          int         `json:"feedsFailed"`
	OpportunitiesCreated int         `json:"opportunitiesCreated"`
	PostsCreated         int         `json:"postsCreated"`
	DuplicatesSkipped    int         `json:"duplicatesSkipped"`
	AIRejections         int         `json:"aiRejections"`
}

// ClearResult reports a clear-duplicates operation.
type ClearResult struct {
	EntitiesCleared int64 `json:"entitiesCleared"`
	OffsetReset     bool  `json:"offsetReset"`
}
