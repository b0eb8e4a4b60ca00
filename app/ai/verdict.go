package ai

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	maxTitleLength  = 200
	maxExcerptWords = 60
)

// Verdict is the structured judgment returned by the model. All fields
// besides Valid and ConfidenceScore are optional.
type Verdict struct {
	Valid           bool    `json:"valid"`
	Title           string  `json:"title"`
	Excerpt         string  `json:"excerpt"`
	Content         string  `json:"content"`
	Deadline        string  `json:"deadline"`
	PrizeValue      string  `json:"prize_value"`
	Requirements    string  `json:"requirements"`
	Location        string  `json:"location"`
	ConfidenceScore float64 `json:"confidence_score"`
}

// ParseVerdict extracts and validates the JSON verdict from a raw model
// response. Models wrap JSON in markdown fences or prose often enough that
// the parser scans for the outermost object instead of trusting the whole
// body. Formatting overflows are truncated, not rejected.
func ParseVerdict(raw string) (*Verdict, error) {
	payload := extractJSON(raw)
	if payload == "" {
		return nil, fmt.Errorf("no JSON object in model response")
	}

	var verdict Verdict
	if err := json.Unmarshal([]byte(payload), &verdict); err != nil {
		return nil, fmt.Errorf("failed to parse verdict JSON: %w", err)
	}

	if verdict.ConfidenceScore < 0 || verdict.ConfidenceScore > 1 {
		return nil, fmt.Errorf("confidence score %v out of range", verdict.ConfidenceScore)
	}

	verdict.Title = truncateRunes(strings.TrimSpace(verdict.Title), maxTitleLength)
	verdict.Excerpt = truncateWords(strings.TrimSpace(verdict.Excerpt), maxExcerptWords)

	return &verdict, nil
}

// ParsedDeadline interprets the verdict's deadline string. An empty or
// unparseable deadline yields nil.
func (v *Verdict) ParsedDeadline() *time.Time {
	if v.Deadline == "" {
		return nil
	}

	layouts := []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04:05", "January 2, 2006"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, v.Deadline); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return raw[start : end+1]
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func truncateWords(s string, max int) string {
	words := strings.Fields(s)
	if len(words) <= max {
		return s
	}
	return strings.Join(words[:max], " ")
}
