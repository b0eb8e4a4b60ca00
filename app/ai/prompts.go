package ai

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are a content curator for an opportunity aggregation site. You evaluate scraped web content and decide whether it describes a real, current, actionable opportunity for readers. Respond with a single JSON object and nothing else, using this shape:
{"valid": bool, "title": string, "excerpt": string, "content": string, "deadline": string, "prize_value": string, "requirements": string, "location": string, "confidence_score": number}
Rules:
- "valid" is false for expired opportunities, advertisements, listicles, and pages without a concrete opportunity.
- "title" is a rewritten, concise headline under 200 characters.
- "excerpt" is a summary of at most 60 words.
- "content" is clean HTML describing the opportunity in your own words.
- "deadline" is an ISO 8601 date if one is stated, otherwise an empty string.
- "confidence_score" is your confidence in the verdict, between 0 and 1.`

// Category-specific guidance appended to the shared digest.
var categoryGuidance = map[string]string{
	"giveaway":    "Focus on what is being given away, how to enter, and the entry deadline. Reject posts that only link to third-party sweepstakes aggregators.",
	"contest":     "Focus on the prize, judging criteria, and submission deadline.",
	"scholarship": "Focus on the award amount, eligibility requirements, and application deadline. Put eligibility into the requirements field.",
	"grant":       "Focus on the funding amount, who can apply, and the application window.",
	"job_fair":    "Focus on the date, venue or virtual link, participating employers, and registration steps. Put the venue into the location field.",
	"article":     "Summarize the useful advice in the piece. Articles have no deadline.",
}

const defaultGuidance = "Focus on what the opportunity offers, who qualifies, and any stated deadline."

// BuildUserPrompt assembles the content digest and category guidance for one
// candidate.
func BuildUserPrompt(opportunityType, title, body, sourceURL string) string {
	guidance, ok := categoryGuidance[opportunityType]
	if !ok {
		guidance = defaultGuidance
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Category: %s\n", opportunityType)
	fmt.Fprintf(&b, "Guidance: %s\n\n", guidance)
	fmt.Fprintf(&b, "Source URL: %s\n", sourceURL)
	fmt.Fprintf(&b, "Original title: %s\n\n", title)
	fmt.Fprintf(&b, "Content:\n%s\n", body)
	return b.String()
}
