package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrUnavailable marks provider, transport and malformed-response failures.
// ErrRejected marks a quality-gate rejection of otherwise healthy output.
// Dashboards count the two separately, so callers must preserve the
// distinction with errors.Is.
var (
	ErrUnavailable = errors.New("ai provider unavailable")
	ErrRejected    = errors.New("content rejected")
)

// Digest is the shared content bundle sent to the model.
type Digest struct {
	Title           string
	Body            string
	SourceURL       string
	OpportunityType string
}

// Policy is the per-feed evaluation policy. Empty Provider or Model fall
// back to the gate's defaults.
type Policy struct {
	Provider         string
	Model            string
	QualityThreshold float64
}

// Gate evaluates candidates against a configured model and enforces the
// confidence threshold.
type Gate struct {
	providers       map[string]Provider
	defaultProvider string
	defaultModel    string
}

func NewGate(providers map[string]Provider, defaultProvider, defaultModel string) *Gate {
	return &Gate{
		providers:       providers,
		defaultProvider: defaultProvider,
		defaultModel:    defaultModel,
	}
}

// Evaluate returns the parsed verdict for an accepted candidate. A failure
// returns an error wrapping ErrUnavailable or ErrRejected; no partial
// verdict is ever returned alongside an error.
func (g *Gate) Evaluate(ctx context.Context, digest Digest, policy Policy) (*Verdict, error) {
	providerName := policy.Provider
	if providerName == "" {
		providerName = g.defaultProvider
	}
	provider, ok := g.providers[providerName]
	if !ok {
		return nil, fmt.Errorf("%w: unknown provider %q", ErrUnavailable, providerName)
	}

	model := policy.Model
	if model == "" {
		model = g.defaultModel
	}

	userPrompt := BuildUserPrompt(digest.OpportunityType, digest.Title, digest.Body, digest.SourceURL)

	raw, err := provider.Complete(ctx, systemPrompt, userPrompt, model)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	verdict, err := ParseVerdict(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if !verdict.Valid {
		return nil, fmt.Errorf("%w: model marked content invalid", ErrRejected)
	}
	if verdict.ConfidenceScore < policy.QualityThreshold {
		return nil, fmt.Errorf("%w: confidence %.3f below threshold %.3f",
			ErrRejected, verdict.ConfidenceScore, policy.QualityThreshold)
	}

	slog.Debug("Verdict accepted",
		"provider", providerName,
		"model", model,
		"confidence", verdict.ConfidenceScore)

	return verdict, nil
}
