package ai

import (
	"context"
)

// Provider is a chat-completion capability. Implementations must honor the
// context deadline and surface transport and rate-limit failures as errors.
type Provider interface {
	Complete(ctx context.Context, systemPrompt, userPrompt, model string) (string, error)
}
