package ai

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when the local call budget for the model is spent.
var ErrRateLimited = errors.New("ai call budget exhausted")

// Generator sends a system instruction and a user message to a language model
// and returns its textual answer.
type Generator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
	Model() string
}

type limitedGenerator struct {
	next    Generator
	limiter *rate.Limiter
}

// WithRateLimit guards next with a token bucket. Calls over budget fail fast
// with ErrRateLimited instead of waiting, so callers can take their
// deterministic path. A non-positive rps disables the limit.
func WithRateLimit(next Generator, rps float64, burst int) Generator {
	if next == nil || rps <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	return &limitedGenerator{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (l *limitedGenerator) GenerateContent(ctx context.Context, system, message string) (string, error) {
	if !l.limiter.Allow() {
		return "", ErrRateLimited
	}
	return l.next.GenerateContent(ctx, system, message)
}

func (l *limitedGenerator) Model() string { return l.next.Model() }

// ExtractJSON strips markdown code fences models like to wrap JSON in.
func ExtractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```JSON")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
