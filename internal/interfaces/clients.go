// Package interfaces defines service contracts for Aether
package interfaces

import (
	"context"

	"github.com/bobmcallan/aether/internal/models"
)

// MarketDataProvider fetches a quote batch from an external price source.
// Symbols absent from the result are unknown to the provider; an error
// means the whole batch failed.
type MarketDataProvider interface {
	FetchQuotes(ctx context.Context, symbols []string) (map[string]models.MarketSnapshot, error)
}

// GeminiClient provides access to the Gemini API
type GeminiClient interface {
	// GenerateContent generates free-form text from a prompt
	GenerateContent(ctx context.Context, prompt string) (string, error)

	// GenerateJSON generates a response constrained to application/json
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}
