// Package interfaces defines service contracts for Aether
package interfaces

import (
	"context"

	"github.com/bobmcallan/aether/internal/models"
)

// TradeStore persists the full trade list. The ledger loads once at startup
// and saves the complete list after every mutation.
type TradeStore interface {
	LoadTrades(ctx context.Context) ([]models.Trade, error)
	SaveTrades(ctx context.Context, trades []models.Trade) error
	Close() error
}
