// Package interfaces defines service contracts for Aether
package interfaces

import (
	"context"

	"github.com/bobmcallan/aether/internal/models"
)

// LedgerService is the trade ledger: the source of truth for all positions.
type LedgerService interface {
	Add(input models.TradeInput) (models.Trade, error)
	Remove(id string)
	ReplaceAll(trades []models.Trade) error
	Import(data []byte) error
	List() []models.Trade
	Get(id string) (models.Trade, bool)
	Symbols() []string
	Version() uint64
}

// SyncService refreshes the market data cache.
type SyncService interface {
	Sync(ctx context.Context, symbols []string) *models.SyncResult
	Quotes() *models.QuoteSet
}

// PortfolioService exposes derived portfolio state.
type PortfolioService interface {
	View() *models.PortfolioView
	Holdings() []models.Holding
	Stats() models.PortfolioStats
	Subscribe() (<-chan *models.PortfolioView, func())
}

// AdvisoryGenerator produces an advisory report for a set of holdings.
// A nil report means insufficient data or an unavailable generator.
type AdvisoryGenerator interface {
	GenerateReport(ctx context.Context, holdings []models.Holding) *models.AdvisoryReport
}
