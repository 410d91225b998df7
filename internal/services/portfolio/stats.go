package portfolio

import "github.com/bobmcallan/aether/internal/models"

// ComputeStats reduces holdings into account metrics. Cost is taken from
// trades directly so it does not depend on quote availability.
func ComputeStats(holdings []models.Holding, trades []models.Trade) models.PortfolioStats {
	stats := models.PortfolioStats{
		HoldingCount: len(holdings),
		TradeCount:   len(trades),
	}

	for _, t := range trades {
		stats.TotalCost += t.Cost()
	}

	for _, h := range holdings {
		stats.TotalValue += h.MarketValue
		stats.WeightedChange24h += h.Change24h * h.AllocationPercent / 100
	}

	// no priced value means no meaningful PnL
	if stats.TotalValue > 0 {
		stats.TotalPnl = stats.TotalValue - stats.TotalCost
	}
	if stats.TotalCost > 0 {
		stats.PnlPercent = stats.TotalPnl / stats.TotalCost * 100
	}

	return stats
}
