// Package portfolio derives holdings and account statistics from the ledger
// and the market data cache
package portfolio

import (
	"sort"

	"github.com/bobmcallan/aether/internal/models"
)

// ComputeHoldings groups trades by symbol and values each group against
// quotes. The result is ordered by market value descending; groups with
// equal value keep the order in which their symbol first appears in trades.
//
// A symbol without a usable quote (absent or price 0) reports zero market
// value and zero PnL rather than a loss equal to its cost.
func ComputeHoldings(trades []models.Trade, quotes *models.QuoteSet) []models.Holding {
	index := make(map[string]int)
	holdings := make([]models.Holding, 0)

	for _, t := range trades {
		sym := models.NormalizeSymbol(t.Symbol)
		i, ok := index[sym]
		if !ok {
			i = len(holdings)
			index[sym] = i
			holdings = append(holdings, models.Holding{Symbol: sym})
		}
		holdings[i].Quantity += t.Amount
		holdings[i].TotalCost += t.Cost()
	}

	totalValue := 0.0
	for i := range holdings {
		h := &holdings[i]

		if h.Quantity > 0 {
			h.AvgCost = h.TotalCost / h.Quantity
		}
		h.BreakEven = h.AvgCost

		if snap, ok := quotes.Get(h.Symbol); ok {
			h.CurrentPrice = snap.Price
			h.Change24h = snap.Change24h
		}
		h.MarketValue = h.Quantity * h.CurrentPrice

		if h.CurrentPrice > 0 {
			h.UnrealizedPnl = h.MarketValue - h.TotalCost
			if h.TotalCost > 0 {
				h.PnlPercent = h.UnrealizedPnl / h.TotalCost * 100
			}
		}

		totalValue += h.MarketValue
	}

	if totalValue > 0 {
		for i := range holdings {
			holdings[i].AllocationPercent = holdings[i].MarketValue / totalValue * 100
		}
	}

	sort.SliceStable(holdings, func(a, b int) bool {
		return holdings[a].MarketValue > holdings[b].MarketValue
	})

	return holdings
}

// FilterOpen returns the holdings with a positive quantity.
func FilterOpen(holdings []models.Holding) []models.Holding {
	out := make([]models.Holding, 0, len(holdings))
	for _, h := range holdings {
		if h.Quantity > 0 {
			out = append(out, h)
		}
	}
	return out
}
