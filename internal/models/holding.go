package models

import "time"

// Holding is the derived position in one asset. It is never stored.
type Holding struct {
	Symbol            string  `json:"symbol"`
	Quantity          float64 `json:"quantity"`
	TotalCost         float64 `json:"totalCost"`
	AvgCost           float64 `json:"avgCost"`
	BreakEven         float64 `json:"breakEven"`
	CurrentPrice      float64 `json:"currentPrice"`
	MarketValue       float64 `json:"marketValue"`
	UnrealizedPnl     float64 `json:"unrealizedPnl"`
	PnlPercent        float64 `json:"pnlPercent"`
	AllocationPercent float64 `json:"allocationPercent"`
	Change24h         float64 `json:"change24h"`
}

// PortfolioStats holds top-level account metrics derived from holdings.
type PortfolioStats struct {
	TotalValue        float64 `json:"totalValue"`
	TotalCost         float64 `json:"totalCost"`
	TotalPnl          float64 `json:"totalPnl"`
	PnlPercent        float64 `json:"pnlPercent"`
	WeightedChange24h float64 `json:"weightedChange24h"`
	HoldingCount      int     `json:"holdingCount"`
	TradeCount        int     `json:"tradeCount"`
}

// PortfolioView is one consistent derivation of holdings and stats from a
// specific ledger version and cache version.
type PortfolioView struct {
	Holdings      []Holding      `json:"holdings"`
	Stats         PortfolioStats `json:"stats"`
	LedgerVersion uint64         `json:"ledger_version"`
	CacheVersion  uint64         `json:"cache_version"`
	PricesAt      time.Time      `json:"prices_at"`
	ComputedAt    time.Time      `json:"computed_at"`
}
