// Package models defines data structures for Aether
package models

import "strings"

// Trade is a single logged buy or sell execution. Trades are immutable once
// appended to the ledger. JSON field names are part of the workspace file
// format and must not change.
type Trade struct {
	ID         string  `json:"id"`
	Symbol     string  `json:"symbol"`
	EntryPrice float64 `json:"entryPrice"`
	Amount     float64 `json:"amount"` // positive = acquisition, negative = disposal
	Fee        float64 `json:"fee"`
	Exchange   string  `json:"exchange"`
	Timestamp  int64   `json:"timestamp"` // ms since epoch
	Notes      string  `json:"notes,omitempty"`
}

// Cost returns amount*entryPrice + fee. The fee is added regardless of direction.
func (t Trade) Cost() float64 {
	return t.Amount*t.EntryPrice + t.Fee
}

// TradeInput is the user-entered portion of a trade; id and timestamp are
// assigned by the ledger.
type TradeInput struct {
	Symbol     string  `json:"symbol"`
	EntryPrice float64 `json:"entryPrice"`
	Amount     float64 `json:"amount"`
	Fee        float64 `json:"fee"`
	Exchange   string  `json:"exchange"`
	Notes      string  `json:"notes,omitempty"`
}

// NormalizeSymbol trims and upper-cases an asset ticker.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
