package models

import "time"

// MarketSnapshot is the latest known quote for one symbol.
type MarketSnapshot struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Change24h float64 `json:"change24h"` // percent, signed
	High24h   float64 `json:"high24h"`
	Low24h    float64 `json:"low24h"`
	Volume24h float64 `json:"volume24h"`
}

// StableSnapshot returns the fixed snapshot used for quote-currency symbols.
func StableSnapshot(symbol string) MarketSnapshot {
	return MarketSnapshot{
		Symbol:  symbol,
		Price:   1,
		High24h: 1,
		Low24h:  1,
	}
}

// QuoteSet is an immutable generation of the market data cache.
// It is never mutated after publication; a sync replaces it wholesale.
type QuoteSet struct {
	Quotes    map[string]MarketSnapshot `json:"quotes"`
	Version   uint64                    `json:"version"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

// Get returns the snapshot for symbol, if any.
func (q *QuoteSet) Get(symbol string) (MarketSnapshot, bool) {
	if q == nil {
		return MarketSnapshot{}, false
	}
	s, ok := q.Quotes[symbol]
	return s, ok
}

// Len returns the number of cached symbols.
func (q *QuoteSet) Len() int {
	if q == nil {
		return 0
	}
	return len(q.Quotes)
}

// SyncResult describes the outcome of one sync cycle. A sync never fails
// outright: provider errors degrade to the previous cache.
type SyncResult struct {
	Requested []string      `json:"requested"`
	Missing   []string      `json:"missing,omitempty"` // requested but absent from the provider response
	Failed    bool          `json:"failed"`            // provider call failed; previous cache kept
	Discarded bool          `json:"discarded"`         // synchronizer closed while the call was in flight
	Error     string        `json:"error,omitempty"`
	Quotes    *QuoteSet     `json:"cache"`
	Elapsed   time.Duration `json:"elapsed_ns"`
}
