package ledger

import (
	"fmt"
	"math"
	"strings"

	"github.com/bobmcallan/aether/internal/models"
)

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// checkNumbers applies the numeric rules shared by new and imported trades.
// prefix is prepended to field names, e.g. "trades[2].".
func checkNumbers(prefix string, entryPrice, amount, fee float64) error {
	if !isFinite(entryPrice) || entryPrice <= 0 {
		return models.NewValidationError(prefix+"entryPrice", "must be a finite positive number")
	}
	if !isFinite(amount) || amount == 0 {
		return models.NewValidationError(prefix+"amount", "must be a finite non-zero number")
	}
	if !isFinite(fee) || fee < 0 {
		return models.NewValidationError(prefix+"fee", "must be a finite non-negative number")
	}
	if !isFinite(amount*entryPrice + fee) {
		return models.NewValidationError(prefix+"amount", "cost amount*entryPrice+fee is not finite")
	}
	return nil
}

// validateInput checks user-entered fields and returns a normalized trade
// without id or timestamp.
func validateInput(in models.TradeInput) (models.Trade, error) {
	symbol := models.NormalizeSymbol(in.Symbol)
	if symbol == "" {
		return models.Trade{}, models.NewValidationError("symbol", "must not be empty")
	}
	if err := checkNumbers("", in.EntryPrice, in.Amount, in.Fee); err != nil {
		return models.Trade{}, err
	}

	return models.Trade{
		Symbol:     symbol,
		EntryPrice: in.EntryPrice,
		Amount:     in.Amount,
		Fee:        in.Fee,
		Exchange:   strings.TrimSpace(in.Exchange),
		Notes:      strings.TrimSpace(in.Notes),
	}, nil
}

// validateTrades checks a full trade list for ReplaceAll and returns a
// normalized copy. Any invalid record rejects the whole list.
func validateTrades(trades []models.Trade) ([]models.Trade, error) {
	out := make([]models.Trade, 0, len(trades))
	ids := make(map[string]bool, len(trades))

	for i, t := range trades {
		prefix := fmt.Sprintf("trades[%d].", i)

		id := strings.TrimSpace(t.ID)
		if id == "" {
			return nil, models.NewValidationError(prefix+"id", "must not be empty")
		}
		if ids[id] {
			return nil, models.NewValidationError(prefix+"id", "duplicate id %q", id)
		}
		ids[id] = true

		symbol := models.NormalizeSymbol(t.Symbol)
		if symbol == "" {
			return nil, models.NewValidationError(prefix+"symbol", "must not be empty")
		}
		if err := checkNumbers(prefix, t.EntryPrice, t.Amount, t.Fee); err != nil {
			return nil, err
		}
		if t.Timestamp < 0 {
			return nil, models.NewValidationError(prefix+"timestamp", "must not be negative")
		}

		t.ID = id
		t.Symbol = symbol
		out = append(out, t)
	}

	return out, nil
}
