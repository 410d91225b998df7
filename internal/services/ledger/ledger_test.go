package ledger

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/aether/internal/common"
	"github.com/bobmcallan/aether/internal/models"
)

func newTestLedger(t *testing.T, initial []models.Trade) *Ledger {
	t.Helper()
	l, err := NewLedger(initial, common.NewSilentLogger())
	require.NoError(t, err)

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }
	n := 0
	l.newID = func() string {
		n++
		return fmt.Sprintf("trade-%d", n)
	}
	return l
}

func btcInput() models.TradeInput {
	return models.TradeInput{Symbol: "btc", EntryPrice: 50000, Amount: 0.1, Fee: 5, Exchange: "Binance"}
}

func TestAdd_AssignsIDAndTimestamp(t *testing.T) {
	l := newTestLedger(t, nil)

	trade, err := l.Add(btcInput())
	require.NoError(t, err)

	assert.Equal(t, "trade-1", trade.ID)
	assert.Equal(t, "BTC", trade.Symbol)
	assert.Equal(t, int64(1772366400000), trade.Timestamp)
	assert.Equal(t, 1, l.Len())
	assert.Equal(t, uint64(1), l.Version())
}

func TestAdd_TimestampsStrictlyIncrease(t *testing.T) {
	l := newTestLedger(t, nil)

	var last int64
	for i := 0; i < 5; i++ {
		trade, err := l.Add(btcInput())
		require.NoError(t, err)
		assert.Greater(t, trade.Timestamp, last)
		last = trade.Timestamp
	}
}

func TestAdd_TimestampAfterImportedTrades(t *testing.T) {
	future := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	l := newTestLedger(t, []models.Trade{
		{ID: "a", Symbol: "ETH", EntryPrice: 2000, Amount: 1, Timestamp: future},
	})

	trade, err := l.Add(btcInput())
	require.NoError(t, err)
	assert.Equal(t, future+1, trade.Timestamp)
}

func TestAdd_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		input models.TradeInput
		field string
	}{
		{"empty symbol", models.TradeInput{Symbol: "  ", EntryPrice: 1, Amount: 1}, "symbol"},
		{"zero price", models.TradeInput{Symbol: "BTC", EntryPrice: 0, Amount: 1}, "entryPrice"},
		{"negative price", models.TradeInput{Symbol: "BTC", EntryPrice: -1, Amount: 1}, "entryPrice"},
		{"nan price", models.TradeInput{Symbol: "BTC", EntryPrice: math.NaN(), Amount: 1}, "entryPrice"},
		{"zero amount", models.TradeInput{Symbol: "BTC", EntryPrice: 1, Amount: 0}, "amount"},
		{"inf amount", models.TradeInput{Symbol: "BTC", EntryPrice: 1, Amount: math.Inf(1)}, "amount"},
		{"negative fee", models.TradeInput{Symbol: "BTC", EntryPrice: 1, Amount: 1, Fee: -0.5}, "fee"},
		{"overflowing cost", models.TradeInput{Symbol: "BTC", EntryPrice: 1e200, Amount: 1e200}, "amount"},
		{"overflowing disposal", models.TradeInput{Symbol: "BTC", EntryPrice: 1e200, Amount: -1e200}, "amount"},
		{"overflowing fee", models.TradeInput{Symbol: "BTC", EntryPrice: math.MaxFloat64, Amount: 1, Fee: math.MaxFloat64}, "amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLedger(t, nil)
			_, err := l.Add(tt.input)

			var ve *models.ValidationError
			require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.field, ve.Field)
			assert.Equal(t, 0, l.Len())
			assert.Equal(t, uint64(0), l.Version())
		})
	}
}

func TestAdd_NegativeAmountIsDisposal(t *testing.T) {
	l := newTestLedger(t, nil)
	trade, err := l.Add(models.TradeInput{Symbol: "BTC", EntryPrice: 60000, Amount: -0.05})
	require.NoError(t, err)
	assert.Equal(t, -0.05, trade.Amount)
}

func TestAddThenRemove_RestoresPriorState(t *testing.T) {
	l := newTestLedger(t, nil)
	_, err := l.Add(btcInput())
	require.NoError(t, err)
	before := l.List()

	added, err := l.Add(models.TradeInput{Symbol: "ETH", EntryPrice: 3000, Amount: 2})
	require.NoError(t, err)
	l.Remove(added.ID)

	assert.Equal(t, before, l.List())
}

func TestRemove_AbsentIDIsNoop(t *testing.T) {
	l := newTestLedger(t, nil)
	_, err := l.Add(btcInput())
	require.NoError(t, err)

	fired := 0
	l.OnChange(func([]models.Trade) { fired++ })

	l.Remove("does-not-exist")

	assert.Equal(t, 0, fired)
	assert.Equal(t, 1, l.Len())
	assert.Equal(t, uint64(1), l.Version())
}

func TestReplaceAll_RejectsInvalidAndLeavesLedgerUntouched(t *testing.T) {
	l := newTestLedger(t, nil)
	_, err := l.Add(btcInput())
	require.NoError(t, err)
	before := l.List()

	tests := []struct {
		name   string
		trades []models.Trade
		field  string
	}{
		{"missing id", []models.Trade{{Symbol: "BTC", EntryPrice: 1, Amount: 1}}, "trades[0].id"},
		{"duplicate id", []models.Trade{
			{ID: "x", Symbol: "BTC", EntryPrice: 1, Amount: 1},
			{ID: "x", Symbol: "ETH", EntryPrice: 1, Amount: 1},
		}, "trades[1].id"},
		{"bad price", []models.Trade{{ID: "x", Symbol: "BTC", EntryPrice: 0, Amount: 1}}, "trades[0].entryPrice"},
		{"negative timestamp", []models.Trade{{ID: "x", Symbol: "BTC", EntryPrice: 1, Amount: 1, Timestamp: -1}}, "trades[0].timestamp"},
		{"overflowing cost", []models.Trade{
			{ID: "x", Symbol: "BTC", EntryPrice: 1, Amount: 1},
			{ID: "y", Symbol: "BTC", EntryPrice: 1e200, Amount: 1e200},
		}, "trades[1].amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := l.ReplaceAll(tt.trades)
			var ve *models.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
			assert.Equal(t, before, l.List())
		})
	}
}

func TestReplaceAll_NormalizesSymbols(t *testing.T) {
	l := newTestLedger(t, nil)
	err := l.ReplaceAll([]models.Trade{
		{ID: "a", Symbol: " eth ", EntryPrice: 2000, Amount: 1, Timestamp: 10},
		{ID: "b", Symbol: "btc", EntryPrice: 50000, Amount: 0.1, Timestamp: 5},
	})
	require.NoError(t, err)

	list := l.List()
	require.Len(t, list, 2)
	assert.Equal(t, "ETH", list[0].Symbol)
	assert.Equal(t, "BTC", list[1].Symbol)
	assert.Equal(t, []string{"ETH", "BTC"}, l.Symbols())
}

func TestReplaceAll_EmptyClearsLedger(t *testing.T) {
	l := newTestLedger(t, nil)
	_, err := l.Add(btcInput())
	require.NoError(t, err)

	require.NoError(t, l.ReplaceAll(nil))
	assert.Empty(t, l.List())
	assert.Equal(t, uint64(2), l.Version())
}

func TestNewLedger_RejectsInvalidInitial(t *testing.T) {
	_, err := NewLedger([]models.Trade{{ID: "a", Symbol: "", EntryPrice: 1, Amount: 1}}, nil)
	var ve *models.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestList_ReturnsCopy(t *testing.T) {
	l := newTestLedger(t, nil)
	_, err := l.Add(btcInput())
	require.NoError(t, err)

	list := l.List()
	list[0].Symbol = "MUTATED"

	got, ok := l.Get("trade-1")
	require.True(t, ok)
	assert.Equal(t, "BTC", got.Symbol)
}

func TestGet_Missing(t *testing.T) {
	l := newTestLedger(t, nil)
	_, ok := l.Get("nope")
	assert.False(t, ok)
}

func TestSymbols_DistinctFirstSeen(t *testing.T) {
	l := newTestLedger(t, nil)
	for _, sym := range []string{"eth", "BTC", "ETH", "sol"} {
		_, err := l.Add(models.TradeInput{Symbol: sym, EntryPrice: 1, Amount: 1})
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"ETH", "BTC", "SOL"}, l.Symbols())
}

func TestOnChange_FiresInMutationOrder(t *testing.T) {
	l := newTestLedger(t, nil)

	var sizes []int
	l.OnChange(func(trades []models.Trade) {
		sizes = append(sizes, len(trades))
		// reading from a listener is allowed
		_ = l.List()
	})

	a, err := l.Add(btcInput())
	require.NoError(t, err)
	_, err = l.Add(btcInput())
	require.NoError(t, err)
	l.Remove(a.ID)
	require.NoError(t, l.ReplaceAll(nil))

	assert.Equal(t, []int{1, 2, 1, 0}, sizes)
}

func TestConcurrentAdds(t *testing.T) {
	l, err := NewLedger(nil, common.NewSilentLogger())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = l.Add(btcInput())
			_ = l.List()
		}()
	}
	wg.Wait()

	list := l.List()
	assert.Len(t, list, 50)
	assert.Equal(t, uint64(50), l.Version())

	ids := make(map[string]bool)
	for i, tr := range list {
		assert.False(t, ids[tr.ID], "duplicate id %s", tr.ID)
		ids[tr.ID] = true
		if i > 0 {
			assert.Greater(t, tr.Timestamp, list[i-1].Timestamp)
		}
	}
}
