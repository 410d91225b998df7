// Package ledger provides the append-only trade ledger
package ledger

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/aether/internal/common"
	"github.com/bobmcallan/aether/internal/interfaces"
	"github.com/bobmcallan/aether/internal/models"
)

// ChangeFunc is invoked synchronously after every successful mutation with a
// copy of the full trade list. Listeners must not mutate the ledger.
type ChangeFunc func(trades []models.Trade)

// Ledger is the ordered, immutable-once-appended collection of trades.
//
// Mutations are serialized by writeMu so listeners observe changes in the
// order they were applied. The trade slice is copy-on-write: a published
// slice is never modified, so readers only need mu for the pointer swap.
type Ledger struct {
	writeMu sync.Mutex

	mu        sync.RWMutex
	trades    []models.Trade
	version   uint64
	lastTS    int64
	listeners []ChangeFunc

	logger *common.Logger
	now    func() time.Time
	newID  func() string
}

// NewLedger creates a ledger seeded with previously persisted trades.
// The initial list is validated with the same rules as ReplaceAll.
func NewLedger(initial []models.Trade, logger *common.Logger) (*Ledger, error) {
	if logger == nil {
		logger = common.NewSilentLogger()
	}

	trades, err := validateTrades(initial)
	if err != nil {
		return nil, err
	}

	return &Ledger{
		trades: trades,
		lastTS: maxTimestamp(trades),
		logger: logger,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}, nil
}

// OnChange registers a listener fired after every successful mutation.
func (l *Ledger) OnChange(fn ChangeFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, fn)
}

// Add validates input, assigns a fresh id and creation timestamp, and
// appends the trade.
func (l *Ledger) Add(input models.TradeInput) (models.Trade, error) {
	trade, err := validateInput(input)
	if err != nil {
		return models.Trade{}, err
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	l.mu.Lock()
	trade.ID = l.newID()
	trade.Timestamp = l.nextTimestamp()

	next := make([]models.Trade, len(l.trades), len(l.trades)+1)
	copy(next, l.trades)
	l.trades = append(next, trade)
	l.version++
	version := l.version
	l.mu.Unlock()

	l.logger.Debug().
		Str("id", trade.ID).
		Str("symbol", trade.Symbol).
		Float64("amount", trade.Amount).
		Uint64("version", version).
		Msg("Trade added")

	l.notify()
	return trade, nil
}

// Remove deletes the trade with id. Removing an absent id is a no-op and
// does not fire listeners.
func (l *Ledger) Remove(id string) {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	l.mu.Lock()
	idx := -1
	for i := range l.trades {
		if l.trades[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		l.mu.Unlock()
		return
	}

	next := make([]models.Trade, 0, len(l.trades)-1)
	next = append(next, l.trades[:idx]...)
	next = append(next, l.trades[idx+1:]...)
	l.trades = next
	l.version++
	l.mu.Unlock()

	l.logger.Debug().Str("id", id).Msg("Trade removed")

	l.notify()
}

// ReplaceAll atomically replaces the full ledger. On a validation failure
// the ledger is left untouched.
func (l *Ledger) ReplaceAll(trades []models.Trade) error {
	validated, err := validateTrades(trades)
	if err != nil {
		return err
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	l.mu.Lock()
	l.trades = validated
	if ts := maxTimestamp(validated); ts > l.lastTS {
		l.lastTS = ts
	}
	l.version++
	l.mu.Unlock()

	l.logger.Info().Int("trades", len(validated)).Msg("Ledger replaced")

	l.notify()
	return nil
}

// Import decodes a workspace file and replaces the ledger with its trades.
func (l *Ledger) Import(data []byte) error {
	trades, err := DecodeWorkspace(data)
	if err != nil {
		return err
	}
	return l.ReplaceAll(trades)
}

// List returns a copy of the trades in insertion order.
func (l *Ledger) List() []models.Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// Get returns the trade with id.
func (l *Ledger) Get(id string) (models.Trade, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, t := range l.trades {
		if t.ID == id {
			return t, true
		}
	}
	return models.Trade{}, false
}

// Len returns the number of trades.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.trades)
}

// Version increments on every successful mutation.
func (l *Ledger) Version() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.version
}

// Snapshot returns the trades together with the version they belong to.
func (l *Ledger) Snapshot() ([]models.Trade, uint64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.Trade, len(l.trades))
	copy(out, l.trades)
	return out, l.version
}

// Symbols returns the distinct symbols present in the ledger, in order of
// first appearance.
func (l *Ledger) Symbols() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return DistinctSymbols(l.trades)
}

// DistinctSymbols returns the distinct normalized symbols of trades in
// first-seen order.
func DistinctSymbols(trades []models.Trade) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, t := range trades {
		sym := models.NormalizeSymbol(t.Symbol)
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return out
}

// nextTimestamp returns a strictly increasing creation time. Caller holds mu.
func (l *Ledger) nextTimestamp() int64 {
	ts := l.now().UnixMilli()
	if ts <= l.lastTS {
		ts = l.lastTS + 1
	}
	l.lastTS = ts
	return ts
}

// notify fans the current trade list out to listeners. Caller holds writeMu.
func (l *Ledger) notify() {
	l.mu.RLock()
	listeners := l.listeners
	trades := l.trades
	l.mu.RUnlock()

	for _, fn := range listeners {
		out := make([]models.Trade, len(trades))
		copy(out, trades)
		fn(out)
	}
}

func maxTimestamp(trades []models.Trade) int64 {
	var ts int64
	for _, t := range trades {
		if t.Timestamp > ts {
			ts = t.Timestamp
		}
	}
	return ts
}

// Ensure Ledger implements LedgerService
var _ interfaces.LedgerService = (*Ledger)(nil)
