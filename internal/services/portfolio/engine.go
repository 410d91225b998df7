package portfolio

import (
	"sync"
	"time"

	"github.com/bobmcallan/aether/internal/common"
	"github.com/bobmcallan/aether/internal/interfaces"
	"github.com/bobmcallan/aether/internal/metrics"
	"github.com/bobmcallan/aether/internal/models"
)

// LedgerSource supplies a consistent trade list and its version.
type LedgerSource interface {
	Snapshot() ([]models.Trade, uint64)
}

// QuoteSource supplies the current market data cache generation.
type QuoteSource interface {
	Load() *models.QuoteSet
}

// Engine keeps the derived portfolio view in step with the ledger and the
// cache. A view is recomputed only when either input version has moved,
// and published views are shared and must be treated as read-only.
type Engine struct {
	ledger  LedgerSource
	quotes  QuoteSource
	metrics *metrics.Metrics
	logger  *common.Logger
	now     func() time.Time

	mu        sync.Mutex
	view      *models.PortfolioView
	published *models.PortfolioView
	subs      map[int]chan *models.PortfolioView
	nextSub   int
}

// NewEngine creates an engine over ledger and quotes. m may be nil.
func NewEngine(ledger LedgerSource, quotes QuoteSource, m *metrics.Metrics, logger *common.Logger) *Engine {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Engine{
		ledger:  ledger,
		quotes:  quotes,
		metrics: m,
		logger:  logger,
		now:     time.Now,
		subs:    make(map[int]chan *models.PortfolioView),
	}
}

// View returns the view for the current ledger and cache versions.
func (e *Engine) View() *models.PortfolioView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewLocked()
}

// Holdings returns the holdings of the current view, ordered by market value.
func (e *Engine) Holdings() []models.Holding {
	return e.View().Holdings
}

// Stats returns the account statistics of the current view.
func (e *Engine) Stats() models.PortfolioStats {
	return e.View().Stats
}

// viewLocked reads both inputs while e.mu is held, so views computed one
// after another never go back in ledger or cache version.
func (e *Engine) viewLocked() *models.PortfolioView {
	trades, ledgerVersion := e.ledger.Snapshot()
	quotes := e.quotes.Load()

	if v := e.view; v != nil && v.LedgerVersion == ledgerVersion && v.CacheVersion == quotes.Version {
		return v
	}

	holdings := ComputeHoldings(trades, quotes)
	view := &models.PortfolioView{
		Holdings:      holdings,
		Stats:         ComputeStats(holdings, trades),
		LedgerVersion: ledgerVersion,
		CacheVersion:  quotes.Version,
		PricesAt:      quotes.UpdatedAt,
		ComputedAt:    e.now(),
	}
	e.view = view
	e.metrics.IncViewsComputed()

	e.logger.Debug().
		Uint64("ledger_version", ledgerVersion).
		Uint64("cache_version", quotes.Version).
		Int("holdings", len(holdings)).
		Float64("total_value", view.Stats.TotalValue).
		Msg("Portfolio view recomputed")

	return view
}

// Refresh recomputes the view if an input changed and pushes it to
// subscribers. Wired to ledger changes and cache replacements.
func (e *Engine) Refresh() {
	e.mu.Lock()
	defer e.mu.Unlock()

	view := e.viewLocked()
	if view == e.published {
		return
	}
	e.published = view
	for _, ch := range e.subs {
		offer(ch, view)
	}
}

// Subscribe returns a channel receiving each new view. Slow readers only
// ever see the latest view. The current view is delivered immediately.
// The returned func unsubscribes and closes the channel.
func (e *Engine) Subscribe() (<-chan *models.PortfolioView, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextSub
	e.nextSub++
	ch := make(chan *models.PortfolioView, 1)
	e.subs[id] = ch
	ch <- e.viewLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			delete(e.subs, id)
			close(ch)
		})
	}
}

// offer replaces any undelivered view with v. Caller holds e.mu, so no
// other sender competes for the slot.
func offer(ch chan *models.PortfolioView, v *models.PortfolioView) {
	select {
	case <-ch:
	default:
	}
	ch <- v
}

// Ensure Engine implements PortfolioService
var _ interfaces.PortfolioService = (*Engine)(nil)
