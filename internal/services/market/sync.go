// Package market provides market data synchronization
package market

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bobmcallan/aether/internal/common"
	"github.com/bobmcallan/aether/internal/interfaces"
	"github.com/bobmcallan/aether/internal/metrics"
	"github.com/bobmcallan/aether/internal/models"
)

// ReplaceFunc is invoked after a sync publishes a new cache generation.
type ReplaceFunc func(quotes *models.QuoteSet)

// Synchronizer refreshes the market data cache from a provider.
//
// A sync never surfaces an error: on provider failure the previous cache
// stays in place. Syncs may overlap; a result is only published if no
// later-started sync has already been published, and nothing is published
// once the synchronizer is closed.
type Synchronizer struct {
	provider interfaces.MarketDataProvider
	cache    *Cache
	stable   map[string]bool
	timeout  time.Duration
	metrics  *metrics.Metrics
	logger   *common.Logger
	now      func() time.Time

	seq     atomic.Uint64
	closed  atomic.Bool
	mu      sync.Mutex // guards applied and listeners
	applied uint64

	listeners []ReplaceFunc
}

// NewSynchronizer creates a synchronizer. stableSymbols are priced at 1
// without consulting the provider. m may be nil.
func NewSynchronizer(
	provider interfaces.MarketDataProvider,
	cache *Cache,
	stableSymbols []string,
	timeout time.Duration,
	m *metrics.Metrics,
	logger *common.Logger,
) *Synchronizer {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	stable := make(map[string]bool, len(stableSymbols))
	for _, s := range stableSymbols {
		if s = models.NormalizeSymbol(s); s != "" {
			stable[s] = true
		}
	}
	return &Synchronizer{
		provider: provider,
		cache:    cache,
		stable:   stable,
		timeout:  timeout,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// OnReplace registers a listener fired after each published generation.
func (s *Synchronizer) OnReplace(fn ReplaceFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Quotes returns the current cache generation.
func (s *Synchronizer) Quotes() *models.QuoteSet {
	return s.cache.Load()
}

// Close stops the synchronizer from publishing. Calls still in flight
// complete but their results are discarded.
func (s *Synchronizer) Close() {
	s.closed.Store(true)
}

// IsStable reports whether symbol is synthesized at price 1.
func (s *Synchronizer) IsStable(symbol string) bool {
	return s.stable[models.NormalizeSymbol(symbol)]
}

// Sync fetches quotes for symbols and replaces the cache. The cache after a
// successful sync contains exactly the requested symbols the provider (or
// the stable set) could price.
func (s *Synchronizer) Sync(ctx context.Context, symbols []string) *models.SyncResult {
	start := s.now()
	seq := s.seq.Add(1)
	requested := normalizeSymbols(symbols)

	result := &models.SyncResult{Requested: requested}

	if s.closed.Load() {
		return s.discard(result, start, "synchronizer closed")
	}

	quotes := make(map[string]models.MarketSnapshot, len(requested))
	remote := make([]string, 0, len(requested))
	for _, sym := range requested {
		if s.stable[sym] {
			quotes[sym] = models.StableSnapshot(sym)
			continue
		}
		remote = append(remote, sym)
	}

	if len(remote) > 0 {
		fetched, err := s.fetch(ctx, remote)

		if s.closed.Load() || ctx.Err() != nil {
			return s.discard(result, start, "cancelled while provider call in flight")
		}

		if err != nil {
			result.Failed = true
			result.Error = err.Error()
			result.Quotes = s.cache.Load()
			result.Elapsed = s.now().Sub(start)
			s.metrics.ObserveSync(metrics.ResultFailed, result.Elapsed, 0, 0, 0)
			s.logger.Warn().
				Err(err).
				Int("symbols", len(remote)).
				Uint64("cache_version", result.Quotes.Version).
				Msg("Market sync failed, keeping previous cache")
			return result
		}

		for _, sym := range remote {
			snap, ok := fetched[sym]
			if !ok || snap.Price <= 0 {
				result.Missing = append(result.Missing, sym)
				continue
			}
			snap.Symbol = sym
			quotes[sym] = snap
		}
	}

	s.mu.Lock()
	if seq < s.applied {
		s.mu.Unlock()
		return s.discard(result, start, "superseded by a later sync")
	}
	s.applied = seq
	published := s.cache.Replace(quotes, s.now())
	listeners := s.listeners
	s.mu.Unlock()

	result.Quotes = published
	result.Elapsed = s.now().Sub(start)
	s.metrics.ObserveSync(metrics.ResultOK, result.Elapsed, published.Len(), len(result.Missing), published.Version)

	if len(result.Missing) > 0 {
		s.logger.Info().Strs("missing", result.Missing).Msg("Provider returned no quote for some symbols")
	}
	s.logger.Debug().
		Int("symbols", published.Len()).
		Uint64("cache_version", published.Version).
		Dur("elapsed", result.Elapsed).
		Msg("Market sync complete")

	for _, fn := range listeners {
		fn(published)
	}

	return result
}

func (s *Synchronizer) fetch(ctx context.Context, symbols []string) (map[string]models.MarketSnapshot, error) {
	if s.provider == nil {
		return nil, errors.New("no market data provider configured")
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.provider.FetchQuotes(ctx, symbols)
}

func (s *Synchronizer) discard(result *models.SyncResult, start time.Time, reason string) *models.SyncResult {
	result.Discarded = true
	result.Error = reason
	result.Quotes = s.cache.Load()
	result.Elapsed = s.now().Sub(start)
	s.metrics.ObserveSync(metrics.ResultDiscarded, result.Elapsed, 0, 0, 0)
	s.logger.Debug().Str("reason", reason).Msg("Market sync result discarded")
	return result
}

// normalizeSymbols upper-cases, drops blanks and de-duplicates, returning a
// sorted list so equal sets compare equal.
func normalizeSymbols(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		sym = models.NormalizeSymbol(sym)
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// SymbolKey returns a canonical key for a symbol set.
func SymbolKey(symbols []string) string {
	return strings.Join(normalizeSymbols(symbols), ",")
}

// Ensure Synchronizer implements SyncService
var _ interfaces.SyncService = (*Synchronizer)(nil)
