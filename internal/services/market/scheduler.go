package market

import (
	"context"
	"sync"
	"time"

	"github.com/bobmcallan/aether/internal/common"
	"github.com/bobmcallan/aether/internal/interfaces"
)

// Scheduler drives periodic syncs and out-of-band syncs when the tracked
// symbol set changes. Runs are serialized on a single goroutine.
type Scheduler struct {
	syncer   interfaces.SyncService
	symbols  func() []string
	interval time.Duration
	logger   *common.Logger

	trigger chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a scheduler that syncs symbols() every interval.
func NewScheduler(syncer interfaces.SyncService, symbols func() []string, interval time.Duration, logger *common.Logger) *Scheduler {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Scheduler{
		syncer:   syncer,
		symbols:  symbols,
		interval: interval,
		logger:   logger,
		trigger:  make(chan struct{}, 1),
	}
}

// Start performs an immediate sync and then runs the loop until Stop or
// ctx is cancelled. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(ctx, s.done)

	s.logger.Info().Dur("interval", s.interval).Msg("Market sync scheduler: started")
}

// Trigger requests a sync as soon as possible. Requests made while one is
// already pending are coalesced.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Stop cancels the loop and waits for it to exit. Any sync in flight is
// cancelled and its result discarded.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	s.syncOnce(ctx, "startup")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Market sync scheduler: stopped")
			return
		case <-ticker.C:
			s.syncOnce(ctx, "interval")
		case <-s.trigger:
			// restart the period so a symbol change does not double up with a tick
			ticker.Reset(s.interval)
			s.syncOnce(ctx, "symbols changed")
		}
	}
}

func (s *Scheduler) syncOnce(ctx context.Context, reason string) {
	if ctx.Err() != nil {
		return
	}
	result := s.syncer.Sync(ctx, s.symbols())
	s.logger.Debug().
		Str("reason", reason).
		Int("requested", len(result.Requested)).
		Bool("failed", result.Failed).
		Bool("discarded", result.Discarded).
		Msg("Market sync scheduler: run")
}
