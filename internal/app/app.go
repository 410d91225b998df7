package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bobmcallan/aether/internal/clients/binance"
	"github.com/bobmcallan/aether/internal/clients/gemini"
	"github.com/bobmcallan/aether/internal/common"
	"github.com/bobmcallan/aether/internal/interfaces"
	"github.com/bobmcallan/aether/internal/metrics"
	"github.com/bobmcallan/aether/internal/models"
	"github.com/bobmcallan/aether/internal/services/ledger"
	"github.com/bobmcallan/aether/internal/services/market"
	"github.com/bobmcallan/aether/internal/services/portfolio"
	"github.com/bobmcallan/aether/internal/services/report"
	"github.com/bobmcallan/aether/internal/storage"
)

const persistTimeout = 10 * time.Second

// App holds the ledger, market data pipeline and derived portfolio engine,
// wired so that every ledger mutation is persisted, re-derived and, when the
// symbol set changes, re-priced.
type App struct {
	Config       *common.Config
	Logger       *common.Logger
	Metrics      *metrics.Metrics
	Store        interfaces.TradeStore
	Ledger       *ledger.Ledger
	Cache        *market.Cache
	Synchronizer *market.Synchronizer
	Scheduler    *market.Scheduler
	Engine       *portfolio.Engine
	Reports      *report.Service
	StartupTime  time.Time

	symbolsMu sync.Mutex
	symbolKey string
	closeOnce sync.Once
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// ResolveConfigPath returns configPath, AETHER_CONFIG, aether.toml next to
// the binary, or config/aether.toml, in that order.
func ResolveConfigPath(configPath string) string {
	if configPath == "" {
		configPath = os.Getenv("AETHER_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "aether.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/aether.toml" // fallback for development
		}
	}
	return configPath
}

// NewApp loads configuration and builds the application with the Binance
// provider, the configured trade store and, if a key is available, Gemini.
func NewApp(ctx context.Context, configPath string) (*App, error) {
	common.LoadVersionFromFile()

	config, err := common.LoadConfig(ResolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve relative storage path to binary directory
	if config.Storage.Path != "" && !filepath.IsAbs(config.Storage.Path) {
		config.Storage.Path = filepath.Join(getBinaryDir(), config.Storage.Path)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	store, err := storage.NewTradeStore(ctx, config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	provider := binance.NewClient(
		binance.WithBaseURL(config.Clients.Binance.BaseURL),
		binance.WithQuoteAsset(config.Clients.Binance.QuoteAsset),
		binance.WithRateLimit(config.Clients.Binance.RateLimit),
		binance.WithTimeout(config.Clients.Binance.GetTimeout()),
		binance.WithLogger(logger),
	)

	var advisor interfaces.GeminiClient
	geminiKey, err := common.ResolveAPIKey("gemini_api_key", config.Clients.Gemini.APIKey)
	if err != nil {
		logger.Warn().Msg("Gemini API key not configured - advisory reports will be unavailable")
	} else {
		client, err := gemini.NewClient(ctx, geminiKey,
			gemini.WithLogger(logger),
			gemini.WithModel(config.Clients.Gemini.Model),
		)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize Gemini client")
		} else {
			advisor = client
		}
	}

	a, err := New(ctx, config, logger, store, provider, advisor)
	if err != nil {
		store.Close()
		return nil, err
	}
	return a, nil
}

// New wires the application from already constructed collaborators.
// advisor may be nil.
func New(
	ctx context.Context,
	config *common.Config,
	logger *common.Logger,
	store interfaces.TradeStore,
	provider interfaces.MarketDataProvider,
	advisor interfaces.GeminiClient,
) (*App, error) {
	startupStart := time.Now()

	initial, err := store.LoadTrades(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load trades: %w", err)
	}

	led, err := ledger.NewLedger(initial, logger)
	if err != nil {
		return nil, fmt.Errorf("persisted trades are invalid: %w", err)
	}

	m := metrics.NewMetrics()
	cache := market.NewCache()
	syncer := market.NewSynchronizer(provider, cache, config.Market.StableSymbols, config.Market.GetTimeout(), m, logger)
	scheduler := market.NewScheduler(syncer, led.Symbols, config.Market.GetInterval(), logger)
	engine := portfolio.NewEngine(led, cache, m, logger)

	a := &App{
		Config:       config,
		Logger:       logger,
		Metrics:      m,
		Store:        store,
		Ledger:       led,
		Cache:        cache,
		Synchronizer: syncer,
		Scheduler:    scheduler,
		Engine:       engine,
		Reports:      report.NewService(advisor, logger),
		StartupTime:  startupStart,
		symbolKey:    market.SymbolKey(led.Symbols()),
	}

	m.SetLedgerTrades(led.Len())
	led.OnChange(a.onLedgerChange)
	syncer.OnReplace(func(*models.QuoteSet) { engine.Refresh() })

	logger.Info().
		Int("trades", led.Len()).
		Int("symbols", len(led.Symbols())).
		Dur("startup", time.Since(startupStart)).
		Msg("App initialized")

	return a, nil
}

// onLedgerChange persists, re-derives and, if the symbol set moved,
// requests an immediate sync.
func (a *App) onLedgerChange(trades []models.Trade) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := a.Store.SaveTrades(ctx, trades); err != nil {
		a.Logger.Error().Err(err).Int("trades", len(trades)).Msg("Failed to persist trades")
	}

	a.Metrics.SetLedgerTrades(len(trades))
	a.Engine.Refresh()

	key := market.SymbolKey(ledger.DistinctSymbols(trades))
	a.symbolsMu.Lock()
	changed := key != a.symbolKey
	a.symbolKey = key
	a.symbolsMu.Unlock()

	if changed {
		a.Logger.Debug().Str("symbols", key).Msg("Symbol set changed, scheduling sync")
		a.Scheduler.Trigger()
	}
}

// StartScheduler begins periodic market syncs.
func (a *App) StartScheduler(ctx context.Context) {
	a.Scheduler.Start(ctx)
}

// SyncNow runs a sync for the current ledger symbols outside the schedule.
func (a *App) SyncNow(ctx context.Context) *models.SyncResult {
	return a.Synchronizer.Sync(ctx, a.Ledger.Symbols())
}

// Close stops the scheduler, discards in-flight syncs and releases storage.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		a.Scheduler.Stop()
		a.Synchronizer.Close()
		if err := a.Store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close trade store")
		}
		a.Logger.Info().Msg("App closed")
	})
}
