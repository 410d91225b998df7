package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/aether/internal/app"
	"github.com/bobmcallan/aether/internal/common"
	"github.com/bobmcallan/aether/internal/interfaces"
	"github.com/bobmcallan/aether/internal/models"
	"github.com/bobmcallan/aether/internal/storage"
)

// --- Mocks ---

type mockProvider struct {
	mu     sync.Mutex
	quotes map[string]models.MarketSnapshot
	err    error
}

func (m *mockProvider) FetchQuotes(_ context.Context, symbols []string) (map[string]models.MarketSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]models.MarketSnapshot)
	for _, s := range symbols {
		if q, ok := m.quotes[s]; ok {
			out[s] = q
		}
	}
	return out, nil
}

type mockGemini struct {
	response string
	err      error
}

func (m *mockGemini) GenerateContent(ctx context.Context, prompt string) (string, error) {
	return m.GenerateJSON(ctx, prompt)
}

func (m *mockGemini) GenerateJSON(context.Context, string) (string, error) {
	return m.response, m.err
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, provider *mockProvider, advisor interfaces.GeminiClient, mutate ...func(*common.Config)) (*Server, *app.App) {
	t.Helper()
	if provider == nil {
		provider = &mockProvider{}
	}

	cfg := common.NewDefaultConfig()
	cfg.Market.Interval = "1h"
	cfg.Storage.Path = filepath.Join(t.TempDir(), "trades.json")
	for _, fn := range mutate {
		fn(cfg)
	}

	store, err := storage.NewFileStore(cfg.Storage.Path, 0, nil)
	require.NoError(t, err)

	a, err := app.New(context.Background(), cfg, common.NewSilentLogger(), store, provider, advisor)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	s := NewServer(a)
	s.now = func() time.Time { return testNow }
	return s, a
}

func doRequest(t *testing.T, h http.Handler, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v), "body: %s", rr.Body.String())
}

func addTrade(t *testing.T, a *app.App, symbol string, price, amount, fee float64) models.Trade {
	t.Helper()
	tr, err := a.Ledger.Add(models.TradeInput{Symbol: symbol, EntryPrice: price, Amount: amount, Fee: fee, Exchange: "Binance"})
	require.NoError(t, err)
	return tr
}

// --- System ---

func TestHandleHealth(t *testing.T) {
	s, a := newTestServer(t, nil, nil)
	addTrade(t, a, "BTC", 50000, 0.1, 0)

	rr := doRequest(t, s.Handler(), http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]interface{}
	decodeBody(t, rr, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(1), body["trades"])
	assert.Equal(t, false, body["advisor"])
}

func TestHandleVersion(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)

	rr := doRequest(t, s.Handler(), http.MethodGet, "/api/version", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var info common.BuildInfo
	decodeBody(t, rr, &info)
	assert.Equal(t, common.Version, info.Version)
}

func TestHandleHealth_MethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)

	rr := doRequest(t, s.Handler(), http.MethodPost, "/api/health", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, "GET, HEAD", rr.Header().Get("Allow"))
}

// --- Ledger ---

func TestTrades_AddAndList(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)
	h := s.Handler()

	rr := doRequest(t, h, http.MethodPost, "/api/trades", `{"symbol":" btc ","entryPrice":50000,"amount":0.1,"fee":5,"exchange":"Binance"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created models.Trade
	decodeBody(t, rr, &created)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "BTC", created.Symbol)
	assert.NotZero(t, created.Timestamp)

	rr = doRequest(t, h, http.MethodGet, "/api/trades", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var list struct {
		Trades  []models.Trade `json:"trades"`
		Count   int            `json:"count"`
		Version uint64         `json:"version"`
	}
	decodeBody(t, rr, &list)
	require.Len(t, list.Trades, 1)
	assert.Equal(t, created.ID, list.Trades[0].ID)
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, uint64(1), list.Version)
}

func TestTrades_AddValidationError(t *testing.T) {
	s, a := newTestServer(t, nil, nil)

	rr := doRequest(t, s.Handler(), http.MethodPost, "/api/trades", `{"symbol":"BTC","entryPrice":0,"amount":1}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var body ErrorResponse
	decodeBody(t, rr, &body)
	assert.Equal(t, CodeValidation, body.Code)
	assert.Equal(t, "entryPrice", body.Field)
	assert.Equal(t, 0, a.Ledger.Len())
}

func TestTrades_AddOverflowingCostRejected(t *testing.T) {
	s, a := newTestServer(t, nil, nil)

	rr := doRequest(t, s.Handler(), http.MethodPost, "/api/trades", `{"symbol":"BTC","entryPrice":1e200,"amount":1e200}`)
	require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())

	var body ErrorResponse
	decodeBody(t, rr, &body)
	assert.Equal(t, CodeValidation, body.Code)
	assert.Equal(t, "amount", body.Field)
	assert.Equal(t, 0, a.Ledger.Len())

	rr = doRequest(t, s.Handler(), http.MethodGet, "/api/portfolio", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Body.String())
}

func TestTrades_AddInvalidJSON(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)

	rr := doRequest(t, s.Handler(), http.MethodPost, "/api/trades", `{"symbol":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTrades_ListRecent(t *testing.T) {
	s, a := newTestServer(t, nil, nil)
	first := addTrade(t, a, "BTC", 50000, 0.1, 0)
	second := addTrade(t, a, "ETH", 3000, 1, 0)

	rr := doRequest(t, s.Handler(), http.MethodGet, "/api/trades?sort=recent", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var list struct {
		Trades []models.Trade `json:"trades"`
	}
	decodeBody(t, rr, &list)
	require.Len(t, list.Trades, 2)
	assert.Equal(t, second.ID, list.Trades[0].ID)
	assert.Equal(t, first.ID, list.Trades[1].ID)

	// Ledger order untouched
	assert.Equal(t, first.ID, a.Ledger.List()[0].ID)
}

func TestTrades_ListBadSort(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)

	rr := doRequest(t, s.Handler(), http.MethodGet, "/api/trades?sort=price", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTrades_GetAndDelete(t *testing.T) {
	s, a := newTestServer(t, nil, nil)
	h := s.Handler()
	tr := addTrade(t, a, "BTC", 50000, 0.1, 0)

	rr := doRequest(t, h, http.MethodGet, "/api/trades/"+tr.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var got models.Trade
	decodeBody(t, rr, &got)
	assert.Equal(t, tr, got)

	rr = doRequest(t, h, http.MethodDelete, "/api/trades/"+tr.ID, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, 0, a.Ledger.Len())

	// Idempotent
	rr = doRequest(t, h, http.MethodDelete, "/api/trades/"+tr.ID, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = doRequest(t, h, http.MethodGet, "/api/trades/"+tr.ID, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTrades_ItemMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)

	rr := doRequest(t, s.Handler(), http.MethodPost, "/api/trades/abc", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

// --- Portfolio ---

func TestPortfolio_ViewAfterSync(t *testing.T) {
	provider := &mockProvider{quotes: map[string]models.MarketSnapshot{
		"BTC": {Symbol: "BTC", Price: 60000, Change24h: 2},
	}}
	s, a := newTestServer(t, provider, nil)
	h := s.Handler()
	addTrade(t, a, "BTC", 50000, 0.1, 5)

	rr := doRequest(t, h, http.MethodPost, "/api/market/sync", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var result models.SyncResult
	decodeBody(t, rr, &result)
	assert.False(t, result.Failed)
	assert.Equal(t, []string{"BTC"}, result.Requested)

	rr = doRequest(t, h, http.MethodGet, "/api/portfolio", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var view models.PortfolioView
	decodeBody(t, rr, &view)
	require.Len(t, view.Holdings, 1)
	assert.InDelta(t, 6000, view.Holdings[0].MarketValue, 1e-9)
	assert.InDelta(t, 995, view.Stats.TotalPnl, 1e-9)
	assert.Equal(t, a.Cache.Version(), view.CacheVersion)

	rr = doRequest(t, h, http.MethodGet, "/api/portfolio/stats", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var stats models.PortfolioStats
	decodeBody(t, rr, &stats)
	assert.InDelta(t, 6000, stats.TotalValue, 1e-9)
	assert.InDelta(t, 2, stats.WeightedChange24h, 1e-9)
}

func TestPortfolio_SyncProviderFailureReported(t *testing.T) {
	s, a := newTestServer(t, &mockProvider{err: errors.New("exchange down")}, nil)
	addTrade(t, a, "BTC", 50000, 0.1, 0)

	rr := doRequest(t, s.Handler(), http.MethodPost, "/api/market/sync", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var result models.SyncResult
	decodeBody(t, rr, &result)
	assert.True(t, result.Failed)
	assert.Contains(t, result.Error, "exchange down")
}

func TestPortfolio_HoldingsOpenFilter(t *testing.T) {
	s, a := newTestServer(t, nil, nil)
	h := s.Handler()
	addTrade(t, a, "BTC", 50000, 0.1, 0)
	addTrade(t, a, "ETH", 3000, 1, 0)
	addTrade(t, a, "ETH", 3500, -1, 0)

	rr := doRequest(t, h, http.MethodGet, "/api/portfolio/holdings", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var all struct {
		Holdings []models.Holding `json:"holdings"`
	}
	decodeBody(t, rr, &all)
	assert.Len(t, all.Holdings, 2)

	rr = doRequest(t, h, http.MethodGet, "/api/portfolio/holdings?open=true", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var open struct {
		Holdings []models.Holding `json:"holdings"`
	}
	decodeBody(t, rr, &open)
	require.Len(t, open.Holdings, 1)
	assert.Equal(t, "BTC", open.Holdings[0].Symbol)
}

func TestPortfolio_Chart(t *testing.T) {
	provider := &mockProvider{quotes: map[string]models.MarketSnapshot{
		"BTC": {Symbol: "BTC", Price: 60000},
	}}
	s, a := newTestServer(t, provider, nil)
	h := s.Handler()
	addTrade(t, a, "BTC", 50000, 0.1, 0)

	rr := doRequest(t, h, http.MethodGet, "/api/portfolio/chart.png", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	a.SyncNow(context.Background())

	rr = doRequest(t, h, http.MethodGet, "/api/portfolio/chart.png", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("\x89PNG")))
}

// --- Market ---

func TestMarket_Quotes(t *testing.T) {
	provider := &mockProvider{quotes: map[string]models.MarketSnapshot{
		"BTC": {Symbol: "BTC", Price: 60000},
	}}
	s, a := newTestServer(t, provider, nil)
	addTrade(t, a, "BTC", 50000, 0.1, 0)
	addTrade(t, a, "USDT", 1, 100, 0)
	a.SyncNow(context.Background())

	rr := doRequest(t, s.Handler(), http.MethodGet, "/api/market/quotes", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var qs models.QuoteSet
	decodeBody(t, rr, &qs)
	assert.InDelta(t, 60000, qs.Quotes["BTC"].Price, 1e-9)
	assert.InDelta(t, 1, qs.Quotes["USDT"].Price, 1e-9)
}

func TestMarket_SyncRequiresPost(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)

	rr := doRequest(t, s.Handler(), http.MethodGet, "/api/market/sync", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

// --- Workspace ---

func TestWorkspace_ExportImportRoundTrip(t *testing.T) {
	s, a := newTestServer(t, nil, nil)
	h := s.Handler()
	addTrade(t, a, "BTC", 50000, 0.1, 5)
	addTrade(t, a, "ETH", 3000, 2, 1)
	before := a.Ledger.List()

	rr := doRequest(t, h, http.MethodGet, "/api/workspace/export", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `attachment; filename="aether_prime_backup_2026-03-01.json"`, rr.Header().Get("Content-Disposition"))

	var ws models.Workspace
	decodeBody(t, rr, &ws)
	assert.Equal(t, models.WorkspaceVersion, ws.Version)
	assert.Equal(t, testNow.UnixMilli(), ws.Timestamp)
	require.Len(t, ws.Trades, 2)
	exported := rr.Body.String()

	a.Ledger.Remove(before[0].ID)
	require.Equal(t, 1, a.Ledger.Len())

	rr = doRequest(t, h, http.MethodPost, "/api/workspace/import", exported)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body map[string]interface{}
	decodeBody(t, rr, &body)
	assert.Equal(t, float64(2), body["imported"])
	assert.Equal(t, before, a.Ledger.List())
}

func TestWorkspace_ImportRejectedLeavesLedger(t *testing.T) {
	s, a := newTestServer(t, nil, nil)
	h := s.Handler()
	addTrade(t, a, "BTC", 50000, 0.1, 0)
	before := a.Ledger.List()

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing trades", `{"version":"4.2.0"}`, "trades"},
		{"trades not array", `{"trades":{"id":"x"}}`, "trades"},
		{"bad trade", `{"trades":[{"id":"t1","symbol":"BTC","entryPrice":-1,"amount":1,"fee":0,"exchange":"","timestamp":1}]}`, "trades[0].entryPrice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, h, http.MethodPost, "/api/workspace/import", tt.body)
			require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())

			var body ErrorResponse
			decodeBody(t, rr, &body)
			assert.Equal(t, CodeValidation, body.Code)
			assert.Equal(t, tt.field, body.Field)
			assert.Equal(t, before, a.Ledger.List())
		})
	}
}

// --- Advisor ---

func TestAdvisor_NotConfigured(t *testing.T) {
	s, a := newTestServer(t, nil, nil)
	addTrade(t, a, "BTC", 50000, 0.1, 0)

	rr := doRequest(t, s.Handler(), http.MethodPost, "/api/advisor/report", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"available":false,"report":null,"reason":"advisor not configured"}`, rr.Body.String())

	rr = doRequest(t, s.Handler(), http.MethodGet, "/api/health", "")
	var health map[string]interface{}
	decodeBody(t, rr, &health)
	assert.Equal(t, false, health["advisor"])
}

func TestAdvisor_GeneratorFailure(t *testing.T) {
	s, a := newTestServer(t, nil, &mockGemini{err: errors.New("quota exceeded")})
	addTrade(t, a, "BTC", 50000, 0.1, 0)

	rr := doRequest(t, s.Handler(), http.MethodPost, "/api/advisor/report", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"available":false,"report":null}`, rr.Body.String())
}

func TestAdvisor_Report(t *testing.T) {
	gem := &mockGemini{response: `{"riskLevel":"High","concentrationRisk":"BTC dominates","rebalanceStrategy":"Trim BTC","marketOutlook":"Volatile","confidenceScore":72}`}
	s, a := newTestServer(t, nil, gem)
	addTrade(t, a, "BTC", 50000, 0.1, 0)

	rr := doRequest(t, s.Handler(), http.MethodPost, "/api/advisor/report", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Available bool                   `json:"available"`
		Report    *models.AdvisoryReport `json:"report"`
	}
	decodeBody(t, rr, &body)
	assert.True(t, body.Available)
	require.NotNil(t, body.Report)
	assert.True(t, a.Reports.Available())
	assert.Equal(t, "High", body.Report.RiskLevel)
	assert.InDelta(t, 72, body.Report.ConfidenceScore, 1e-9)
}

// --- Metrics ---

func TestMetricsEndpoint(t *testing.T) {
	s, a := newTestServer(t, nil, nil)
	addTrade(t, a, "BTC", 50000, 0.1, 0)

	rr := doRequest(t, s.Handler(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "aether_ledger_trades 1")
}
