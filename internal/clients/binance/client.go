// Package binance provides a market data client for the Binance public API
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/aether/internal/common"
	"github.com/bobmcallan/aether/internal/interfaces"
	"github.com/bobmcallan/aether/internal/models"
)

// flexFloat64 handles JSON values that may be either a number or a string.
// Binance encodes all decimals as strings.
type flexFloat64 float64

func (f *flexFloat64) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexFloat64(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" {
			*f = 0
			return nil
		}
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat64(num)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into float64", string(data))
}

const (
	DefaultBaseURL    = "https://api.binance.com"
	DefaultQuoteAsset = "USDT"
	DefaultTimeout    = 10 * time.Second
	DefaultRateLimit  = 5 // requests per second

	tickerPath = "/api/v3/ticker/24hr"
)

// Client implements MarketDataProvider against the 24h rolling ticker.
type Client struct {
	baseURL    string
	quoteAsset string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL = strings.TrimRight(baseURL, "/"); baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithQuoteAsset sets the asset every symbol is paired against, e.g. BTC -> BTCUSDT
func WithQuoteAsset(asset string) ClientOption {
	return func(c *Client) {
		if asset = strings.ToUpper(strings.TrimSpace(asset)); asset != "" {
			c.quoteAsset = asset
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a new Binance client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		quoteAsset: DefaultQuoteAsset,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Code       int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Binance API error: %s (status: %d, code: %d, endpoint: %s)", e.Message, e.StatusCode, e.Code, e.Endpoint)
}

type tickerResponse struct {
	Symbol             string      `json:"symbol"`
	LastPrice          flexFloat64 `json:"lastPrice"`
	PriceChangePercent flexFloat64 `json:"priceChangePercent"`
	HighPrice          flexFloat64 `json:"highPrice"`
	LowPrice           flexFloat64 `json:"lowPrice"`
	QuoteVolume        flexFloat64 `json:"quoteVolume"`
}

type errorResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// get performs a rate-limited GET request
func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("url", c.baseURL+path).Msg("Binance API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Endpoint:   path,
		}
		var er errorResponse
		if json.Unmarshal(body, &er) == nil && er.Msg != "" {
			apiErr.Code = er.Code
			apiErr.Message = er.Msg
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// FetchQuotes returns 24h snapshots for symbols, keyed by the bare symbol.
// The full ticker list is fetched in one request so an unknown symbol is
// simply absent from the result rather than failing the batch.
func (c *Client) FetchQuotes(ctx context.Context, symbols []string) (map[string]models.MarketSnapshot, error) {
	result := make(map[string]models.MarketSnapshot, len(symbols))
	if len(symbols) == 0 {
		return result, nil
	}

	wanted := make(map[string]string, len(symbols)) // pair -> symbol
	for _, sym := range symbols {
		sym = models.NormalizeSymbol(sym)
		if sym == "" {
			continue
		}
		wanted[sym+c.quoteAsset] = sym
	}

	var tickers []tickerResponse
	if err := c.get(ctx, tickerPath, &tickers); err != nil {
		return nil, err
	}

	for _, t := range tickers {
		sym, ok := wanted[t.Symbol]
		if !ok {
			continue
		}
		result[sym] = models.MarketSnapshot{
			Symbol:    sym,
			Price:     float64(t.LastPrice),
			Change24h: float64(t.PriceChangePercent),
			High24h:   float64(t.HighPrice),
			Low24h:    float64(t.LowPrice),
			Volume24h: float64(t.QuoteVolume),
		}
	}

	c.logger.Debug().
		Int("requested", len(wanted)).
		Int("found", len(result)).
		Int("tickers", len(tickers)).
		Msg("Binance quotes fetched")

	return result, nil
}

// Ensure Client implements MarketDataProvider
var _ interfaces.MarketDataProvider = (*Client)(nil)
