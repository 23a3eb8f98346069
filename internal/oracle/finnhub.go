package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"stockwatch/internal/errors"
	"stockwatch/internal/models"
)

// FinnhubConfig holds quote API settings.
type FinnhubConfig struct {
	BaseURL           string
	APIKey            string
	RequestsPerSecond float64
	Burst             int
}

// FinnhubClient fetches quotes from the Finnhub REST API.
// All requests pass through a token-bucket limiter so a large cycle fan-out
// stays inside the API's rate limits.
type FinnhubClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

// quoteResponse is Finnhub's /quote payload. Only the current price and
// quote timestamp matter here.
type quoteResponse struct {
	Current   json.Number `json:"c"`
	Timestamp int64       `json:"t"`
}

// NewFinnhubClient creates a new Finnhub quote client.
func NewFinnhubClient(cfg FinnhubConfig) *FinnhubClient {
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	return &FinnhubClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client: &http.Client{
			Timeout: 30 * time.Second, // outer bound; per-fetch deadline comes from ctx
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
	}
}

// Fetch returns the latest price for symbol.
func (c *FinnhubClient) Fetch(ctx context.Context, symbol string) (*models.PriceSample, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.NewFetchError(symbol, err)
	}

	endpoint := fmt.Sprintf("%s/quote?symbol=%s&token=%s",
		c.baseURL, url.QueryEscape(symbol), url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.NewFetchError(symbol, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.NewFetchError(symbol, fmt.Errorf("%w: %v", errors.ErrPriceUnavailable, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errors.NewFetchError(symbol, errors.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewFetchError(symbol,
			fmt.Errorf("%w: quote API returned status %d", errors.ErrPriceUnavailable, resp.StatusCode))
	}

	var quote quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return nil, errors.NewFetchError(symbol, fmt.Errorf("%w: decoding quote: %v", errors.ErrPriceUnavailable, err))
	}

	price, err := decimal.NewFromString(quote.Current.String())
	if err != nil {
		return nil, errors.NewFetchError(symbol, fmt.Errorf("%w: bad price %q", errors.ErrPriceUnavailable, quote.Current))
	}

	// Finnhub answers unknown symbols with an all-zero quote.
	if !price.IsPositive() || quote.Timestamp == 0 {
		return nil, errors.NewFetchError(symbol, fmt.Errorf("%w: no quote for symbol", errors.ErrPriceUnavailable))
	}

	return &models.PriceSample{
		Symbol:    symbol,
		Price:     price,
		FetchedAt: time.Now().UTC(),
	}, nil
}
