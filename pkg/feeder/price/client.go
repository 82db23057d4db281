package price

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/StrathCole/poster-oracle/pkg/logging"
	"github.com/StrathCole/poster-oracle/pkg/version"
)

// Price represents a single price from the price server
type Price struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp,omitempty"`
	Source    string          `json:"source,omitempty"`
}

// Client interface for fetching prices
type Client interface {
	GetPrices(ctx context.Context) ([]Price, error)
}

// HTTPClient implements Client using HTTP requests. Endpoints are tried in
// order; the first one that answers with a decodable list wins.
type HTTPClient struct {
	baseURLs []string
	client   *http.Client
	logger   *logging.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTP price client
func NewHTTPClient(baseURL string, fallbackURLs []string, timeout time.Duration, logger *logging.Logger) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, ErrNoPriceSource
	}
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	urls := make([]string, 0, 1+len(fallbackURLs))
	for _, u := range append([]string{baseURL}, fallbackURLs...) {
		if u = strings.TrimRight(u, "/"); u != "" {
			urls = append(urls, u)
		}
	}
	return &HTTPClient{
		baseURLs: urls,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}, nil
}

// GetPrices fetches prices from the first reachable price server
func (c *HTTPClient) GetPrices(ctx context.Context) ([]Price, error) {
	var errs []error
	for _, base := range c.baseURLs {
		prices, err := c.fetch(ctx, base)
		if err == nil {
			return prices, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("Price server failed, trying next", "url", base, "error", err)
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}

func (c *HTTPClient) fetch(ctx context.Context, base string) ([]Price, error) {
	url := base + "/v1/prices"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", version.AgentString())
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %d: %s", ErrPriceServerHTTPError, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var prices []Price
	if err := json.NewDecoder(resp.Body).Decode(&prices); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return prices, nil
}

// BySymbol indexes prices by upper-cased symbol. Later duplicates win.
func BySymbol(prices []Price) map[string]Price {
	out := make(map[string]Price, len(prices))
	for _, p := range prices {
		out[strings.ToUpper(p.Symbol)] = p
	}
	return out
}
