// Package pyth provides a feed backed by the Pyth Hermes price service.
package pyth

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/StrathCole/poster-oracle/pkg/feeds"
	"github.com/StrathCole/poster-oracle/pkg/version"
)

const (
	hermesDefaultURL     = "https://hermes.pyth.network"
	hermesDefaultTimeout = 10 * time.Second
	latestPricePath      = "/v2/updates/price/latest"
)

// HermesFeed quotes assets from Pyth price ids.
type HermesFeed struct {
	*feeds.BaseFeed
	endpoint string
	client   *http.Client
}

var _ feeds.Feed = (*HermesFeed)(nil)

type hermesPrice struct {
	Price       string `json:"price"`
	Conf        string `json:"conf"`
	Expo        int32  `json:"expo"`
	PublishTime int64  `json:"publish_time"`
}

type hermesParsed struct {
	ID    string      `json:"id"`
	Price hermesPrice `json:"price"`
}

type hermesResponse struct {
	Parsed []hermesParsed `json:"parsed"`
}

func init() {
	feeds.Register("pyth.hermes", NewHermesFeed)
}

// NewHermesFeed creates a Hermes feed.
// Config: endpoint (optional), timeout in ms (optional), assets: { "0xasset": "price id" }.
func NewHermesFeed(config map[string]interface{}) (feeds.Feed, error) {
	assets, err := feeds.ParseAssetsFromMap(config)
	if err != nil {
		return nil, err
	}
	for asset, id := range assets {
		assets[asset] = strings.TrimPrefix(strings.ToLower(id), "0x")
	}

	endpoint := feeds.GetStringFromMap(config, "endpoint")
	if endpoint == "" {
		endpoint = hermesDefaultURL
	}

	timeout := hermesDefaultTimeout
	if t := feeds.GetIntFromMap(config, "timeout", 0); t > 0 {
		timeout = time.Duration(t) * time.Millisecond
	}

	name := feeds.GetStringFromMap(config, "name")
	if name == "" {
		name = "pyth"
	}

	return &HermesFeed{
		BaseFeed: feeds.NewBaseFeed(name, feeds.FeedTypePyth, assets, feeds.GetLoggerFromConfig(config)),
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// Initialize marks the feed healthy; Hermes needs no session.
func (f *HermesFeed) Initialize(_ context.Context) error {
	f.Logger().Info("Initializing Pyth Hermes feed", "assets", len(f.Assets()), "endpoint", f.endpoint)
	f.SetHealthy(true)
	return nil
}

// Close releases idle connections.
func (f *HermesFeed) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// Quote fetches the latest price of asset.
func (f *HermesFeed) Quote(ctx context.Context, asset common.Address) (*big.Int, time.Time, error) {
	start := time.Now()
	q, err := f.quote(ctx, asset)
	return f.Record(q, err, start)
}

func (f *HermesFeed) quote(ctx context.Context, asset common.Address) (feeds.Quote, error) {
	id, err := f.Key(asset)
	if err != nil {
		return feeds.Quote{}, err
	}

	parsed, err := f.fetch(ctx, id)
	if err != nil {
		return feeds.Quote{}, err
	}

	for _, p := range parsed {
		if strings.TrimPrefix(strings.ToLower(p.ID), "0x") != id {
			continue
		}
		raw, err := decimal.NewFromString(p.Price.Price)
		if err != nil {
			return feeds.Quote{}, fmt.Errorf("%w: price %q", feeds.ErrInvalidResponse, p.Price.Price)
		}
		return feeds.Quote{
			Asset:     asset,
			Price:     raw.Shift(p.Price.Expo),
			UpdatedAt: time.Unix(p.Price.PublishTime, 0),
		}, nil
	}
	return feeds.Quote{}, fmt.Errorf("%w: no update for price id %s", feeds.ErrInvalidResponse, id)
}

func (f *HermesFeed) fetch(ctx context.Context, id string) ([]hermesParsed, error) {
	query := url.Values{}
	query.Add("ids[]", id)
	query.Set("parsed", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint+latestPricePath+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", version.AgentString())

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch price: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", feeds.ErrUnexpectedStatus, resp.StatusCode)
	}

	var data hermesResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return data.Parsed, nil
}
