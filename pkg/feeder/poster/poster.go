// Package poster runs the scheduled loop that fetches prices from a price
// server and posts the ones the oracle considers worth updating.
package poster

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"github.com/StrathCole/poster-oracle/pkg/feeder/price"
	"github.com/StrathCole/poster-oracle/pkg/logging"
	"github.com/StrathCole/poster-oracle/pkg/metrics"
	"github.com/StrathCole/poster-oracle/pkg/pricemodel"
)

// PostingState represents the current state of the posting loop
type PostingState string

const (
	StateIdle        PostingState = "idle"
	StateFetchPrices PostingState = "fetch_prices"
	StateCheckReady  PostingState = "check_ready"
	StateSubmit      PostingState = "submit"
	StateError       PostingState = "error"
)

// Target is the oracle surface the poster drives.
type Target interface {
	ReadyToUpdate(asset common.Address, price, postSwing *big.Int, postBuffer time.Duration, now time.Time) bool
	SetPrices(caller common.Address, assets []common.Address, prices []*big.Int, now time.Time) error
}

// Asset pairs a price-server symbol with the asset it is posted for.
type Asset struct {
	Symbol  string
	Address common.Address
}

// Config contains poster configuration
type Config struct {
	Poster     common.Address // identity passed to SetPrices
	Assets     []Asset
	Schedule   string // cron spec, "@every 30s" style descriptors allowed
	PostSwing  *big.Int
	PostBuffer time.Duration
	Timeout    time.Duration
}

// Result summarises one round.
type Result struct {
	Posted  []string
	Skipped []string
	Missing []string
}

// Poster manages the price posting loop
type Poster struct {
	cfg         Config
	priceClient price.Client
	target      Target
	logger      *logging.Logger
	clock       func() time.Time

	mu        sync.Mutex
	state     PostingState
	lastRound time.Time
	last      Result
}

// New creates a new poster instance
func New(cfg Config, priceClient price.Client, target Target, logger *logging.Logger) (*Poster, error) {
	if priceClient == nil || target == nil {
		return nil, ErrNotConfigured
	}
	if len(cfg.Assets) == 0 {
		return nil, ErrNoAssets
	}
	if cfg.PostSwing == nil || cfg.PostSwing.Sign() < 0 {
		return nil, fmt.Errorf("%w: post swing", pricemodel.ErrInvalidParameter)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Poster{
		cfg:         cfg,
		priceClient: priceClient,
		target:      target,
		logger:      logger.With("component", "poster"),
		clock:       time.Now,
		state:       StateIdle,
	}, nil
}

// Start runs rounds on the configured schedule until ctx is cancelled.
// Overlapping rounds are skipped rather than queued.
func (p *Poster) Start(ctx context.Context) error {
	cl := cronLogger{p.logger}
	c := cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)), cron.WithLogger(cl))
	if _, err := c.AddFunc(p.cfg.Schedule, func() {
		if _, err := p.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			p.logger.Error("Posting round failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidSchedule, p.cfg.Schedule, err)
	}

	p.logger.Info("Starting price poster",
		"poster", p.cfg.Poster.Hex(),
		"assets", len(p.cfg.Assets),
		"schedule", p.cfg.Schedule)

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()

	p.logger.Info("Price poster stopped")
	return ctx.Err()
}

// RunOnce performs a single fetch, check and submit round.
func (p *Poster) RunOnce(ctx context.Context) (Result, error) {
	start := time.Now()
	res, err := p.round(ctx)

	status := "posted"
	switch {
	case err != nil:
		status = "error"
		p.setState(StateError)
	case len(res.Posted) == 0:
		status = "idle"
		p.setState(StateIdle)
	default:
		p.setState(StateIdle)
	}
	metrics.RecordPosterRound(status, time.Since(start))

	p.mu.Lock()
	p.lastRound = p.clock()
	p.last = res
	p.mu.Unlock()

	return res, err
}

func (p *Poster) round(ctx context.Context) (Result, error) {
	var res Result

	p.setState(StateFetchPrices)
	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	prices, err := p.fetchPrices(fetchCtx)
	cancel()
	if err != nil {
		return res, fmt.Errorf("failed to fetch prices: %w", err)
	}

	p.setState(StateCheckReady)
	now := p.clock()
	assets := make([]common.Address, 0, len(p.cfg.Assets))
	values := make([]*big.Int, 0, len(p.cfg.Assets))
	for _, a := range p.cfg.Assets {
		d, ok := lookup(prices, a.Symbol)
		if !ok || !d.IsPositive() {
			p.logger.Warn("No usable price for asset", "symbol", a.Symbol)
			res.Missing = append(res.Missing, a.Symbol)
			continue
		}
		v := pricemodel.FromDecimal(d)
		if !p.target.ReadyToUpdate(a.Address, v, p.cfg.PostSwing, p.cfg.PostBuffer, now) {
			metrics.RecordPosterSkip(a.Symbol)
			res.Skipped = append(res.Skipped, a.Symbol)
			continue
		}
		assets = append(assets, a.Address)
		values = append(values, v)
		res.Posted = append(res.Posted, a.Symbol)
	}

	p.logger.Debug("Checked assets",
		"ready", len(res.Posted),
		"skipped", len(res.Skipped),
		"missing", len(res.Missing))

	if len(assets) == 0 {
		return res, nil
	}

	p.setState(StateSubmit)
	if err := p.target.SetPrices(p.cfg.Poster, assets, values, now); err != nil {
		posted := res.Posted
		res.Posted = nil
		return res, fmt.Errorf("failed to post %s: %w", strings.Join(posted, ","), err)
	}

	p.logger.Info("Posted prices", "count", len(assets), "symbols", strings.Join(res.Posted, ","))
	return res, nil
}

// fetchPrices retrieves current prices from the price server
func (p *Poster) fetchPrices(ctx context.Context) (map[string]decimal.Decimal, error) {
	prices, err := p.priceClient.GetPrices(ctx)
	if err != nil {
		return nil, err
	}

	priceMap := make(map[string]decimal.Decimal, len(prices))
	for symbol, pr := range price.BySymbol(prices) {
		priceMap[symbol] = pr.Price
	}

	p.logger.Debug("Fetched prices", "count", len(priceMap))

	return priceMap, nil
}

// lookup matches "WBTC" against "WBTC", "WBTC/USD" or "WBTC/USDT".
func lookup(prices map[string]decimal.Decimal, symbol string) (decimal.Decimal, bool) {
	upper := strings.ToUpper(symbol)
	for _, key := range []string{upper, upper + "/USD", upper + "/USDT"} {
		if d, ok := prices[key]; ok {
			return d, true
		}
	}
	return decimal.Decimal{}, false
}

func (p *Poster) setState(s PostingState) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// GetState returns the current posting state
func (p *Poster) GetState() PostingState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// LastRound returns when the last round finished and what it did.
func (p *Poster) LastRound() (time.Time, Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastRound, p.last
}

// cronLogger adapts the key/value logger to cron.Logger.
type cronLogger struct {
	l *logging.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
