// Package setup builds a running oracle from configuration: price models,
// feeds, asset routes and per-asset settings.
package setup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/StrathCole/poster-oracle/pkg/config"
	"github.com/StrathCole/poster-oracle/pkg/feeder/poster"
	"github.com/StrathCole/poster-oracle/pkg/feeds"
	"github.com/StrathCole/poster-oracle/pkg/feeds/evm"
	"github.com/StrathCole/poster-oracle/pkg/logging"
	"github.com/StrathCole/poster-oracle/pkg/oracle"
	"github.com/StrathCole/poster-oracle/pkg/pricemodel"

	// Feed implementations register themselves.
	_ "github.com/StrathCole/poster-oracle/pkg/feeds/pyth"
)

// Asset is a configured asset and the model it was routed to.
type Asset struct {
	Symbol    string
	Address   common.Address
	Model     string
	ModelType string
}

// System is everything Build wired together.
type System struct {
	Oracle *oracle.Oracle
	Owner  common.Address
	Models map[string]pricemodel.PriceModel
	Feeds  map[string]feeds.Feed
	Assets []Asset

	closers []io.Closer
	logger  *logging.Logger
}

type modelInfo struct {
	cfg       *config.ModelConfig
	address   common.Address
	maxSwing  *big.Int
	heartbeat time.Duration
}

// Build creates the oracle described by cfg. cfg must have passed
// config.Validate. now stamps any initial prices.
func Build(ctx context.Context, cfg *config.Config, logger *logging.Logger, now time.Time) (*System, error) {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}

	oracleAddr, err := config.ParseAddress(cfg.Oracle.Address)
	if err != nil {
		return nil, fmt.Errorf("oracle address: %w", err)
	}
	owner, err := config.ParseAddress(cfg.Oracle.Owner)
	if err != nil {
		return nil, fmt.Errorf("oracle owner: %w", err)
	}
	var posterAddr common.Address
	if cfg.Oracle.Poster != "" {
		if posterAddr, err = config.ParseAddress(cfg.Oracle.Poster); err != nil {
			return nil, fmt.Errorf("oracle poster: %w", err)
		}
	}

	sys := &System{
		Oracle: oracle.New(oracle.Config{
			Address: oracleAddr,
			Owner:   owner,
			Poster:  posterAddr,
			Paused:  cfg.Oracle.Paused,
			Logger:  logger,
		}),
		Owner:  owner,
		Models: make(map[string]pricemodel.PriceModel, len(cfg.Models)),
		Feeds:  make(map[string]feeds.Feed, len(cfg.Feeds)),
		logger: logger,
	}

	ok := false
	defer func() {
		if !ok {
			_ = sys.Close()
		}
	}()

	if err := sys.buildFeeds(ctx, cfg); err != nil {
		return nil, err
	}

	models := make(map[string]*modelInfo, len(cfg.Models))
	for i := range cfg.Models {
		info, err := sys.buildModel(ctx, &cfg.Models[i], oracleAddr)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", cfg.Models[i].Name, err)
		}
		models[info.cfg.Name] = info
	}

	if err := sys.bootstrapAssets(cfg, models, now); err != nil {
		return nil, err
	}

	logger.Info("Oracle built",
		"address", oracleAddr.Hex(),
		"models", len(sys.Models),
		"feeds", len(sys.Feeds),
		"assets", len(sys.Assets))

	ok = true
	return sys, nil
}

func (s *System) buildFeeds(ctx context.Context, cfg *config.Config) error {
	for _, fc := range cfg.EnabledFeeds() {
		params := make(map[string]interface{}, len(fc.Config)+2)
		for k, v := range fc.Config {
			params[k] = v
		}
		params["name"] = fc.Key()
		params["logger"] = s.logger.With("feed", fc.Key())
		// aggregate feeds resolve their sources among the feeds listed before them
		params["feeds"] = s.Feeds

		feed, err := feeds.Create(fc.Type, fc.Name, params)
		if err != nil {
			return fmt.Errorf("feed %s: %w", fc.Key(), err)
		}
		s.closers = append(s.closers, feed)
		if err := feed.Initialize(ctx); err != nil {
			return fmt.Errorf("feed %s: initialize: %w", fc.Key(), err)
		}
		s.Feeds[fc.Key()] = feed
	}
	return nil
}

func (s *System) buildModel(ctx context.Context, mc *config.ModelConfig, owner common.Address) (*modelInfo, error) {
	addr, err := config.ParseAddress(mc.Address)
	if err != nil {
		return nil, err
	}
	info := &modelInfo{
		cfg:       mc,
		address:   addr,
		maxSwing:  pricemodel.MaxMaxSwing,
		heartbeat: mc.Heartbeat.ToDuration(),
	}
	logger := s.logger.With("model", mc.Name)

	var model pricemodel.PriceModel
	switch strings.ToLower(mc.Type) {
	case config.ModelTypePoster:
		if mc.MaxSwing != "" {
			if info.maxSwing, err = pricemodel.ParseFixed(mc.MaxSwing); err != nil {
				return nil, fmt.Errorf("max_swing: %w", err)
			}
		}
		model, err = pricemodel.NewPosterModel(pricemodel.PosterConfig{
			Name:          mc.Name,
			Owner:         owner,
			MaxSwing:      info.maxSwing,
			ValidInterval: info.heartbeat,
			Logger:        logger,
		})
	case config.ModelTypeFeed:
		model, err = pricemodel.NewFeedModel(pricemodel.FeedConfig{
			Name:          mc.Name,
			Owner:         owner,
			ValidInterval: info.heartbeat,
			Logger:        logger,
		})
	default:
		err = fmt.Errorf("%w: %s", config.ErrInvalidModelType, mc.Type)
	}
	if err != nil {
		return nil, err
	}

	if mc.Layer2 != nil {
		seq, err := evm.NewSequencerFeed(map[string]interface{}{
			"rpc_url": mc.Layer2.RPCURL,
			"address": mc.Layer2.Address,
		})
		if err != nil {
			return nil, fmt.Errorf("layer2: %w", err)
		}
		s.closers = append(s.closers, seq)
		if err := seq.Initialize(ctx); err != nil {
			return nil, fmt.Errorf("layer2: initialize: %w", err)
		}
		model = pricemodel.NewLayer2Model(model, seq, mc.Layer2.GracePeriod.ToDuration(), logger)
	}

	if err := s.Oracle.Register(addr, model); err != nil {
		return nil, err
	}
	s.Models[mc.Name] = model
	return info, nil
}

// bootstrapAssets routes assets to their models and applies per-asset
// settings through the oracle, the way a deployment script would.
func (s *System) bootstrapAssets(cfg *config.Config, models map[string]*modelInfo, now time.Time) error {
	var routed, targets []common.Address
	var cmdAssets []common.Address
	var cmds []pricemodel.Command

	for i := range cfg.Assets {
		ac := &cfg.Assets[i]
		asset, err := config.ParseAddress(ac.Address)
		if err != nil {
			return fmt.Errorf("asset %s: %w", ac.Symbol, err)
		}
		entry := Asset{Symbol: ac.Symbol, Address: asset}

		info, hasModel := models[ac.Model]
		if !hasModel {
			s.Assets = append(s.Assets, entry)
			continue
		}
		entry.Model = info.cfg.Name
		entry.ModelType = strings.ToLower(info.cfg.Type)
		s.Assets = append(s.Assets, entry)
		routed = append(routed, asset)
		targets = append(targets, info.address)

		assetCmds, err := s.assetCommands(cfg, ac, asset, info)
		if err != nil {
			return fmt.Errorf("asset %s: %w", ac.Symbol, err)
		}
		for _, c := range assetCmds {
			cmdAssets = append(cmdAssets, asset)
			cmds = append(cmds, c)
		}
	}

	if len(routed) > 0 {
		if err := s.Oracle.SetAssetPriceModelBatch(s.Owner, routed, targets); err != nil {
			return fmt.Errorf("route assets: %w", err)
		}
	}
	if len(cmds) > 0 {
		if err := s.Oracle.SetAssets(s.Owner, cmdAssets, cmds, now); err != nil {
			return fmt.Errorf("configure assets: %w", err)
		}
	}
	return nil
}

// assetCommands lists the settings to apply to one asset. Values equal to
// the model defaults are left out since models reject no-op updates.
func (s *System) assetCommands(cfg *config.Config, ac *config.AssetConfig, asset common.Address, info *modelInfo) ([]pricemodel.Command, error) {
	var cmds []pricemodel.Command

	if ac.MaxSwing != "" {
		v, err := pricemodel.ParseFixed(ac.MaxSwing)
		if err != nil {
			return nil, fmt.Errorf("max_swing: %w", err)
		}
		if v.Cmp(info.maxSwing) != 0 {
			cmds = append(cmds, pricemodel.SetAssetMaxSwing{Asset: asset, MaxSwing: v})
		}
	}
	if hb := ac.Heartbeat.ToDuration(); hb > 0 && hb != info.heartbeat {
		cmds = append(cmds, pricemodel.SetAssetValidInterval{Asset: asset, Interval: hb})
	}
	if ac.Reader != "" {
		reader, err := cfg.ResolveReader(ac.Reader)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, pricemodel.SetReader{Asset: asset, Reader: reader})
	}
	if ac.Feed != "" {
		feed, ok := s.Feeds[ac.Feed]
		if !ok {
			return nil, fmt.Errorf("%w: %s", config.ErrUnknownFeed, ac.Feed)
		}
		cmds = append(cmds, pricemodel.SetAssetFeed{Asset: asset, Feed: feed})
	}
	if ac.Price != "" {
		v, err := pricemodel.ParseFixed(ac.Price)
		if err != nil {
			return nil, fmt.Errorf("price: %w", err)
		}
		cmds = append(cmds, pricemodel.SetPrice{Asset: asset, Price: v})
	}
	return cmds, nil
}

// PosterAssets returns the assets routed to poster models, in config order.
func (s *System) PosterAssets() []poster.Asset {
	var out []poster.Asset
	for _, a := range s.Assets {
		if a.ModelType == config.ModelTypePoster {
			out = append(out, poster.Asset{Symbol: a.Symbol, Address: a.Address})
		}
	}
	return out
}

// Close releases feed connections.
func (s *System) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
