package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"github.com/StrathCole/poster-oracle/pkg/pricemodel"
)

// Validate checks configuration for errors
func Validate(cfg *Config) error {
	if err := validateLoggingConfig(&cfg.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if cfg.Server.Enabled {
		if err := validateServerConfig(&cfg.Server); err != nil {
			return fmt.Errorf("server config: %w", err)
		}
	}

	if err := validateOracleConfig(&cfg.Oracle); err != nil {
		return fmt.Errorf("oracle config: %w", err)
	}

	names := make(map[string]bool, len(cfg.Models))
	addrs := make(map[string]bool, len(cfg.Models))
	for i := range cfg.Models {
		m := &cfg.Models[i]
		if err := validateModelConfig(m); err != nil {
			return fmt.Errorf("model %d (%s): %w", i, m.Name, err)
		}
		key := strings.ToLower(m.Address)
		if names[m.Name] || addrs[key] {
			return fmt.Errorf("model %d (%s): %w", i, m.Name, ErrDuplicateModel)
		}
		names[m.Name] = true
		addrs[key] = true
	}

	feeds := make(map[string]bool, len(cfg.Feeds))
	for i := range cfg.Feeds {
		f := &cfg.Feeds[i]
		if err := validateFeedConfig(f); err != nil {
			return fmt.Errorf("feed %d (%s.%s): %w", i, f.Type, f.Name, err)
		}
		if feeds[f.Key()] {
			return fmt.Errorf("feed %d (%s): %w", i, f.Key(), ErrDuplicateFeed)
		}
		feeds[f.Key()] = true
	}

	symbols := make(map[string]bool, len(cfg.Assets))
	assets := make(map[string]bool, len(cfg.Assets))
	for i := range cfg.Assets {
		a := &cfg.Assets[i]
		if err := validateAssetConfig(cfg, a); err != nil {
			return fmt.Errorf("asset %d (%s): %w", i, a.Symbol, err)
		}
		sym, addr := strings.ToUpper(a.Symbol), strings.ToLower(a.Address)
		if symbols[sym] || assets[addr] {
			return fmt.Errorf("asset %d (%s): %w", i, a.Symbol, ErrDuplicateAsset)
		}
		symbols[sym] = true
		assets[addr] = true
	}

	if cfg.Poster.Enabled {
		if err := validatePosterConfig(&cfg.Poster); err != nil {
			return fmt.Errorf("poster config: %w", err)
		}
	}

	return nil
}

func validateServerConfig(cfg *ServerConfig) error {
	if cfg.HTTP.TLS.Enabled {
		if cfg.HTTP.TLS.Cert == "" || cfg.HTTP.TLS.Key == "" {
			return ErrTLSConfigIncomplete
		}
		if _, err := os.Stat(cfg.HTTP.TLS.Cert); err != nil {
			return fmt.Errorf("%w: %s", ErrTLSCertNotFound, cfg.HTTP.TLS.Cert)
		}
		if _, err := os.Stat(cfg.HTTP.TLS.Key); err != nil {
			return fmt.Errorf("%w: %s", ErrTLSKeyNotFound, cfg.HTTP.TLS.Key)
		}
	}
	return nil
}

func validateOracleConfig(cfg *OracleConfig) error {
	if cfg.Address == "" {
		return ErrOracleAddressRequired
	}
	if _, err := ParseAddress(cfg.Address); err != nil {
		return fmt.Errorf("address: %w", err)
	}
	if _, err := ParseAddress(cfg.Owner); err != nil {
		return fmt.Errorf("owner: %w", err)
	}
	// Zero poster is allowed; only the form is checked.
	if cfg.Poster != "" {
		if _, err := ParseAddress(cfg.Poster); err != nil {
			return fmt.Errorf("poster: %w", err)
		}
	}
	return nil
}

func validateModelConfig(cfg *ModelConfig) error {
	if cfg.Name == "" {
		return ErrModelNameRequired
	}
	if _, err := ParseAddress(cfg.Address); err != nil {
		return err
	}

	switch strings.ToLower(cfg.Type) {
	case ModelTypePoster:
		if cfg.MaxSwing != "" {
			if err := validateDecimal("max_swing", cfg.MaxSwing); err != nil {
				return err
			}
		}
	case ModelTypeFeed:
	default:
		return fmt.Errorf("%w: %s (must be '%s' or '%s')", ErrInvalidModelType, cfg.Type, ModelTypePoster, ModelTypeFeed)
	}

	if cfg.Layer2 != nil {
		if cfg.Layer2.RPCURL == "" || cfg.Layer2.Address == "" {
			return ErrLayer2ConfigIncomplete
		}
		if _, err := ParseAddress(cfg.Layer2.Address); err != nil {
			return fmt.Errorf("layer2: %w", err)
		}
	}
	return nil
}

func validateFeedConfig(cfg *FeedConfig) error {
	if cfg.Type == "" {
		return ErrSourceTypeRequired
	}
	if cfg.Name == "" {
		return ErrSourceNameRequired
	}
	return nil
}

func validateAssetConfig(root *Config, cfg *AssetConfig) error {
	if cfg.Symbol == "" {
		return ErrAssetSymbolRequired
	}
	if _, err := ParseAddress(cfg.Address); err != nil {
		return err
	}

	var model *ModelConfig
	if cfg.Model != "" {
		m, ok := root.Model(cfg.Model)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownModel, cfg.Model)
		}
		model = m
	}

	if cfg.Price != "" {
		if err := validateDecimal("price", cfg.Price); err != nil {
			return err
		}
	}
	if cfg.MaxSwing != "" {
		if err := validateDecimal("max_swing", cfg.MaxSwing); err != nil {
			return err
		}
	}
	if cfg.Reader != "" {
		if _, err := root.ResolveReader(cfg.Reader); err != nil {
			return err
		}
	}
	if cfg.Feed != "" {
		if model == nil || !strings.EqualFold(model.Type, ModelTypeFeed) {
			return fmt.Errorf("%w: %s", ErrFeedRequiresFeedModel, cfg.Feed)
		}
		found := false
		for _, f := range root.EnabledFeeds() {
			if f.Key() == cfg.Feed {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: %s", ErrUnknownFeed, cfg.Feed)
		}
	}
	return nil
}

func validatePosterConfig(cfg *PosterConfig) error {
	if cfg.PriceSource.URL == "" {
		return ErrPriceSourceURLRequired
	}
	if cfg.Address == "" {
		return ErrPosterAddressRequired
	}
	if _, err := ParseAddress(cfg.Address); err != nil {
		return fmt.Errorf("address: %w", err)
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidSchedule, cfg.Schedule, err)
	}
	return validateDecimal("post_swing", cfg.PostSwing)
}

func validateLoggingConfig(cfg *LoggingConfig) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	levelValid := false
	for _, l := range validLevels {
		if strings.ToLower(cfg.Level) == l {
			levelValid = true
			break
		}
	}
	if !levelValid {
		return fmt.Errorf("%w: %s (must be one of: %s)", ErrInvalidLogLevel, cfg.Level, strings.Join(validLevels, ", "))
	}

	format := strings.ToLower(cfg.Format)
	if format != "json" && format != "text" {
		return fmt.Errorf("%w: %s (must be 'json' or 'text')", ErrInvalidLogFormat, cfg.Format)
	}

	return nil
}

func validateDecimal(field, s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() || !pricemodel.FitsFixed(d) {
		return fmt.Errorf("%w: %s=%q", ErrInvalidDecimal, field, s)
	}
	return nil
}
