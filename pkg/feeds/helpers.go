package feeds

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/StrathCole/poster-oracle/pkg/logging"
)

// GetLoggerFromConfig extracts logger from config map or falls back to the global logger.
func GetLoggerFromConfig(config map[string]interface{}) *logging.Logger {
	if loggerInterface, ok := config["logger"]; ok {
		if logger, ok := loggerInterface.(*logging.Logger); ok {
			return logger
		}
	}
	return logging.Global()
}

// ParseAddress parses a 0x-prefixed hex address.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return common.HexToAddress(s), nil
}

// ParseAssetsFromMap extracts the asset mapping from config.
// Expected format: assets: { "0xasset": "feed-specific key" }.
func ParseAssetsFromMap(config map[string]interface{}) (map[common.Address]string, error) {
	assetsRaw, ok := config["assets"]
	if !ok {
		return nil, fmt.Errorf("%w: 'assets' key", ErrInvalidConfig)
	}

	assetsMap, ok := assetsRaw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: assets must be map[string]string", ErrInvalidConfig)
	}

	assets := make(map[common.Address]string, len(assetsMap))
	for assetHex, keyRaw := range assetsMap {
		key, ok := keyRaw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s is %T", ErrInvalidConfig, assetHex, keyRaw)
		}
		asset, err := ParseAddress(assetHex)
		if err != nil {
			return nil, err
		}
		assets[asset] = key
	}

	if len(assets) == 0 {
		return nil, ErrNoAssetsConfigured
	}
	return assets, nil
}

// GetStringFromMap returns m[key] if it is a string.
func GetStringFromMap(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// GetIntFromMap returns m[key] as an int, accepting YAML and JSON number types.
func GetIntFromMap(m map[string]interface{}, key string, defaultVal int) int {
	switch v := m[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case int64:
		return int(v)
	default:
		return defaultVal
	}
}

// GetBoolFromMap returns m[key] if it is a bool.
func GetBoolFromMap(m map[string]interface{}, key string) bool {
	v, _ := m[key].(bool)
	return v
}
