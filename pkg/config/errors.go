// Package config provides configuration loading and validation for poster-oracle.
package config

import "errors"

var (
	// ErrInvalidDuration indicates that a duration value could not be parsed.
	ErrInvalidDuration = errors.New("invalid duration")
	// ErrTLSConfigIncomplete indicates that TLS config is incomplete.
	ErrTLSConfigIncomplete = errors.New("TLS cert and key must be specified when TLS is enabled")
	// ErrTLSCertNotFound indicates that the TLS cert file was not found.
	ErrTLSCertNotFound = errors.New("TLS cert file not found")
	// ErrTLSKeyNotFound indicates that the TLS key file was not found.
	ErrTLSKeyNotFound = errors.New("TLS key file not found")
	// ErrInvalidAddress indicates that a value is not a hex account address.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrOracleAddressRequired indicates that oracle.address must be specified.
	ErrOracleAddressRequired = errors.New("oracle.address must be specified")
	// ErrModelNameRequired indicates that a model has no name.
	ErrModelNameRequired = errors.New("model name is required")
	// ErrDuplicateModel indicates two models share a name or address.
	ErrDuplicateModel = errors.New("duplicate model")
	// ErrInvalidModelType indicates that the model type is unknown.
	ErrInvalidModelType = errors.New("invalid model type")
	// ErrLayer2ConfigIncomplete indicates that layer2 needs rpc_url and address.
	ErrLayer2ConfigIncomplete = errors.New("layer2 rpc_url and address must be specified")
	// ErrInvalidDecimal indicates that a fixed-point value is not a non-negative decimal.
	ErrInvalidDecimal = errors.New("invalid decimal value")
	// ErrSourceTypeRequired indicates that feed type is required.
	ErrSourceTypeRequired = errors.New("feed type is required")
	// ErrSourceNameRequired indicates that feed name is required.
	ErrSourceNameRequired = errors.New("feed name is required")
	// ErrDuplicateFeed indicates two feeds share a name.
	ErrDuplicateFeed = errors.New("duplicate feed")
	// ErrAssetSymbolRequired indicates that an asset has no symbol.
	ErrAssetSymbolRequired = errors.New("asset symbol is required")
	// ErrDuplicateAsset indicates two assets share a symbol or address.
	ErrDuplicateAsset = errors.New("duplicate asset")
	// ErrUnknownModel indicates an asset references a model that is not configured.
	ErrUnknownModel = errors.New("unknown model")
	// ErrUnknownFeed indicates an asset references a feed that is not configured or enabled.
	ErrUnknownFeed = errors.New("unknown feed")
	// ErrFeedRequiresFeedModel indicates a feed was set on an asset routed to a non-feed model.
	ErrFeedRequiresFeedModel = errors.New("feed requires a feed model")
	// ErrUnknownReader indicates a reader is neither a configured symbol nor an address.
	ErrUnknownReader = errors.New("unknown reader")
	// ErrPriceSourceURLRequired indicates that price_source.url must be specified.
	ErrPriceSourceURLRequired = errors.New("price_source.url must be specified")
	// ErrPosterAddressRequired indicates the poster loop has no identity to post as.
	ErrPosterAddressRequired = errors.New("poster address or oracle.poster must be specified")
	// ErrInvalidSchedule indicates that the poster schedule is not a valid cron spec.
	ErrInvalidSchedule = errors.New("invalid schedule")
	// ErrInvalidLogLevel indicates that the log level is invalid.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidLogFormat indicates that the log format is invalid.
	ErrInvalidLogFormat = errors.New("invalid log format")
)
