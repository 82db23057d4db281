// Package feeds provides the external quote sources bound to feed price models.
package feeds

import "errors"

var (
	// ErrInvalidConfig indicates that the feed configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrUnknownFeed indicates that no factory is registered for a feed key.
	ErrUnknownFeed = errors.New("unknown feed")
	// ErrNoAssetsConfigured indicates that a feed has no assets.
	ErrNoAssetsConfigured = errors.New("no assets configured")
	// ErrUnknownAsset indicates a quote request for an asset the feed does not serve.
	ErrUnknownAsset = errors.New("asset not served by feed")
	// ErrInvalidAddress indicates a malformed hex address.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrInvalidPrice indicates a non-positive or unparsable price.
	ErrInvalidPrice = errors.New("invalid price")
	// ErrNotEnoughQuotes indicates that too few sources of an aggregate feed answered.
	ErrNotEnoughQuotes = errors.New("not enough source quotes")
	// ErrUnexpectedStatus indicates an unexpected HTTP status code.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status code")
	// ErrInvalidResponse indicates an invalid response from the feed.
	ErrInvalidResponse = errors.New("invalid response")
	// ErrClientNotInitialized indicates that the client is not initialized.
	ErrClientNotInitialized = errors.New("client not initialized")
)
