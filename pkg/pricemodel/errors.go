// Package pricemodel implements the price models routed to by the oracle facade:
// the anchored poster ledger and the external feed models.
package pricemodel

import "errors"

var (
	// ErrInvalidParameter indicates a value equal to the current one or otherwise forbidden.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrOutOfRange indicates a max swing outside [0.1%, 10%].
	ErrOutOfRange = errors.New("value out of range")
	// ErrLengthMismatch indicates batch inputs of different lengths.
	ErrLengthMismatch = errors.New("length mismatch")
	// ErrUnsupportedCommand indicates a command the model does not handle.
	ErrUnsupportedCommand = errors.New("unsupported command")
	// ErrNoFeed indicates that no feed is bound to the asset.
	ErrNoFeed = errors.New("no feed for asset")
)
