package oracle

import "errors"

var (
	// ErrNonContract indicates that no price model is registered at the target address.
	ErrNonContract = errors.New("call to non-contract")
	// ErrInvalidModel indicates a target that does not identify as a price model.
	ErrInvalidModel = errors.New("invalid price model")
	// ErrDownstreamRevert wraps an error returned by a price model.
	ErrDownstreamRevert = errors.New("price model call failed")
	// ErrDuplicateModel indicates a second registration at the same address.
	ErrDuplicateModel = errors.New("price model already registered")
)
