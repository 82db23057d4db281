// Package evm provides feeds read from EVM contracts (Chainlink aggregators,
// AMM pairs, layer-2 sequencer uptime feeds).
package evm

import "errors"

var (
	// ErrRPCURLRequired indicates that rpc_url configuration is required.
	ErrRPCURLRequired = errors.New("rpc_url is required")
	// ErrPairsConfigRequired indicates that pairs configuration is required.
	ErrPairsConfigRequired = errors.New("pairs configuration is required")
	// ErrAddressRequired indicates that a contract address is required.
	ErrAddressRequired = errors.New("contract address is required")
	// ErrZeroLiquidity indicates that there is zero liquidity in the pool.
	ErrZeroLiquidity = errors.New("zero liquidity in pool")
	// ErrUnexpectedOutput indicates a contract call returned an unexpected shape.
	ErrUnexpectedOutput = errors.New("unexpected contract output")
)
