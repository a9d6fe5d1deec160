// Package mev finds cross-chain MEV extractions: Ethereum transactions
// that bridge value to or from Polygon and swap it on the other side.
package mev

import (
	"context"
	"math/big"

	MapSet "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"

	"crosswatcher/chain"
)

// SwapEventSource supplies the raw pool swap logs of a transaction and
// resolves pool token slots. Satisfied by both chain services.
type SwapEventSource interface {
	SwapEvents(ctx context.Context, txHash common.Hash) ([]chain.SwapEvent, error)
	PoolTokens(ctx context.Context, pool common.Address) (common.Address, common.Address, error)
}

// EthereumData is the Ethereum-side chain access the matcher and the
// arbitrage analyzer need. Satisfied by chain.EthereumService.
type EthereumData interface {
	SwapEventSource
	TransactionParties(ctx context.Context, txHash common.Hash) (common.Address, common.Address, error)
	GasPaid(ctx context.Context, txHash common.Hash) (*big.Int, error)
	BlockTimestamp(ctx context.Context, blockNumber uint64) (uint64, error)
	SymbolAndDecimals(ctx context.Context, token common.Address) (string, uint8, error)
	FromEthereumBridgeOp(ctx context.Context, txHash common.Hash) (chain.BridgeOp, error)
	ToEthereumBridgeOp(ctx context.Context, txHash common.Hash) (chain.BridgeOp, error)
}

// PolygonData is the Polygon-side chain access. Satisfied by
// chain.PolygonService.
type PolygonData interface {
	SwapEventSource
	TransactionParties(ctx context.Context, txHash common.Hash) (common.Address, common.Address, error)
	GasPaid(ctx context.Context, txHash common.Hash) (*big.Int, error)
	TransferLogs(ctx context.Context, token common.Address, fromBlock, toBlock uint64) ([]chain.TransferLog, error)
}

// BlockFinder resolves Ethereum block timestamps to Polygon block
// numbers. Satisfied by findblock.Client.
type BlockFinder interface {
	BlockBeforeTimestamp(timestamp uint64) (uint64, error)
	BlockAfterTimestamp(timestamp uint64) (uint64, error)
}

// TokenRegistry maps Ethereum root tokens to their Polygon children.
// Satisfied by bridge.Registry.
type TokenRegistry interface {
	MappedToken(root common.Address) (common.Address, error)
	ExpectedChildTokens(root common.Address) (MapSet.Set[common.Address], error)
}
