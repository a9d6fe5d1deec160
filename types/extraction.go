package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// EthereumLeg is the Ethereum side of a cross-chain MEV extraction.
// GasPaid is filled later by the arbitrage analyzer.
type EthereumLeg struct {
	Token            common.Address `json:"tokenAddress"`
	TxHash           common.Hash    `json:"transactionHash"`
	SearcherEOA      common.Address `json:"searcherEoaAddress"`
	SearcherContract common.Address `json:"searcherContractAddress"`
	Swaps            []*Swap        `json:"swaps"`
	GasPaid          *big.Int       `json:"gasPaid,omitempty"`
}

// PolygonLeg is the Polygon side of a cross-chain MEV extraction. The
// bridge and swap transactions may be the same transaction, in which case
// the two hashes and the two gas fields are equal.
type PolygonLeg struct {
	Token            common.Address `json:"tokenAddress"`
	BridgeTxHash     common.Hash    `json:"bridgeTransactionHash"`
	SwapTxHash       common.Hash    `json:"swapTransactionHash"`
	SearcherEOA      common.Address `json:"searcherEoaAddress"`
	SearcherContract common.Address `json:"searcherContractAddress"`
	Swaps            []*Swap        `json:"swaps"`
	BridgeGasPaid    *big.Int       `json:"bridgeTransactionGasPaid,omitempty"`
	SwapGasPaid      *big.Int       `json:"swapTransactionGasPaid,omitempty"`
}

// CrossChainMevExtraction is a fully matched extraction: value was
// bridged and swapped on the other chain. The arbitrage analyzer fills
// the cyclic-arbitrage flag and profit fields in place.
type CrossChainMevExtraction struct {
	EthereumLeg       *EthereumLeg      `json:"ethereumLeg"`
	PolygonLeg        *PolygonLeg       `json:"polygonLeg"`
	Direction         BridgeInteraction `json:"direction"`
	AmountBridged     *big.Int          `json:"amountBridged"`
	IsCyclicArbitrage bool              `json:"isCyclicArbitrage"`
	ProfitAmount      string            `json:"profitAmount,omitempty"`
	ProfitTokenSymbol string            `json:"profitTokenSymbol,omitempty"`
}

// CrossChainMevFailedExtraction is a candidate whose value was bridged
// out and bridged back without a destination swap. The hash fields are
// always ordered (from-Ethereum, to-Ethereum) regardless of which bridge
// transaction was found first.
type CrossChainMevFailedExtraction struct {
	EthereumLeg              *EthereumLeg      `json:"ethereumLeg"`
	BridgeFromEthereumTxHash common.Hash       `json:"bridgeFromEthereumTransactionHash"`
	BridgeToEthereumTxHash   common.Hash       `json:"bridgeToEthereumTransactionHash"`
	Direction                BridgeInteraction `json:"direction"`
	AmountBridged            *big.Int          `json:"amountBridged"`
}
