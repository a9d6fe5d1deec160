package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Event topics of the log shapes the watcher recognizes.
var (
	TransferTopic = crypto.Keccak256Hash(
		[]byte("Transfer(address,address,uint256)"))
	pairSwapTopic = crypto.Keccak256Hash(
		[]byte("Swap(address,uint256,uint256,uint256,uint256,address)"))
	concentratedSwapTopic = crypto.Keccak256Hash(
		[]byte("Swap(address,address,int256,int256,uint160,uint128,int24)"))
	lockedERC20Topic = crypto.Keccak256Hash(
		[]byte("LockedERC20(address,address,address,uint256)"))
	lockedMintableERC20Topic = crypto.Keccak256Hash(
		[]byte("LockedMintableERC20(address,address,address,uint256)"))
)

// The Polygon PoS bridge contracts holding deposited root tokens on
// Ethereum. An exit transaction releases tokens from one of these.
var BridgeEscrowAddresses = []common.Address{
	common.HexToAddress("0x40ec5B33f54e0E8A33A975908C5BA1c14e5BbbDf"),
	common.HexToAddress("0x9923263fA127b3d1484cFD649df8f1831c2A74e4"),
	common.HexToAddress("0x21ada4D8A799c4b0ADF100eB597a6f1321bCD3E4"),
}

// TransferLog is a decoded ERC-20 Transfer event.
type TransferLog struct {
	Token       common.Address
	From        common.Address
	To          common.Address
	Value       *big.Int
	BlockNumber uint64
	TxHash      common.Hash
	LogIndex    uint
}

// SwapEventKind distinguishes the two supported pool event shapes.
type SwapEventKind uint8

const (
	// PairSwap carries separate in/out amounts per token slot
	// (Uniswap V2 and its forks).
	PairSwap SwapEventKind = iota
	// ConcentratedSwap carries signed net deltas per token
	// (Uniswap V3 and its forks).
	ConcentratedSwap
)

// SwapEvent is a raw, undecoded-but-parsed pool swap log. The swap
// decoder resolves the pool's token slots and normalizes it into a Swap.
type SwapEvent struct {
	Pool     common.Address
	LogIndex uint
	Kind     SwapEventKind

	// PairSwap fields
	Amount0In  *big.Int
	Amount1In  *big.Int
	Amount0Out *big.Int
	Amount1Out *big.Int

	// ConcentratedSwap fields (signed)
	Amount0 *big.Int
	Amount1 *big.Int
}

// BridgeOp is the bridge side of a candidate transaction: the token that
// crossed, the counterparty on the other chain and the amount.
type BridgeOp struct {
	Token        common.Address
	Counterparty common.Address
	Amount       *big.Int
}

func parseTransferLog(log *ethtypes.Log) (TransferLog, bool) {
	if len(log.Topics) != 3 || log.Topics[0] != TransferTopic || len(log.Data) < 32 {
		return TransferLog{}, false
	}
	return TransferLog{
		Token:       log.Address,
		From:        common.BytesToAddress(log.Topics[1].Bytes()[12:]),
		To:          common.BytesToAddress(log.Topics[2].Bytes()[12:]),
		Value:       new(big.Int).SetBytes(log.Data[:32]),
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		LogIndex:    log.Index,
	}, true
}

func parseSwapEvent(log *ethtypes.Log) (SwapEvent, bool) {
	if len(log.Topics) == 0 {
		return SwapEvent{}, false
	}
	switch log.Topics[0] {
	case pairSwapTopic:
		// data: amount0In, amount1In, amount0Out, amount1Out
		if len(log.Topics) != 3 || len(log.Data) != 4*32 {
			return SwapEvent{}, false
		}
		return SwapEvent{
			Pool:       log.Address,
			LogIndex:   log.Index,
			Kind:       PairSwap,
			Amount0In:  new(big.Int).SetBytes(log.Data[0:32]),
			Amount1In:  new(big.Int).SetBytes(log.Data[32:64]),
			Amount0Out: new(big.Int).SetBytes(log.Data[64:96]),
			Amount1Out: new(big.Int).SetBytes(log.Data[96:128]),
		}, true
	case concentratedSwapTopic:
		// data: amount0, amount1, sqrtPriceX96, liquidity, tick
		if len(log.Topics) != 3 || len(log.Data) != 5*32 {
			return SwapEvent{}, false
		}
		return SwapEvent{
			Pool:     log.Address,
			LogIndex: log.Index,
			Kind:     ConcentratedSwap,
			Amount0:  twosComplementToBigInt(log.Data[0:32]),
			Amount1:  twosComplementToBigInt(log.Data[32:64]),
		}, true
	}
	return SwapEvent{}, false
}

var twoPow256 = new(big.Int).Lsh(big.NewInt(1), 256)

// twosComplementToBigInt interprets a 32-byte word as a signed int256.
func twosComplementToBigInt(word []byte) *big.Int {
	value := new(big.Int).SetBytes(word)
	if word[0]&0x80 != 0 {
		value.Sub(value, twoPow256)
	}
	return value
}
