package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Swap is one decoded AMM swap leg, tagged with its receipt log index so
// multi-hop trades keep their on-chain order.
type Swap struct {
	TokenIn   common.Address `json:"tokenIn"`
	TokenOut  common.Address `json:"tokenOut"`
	AmountIn  *big.Int       `json:"amountIn"`
	AmountOut *big.Int       `json:"amountOut"`
	LogIndex  uint           `json:"logIndex"`
}
