package mev

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"crosswatcher/chain"
)

// AmbiguousMatchError signals that a windowed transfer search did not
// land on exactly one log. Zero matches and multiple matches are both
// ambiguous: the round trip cannot be attributed to a single Polygon
// transaction.
type AmbiguousMatchError struct {
	Amount     *big.Int
	Candidates []chain.TransferLog
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("expected exactly one transfer matching amount %s, found %d",
		e.Amount, len(e.Candidates))
}

// InconsistentSwapChainError signals that a transaction's swaps do not
// form a single path: the output token of one hop does not feed the
// next. This can mean two unrelated swaps share the transaction.
type InconsistentSwapChainError struct {
	TxHash common.Hash
}

func (e *InconsistentSwapChainError) Error() string {
	return fmt.Sprintf("swaps of %s do not form a single path", e.TxHash.Hex())
}
