package mev

import (
	"crosswatcher/types"
)

// FindCrossChainCandidates filters classified transactions down to
// cross-chain MEV candidates: non-atomic MEV transactions that also
// touched the Polygon bridge.
//
// A transaction counts as non-atomic MEV when the feed classified it as
// a swap and it either paid the block producer directly or sits in the
// top tenth of the block's classified transactions.
func FindCrossChainCandidates(transactions types.Transactions) types.Transactions {
	transactionsInBlock := make(map[uint64]int)
	for _, transaction := range transactions {
		transactionsInBlock[transaction.BlockNumber]++
	}

	var candidates types.Transactions
	for _, transaction := range transactions {
		if !isNonAtomicMev(transaction, transactionsInBlock[transaction.BlockNumber]) {
			continue
		}
		if transaction.BridgeInteraction == types.BridgeInteractionNone {
			continue
		}
		candidates = append(candidates, transaction)
	}
	return candidates
}

func isNonAtomicMev(transaction *types.Transaction, transactionsInBlock int) bool {
	if transaction.MevType != types.MevTypeSwap {
		return false
	}
	if transaction.CoinbaseTransferValue != nil && transaction.CoinbaseTransferValue.Sign() > 0 {
		return true
	}
	return float64(transaction.TxIndex) < 0.1*float64(transactionsInBlock)
}
