package types

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Transaction is an Ethereum transaction annotated by the classification
// pipeline: its MEV type, coinbase transfer value and whether it touched
// the Polygon bridge.
type Transaction struct {
	BlockNumber           uint64            `json:"blockNumber"`
	TxHash                common.Hash       `json:"transactionHash"`
	TxIndex               uint              `json:"transactionIndex"`
	MevType               MevType           `json:"mevType"`
	BridgeInteraction     BridgeInteraction `json:"bridgeInteraction"`
	CoinbaseTransferValue *big.Int          `json:"coinbaseTransferValue"`
}

type Transactions []*Transaction

// NewTransaction builds a classified transaction, validating the fields
// the matcher depends on.
func NewTransaction(blockNumber uint64, txHash common.Hash, txIndex uint,
	mevType MevType, bridgeInteraction BridgeInteraction,
	coinbaseTransferValue *big.Int) (*Transaction, error) {
	if txHash == (common.Hash{}) {
		return nil, fmt.Errorf("transaction in block %d has no hash", blockNumber)
	}
	if coinbaseTransferValue == nil {
		coinbaseTransferValue = new(big.Int)
	}
	return &Transaction{
		BlockNumber:           blockNumber,
		TxHash:                txHash,
		TxIndex:               txIndex,
		MevType:               mevType,
		BridgeInteraction:     bridgeInteraction,
		CoinbaseTransferValue: coinbaseTransferValue,
	}, nil
}
