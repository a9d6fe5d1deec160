package fetcher

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"crosswatcher/chain"
	"crosswatcher/types"
	"crosswatcher/zeromev"
)

type fakeChainSource struct {
	blocks       map[uint64]chain.BlockDetails
	interactions map[common.Hash]types.BridgeInteraction
	receiptCalls int
}

func (f *fakeChainSource) BlockDetails(_ context.Context, blockNumber uint64) (chain.BlockDetails, error) {
	details, ok := f.blocks[blockNumber]
	if !ok {
		return chain.BlockDetails{}, fmt.Errorf("no block fixture for %d", blockNumber)
	}
	return details, nil
}

func (f *fakeChainSource) BridgeInteraction(_ context.Context, txHash common.Hash) (types.BridgeInteraction, error) {
	f.receiptCalls++
	return f.interactions[txHash], nil
}

type fakeFeed struct {
	batches [][2]uint64
	byStart map[uint64][]zeromev.TransactionResponse
}

func (f *fakeFeed) FetchMevTransactions(blockNumberStart uint64, numberOfBlocks int) ([]zeromev.TransactionResponse, error) {
	f.batches = append(f.batches, [2]uint64{blockNumberStart, uint64(numberOfBlocks)})
	return f.byStart[blockNumberStart], nil
}

func TestFetchClassificationsBatches(t *testing.T) {
	feed := &fakeFeed{byStart: map[uint64][]zeromev.TransactionResponse{}}
	if _, err := fetchClassifications(feed, 1000, 1249); err != nil {
		t.Fatalf("fetchClassifications error: %v", err)
	}
	expected := [][2]uint64{{1000, 100}, {1100, 100}, {1200, 50}}
	if len(feed.batches) != len(expected) {
		t.Fatalf("expected %d feed batches, got %d", len(expected), len(feed.batches))
	}
	for i, batch := range expected {
		if feed.batches[i] != batch {
			t.Fatalf("batch %d: expected %v, got %v", i, batch, feed.batches[i])
		}
	}
}

func TestResolveBlockAnnotatesTransactions(t *testing.T) {
	miner := common.HexToAddress("0x0000000000000000000000000000000000000Aa1")
	swapTx := common.HexToHash("0x01")
	tipTx := common.HexToHash("0x02")
	plainTx := common.HexToHash("0x03")

	source := &fakeChainSource{
		blocks: map[uint64]chain.BlockDetails{
			500: {
				Number: 500,
				Miner:  miner,
				Transactions: []chain.BlockTransaction{
					{Hash: swapTx, To: common.HexToAddress("0xBB"), Value: big.NewInt(0)},
					{Hash: tipTx, To: miner, Value: big.NewInt(777)},
					{Hash: plainTx, To: common.HexToAddress("0xCC"), Value: big.NewInt(5)},
				},
			},
		},
		interactions: map[common.Hash]types.BridgeInteraction{
			swapTx: types.BridgeFromEthereum,
		},
	}
	classifications := map[classificationKey]types.MevType{
		{blockNumber: 500, txIndex: 0}: types.MevTypeSwap,
		{blockNumber: 500, txIndex: 1}: types.MevTypeSandwich,
	}

	transactions, err := resolveBlock(context.Background(), source, classifications, 500)
	if err != nil {
		t.Fatalf("resolveBlock error: %v", err)
	}
	if len(transactions) != 3 {
		t.Fatalf("expected all 3 block transactions, got %d", len(transactions))
	}

	if transactions[0].MevType != types.MevTypeSwap ||
		transactions[0].BridgeInteraction != types.BridgeFromEthereum {
		t.Fatalf("swap transaction not annotated: %+v", transactions[0])
	}
	if transactions[1].CoinbaseTransferValue.Cmp(big.NewInt(777)) != 0 {
		t.Fatalf("direct producer payment not recorded: %s", transactions[1].CoinbaseTransferValue)
	}
	if transactions[2].MevType != types.MevTypeNone ||
		transactions[2].CoinbaseTransferValue.Sign() != 0 {
		t.Fatalf("unclassified transaction not defaulted: %+v", transactions[2])
	}

	// Only the swap-classified transaction needs a receipt lookup.
	if source.receiptCalls != 1 {
		t.Fatalf("expected 1 receipt lookup, got %d", source.receiptCalls)
	}
}
