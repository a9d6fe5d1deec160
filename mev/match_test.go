package mev

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"testing"

	MapSet "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"

	"crosswatcher/chain"
	"crosswatcher/config"
	"crosswatcher/types"
)

func init() {
	config.SetDefaults()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func addr(b byte) common.Address {
	return common.Address{19: b}
}

func txHash(b byte) common.Hash {
	return common.Hash{31: b}
}

// fakeChain serves both chain interfaces from fixture maps.
type fakeChain struct {
	swapEvents map[common.Hash][]chain.SwapEvent
	poolTokens map[common.Address][2]common.Address
	parties    map[common.Hash][2]common.Address
	gasPaid    map[common.Hash]*big.Int
	timestamps map[uint64]uint64
	transfers  []chain.TransferLog
	fromOps    map[common.Hash]chain.BridgeOp
	toOps      map[common.Hash]chain.BridgeOp
	symbols    map[common.Address]string
	decimals   map[common.Address]uint8
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		swapEvents: make(map[common.Hash][]chain.SwapEvent),
		poolTokens: make(map[common.Address][2]common.Address),
		parties:    make(map[common.Hash][2]common.Address),
		gasPaid:    make(map[common.Hash]*big.Int),
		timestamps: make(map[uint64]uint64),
		fromOps:    make(map[common.Hash]chain.BridgeOp),
		toOps:      make(map[common.Hash]chain.BridgeOp),
		symbols:    make(map[common.Address]string),
		decimals:   make(map[common.Address]uint8),
	}
}

func (f *fakeChain) SwapEvents(_ context.Context, txHash common.Hash) ([]chain.SwapEvent, error) {
	return f.swapEvents[txHash], nil
}

func (f *fakeChain) PoolTokens(_ context.Context, pool common.Address) (common.Address, common.Address, error) {
	tokens, ok := f.poolTokens[pool]
	if !ok {
		return common.Address{}, common.Address{}, fmt.Errorf("unknown pool %s", pool.Hex())
	}
	return tokens[0], tokens[1], nil
}

func (f *fakeChain) TransactionParties(_ context.Context, txHash common.Hash) (common.Address, common.Address, error) {
	parties, ok := f.parties[txHash]
	if !ok {
		return common.Address{}, common.Address{}, fmt.Errorf("unknown transaction %s", txHash.Hex())
	}
	return parties[0], parties[1], nil
}

func (f *fakeChain) GasPaid(_ context.Context, txHash common.Hash) (*big.Int, error) {
	gasPaid, ok := f.gasPaid[txHash]
	if !ok {
		return nil, fmt.Errorf("no gas fixture for %s", txHash.Hex())
	}
	return gasPaid, nil
}

func (f *fakeChain) BlockTimestamp(_ context.Context, blockNumber uint64) (uint64, error) {
	timestamp, ok := f.timestamps[blockNumber]
	if !ok {
		return 0, fmt.Errorf("no timestamp fixture for block %d", blockNumber)
	}
	return timestamp, nil
}

func (f *fakeChain) SymbolAndDecimals(_ context.Context, token common.Address) (string, uint8, error) {
	symbol, ok := f.symbols[token]
	if !ok {
		return "", 0, fmt.Errorf("no metadata fixture for %s", token.Hex())
	}
	return symbol, f.decimals[token], nil
}

func (f *fakeChain) FromEthereumBridgeOp(_ context.Context, txHash common.Hash) (chain.BridgeOp, error) {
	op, ok := f.fromOps[txHash]
	if !ok {
		return chain.BridgeOp{}, &chain.BridgeOpNotFoundError{TxHash: txHash}
	}
	return op, nil
}

func (f *fakeChain) ToEthereumBridgeOp(_ context.Context, txHash common.Hash) (chain.BridgeOp, error) {
	op, ok := f.toOps[txHash]
	if !ok {
		return chain.BridgeOp{}, &chain.BridgeOpNotFoundError{TxHash: txHash}
	}
	return op, nil
}

func (f *fakeChain) TransferLogs(_ context.Context, token common.Address, fromBlock, toBlock uint64) ([]chain.TransferLog, error) {
	var logs []chain.TransferLog
	for _, transferLog := range f.transfers {
		if transferLog.Token != token {
			continue
		}
		if transferLog.BlockNumber < fromBlock || transferLog.BlockNumber > toBlock {
			continue
		}
		logs = append(logs, transferLog)
	}
	return logs, nil
}

type fakeFinder struct {
	before uint64
	after  uint64
}

func (f *fakeFinder) BlockBeforeTimestamp(uint64) (uint64, error) { return f.before, nil }
func (f *fakeFinder) BlockAfterTimestamp(uint64) (uint64, error)  { return f.after, nil }

type fakeRegistry struct {
	children map[common.Address]common.Address
	legacy   map[common.Address][]common.Address
}

func (f *fakeRegistry) MappedToken(root common.Address) (common.Address, error) {
	child, ok := f.children[root]
	if !ok {
		return common.Address{}, fmt.Errorf("no mapped token for %s", root.Hex())
	}
	return child, nil
}

func (f *fakeRegistry) ExpectedChildTokens(root common.Address) (MapSet.Set[common.Address], error) {
	child, err := f.MappedToken(root)
	if err != nil {
		return nil, err
	}
	expected := MapSet.NewSet(child)
	expected.Append(f.legacy[root]...)
	return expected, nil
}

// Shared fixture identities.
var (
	rootToken  = addr(0xA1)
	childToken = addr(0xB1)
	searcher   = addr(0xC1)
	otherToken = addr(0xD1)
	wethLike   = addr(0xE1)
)

func newTestRegistry() *fakeRegistry {
	return &fakeRegistry{
		children: map[common.Address]common.Address{rootToken: childToken},
	}
}

func fromEthereumCandidate(blockNumber uint64, hash common.Hash) *types.Transaction {
	return &types.Transaction{
		BlockNumber:           blockNumber,
		TxHash:                hash,
		TxIndex:               0,
		MevType:               types.MevTypeSwap,
		BridgeInteraction:     types.BridgeFromEthereum,
		CoinbaseTransferValue: big.NewInt(1),
	}
}

func toEthereumCandidate(blockNumber uint64, hash common.Hash) *types.Transaction {
	candidate := fromEthereumCandidate(blockNumber, hash)
	candidate.BridgeInteraction = types.BridgeToEthereum
	return candidate
}

// setupFromEthereum wires a deposit candidate: swap on Ethereum, bridge
// op of 1e6 to the searcher, anchor block 100, mint at block 105.
func setupFromEthereum(candidateHash, mintHash common.Hash) (*fakeChain, *fakeFinder) {
	fake := newFakeChain()
	fake.timestamps[10] = 1_700_000_000
	fake.fromOps[candidateHash] = chain.BridgeOp{
		Token:        rootToken,
		Counterparty: searcher,
		Amount:       big.NewInt(1_000_000),
	}
	ethereumPool := addr(0x11)
	fake.poolTokens[ethereumPool] = [2]common.Address{otherToken, rootToken}
	fake.swapEvents[candidateHash] = []chain.SwapEvent{{
		Pool:       ethereumPool,
		LogIndex:   1,
		Kind:       chain.PairSwap,
		Amount0In:  big.NewInt(500),
		Amount1In:  big.NewInt(0),
		Amount0Out: big.NewInt(0),
		Amount1Out: big.NewInt(1_000_000),
	}}
	fake.parties[candidateHash] = [2]common.Address{addr(0x21), addr(0x22)}
	fake.transfers = append(fake.transfers, chain.TransferLog{
		Token:       childToken,
		From:        common.Address{},
		To:          searcher,
		Value:       big.NewInt(1_000_000),
		BlockNumber: 105,
		TxHash:      mintHash,
		LogIndex:    1,
	})
	return fake, &fakeFinder{after: 100}
}

func TestMatchFromEthereumExtraction(t *testing.T) {
	candidateHash, mintHash, swapHash := txHash(1), txHash(2), txHash(3)
	fake, finder := setupFromEthereum(candidateHash, mintHash)

	// The searcher moves the minted tokens into a pool shortly after.
	fake.transfers = append(fake.transfers, chain.TransferLog{
		Token:       childToken,
		From:        searcher,
		To:          addr(0x12),
		Value:       big.NewInt(1_000_000),
		BlockNumber: 110,
		TxHash:      swapHash,
		LogIndex:    3,
	})
	polygonPool := addr(0x12)
	fake.poolTokens[polygonPool] = [2]common.Address{childToken, otherToken}
	fake.swapEvents[swapHash] = []chain.SwapEvent{{
		Pool:       polygonPool,
		LogIndex:   5,
		Kind:       chain.PairSwap,
		Amount0In:  big.NewInt(1_000_000),
		Amount1In:  big.NewInt(0),
		Amount0Out: big.NewInt(0),
		Amount1Out: big.NewInt(600),
	}}
	fake.parties[swapHash] = [2]common.Address{addr(0x23), addr(0x24)}

	matcher := NewMatcher(fake, fake, finder, newTestRegistry(), testLogger())
	extractions, failed := matcher.MatchCandidates(context.Background(),
		types.Transactions{fromEthereumCandidate(10, candidateHash)})

	if len(failed) != 0 {
		t.Fatalf("expected no failed extractions, got %d", len(failed))
	}
	if len(extractions) != 1 {
		t.Fatalf("expected 1 extraction, got %d", len(extractions))
	}
	extraction := extractions[0]
	if extraction.Direction != types.BridgeFromEthereum {
		t.Fatalf("wrong direction: %s", extraction.Direction)
	}
	if extraction.PolygonLeg.BridgeTxHash != mintHash {
		t.Fatalf("wrong bridge tx: %s", extraction.PolygonLeg.BridgeTxHash.Hex())
	}
	if extraction.PolygonLeg.SwapTxHash != swapHash {
		t.Fatalf("wrong swap tx: %s", extraction.PolygonLeg.SwapTxHash.Hex())
	}
	if extraction.PolygonLeg.Token != childToken {
		t.Fatalf("wrong polygon token: %s", extraction.PolygonLeg.Token.Hex())
	}
	if len(extraction.PolygonLeg.Swaps) != 1 || extraction.PolygonLeg.Swaps[0].TokenIn != childToken {
		t.Fatalf("polygon swaps not decoded: %+v", extraction.PolygonLeg.Swaps)
	}
	if len(extraction.EthereumLeg.Swaps) != 1 || extraction.EthereumLeg.Swaps[0].TokenOut != rootToken {
		t.Fatalf("ethereum swaps not decoded: %+v", extraction.EthereumLeg.Swaps)
	}
	if extraction.AmountBridged.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("wrong bridged amount: %s", extraction.AmountBridged)
	}
}

func TestMatchFromEthereumFailedRoundTrip(t *testing.T) {
	candidateHash, mintHash, burnHash := txHash(1), txHash(2), txHash(4)
	fake, finder := setupFromEthereum(candidateHash, mintHash)

	// The searcher bridges straight back instead of swapping.
	fake.transfers = append(fake.transfers, chain.TransferLog{
		Token:       childToken,
		From:        searcher,
		To:          common.Address{},
		Value:       big.NewInt(1_000_000),
		BlockNumber: 112,
		TxHash:      burnHash,
		LogIndex:    2,
	})

	matcher := NewMatcher(fake, fake, finder, newTestRegistry(), testLogger())
	extractions, failed := matcher.MatchCandidates(context.Background(),
		types.Transactions{fromEthereumCandidate(10, candidateHash)})

	if len(extractions) != 0 {
		t.Fatalf("expected no extractions, got %d", len(extractions))
	}
	if len(failed) != 1 {
		t.Fatalf("expected 1 failed extraction, got %d", len(failed))
	}
	failedExtraction := failed[0]
	if failedExtraction.BridgeFromEthereumTxHash != mintHash {
		t.Fatalf("wrong from-Ethereum hash: %s", failedExtraction.BridgeFromEthereumTxHash.Hex())
	}
	if failedExtraction.BridgeToEthereumTxHash != burnHash {
		t.Fatalf("wrong to-Ethereum hash: %s", failedExtraction.BridgeToEthereumTxHash.Hex())
	}
	if failedExtraction.Direction != types.BridgeFromEthereum {
		t.Fatalf("wrong direction: %s", failedExtraction.Direction)
	}
}

func TestMatchFromEthereumAmbiguousMint(t *testing.T) {
	candidateHash, mintHash := txHash(1), txHash(2)
	fake, finder := setupFromEthereum(candidateHash, mintHash)

	// A second equally plausible mint makes the search ambiguous.
	fake.transfers = append(fake.transfers, chain.TransferLog{
		Token:       childToken,
		From:        common.Address{},
		To:          searcher,
		Value:       big.NewInt(1_000_000),
		BlockNumber: 108,
		TxHash:      txHash(5),
		LogIndex:    7,
	})

	matcher := NewMatcher(fake, fake, finder, newTestRegistry(), testLogger())
	extractions, failed := matcher.MatchCandidates(context.Background(),
		types.Transactions{fromEthereumCandidate(10, candidateHash)})

	if len(extractions) != 0 || len(failed) != 0 {
		t.Fatalf("ambiguous candidate must be skipped, got %d/%d", len(extractions), len(failed))
	}
}

func TestMatchToleranceBoundsInclusive(t *testing.T) {
	cases := []struct {
		value   int64
		matched bool
	}{
		{1_010_000, true},  // exactly +1%
		{990_000, true},    // exactly -1%
		{1_010_001, false}, // just above
		{989_999, false},   // just below
	}
	for _, c := range cases {
		candidateHash, mintHash, burnHash := txHash(1), txHash(2), txHash(4)
		fake, finder := setupFromEthereum(candidateHash, mintHash)
		fake.transfers[len(fake.transfers)-1].Value = big.NewInt(c.value)
		// A burn closes the round trip so a matched mint still yields a
		// failed extraction rather than an unmatched swap search.
		fake.transfers = append(fake.transfers, chain.TransferLog{
			Token:       childToken,
			From:        searcher,
			To:          common.Address{},
			Value:       big.NewInt(1_000_000),
			BlockNumber: 112,
			TxHash:      burnHash,
			LogIndex:    2,
		})

		matcher := NewMatcher(fake, fake, finder, newTestRegistry(), testLogger())
		extractions, failed := matcher.MatchCandidates(context.Background(),
			types.Transactions{fromEthereumCandidate(10, candidateHash)})

		if len(extractions) != 0 {
			t.Fatalf("value %d: expected no extractions", c.value)
		}
		if c.matched && len(failed) != 1 {
			t.Fatalf("value %d: expected the mint to match", c.value)
		}
		if !c.matched && len(failed) != 0 {
			t.Fatalf("value %d: expected the mint to be out of tolerance", c.value)
		}
	}
}

// setupToEthereum wires an exit candidate: bridge op of 1e6 from the
// searcher, anchor block 200, burn at block 150.
func setupToEthereum(candidateHash, burnHash common.Hash) (*fakeChain, *fakeFinder) {
	fake := newFakeChain()
	fake.timestamps[20] = 1_700_000_000
	fake.toOps[candidateHash] = chain.BridgeOp{
		Token:        rootToken,
		Counterparty: searcher,
		Amount:       big.NewInt(1_000_000),
	}
	ethereumPool := addr(0x11)
	fake.poolTokens[ethereumPool] = [2]common.Address{rootToken, otherToken}
	fake.swapEvents[candidateHash] = []chain.SwapEvent{{
		Pool:       ethereumPool,
		LogIndex:   1,
		Kind:       chain.PairSwap,
		Amount0In:  big.NewInt(1_000_000),
		Amount1In:  big.NewInt(0),
		Amount0Out: big.NewInt(0),
		Amount1Out: big.NewInt(700),
	}}
	fake.parties[candidateHash] = [2]common.Address{addr(0x21), addr(0x22)}
	fake.transfers = append(fake.transfers, chain.TransferLog{
		Token:       childToken,
		From:        searcher,
		To:          common.Address{},
		Value:       big.NewInt(1_000_000),
		BlockNumber: 150,
		TxHash:      burnHash,
		LogIndex:    4,
	})
	return fake, &fakeFinder{before: 200}
}

func TestMatchToEthereumSwapAndBurnInOneTransaction(t *testing.T) {
	candidateHash, burnHash := txHash(1), txHash(2)
	fake, finder := setupToEthereum(candidateHash, burnHash)

	// The burn transaction itself carries the swap.
	polygonPool := addr(0x12)
	fake.poolTokens[polygonPool] = [2]common.Address{otherToken, childToken}
	fake.swapEvents[burnHash] = []chain.SwapEvent{{
		Pool:     polygonPool,
		LogIndex: 2,
		Kind:     chain.ConcentratedSwap,
		Amount0:  big.NewInt(600),
		Amount1:  big.NewInt(-1_000_000),
	}}
	fake.parties[burnHash] = [2]common.Address{addr(0x23), addr(0x24)}

	matcher := NewMatcher(fake, fake, finder, newTestRegistry(), testLogger())
	extractions, failed := matcher.MatchCandidates(context.Background(),
		types.Transactions{toEthereumCandidate(20, candidateHash)})

	if len(failed) != 0 || len(extractions) != 1 {
		t.Fatalf("expected 1 extraction and no failures, got %d/%d", len(extractions), len(failed))
	}
	extraction := extractions[0]
	if extraction.PolygonLeg.BridgeTxHash != burnHash || extraction.PolygonLeg.SwapTxHash != burnHash {
		t.Fatalf("same-transaction swap not detected: bridge %s swap %s",
			extraction.PolygonLeg.BridgeTxHash.Hex(), extraction.PolygonLeg.SwapTxHash.Hex())
	}
	if len(extraction.PolygonLeg.Swaps) != 1 || extraction.PolygonLeg.Swaps[0].TokenOut != childToken {
		t.Fatalf("polygon swaps not decoded: %+v", extraction.PolygonLeg.Swaps)
	}
}

func TestMatchToEthereumSeparateSwapTransaction(t *testing.T) {
	candidateHash, burnHash, swapHash := txHash(1), txHash(2), txHash(3)
	fake, finder := setupToEthereum(candidateHash, burnHash)

	// The swap happened earlier: the pool paid the searcher who then
	// burned in a separate transaction.
	fake.transfers = append(fake.transfers, chain.TransferLog{
		Token:       childToken,
		From:        addr(0x12),
		To:          searcher,
		Value:       big.NewInt(1_000_000),
		BlockNumber: 145,
		TxHash:      swapHash,
		LogIndex:    2,
	})
	polygonPool := addr(0x12)
	fake.poolTokens[polygonPool] = [2]common.Address{otherToken, childToken}
	fake.swapEvents[swapHash] = []chain.SwapEvent{{
		Pool:       polygonPool,
		LogIndex:   1,
		Kind:       chain.PairSwap,
		Amount0In:  big.NewInt(600),
		Amount1In:  big.NewInt(0),
		Amount0Out: big.NewInt(0),
		Amount1Out: big.NewInt(1_000_000),
	}}
	fake.parties[swapHash] = [2]common.Address{addr(0x23), addr(0x24)}

	matcher := NewMatcher(fake, fake, finder, newTestRegistry(), testLogger())
	extractions, failed := matcher.MatchCandidates(context.Background(),
		types.Transactions{toEthereumCandidate(20, candidateHash)})

	if len(failed) != 0 || len(extractions) != 1 {
		t.Fatalf("expected 1 extraction and no failures, got %d/%d", len(extractions), len(failed))
	}
	extraction := extractions[0]
	if extraction.PolygonLeg.BridgeTxHash != burnHash {
		t.Fatalf("wrong bridge tx: %s", extraction.PolygonLeg.BridgeTxHash.Hex())
	}
	if extraction.PolygonLeg.SwapTxHash != swapHash {
		t.Fatalf("wrong swap tx: %s", extraction.PolygonLeg.SwapTxHash.Hex())
	}
}

func TestMatchToEthereumFailedRoundTrip(t *testing.T) {
	candidateHash, burnHash, mintHash := txHash(1), txHash(2), txHash(3)
	fake, finder := setupToEthereum(candidateHash, burnHash)

	// No swap on Polygon: the tokens were minted to the searcher and
	// bridged straight back out.
	fake.transfers = append(fake.transfers, chain.TransferLog{
		Token:       childToken,
		From:        common.Address{},
		To:          searcher,
		Value:       big.NewInt(1_000_000),
		BlockNumber: 140,
		TxHash:      mintHash,
		LogIndex:    1,
	})

	matcher := NewMatcher(fake, fake, finder, newTestRegistry(), testLogger())
	extractions, failed := matcher.MatchCandidates(context.Background(),
		types.Transactions{toEthereumCandidate(20, candidateHash)})

	if len(extractions) != 0 {
		t.Fatalf("expected no extractions, got %d", len(extractions))
	}
	if len(failed) != 1 {
		t.Fatalf("expected 1 failed extraction, got %d", len(failed))
	}
	failedExtraction := failed[0]
	if failedExtraction.BridgeFromEthereumTxHash != mintHash {
		t.Fatalf("wrong from-Ethereum hash: %s", failedExtraction.BridgeFromEthereumTxHash.Hex())
	}
	if failedExtraction.BridgeToEthereumTxHash != burnHash {
		t.Fatalf("wrong to-Ethereum hash: %s", failedExtraction.BridgeToEthereumTxHash.Hex())
	}
}
