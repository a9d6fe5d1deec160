package mev

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"crosswatcher/bridge"
	"crosswatcher/chain"
	"crosswatcher/config"
	"crosswatcher/types"
)

// Matcher correlates Ethereum cross-chain MEV candidates with their
// Polygon leg. A candidate that bridged value out is matched against the
// Polygon transfer logs of the mapped token inside a direction-dependent
// block window around the candidate's timestamp.
type Matcher struct {
	ethereum EthereumData
	polygon  PolygonData
	finder   BlockFinder
	registry TokenRegistry
	logger   *slog.Logger

	ethereumSwaps *SwapDecoder
	polygonSwaps  *SwapDecoder

	toleranceBps   uint64
	forwardBlocks  uint64
	backwardBlocks uint64
}

func NewMatcher(ethereum EthereumData, polygon PolygonData, finder BlockFinder,
	registry TokenRegistry, logger *slog.Logger) *Matcher {
	return &Matcher{
		ethereum:       ethereum,
		polygon:        polygon,
		finder:         finder,
		registry:       registry,
		logger:         logger,
		ethereumSwaps:  NewSwapDecoder(ethereum),
		polygonSwaps:   NewSwapDecoder(polygon),
		toleranceBps:   config.AmountToleranceBps(),
		forwardBlocks:  config.ForwardWindowBlocks(),
		backwardBlocks: config.BackwardWindowBlocks(),
	}
}

// matchAttempt is the outcome of a Polygon-side search. A matched
// attempt carries the bridge and swap transactions of a completed round
// trip; an unmatched one carries the second bridge transaction of a
// round trip that bridged back without swapping.
type matchAttempt struct {
	matched            bool
	bridgeTxHash       common.Hash
	swapTxHash         common.Hash
	swaps              []*types.Swap
	secondBridgeTxHash common.Hash
}

// MatchCandidates matches each candidate against its Polygon leg.
// Failures are isolated per candidate: a candidate that cannot be
// matched is logged and skipped, never aborting the batch.
func (m *Matcher) MatchCandidates(ctx context.Context, candidates types.Transactions) (
	[]*types.CrossChainMevExtraction, []*types.CrossChainMevFailedExtraction) {
	var extractions []*types.CrossChainMevExtraction
	var failed []*types.CrossChainMevFailedExtraction
	timestamps := make(map[uint64]uint64)

	for _, candidate := range candidates {
		if ctx.Err() != nil {
			m.logger.Warn("matching aborted", "err", ctx.Err())
			break
		}
		timestamp, ok := timestamps[candidate.BlockNumber]
		if !ok {
			var err error
			timestamp, err = m.ethereum.BlockTimestamp(ctx, candidate.BlockNumber)
			if err != nil {
				m.logger.Warn("unable to resolve block timestamp",
					"block", candidate.BlockNumber, "err", err)
				continue
			}
			timestamps[candidate.BlockNumber] = timestamp
		}

		extraction, failedExtraction, err := m.matchCandidate(ctx, candidate, timestamp)
		if err != nil {
			m.logCandidateError(candidate, err)
			continue
		}
		if extraction != nil {
			extractions = append(extractions, extraction)
		}
		if failedExtraction != nil {
			failed = append(failed, failedExtraction)
		}
	}
	return extractions, failed
}

func (m *Matcher) matchCandidate(ctx context.Context, candidate *types.Transaction,
	blockTimestamp uint64) (*types.CrossChainMevExtraction, *types.CrossChainMevFailedExtraction, error) {
	ethereumSwaps, err := m.ethereumSwaps.DecodeSwaps(ctx, candidate.TxHash)
	if err != nil {
		return nil, nil, err
	}
	searcherEOA, searcherContract, err := m.ethereum.TransactionParties(ctx, candidate.TxHash)
	if err != nil {
		return nil, nil, err
	}

	var op chain.BridgeOp
	switch candidate.BridgeInteraction {
	case types.BridgeFromEthereum:
		op, err = m.ethereum.FromEthereumBridgeOp(ctx, candidate.TxHash)
	case types.BridgeToEthereum:
		op, err = m.ethereum.ToEthereumBridgeOp(ctx, candidate.TxHash)
	default:
		err = fmt.Errorf("candidate %s has no bridge interaction", candidate.TxHash.Hex())
	}
	if err != nil {
		return nil, nil, err
	}

	ethereumLeg := &types.EthereumLeg{
		Token:            op.Token,
		TxHash:           candidate.TxHash,
		SearcherEOA:      searcherEOA,
		SearcherContract: searcherContract,
		Swaps:            ethereumSwaps,
	}
	polygonToken, err := m.registry.MappedToken(op.Token)
	if err != nil {
		return nil, nil, err
	}

	var attempt matchAttempt
	if candidate.BridgeInteraction == types.BridgeFromEthereum {
		var anchor uint64
		anchor, err = m.finder.BlockAfterTimestamp(blockTimestamp)
		if err != nil {
			return nil, nil, err
		}
		attempt, err = m.findFromEthereum(ctx, anchor, polygonToken, op.Counterparty, op.Amount)
	} else {
		var anchor uint64
		anchor, err = m.finder.BlockBeforeTimestamp(blockTimestamp)
		if err != nil {
			return nil, nil, err
		}
		attempt, err = m.findToEthereum(ctx, anchor, polygonToken, op.Counterparty, op.Amount)
	}
	if err != nil {
		return nil, nil, err
	}

	if !attempt.matched {
		failedExtraction := &types.CrossChainMevFailedExtraction{
			EthereumLeg:   ethereumLeg,
			Direction:     candidate.BridgeInteraction,
			AmountBridged: op.Amount,
		}
		// The record's hash fields are ordered by direction, not by
		// discovery order: a TO_ETHEREUM round trip found its exit
		// first and the preceding deposit second.
		if candidate.BridgeInteraction == types.BridgeFromEthereum {
			failedExtraction.BridgeFromEthereumTxHash = attempt.bridgeTxHash
			failedExtraction.BridgeToEthereumTxHash = attempt.secondBridgeTxHash
		} else {
			failedExtraction.BridgeFromEthereumTxHash = attempt.secondBridgeTxHash
			failedExtraction.BridgeToEthereumTxHash = attempt.bridgeTxHash
		}
		return nil, failedExtraction, nil
	}

	polygonEOA, polygonContract, err := m.polygon.TransactionParties(ctx, attempt.swapTxHash)
	if err != nil {
		return nil, nil, err
	}
	extraction := &types.CrossChainMevExtraction{
		EthereumLeg: ethereumLeg,
		PolygonLeg: &types.PolygonLeg{
			Token:            polygonToken,
			BridgeTxHash:     attempt.bridgeTxHash,
			SwapTxHash:       attempt.swapTxHash,
			SearcherEOA:      polygonEOA,
			SearcherContract: polygonContract,
			Swaps:            attempt.swaps,
		},
		Direction:     candidate.BridgeInteraction,
		AmountBridged: op.Amount,
	}
	return extraction, nil, nil
}

// findFromEthereum locates the Polygon leg of a deposit. The mint lands
// within the forward window after the anchor block; the searcher's swap
// follows within another forward window. A burn instead of a swap means
// the round trip completed without extracting on Polygon.
func (m *Matcher) findFromEthereum(ctx context.Context, anchorBlock uint64,
	polygonToken, receiver common.Address, amount *big.Int) (matchAttempt, error) {
	bridgeLog, err := m.matchTransfer(ctx, polygonToken,
		anchorBlock, anchorBlock+m.forwardBlocks,
		amount, true, types.BridgeFromEthereum, receiver)
	if err != nil {
		return matchAttempt{}, err
	}

	swapLog, err := m.matchTransfer(ctx, polygonToken,
		bridgeLog.BlockNumber, bridgeLog.BlockNumber+m.forwardBlocks,
		amount, false, types.BridgeFromEthereum, receiver)
	if err != nil {
		var ambiguous *AmbiguousMatchError
		if !errors.As(err, &ambiguous) {
			return matchAttempt{}, err
		}
		burnLog, err := m.matchTransfer(ctx, polygonToken,
			bridgeLog.BlockNumber, bridgeLog.BlockNumber+m.forwardBlocks,
			amount, true, types.BridgeToEthereum, receiver)
		if err != nil {
			return matchAttempt{}, err
		}
		return matchAttempt{
			bridgeTxHash:       bridgeLog.TxHash,
			secondBridgeTxHash: burnLog.TxHash,
		}, nil
	}

	swaps, err := m.polygonSwaps.DecodeSwaps(ctx, swapLog.TxHash)
	if err != nil {
		return matchAttempt{}, err
	}
	return matchAttempt{
		matched:      true,
		bridgeTxHash: bridgeLog.TxHash,
		swapTxHash:   swapLog.TxHash,
		swaps:        swaps,
	}, nil
}

// findToEthereum locates the Polygon leg of an exit. The burn precedes
// the anchor block within the backward window. The searcher may have
// swapped and burned in one transaction; otherwise the swap precedes the
// burn within a forward window. A mint instead of a swap means the value
// only passed through Polygon.
func (m *Matcher) findToEthereum(ctx context.Context, anchorBlock uint64,
	polygonToken, sender common.Address, amount *big.Int) (matchAttempt, error) {
	bridgeLog, err := m.matchTransfer(ctx, polygonToken,
		saturatingSub(anchorBlock, m.backwardBlocks), anchorBlock,
		amount, true, types.BridgeToEthereum, sender)
	if err != nil {
		return matchAttempt{}, err
	}

	swaps, err := m.polygonSwaps.DecodeSwaps(ctx, bridgeLog.TxHash)
	if err != nil {
		return matchAttempt{}, err
	}
	if len(swaps) > 0 {
		return matchAttempt{
			matched:      true,
			bridgeTxHash: bridgeLog.TxHash,
			swapTxHash:   bridgeLog.TxHash,
			swaps:        swaps,
		}, nil
	}

	swapLog, err := m.matchTransfer(ctx, polygonToken,
		saturatingSub(bridgeLog.BlockNumber, m.forwardBlocks), bridgeLog.BlockNumber,
		amount, false, types.BridgeToEthereum, sender)
	if err != nil {
		var ambiguous *AmbiguousMatchError
		if !errors.As(err, &ambiguous) {
			return matchAttempt{}, err
		}
		mintLog, err := m.matchTransfer(ctx, polygonToken,
			saturatingSub(bridgeLog.BlockNumber, m.forwardBlocks), bridgeLog.BlockNumber,
			amount, true, types.BridgeFromEthereum, sender)
		if err != nil {
			return matchAttempt{}, err
		}
		return matchAttempt{
			bridgeTxHash:       bridgeLog.TxHash,
			secondBridgeTxHash: mintLog.TxHash,
		}, nil
	}

	swaps, err = m.polygonSwaps.DecodeSwaps(ctx, swapLog.TxHash)
	if err != nil {
		return matchAttempt{}, err
	}
	return matchAttempt{
		matched:      true,
		bridgeTxHash: bridgeLog.TxHash,
		swapTxHash:   swapLog.TxHash,
		swaps:        swaps,
	}, nil
}

// matchTransfer scans the token's transfer logs in [fromBlock, toBlock]
// for the single log matching the bridged amount within tolerance and
// the expected parties. Anything but exactly one match is ambiguous.
func (m *Matcher) matchTransfer(ctx context.Context, token common.Address,
	fromBlock, toBlock uint64, amount *big.Int, isBridgeTransfer bool,
	interaction types.BridgeInteraction, counterparty common.Address) (chain.TransferLog, error) {
	transferLogs, err := m.polygon.TransferLogs(ctx, token, fromBlock, toBlock)
	if err != nil {
		return chain.TransferLog{}, err
	}

	var matched []chain.TransferLog
	for _, transferLog := range transferLogs {
		if !withinTolerance(transferLog.Value, amount, m.toleranceBps) {
			continue
		}
		if matchesParties(&transferLog, isBridgeTransfer, interaction, counterparty) {
			matched = append(matched, transferLog)
		}
	}
	if len(matched) != 1 {
		return chain.TransferLog{}, &AmbiguousMatchError{Amount: amount, Candidates: matched}
	}
	return matched[0], nil
}

// matchesParties checks a transfer's parties against the search shape.
// The direction side of the transfer (the sender for FROM_ETHEREUM, the
// recipient for TO_ETHEREUM) is the zero address on a bridge transfer
// and the counterparty on a plain one.
func matchesParties(transferLog *chain.TransferLog, isBridgeTransfer bool,
	interaction types.BridgeInteraction, counterparty common.Address) bool {
	directionSide, otherSide := transferLog.From, transferLog.To
	if interaction == types.BridgeToEthereum {
		directionSide, otherSide = transferLog.To, transferLog.From
	}
	if isBridgeTransfer {
		return directionSide == (common.Address{}) && otherSide == counterparty
	}
	return directionSide == counterparty && otherSide != (common.Address{})
}

// withinTolerance reports whether value lies in
// [amount*(1 - bps/10000), amount*(1 + bps/10000)], bounds inclusive.
// The comparison is exact integer arithmetic, no floats.
func withinTolerance(value, amount *big.Int, toleranceBps uint64) bool {
	scaled := new(big.Int).Mul(value, big.NewInt(10000))
	lower := new(big.Int).Mul(amount, new(big.Int).SetUint64(10000-toleranceBps))
	upper := new(big.Int).Mul(amount, new(big.Int).SetUint64(10000+toleranceBps))
	return scaled.Cmp(lower) >= 0 && scaled.Cmp(upper) <= 0
}

func (m *Matcher) logCandidateError(candidate *types.Transaction, err error) {
	var bridgeOpErr *chain.BridgeOpNotFoundError
	var ambiguousErr *AmbiguousMatchError
	var swapChainErr *InconsistentSwapChainError
	var mappingErr *bridge.TokenMappingNotFoundError
	var transientErr *chain.TransientError
	switch {
	case errors.As(err, &bridgeOpErr):
		m.logger.Warn("unable to match candidate, no bridge operation log found",
			"tx", candidate.TxHash.Hex())
	case errors.As(err, &ambiguousErr):
		m.logger.Warn("unable to match candidate, ambiguous transfer match",
			"tx", candidate.TxHash.Hex(), "matchedLogs", len(ambiguousErr.Candidates))
	case errors.As(err, &swapChainErr):
		m.logger.Warn("unable to match candidate, unrelated swaps detected",
			"tx", candidate.TxHash.Hex(), "swapTx", swapChainErr.TxHash.Hex())
	case errors.As(err, &mappingErr):
		m.logger.Warn("unable to match candidate, no mapped child token",
			"tx", candidate.TxHash.Hex(), "token", mappingErr.Token.Hex())
	case errors.As(err, &transientErr):
		m.logger.Warn("unable to match candidate, RPC failure persisted",
			"tx", candidate.TxHash.Hex(), "err", err)
	default:
		m.logger.Warn("unexpected error matching candidate",
			"tx", candidate.TxHash.Hex(), "err", err)
	}
}

func saturatingSub(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}
