package mev

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"crosswatcher/chain"
	"crosswatcher/types"
)

// SwapDecoder turns a transaction's raw pool swap logs into ordered,
// token-resolved swap legs. Pool token slots are cached so repeated
// trades through the same pool cost one pair of eth_calls total.
type SwapDecoder struct {
	source SwapEventSource

	mu    sync.Mutex
	pools map[common.Address][2]common.Address
}

func NewSwapDecoder(source SwapEventSource) *SwapDecoder {
	return &SwapDecoder{
		source: source,
		pools:  make(map[common.Address][2]common.Address),
	}
}

// DecodeSwaps decodes the swaps of a transaction, ordered by log index.
// A transaction without swap logs yields nil. A transaction whose swaps
// do not chain into a single path yields an InconsistentSwapChainError.
func (d *SwapDecoder) DecodeSwaps(ctx context.Context, txHash common.Hash) ([]*types.Swap, error) {
	events, err := d.source.SwapEvents(ctx, txHash)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}

	swaps := make([]*types.Swap, 0, len(events))
	for i := range events {
		swap, err := d.decodeSwap(ctx, &events[i])
		if err != nil {
			return nil, err
		}
		swaps = append(swaps, swap)
	}
	sort.Slice(swaps, func(i, j int) bool {
		return swaps[i].LogIndex < swaps[j].LogIndex
	})

	for i := 0; i < len(swaps)-1; i++ {
		if swaps[i].TokenOut != swaps[i+1].TokenIn {
			return nil, &InconsistentSwapChainError{TxHash: txHash}
		}
	}
	return swaps, nil
}

func (d *SwapDecoder) decodeSwap(ctx context.Context, event *chain.SwapEvent) (*types.Swap, error) {
	token0, token1, err := d.poolTokens(ctx, event.Pool)
	if err != nil {
		return nil, err
	}
	swap := &types.Swap{LogIndex: event.LogIndex}
	switch event.Kind {
	case chain.PairSwap:
		if event.Amount0In.Sign() == 0 {
			swap.TokenIn, swap.AmountIn = token1, event.Amount1In
			swap.TokenOut, swap.AmountOut = token0, event.Amount0Out
		} else {
			swap.TokenIn, swap.AmountIn = token0, event.Amount0In
			swap.TokenOut, swap.AmountOut = token1, event.Amount1Out
		}
	case chain.ConcentratedSwap:
		// The pool reports signed deltas from its own perspective: the
		// negative side is what the trader received.
		if event.Amount0.Sign() < 0 {
			swap.TokenIn, swap.AmountIn = token1, event.Amount1
			swap.TokenOut, swap.AmountOut = token0, new(big.Int).Neg(event.Amount0)
		} else {
			swap.TokenIn, swap.AmountIn = token0, event.Amount0
			swap.TokenOut, swap.AmountOut = token1, new(big.Int).Neg(event.Amount1)
		}
	default:
		return nil, fmt.Errorf("unknown swap event kind %d", event.Kind)
	}
	return swap, nil
}

func (d *SwapDecoder) poolTokens(ctx context.Context, pool common.Address) (common.Address, common.Address, error) {
	d.mu.Lock()
	tokens, ok := d.pools[pool]
	d.mu.Unlock()
	if ok {
		return tokens[0], tokens[1], nil
	}

	token0, token1, err := d.source.PoolTokens(ctx, pool)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	d.mu.Lock()
	d.pools[pool] = [2]common.Address{token0, token1}
	d.mu.Unlock()
	return token0, token1, nil
}
