package mev

import (
	"context"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"crosswatcher/types"
)

// Analyzer enriches matched extractions in place: it flags cyclic
// arbitrages, computes their profit in the start token's units and fills
// in the gas paid on both legs.
type Analyzer struct {
	ethereum EthereumData
	polygon  PolygonData
	registry TokenRegistry
	logger   *slog.Logger
}

func NewAnalyzer(ethereum EthereumData, polygon PolygonData, registry TokenRegistry,
	logger *slog.Logger) *Analyzer {
	return &Analyzer{
		ethereum: ethereum,
		polygon:  polygon,
		registry: registry,
		logger:   logger,
	}
}

// AnalyzeExtractions processes each extraction independently; a failing
// one is logged and left partially enriched.
func (a *Analyzer) AnalyzeExtractions(ctx context.Context, extractions []*types.CrossChainMevExtraction) {
	for _, extraction := range extractions {
		if ctx.Err() != nil {
			a.logger.Warn("arbitrage analysis aborted", "err", ctx.Err())
			return
		}
		if err := a.analyzeExtraction(ctx, extraction); err != nil {
			a.logger.Warn("unexpected error analyzing extraction",
				"ethereumTx", extraction.EthereumLeg.TxHash.Hex(), "err", err)
		}
	}
}

func (a *Analyzer) analyzeExtraction(ctx context.Context, extraction *types.CrossChainMevExtraction) error {
	var err error
	switch extraction.Direction {
	case types.BridgeFromEthereum:
		err = a.analyzeFromEthereum(ctx, extraction)
	case types.BridgeToEthereum:
		err = a.analyzeToEthereum(ctx, extraction)
	}
	if err != nil {
		return err
	}
	return a.fillGasPaid(ctx, extraction)
}

// analyzeFromEthereum checks whether a deposit round trip is cyclic: the
// Polygon leg must end in a child of the token the Ethereum leg started
// with. The profit is the Polygon output minus the Ethereum input.
func (a *Analyzer) analyzeFromEthereum(ctx context.Context, extraction *types.CrossChainMevExtraction) error {
	ethereumSwaps := extraction.EthereumLeg.Swaps
	polygonSwaps := extraction.PolygonLeg.Swaps
	if len(ethereumSwaps) == 0 || len(polygonSwaps) == 0 {
		return nil
	}
	startedWith := ethereumSwaps[0]
	endedWith := polygonSwaps[len(polygonSwaps)-1]

	expected, err := a.registry.ExpectedChildTokens(startedWith.TokenIn)
	if err != nil {
		return err
	}
	if !expected.Contains(endedWith.TokenOut) {
		return nil
	}
	extraction.IsCyclicArbitrage = true
	profit := new(big.Int).Sub(endedWith.AmountOut, startedWith.AmountIn)
	return a.fillProfit(ctx, extraction, startedWith.TokenIn, profit)
}

// analyzeToEthereum is the mirror case: the Polygon leg must have
// started in a child of the token the Ethereum leg ended with.
func (a *Analyzer) analyzeToEthereum(ctx context.Context, extraction *types.CrossChainMevExtraction) error {
	ethereumSwaps := extraction.EthereumLeg.Swaps
	polygonSwaps := extraction.PolygonLeg.Swaps
	if len(ethereumSwaps) == 0 || len(polygonSwaps) == 0 {
		return nil
	}
	startedWith := polygonSwaps[0]
	endedWith := ethereumSwaps[len(ethereumSwaps)-1]

	expected, err := a.registry.ExpectedChildTokens(endedWith.TokenOut)
	if err != nil {
		return err
	}
	if !expected.Contains(startedWith.TokenIn) {
		return nil
	}
	extraction.IsCyclicArbitrage = true
	profit := new(big.Int).Sub(endedWith.AmountOut, startedWith.AmountIn)
	return a.fillProfit(ctx, extraction, endedWith.TokenOut, profit)
}

func (a *Analyzer) fillProfit(ctx context.Context, extraction *types.CrossChainMevExtraction,
	token common.Address, profit *big.Int) error {
	symbol, decimals, err := a.ethereum.SymbolAndDecimals(ctx, token)
	if err != nil {
		return err
	}
	extraction.ProfitTokenSymbol = symbol
	extraction.ProfitAmount = decimal.NewFromBigInt(profit, -int32(decimals)).String()
	return nil
}

func (a *Analyzer) fillGasPaid(ctx context.Context, extraction *types.CrossChainMevExtraction) error {
	gasPaid, err := a.ethereum.GasPaid(ctx, extraction.EthereumLeg.TxHash)
	if err != nil {
		return err
	}
	extraction.EthereumLeg.GasPaid = gasPaid

	polygonLeg := extraction.PolygonLeg
	polygonLeg.BridgeGasPaid, err = a.polygon.GasPaid(ctx, polygonLeg.BridgeTxHash)
	if err != nil {
		return err
	}
	if polygonLeg.SwapTxHash == polygonLeg.BridgeTxHash {
		polygonLeg.SwapGasPaid = polygonLeg.BridgeGasPaid
		return nil
	}
	polygonLeg.SwapGasPaid, err = a.polygon.GasPaid(ctx, polygonLeg.SwapTxHash)
	if err != nil {
		return err
	}
	return nil
}
