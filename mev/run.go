package mev

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"crosswatcher/bridge"
	"crosswatcher/chain"
	"crosswatcher/config"
	"crosswatcher/db"
	"crosswatcher/findblock"
	"crosswatcher/logger"
)

// RunAnalyzeCmd runs the full analysis pipeline over [blockStart,
// blockEnd]: candidate selection, Polygon leg matching and arbitrage
// analysis, in batches, writing results to JSON files and ClickHouse.
func RunAnalyzeCmd(blockStart, blockEnd uint64) error {
	database := db.NewClickhouse()
	defer database.Close()

	ethereum, err := chain.NewEthereumService(viper.GetString("ETHEREUM_RPC_URL"), logger.EthLogger)
	if err != nil {
		return err
	}
	defer ethereum.Close()

	polygon, err := chain.NewPolygonService(viper.GetString("POLYGON_RPC_URL"), logger.PolyLogger)
	if err != nil {
		return err
	}
	defer polygon.Close()

	registry, err := bridge.NewRegistry(logger.GlobalLogger)
	if err != nil {
		return err
	}
	finder := findblock.NewClient(logger.GlobalLogger)

	matcher := NewMatcher(ethereum, polygon, finder, registry, logger.GlobalLogger)
	analyzer := NewAnalyzer(ethereum, polygon, registry, logger.GlobalLogger)

	extractionsWriter, err := NewResultWriter(config.EXTRACTIONS_RESULT_FILE)
	if err != nil {
		return err
	}
	failedWriter, err := NewResultWriter(config.EXTRACTIONS_FAILED_FILE)
	if err != nil {
		extractionsWriter.Close()
		return err
	}

	runErr := analyzeBlockRange(context.Background(), database, matcher, analyzer,
		extractionsWriter, failedWriter, blockStart, blockEnd)

	if err := extractionsWriter.Close(); err != nil && runErr == nil {
		runErr = err
	}
	if err := failedWriter.Close(); err != nil && runErr == nil {
		runErr = err
	}
	logger.GlobalLogger.Info("Analysis finished",
		"start", blockStart, "end", blockEnd,
		"extractions", extractionsWriter.Count(), "failed", failedWriter.Count())
	return runErr
}

func analyzeBlockRange(ctx context.Context, database db.Database, matcher *Matcher,
	analyzer *Analyzer, extractionsWriter, failedWriter *ResultWriter,
	blockStart, blockEnd uint64) error {
	if blockStart > blockEnd {
		return fmt.Errorf("block range start %d is after end %d", blockStart, blockEnd)
	}

	for batchStart := blockStart; batchStart <= blockEnd; batchStart += config.ANALYZE_BATCH_SIZE {
		batchEnd := batchStart + config.ANALYZE_BATCH_SIZE - 1
		if batchEnd > blockEnd {
			batchEnd = blockEnd
		}

		transactions, err := database.QueryTransactions(batchStart, batchEnd)
		if err != nil {
			return err
		}
		candidates := FindCrossChainCandidates(transactions)
		logger.GlobalLogger.Info("Analyzing batch",
			"start", batchStart, "end", batchEnd,
			"transactions", len(transactions), "candidates", len(candidates))
		if len(candidates) == 0 {
			continue
		}

		matchTimeBefore := time.Now()
		extractions, failed := matcher.MatchCandidates(ctx, candidates)
		analyzer.AnalyzeExtractions(ctx, extractions)
		logger.GlobalLogger.Info("Matched batch",
			"start", batchStart, "end", batchEnd,
			"extractions", len(extractions), "failed", len(failed),
			"match_time", time.Since(matchTimeBefore).String())

		for _, extraction := range extractions {
			if err := extractionsWriter.Write(extraction); err != nil {
				return err
			}
		}
		for _, failedExtraction := range failed {
			if err := failedWriter.Write(failedExtraction); err != nil {
				return err
			}
		}
		if err := database.InsertExtractions(extractions); err != nil {
			return err
		}
		if err := database.InsertFailedExtractions(failed); err != nil {
			return err
		}
	}
	return nil
}
