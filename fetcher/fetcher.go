// Package fetcher builds the classified transaction set the analysis
// pipeline runs on: every transaction of a block range, annotated with
// its MEV classification, bridge interaction and coinbase payment.
package fetcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"crosswatcher/chain"
	"crosswatcher/config"
	"crosswatcher/db"
	"crosswatcher/logger"
	"crosswatcher/types"
	"crosswatcher/zeromev"
)

// ChainSource is the Ethereum access the fetcher needs. Satisfied by
// chain.EthereumService.
type ChainSource interface {
	BlockDetails(ctx context.Context, blockNumber uint64) (chain.BlockDetails, error)
	BridgeInteraction(ctx context.Context, txHash common.Hash) (types.BridgeInteraction, error)
}

// MevFeed supplies per-transaction MEV classifications. Satisfied by
// zeromev.Client.
type MevFeed interface {
	FetchMevTransactions(blockNumberStart uint64, numberOfBlocks int) ([]zeromev.TransactionResponse, error)
}

// RunFetchCmd fetches and stores the classified transactions of
// [blockStart, blockEnd].
func RunFetchCmd(blockStart, blockEnd uint64) error {
	database := db.NewClickhouse()
	defer database.Close()

	ethereum, err := chain.NewEthereumService(viper.GetString("ETHEREUM_RPC_URL"), logger.EthLogger)
	if err != nil {
		return err
	}
	defer ethereum.Close()

	lastFetched, fetchedAny, err := database.QueryLastFetchedBlock()
	if err != nil {
		return fmt.Errorf("failed to query last fetched block: %w", err)
	}
	if fetchedAny && lastFetched+1 > blockStart {
		logger.GlobalLogger.Info("Resuming after last fetched block",
			"lastFetched", lastFetched, "requestedStart", blockStart)
		blockStart = lastFetched + 1
	}
	if blockStart > blockEnd {
		logger.GlobalLogger.Warn("Block range already fetched, nothing to do",
			"lastFetched", lastFetched, "end", blockEnd)
		return nil
	}

	feed := zeromev.NewClient(logger.GlobalLogger)
	return FetchBlockRange(context.Background(), ethereum, feed, database, blockStart, blockEnd)
}

// FetchBlockRange pulls the feed classifications for the range, resolves
// every block's transactions in parallel and persists them.
func FetchBlockRange(ctx context.Context, ethereum ChainSource, feed MevFeed,
	database db.Database, blockStart, blockEnd uint64) error {
	if blockStart > blockEnd {
		return fmt.Errorf("block range start %d is after end %d", blockStart, blockEnd)
	}

	classifications, err := fetchClassifications(feed, blockStart, blockEnd)
	if err != nil {
		return err
	}
	logger.GlobalLogger.Info("Fetched MEV classifications",
		"start", blockStart, "end", blockEnd, "classified", len(classifications))

	fetchTimeBefore := time.Now()
	transactions := resolveBlocks(ctx, ethereum, classifications, blockStart, blockEnd)
	logger.GlobalLogger.Info("Resolved block transactions",
		"num_transactions", len(transactions), "fetch_time", time.Since(fetchTimeBefore).String())

	if err := database.InsertTransactions(transactions); err != nil {
		return fmt.Errorf("failed to insert transactions: %w", err)
	}
	logger.GlobalLogger.Info("Inserted transactions into DB", "num_transactions", len(transactions))
	return nil
}

type classificationKey struct {
	blockNumber uint64
	txIndex     uint
}

func fetchClassifications(feed MevFeed, blockStart, blockEnd uint64) (map[classificationKey]types.MevType, error) {
	classifications := make(map[classificationKey]types.MevType)
	for batchStart := blockStart; batchStart <= blockEnd; batchStart += config.ZEROMEV_MAX_BLOCKS_PER_REQUEST {
		count := int(blockEnd - batchStart + 1)
		if count > config.ZEROMEV_MAX_BLOCKS_PER_REQUEST {
			count = config.ZEROMEV_MAX_BLOCKS_PER_REQUEST
		}
		responses, err := feed.FetchMevTransactions(batchStart, count)
		if err != nil {
			return nil, err
		}
		for _, response := range responses {
			key := classificationKey{blockNumber: response.BlockNumber, txIndex: response.TxIndex}
			classifications[key] = response.MevType
		}
	}
	return classifications, nil
}

// resolveBlocks fans block numbers out to a bounded worker pool. A block
// that cannot be resolved is logged and dropped; the rest of the range
// still lands.
func resolveBlocks(ctx context.Context, ethereum ChainSource,
	classifications map[classificationKey]types.MevType, blockStart, blockEnd uint64) types.Transactions {
	blocksQueue := make(chan uint64, blockEnd-blockStart+1)
	transactionsCh := make(chan types.Transactions)

	go func() {
		for blockNumber := blockStart; blockNumber <= blockEnd; blockNumber++ {
			blocksQueue <- blockNumber
		}
		close(blocksQueue)
	}()

	var workers sync.WaitGroup
	workers.Add(config.FETCH_TX_PARALLEL_NUM)
	for range config.FETCH_TX_PARALLEL_NUM {
		go func() {
			defer workers.Done()
			for blockNumber := range blocksQueue {
				blockTransactions, err := resolveBlock(ctx, ethereum, classifications, blockNumber)
				if err != nil {
					logger.EthLogger.Error("Failed to resolve block", "block", blockNumber, "err", err)
					continue
				}
				transactionsCh <- blockTransactions
			}
		}()
	}

	go func() {
		workers.Wait()
		close(transactionsCh)
	}()

	var transactions types.Transactions
	for blockTransactions := range transactionsCh {
		transactions = append(transactions, blockTransactions...)
	}
	return transactions
}

func resolveBlock(ctx context.Context, ethereum ChainSource,
	classifications map[classificationKey]types.MevType, blockNumber uint64) (types.Transactions, error) {
	details, err := ethereum.BlockDetails(ctx, blockNumber)
	if err != nil {
		return nil, err
	}

	transactions := make(types.Transactions, 0, len(details.Transactions))
	for index, blockTransaction := range details.Transactions {
		key := classificationKey{blockNumber: blockNumber, txIndex: uint(index)}
		mevType := classifications[key]

		coinbaseTransferValue := blockTransaction.Value
		if blockTransaction.To != details.Miner {
			coinbaseTransferValue = nil
		}

		// The bridge interaction requires a receipt; only swap-classified
		// transactions can ever become candidates, so only those pay for
		// the extra call.
		bridgeInteraction := types.BridgeInteractionNone
		if mevType == types.MevTypeSwap {
			bridgeInteraction, err = ethereum.BridgeInteraction(ctx, blockTransaction.Hash)
			if err != nil {
				return nil, err
			}
		}

		transaction, err := types.NewTransaction(blockNumber, blockTransaction.Hash,
			uint(index), mevType, bridgeInteraction, coinbaseTransferValue)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, transaction)
	}
	return transactions, nil
}
