package chain

import (
	"context"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"crosswatcher/config"
)

// PolygonService talks to a Polygon JSON-RPC endpoint. It shares the
// Ethereum method set and adds windowed Transfer log queries for the
// matcher.
type PolygonService struct {
	*EthereumService
}

func NewPolygonService(rpcURL string, logger *slog.Logger) (*PolygonService, error) {
	ethService, err := NewEthereumService(rpcURL, logger)
	if err != nil {
		return nil, err
	}
	return &PolygonService{EthereumService: ethService}, nil
}

// TransferLogs fetches the token's Transfer events in [fromBlock, toBlock],
// chunked to stay under the RPC range cap, ordered by block number then
// log index.
func (s *PolygonService) TransferLogs(ctx context.Context, token common.Address, fromBlock, toBlock uint64) ([]TransferLog, error) {
	var transfers []TransferLog
	start := fromBlock
	for start <= toBlock {
		end := start + config.TRANSFER_LOG_MAX_BLOCK_RANGE - 1
		if end > toBlock {
			end = toBlock
		}
		chunk, err := s.transferLogRange(ctx, token, start, end)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, chunk...)
		start = end + 1
	}
	sortTransferLogs(transfers)
	return transfers, nil
}

func (s *PolygonService) transferLogRange(ctx context.Context, token common.Address, fromBlock, toBlock uint64) ([]TransferLog, error) {
	return withRetry(ctx, s.logger, "eth_getLogs", func(callCtx context.Context) ([]TransferLog, error) {
		logs, err := s.client.FilterLogs(callCtx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(fromBlock),
			ToBlock:   new(big.Int).SetUint64(toBlock),
			Addresses: []common.Address{token},
			Topics:    [][]common.Hash{{TransferTopic}},
		})
		if err != nil {
			return nil, err
		}
		transfers := make([]TransferLog, 0, len(logs))
		for i := range logs {
			if transfer, ok := parseTransferLog(&logs[i]); ok {
				transfers = append(transfers, transfer)
			}
		}
		return transfers, nil
	})
}
