package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"crosswatcher/types"
)

const erc20MetadataABIJSON = `[
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"}
]`

const poolABIJSON = `[
	{"inputs":[],"name":"token0","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"token1","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

var (
	erc20MetadataABI abi.ABI
	poolABI          abi.ABI
)

func init() {
	var err error
	erc20MetadataABI, err = abi.JSON(strings.NewReader(erc20MetadataABIJSON))
	if err != nil {
		panic(err)
	}
	poolABI, err = abi.JSON(strings.NewReader(poolABIJSON))
	if err != nil {
		panic(err)
	}
}

// BridgeOpNotFoundError signals that a candidate transaction's receipt
// did not contain exactly one recognizable bridge operation.
type BridgeOpNotFoundError struct {
	TxHash common.Hash
}

func (e *BridgeOpNotFoundError) Error() string {
	return fmt.Sprintf("no bridge token and amount log found for %s", e.TxHash.Hex())
}

// EthereumService talks to an Ethereum JSON-RPC endpoint. Every method
// applies bounded retry with backoff and a per-call timeout.
type EthereumService struct {
	client *ethclient.Client
	logger *slog.Logger

	chainIDOnce sync.Once
	chainID     *big.Int
	chainIDErr  error
}

func NewEthereumService(rpcURL string, logger *slog.Logger) (*EthereumService, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to %s: %w", rpcURL, err)
	}
	return &EthereumService{client: client, logger: logger}, nil
}

func (s *EthereumService) Close() {
	s.client.Close()
}

// TransactionParties returns the sender and the called contract of a
// transaction. A contract creation yields a zero to-address.
func (s *EthereumService) TransactionParties(ctx context.Context, txHash common.Hash) (common.Address, common.Address, error) {
	type parties struct {
		from common.Address
		to   common.Address
	}
	p, err := withRetry(ctx, s.logger, "eth_getTransactionByHash", func(callCtx context.Context) (parties, error) {
		tx, _, err := s.client.TransactionByHash(callCtx, txHash)
		if err != nil {
			return parties{}, err
		}
		chainID, err := s.networkChainID(callCtx)
		if err != nil {
			return parties{}, err
		}
		from, err := ethtypes.Sender(ethtypes.LatestSignerForChainID(chainID), tx)
		if err != nil {
			return parties{}, err
		}
		var to common.Address
		if tx.To() != nil {
			to = *tx.To()
		}
		return parties{from: from, to: to}, nil
	})
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	return p.from, p.to, nil
}

// GasPaid returns effectiveGasPrice * gasUsed for the transaction.
func (s *EthereumService) GasPaid(ctx context.Context, txHash common.Hash) (*big.Int, error) {
	return withRetry(ctx, s.logger, "eth_getTransactionReceipt", func(callCtx context.Context) (*big.Int, error) {
		receipt, err := s.client.TransactionReceipt(callCtx, txHash)
		if err != nil {
			return nil, err
		}
		return new(big.Int).Mul(receipt.EffectiveGasPrice, new(big.Int).SetUint64(receipt.GasUsed)), nil
	})
}

func (s *EthereumService) BlockTimestamp(ctx context.Context, blockNumber uint64) (uint64, error) {
	return withRetry(ctx, s.logger, "eth_getBlockByNumber", func(callCtx context.Context) (uint64, error) {
		header, err := s.client.HeaderByNumber(callCtx, new(big.Int).SetUint64(blockNumber))
		if err != nil {
			return 0, err
		}
		return header.Time, nil
	})
}

// BlockTransaction is the slice of a block transaction the fetch
// pipeline needs: enough to detect a direct payment to the producer.
type BlockTransaction struct {
	Hash  common.Hash
	To    common.Address
	Value *big.Int
}

// BlockDetails is a block's producer and its transactions in order.
type BlockDetails struct {
	Number       uint64
	Miner        common.Address
	Transactions []BlockTransaction
}

func (s *EthereumService) BlockDetails(ctx context.Context, blockNumber uint64) (BlockDetails, error) {
	return withRetry(ctx, s.logger, "eth_getBlockByNumber", func(callCtx context.Context) (BlockDetails, error) {
		block, err := s.client.BlockByNumber(callCtx, new(big.Int).SetUint64(blockNumber))
		if err != nil {
			return BlockDetails{}, err
		}
		details := BlockDetails{
			Number:       blockNumber,
			Miner:        block.Coinbase(),
			Transactions: make([]BlockTransaction, 0, len(block.Transactions())),
		}
		for _, tx := range block.Transactions() {
			var to common.Address
			if tx.To() != nil {
				to = *tx.To()
			}
			details.Transactions = append(details.Transactions, BlockTransaction{
				Hash:  tx.Hash(),
				To:    to,
				Value: tx.Value(),
			})
		}
		return details, nil
	})
}

// SwapEvents returns the transaction's recognizable pool swap logs in
// receipt order.
func (s *EthereumService) SwapEvents(ctx context.Context, txHash common.Hash) ([]SwapEvent, error) {
	return withRetry(ctx, s.logger, "eth_getTransactionReceipt", func(callCtx context.Context) ([]SwapEvent, error) {
		receipt, err := s.client.TransactionReceipt(callCtx, txHash)
		if err != nil {
			return nil, err
		}
		var events []SwapEvent
		for _, log := range receipt.Logs {
			if event, ok := parseSwapEvent(log); ok {
				events = append(events, event)
			}
		}
		return events, nil
	})
}

// PoolTokens resolves the two token slots of an AMM pool.
func (s *EthereumService) PoolTokens(ctx context.Context, pool common.Address) (common.Address, common.Address, error) {
	token0, err := s.callForAddress(ctx, pool, "token0")
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	token1, err := s.callForAddress(ctx, pool, "token1")
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	return token0, token1, nil
}

func (s *EthereumService) SymbolAndDecimals(ctx context.Context, token common.Address) (string, uint8, error) {
	type metadata struct {
		symbol   string
		decimals uint8
	}
	m, err := withRetry(ctx, s.logger, "erc20 metadata", func(callCtx context.Context) (metadata, error) {
		symbolRaw, err := s.call(callCtx, token, erc20MetadataABI, "symbol")
		if err != nil {
			return metadata{}, err
		}
		symbolOut, err := erc20MetadataABI.Unpack("symbol", symbolRaw)
		if err != nil {
			return metadata{}, err
		}
		decimalsRaw, err := s.call(callCtx, token, erc20MetadataABI, "decimals")
		if err != nil {
			return metadata{}, err
		}
		decimalsOut, err := erc20MetadataABI.Unpack("decimals", decimalsRaw)
		if err != nil {
			return metadata{}, err
		}
		return metadata{
			symbol:   symbolOut[0].(string),
			decimals: decimalsOut[0].(uint8),
		}, nil
	})
	if err != nil {
		return "", 0, err
	}
	return m.symbol, m.decimals, nil
}

// FromEthereumBridgeOp extracts the single deposit event of an
// Ethereum-to-Polygon bridge transaction.
func (s *EthereumService) FromEthereumBridgeOp(ctx context.Context, txHash common.Hash) (BridgeOp, error) {
	return withRetry(ctx, s.logger, "eth_getTransactionReceipt", func(callCtx context.Context) (BridgeOp, error) {
		receipt, err := s.client.TransactionReceipt(callCtx, txHash)
		if err != nil {
			return BridgeOp{}, err
		}
		var ops []BridgeOp
		for _, log := range receipt.Logs {
			if len(log.Topics) != 4 || len(log.Data) < 32 {
				continue
			}
			if log.Topics[0] != lockedERC20Topic && log.Topics[0] != lockedMintableERC20Topic {
				continue
			}
			// topics: depositor, depositReceiver, rootToken; data: amount
			ops = append(ops, BridgeOp{
				Token:        common.BytesToAddress(log.Topics[3].Bytes()[12:]),
				Counterparty: common.BytesToAddress(log.Topics[2].Bytes()[12:]),
				Amount:       new(big.Int).SetBytes(log.Data[:32]),
			})
		}
		if len(ops) != 1 {
			return BridgeOp{}, &BridgeOpNotFoundError{TxHash: txHash}
		}
		return ops[0], nil
	})
}

// ToEthereumBridgeOp extracts the exit transfer of a Polygon-to-Ethereum
// bridge transaction: the receipt Transfer whose sender is one of the
// bridge escrow contracts. The Ethereum receiver equals the Polygon
// sender of the cross-chain transfer.
func (s *EthereumService) ToEthereumBridgeOp(ctx context.Context, txHash common.Hash) (BridgeOp, error) {
	return withRetry(ctx, s.logger, "eth_getTransactionReceipt", func(callCtx context.Context) (BridgeOp, error) {
		receipt, err := s.client.TransactionReceipt(callCtx, txHash)
		if err != nil {
			return BridgeOp{}, err
		}
		for _, log := range receipt.Logs {
			transfer, ok := parseTransferLog(log)
			if !ok {
				continue
			}
			if isBridgeEscrow(transfer.From) {
				return BridgeOp{
					Token:        transfer.Token,
					Counterparty: transfer.To,
					Amount:       transfer.Value,
				}, nil
			}
		}
		return BridgeOp{}, &BridgeOpNotFoundError{TxHash: txHash}
	})
}

// BridgeInteraction classifies how a transaction touched the bridge,
// from its receipt alone.
func (s *EthereumService) BridgeInteraction(ctx context.Context, txHash common.Hash) (types.BridgeInteraction, error) {
	return withRetry(ctx, s.logger, "eth_getTransactionReceipt", func(callCtx context.Context) (types.BridgeInteraction, error) {
		receipt, err := s.client.TransactionReceipt(callCtx, txHash)
		if err != nil {
			return types.BridgeInteractionNone, err
		}
		for _, log := range receipt.Logs {
			if len(log.Topics) > 0 &&
				(log.Topics[0] == lockedERC20Topic || log.Topics[0] == lockedMintableERC20Topic) {
				return types.BridgeFromEthereum, nil
			}
			if transfer, ok := parseTransferLog(log); ok && isBridgeEscrow(transfer.From) {
				return types.BridgeToEthereum, nil
			}
		}
		return types.BridgeInteractionNone, nil
	})
}

func (s *EthereumService) networkChainID(ctx context.Context) (*big.Int, error) {
	s.chainIDOnce.Do(func() {
		s.chainID, s.chainIDErr = s.client.ChainID(ctx)
	})
	return s.chainID, s.chainIDErr
}

func (s *EthereumService) callForAddress(ctx context.Context, contract common.Address, method string) (common.Address, error) {
	return withRetry(ctx, s.logger, "eth_call "+method, func(callCtx context.Context) (common.Address, error) {
		raw, err := s.call(callCtx, contract, poolABI, method)
		if err != nil {
			return common.Address{}, err
		}
		out, err := poolABI.Unpack(method, raw)
		if err != nil {
			return common.Address{}, err
		}
		return out[0].(common.Address), nil
	})
}

func (s *EthereumService) call(ctx context.Context, contract common.Address, contractABI abi.ABI, method string) ([]byte, error) {
	data, err := contractABI.Pack(method)
	if err != nil {
		return nil, err
	}
	return s.client.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
}

func isBridgeEscrow(address common.Address) bool {
	for _, escrow := range BridgeEscrowAddresses {
		if address == escrow {
			return true
		}
	}
	return false
}

func sortTransferLogs(logs []TransferLog) {
	sort.Slice(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		return logs[i].LogIndex < logs[j].LogIndex
	})
}
