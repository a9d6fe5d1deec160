package db

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"crosswatcher/logger"
	"crosswatcher/types"
)

type ClickhouseDB struct {
	conn driver.Conn
}

func NewClickhouse() Database {
	opts := &clickhouse.Options{
		Addr: []string{viper.GetString("CLICKHOUSE_ADDR")},
		Auth: clickhouse.Auth{
			Database: viper.GetString("CLICKHOUSE_DATABASE"),
			Username: viper.GetString("CLICKHOUSE_USERNAME"),
			Password: viper.GetString("CLICKHOUSE_PASSWORD"),
		},
		DialTimeout:  5 * time.Second,
		Compression:  &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
		MaxOpenConns: 10,
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		slog.Error("Failed to connect to ClickHouse", "error", err)
	}

	return &ClickhouseDB{conn: conn}
}

// Database interface implementation
func (d *ClickhouseDB) Close() error {
	return d.conn.Close()
}

func (d *ClickhouseDB) EnsureDatabaseExists() error {
	query := `CREATE DATABASE IF NOT EXISTS crosswatcher`
	if err := d.conn.Exec(context.Background(), query); err != nil {
		return fmt.Errorf("failed to ensure database exists: %w", err)
	}
	logger.GlobalLogger.Info("Database ensured to exist", "database", "crosswatcher")
	return nil
}

func (d *ClickhouseDB) CreateTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS crosswatcher.transactions
		(
			blockNumber UInt64,
			transactionHash String,
			transactionIndex UInt32,
			mevType String,
			bridgeInteraction String,
			coinbaseTransferValue String
		)
		ENGINE = ReplacingMergeTree
		ORDER BY (blockNumber, transactionHash)
		SETTINGS index_granularity = 8192`,

		`CREATE TABLE IF NOT EXISTS crosswatcher.extractions
		(
			direction String,
			amountBridged String,

			ethereumToken String,
			ethereumTransactionHash String,
			ethereumSearcherEoa String,
			ethereumSearcherContract String,
			ethereumSwaps String,
			ethereumGasPaid String,

			polygonToken String,
			polygonBridgeTransactionHash String,
			polygonSwapTransactionHash String,
			polygonSearcherEoa String,
			polygonSearcherContract String,
			polygonSwaps String,
			polygonBridgeGasPaid String,
			polygonSwapGasPaid String,

			isCyclicArbitrage Bool,
			profitAmount String,
			profitTokenSymbol String
		)
		ENGINE = MergeTree
		ORDER BY ethereumTransactionHash
		SETTINGS index_granularity = 8192`,

		`CREATE TABLE IF NOT EXISTS crosswatcher.failed_extractions
		(
			direction String,
			amountBridged String,

			ethereumToken String,
			ethereumTransactionHash String,
			ethereumSearcherEoa String,
			ethereumSearcherContract String,
			ethereumSwaps String,

			bridgeFromEthereumTransactionHash String,
			bridgeToEthereumTransactionHash String
		)
		ENGINE = MergeTree
		ORDER BY ethereumTransactionHash
		SETTINGS index_granularity = 8192`,
	}

	for _, q := range queries {
		if err := d.conn.Exec(context.Background(), q); err != nil {
			return err
		}
		logger.GlobalLogger.Info("Check or create table in DB", "query", q)
	}
	return nil
}

func (d *ClickhouseDB) DropTables() error {
	var dbName string
	if err := d.conn.QueryRow(context.Background(), "SELECT currentDatabase()").Scan(&dbName); err != nil {
		return fmt.Errorf("failed to get current database: %w", err)
	}

	rows, err := d.conn.Query(context.Background(),
		fmt.Sprintf("SHOW TABLES FROM %s", dbName))
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, t)
	}

	for _, t := range tables {
		q := fmt.Sprintf("DROP TABLE IF EXISTS %s.%s", dbName, t)
		if err := d.conn.Exec(context.Background(), q); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", t, err)
		}
	}

	return nil
}

type transactionRow struct {
	BlockNumber           uint64 `ch:"blockNumber"`
	TransactionHash       string `ch:"transactionHash"`
	TransactionIndex      uint32 `ch:"transactionIndex"`
	MevType               string `ch:"mevType"`
	BridgeInteraction     string `ch:"bridgeInteraction"`
	CoinbaseTransferValue string `ch:"coinbaseTransferValue"`
}

func (d *ClickhouseDB) InsertTransactions(transactions types.Transactions) error {
	if len(transactions) == 0 {
		return nil
	}
	batch, err := d.conn.PrepareBatch(context.Background(), "INSERT INTO crosswatcher.transactions")
	if err != nil {
		return err
	}
	for _, tx := range transactions {
		row := &transactionRow{
			BlockNumber:           tx.BlockNumber,
			TransactionHash:       tx.TxHash.Hex(),
			TransactionIndex:      uint32(tx.TxIndex),
			MevType:               tx.MevType.String(),
			BridgeInteraction:     tx.BridgeInteraction.String(),
			CoinbaseTransferValue: tx.CoinbaseTransferValue.String(),
		}
		if err := batch.AppendStruct(row); err != nil {
			return err
		}
	}
	return batch.Send()
}

func (d *ClickhouseDB) QueryTransactions(blockNumberStart, blockNumberEnd uint64) (types.Transactions, error) {
	rows, err := d.conn.Query(context.Background(),
		`SELECT blockNumber, transactionHash, transactionIndex, mevType, bridgeInteraction, coinbaseTransferValue
		 FROM crosswatcher.transactions FINAL
		 WHERE blockNumber >= ? AND blockNumber <= ?
		 ORDER BY blockNumber, transactionIndex`,
		blockNumberStart, blockNumberEnd)
	if err != nil {
		return nil, fmt.Errorf("query transactions failed: %w", err)
	}
	defer rows.Close()

	var transactions types.Transactions
	for rows.Next() {
		var row transactionRow
		if err := rows.Scan(&row.BlockNumber, &row.TransactionHash, &row.TransactionIndex,
			&row.MevType, &row.BridgeInteraction, &row.CoinbaseTransferValue); err != nil {
			return nil, fmt.Errorf("scan transaction failed: %w", err)
		}
		tx, err := transactionFromRow(&row)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

func (d *ClickhouseDB) QueryLastFetchedBlock() (uint64, bool, error) {
	row := d.conn.QueryRow(context.Background(),
		`SELECT max(blockNumber) FROM crosswatcher.transactions`)
	var blockNumber *uint64
	if err := row.Scan(&blockNumber); err != nil {
		return 0, false, fmt.Errorf("query last fetched block failed: %w", err)
	}
	if blockNumber == nil {
		return 0, false, nil
	}
	return *blockNumber, true, nil
}

type extractionRow struct {
	Direction     string `ch:"direction"`
	AmountBridged string `ch:"amountBridged"`

	EthereumToken            string `ch:"ethereumToken"`
	EthereumTransactionHash  string `ch:"ethereumTransactionHash"`
	EthereumSearcherEoa      string `ch:"ethereumSearcherEoa"`
	EthereumSearcherContract string `ch:"ethereumSearcherContract"`
	EthereumSwaps            string `ch:"ethereumSwaps"`
	EthereumGasPaid          string `ch:"ethereumGasPaid"`

	PolygonToken                 string `ch:"polygonToken"`
	PolygonBridgeTransactionHash string `ch:"polygonBridgeTransactionHash"`
	PolygonSwapTransactionHash   string `ch:"polygonSwapTransactionHash"`
	PolygonSearcherEoa           string `ch:"polygonSearcherEoa"`
	PolygonSearcherContract      string `ch:"polygonSearcherContract"`
	PolygonSwaps                 string `ch:"polygonSwaps"`
	PolygonBridgeGasPaid         string `ch:"polygonBridgeGasPaid"`
	PolygonSwapGasPaid           string `ch:"polygonSwapGasPaid"`

	IsCyclicArbitrage bool   `ch:"isCyclicArbitrage"`
	ProfitAmount      string `ch:"profitAmount"`
	ProfitTokenSymbol string `ch:"profitTokenSymbol"`
}

func (d *ClickhouseDB) InsertExtractions(extractions []*types.CrossChainMevExtraction) error {
	if len(extractions) == 0 {
		return nil
	}
	batch, err := d.conn.PrepareBatch(context.Background(), "INSERT INTO crosswatcher.extractions")
	if err != nil {
		return err
	}
	for _, extraction := range extractions {
		row, err := extractionToRow(extraction)
		if err != nil {
			return err
		}
		if err := batch.AppendStruct(row); err != nil {
			return err
		}
	}
	return batch.Send()
}

type failedExtractionRow struct {
	Direction     string `ch:"direction"`
	AmountBridged string `ch:"amountBridged"`

	EthereumToken            string `ch:"ethereumToken"`
	EthereumTransactionHash  string `ch:"ethereumTransactionHash"`
	EthereumSearcherEoa      string `ch:"ethereumSearcherEoa"`
	EthereumSearcherContract string `ch:"ethereumSearcherContract"`
	EthereumSwaps            string `ch:"ethereumSwaps"`

	BridgeFromEthereumTransactionHash string `ch:"bridgeFromEthereumTransactionHash"`
	BridgeToEthereumTransactionHash   string `ch:"bridgeToEthereumTransactionHash"`
}

func (d *ClickhouseDB) InsertFailedExtractions(failed []*types.CrossChainMevFailedExtraction) error {
	if len(failed) == 0 {
		return nil
	}
	batch, err := d.conn.PrepareBatch(context.Background(), "INSERT INTO crosswatcher.failed_extractions")
	if err != nil {
		return err
	}
	for _, failedExtraction := range failed {
		swaps, err := encodeSwaps(failedExtraction.EthereumLeg.Swaps)
		if err != nil {
			return err
		}
		row := &failedExtractionRow{
			Direction:                         failedExtraction.Direction.String(),
			AmountBridged:                     failedExtraction.AmountBridged.String(),
			EthereumToken:                     failedExtraction.EthereumLeg.Token.Hex(),
			EthereumTransactionHash:           failedExtraction.EthereumLeg.TxHash.Hex(),
			EthereumSearcherEoa:               failedExtraction.EthereumLeg.SearcherEOA.Hex(),
			EthereumSearcherContract:          failedExtraction.EthereumLeg.SearcherContract.Hex(),
			EthereumSwaps:                     swaps,
			BridgeFromEthereumTransactionHash: failedExtraction.BridgeFromEthereumTxHash.Hex(),
			BridgeToEthereumTransactionHash:   failedExtraction.BridgeToEthereumTxHash.Hex(),
		}
		if err := batch.AppendStruct(row); err != nil {
			return err
		}
	}
	return batch.Send()
}

func extractionToRow(extraction *types.CrossChainMevExtraction) (*extractionRow, error) {
	ethereumSwaps, err := encodeSwaps(extraction.EthereumLeg.Swaps)
	if err != nil {
		return nil, err
	}
	polygonSwaps, err := encodeSwaps(extraction.PolygonLeg.Swaps)
	if err != nil {
		return nil, err
	}
	return &extractionRow{
		Direction:                    extraction.Direction.String(),
		AmountBridged:                extraction.AmountBridged.String(),
		EthereumToken:                extraction.EthereumLeg.Token.Hex(),
		EthereumTransactionHash:      extraction.EthereumLeg.TxHash.Hex(),
		EthereumSearcherEoa:          extraction.EthereumLeg.SearcherEOA.Hex(),
		EthereumSearcherContract:     extraction.EthereumLeg.SearcherContract.Hex(),
		EthereumSwaps:                ethereumSwaps,
		EthereumGasPaid:              bigIntString(extraction.EthereumLeg.GasPaid),
		PolygonToken:                 extraction.PolygonLeg.Token.Hex(),
		PolygonBridgeTransactionHash: extraction.PolygonLeg.BridgeTxHash.Hex(),
		PolygonSwapTransactionHash:   extraction.PolygonLeg.SwapTxHash.Hex(),
		PolygonSearcherEoa:           extraction.PolygonLeg.SearcherEOA.Hex(),
		PolygonSearcherContract:      extraction.PolygonLeg.SearcherContract.Hex(),
		PolygonSwaps:                 polygonSwaps,
		PolygonBridgeGasPaid:         bigIntString(extraction.PolygonLeg.BridgeGasPaid),
		PolygonSwapGasPaid:           bigIntString(extraction.PolygonLeg.SwapGasPaid),
		IsCyclicArbitrage:            extraction.IsCyclicArbitrage,
		ProfitAmount:                 extraction.ProfitAmount,
		ProfitTokenSymbol:            extraction.ProfitTokenSymbol,
	}, nil
}

func transactionFromRow(row *transactionRow) (*types.Transaction, error) {
	mevType, err := types.MevTypeFromName(row.MevType)
	if err != nil {
		return nil, err
	}
	bridgeInteraction, err := types.BridgeInteractionFromName(row.BridgeInteraction)
	if err != nil {
		return nil, err
	}
	coinbaseTransferValue, ok := new(big.Int).SetString(row.CoinbaseTransferValue, 10)
	if !ok {
		return nil, fmt.Errorf("invalid coinbase transfer value %q for %s",
			row.CoinbaseTransferValue, row.TransactionHash)
	}
	return types.NewTransaction(row.BlockNumber, common.HexToHash(row.TransactionHash),
		uint(row.TransactionIndex), mevType, bridgeInteraction, coinbaseTransferValue)
}

func encodeSwaps(swaps []*types.Swap) (string, error) {
	if len(swaps) == 0 {
		return "[]", nil
	}
	encoded, err := json.Marshal(swaps)
	if err != nil {
		return "", fmt.Errorf("failed to encode swaps: %w", err)
	}
	return string(encoded), nil
}

func bigIntString(value *big.Int) string {
	if value == nil {
		return ""
	}
	return value.String()
}
