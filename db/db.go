package db

import (
	"crosswatcher/types"
)

type Database interface {
	Close() error
	EnsureDatabaseExists() error
	CreateTables() error
	DropTables() error

	InsertTransactions(transactions types.Transactions) error
	InsertExtractions(extractions []*types.CrossChainMevExtraction) error
	InsertFailedExtractions(failed []*types.CrossChainMevFailedExtraction) error

	QueryTransactions(blockNumberStart, blockNumberEnd uint64) (types.Transactions, error)
	QueryLastFetchedBlock() (uint64, bool, error)
}
