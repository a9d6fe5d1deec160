package config

import (
	"time"

	"github.com/spf13/viper"
)

// Path config
const (
	LogPath    = "./logs/"
	ConfigPath = "./"
)

// Network config
const (
	DefaultRetryTimes    = 3
	DefaultRetryInterval = 100 * time.Millisecond
	DefaultTimeout       = 20 * time.Second
)

// Chain config
const (
	POLYGON_CHAIN_ID           = 137
	POLYGON_AVERAGE_BLOCK_TIME = 3 // seconds

	// eth_getLogs range cap for Transfer log queries; public Polygon RPC
	// endpoints reject wider ranges
	TRANSFER_LOG_MAX_BLOCK_RANGE = 600
)

// Match config
const (
	// Tolerance band for matching a Polygon transfer against the bridged
	// amount, in basis points. 100 bps = bridged amount +/- 1%, bounds
	// inclusive, to absorb bridge fees and rounding.
	AMOUNT_TOLERANCE_BPS = 100

	// A FROM_ETHEREUM deposit surfaces on Polygon shortly after the
	// Ethereum event; a TO_ETHEREUM exit must have been prepared on
	// Polygon before it. The backward window was tuned wider; the two
	// values stay distinct.
	MATCH_FORWARD_WINDOW  = 1 * time.Hour
	MATCH_BACKWARD_WINDOW = 5 * time.Hour

	BLOCKS_IN_FORWARD_WINDOW  = uint64(MATCH_FORWARD_WINDOW/time.Second) / POLYGON_AVERAGE_BLOCK_TIME
	BLOCKS_IN_BACKWARD_WINDOW = uint64(MATCH_BACKWARD_WINDOW/time.Second) / POLYGON_AVERAGE_BLOCK_TIME
)

// Fetch config
const (
	ZEROMEV_MAX_BLOCKS_PER_REQUEST = 100
	FETCH_TX_PARALLEL_NUM          = 8 // number of parallel transaction detail fetches

	ANALYZE_BATCH_SIZE = 1000 // blocks per analysis batch
)

// Output config
const (
	EXTRACTIONS_RESULT_FILE = "extractions_result.json"
	EXTRACTIONS_FAILED_FILE = "extractions_failed.json"
)

// SetDefaults registers default values for every tunable read through
// viper, so a bare config.yaml still yields a working setup.
func SetDefaults() {
	viper.SetDefault("match.tolerance-bps", AMOUNT_TOLERANCE_BPS)
	viper.SetDefault("match.forward-window-blocks", BLOCKS_IN_FORWARD_WINDOW)
	viper.SetDefault("match.backward-window-blocks", BLOCKS_IN_BACKWARD_WINDOW)
}

func AmountToleranceBps() uint64 {
	return viper.GetUint64("match.tolerance-bps")
}

func ForwardWindowBlocks() uint64 {
	return viper.GetUint64("match.forward-window-blocks")
}

func BackwardWindowBlocks() uint64 {
	return viper.GetUint64("match.backward-window-blocks")
}
