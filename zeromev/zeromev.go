package zeromev

import (
	"fmt"
	"log/slog"

	"crosswatcher/config"
	"crosswatcher/types"
	"crosswatcher/utils"
)

const DefaultBlocksURL = "https://data.zeromev.org/v1/mevBlock"

// TransactionResponse is one classified transaction from the feed.
type TransactionResponse struct {
	BlockNumber uint64
	TxIndex     uint
	MevType     types.MevType
}

type rawTransaction struct {
	BlockNumber uint64 `json:"block_number"`
	TxIndex     uint   `json:"tx_index"`
	MevType     string `json:"mev_type"`
}

// Client fetches per-transaction MEV classifications from the zeromev
// API.
type Client struct {
	blocksURL string
	logger    *slog.Logger
}

func NewClient(logger *slog.Logger) *Client {
	return &Client{blocksURL: DefaultBlocksURL, logger: logger}
}

// FetchMevTransactions fetches the classified transactions of
// numberOfBlocks blocks starting at blockNumberStart. The API caps a
// request at 100 blocks.
func (c *Client) FetchMevTransactions(blockNumberStart uint64, numberOfBlocks int) ([]TransactionResponse, error) {
	if numberOfBlocks > config.ZEROMEV_MAX_BLOCKS_PER_REQUEST {
		return nil, fmt.Errorf("the number of blocks must be lower or equal to %d",
			config.ZEROMEV_MAX_BLOCKS_PER_REQUEST)
	}
	params := map[string]string{
		"block_number": fmt.Sprintf("%d", blockNumberStart),
		"count":        fmt.Sprintf("%d", numberOfBlocks),
	}

	var raw []rawTransaction
	err := utils.GetUrlResponseWithRetry(c.blocksURL, params, &raw, config.DefaultRetryTimes, c.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %d MEV blocks from %d: %w",
			numberOfBlocks, blockNumberStart, err)
	}

	responses := make([]TransactionResponse, 0, len(raw))
	for _, tx := range raw {
		mevType, err := types.MevTypeFromName(tx.MevType)
		if err != nil {
			// An unknown classification means the feed changed under
			// us; refuse to guess.
			return nil, fmt.Errorf("block %d tx %d: %w", tx.BlockNumber, tx.TxIndex, err)
		}
		responses = append(responses, TransactionResponse{
			BlockNumber: tx.BlockNumber,
			TxIndex:     tx.TxIndex,
			MevType:     mevType,
		})
	}
	return responses, nil
}
