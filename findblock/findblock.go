package findblock

import (
	"fmt"
	"log/slog"

	"crosswatcher/config"
	"crosswatcher/utils"
)

const DefaultBaseURL = "https://api.findblock.xyz/v1/"

// Client resolves timestamps to Polygon block numbers through the
// findblock API.
type Client struct {
	baseURL string
	logger  *slog.Logger
}

func NewClient(logger *slog.Logger) *Client {
	return &Client{baseURL: DefaultBaseURL, logger: logger}
}

type blockResponse struct {
	Number uint64 `json:"number"`
}

// BlockBeforeTimestamp returns the Polygon block at or before the given
// timestamp.
func (c *Client) BlockBeforeTimestamp(timestamp uint64) (uint64, error) {
	return c.lookup("before", timestamp)
}

// BlockAfterTimestamp returns the Polygon block at or after the given
// timestamp.
func (c *Client) BlockAfterTimestamp(timestamp uint64) (uint64, error) {
	return c.lookup("after", timestamp)
}

func (c *Client) lookup(side string, timestamp uint64) (uint64, error) {
	url := fmt.Sprintf("%schain/%d/block/%s/%d", c.baseURL, config.POLYGON_CHAIN_ID, side, timestamp)
	var resp blockResponse
	err := utils.GetUrlResponseWithRetry(url, map[string]string{"inclusive": "true"}, &resp, config.DefaultRetryTimes, c.logger)
	if err != nil {
		return 0, fmt.Errorf("failed to find polygon block %s %d: %w", side, timestamp, err)
	}
	return resp.Number, nil
}
