package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/seedlabs/relay-listener/internal/model"
)

// GetMessages fetches the channel's messages from the last minutes minutes.
// A non-positive minutes uses the relay default.
func (c *Client) GetMessages(ctx context.Context, channel string, minutes int) ([]model.HistoryItem, error) {
	if channel == "" {
		return nil, fmt.Errorf("get messages: channel is required")
	}
	if minutes <= 0 {
		minutes = DefaultIntervalMinutes
	}

	query := url.Values{}
	query.Set("channel", channel)
	query.Set("time_interval_minutes", strconv.Itoa(minutes))

	var resp MessagesResponse
	if err := c.get(ctx, MessagesPath, query, &resp); err != nil {
		return nil, fmt.Errorf("get messages %s: %w", channel, err)
	}

	c.logger.Debug("fetched history",
		"channel", channel,
		"minutes", minutes,
		"count", len(resp),
	)
	return resp, nil
}
