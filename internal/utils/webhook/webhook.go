package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/tradegraph/clearing-backend/internal/model"
	"github.com/tradegraph/clearing-backend/internal/utils/logger"
)

// Client posts settlement transitions to an external pub/sub webhook.
type Client struct {
	url        string
	httpClient *http.Client
	logger     *logger.Logger
}

func New(url string, logger *logger.Logger) *Client {
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

type notification struct {
	SettlementID string `json:"settlement_id"`
	State        string `json:"state"`
	Timestamp    int64  `json:"timestamp"`
}

// OnTransition implements the dispatcher sink contract.
func (c *Client) OnTransition(settlement model.Settlement, _, next model.SettlementState) error {
	if c.url == "" {
		return nil
	}

	payload, err := json.Marshal(notification{
		SettlementID: settlement.SettlementID,
		State:        string(next),
		Timestamp:    time.Now().Unix(),
	})
	if err != nil {
		return errors.Wrap(err, "failed to marshal notification")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "failed to create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "webhook call failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return errors.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
