package blockstream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/tradegraph/clearing-backend/internal/utils/config"
	"github.com/tradegraph/clearing-backend/internal/utils/logger"
)

type blockstream struct {
	baseURL string
	client  *http.Client
	logger  *logger.Logger
}

func New(cfg *config.AppConfig, logger *logger.Logger) IBlockStream {
	return &blockstream{
		baseURL: cfg.Bitcoin.BlockstreamAPIURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

func (c *blockstream) BroadcastTx(txHex string) (string, error) {
	url := fmt.Sprintf("%s/tx", c.baseURL)
	var lastErr error
	maxRetries := 3

	for attempt := 1; attempt <= maxRetries; attempt++ {
		// New reader per attempt since it gets consumed.
		payload := strings.NewReader(txHex)

		req, err := http.NewRequest("POST", url, payload)
		if err != nil {
			return "", errors.Wrap(err, "failed to create request")
		}
		req.Header.Add("Content-Type", "text/plain")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = errors.Wrap(err, "failed to request broadcast transaction")
			c.logger.Error("[BroadcastTx][client.Do]", map[string]string{
				"error":   err.Error(),
				"attempt": strconv.Itoa(attempt),
			})
			time.Sleep(time.Duration(attempt) * time.Second)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = errors.Wrap(err, "failed to read response")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			bodyStr := string(body)
			c.logger.Error("[BroadcastTx] broadcast error", map[string]string{
				"error":      bodyStr,
				"statusCode": strconv.Itoa(resp.StatusCode),
				"attempt":    strconv.Itoa(attempt),
			})

			// 4xx means the chain rejected the transaction itself; retrying
			// cannot help.
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return "", &BroadcastTxError{
					Message:    fmt.Sprintf("status code: %v, failed to broadcast transaction: %s", resp.StatusCode, bodyStr),
					StatusCode: resp.StatusCode,
				}
			}

			lastErr = errors.Errorf("status code: %v, failed to broadcast transaction: %s", resp.StatusCode, bodyStr)
			time.Sleep(time.Duration(attempt) * time.Second)
			continue
		}

		return strings.TrimSpace(string(body)), nil
	}

	return "", lastErr
}

func (c *blockstream) GetTransaction(txID string) (*Tx, error) {
	url := fmt.Sprintf("%s/tx/%s", c.baseURL, txID)

	resp, err := c.client.Get(url)
	if err != nil {
		return nil, errors.Wrap(err, "failed to request transaction")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("status code: %v, failed to get transaction %s", resp.StatusCode, txID)
	}

	var tx Tx
	if err := json.NewDecoder(resp.Body).Decode(&tx); err != nil {
		return nil, errors.Wrap(err, "failed to decode transaction")
	}

	return &tx, nil
}

func (c *blockstream) GetTransactionStatus(txID string) (*TxStatus, error) {
	url := fmt.Sprintf("%s/tx/%s/status", c.baseURL, txID)

	resp, err := c.client.Get(url)
	if err != nil {
		return nil, errors.Wrap(err, "failed to request transaction status")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("status code: %v, failed to get transaction status %s", resp.StatusCode, txID)
	}

	var status TxStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, errors.Wrap(err, "failed to decode transaction status")
	}

	return &status, nil
}

func (c *blockstream) GetTipHeight() (int64, error) {
	url := fmt.Sprintf("%s/blocks/tip/height", c.baseURL)

	resp, err := c.client.Get(url)
	if err != nil {
		return 0, errors.Wrap(err, "failed to request tip height")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, errors.Errorf("status code: %v, failed to get tip height", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, errors.Wrap(err, "failed to read tip height")
	}

	height, err := strconv.ParseInt(strings.TrimSpace(string(body)), 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, "failed to parse tip height")
	}

	return height, nil
}
