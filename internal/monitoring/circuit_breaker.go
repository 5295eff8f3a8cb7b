package monitoring

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/tradegraph/clearing-backend/internal/chainrpc"
	"github.com/tradegraph/clearing-backend/internal/utils/logger"
)

// CircuitBreakerConfig carries the trip thresholds for a wrapped chain
// client.
type CircuitBreakerConfig struct {
	MaxRequests                 uint32
	Interval                    time.Duration
	Timeout                     time.Duration
	ConsecutiveFailureThreshold int
}

var DefaultCircuitBreakerConfig = CircuitBreakerConfig{
	MaxRequests:                 3,
	Interval:                    60 * time.Second,
	Timeout:                     30 * time.Second,
	ConsecutiveFailureThreshold: 5,
}

// CircuitBreakerChainClient wraps a chain client so a flapping chain
// endpoint fails fast instead of stalling every reconciliation worker.
type CircuitBreakerChainClient struct {
	wrapped        chainrpc.IChainClient
	circuitBreaker *gobreaker.CircuitBreaker
	logger         *logger.Logger
}

func NewCircuitBreakerChainClient(name string, wrapped chainrpc.IChainClient, config CircuitBreakerConfig, logger *logger.Logger) *CircuitBreakerChainClient {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(config.ConsecutiveFailureThreshold)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Circuit breaker state change", map[string]string{
				"service": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	}

	return &CircuitBreakerChainClient{
		wrapped:        wrapped,
		circuitBreaker: gobreaker.NewCircuitBreaker(settings),
		logger:         logger,
	}
}

func (c *CircuitBreakerChainClient) Submit(ctx context.Context, rawTx string) (string, error) {
	result, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		return c.wrapped.Submit(ctx, rawTx)
	})
	if err != nil {
		return "", err
	}

	return result.(string), nil
}

func (c *CircuitBreakerChainClient) Get(ctx context.Context, txID string) (*chainrpc.TxRecord, error) {
	result, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		return c.wrapped.Get(ctx, txID)
	})
	if err != nil {
		return nil, err
	}

	return result.(*chainrpc.TxRecord), nil
}

func (c *CircuitBreakerChainClient) IsMined(ctx context.Context, txID string) (bool, error) {
	result, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		return c.wrapped.IsMined(ctx, txID)
	})
	if err != nil {
		return false, err
	}

	return result.(bool), nil
}

func (c *CircuitBreakerChainClient) IsConfirmed(ctx context.Context, txID string) (bool, error) {
	result, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		return c.wrapped.IsConfirmed(ctx, txID)
	})
	if err != nil {
		return false, err
	}

	return result.(bool), nil
}

func (c *CircuitBreakerChainClient) TipHeight(ctx context.Context) (int64, error) {
	result, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		return c.wrapped.TipHeight(ctx)
	})
	if err != nil {
		return 0, err
	}

	return result.(int64), nil
}

func (c *CircuitBreakerChainClient) ValidateAddress(address string) error {
	// Pure validation, no network call: not routed through the breaker.
	return c.wrapped.ValidateAddress(address)
}
