package tracker

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/tradegraph/clearing-backend/internal/chainrpc"
	"github.com/tradegraph/clearing-backend/internal/model"
	"github.com/tradegraph/clearing-backend/internal/utils/config"
	"github.com/tradegraph/clearing-backend/internal/utils/logger"
)

// Tracker owns the lifecycle of individual on-chain transaction records and
// reconciles them against chain clients. All methods are side-effect-free
// with respect to their transaction input: they return updated copies.
type Tracker struct {
	retryBudget int
	backoffBase time.Duration
	logger      *logger.Logger
	now         func() int64
}

func New(appConfig *config.AppConfig, logger *logger.Logger) *Tracker {
	return NewWithClock(appConfig, logger, func() int64 { return time.Now().Unix() })
}

// NewWithClock lets the caller share one clock across the clearing core, so
// transaction and settlement histories stamp from the same time source.
func NewWithClock(appConfig *config.AppConfig, logger *logger.Logger, now func() int64) *Tracker {
	return &Tracker{
		retryBudget: appConfig.Clearing.RetryBudget,
		backoffBase: appConfig.Clearing.RetryBackoffBase,
		logger:      logger,
		now:         now,
	}
}

// Record validates a transaction entering tracking.
func (t *Tracker) Record(tx model.Transaction) error {
	if tx.TransactionID == "" {
		return errors.Wrap(model.ErrInternalConsistency, "transaction has no id")
	}
	if len(tx.StateHistory) == 0 {
		return errors.Wrap(model.ErrInternalConsistency, "transaction has no state history")
	}

	t.logger.Info("[Record] tracking transaction", map[string]string{
		"transaction_id": tx.TransactionID,
		"type":           string(tx.Type),
		"asset":          tx.Asset.Symbol,
		"state":          string(tx.State),
	})

	return nil
}

// AppendState appends a state transition to the audit trail. Backward moves
// are internal-consistency errors.
func (t *Tracker) AppendState(tx model.Transaction, next model.TransactionState, timestamp int64) (model.Transaction, error) {
	return tx.WithState(next, timestamp)
}

// Submit broadcasts a raw transaction and stamps the returned hash onto the
// record, moving it to SUBMITTED. A chain rejection or an exhausted retry
// budget marks the record FAILED; the error is surfaced, never swallowed.
func (t *Tracker) Submit(ctx context.Context, tx model.Transaction, rawTx string, client chainrpc.IChainClient) (model.Transaction, error) {
	var txID string
	err := t.withRetry(ctx, func() error {
		var submitErr error
		txID, submitErr = client.Submit(ctx, rawTx)
		return submitErr
	})
	if err != nil {
		failed, stateErr := tx.WithState(model.TxStateFailed, t.now())
		if stateErr != nil {
			return tx, stateErr
		}

		t.logger.Error("[Submit] broadcast failed", map[string]string{
			"transaction_id": tx.TransactionID,
			"asset":          tx.Asset.Symbol,
			"error":          err.Error(),
		})

		return failed, err
	}

	return tx.WithHash(txID, t.now())
}

// Reconcile queries the chain client and advances the transaction along
// PENDING/SUBMITTED -> MINED -> CONFIRMED. A transaction that vanished after
// being mined (reorg) or a reconciliation that exhausts the retry budget
// moves to FAILED, which is terminal and reported upward.
func (t *Tracker) Reconcile(ctx context.Context, tx model.Transaction, client chainrpc.IChainClient) (model.Transaction, error) {
	if tx.Terminal() || tx.Hash == "" {
		return tx, nil
	}

	var record *chainrpc.TxRecord
	err := t.withRetry(ctx, func() error {
		var getErr error
		record, getErr = client.Get(ctx, tx.Hash)
		return getErr
	})
	if err != nil {
		return t.fail(tx, errors.Wrap(err, "chain unreachable past retry budget"))
	}

	now := t.now()

	if record == nil {
		if tx.State == model.TxStateMined {
			// Previously mined, now gone from the chain.
			return t.fail(tx, errors.Errorf("transaction %s disappeared from chain after being mined", tx.Hash))
		}
		// Not yet visible; still propagating.
		return tx, nil
	}

	if record.Mined && tx.State != model.TxStateMined {
		updated, stateErr := tx.WithState(model.TxStateMined, now)
		if stateErr != nil {
			return tx, stateErr
		}
		tx = updated
	}

	if tx.State != model.TxStateMined {
		return tx, nil
	}

	var confirmed bool
	err = t.withRetry(ctx, func() error {
		var confErr error
		confirmed, confErr = client.IsConfirmed(ctx, tx.Hash)
		return confErr
	})
	if err != nil {
		return t.fail(tx, errors.Wrap(err, "chain unreachable past retry budget"))
	}

	if confirmed {
		return tx.WithState(model.TxStateConfirmed, now)
	}

	return tx, nil
}

func (t *Tracker) fail(tx model.Transaction, cause error) (model.Transaction, error) {
	failed, stateErr := tx.WithState(model.TxStateFailed, t.now())
	if stateErr != nil {
		return tx, stateErr
	}

	t.logger.Error("[Reconcile] transaction failed", map[string]string{
		"transaction_id": tx.TransactionID,
		"hash":           tx.Hash,
		"asset":          tx.Asset.Symbol,
		"error":          cause.Error(),
	})

	return failed, cause
}

// withRetry runs op with bounded exponential backoff. A BroadcastError is a
// chain rejection, not a transient fault: it aborts immediately.
func (t *Tracker) withRetry(ctx context.Context, op func() error) error {
	var lastErr error
	for attempt := 0; attempt < t.retryBudget; attempt++ {
		if attempt > 0 {
			backoff := t.backoffBase << (attempt - 1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}

		var rejected *chainrpc.BroadcastError
		if errors.As(lastErr, &rejected) {
			return lastErr
		}
	}

	return lastErr
}
