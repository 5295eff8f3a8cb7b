package reconciler

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/ratelimit"
	"gorm.io/gorm"

	"github.com/tradegraph/clearing-backend/internal/chainrpc"
	"github.com/tradegraph/clearing-backend/internal/clearing"
	"github.com/tradegraph/clearing-backend/internal/model"
	"github.com/tradegraph/clearing-backend/internal/store"
	"github.com/tradegraph/clearing-backend/internal/utils/config"
	"github.com/tradegraph/clearing-backend/internal/utils/logger"
)

const runTimeout = 5 * time.Minute

// Reconciler periodically reconciles every active settlement against its
// chains. Settlements are reconciled in parallel; the rate limiter keeps the
// aggregate chain polling rate bounded.
type Reconciler struct {
	engine   clearing.IEngine
	registry *chainrpc.Registry
	db       *gorm.DB
	store    *store.Store
	limiter  ratelimit.Limiter
	logger   *logger.Logger
}

func New(engine clearing.IEngine, registry *chainrpc.Registry, db *gorm.DB, s *store.Store, appConfig *config.AppConfig, logger *logger.Logger) *Reconciler {
	return &Reconciler{
		engine:   engine,
		registry: registry,
		db:       db,
		store:    s,
		limiter:  ratelimit.New(appConfig.Clearing.PollRatePerSecond),
		logger:   logger,
	}
}

// Run executes one reconciliation pass. It is the body of the cron job and
// is also invoked once at startup so transactions already in flight are
// re-checked immediately after a restart.
func (r *Reconciler) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	ids := r.engine.ActiveSettlementIDs()
	if len(ids) == 0 {
		return
	}

	r.logger.Info("[Run] reconciling settlements", map[string]string{
		"count": strconv.Itoa(len(ids)),
	})

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(settlementID string) {
			defer wg.Done()

			r.limiter.Take()
			if _, err := r.engine.Reconcile(ctx, settlementID); err != nil {
				r.logger.Error("[Run] settlement reconciliation failed", map[string]string{
					"settlement_id": settlementID,
					"error":         err.Error(),
				})
			}
		}(id)
	}
	wg.Wait()
}

// RecoverPending re-checks transactions a previous run left in flight. The
// engine never rehydrates aggregates from storage; the persisted record is
// the durable audit trail, so its state is promoted directly from the chain.
func (r *Reconciler) RecoverPending() {
	if r.db == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	pending, err := r.store.TransactionRecord.FindPending(r.db)
	if err != nil {
		r.logger.Error("[RecoverPending] failed to scan pending transactions", map[string]string{
			"error": err.Error(),
		})
		return
	}
	if len(pending) == 0 {
		return
	}

	r.logger.Info("[RecoverPending] re-checking in-flight transactions", map[string]string{
		"count": strconv.Itoa(len(pending)),
	})

	for _, record := range pending {
		r.limiter.Take()
		if err := r.recoverRecord(ctx, record); err != nil {
			r.logger.Error("[RecoverPending] transaction recovery failed", map[string]string{
				"transaction_id": record.TransactionID,
				"hash":           record.Hash,
				"error":          err.Error(),
			})
		}
	}
}

func (r *Reconciler) recoverRecord(ctx context.Context, record model.TransactionRecord) error {
	client, err := r.registry.Client(model.AssetFromSymbol(record.Asset))
	if err != nil {
		return err
	}

	chainTx, err := client.Get(ctx, record.Hash)
	if err != nil {
		return err
	}

	next := model.TransactionState(record.State)
	switch {
	case chainTx == nil:
		// A mined transaction that vanished was reorged out. A submitted one
		// may just not be visible yet; the next pass will see it.
		if record.State == string(model.TxStateMined) {
			next = model.TxStateFailed
		}
	case chainTx.Mined:
		next = model.TxStateMined
		confirmed, err := client.IsConfirmed(ctx, record.Hash)
		if err != nil {
			return err
		}
		if confirmed {
			next = model.TxStateConfirmed
		}
	}

	if string(next) == record.State {
		return nil
	}

	record.Model = gorm.Model{}
	record.State = string(next)

	return store.DoInTx(r.db, func(tx *gorm.DB) error {
		if err := r.store.TransactionRecord.Upsert(tx, &record); err != nil {
			return err
		}

		events, err := r.store.TransactionEvent.ListByTransactionID(tx, record.TransactionID)
		if err != nil {
			return err
		}

		return r.store.TransactionEvent.Append(tx, []model.TransactionEventRecord{{
			TransactionID: record.TransactionID,
			Seq:           len(events),
			State:         string(next),
			Timestamp:     time.Now().Unix(),
		}})
	})
}
