package store

import (
	"gorm.io/gorm"

	"github.com/tradegraph/clearing-backend/internal/model"
	"github.com/tradegraph/clearing-backend/internal/utils/logger"
)

// ProjectionSink persists the storage projection of a settlement on every
// transition. Persistence is one-directional: the engine never reads state
// back from these tables.
type ProjectionSink struct {
	db     *gorm.DB
	store  *Store
	logger *logger.Logger
}

func NewProjectionSink(db *gorm.DB, store *Store, logger *logger.Logger) *ProjectionSink {
	return &ProjectionSink{
		db:     db,
		store:  store,
		logger: logger,
	}
}

func (p *ProjectionSink) OnTransition(settlement model.Settlement, previous, next model.SettlementState) error {
	projection := Project(settlement)

	err := DoInTx(p.db, func(tx *gorm.DB) error {
		if err := p.store.Settlement.Upsert(tx, &projection.Settlement); err != nil {
			return err
		}

		for i := range projection.Channels {
			if err := p.store.ChannelRecord.Upsert(tx, &projection.Channels[i]); err != nil {
				return err
			}
		}

		for i := range projection.Transactions {
			if err := p.store.TransactionRecord.Upsert(tx, &projection.Transactions[i]); err != nil {
				return err
			}
		}

		if err := p.store.SettlementEvent.Append(tx, projection.SettlementEvents); err != nil {
			return err
		}

		return p.store.TransactionEvent.Append(tx, projection.TransactionEvents)
	})
	if err != nil {
		p.logger.Error("[OnTransition] failed to persist settlement projection", map[string]string{
			"settlement_id": settlement.SettlementID,
			"state":         string(next),
			"error":         err.Error(),
		})
		return err
	}

	return nil
}
