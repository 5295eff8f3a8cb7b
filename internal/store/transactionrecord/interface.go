package transactionrecord

import (
	"gorm.io/gorm"

	"github.com/tradegraph/clearing-backend/internal/model"
)

type IStore interface {
	Upsert(tx *gorm.DB, record *model.TransactionRecord) error
	GetByHash(tx *gorm.DB, hash string) (*model.TransactionRecord, error)
	ListBySettlementID(tx *gorm.DB, settlementID string) ([]model.TransactionRecord, error)
	FindPending(tx *gorm.DB) ([]model.TransactionRecord, error)
}
