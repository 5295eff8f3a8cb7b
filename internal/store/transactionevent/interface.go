package transactionevent

import (
	"gorm.io/gorm"

	"github.com/tradegraph/clearing-backend/internal/model"
)

type IStore interface {
	Append(tx *gorm.DB, records []model.TransactionEventRecord) error
	ListByTransactionID(tx *gorm.DB, transactionID string) ([]model.TransactionEventRecord, error)
}
