package transactionevent

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tradegraph/clearing-backend/internal/model"
)

type Store struct {
}

func New() IStore {
	return &Store{}
}

// Append inserts new history rows; the audit trail is append-only.
func (s *Store) Append(tx *gorm.DB, records []model.TransactionEventRecord) error {
	if len(records) == 0 {
		return nil
	}

	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "transaction_id"}, {Name: "seq"}},
		DoNothing: true,
	}).Create(&records).Error
}

func (s *Store) ListByTransactionID(tx *gorm.DB, transactionID string) ([]model.TransactionEventRecord, error) {
	var records []model.TransactionEventRecord
	err := tx.Where("transaction_id = ?", transactionID).Order("seq asc").Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
