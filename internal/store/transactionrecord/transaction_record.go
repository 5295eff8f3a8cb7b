package transactionrecord

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

func (s *Store) Upsert(tx *gorm.DB, record *model.TransactionRecord) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "transaction_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"hash", "secret", "state", "updated_at"}),
	}).Create(record).Error
}

func (s *Store) GetByHash(tx *gorm.DB, hash string) (*model.TransactionRecord, error) {
	var record model.TransactionRecord
	err := tx.Where("hash = ?", hash).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Store) ListBySettlementID(tx *gorm.DB, settlementID string) ([]model.TransactionRecord, error) {
	var records []model.TransactionRecord
	err := tx.Where("settlement_id = ?", settlementID).Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) FindPending(tx *gorm.DB) ([]model.TransactionRecord, error) {
	var records []model.TransactionRecord
	err := tx.Where("state IN ?", []string{
		string(model.TxStateSubmitted),
		string(model.TxStateMined),
	}).Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
