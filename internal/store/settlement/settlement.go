package settlement

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

func (s *Store) Upsert(tx *gorm.DB, record *model.SettlementRecord) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "settlement_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"state", "updated_at"}),
	}).Create(record).Error
}

func (s *Store) GetBySettlementID(tx *gorm.DB, settlementID string) (*model.SettlementRecord, error) {
	var record model.SettlementRecord
	err := tx.Where("settlement_id = ?", settlementID).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Store) FindByState(tx *gorm.DB, state string) ([]model.SettlementRecord, error) {
	var records []model.SettlementRecord
	err := tx.Where("state = ?", state).Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
