package channelrecord

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

func (s *Store) Upsert(tx *gorm.DB, record *model.ChannelRecord) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "channel_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"hashed_secret", "updated_at"}),
	}).Create(record).Error
}

func (s *Store) ListBySettlementID(tx *gorm.DB, settlementID string) ([]model.ChannelRecord, error) {
	var records []model.ChannelRecord
	err := tx.Where("settlement_id = ?", settlementID).Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
