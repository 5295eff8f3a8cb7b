package settlementevent

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

// Append inserts new history rows. Existing (settlement_id, seq) rows are
// left untouched: the audit trail is append-only.
func (s *Store) Append(tx *gorm.DB, records []model.SettlementEventRecord) error {
	if len(records) == 0 {
		return nil
	}

	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "settlement_id"}, {Name: "seq"}},
		DoNothing: true,
	}).Create(&records).Error
}

func (s *Store) ListBySettlementID(tx *gorm.DB, settlementID string) ([]model.SettlementEventRecord, error) {
	var records []model.SettlementEventRecord
	err := tx.Where("settlement_id = ?", settlementID).Order("seq asc").Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
