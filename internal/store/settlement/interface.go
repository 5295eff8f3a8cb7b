package settlement

import (
	"gorm.io/gorm"

	"github.com/tradegraph/clearing-backend/internal/model"
)

type IStore interface {
	Upsert(tx *gorm.DB, record *model.SettlementRecord) error
	GetBySettlementID(tx *gorm.DB, settlementID string) (*model.SettlementRecord, error)
	FindByState(tx *gorm.DB, state string) ([]model.SettlementRecord, error)
}
