package settlementevent

import (
	"gorm.io/gorm"

	"github.com/tradegraph/clearing-backend/internal/model"
)

type IStore interface {
	Append(tx *gorm.DB, records []model.SettlementEventRecord) error
	ListBySettlementID(tx *gorm.DB, settlementID string) ([]model.SettlementEventRecord, error)
}
