package channelrecord

import (
	"gorm.io/gorm"

	"github.com/tradegraph/clearing-backend/internal/model"
)

type IStore interface {
	Upsert(tx *gorm.DB, record *model.ChannelRecord) error
	ListBySettlementID(tx *gorm.DB, settlementID string) ([]model.ChannelRecord, error)
}
