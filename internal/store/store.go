package store

import (
	"github.com/tradegraph/clearing-backend/internal/store/channelrecord"
	"github.com/tradegraph/clearing-backend/internal/store/settlement"
	"github.com/tradegraph/clearing-backend/internal/store/settlementevent"
	"github.com/tradegraph/clearing-backend/internal/store/transactionevent"
	"github.com/tradegraph/clearing-backend/internal/store/transactionrecord"
)

type Store struct {
	Settlement        settlement.IStore
	ChannelRecord     channelrecord.IStore
	TransactionRecord transactionrecord.IStore
	SettlementEvent   settlementevent.IStore
	TransactionEvent  transactionevent.IStore
}

func New() *Store {
	return &Store{
		Settlement:        settlement.New(),
		ChannelRecord:     channelrecord.New(),
		TransactionRecord: transactionrecord.New(),
		SettlementEvent:   settlementevent.New(),
		TransactionEvent:  transactionevent.New(),
	}
}
