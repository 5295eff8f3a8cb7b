package model

import "gorm.io/gorm"

// Persistence projection records. The mapping is one-directional, domain to
// storage; field names and nesting are stable, and state history rows keep
// their exact order through the seq column.

type SettlementRecord struct {
	gorm.Model
	SettlementID      string `gorm:"column:settlement_id;type:varchar(255);not null;uniqueIndex"`
	AssetPair         string `gorm:"column:asset_pair;type:varchar(50);not null"`
	CounterPartyOneID string `gorm:"column:counter_party_one_id;type:varchar(255);not null"`
	CounterPartyTwoID string `gorm:"column:counter_party_two_id;type:varchar(255);not null"`
	State             string `gorm:"column:state;type:varchar(50);not null"`
}

func (SettlementRecord) TableName() string {
	return "clearing_settlements"
}

type ChannelRecord struct {
	gorm.Model
	ChannelID    string `gorm:"column:channel_id;type:varchar(255);not null;uniqueIndex"`
	SettlementID string `gorm:"column:settlement_id;type:varchar(255);not null;index"`
	Type         string `gorm:"column:type;type:varchar(50);not null"`
	Asset        string `gorm:"column:asset;type:varchar(10);not null"`
	AddressFrom  string `gorm:"column:address_from;type:varchar(255);not null"`
	AddressTo    string `gorm:"column:address_to;type:varchar(255);not null"`
	Amount       string `gorm:"column:amount;type:varchar(255);not null"`
	Commission   string `gorm:"column:commission;type:varchar(255)"`
	HashedSecret string `gorm:"column:hashed_secret;type:varchar(64);not null"`
	Timeout      int64  `gorm:"column:timeout;not null"`
	RedeemFee    int64  `gorm:"column:redeem_fee"`
	RefundFee    int64  `gorm:"column:refund_fee"`
}

func (ChannelRecord) TableName() string {
	return "clearing_channels"
}

type TransactionRecord struct {
	gorm.Model
	TransactionID string `gorm:"column:transaction_id;type:varchar(255);not null;uniqueIndex"`
	ChannelID     string `gorm:"column:channel_id;type:varchar(255);not null;index"`
	SettlementID  string `gorm:"column:settlement_id;type:varchar(255);not null;index"`
	Type          string `gorm:"column:type;type:varchar(50);not null"`
	Asset         string `gorm:"column:asset;type:varchar(10);not null"`
	Hash          string `gorm:"column:hash;type:varchar(255);index"`
	Script        string `gorm:"column:script;type:text"`
	Signature     string `gorm:"column:signature;type:text"`
	Secret        string `gorm:"column:secret;type:varchar(255)"`
	State         string `gorm:"column:state;type:varchar(50);not null"`
}

func (TransactionRecord) TableName() string {
	return "clearing_transactions"
}

type SettlementEventRecord struct {
	gorm.Model
	SettlementID string `gorm:"column:settlement_id;type:varchar(255);not null;index;uniqueIndex:idx_settlement_event_seq"`
	Seq          int    `gorm:"column:seq;not null;uniqueIndex:idx_settlement_event_seq"`
	State        string `gorm:"column:state;type:varchar(50);not null"`
	Timestamp    int64  `gorm:"column:timestamp;not null"`
}

func (SettlementEventRecord) TableName() string {
	return "clearing_settlement_events"
}

type TransactionEventRecord struct {
	gorm.Model
	TransactionID string `gorm:"column:transaction_id;type:varchar(255);not null;index;uniqueIndex:idx_transaction_event_seq"`
	Seq           int    `gorm:"column:seq;not null;uniqueIndex:idx_transaction_event_seq"`
	State         string `gorm:"column:state;type:varchar(50);not null"`
	Timestamp     int64  `gorm:"column:timestamp;not null"`
}

func (TransactionEventRecord) TableName() string {
	return "clearing_transaction_events"
}
