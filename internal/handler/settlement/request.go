package settlement

import "github.com/tradegraph/clearing-backend/internal/model"

type ChannelRequest struct {
	Asset        string `json:"asset" binding:"required" validate:"oneof=BTC ETH"`
	AddressFrom  string `json:"address_from" binding:"required"`
	AddressTo    string `json:"address_to" binding:"required"`
	Amount       string `json:"amount" binding:"required"`
	Commission   string `json:"commission"`
	Timeout      int64  `json:"timeout" binding:"required" validate:"gt=0"`
	RedeemFee    int64  `json:"redeem_fee"`
	RefundFee    int64  `json:"refund_fee"`
	HashedSecret string `json:"hashed_secret" binding:"required" validate:"len=64,lowercase,hexadecimal"`
}

type SettleRequest struct {
	AssetPair         string         `json:"asset_pair" binding:"required"`
	CounterPartyOneID string         `json:"counter_party_one_id" binding:"required"`
	CounterPartyTwoID string         `json:"counter_party_two_id" binding:"required"`
	Initiate          ChannelRequest `json:"initiate" binding:"required"`
	Participate       ChannelRequest `json:"participate" binding:"required"`
}

type RecordInitiateRequest struct {
	TxContractHash string `json:"tx_contract_hash" binding:"required"`
}

type RecordParticipateRequest struct {
	HashedSecret   string `json:"hashed_secret" binding:"required" validate:"len=64,lowercase,hexadecimal"`
	TxContractHash string `json:"tx_contract_hash" binding:"required"`
}

type RegisterDelegatedTxsRequest struct {
	ChannelID string `json:"channel_id" binding:"required"`
	RedeemRaw string `json:"redeem_raw"`
	RefundRaw string `json:"refund_raw"`
}

type RedeemRequest struct {
	Secret string `json:"secret" binding:"required"`
	RawTx  string `json:"raw_tx"`
	TxHash string `json:"tx_hash"`
}

type RefundRequest struct {
	ChannelID string `json:"channel_id" binding:"required"`
	RawTx     string `json:"raw_tx"`
	TxHash    string `json:"tx_hash"`
}

func (r ChannelRequest) toSpec() model.ChannelSpec {
	asset := model.AssetFromSymbol(r.Asset)
	commission := r.Commission
	if commission == "" {
		commission = "0"
	}

	return model.ChannelSpec{
		Asset:        asset,
		AddressFrom:  r.AddressFrom,
		AddressTo:    r.AddressTo,
		Amount:       model.BigAmount{Value: r.Amount, Decimal: asset.Decimals},
		Commission:   model.BigAmount{Value: commission, Decimal: asset.Decimals},
		HashedSecret: r.HashedSecret,
		Timeout:      r.Timeout,
		RedeemFee:    r.RedeemFee,
		RefundFee:    r.RefundFee,
	}
}

func (r SettleRequest) toSpec() model.SettlementSpec {
	return model.SettlementSpec{
		AssetPair:         r.AssetPair,
		CounterPartyOneID: r.CounterPartyOneID,
		CounterPartyTwoID: r.CounterPartyTwoID,
		Initiate:          r.Initiate.toSpec(),
		Participate:       r.Participate.toSpec(),
	}
}
