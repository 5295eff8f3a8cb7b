package settlement

import "github.com/tradegraph/clearing-backend/internal/model"

// ChannelView is the channel plus its derived state. The derived state is
// never stored; it is recomputed from the channel's transactions on read.
type ChannelView struct {
	model.Channel
	DerivedState model.ChannelState `json:"derived_state"`
}

type SettlementView struct {
	SettlementID      string                        `json:"settlement_id"`
	AssetPair         string                        `json:"asset_pair"`
	CounterPartyOneID string                        `json:"counter_party_one_id"`
	CounterPartyTwoID string                        `json:"counter_party_two_id"`
	State             model.SettlementState         `json:"state"`
	StateHistory      []model.SettlementStateChange `json:"state_history"`
	Initiate          ChannelView                   `json:"initiate_channel"`
	Participate       ChannelView                   `json:"participate_channel"`
	Secret            string                        `json:"secret,omitempty"`
}

// StoredSettlementView serves reads from the persisted projection when the
// engine no longer holds the settlement, typically after a restart.
type StoredSettlementView struct {
	Settlement   model.SettlementRecord    `json:"settlement"`
	Channels     []model.ChannelRecord     `json:"channels"`
	Transactions []model.TransactionRecord `json:"transactions"`
}

type TransactionAuditView struct {
	Transaction model.TransactionRecord        `json:"transaction"`
	Events      []model.TransactionEventRecord `json:"events"`
}

func toSettlementView(s model.Settlement) SettlementView {
	view := SettlementView{
		SettlementID:      s.SettlementID,
		AssetPair:         s.AssetPair,
		CounterPartyOneID: s.CounterPartyOneID,
		CounterPartyTwoID: s.CounterPartyTwoID,
		State:             s.State,
		StateHistory:      s.StateHistory,
		Initiate: ChannelView{
			Channel:      s.InitiateChannel,
			DerivedState: s.InitiateChannel.DeriveState(),
		},
		Participate: ChannelView{
			Channel:      s.ParticipateChannel,
			DerivedState: s.ParticipateChannel.DeriveState(),
		},
	}

	if secret, ok := s.RevealedSecret(); ok {
		view.Secret = secret
	}

	return view
}
