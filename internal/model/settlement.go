package model

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type SettlementState string

const (
	SettlementCreated      SettlementState = "CREATED"
	SettlementInitiated    SettlementState = "INITIATED"
	SettlementParticipated SettlementState = "PARTICIPATED"
	SettlementRedeeming    SettlementState = "REDEEMING"
	SettlementRedeemed     SettlementState = "REDEEMED"
	SettlementRefunding    SettlementState = "REFUNDING"
	SettlementRefunded     SettlementState = "REFUNDED"
	SettlementExpired      SettlementState = "EXPIRED"
	SettlementFailed       SettlementState = "FAILED"
)

// SettlementStateChange is one entry of the settlement audit trail.
type SettlementStateChange struct {
	State     SettlementState `json:"state"`
	Timestamp int64           `json:"timestamp"`
}

// Settlement is the aggregate tracking both legs of one trade's atomic swap.
// The timeout ordering invariant (participate strictly before initiate) is
// validated at creation and immutable afterwards.
type Settlement struct {
	SettlementID       string                  `json:"settlement_id"`
	AssetPair          string                  `json:"asset_pair"`
	CounterPartyOneID  string                  `json:"counter_party_one_id"`
	CounterPartyTwoID  string                  `json:"counter_party_two_id"`
	InitiateChannel    Channel                 `json:"initiate_channel"`
	ParticipateChannel Channel                 `json:"participate_channel"`
	State              SettlementState         `json:"state"`
	StateHistory       []SettlementStateChange `json:"state_history"`
}

// SettlementSpec is the input to NewSettlement.
type SettlementSpec struct {
	AssetPair         string
	CounterPartyOneID string
	CounterPartyTwoID string
	Initiate          ChannelSpec
	Participate       ChannelSpec
}

// NewSettlement validates the spec and creates the settlement in CREATED.
// The participant's lock must expire strictly before the initiator's, so the
// initiator can always redeem before refunding if the participant redeems
// first.
func NewSettlement(spec SettlementSpec, now int64) (Settlement, error) {
	spec.Initiate.Type = ChannelTypeInitiate
	spec.Participate.Type = ChannelTypeParticipate

	initiate, err := NewChannel(spec.Initiate, now)
	if err != nil {
		return Settlement{}, errors.Wrap(err, "initiate channel")
	}

	participate, err := NewChannel(spec.Participate, now)
	if err != nil {
		return Settlement{}, errors.Wrap(err, "participate channel")
	}

	if participate.Timeout >= initiate.Timeout {
		return Settlement{}, ErrTimeoutOrdering
	}
	if participate.HashedSecret != initiate.HashedSecret {
		return Settlement{}, ErrHashedSecretMismatch
	}
	if declaredPair(initiate.Asset, participate.Asset) != spec.AssetPair {
		return Settlement{}, errors.Wrapf(ErrAssetPairMismatch,
			"declared %q, channels form %q", spec.AssetPair, declaredPair(initiate.Asset, participate.Asset))
	}

	return Settlement{
		SettlementID:       uuid.NewString(),
		AssetPair:          spec.AssetPair,
		CounterPartyOneID:  spec.CounterPartyOneID,
		CounterPartyTwoID:  spec.CounterPartyTwoID,
		InitiateChannel:    initiate,
		ParticipateChannel: participate,
		State:              SettlementCreated,
		StateHistory:       []SettlementStateChange{{State: SettlementCreated, Timestamp: now}},
	}, nil
}

// WithInitiateChannel replaces the initiate channel, preserving the creation
// invariants.
func (s Settlement) WithInitiateChannel(channel Channel) (Settlement, error) {
	if channel.Type != ChannelTypeInitiate {
		return s, errors.Wrap(ErrInvalidChannelSpec, "channel is not an initiate channel")
	}
	if channel.Asset != s.InitiateChannel.Asset {
		return s, ErrAssetPairMismatch
	}
	if s.ParticipateChannel.Timeout >= channel.Timeout {
		return s, ErrTimeoutOrdering
	}

	updated := s
	updated.InitiateChannel = channel

	return updated, nil
}

// WithParticipateChannel replaces the participate channel. The participant's
// channel must carry the initiator's hashed secret: the participant never
// possesses the preimage until the initiator's redeem reveals it on-chain.
func (s Settlement) WithParticipateChannel(channel Channel) (Settlement, error) {
	if channel.Type != ChannelTypeParticipate {
		return s, errors.Wrap(ErrInvalidChannelSpec, "channel is not a participate channel")
	}
	if channel.Asset != s.ParticipateChannel.Asset {
		return s, ErrAssetPairMismatch
	}
	if channel.HashedSecret != s.InitiateChannel.HashedSecret {
		return s, ErrHashedSecretMismatch
	}
	if channel.Timeout >= s.InitiateChannel.Timeout {
		return s, ErrTimeoutOrdering
	}

	updated := s
	updated.ParticipateChannel = channel

	return updated, nil
}

// Recompute derives the settlement state from the current channel states.
// It is pure: callers decide whether the result is a transition. A non-nil
// error reports a structurally impossible combination; the returned state is
// then FAILED and the settlement requires operator attention.
func (s Settlement) Recompute(now int64) (SettlementState, error) {
	initiate := s.InitiateChannel.DeriveState()
	participate := s.ParticipateChannel.DeriveState()

	for _, c := range s.Channels() {
		if c.TxRedeem != nil && c.TxRedeem.Confirmed() && c.TxRefund != nil && c.TxRefund.Confirmed() {
			return SettlementFailed, errors.Wrapf(ErrInternalConsistency,
				"channel %s holds both a confirmed redeem and a confirmed refund", c.ChannelID)
		}
	}

	redeemed := map[ChannelState]bool{ChannelRedeemed: true}
	refunded := map[ChannelState]bool{ChannelRefunded: true}
	if (redeemed[initiate] && refunded[participate]) || (refunded[initiate] && redeemed[participate]) {
		return SettlementFailed, errors.Wrapf(ErrInternalConsistency,
			"one leg redeemed while the other refunded (initiate=%s participate=%s)", initiate, participate)
	}

	// Reconciliation faults with no alternative resolution path left.
	for _, c := range s.Channels() {
		state := c.DeriveState()
		if c.TxContract.State == TxStateFailed && state != ChannelRedeemed && state != ChannelRefunded {
			return SettlementFailed, nil
		}
		if c.TxRefund != nil && c.TxRefund.State == TxStateFailed {
			return SettlementFailed, nil
		}
	}

	switch {
	case initiate == ChannelRedeemed && participate == ChannelRedeemed:
		return SettlementRedeemed, nil
	case initiate == ChannelRedeemed || participate == ChannelRedeemed,
		initiate == ChannelRedeemPending || participate == ChannelRedeemPending:
		return SettlementRedeeming, nil
	case initiate == ChannelRefunded && participate == ChannelRefunded:
		return SettlementRefunded, nil
	case initiate == ChannelRefunded || participate == ChannelRefunded,
		initiate == ChannelRefundPending || participate == ChannelRefundPending:
		return SettlementRefunding, nil
	case now > s.InitiateChannel.Timeout:
		// Advisory only: fund recovery still requires a refund on each
		// channel once its own timeout has passed.
		return SettlementExpired, nil
	case initiate == ChannelFunded && participate == ChannelFunded:
		return SettlementParticipated, nil
	case initiate == ChannelFunded:
		return SettlementInitiated, nil
	default:
		return SettlementCreated, nil
	}
}

// WithState appends a state transition to the audit trail.
func (s Settlement) WithState(next SettlementState, timestamp int64) Settlement {
	updated := s
	updated.State = next

	history := make([]SettlementStateChange, len(s.StateHistory), len(s.StateHistory)+1)
	copy(history, s.StateHistory)
	updated.StateHistory = append(history, SettlementStateChange{State: next, Timestamp: timestamp})

	return updated
}

// RevealedSecret returns the preimage once the initiate channel holds a
// confirmed redeem.
func (s Settlement) RevealedSecret() (string, bool) {
	return s.InitiateChannel.RevealedSecret()
}

// Channels lists both legs, initiate first.
func (s Settlement) Channels() []Channel {
	return []Channel{s.InitiateChannel, s.ParticipateChannel}
}

// Channel resolves a leg by its id.
func (s Settlement) Channel(channelID string) (Channel, error) {
	for _, c := range s.Channels() {
		if c.ChannelID == channelID {
			return c, nil
		}
	}

	return Channel{}, ErrChannelNotFound
}

// TransactionByHash finds the first transaction across both channels with a
// matching on-chain hash.
func (s Settlement) TransactionByHash(hash string) (Transaction, bool) {
	for _, c := range s.Channels() {
		for _, tx := range c.Transactions() {
			if tx.Hash != "" && tx.Hash == hash {
				return tx, true
			}
		}
	}

	return Transaction{}, false
}

// PendingTransactions lists transactions that have been broadcast but not
// reached a terminal state, across both channels.
func (s Settlement) PendingTransactions() []Transaction {
	var pending []Transaction
	for _, c := range s.Channels() {
		for _, tx := range c.Transactions() {
			if tx.Hash != "" && !tx.Terminal() {
				pending = append(pending, tx)
			}
		}
	}

	return pending
}

// Terminal reports whether no further transitions are possible. EXPIRED is
// advisory, not terminal: refunds still follow.
func (s Settlement) Terminal() bool {
	return s.State.Terminal()
}

// Terminal reports whether a state admits no further transitions.
func (s SettlementState) Terminal() bool {
	switch s {
	case SettlementRedeemed, SettlementRefunded, SettlementFailed:
		return true
	default:
		return false
	}
}

func declaredPair(initiate, participate Asset) string {
	return fmt.Sprintf("%s/%s", initiate.Symbol, participate.Symbol)
}
