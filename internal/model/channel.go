package model

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/tradegraph/clearing-backend/internal/consts"
)

type ChannelType string

const (
	ChannelTypeInitiate    ChannelType = "INITIATE"
	ChannelTypeParticipate ChannelType = "PARTICIPATE"
)

// ChannelState is derived, never stored: it is a pure function of the
// channel's transactions.
type ChannelState string

const (
	ChannelContractPending ChannelState = "CONTRACT_PENDING"
	ChannelFunded          ChannelState = "FUNDED"
	ChannelRedeemPending   ChannelState = "REDEEM_PENDING"
	ChannelRedeemed        ChannelState = "REDEEMED"
	ChannelRefundPending   ChannelState = "REFUND_PENDING"
	ChannelRefunded        ChannelState = "REFUNDED"
)

var hashedSecretPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Channel is one counterparty's funding leg of the swap: a contract
// transaction paired with its eventual resolution, a redeem or a refund,
// never both.
type Channel struct {
	ChannelID    string       `json:"channel_id"`
	Type         ChannelType  `json:"type"`
	Asset        Asset        `json:"asset"`
	AddressFrom  string       `json:"address_from"`
	AddressTo    string       `json:"address_to"`
	Amount       BigAmount    `json:"amount"`
	Commission   BigAmount    `json:"commission"`
	HashedSecret string       `json:"hashed_secret"`
	Timeout      int64        `json:"timeout"`
	RedeemFee    int64        `json:"redeem_fee,omitempty"`
	RefundFee    int64        `json:"refund_fee,omitempty"`
	TxContract   Transaction  `json:"tx_contract"`
	TxRedeem     *Transaction `json:"tx_redeem,omitempty"`
	TxRefund     *Transaction `json:"tx_refund,omitempty"`

	// Pre-signed raw transactions registered by the counterparty so the
	// engine can broadcast a resolution on its behalf, e.g. the participate
	// redeem once the secret is revealed.
	DelegatedRedeemRaw string `json:"-"`
	DelegatedRefundRaw string `json:"-"`
}

// WithDelegatedTxs registers pre-signed resolution transactions.
func (c Channel) WithDelegatedTxs(redeemRaw, refundRaw string) Channel {
	updated := c
	if redeemRaw != "" {
		updated.DelegatedRedeemRaw = redeemRaw
	}
	if refundRaw != "" {
		updated.DelegatedRefundRaw = refundRaw
	}

	return updated
}

// ChannelSpec is the input to NewChannel.
type ChannelSpec struct {
	Type         ChannelType
	Asset        Asset
	AddressFrom  string
	AddressTo    string
	Amount       BigAmount
	Commission   BigAmount
	HashedSecret string
	Timeout      int64
	RedeemFee    int64
	RefundFee    int64
}

// NewChannel validates the spec and creates the channel with its contract
// transaction in PENDING. now is epoch seconds.
func NewChannel(spec ChannelSpec, now int64) (Channel, error) {
	if spec.Type != ChannelTypeInitiate && spec.Type != ChannelTypeParticipate {
		return Channel{}, errors.Wrap(ErrInvalidChannelSpec, "unknown channel type")
	}
	if !spec.Asset.Valid() {
		return Channel{}, errors.Wrapf(ErrInvalidChannelSpec, "unsupported asset %q", spec.Asset.Symbol)
	}
	if spec.AddressFrom == "" || spec.AddressTo == "" {
		return Channel{}, errors.Wrap(ErrInvalidChannelSpec, "addressFrom and addressTo are required")
	}
	if spec.AddressFrom == spec.AddressTo {
		return Channel{}, errors.Wrap(ErrInvalidChannelSpec, "addressFrom and addressTo must differ")
	}
	if !spec.Amount.Positive() {
		return Channel{}, errors.Wrap(ErrInvalidChannelSpec, "amount must be positive")
	}
	if spec.Timeout <= now {
		return Channel{}, errors.Wrap(ErrInvalidChannelSpec, "timeout must be in the future")
	}
	if len(spec.HashedSecret) != consts.HASHED_SECRET_LEN || !hashedSecretPattern.MatchString(spec.HashedSecret) {
		return Channel{}, errors.Wrap(ErrInvalidChannelSpec, "hashedSecret must be 64 lowercase hex characters")
	}

	return Channel{
		ChannelID:    uuid.NewString(),
		Type:         spec.Type,
		Asset:        spec.Asset,
		AddressFrom:  spec.AddressFrom,
		AddressTo:    spec.AddressTo,
		Amount:       spec.Amount,
		Commission:   spec.Commission,
		HashedSecret: spec.HashedSecret,
		Timeout:      spec.Timeout,
		RedeemFee:    spec.RedeemFee,
		RefundFee:    spec.RefundFee,
		TxContract:   NewTransaction(uuid.NewString(), TxTypeContract, spec.Asset, now),
	}, nil
}

// AttachRedeem creates the REDEEM transaction carrying the revealed secret.
// The preimage must hash to the channel's hashedSecret; a channel with a
// refund already attached can no longer redeem.
func (c Channel) AttachRedeem(secretPreimage string, now int64) (Channel, error) {
	if c.activeRefund() || c.activeRedeem() {
		return c, ErrAlreadyResolved
	}
	if HashSecret(secretPreimage) != c.HashedSecret {
		return c, ErrSecretMismatch
	}

	redeem := NewTransaction(uuid.NewString(), TxTypeRedeem, c.Asset, now).WithSecret(secretPreimage)

	updated := c
	updated.TxRedeem = &redeem

	return updated, nil
}

// AttachRefund creates the REFUND transaction. The channel timeout must have
// elapsed, and a pending redeem always takes precedence: refunding while a
// redeem exists would race a valid redeem with a premature refund.
func (c Channel) AttachRefund(now int64) (Channel, error) {
	if c.activeRedeem() || c.activeRefund() {
		return c, ErrAlreadyResolved
	}
	if now < c.Timeout {
		return c, ErrTimeoutNotElapsed
	}

	refund := NewTransaction(uuid.NewString(), TxTypeRefund, c.Asset, now)

	updated := c
	updated.TxRefund = &refund

	return updated, nil
}

// DeriveState recomputes the channel state from its transactions. A FAILED
// redeem or refund no longer counts as in flight, so the alternative
// resolution path stays open.
func (c Channel) DeriveState() ChannelState {
	switch {
	case c.TxRedeem != nil && c.TxRedeem.Confirmed():
		return ChannelRedeemed
	case c.TxRefund != nil && c.TxRefund.Confirmed():
		return ChannelRefunded
	case c.activeRedeem():
		return ChannelRedeemPending
	case c.activeRefund():
		return ChannelRefundPending
	case c.TxContract.Confirmed():
		return ChannelFunded
	default:
		return ChannelContractPending
	}
}

// activeRedeem reports a redeem that is attached and not FAILED.
func (c Channel) activeRedeem() bool {
	return c.TxRedeem != nil && c.TxRedeem.State != TxStateFailed
}

// activeRefund reports a refund that is attached and not FAILED.
func (c Channel) activeRefund() bool {
	return c.TxRefund != nil && c.TxRefund.State != TxStateFailed
}

// RevealedSecret returns the preimage carried by a confirmed redeem.
func (c Channel) RevealedSecret() (string, bool) {
	if c.TxRedeem == nil || !c.TxRedeem.Confirmed() {
		return "", false
	}

	return c.TxRedeem.Secret, true
}

// Transactions lists the channel's transactions, contract first.
func (c Channel) Transactions() []Transaction {
	txs := []Transaction{c.TxContract}
	if c.TxRedeem != nil {
		txs = append(txs, *c.TxRedeem)
	}
	if c.TxRefund != nil {
		txs = append(txs, *c.TxRefund)
	}

	return txs
}

// WithTransaction replaces the owned transaction with a matching id,
// typically after reconciliation returned an updated copy.
func (c Channel) WithTransaction(tx Transaction) (Channel, error) {
	updated := c
	switch {
	case tx.TransactionID == c.TxContract.TransactionID:
		updated.TxContract = tx
	case c.TxRedeem != nil && tx.TransactionID == c.TxRedeem.TransactionID:
		updated.TxRedeem = &tx
	case c.TxRefund != nil && tx.TransactionID == c.TxRefund.TransactionID:
		updated.TxRefund = &tx
	default:
		return c, errors.Wrapf(ErrInternalConsistency,
			"transaction %s does not belong to channel %s", tx.TransactionID, c.ChannelID)
	}

	return updated, nil
}

// HashSecret returns the lowercase hex SHA-256 of a secret preimage.
func HashSecret(secretPreimage string) string {
	sum := sha256.Sum256([]byte(secretPreimage))

	return hex.EncodeToString(sum[:])
}
