package clearing

import (
	"context"

	"github.com/tradegraph/clearing-backend/internal/model"
)

// ResolutionRequest carries how a redeem or refund reaches the chain: either
// a raw transaction the engine broadcasts, or the hash of a transaction the
// counterparty already broadcast itself. Both empty falls back to the
// channel's registered delegated transaction.
type ResolutionRequest struct {
	RawTx  string
	TxHash string
}

// IEngine is the settlement state machine contract. All mutations of one
// settlement are serialized behind its own lock; operations on independent
// settlements proceed in parallel.
type IEngine interface {
	Settle(spec model.SettlementSpec) (model.Settlement, error)
	Get(settlementID string) (model.Settlement, error)
	History(settlementID string) ([]model.SettlementStateChange, error)

	RecordInitiateChannel(settlementID, txContractHash string) (model.Settlement, error)
	RecordParticipateChannel(settlementID, hashedSecret, txContractHash string) (model.Settlement, error)
	RegisterDelegatedTxs(settlementID, channelID, redeemRaw, refundRaw string) error

	Redeem(ctx context.Context, settlementID, secretPreimage string, res ResolutionRequest) (model.Settlement, error)
	Refund(ctx context.Context, settlementID, channelID string, res ResolutionRequest) (model.Settlement, error)
	RevealSecret(settlementID string) (string, error)

	Advance(settlementID string) (model.Settlement, error)
	Reconcile(ctx context.Context, settlementID string) (model.Settlement, error)
	Abort(settlementID string) (model.Settlement, error)

	ActiveSettlementIDs() []string
}
