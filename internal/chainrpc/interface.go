package chainrpc

import "context"

// TxRecord is the chain's view of a broadcast transaction.
type TxRecord struct {
	TxID          string
	Mined         bool
	BlockHeight   int64
	Confirmations int64
}

// IChainClient is the per-asset capability the clearing core observes chains
// through: broadcast a raw transaction, fetch it back, and check mined and
// confirmation-depth status. Confirmation depth is owned by the client, not
// the caller.
type IChainClient interface {
	Submit(ctx context.Context, rawTx string) (string, error)
	Get(ctx context.Context, txID string) (*TxRecord, error)
	IsMined(ctx context.Context, txID string) (bool, error)
	IsConfirmed(ctx context.Context, txID string) (bool, error)
	TipHeight(ctx context.Context) (int64, error)
	ValidateAddress(address string) error
}
