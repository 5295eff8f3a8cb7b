package btcrpc

import "github.com/tradegraph/clearing-backend/internal/chainrpc"

// IBtcRpc is the BTC leg of the chain client capability.
type IBtcRpc interface {
	chainrpc.IChainClient
}
