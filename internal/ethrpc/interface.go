package ethrpc

import "github.com/tradegraph/clearing-backend/internal/chainrpc"

// IEthRpc is the ETH leg of the chain client capability.
type IEthRpc interface {
	chainrpc.IChainClient
}
