package chainrpc

import (
	"github.com/pkg/errors"

	"github.com/tradegraph/clearing-backend/internal/model"
)

// Registry is the closed capability table over supported assets. Adding an
// asset is a compile-time case addition here, not ad hoc dispatch.
type Registry struct {
	btc IChainClient
	eth IChainClient
}

func NewRegistry(btc, eth IChainClient) *Registry {
	return &Registry{btc: btc, eth: eth}
}

// Client resolves the chain client for an asset.
func (r *Registry) Client(asset model.Asset) (IChainClient, error) {
	switch asset {
	case model.AssetBTC:
		return r.btc, nil
	case model.AssetETH:
		return r.eth, nil
	default:
		return nil, errors.Errorf("no chain client registered for asset %q", asset.Symbol)
	}
}
