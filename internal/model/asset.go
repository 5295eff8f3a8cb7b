package model

import "github.com/tradegraph/clearing-backend/internal/consts"

// Asset identifies a ledger and the decimal precision of its amounts.
// Values are immutable and shared by reference.
type Asset struct {
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

var (
	AssetBTC = Asset{Symbol: consts.BTC_SYMBOL, Decimals: consts.BTC_DECIMALS}
	AssetETH = Asset{Symbol: consts.ETH_SYMBOL, Decimals: consts.ETH_DECIMALS}
)

func (a Asset) Valid() bool {
	return a == AssetBTC || a == AssetETH
}

// AssetFromSymbol resolves a supported asset by its symbol. The zero Asset is
// returned for unknown symbols and fails Valid().
func AssetFromSymbol(symbol string) Asset {
	switch symbol {
	case consts.BTC_SYMBOL:
		return AssetBTC
	case consts.ETH_SYMBOL:
		return AssetETH
	default:
		return Asset{}
	}
}
