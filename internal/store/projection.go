package store

import "github.com/tradegraph/clearing-backend/internal/model"

// Projection is the flat storage image of one settlement aggregate.
type Projection struct {
	Settlement        model.SettlementRecord
	Channels          []model.ChannelRecord
	Transactions      []model.TransactionRecord
	SettlementEvents  []model.SettlementEventRecord
	TransactionEvents []model.TransactionEventRecord
}

// Project maps a settlement aggregate to its storage records. The mapping is
// one-directional and preserves state history ordering through seq.
func Project(s model.Settlement) Projection {
	projection := Projection{
		Settlement: model.SettlementRecord{
			SettlementID:      s.SettlementID,
			AssetPair:         s.AssetPair,
			CounterPartyOneID: s.CounterPartyOneID,
			CounterPartyTwoID: s.CounterPartyTwoID,
			State:             string(s.State),
		},
	}

	for seq, change := range s.StateHistory {
		projection.SettlementEvents = append(projection.SettlementEvents, model.SettlementEventRecord{
			SettlementID: s.SettlementID,
			Seq:          seq,
			State:        string(change.State),
			Timestamp:    change.Timestamp,
		})
	}

	for _, channel := range s.Channels() {
		projection.Channels = append(projection.Channels, model.ChannelRecord{
			ChannelID:    channel.ChannelID,
			SettlementID: s.SettlementID,
			Type:         string(channel.Type),
			Asset:        channel.Asset.Symbol,
			AddressFrom:  channel.AddressFrom,
			AddressTo:    channel.AddressTo,
			Amount:       channel.Amount.Value,
			Commission:   channel.Commission.Value,
			HashedSecret: channel.HashedSecret,
			Timeout:      channel.Timeout,
			RedeemFee:    channel.RedeemFee,
			RefundFee:    channel.RefundFee,
		})

		for _, tx := range channel.Transactions() {
			projection.Transactions = append(projection.Transactions, model.TransactionRecord{
				TransactionID: tx.TransactionID,
				ChannelID:     channel.ChannelID,
				SettlementID:  s.SettlementID,
				Type:          string(tx.Type),
				Asset:         tx.Asset.Symbol,
				Hash:          tx.Hash,
				Script:        tx.Script,
				Signature:     tx.Signature,
				Secret:        tx.Secret,
				State:         string(tx.State),
			})

			for seq, change := range tx.StateHistory {
				projection.TransactionEvents = append(projection.TransactionEvents, model.TransactionEventRecord{
					TransactionID: tx.TransactionID,
					Seq:           seq,
					State:         string(change.State),
					Timestamp:     change.Timestamp,
				})
			}
		}
	}

	return projection
}
