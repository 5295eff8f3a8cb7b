package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradegraph/clearing-backend/internal/model"
)

const testNow int64 = 1_700_000_000

func buildSettlement(t *testing.T) model.Settlement {
	t.Helper()

	hashed := model.HashSecret("swap-secret")
	s, err := model.NewSettlement(model.SettlementSpec{
		AssetPair:         "BTC/ETH",
		CounterPartyOneID: "alice",
		CounterPartyTwoID: "bob",
		Initiate: model.ChannelSpec{
			Asset:        model.AssetBTC,
			AddressFrom:  "btc-from",
			AddressTo:    "btc-to",
			Amount:       model.BigAmount{Value: "100000", Decimal: 8},
			HashedSecret: hashed,
			Timeout:      testNow + 7200,
		},
		Participate: model.ChannelSpec{
			Asset:        model.AssetETH,
			AddressFrom:  "eth-from",
			AddressTo:    "eth-to",
			Amount:       model.BigAmount{Value: "2000000000000000000", Decimal: 18},
			HashedSecret: hashed,
			Timeout:      testNow + 3600,
		},
	}, testNow)
	require.NoError(t, err)

	return s
}

func TestProject(t *testing.T) {
	s := buildSettlement(t)

	contract, err := s.InitiateChannel.TxContract.WithHash("btc-contract", testNow+10)
	require.NoError(t, err)
	contract, err = contract.WithState(model.TxStateMined, testNow+20)
	require.NoError(t, err)
	initiate, err := s.InitiateChannel.WithTransaction(contract)
	require.NoError(t, err)
	s, err = s.WithInitiateChannel(initiate)
	require.NoError(t, err)

	s = s.WithState(model.SettlementInitiated, testNow+30)

	projection := Project(s)

	assert.Equal(t, s.SettlementID, projection.Settlement.SettlementID)
	assert.Equal(t, "BTC/ETH", projection.Settlement.AssetPair)
	assert.Equal(t, string(model.SettlementInitiated), projection.Settlement.State)

	require.Len(t, projection.Channels, 2)
	assert.Equal(t, s.InitiateChannel.ChannelID, projection.Channels[0].ChannelID)
	assert.Equal(t, s.ParticipateChannel.ChannelID, projection.Channels[1].ChannelID)
	assert.Equal(t, s.SettlementID, projection.Channels[0].SettlementID)

	// One contract transaction per channel, nothing resolved yet.
	require.Len(t, projection.Transactions, 2)
	assert.Equal(t, "btc-contract", projection.Transactions[0].Hash)
	assert.Equal(t, string(model.TxStateMined), projection.Transactions[0].State)

	// History rows keep exact order through seq.
	require.Len(t, projection.SettlementEvents, 2)
	for seq, event := range projection.SettlementEvents {
		assert.Equal(t, seq, event.Seq)
		assert.Equal(t, s.SettlementID, event.SettlementID)
	}
	assert.Equal(t, string(model.SettlementCreated), projection.SettlementEvents[0].State)
	assert.Equal(t, string(model.SettlementInitiated), projection.SettlementEvents[1].State)

	// PENDING, SUBMITTED, MINED for the initiate contract; PENDING for the
	// participate contract.
	require.Len(t, projection.TransactionEvents, 4)
	initiateContractEvents := 0
	for _, event := range projection.TransactionEvents {
		if event.TransactionID == contract.TransactionID {
			assert.Equal(t, initiateContractEvents, event.Seq)
			initiateContractEvents++
		}
	}
	assert.Equal(t, 3, initiateContractEvents)
}

func TestProject_ResolutionTransactions(t *testing.T) {
	s := buildSettlement(t)

	initiate, err := s.InitiateChannel.AttachRedeem("swap-secret", testNow)
	require.NoError(t, err)
	s, err = s.WithInitiateChannel(initiate)
	require.NoError(t, err)

	projection := Project(s)

	require.Len(t, projection.Transactions, 3)
	redeemRecord := projection.Transactions[1]
	assert.Equal(t, string(model.TxTypeRedeem), redeemRecord.Type)
	assert.Equal(t, "swap-secret", redeemRecord.Secret)
	assert.Equal(t, s.InitiateChannel.ChannelID, redeemRecord.ChannelID)
}
