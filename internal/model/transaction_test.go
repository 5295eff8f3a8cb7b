package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransaction_WithState_Monotonic(t *testing.T) {
	tests := []struct {
		name    string
		from    TransactionState
		to      TransactionState
		wantErr error
	}{
		{name: "pending to submitted", from: TxStatePending, to: TxStateSubmitted},
		{name: "submitted to mined", from: TxStateSubmitted, to: TxStateMined},
		{name: "mined to confirmed", from: TxStateMined, to: TxStateConfirmed},
		{name: "pending to mined skips submitted", from: TxStatePending, to: TxStateMined},
		{name: "pending to failed", from: TxStatePending, to: TxStateFailed},
		{name: "submitted to failed", from: TxStateSubmitted, to: TxStateFailed},
		{name: "mined to failed", from: TxStateMined, to: TxStateFailed},
		{name: "submitted back to pending", from: TxStateSubmitted, to: TxStatePending, wantErr: ErrStateRegression},
		{name: "mined back to submitted", from: TxStateMined, to: TxStateSubmitted, wantErr: ErrStateRegression},
		{name: "confirmed to failed", from: TxStateConfirmed, to: TxStateFailed, wantErr: ErrStateRegression},
		{name: "failed to submitted", from: TxStateFailed, to: TxStateSubmitted, wantErr: ErrStateRegression},
		{name: "same state", from: TxStateMined, to: TxStateMined, wantErr: ErrStateRegression},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := NewTransaction("tx-1", TxTypeContract, AssetBTC, 100)
			tx.State = tt.from

			updated, err := tx.WithState(tt.to, 200)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.from, updated.State, "receiver copy must be unchanged on rejection")
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.to, updated.State)
			assert.Equal(t, tt.from, tx.State, "original must not be mutated")
		})
	}
}

func TestTransaction_WithState_AppendsHistory(t *testing.T) {
	tx := NewTransaction("tx-1", TxTypeContract, AssetBTC, 100)
	require.Len(t, tx.StateHistory, 1)

	submitted, err := tx.WithState(TxStateSubmitted, 200)
	require.NoError(t, err)
	mined, err := submitted.WithState(TxStateMined, 300)
	require.NoError(t, err)

	assert.Len(t, tx.StateHistory, 1, "original history must not grow")
	assert.Len(t, submitted.StateHistory, 2)
	require.Len(t, mined.StateHistory, 3)

	assert.Equal(t, TxStatePending, mined.StateHistory[0].State)
	assert.Equal(t, TxStateSubmitted, mined.StateHistory[1].State)
	assert.Equal(t, TxStateMined, mined.StateHistory[2].State)
	assert.Equal(t, int64(300), mined.StateHistory[2].Timestamp)
}

func TestTransaction_WithHash(t *testing.T) {
	tx := NewTransaction("tx-1", TxTypeRedeem, AssetETH, 100)

	submitted, err := tx.WithHash("0xabc", 200)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", submitted.Hash)
	assert.Equal(t, TxStateSubmitted, submitted.State)

	_, err = submitted.WithHash("0xdef", 300)
	assert.ErrorIs(t, err, ErrHashImmutable)
}

func TestTransaction_Terminal(t *testing.T) {
	tx := NewTransaction("tx-1", TxTypeContract, AssetBTC, 100)
	assert.False(t, tx.Terminal())

	tx.State = TxStateConfirmed
	assert.True(t, tx.Terminal())
	assert.True(t, tx.Confirmed())

	tx.State = TxStateFailed
	assert.True(t, tx.Terminal())
	assert.False(t, tx.Confirmed())
}
