package btcrpc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradegraph/clearing-backend/internal/btcrpc/blockstream"
	"github.com/tradegraph/clearing-backend/internal/chainrpc"
	"github.com/tradegraph/clearing-backend/internal/utils/logger"
)

const testTxID = "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b"

type fakeBlockStream struct {
	broadcastHash string
	broadcastErr  error
	tx            *blockstream.Tx
	txErr         error
	tipHeight     int64
}

func (f *fakeBlockStream) BroadcastTx(txHex string) (string, error) {
	return f.broadcastHash, f.broadcastErr
}

func (f *fakeBlockStream) GetTransaction(txID string) (*blockstream.Tx, error) {
	return f.tx, f.txErr
}

func (f *fakeBlockStream) GetTransactionStatus(txID string) (*blockstream.TxStatus, error) {
	if f.tx == nil {
		return nil, f.txErr
	}
	return &f.tx.Status, nil
}

func (f *fakeBlockStream) GetTipHeight() (int64, error) {
	return f.tipHeight, nil
}

func newTestRpc(bs *fakeBlockStream) IBtcRpc {
	return NewWithBlockstream(bs, 6, logger.New("test"))
}

func TestBtcRpc_Submit(t *testing.T) {
	rpc := newTestRpc(&fakeBlockStream{broadcastHash: testTxID})

	hash, err := rpc.Submit(context.Background(), "rawtx")
	require.NoError(t, err)
	assert.Equal(t, testTxID, hash)
}

func TestBtcRpc_Submit_RejectionMapsToBroadcastError(t *testing.T) {
	rpc := newTestRpc(&fakeBlockStream{
		broadcastErr: &blockstream.BroadcastTxError{Message: "bad-txns-inputs-missingorspent", StatusCode: 400},
	})

	_, err := rpc.Submit(context.Background(), "rawtx")

	var broadcastErr *chainrpc.BroadcastError
	require.ErrorAs(t, err, &broadcastErr)
	assert.Equal(t, "BTC", broadcastErr.Asset)
	assert.Contains(t, broadcastErr.Response, "bad-txns-inputs-missingorspent")
}

func TestBtcRpc_Get(t *testing.T) {
	t.Run("invalid txid", func(t *testing.T) {
		rpc := newTestRpc(&fakeBlockStream{})

		_, err := rpc.Get(context.Background(), "not-a-txid")
		assert.Error(t, err)
	})

	t.Run("not found", func(t *testing.T) {
		rpc := newTestRpc(&fakeBlockStream{})

		record, err := rpc.Get(context.Background(), testTxID)
		require.NoError(t, err)
		assert.Nil(t, record)
	})

	t.Run("confirmed with depth from tip", func(t *testing.T) {
		rpc := newTestRpc(&fakeBlockStream{
			tx: &blockstream.Tx{
				TxID:   testTxID,
				Status: blockstream.TxStatus{Confirmed: true, BlockHeight: 95},
			},
			tipHeight: 100,
		})

		record, err := rpc.Get(context.Background(), testTxID)
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.True(t, record.Mined)
		assert.Equal(t, int64(6), record.Confirmations)
	})
}

func TestBtcRpc_IsConfirmed(t *testing.T) {
	bs := &fakeBlockStream{
		tx: &blockstream.Tx{
			TxID:   testTxID,
			Status: blockstream.TxStatus{Confirmed: true, BlockHeight: 96},
		},
		tipHeight: 100,
	}
	rpc := newTestRpc(bs)

	// 5 confirmations against a depth of 6.
	confirmed, err := rpc.IsConfirmed(context.Background(), testTxID)
	require.NoError(t, err)
	assert.False(t, confirmed)

	bs.tipHeight = 101
	confirmed, err = rpc.IsConfirmed(context.Background(), testTxID)
	require.NoError(t, err)
	assert.True(t, confirmed)
}

func TestBtcRpc_ValidateAddress(t *testing.T) {
	rpc := newTestRpc(&fakeBlockStream{})

	assert.NoError(t, rpc.ValidateAddress("1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"))
	assert.Error(t, rpc.ValidateAddress("not-an-address"))
}
