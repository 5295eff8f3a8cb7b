package btcrpc

import (
	"context"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/pkg/errors"

	"github.com/tradegraph/clearing-backend/internal/btcrpc/blockstream"
	"github.com/tradegraph/clearing-backend/internal/chainrpc"
	"github.com/tradegraph/clearing-backend/internal/consts"
	"github.com/tradegraph/clearing-backend/internal/utils/config"
	"github.com/tradegraph/clearing-backend/internal/utils/logger"
)

type BtcRpc struct {
	blockstream       blockstream.IBlockStream
	confirmationDepth int64
	logger            *logger.Logger
}

func New(appConfig *config.AppConfig, logger *logger.Logger) IBtcRpc {
	return &BtcRpc{
		blockstream:       blockstream.New(appConfig, logger),
		confirmationDepth: appConfig.Bitcoin.ConfirmationDepth,
		logger:            logger,
	}
}

// NewWithBlockstream is used by tests and by the circuit breaker wiring.
func NewWithBlockstream(bs blockstream.IBlockStream, confirmationDepth int64, logger *logger.Logger) IBtcRpc {
	return &BtcRpc{
		blockstream:       bs,
		confirmationDepth: confirmationDepth,
		logger:            logger,
	}
}

func (b *BtcRpc) Submit(ctx context.Context, rawTx string) (string, error) {
	txID, err := b.blockstream.BroadcastTx(rawTx)
	if err != nil {
		var rejected *blockstream.BroadcastTxError
		if errors.As(err, &rejected) {
			return "", &chainrpc.BroadcastError{
				Asset:    consts.BTC_SYMBOL,
				Response: rejected.Message,
			}
		}
		return "", err
	}

	return txID, nil
}

func (b *BtcRpc) Get(ctx context.Context, txID string) (*chainrpc.TxRecord, error) {
	if _, err := chainhash.NewHashFromStr(txID); err != nil {
		return nil, errors.Wrapf(err, "invalid btc transaction id %q", txID)
	}

	tx, err := b.blockstream.GetTransaction(txID)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, nil
	}

	record := &chainrpc.TxRecord{
		TxID:        tx.TxID,
		Mined:       tx.Status.Confirmed,
		BlockHeight: tx.Status.BlockHeight,
	}

	if tx.Status.Confirmed {
		tip, err := b.blockstream.GetTipHeight()
		if err != nil {
			return nil, err
		}
		record.Confirmations = tip - tx.Status.BlockHeight + 1
	}

	return record, nil
}

func (b *BtcRpc) IsMined(ctx context.Context, txID string) (bool, error) {
	status, err := b.blockstream.GetTransactionStatus(txID)
	if err != nil {
		return false, err
	}
	if status == nil {
		return false, nil
	}

	return status.Confirmed, nil
}

func (b *BtcRpc) IsConfirmed(ctx context.Context, txID string) (bool, error) {
	record, err := b.Get(ctx, txID)
	if err != nil {
		return false, err
	}
	if record == nil {
		return false, nil
	}

	return record.Mined && record.Confirmations >= b.confirmationDepth, nil
}

func (b *BtcRpc) TipHeight(ctx context.Context) (int64, error) {
	return b.blockstream.GetTipHeight()
}

func (b *BtcRpc) ValidateAddress(address string) error {
	if _, err := btcutil.DecodeAddress(address, &chaincfg.MainNetParams); err != nil {
		return errors.Wrapf(err, "invalid btc address %q", address)
	}

	return nil
}
