package ethrpc

import (
	"context"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"

	"github.com/tradegraph/clearing-backend/internal/chainrpc"
	"github.com/tradegraph/clearing-backend/internal/consts"
	"github.com/tradegraph/clearing-backend/internal/utils/config"
	"github.com/tradegraph/clearing-backend/internal/utils/logger"
)

// nodeClient is the slice of ethclient.Client the settlement engine needs;
// tests substitute it.
type nodeClient interface {
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

type EthRpc struct {
	client            nodeClient
	confirmationDepth int64
	logger            *logger.Logger
}

func New(appConfig *config.AppConfig, logger *logger.Logger) (IEthRpc, error) {
	client, err := ethclient.Dial(appConfig.Ethereum.RPCEndpoint)
	if err != nil {
		return nil, errors.Wrap(err, "failed to dial eth rpc endpoint")
	}

	return &EthRpc{
		client:            client,
		confirmationDepth: appConfig.Ethereum.ConfirmationDepth,
		logger:            logger,
	}, nil
}

// NewWithClient is used by tests and by the circuit breaker wiring.
func NewWithClient(client nodeClient, confirmationDepth int64, logger *logger.Logger) IEthRpc {
	return &EthRpc{
		client:            client,
		confirmationDepth: confirmationDepth,
		logger:            logger,
	}
}

func (e *EthRpc) Submit(ctx context.Context, rawTx string) (string, error) {
	raw, err := hexutil.Decode(rawTx)
	if err != nil {
		return "", errors.Wrap(err, "raw transaction is not valid hex")
	}

	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return "", errors.Wrap(err, "failed to decode raw transaction")
	}

	if err := e.client.SendTransaction(ctx, tx); err != nil {
		return "", &chainrpc.BroadcastError{
			Asset:    consts.ETH_SYMBOL,
			Response: err.Error(),
		}
	}

	return tx.Hash().Hex(), nil
}

func (e *EthRpc) Get(ctx context.Context, txID string) (*chainrpc.TxRecord, error) {
	hash := common.HexToHash(txID)

	_, pending, err := e.client.TransactionByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	record := &chainrpc.TxRecord{TxID: txID}
	if pending {
		return record, nil
	}

	receipt, err := e.client.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return record, nil
		}
		return nil, errors.Wrap(err, "failed to get transaction receipt")
	}

	head, err := e.client.BlockNumber(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get block number")
	}

	record.Mined = true
	record.BlockHeight = receipt.BlockNumber.Int64()
	record.Confirmations = int64(head) - record.BlockHeight + 1

	return record, nil
}

func (e *EthRpc) IsMined(ctx context.Context, txID string) (bool, error) {
	record, err := e.Get(ctx, txID)
	if err != nil {
		return false, err
	}

	return record != nil && record.Mined, nil
}

func (e *EthRpc) IsConfirmed(ctx context.Context, txID string) (bool, error) {
	record, err := e.Get(ctx, txID)
	if err != nil {
		return false, err
	}

	return record != nil && record.Mined && record.Confirmations >= e.confirmationDepth, nil
}

func (e *EthRpc) TipHeight(ctx context.Context) (int64, error) {
	head, err := e.client.BlockNumber(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get block number")
	}

	return int64(head), nil
}

func (e *EthRpc) ValidateAddress(address string) error {
	if !common.IsHexAddress(address) {
		return errors.Errorf("invalid eth address %q", address)
	}

	return nil
}
