package blockstream

type IBlockStream interface {
	BroadcastTx(txHex string) (hash string, err error)
	GetTransaction(txID string) (*Tx, error)
	GetTransactionStatus(txID string) (*TxStatus, error)
	GetTipHeight() (int64, error)
}
