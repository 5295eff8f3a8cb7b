package blockstream

// TxStatus is the confirmation status of a transaction as reported by the
// Blockstream API.
type TxStatus struct {
	Confirmed   bool  `json:"confirmed"`
	BlockHeight int64 `json:"block_height"`
}

type Tx struct {
	TxID   string   `json:"txid"`
	Status TxStatus `json:"status"`
}

// BroadcastTxError is a rejected broadcast, as opposed to a transport
// failure. Rejections are not retried.
type BroadcastTxError struct {
	Message    string
	StatusCode int
}

func (e *BroadcastTxError) Error() string {
	return e.Message
}
