package model

type TransactionType string

const (
	TxTypeContract TransactionType = "CONTRACT"
	TxTypeRedeem   TransactionType = "REDEEM"
	TxTypeRefund   TransactionType = "REFUND"
)

type TransactionState string

const (
	TxStatePending   TransactionState = "PENDING"
	TxStateSubmitted TransactionState = "SUBMITTED"
	TxStateMined     TransactionState = "MINED"
	TxStateConfirmed TransactionState = "CONFIRMED"
	TxStateFailed    TransactionState = "FAILED"
)

// txStateRank orders the happy path. FAILED is reachable from any
// non-terminal state and is terminal itself.
var txStateRank = map[TransactionState]int{
	TxStatePending:   0,
	TxStateSubmitted: 1,
	TxStateMined:     2,
	TxStateConfirmed: 3,
}

// TxStateChange is one entry of a transaction's audit trail.
type TxStateChange struct {
	State     TransactionState `json:"state"`
	Timestamp int64            `json:"timestamp"`
}

// Transaction is the record of a single on-chain transaction owned by a
// channel. Methods are value-semantic: they never mutate the receiver and
// return an updated copy, so a failed guard leaves the caller's copy intact.
type Transaction struct {
	TransactionID string           `json:"transaction_id"`
	Type          TransactionType  `json:"type"`
	Asset         Asset            `json:"asset"`
	Hash          string           `json:"hash"`
	Script        string           `json:"script"`
	Signature     string           `json:"signature"`
	Secret        string           `json:"secret,omitempty"`
	State         TransactionState `json:"state"`
	StateHistory  []TxStateChange  `json:"state_history"`
}

// NewTransaction starts a transaction in PENDING with a single history entry.
func NewTransaction(id string, txType TransactionType, asset Asset, now int64) Transaction {
	return Transaction{
		TransactionID: id,
		Type:          txType,
		Asset:         asset,
		State:         TxStatePending,
		StateHistory:  []TxStateChange{{State: TxStatePending, Timestamp: now}},
	}
}

// WithState appends a state transition. Transitions are monotonic along
// PENDING -> SUBMITTED -> MINED -> CONFIRMED; FAILED is allowed from any
// non-terminal state. Backward moves and moves out of a terminal state are
// internal-consistency errors, not recoverable faults.
func (t Transaction) WithState(next TransactionState, timestamp int64) (Transaction, error) {
	if t.State == TxStateFailed || t.State == TxStateConfirmed {
		return t, ErrStateRegression
	}

	if next != TxStateFailed {
		currentRank, ok := txStateRank[t.State]
		nextRank, nextOk := txStateRank[next]
		if !ok || !nextOk || nextRank <= currentRank {
			return t, ErrStateRegression
		}
	}

	updated := t
	updated.State = next
	updated.StateHistory = appendTxHistory(t.StateHistory, TxStateChange{State: next, Timestamp: timestamp})

	return updated, nil
}

// WithHash sets the on-chain hash and moves the transaction to SUBMITTED.
// The hash identifies the record to poll and is immutable once set.
func (t Transaction) WithHash(hash string, timestamp int64) (Transaction, error) {
	if t.Hash != "" {
		return t, ErrHashImmutable
	}

	updated, err := t.WithState(TxStateSubmitted, timestamp)
	if err != nil {
		return t, err
	}
	updated.Hash = hash

	return updated, nil
}

// WithSecret stores the revealed preimage on a REDEEM transaction.
func (t Transaction) WithSecret(secret string) Transaction {
	updated := t
	updated.Secret = secret

	return updated
}

func (t Transaction) Terminal() bool {
	return t.State == TxStateConfirmed || t.State == TxStateFailed
}

func (t Transaction) Confirmed() bool {
	return t.State == TxStateConfirmed
}

// appendTxHistory copies before appending so histories shared between
// transaction copies are never mutated in place.
func appendTxHistory(history []TxStateChange, change TxStateChange) []TxStateChange {
	updated := make([]TxStateChange, len(history), len(history)+1)
	copy(updated, history)

	return append(updated, change)
}
