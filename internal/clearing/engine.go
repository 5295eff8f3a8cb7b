package clearing

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/tradegraph/clearing-backend/internal/chainrpc"
	"github.com/tradegraph/clearing-backend/internal/dispatcher"
	"github.com/tradegraph/clearing-backend/internal/model"
	"github.com/tradegraph/clearing-backend/internal/tracker"
	"github.com/tradegraph/clearing-backend/internal/utils/logger"
)

// entry is one settlement aggregate behind its single-writer lock.
type entry struct {
	mu      sync.Mutex
	s       model.Settlement
	aborted bool
}

type Engine struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	registry   *chainrpc.Registry
	tracker    *tracker.Tracker
	dispatcher *dispatcher.Dispatcher
	logger     *logger.Logger
	now        func() int64
}

func New(registry *chainrpc.Registry, tracker *tracker.Tracker, dispatcher *dispatcher.Dispatcher, logger *logger.Logger) IEngine {
	return NewWithClock(registry, tracker, dispatcher, logger, func() int64 { return time.Now().Unix() })
}

// NewWithClock is used by tests to drive time-based transitions.
func NewWithClock(registry *chainrpc.Registry, tracker *tracker.Tracker, dispatcher *dispatcher.Dispatcher, logger *logger.Logger, now func() int64) IEngine {
	return &Engine{
		entries:    make(map[string]*entry),
		registry:   registry,
		tracker:    tracker,
		dispatcher: dispatcher,
		logger:     logger,
		now:        now,
	}
}

// Settle validates the spec, including chain-specific address checks, and
// registers the new settlement in CREATED.
func (e *Engine) Settle(spec model.SettlementSpec) (model.Settlement, error) {
	settlement, err := model.NewSettlement(spec, e.now())
	if err != nil {
		return model.Settlement{}, err
	}

	for _, channel := range settlement.Channels() {
		client, err := e.registry.Client(channel.Asset)
		if err != nil {
			return model.Settlement{}, err
		}
		if err := client.ValidateAddress(channel.AddressFrom); err != nil {
			return model.Settlement{}, errors.Wrap(model.ErrInvalidChannelSpec, err.Error())
		}
		if err := client.ValidateAddress(channel.AddressTo); err != nil {
			return model.Settlement{}, errors.Wrap(model.ErrInvalidChannelSpec, err.Error())
		}
	}

	if err := e.tracker.Record(settlement.InitiateChannel.TxContract); err != nil {
		return model.Settlement{}, err
	}
	if err := e.tracker.Record(settlement.ParticipateChannel.TxContract); err != nil {
		return model.Settlement{}, err
	}

	e.mu.Lock()
	e.entries[settlement.SettlementID] = &entry{s: settlement}
	e.mu.Unlock()

	e.dispatcher.OnTransition(settlement, "", model.SettlementCreated)

	e.logger.Info("[Settle] settlement created", map[string]string{
		"settlement_id": settlement.SettlementID,
		"asset_pair":    settlement.AssetPair,
	})

	return settlement, nil
}

func (e *Engine) Get(settlementID string) (model.Settlement, error) {
	ent, err := e.entry(settlementID)
	if err != nil {
		return model.Settlement{}, err
	}

	ent.mu.Lock()
	defer ent.mu.Unlock()

	return ent.s, nil
}

func (e *Engine) History(settlementID string) ([]model.SettlementStateChange, error) {
	settlement, err := e.Get(settlementID)
	if err != nil {
		return nil, err
	}

	history := make([]model.SettlementStateChange, len(settlement.StateHistory))
	copy(history, settlement.StateHistory)

	return history, nil
}

// RecordInitiateChannel registers the hash of the contract transaction the
// initiator broadcast, moving it to SUBMITTED and the settlement forward.
func (e *Engine) RecordInitiateChannel(settlementID, txContractHash string) (model.Settlement, error) {
	ent, err := e.entry(settlementID)
	if err != nil {
		return model.Settlement{}, err
	}

	ent.mu.Lock()
	defer ent.mu.Unlock()

	if err := e.guardMutable(ent); err != nil {
		return ent.s, err
	}

	contract, err := ent.s.InitiateChannel.TxContract.WithHash(txContractHash, e.now())
	if err != nil {
		return ent.s, err
	}

	channel, err := ent.s.InitiateChannel.WithTransaction(contract)
	if err != nil {
		return ent.s, err
	}

	updated, err := ent.s.WithInitiateChannel(channel)
	if err != nil {
		return ent.s, err
	}
	ent.s = updated

	e.advanceLocked(ent)

	return ent.s, nil
}

// RecordParticipateChannel registers the participant's contract hash after
// verifying the participant committed to the initiator's hashed secret.
func (e *Engine) RecordParticipateChannel(settlementID, hashedSecret, txContractHash string) (model.Settlement, error) {
	ent, err := e.entry(settlementID)
	if err != nil {
		return model.Settlement{}, err
	}

	ent.mu.Lock()
	defer ent.mu.Unlock()

	if err := e.guardMutable(ent); err != nil {
		return ent.s, err
	}

	if hashedSecret != ent.s.InitiateChannel.HashedSecret {
		return ent.s, model.ErrHashedSecretMismatch
	}

	contract, err := ent.s.ParticipateChannel.TxContract.WithHash(txContractHash, e.now())
	if err != nil {
		return ent.s, err
	}

	channel, err := ent.s.ParticipateChannel.WithTransaction(contract)
	if err != nil {
		return ent.s, err
	}

	updated, err := ent.s.WithParticipateChannel(channel)
	if err != nil {
		return ent.s, err
	}
	ent.s = updated

	e.advanceLocked(ent)

	return ent.s, nil
}

// RegisterDelegatedTxs stores pre-signed resolution transactions on a
// channel so the engine can broadcast them on the counterparty's behalf.
func (e *Engine) RegisterDelegatedTxs(settlementID, channelID, redeemRaw, refundRaw string) error {
	ent, err := e.entry(settlementID)
	if err != nil {
		return err
	}

	ent.mu.Lock()
	defer ent.mu.Unlock()

	if err := e.guardMutable(ent); err != nil {
		return err
	}

	channel, err := ent.s.Channel(channelID)
	if err != nil {
		return err
	}
	channel = channel.WithDelegatedTxs(redeemRaw, refundRaw)

	if channel.Type == model.ChannelTypeInitiate {
		ent.s, err = ent.s.WithInitiateChannel(channel)
	} else {
		ent.s, err = ent.s.WithParticipateChannel(channel)
	}

	return err
}

// Redeem attaches the secret-revealing redeem to the initiate channel and
// broadcasts it.
func (e *Engine) Redeem(ctx context.Context, settlementID, secretPreimage string, res ResolutionRequest) (model.Settlement, error) {
	ent, err := e.entry(settlementID)
	if err != nil {
		return model.Settlement{}, err
	}

	ent.mu.Lock()
	defer ent.mu.Unlock()

	if err := e.guardMutable(ent); err != nil {
		return ent.s, err
	}

	channel, err := ent.s.InitiateChannel.AttachRedeem(secretPreimage, e.now())
	if err != nil {
		return ent.s, err
	}

	channel, broadcastErr := e.broadcastResolution(ctx, channel, *channel.TxRedeem, res, channel.DelegatedRedeemRaw)

	updated, err := ent.s.WithInitiateChannel(channel)
	if err != nil {
		return ent.s, err
	}
	ent.s = updated

	e.advanceLocked(ent)

	// A failed broadcast is committed to the audit trail above and still
	// surfaced to the caller.
	return ent.s, broadcastErr
}

// Refund attaches a refund to the identified channel once its own timeout
// has elapsed, and broadcasts it.
func (e *Engine) Refund(ctx context.Context, settlementID, channelID string, res ResolutionRequest) (model.Settlement, error) {
	ent, err := e.entry(settlementID)
	if err != nil {
		return model.Settlement{}, err
	}

	ent.mu.Lock()
	defer ent.mu.Unlock()

	if err := e.guardMutable(ent); err != nil {
		return ent.s, err
	}

	channel, err := ent.s.Channel(channelID)
	if err != nil {
		return ent.s, err
	}

	channel, err = channel.AttachRefund(e.now())
	if err != nil {
		return ent.s, err
	}

	channel, broadcastErr := e.broadcastResolution(ctx, channel, *channel.TxRefund, res, channel.DelegatedRefundRaw)

	if channel.Type == model.ChannelTypeInitiate {
		ent.s, err = ent.s.WithInitiateChannel(channel)
	} else {
		ent.s, err = ent.s.WithParticipateChannel(channel)
	}
	if err != nil {
		return ent.s, err
	}

	e.advanceLocked(ent)

	return ent.s, broadcastErr
}

// RevealSecret returns the preimage once the initiate channel's redeem has
// confirmed on-chain.
func (e *Engine) RevealSecret(settlementID string) (string, error) {
	settlement, err := e.Get(settlementID)
	if err != nil {
		return "", err
	}

	secret, ok := settlement.RevealedSecret()
	if !ok {
		return "", model.ErrSecretUnavailable
	}

	return secret, nil
}

// Advance recomputes the settlement state from the current channel states.
// It is idempotent: with unchanged channels it neither appends history nor
// notifies the dispatcher.
func (e *Engine) Advance(settlementID string) (model.Settlement, error) {
	ent, err := e.entry(settlementID)
	if err != nil {
		return model.Settlement{}, err
	}

	ent.mu.Lock()
	defer ent.mu.Unlock()

	e.advanceLocked(ent)

	return ent.s, nil
}

// Reconcile polls the chain for every in-flight transaction of the
// settlement, then advances it, all under the settlement's lock. Independent
// settlements reconcile in parallel.
func (e *Engine) Reconcile(ctx context.Context, settlementID string) (model.Settlement, error) {
	ent, err := e.entry(settlementID)
	if err != nil {
		return model.Settlement{}, err
	}

	ent.mu.Lock()
	defer ent.mu.Unlock()

	if ent.aborted || ent.s.Terminal() {
		return ent.s, nil
	}

	for _, channel := range ent.s.Channels() {
		client, err := e.registry.Client(channel.Asset)
		if err != nil {
			return ent.s, err
		}

		updatedChannel := channel
		for _, tx := range channel.Transactions() {
			if tx.Terminal() || tx.Hash == "" {
				continue
			}

			reconciled, reconcileErr := e.tracker.Reconcile(ctx, tx, client)
			if reconcileErr != nil {
				e.logger.Error("[Reconcile] transaction reconciliation fault", map[string]string{
					"settlement_id":  ent.s.SettlementID,
					"transaction_id": tx.TransactionID,
					"error":          reconcileErr.Error(),
				})
			}

			updatedChannel, err = updatedChannel.WithTransaction(reconciled)
			if err != nil {
				return ent.s, err
			}
		}

		if updatedChannel.Type == model.ChannelTypeInitiate {
			ent.s, err = ent.s.WithInitiateChannel(updatedChannel)
		} else {
			ent.s, err = ent.s.WithParticipateChannel(updatedChannel)
		}
		if err != nil {
			return ent.s, err
		}
	}

	e.retryStalledResolutionsLocked(ctx, ent)
	e.propagateSecretLocked(ctx, ent)
	e.advanceLocked(ent)

	return ent.s, nil
}

// Abort stops further reconciliation scheduling for a settlement. History is
// never rewritten.
func (e *Engine) Abort(settlementID string) (model.Settlement, error) {
	ent, err := e.entry(settlementID)
	if err != nil {
		return model.Settlement{}, err
	}

	ent.mu.Lock()
	defer ent.mu.Unlock()

	ent.aborted = true
	e.dispatcher.Forget(ent.s.SettlementID)

	e.logger.Info("[Abort] settlement aborted by operator", map[string]string{
		"settlement_id": ent.s.SettlementID,
		"state":         string(ent.s.State),
	})

	return ent.s, nil
}

// ActiveSettlementIDs lists settlements still eligible for reconciliation.
func (e *Engine) ActiveSettlementIDs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var ids []string
	for id, ent := range e.entries {
		ent.mu.Lock()
		active := !ent.aborted && !ent.s.Terminal()
		ent.mu.Unlock()
		if active {
			ids = append(ids, id)
		}
	}

	return ids
}

func (e *Engine) entry(settlementID string) (*entry, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ent, ok := e.entries[settlementID]
	if !ok {
		return nil, model.ErrSettlementNotFound
	}

	return ent, nil
}

func (e *Engine) guardMutable(ent *entry) error {
	if ent.aborted {
		return model.ErrSettlementAborted
	}
	if ent.s.Terminal() {
		return errors.Wrapf(model.ErrInternalConsistency,
			"settlement %s is terminal in state %s", ent.s.SettlementID, ent.s.State)
	}

	return nil
}

// advanceLocked recomputes the aggregate state and dispatches a transition
// when, and only when, the derived state changed. Must be called with the
// entry lock held.
func (e *Engine) advanceLocked(ent *entry) {
	next, err := ent.s.Recompute(e.now())
	if err != nil {
		snapshot, _ := json.Marshal(ent.s)
		e.logger.Error("[Advance] internal consistency fault", map[string]string{
			"settlement_id": ent.s.SettlementID,
			"error":         err.Error(),
			"snapshot":      string(snapshot),
		})
	}

	if next == ent.s.State {
		return
	}

	previous := ent.s.State
	ent.s = ent.s.WithState(next, e.now())
	e.dispatcher.OnTransition(ent.s, previous, next)
}

// retryStalledResolutionsLocked re-broadcasts attached resolution
// transactions that never reached the chain. A redeem attached before its
// delegated raw was registered has no hash; once the raw arrives the
// broadcast can finally happen.
func (e *Engine) retryStalledResolutionsLocked(ctx context.Context, ent *entry) {
	for _, channel := range ent.s.Channels() {
		updated := channel
		changed := false

		resolutions := []struct {
			tx  *model.Transaction
			raw string
		}{
			{channel.TxRedeem, channel.DelegatedRedeemRaw},
			{channel.TxRefund, channel.DelegatedRefundRaw},
		}
		for _, resolution := range resolutions {
			if resolution.tx == nil || resolution.tx.Terminal() || resolution.tx.Hash != "" || resolution.raw == "" {
				continue
			}

			var err error
			updated, err = e.broadcastResolution(ctx, updated, *resolution.tx, ResolutionRequest{}, resolution.raw)
			if err != nil {
				e.logger.Error("[Reconcile] stalled resolution broadcast failed", map[string]string{
					"settlement_id":  ent.s.SettlementID,
					"transaction_id": resolution.tx.TransactionID,
					"error":          err.Error(),
				})
			}
			changed = true
		}

		if !changed {
			continue
		}

		var err error
		if updated.Type == model.ChannelTypeInitiate {
			ent.s, err = ent.s.WithInitiateChannel(updated)
		} else {
			ent.s, err = ent.s.WithParticipateChannel(updated)
		}
		if err != nil {
			e.logger.Error("[Reconcile] stalled resolution not recorded", map[string]string{
				"settlement_id": ent.s.SettlementID,
				"error":         err.Error(),
			})
		}
	}
}

// propagateSecretLocked drives the second half of the redeem path: once the
// initiate redeem confirms and reveals the preimage, the engine redeems the
// participate channel with it, using the delegated raw transaction if one
// was registered.
func (e *Engine) propagateSecretLocked(ctx context.Context, ent *entry) {
	secret, ok := ent.s.InitiateChannel.RevealedSecret()
	if !ok {
		return
	}
	if ent.s.ParticipateChannel.DeriveState() != model.ChannelFunded {
		return
	}

	channel, err := ent.s.ParticipateChannel.AttachRedeem(secret, e.now())
	if err != nil {
		e.logger.Error("[Reconcile] counterpart redeem rejected", map[string]string{
			"settlement_id": ent.s.SettlementID,
			"error":         err.Error(),
		})
		return
	}

	if channel.DelegatedRedeemRaw != "" {
		channel, err = e.broadcastResolution(ctx, channel, *channel.TxRedeem, ResolutionRequest{}, channel.DelegatedRedeemRaw)
		if err != nil {
			e.logger.Error("[Reconcile] counterpart redeem broadcast failed", map[string]string{
				"settlement_id": ent.s.SettlementID,
				"error":         err.Error(),
			})
		}
	}

	updated, err := ent.s.WithParticipateChannel(channel)
	if err != nil {
		e.logger.Error("[Reconcile] counterpart redeem not recorded", map[string]string{
			"settlement_id": ent.s.SettlementID,
			"error":         err.Error(),
		})
		return
	}
	ent.s = updated
}

// broadcastResolution submits a redeem or refund to its chain, or records a
// hash the counterparty broadcast itself. With neither a raw transaction nor
// a hash, the transaction stays PENDING until one is registered.
func (e *Engine) broadcastResolution(ctx context.Context, channel model.Channel, tx model.Transaction, res ResolutionRequest, delegatedRaw string) (model.Channel, error) {
	if err := e.tracker.Record(tx); err != nil {
		return channel, err
	}

	if res.TxHash != "" {
		recorded, err := tx.WithHash(res.TxHash, e.now())
		if err != nil {
			return channel, err
		}

		return channel.WithTransaction(recorded)
	}

	rawTx := res.RawTx
	if rawTx == "" {
		rawTx = delegatedRaw
	}
	if rawTx == "" {
		return channel, nil
	}

	client, err := e.registry.Client(channel.Asset)
	if err != nil {
		return channel, err
	}

	submitted, err := e.tracker.Submit(ctx, tx, rawTx, client)
	if err != nil {
		// The FAILED record is kept: broadcast rejection is part of the
		// audit trail, and the error still reaches the caller.
		failedChannel, chanErr := channel.WithTransaction(submitted)
		if chanErr != nil {
			return channel, chanErr
		}

		return failedChannel, err
	}

	return channel.WithTransaction(submitted)
}
