package clearing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradegraph/clearing-backend/internal/chainrpc"
	"github.com/tradegraph/clearing-backend/internal/dispatcher"
	"github.com/tradegraph/clearing-backend/internal/model"
	"github.com/tradegraph/clearing-backend/internal/tracker"
	"github.com/tradegraph/clearing-backend/internal/utils/config"
	"github.com/tradegraph/clearing-backend/internal/utils/logger"
)

const testNow int64 = 1_700_000_000

// fakeChainClient simulates one chain: broadcasts assign hashes, and tests
// mark hashes mined or confirmed to drive reconciliation.
type fakeChainClient struct {
	mu        sync.Mutex
	submitted map[string]string
	mined     map[string]bool
	confirmed map[string]bool
	submitErr error
}

func newFakeChainClient() *fakeChainClient {
	return &fakeChainClient{
		submitted: make(map[string]string),
		mined:     make(map[string]bool),
		confirmed: make(map[string]bool),
	}
}

func (f *fakeChainClient) Submit(ctx context.Context, rawTx string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return "", f.submitErr
	}
	hash := "hash-" + rawTx
	f.submitted[rawTx] = hash
	return hash, nil
}

func (f *fakeChainClient) Get(ctx context.Context, txID string) (*chainrpc.TxRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.mined[txID] {
		return &chainrpc.TxRecord{TxID: txID}, nil
	}
	record := &chainrpc.TxRecord{TxID: txID, Mined: true, Confirmations: 1}
	if f.confirmed[txID] {
		record.Confirmations = 100
	}
	return record, nil
}

func (f *fakeChainClient) IsMined(ctx context.Context, txID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mined[txID], nil
}

func (f *fakeChainClient) IsConfirmed(ctx context.Context, txID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.confirmed[txID], nil
}

func (f *fakeChainClient) TipHeight(ctx context.Context) (int64, error) {
	return 100, nil
}

func (f *fakeChainClient) ValidateAddress(address string) error {
	return nil
}

func (f *fakeChainClient) confirm(hash string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mined[hash] = true
	f.confirmed[hash] = true
}

type recordingSink struct {
	mu     sync.Mutex
	states []model.SettlementState
}

func (r *recordingSink) OnTransition(settlement model.Settlement, previous, next model.SettlementState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, next)
	return nil
}

func (r *recordingSink) snapshot() []model.SettlementState {
	r.mu.Lock()
	defer r.mu.Unlock()
	states := make([]model.SettlementState, len(r.states))
	copy(states, r.states)
	return states
}

type engineFixture struct {
	engine IEngine
	btc    *fakeChainClient
	eth    *fakeChainClient
	sink   *recordingSink
	now    *int64
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	log := logger.New("test")
	appConfig := &config.AppConfig{}
	appConfig.Clearing.RetryBudget = 1
	appConfig.Clearing.RetryBackoffBase = time.Millisecond

	btc := newFakeChainClient()
	eth := newFakeChainClient()
	sink := &recordingSink{}

	d := dispatcher.New(log, sink)
	t.Cleanup(d.Shutdown)

	now := testNow
	fixture := &engineFixture{btc: btc, eth: eth, sink: sink, now: &now}
	fixture.engine = NewWithClock(
		chainrpc.NewRegistry(btc, eth),
		tracker.NewWithClock(appConfig, log, func() int64 { return now }),
		d,
		log,
		func() int64 { return now },
	)

	return fixture
}

func settlementSpec() model.SettlementSpec {
	hashed := model.HashSecret("swap-secret")

	return model.SettlementSpec{
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
	}
}

func TestEngine_Settle(t *testing.T) {
	f := newEngineFixture(t)

	s, err := f.engine.Settle(settlementSpec())
	require.NoError(t, err)
	assert.Equal(t, model.SettlementCreated, s.State)
	assert.Equal(t, []model.SettlementState{model.SettlementCreated}, f.sink.snapshot())

	got, err := f.engine.Get(s.SettlementID)
	require.NoError(t, err)
	assert.Equal(t, s.SettlementID, got.SettlementID)

	_, err = f.engine.Get("missing")
	assert.ErrorIs(t, err, model.ErrSettlementNotFound)
}

func TestEngine_Settle_TimeoutOrderingRejected(t *testing.T) {
	f := newEngineFixture(t)

	spec := settlementSpec()
	spec.Participate.Timeout = spec.Initiate.Timeout + 1

	_, err := f.engine.Settle(spec)
	assert.ErrorIs(t, err, model.ErrTimeoutOrdering)
	assert.Empty(t, f.sink.snapshot())
}

func TestEngine_RecordParticipate_HashedSecretMismatch(t *testing.T) {
	f := newEngineFixture(t)

	s, err := f.engine.Settle(settlementSpec())
	require.NoError(t, err)

	_, err = f.engine.RecordParticipateChannel(s.SettlementID, model.HashSecret("other"), "eth-contract")
	assert.ErrorIs(t, err, model.ErrHashedSecretMismatch)
}

// Full redeem scenario: both legs fund, the initiator redeems revealing the
// secret, and the engine broadcasts the delegated participate redeem.
func TestEngine_RedeemScenario(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	s, err := f.engine.Settle(settlementSpec())
	require.NoError(t, err)
	id := s.SettlementID

	// Initiator funds.
	s, err = f.engine.RecordInitiateChannel(id, "btc-contract")
	require.NoError(t, err)
	assert.Equal(t, model.SettlementCreated, s.State, "unconfirmed contract does not advance")

	f.btc.confirm("btc-contract")
	s, err = f.engine.Reconcile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.SettlementInitiated, s.State)

	// Participant funds, committing to the same hashed secret.
	s, err = f.engine.RecordParticipateChannel(id, model.HashSecret("swap-secret"), "eth-contract")
	require.NoError(t, err)

	f.eth.confirm("eth-contract")
	s, err = f.engine.Reconcile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.SettlementParticipated, s.State)

	// Participant pre-signs its redeem for the engine to broadcast once the
	// secret is revealed.
	err = f.engine.RegisterDelegatedTxs(id, s.ParticipateChannel.ChannelID, "eth-redeem-raw", "")
	require.NoError(t, err)

	// Initiator redeems, revealing the secret on-chain.
	s, err = f.engine.Redeem(ctx, id, "swap-secret", ResolutionRequest{RawTx: "btc-redeem-raw"})
	require.NoError(t, err)
	assert.Equal(t, model.SettlementRedeeming, s.State)
	require.NotNil(t, s.InitiateChannel.TxRedeem)
	assert.Equal(t, "hash-btc-redeem-raw", s.InitiateChannel.TxRedeem.Hash)

	// The initiate redeem confirms; reconciliation picks up the revealed
	// secret and broadcasts the delegated participate redeem.
	f.btc.confirm("hash-btc-redeem-raw")
	s, err = f.engine.Reconcile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.SettlementRedeeming, s.State)
	require.NotNil(t, s.ParticipateChannel.TxRedeem)
	assert.Equal(t, "swap-secret", s.ParticipateChannel.TxRedeem.Secret)
	assert.Equal(t, "hash-eth-redeem-raw", s.ParticipateChannel.TxRedeem.Hash)

	secret, err := f.engine.RevealSecret(id)
	require.NoError(t, err)
	assert.Equal(t, "swap-secret", secret)

	// The participate redeem confirms; the settlement completes.
	f.eth.confirm("hash-eth-redeem-raw")
	s, err = f.engine.Reconcile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.SettlementRedeemed, s.State)

	assert.Equal(t, []model.SettlementState{
		model.SettlementCreated,
		model.SettlementInitiated,
		model.SettlementParticipated,
		model.SettlementRedeeming,
		model.SettlementRedeemed,
	}, f.sink.snapshot())

	// Terminal settlements leave the reconciliation set.
	assert.NotContains(t, f.engine.ActiveSettlementIDs(), id)

	history, err := f.engine.History(id)
	require.NoError(t, err)
	assert.Len(t, history, 5)
}

// The participant registers its delegated redeem only after the secret is
// already revealed. The pass that revealed the secret attaches a redeem it
// cannot broadcast yet; a later pass must pick up the registered raw and
// broadcast it, or the settlement would sit in REDEEMING forever.
func TestEngine_RedeemScenario_LateDelegatedRegistration(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	s, err := f.engine.Settle(settlementSpec())
	require.NoError(t, err)
	id := s.SettlementID

	_, err = f.engine.RecordInitiateChannel(id, "btc-contract")
	require.NoError(t, err)
	f.btc.confirm("btc-contract")
	_, err = f.engine.RecordParticipateChannel(id, model.HashSecret("swap-secret"), "eth-contract")
	require.NoError(t, err)
	f.eth.confirm("eth-contract")
	_, err = f.engine.Reconcile(ctx, id)
	require.NoError(t, err)

	// The initiator redeems and its redeem confirms before the participant
	// has registered anything to broadcast.
	_, err = f.engine.Redeem(ctx, id, "swap-secret", ResolutionRequest{RawTx: "btc-redeem-raw"})
	require.NoError(t, err)
	f.btc.confirm("hash-btc-redeem-raw")

	s, err = f.engine.Reconcile(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, s.ParticipateChannel.TxRedeem)
	assert.Empty(t, s.ParticipateChannel.TxRedeem.Hash, "nothing to broadcast yet")
	assert.Equal(t, model.SettlementRedeeming, s.State)

	// The delegated raw arrives late; the next pass broadcasts it.
	err = f.engine.RegisterDelegatedTxs(id, s.ParticipateChannel.ChannelID, "eth-redeem-raw", "")
	require.NoError(t, err)

	s, err = f.engine.Reconcile(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, s.ParticipateChannel.TxRedeem)
	assert.Equal(t, "hash-eth-redeem-raw", s.ParticipateChannel.TxRedeem.Hash)
	assert.Equal(t, "swap-secret", s.ParticipateChannel.TxRedeem.Secret)

	f.eth.confirm("hash-eth-redeem-raw")
	s, err = f.engine.Reconcile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.SettlementRedeemed, s.State)
}

// Refund scenario: the participant never redeems, so each leg refunds after
// its own timeout.
func TestEngine_RefundScenario(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	s, err := f.engine.Settle(settlementSpec())
	require.NoError(t, err)
	id := s.SettlementID

	s, err = f.engine.RecordInitiateChannel(id, "btc-contract")
	require.NoError(t, err)
	f.btc.confirm("btc-contract")
	s, err = f.engine.RecordParticipateChannel(id, model.HashSecret("swap-secret"), "eth-contract")
	require.NoError(t, err)
	f.eth.confirm("eth-contract")

	s, err = f.engine.Reconcile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.SettlementParticipated, s.State)

	participateID := s.ParticipateChannel.ChannelID
	initiateID := s.InitiateChannel.ChannelID

	// Too early for either refund.
	_, err = f.engine.Refund(ctx, id, participateID, ResolutionRequest{RawTx: "eth-refund-raw"})
	assert.ErrorIs(t, err, model.ErrTimeoutNotElapsed)

	// Participate timeout elapses first.
	*f.now = s.ParticipateChannel.Timeout
	s, err = f.engine.Refund(ctx, id, participateID, ResolutionRequest{RawTx: "eth-refund-raw"})
	require.NoError(t, err)
	assert.Equal(t, model.SettlementRefunding, s.State)

	f.eth.confirm("hash-eth-refund-raw")

	// Then the initiate timeout.
	*f.now = s.InitiateChannel.Timeout
	s, err = f.engine.Refund(ctx, id, initiateID, ResolutionRequest{RawTx: "btc-refund-raw"})
	require.NoError(t, err)

	f.btc.confirm("hash-btc-refund-raw")
	s, err = f.engine.Reconcile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.SettlementRefunded, s.State)
	assert.True(t, s.Terminal())
}

func TestEngine_Redeem_WrongSecretLeavesStateIntact(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	s, err := f.engine.Settle(settlementSpec())
	require.NoError(t, err)

	before, err := f.engine.Get(s.SettlementID)
	require.NoError(t, err)

	_, err = f.engine.Redeem(ctx, s.SettlementID, "not-the-secret", ResolutionRequest{RawTx: "btc-redeem-raw"})
	assert.ErrorIs(t, err, model.ErrSecretMismatch)

	after, err := f.engine.Get(s.SettlementID)
	require.NoError(t, err)
	assert.Equal(t, before.State, after.State)
	assert.Nil(t, after.InitiateChannel.TxRedeem)
}

// A rejected broadcast keeps the FAILED transaction in the audit trail and
// surfaces the error, without blocking the refund path.
func TestEngine_Redeem_BroadcastRejection(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	s, err := f.engine.Settle(settlementSpec())
	require.NoError(t, err)

	f.btc.submitErr = &chainrpc.BroadcastError{Asset: "BTC", Response: "rejected"}

	s, err = f.engine.Redeem(ctx, s.SettlementID, "swap-secret", ResolutionRequest{RawTx: "btc-redeem-raw"})
	var broadcastErr *chainrpc.BroadcastError
	require.ErrorAs(t, err, &broadcastErr)

	require.NotNil(t, s.InitiateChannel.TxRedeem)
	assert.Equal(t, model.TxStateFailed, s.InitiateChannel.TxRedeem.State)
}

func TestEngine_Redeem_WithCounterpartyHash(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	s, err := f.engine.Settle(settlementSpec())
	require.NoError(t, err)

	// The initiator broadcast its own redeem; only the hash is registered.
	s, err = f.engine.Redeem(ctx, s.SettlementID, "swap-secret", ResolutionRequest{TxHash: "external-hash"})
	require.NoError(t, err)
	require.NotNil(t, s.InitiateChannel.TxRedeem)
	assert.Equal(t, "external-hash", s.InitiateChannel.TxRedeem.Hash)
	assert.Equal(t, model.TxStateSubmitted, s.InitiateChannel.TxRedeem.State)
}

func TestEngine_Abort(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	s, err := f.engine.Settle(settlementSpec())
	require.NoError(t, err)
	id := s.SettlementID

	historyBefore, err := f.engine.History(id)
	require.NoError(t, err)

	s, err = f.engine.Abort(id)
	require.NoError(t, err)

	// History is never rewritten.
	historyAfter, err := f.engine.History(id)
	require.NoError(t, err)
	assert.Equal(t, historyBefore, historyAfter)

	// Aborted settlements refuse mutation and leave the reconciliation set.
	_, err = f.engine.RecordInitiateChannel(id, "btc-contract")
	assert.ErrorIs(t, err, model.ErrSettlementAborted)
	_, err = f.engine.Redeem(ctx, id, "swap-secret", ResolutionRequest{RawTx: "raw"})
	assert.ErrorIs(t, err, model.ErrSettlementAborted)
	assert.NotContains(t, f.engine.ActiveSettlementIDs(), id)
}

// Advance is idempotent: repeated and concurrent calls with unchanged
// channels produce no spurious transitions or notifications.
func TestEngine_Advance_IdempotentUnderConcurrency(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	s, err := f.engine.Settle(settlementSpec())
	require.NoError(t, err)
	id := s.SettlementID

	_, err = f.engine.RecordInitiateChannel(id, "btc-contract")
	require.NoError(t, err)
	f.btc.confirm("btc-contract")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.engine.Reconcile(ctx, id)
			_, _ = f.engine.Advance(id)
		}()
	}
	wg.Wait()

	got, err := f.engine.Get(id)
	require.NoError(t, err)
	assert.Equal(t, model.SettlementInitiated, got.State)
	assert.Len(t, got.StateHistory, 2, "exactly one transition past CREATED")
	assert.Equal(t, []model.SettlementState{
		model.SettlementCreated,
		model.SettlementInitiated,
	}, f.sink.snapshot())
}
