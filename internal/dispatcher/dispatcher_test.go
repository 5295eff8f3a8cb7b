package dispatcher

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradegraph/clearing-backend/internal/model"
	"github.com/tradegraph/clearing-backend/internal/utils/logger"
)

type recordingSink struct {
	mu    sync.Mutex
	calls []model.SettlementState
}

func (r *recordingSink) OnTransition(settlement model.Settlement, previous, next model.SettlementState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, next)
	return nil
}

func testSettlement(id string) model.Settlement {
	return model.Settlement{
		SettlementID:      id,
		CounterPartyOneID: "alice",
		CounterPartyTwoID: "bob",
		StateHistory: []model.SettlementStateChange{
			{State: model.SettlementCreated, Timestamp: 100},
		},
	}
}

func TestDispatcher_ExactlyOncePerState(t *testing.T) {
	sink := &recordingSink{}
	d := New(logger.New("test"), sink)
	defer d.Shutdown()

	s := testSettlement("s-1")

	d.OnTransition(s, "", model.SettlementCreated)
	d.OnTransition(s, "", model.SettlementCreated)
	d.OnTransition(s, model.SettlementCreated, model.SettlementInitiated)
	d.OnTransition(s, model.SettlementCreated, model.SettlementInitiated)

	assert.Equal(t, []model.SettlementState{
		model.SettlementCreated,
		model.SettlementInitiated,
	}, sink.calls)
}

func TestDispatcher_ExactlyOnceUnderConcurrency(t *testing.T) {
	sink := &recordingSink{}
	d := New(logger.New("test"), sink)
	defer d.Shutdown()

	s := testSettlement("s-1")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.OnTransition(s, "", model.SettlementCreated)
			d.OnTransition(s, model.SettlementCreated, model.SettlementInitiated)
		}()
	}
	wg.Wait()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Len(t, sink.calls, 2, "each distinct state must fan out exactly once")
}

func TestDispatcher_TerminalStateEvictsDedupRecord(t *testing.T) {
	sink := &recordingSink{}
	d := New(logger.New("test"), sink)
	defer d.Shutdown()

	s := testSettlement("s-1")

	d.OnTransition(s, "", model.SettlementCreated)
	d.OnTransition(s, model.SettlementRedeeming, model.SettlementRedeemed)

	d.mu.Lock()
	_, tracked := d.seen["s-1"]
	d.mu.Unlock()
	assert.False(t, tracked, "terminal settlements must not accumulate dedup state")
}

func TestDispatcher_Forget(t *testing.T) {
	sink := &recordingSink{}
	d := New(logger.New("test"), sink)
	defer d.Shutdown()

	s := testSettlement("s-1")
	d.OnTransition(s, "", model.SettlementCreated)

	d.Forget("s-1")

	d.mu.Lock()
	_, tracked := d.seen["s-1"]
	d.mu.Unlock()
	assert.False(t, tracked)
}

func TestDispatcher_IndependentSettlements(t *testing.T) {
	sink := &recordingSink{}
	d := New(logger.New("test"), sink)
	defer d.Shutdown()

	d.OnTransition(testSettlement("s-1"), "", model.SettlementCreated)
	d.OnTransition(testSettlement("s-2"), "", model.SettlementCreated)

	assert.Len(t, sink.calls, 2)
}

func TestDispatcher_Subscriptions(t *testing.T) {
	d := New(logger.New("test"))
	defer d.Shutdown()

	perSettlement := d.Subscribe("s-1")
	firehose := d.SubscribeAll()

	d.OnTransition(testSettlement("s-1"), "", model.SettlementCreated)
	d.OnTransition(testSettlement("s-2"), "", model.SettlementCreated)

	received := func(ch chan interface{}) Event {
		t.Helper()
		select {
		case raw := <-ch:
			event, ok := raw.(Event)
			require.True(t, ok)
			return event
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
			return Event{}
		}
	}

	event := received(perSettlement)
	assert.Equal(t, "s-1", event.SettlementID)
	assert.Equal(t, model.SettlementCreated, event.State)
	assert.Equal(t, []string{"alice", "bob"}, event.CounterParties)

	assert.Equal(t, "s-1", received(firehose).SettlementID)
	assert.Equal(t, "s-2", received(firehose).SettlementID)

	// s-2 never reaches the per-settlement channel for s-1.
	select {
	case raw := <-perSettlement:
		t.Fatalf("unexpected event: %+v", raw)
	case <-time.After(50 * time.Millisecond):
	}

	d.Unsubscribe(perSettlement, "s-1")
}
