package dispatcher

import (
	"fmt"
	"sync"

	"github.com/cskr/pubsub"

	"github.com/tradegraph/clearing-backend/internal/model"
	"github.com/tradegraph/clearing-backend/internal/utils/logger"
)

// FirehoseTopic receives every settlement transition.
const FirehoseTopic = "settlements"

const subscriberBuffer = 64

// SettlementTopic is the per-settlement subscription topic.
func SettlementTopic(settlementID string) string {
	return fmt.Sprintf("settlements.%s", settlementID)
}

// Event is the notification emitted on every real settlement transition.
type Event struct {
	SettlementID   string                `json:"settlement_id"`
	PreviousState  model.SettlementState `json:"previous_state"`
	State          model.SettlementState `json:"state"`
	Timestamp      int64                 `json:"timestamp"`
	CounterParties []string              `json:"counter_parties"`
}

// Sink is a fanout target for settlement transitions: the persistence
// projection and the webhook notifier implement it.
type Sink interface {
	OnTransition(settlement model.Settlement, previous, next model.SettlementState) error
}

// Dispatcher fans settlement transitions out to sinks and in-process
// subscribers. It guarantees exactly one invocation per distinct
// (settlementID, state) pair, in the order states were reached; no-op
// advances never reach it as events.
type Dispatcher struct {
	mu     sync.Mutex
	seen   map[string]map[model.SettlementState]bool
	ps     *pubsub.PubSub
	sinks  []Sink
	logger *logger.Logger
}

func New(logger *logger.Logger, sinks ...Sink) *Dispatcher {
	return &Dispatcher{
		seen:   make(map[string]map[model.SettlementState]bool),
		ps:     pubsub.New(subscriberBuffer),
		sinks:  sinks,
		logger: logger,
	}
}

// OnTransition records and fans out one settlement transition. Duplicate
// (settlementID, newState) pairs are dropped.
func (d *Dispatcher) OnTransition(settlement model.Settlement, previous, next model.SettlementState) {
	d.mu.Lock()
	states, ok := d.seen[settlement.SettlementID]
	if !ok {
		states = make(map[model.SettlementState]bool)
		d.seen[settlement.SettlementID] = states
	}
	if states[next] {
		d.mu.Unlock()
		return
	}
	states[next] = true

	event := Event{
		SettlementID:  settlement.SettlementID,
		PreviousState: previous,
		State:         next,
		Timestamp:     lastTransitionTimestamp(settlement),
		CounterParties: []string{
			settlement.CounterPartyOneID,
			settlement.CounterPartyTwoID,
		},
	}

	for _, sink := range d.sinks {
		if err := sink.OnTransition(settlement, previous, next); err != nil {
			d.logger.Error("[OnTransition] sink failed", map[string]string{
				"settlement_id": settlement.SettlementID,
				"state":         string(next),
				"error":         err.Error(),
			})
		}
	}

	d.ps.Pub(event, FirehoseTopic, SettlementTopic(settlement.SettlementID))

	// A terminal settlement never transitions again; keeping its dedup
	// record would only grow the map.
	if next.Terminal() {
		delete(d.seen, settlement.SettlementID)
	}
	d.mu.Unlock()

	d.logger.Info("[OnTransition] settlement transition", map[string]string{
		"settlement_id": settlement.SettlementID,
		"previous":      string(previous),
		"state":         string(next),
	})
}

// Forget drops the dedup record for a settlement, for callers that remove a
// settlement from the active set without it reaching a terminal state, e.g.
// an operator abort.
func (d *Dispatcher) Forget(settlementID string) {
	d.mu.Lock()
	delete(d.seen, settlementID)
	d.mu.Unlock()
}

// Subscribe returns a channel of Event for one settlement.
func (d *Dispatcher) Subscribe(settlementID string) chan interface{} {
	return d.ps.Sub(SettlementTopic(settlementID))
}

// SubscribeAll returns a channel of Event for every settlement.
func (d *Dispatcher) SubscribeAll() chan interface{} {
	return d.ps.Sub(FirehoseTopic)
}

func (d *Dispatcher) Unsubscribe(ch chan interface{}, settlementID string) {
	d.ps.Unsub(ch, SettlementTopic(settlementID))
}

func (d *Dispatcher) Shutdown() {
	d.ps.Shutdown()
}

func lastTransitionTimestamp(settlement model.Settlement) int64 {
	if len(settlement.StateHistory) == 0 {
		return 0
	}

	return settlement.StateHistory[len(settlement.StateHistory)-1].Timestamp
}
