// Package stream turns household chore writes into live snapshot
// subscriptions. Writers signal the Broker after a commit; each Subscription
// requeries the store and republishes the full snapshot to its consumer.
package stream

import (
	"log/slog"
	"sync"

	"github.com/choreward/choreward/internal/chore"
	"github.com/choreward/choreward/internal/model"
	"github.com/choreward/choreward/internal/store"
)

// Snapshot is one emission of a subscription: the household's chores ordered
// by due date, the "my chores" projection for the subscriber's identity, or a
// store error. An errored snapshot carries no records; the subscription stays
// open and the next change retriggers a query.
type Snapshot struct {
	Chores []model.Chore
	Mine   []model.Chore
	Err    error
}

// Broker fans change notifications out to the subscriptions of a household.
// Notifications are signals, not payloads; subscriptions requery on receipt,
// so a burst of writes coalesces into one snapshot.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan struct{}]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[chan struct{}]struct{})}
}

// Notify signals every subscription of the household. Never blocks: a signal
// already pending for a subscription satisfies the new one.
func (b *Broker) Notify(householdID string) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs[householdID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (b *Broker) register(householdID string) chan struct{} {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	if b.subs[householdID] == nil {
		b.subs[householdID] = make(map[chan struct{}]struct{})
	}
	b.subs[householdID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) unregister(householdID string, ch chan struct{}) {
	b.mu.Lock()
	if set, ok := b.subs[householdID]; ok {
		delete(set, ch)
		if len(set) == 0 {
			delete(b.subs, householdID)
		}
	}
	b.mu.Unlock()
}

// Subscriber opens snapshot subscriptions against a chore store. At most one
// subscription per Subscriber is active: opening a new one tears down the
// previous one first, so a stale listener can never double-deliver.
type Subscriber struct {
	broker *Broker
	chores *store.ChoreStore
	logger *slog.Logger

	mu     sync.Mutex
	active *Subscription
}

func NewSubscriber(broker *Broker, chores *store.ChoreStore, logger *slog.Logger) *Subscriber {
	return &Subscriber{broker: broker, chores: chores, logger: logger}
}

// Subscribe opens a live snapshot stream for the household. userID scopes the
// Mine projection and may be empty when the caller's identity is unknown. The
// first snapshot is emitted immediately.
func (s *Subscriber) Subscribe(householdID, userID string) *Subscription {
	s.mu.Lock()
	prev := s.active
	sub := &Subscription{
		broker:      s.broker,
		chores:      s.chores,
		logger:      s.logger,
		householdID: householdID,
		userID:      userID,
		notify:      s.broker.register(householdID),
		out:         make(chan Snapshot, 1),
		done:        make(chan struct{}),
	}
	s.active = sub
	s.mu.Unlock()

	if prev != nil {
		prev.Close()
	}

	go sub.run()
	return sub
}

// Close tears down the active subscription, if any.
func (s *Subscriber) Close() {
	s.mu.Lock()
	active := s.active
	s.active = nil
	s.mu.Unlock()

	if active != nil {
		active.Close()
	}
}

// Subscription is a single live snapshot stream. Consumers range over C;
// it is closed by Close. Delivery is latest-wins: a consumer that falls
// behind skips intermediate snapshots rather than blocking writers.
type Subscription struct {
	broker      *Broker
	chores      *store.ChoreStore
	logger      *slog.Logger
	householdID string
	userID      string

	notify    chan struct{}
	out       chan Snapshot
	done      chan struct{}
	closeOnce sync.Once
}

// C is the snapshot channel. It is closed when the subscription is.
func (sub *Subscription) C() <-chan Snapshot {
	return sub.out
}

// HouseholdID returns the partition this subscription watches.
func (sub *Subscription) HouseholdID() string {
	return sub.householdID
}

// Close stops the stream and releases the broker registration. Safe to call
// more than once.
func (sub *Subscription) Close() {
	sub.closeOnce.Do(func() {
		sub.broker.unregister(sub.householdID, sub.notify)
		close(sub.done)
	})
}

func (sub *Subscription) run() {
	defer close(sub.out)

	sub.emit()
	for {
		select {
		case <-sub.done:
			return
		case <-sub.notify:
			sub.emit()
		}
	}
}

func (sub *Subscription) emit() {
	chores, err := sub.chores.ListByHousehold(sub.householdID)

	var snap Snapshot
	if err != nil {
		sub.logger.Error("snapshot query", "household_id", sub.householdID, "error", err)
		snap = Snapshot{Err: err}
	} else {
		if chores == nil {
			chores = []model.Chore{}
		}
		snap = Snapshot{
			Chores: chores,
			Mine:   chore.Mine(chores, sub.userID),
		}
	}

	// Latest-wins: replace a pending snapshot the consumer has not read yet.
	select {
	case sub.out <- snap:
	default:
		select {
		case <-sub.out:
		default:
		}
		select {
		case sub.out <- snap:
		default:
		}
	}
}
