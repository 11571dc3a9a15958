package services

import (
	"context"
	"sync"

	"carteira/internal/amqp"
)

// Publisher forwards committed transaction changes downstream.
type Publisher interface {
	Publish(ctx context.Context, ev *amqp.TransactionEvent) error
}

type EventKind string

const (
	EventTransactions EventKind = "transactions"
	EventBudgets      EventKind = "budgets"
	EventCategories   EventKind = "categories"
	EventGoals        EventKind = "goals"
)

// Event tells subscribers that part of the ledger changed. Revision grows
// with every mutation.
type Event struct {
	Kind     EventKind `json:"kind"`
	Revision uint64    `json:"revision"`
}

type broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: map[int]chan Event{}}
}

func (b *broadcaster) subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, 16)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// send skips subscribers whose buffer is full.
func (b *broadcaster) send(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

func (b *broadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
