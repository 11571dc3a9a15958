package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"carteira/internal/core"
)

type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
	EventCleared EventType = "cleared"
)

// TransactionEvent announces one committed change to the transaction list.
// Created and updated events carry the full record so consumers do not
// need access to the store; Version is only meaningful for the SQLite
// backend, where it acknowledges the outbox row.
type TransactionEvent struct {
	Type        EventType         `json:"type"`
	ID          int64             `json:"id,omitempty"`
	Version     int64             `json:"version,omitempty"`
	Count       int               `json:"count,omitempty"`
	Transaction *core.Transaction `json:"transaction,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

func NewCreatedEvent(t core.Transaction, version int64) *TransactionEvent {
	return &TransactionEvent{Type: EventCreated, ID: t.ID, Version: version, Transaction: &t, Timestamp: time.Now()}
}

func NewUpdatedEvent(t core.Transaction, version int64) *TransactionEvent {
	return &TransactionEvent{Type: EventUpdated, ID: t.ID, Version: version, Transaction: &t, Timestamp: time.Now()}
}

func NewDeletedEvent(id, version int64) *TransactionEvent {
	return &TransactionEvent{Type: EventDeleted, ID: id, Version: version, Timestamp: time.Now()}
}

func NewClearedEvent(count int) *TransactionEvent {
	return &TransactionEvent{Type: EventCleared, Count: count, Timestamp: time.Now()}
}

func (m *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionEventFromJSON decodes and sanity-checks an event body.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var msg TransactionEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Type {
	case EventCreated, EventUpdated:
		if msg.Transaction == nil {
			return nil, fmt.Errorf("%s event without transaction", msg.Type)
		}
	case EventDeleted, EventCleared:
	default:
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	return &msg, nil
}
