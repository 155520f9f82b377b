package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventKind names what happened to which entity.
type EventKind string

const (
	AccountCreated     EventKind = "account.created"
	CategoryCreated    EventKind = "category.created"
	TransactionCreated EventKind = "transaction.created"
)

func (k EventKind) Valid() bool {
	switch k {
	case AccountCreated, CategoryCreated, TransactionCreated:
		return true
	}
	return false
}

// LedgerEvent is a lightweight notification carrying only the entity id.
// Consumers load the entity from the store when they need its fields.
type LedgerEvent struct {
	Kind      EventKind `json:"kind"`
	ID        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerEvent(kind EventKind, id uuid.UUID) *LedgerEvent {
	return &LedgerEvent{
		Kind:      kind,
		ID:        id,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes an event and rejects unknown kinds or a nil id.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var ev LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if !ev.Kind.Valid() {
		return nil, fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	if ev.ID == uuid.Nil {
		return nil, fmt.Errorf("event %s has no id", ev.Kind)
	}
	return &ev, nil
}
