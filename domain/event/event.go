// Package event defines the immutable fact records distributed on the event bus.
package event

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is an immutable record of something that happened.
// Type is the routing key for all subscription matching.
type DomainEvent struct {
	ID         string         `json:"id"`
	Aggregate  string         `json:"aggregate"`
	Type       string         `json:"type"`
	OccurredAt string         `json:"occurredAt"`
	Payload    map[string]any `json:"payload"`
}

// New builds a DomainEvent with a fresh identifier and a UTC timestamp.
// The event must not be mutated after construction.
func New(aggregate, eventType string, payload map[string]any) DomainEvent {
	return DomainEvent{
		ID:         uuid.NewString(),
		Aggregate:  aggregate,
		Type:       eventType,
		OccurredAt: time.Now().UTC().Format(time.RFC3339Nano),
		Payload:    payload,
	}
}
