package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// OutboxTask is a domain event waiting to be delivered to the event stream.
type OutboxTask struct {
	ID          int64      `json:"id"`
	EventType   string     `json:"event_type"`
	AggregateID string     `json:"aggregate_id"`
	Payload     string     `json:"payload"`
	Status      string     `json:"status"`
	RetryCount  int        `json:"retry_count"`
	LastError   *string    `json:"last_error"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at"`
	NextRetryAt *time.Time `json:"next_retry_at"`
}

// OutboxEvent is recorded by the store in the same transaction as the change
// it describes. Build runs after the change is applied, so the payload sees
// fields the store fills in (ids, recomputed availability).
type OutboxEvent struct {
	EventType string
	Build     func() (aggregateID string, payload interface{})
}

// Task encodes the event into a pending outbox row.
func (e OutboxEvent) Task() (*OutboxTask, error) {
	if e.EventType == "" {
		return nil, errors.New("event type is required")
	}
	if e.Build == nil {
		return nil, fmt.Errorf("outbox event %s has no payload builder", e.EventType)
	}
	aggregateID, payload := e.Build()
	if aggregateID == "" {
		return nil, fmt.Errorf("outbox event %s: aggregate id is required", e.EventType)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", e.EventType, err)
	}
	return &OutboxTask{
		EventType:   e.EventType,
		AggregateID: aggregateID,
		Payload:     string(raw),
		Status:      OutboxStatusPending,
	}, nil
}
