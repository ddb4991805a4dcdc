// Package shared contains common domain types, errors, and events used
// across all domain packages.
package shared

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies a domain event.
type EventType string

// Domain event types. Side effects (notification dispatch) subscribe to
// these instead of being called inline from command handlers, so a failed
// side effect can never fail the primary operation.
const (
	// Follow graph events
	EventFollowCreated        EventType = "graph.follow_created"
	EventFollowRemoved        EventType = "graph.follow_removed"
	EventFollowRequestSent    EventType = "graph.follow_request_sent"
	EventFollowRequestReplied EventType = "graph.follow_request_replied"

	// Phlock events
	EventPhlockMemberAdded   EventType = "phlock.member_added"
	EventPhlockMemberRemoved EventType = "phlock.member_removed"
	EventPhlockReordered     EventType = "phlock.reordered"
	EventSwapScheduled       EventType = "phlock.swap_scheduled"
	EventSwapApplied         EventType = "phlock.swap_applied"
	EventSwapCancelled       EventType = "phlock.swap_cancelled"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event plumbing.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
	EventID     string    `json:"event_id"`
}

// EventType implements Event.
func (e BaseEvent) EventType() EventType { return e.Type }

// OccurredAt implements Event.
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// AggregateID implements Event.
func (e BaseEvent) AggregateID() string { return e.AggregateId }

// NewBaseEvent creates a BaseEvent stamped now.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		EventID:     uuid.New().String(),
	}
}

// FollowEvent is emitted for follow graph changes.
type FollowEvent struct {
	BaseEvent
	FollowerID string `json:"follower_id"`
	TargetID   string `json:"target_id"`
}

// Payload implements Event.
func (e FollowEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"follower_id": e.FollowerID,
		"target_id":   e.TargetID,
	}
}

// NewFollowEvent creates a follow graph event aggregated on the follower.
func NewFollowEvent(t EventType, followerID, targetID string) FollowEvent {
	return FollowEvent{
		BaseEvent:  NewBaseEvent(t, followerID),
		FollowerID: followerID,
		TargetID:   targetID,
	}
}

// FollowRequestEvent is emitted for follow request lifecycle changes.
type FollowRequestEvent struct {
	BaseEvent
	RequestID   string `json:"request_id"`
	RequesterID string `json:"requester_id"`
	TargetID    string `json:"target_id"`
	Status      string `json:"status"`
}

// Payload implements Event.
func (e FollowRequestEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"request_id":   e.RequestID,
		"requester_id": e.RequesterID,
		"target_id":    e.TargetID,
		"status":       e.Status,
	}
}

// NewFollowRequestEvent creates a request lifecycle event aggregated on the request.
func NewFollowRequestEvent(t EventType, requestID, requesterID, targetID, status string) FollowRequestEvent {
	return FollowRequestEvent{
		BaseEvent:   NewBaseEvent(t, requestID),
		RequestID:   requestID,
		RequesterID: requesterID,
		TargetID:    targetID,
		Status:      status,
	}
}

// PhlockEvent is emitted for phlock membership changes.
type PhlockEvent struct {
	BaseEvent
	OwnerID  string `json:"owner_id"`
	MemberID string `json:"member_id,omitempty"`
	Position int    `json:"position,omitempty"`
	SwapID   string `json:"swap_id,omitempty"`
}

// Payload implements Event.
func (e PhlockEvent) Payload() map[string]interface{} {
	p := map[string]interface{}{
		"owner_id": e.OwnerID,
	}
	if e.MemberID != "" {
		p["member_id"] = e.MemberID
	}
	if e.Position != 0 {
		p["position"] = e.Position
	}
	if e.SwapID != "" {
		p["swap_id"] = e.SwapID
	}
	return p
}

// NewPhlockEvent creates a phlock event aggregated on the owner.
func NewPhlockEvent(t EventType, ownerID string) PhlockEvent {
	return PhlockEvent{
		BaseEvent: NewBaseEvent(t, ownerID),
		OwnerID:   ownerID,
	}
}

// EventHandler processes a single event.
type EventHandler interface {
	// Handle processes the event. Errors are logged by the bus, never
	// propagated to the publisher.
	Handle(event Event) error

	// Name identifies the handler in logs.
	Name() string
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc struct {
	HandlerName string
	Fn          func(event Event) error
}

// Handle implements EventHandler.
func (f EventHandlerFunc) Handle(event Event) error { return f.Fn(event) }

// Name implements EventHandler.
func (f EventHandlerFunc) Name() string { return f.HandlerName }

// EventPublisher publishes domain events after the primary transaction
// commits. Implementations must never block the caller on handler work.
type EventPublisher interface {
	Publish(event Event) error
}

// NopPublisher discards events; used in tests and tools.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
