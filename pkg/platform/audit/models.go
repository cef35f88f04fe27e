package audit

import (
	"context"
	"time"

	id "esgledger/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance for the
	// disclosure record: rollovers, gap-status transitions, rule changes.
	// These require tamper-proof storage and long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers events useful for operational visibility.
	// Examples: rollover previews, failed rollovers rolled back before commit.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// ActorID is the directory user who performed the action.
	ActorID     id.UserID
	Action      string
	EntityType  string
	EntityID    string
	PeriodID    string
	OperationID string
	Reason      string
	// Details carries action-specific counts and states, flattened to strings
	// so every sink can store them without schema changes.
	Details map[string]string
}

type AuditEvent string

const (
	// Rollover events
	EventRolloverCompleted AuditEvent = "rollover_completed"
	EventRolloverFailed    AuditEvent = "rollover_failed"
	EventRolloverPreviewed AuditEvent = "rollover_previewed"

	// Lifecycle events
	EventGapStatusTransitioned AuditEvent = "gap_status_transitioned"

	// Registry events
	EventRolloverRulePublished AuditEvent = "rollover_rule_published"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventRolloverCompleted:     CategoryCompliance,
	EventGapStatusTransitioned: CategoryCompliance,
	EventRolloverRulePublished: CategoryCompliance,

	EventRolloverFailed:    CategoryOperations,
	EventRolloverPreviewed: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// ComplianceEvent captures actions that must be persisted before the
// surrounding operation is allowed to commit.
type ComplianceEvent struct {
	Timestamp   time.Time
	ActorID     id.UserID
	Action      AuditEvent
	EntityType  string
	EntityID    string
	PeriodID    string
	OperationID string
	Reason      string
	Details     map[string]string
}

// Category returns CategoryCompliance (always).
func (e ComplianceEvent) Category() EventCategory { return CategoryCompliance }

// ToEvent converts to the storage Event shape.
func (e ComplianceEvent) ToEvent() Event {
	return Event{
		Category:    CategoryCompliance,
		Timestamp:   e.Timestamp,
		ActorID:     e.ActorID,
		Action:      string(e.Action),
		EntityType:  e.EntityType,
		EntityID:    e.EntityID,
		PeriodID:    e.PeriodID,
		OperationID: e.OperationID,
		Reason:      e.Reason,
		Details:     e.Details,
	}
}

// Store is the append-only sink for audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Reader lists persisted audit events.
type Reader interface {
	ListByEntity(ctx context.Context, entityType, entityID string) ([]Event, error)
	ListByOperation(ctx context.Context, operationID string) ([]Event, error)
}
