package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "esgledger/pkg/domain"
	audit "esgledger/pkg/platform/audit"
	txcontext "esgledger/pkg/platform/tx"
)

// Store implements audit.Store using the transactional outbox pattern.
// Each event is materialized into audit_events for querying and written to the
// outbox table in the same transaction; the relay publishes outbox rows to Kafka.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// outboxPayload is the JSON structure published to Kafka.
type outboxPayload struct {
	ID          string            `json:"id"`
	Category    string            `json:"category"`
	Timestamp   string            `json:"timestamp"`
	ActorID     string            `json:"actor_id,omitempty"`
	Action      string            `json:"action"`
	EntityType  string            `json:"entity_type,omitempty"`
	EntityID    string            `json:"entity_id,omitempty"`
	PeriodID    string            `json:"period_id,omitempty"`
	OperationID string            `json:"operation_id,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	Details     map[string]string `json:"details,omitempty"`
}

// Append writes an audit event. When ctx carries a transaction the write
// commits or rolls back with it.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()
	category := audit.AuditEvent(event.Action).Category()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}

	exec := txcontext.Exec(ctx, s.db)
	_, err = exec.ExecContext(ctx, `
		INSERT INTO audit_events (
			id, category, timestamp, actor_id, action,
			entity_type, entity_id, period_id, operation_id, reason, details
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		eventID,
		string(category),
		event.Timestamp,
		event.ActorID.String(),
		event.Action,
		event.EntityType,
		event.EntityID,
		event.PeriodID,
		event.OperationID,
		event.Reason,
		details,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}

	payload, err := json.Marshal(outboxPayload{
		ID:          eventID.String(),
		Category:    string(category),
		Timestamp:   event.Timestamp.UTC().Format(time.RFC3339Nano),
		ActorID:     event.ActorID.String(),
		Action:      event.Action,
		EntityType:  event.EntityType,
		EntityID:    event.EntityID,
		PeriodID:    event.PeriodID,
		OperationID: event.OperationID,
		Reason:      event.Reason,
		Details:     event.Details,
	})
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	aggregateType := "audit"
	aggregateID := eventID.String()
	if event.OperationID != "" {
		aggregateType = "rollover"
		aggregateID = event.OperationID
	} else if event.EntityID != "" {
		aggregateType = event.EntityType
		aggregateID = event.EntityID
	}

	_, err = exec.ExecContext(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		uuid.New(),
		aggregateType,
		aggregateID,
		event.Action,
		payload,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

const selectEvents = `
	SELECT category, timestamp, actor_id, action, entity_type, entity_id,
	       period_id, operation_id, reason, details
	FROM audit_events
`

// ListByEntity returns events for one entity, oldest first.
func (s *Store) ListByEntity(ctx context.Context, entityType, entityID string) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, selectEvents+`
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY timestamp ASC
	`, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListByOperation returns events recorded under a rollover operation id.
func (s *Store) ListByOperation(ctx context.Context, operationID string) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, selectEvents+`
		WHERE operation_id = $1
		ORDER BY timestamp ASC
	`, operationID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var (
			category string
			actorID  string
			details  []byte
			event    audit.Event
		)
		err := rows.Scan(
			&category,
			&event.Timestamp,
			&actorID,
			&event.Action,
			&event.EntityType,
			&event.EntityID,
			&event.PeriodID,
			&event.OperationID,
			&event.Reason,
			&details,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Category = audit.EventCategory(category)
		event.ActorID = id.UserID(actorID)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &event.Details); err != nil {
				return nil, fmt.Errorf("decode audit details: %w", err)
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
