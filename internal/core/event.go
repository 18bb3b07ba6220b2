package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/agentplane/internal/db"
	"github.com/edvin/agentplane/internal/metrics"
	"github.com/edvin/agentplane/internal/model"
	"github.com/edvin/agentplane/internal/platform"
)

const (
	DefaultEventLimit = 50
	MaxEventLimit     = 200
)

// EventPublisher delivers committed events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, events ...model.Event) error
}

// EventService records audit events inside the caller's transaction and
// publishes them once that transaction has committed.
type EventService struct {
	store     Store
	publisher EventPublisher
	now       func() time.Time
}

func NewEventService(store Store, publisher EventPublisher, now func() time.Time) *EventService {
	if now == nil {
		now = time.Now
	}
	return &EventService{store: store, publisher: publisher, now: now}
}

// Record appends one event using q, which must be the transaction of the
// mutation being audited. Events are never updated or deleted.
func (s *EventService) Record(ctx context.Context, q db.Querier, p Principal, eventType string, payload any) (model.Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return model.Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	actorType, actorID := p.Actor()
	ev := model.Event{
		ID:         platform.NewID(),
		TenantID:   p.TenantID,
		EventType:  eventType,
		ActorType:  actorType,
		ActorID:    actorID,
		Payload:    body,
		OccurredAt: s.now().UTC(),
	}

	_, err = q.Exec(ctx,
		`INSERT INTO events (event_id, tenant_id, event_type, actor_type, actor_id, payload, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.ID, ev.TenantID, ev.EventType, ev.ActorType, ev.ActorID, ev.Payload, ev.OccurredAt,
	)
	if err != nil {
		return model.Event{}, fmt.Errorf("record %s event: %w", eventType, err)
	}
	return ev, nil
}

// Publish hands committed events to the publisher. Failures are logged and
// counted; the audit row remains the source of truth.
func (s *EventService) Publish(ctx context.Context, events ...model.Event) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		metrics.PublishFailures.Add(float64(len(events)))
		zerolog.Ctx(ctx).Warn().Err(err).
			Str("event_type", events[0].EventType).
			Int("events", len(events)).
			Msg("publish events")
	}
}

type EventFilter struct {
	EventType string
	Limit     int
}

// List returns the tenant's events, newest first.
func (s *EventService) List(ctx context.Context, p Principal, filter EventFilter) ([]model.Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultEventLimit
	}
	if limit > MaxEventLimit {
		limit = MaxEventLimit
	}

	query := `SELECT event_id, tenant_id, event_type, actor_type, actor_id, payload, occurred_at
		 FROM events WHERE tenant_id = $1`
	args := []any{p.TenantID}
	if filter.EventType != "" {
		query += ` AND event_type = $2`
		args = append(args, filter.EventType)
	}
	query += fmt.Sprintf(` ORDER BY occurred_at DESC, event_id DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	events := []model.Event{}
	err := s.store.ReadInTenant(ctx, p.TenantID, func(q db.Querier) error {
		rows, err := q.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("list events: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var ev model.Event
			if err := rows.Scan(&ev.ID, &ev.TenantID, &ev.EventType, &ev.ActorType, &ev.ActorID, &ev.Payload, &ev.OccurredAt); err != nil {
				return fmt.Errorf("scan event: %w", err)
			}
			events = append(events, ev)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate events: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}
