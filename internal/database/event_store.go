package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/isdelr/schedpanel/internal/models"
)

// EventStore keeps scheduler events in a SQL table shared by every node of a cluster.
type EventStore struct {
	db     *sql.DB
	driver string
}

// NewEventStore wraps an open connection pool. The schema must have been migrated.
func NewEventStore(db *sql.DB, driver string) *EventStore {
	return &EventStore{db: db, driver: driver}
}

// Append inserts e and returns the id the table assigned to it.
func (s *EventStore) Append(ctx context.Context, e models.Event) (int64, error) {
	var errorsJSON sql.NullString
	if len(e.Errors) > 0 {
		b, err := json.Marshal(e.Errors)
		if err != nil {
			return 0, fmt.Errorf("encode errors: %w", err)
		}
		errorsJSON = sql.NullString{String: string(b), Valid: true}
	}

	query := s.rebind(`
		INSERT INTO scheduler_events (date_ms, scope, event_type, item_key, fire_instance_id, faulted, errors_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)
	var id int64
	err := s.db.QueryRowContext(ctx, query,
		e.Date, int(e.Scope), int(e.EventType), e.ItemKey, e.FireInstanceID, e.Faulted, errorsJSON,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	return id, nil
}

// ListFrom returns events with id >= fromID stamped after cutoff, in ascending id order.
func (s *EventStore) ListFrom(ctx context.Context, fromID int64, cutoff int64) ([]models.Event, error) {
	query := s.rebind(`
		SELECT id, date_ms, scope, event_type, item_key, fire_instance_id, faulted, errors_json
		FROM scheduler_events
		WHERE id >= ? AND date_ms > ?
		ORDER BY id`)
	rows, err := s.db.QueryContext(ctx, query, fromID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var (
			e             models.Event
			scope, evType int
			itemKey, fire sql.NullString
			errorsJSON    sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Date, &scope, &evType, &itemKey, &fire, &e.Faulted, &errorsJSON); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Scope = models.Scope(scope)
		e.EventType = models.EventType(evType)
		e.ItemKey = itemKey.String
		e.FireInstanceID = fire.String
		if errorsJSON.Valid && errorsJSON.String != "" {
			if err := json.Unmarshal([]byte(errorsJSON.String), &e.Errors); err != nil {
				return nil, fmt.Errorf("decode errors of event %d: %w", e.ID, err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// EvictOlderThan deletes events stamped at or before cutoff.
func (s *EventStore) EvictOlderThan(ctx context.Context, cutoff int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM scheduler_events WHERE date_ms <= ?`), cutoff)
	if err != nil {
		return 0, fmt.Errorf("evict events: %w", err)
	}
	return res.RowsAffected()
}

// EvictOverCapacity deletes all but the newest max events by id.
func (s *EventStore) EvictOverCapacity(ctx context.Context, max int) (int64, error) {
	if max <= 0 {
		return 0, fmt.Errorf("evict events: capacity %d must be positive", max)
	}
	// The subquery yields the oldest id still kept, or NULL when max or fewer rows exist.
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM scheduler_events
		WHERE id < (SELECT id FROM scheduler_events ORDER BY id DESC LIMIT 1 OFFSET ?)`), max-1)
	if err != nil {
		return 0, fmt.Errorf("evict events over capacity: %w", err)
	}
	return res.RowsAffected()
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *EventStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
