package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	id "visitledger/pkg/domain"
	audit "visitledger/pkg/platform/audit"
	txcontext "visitledger/pkg/platform/tx"
)

// Store persists ledger events to the ledger_events table. Inserts are
// idempotent on the event ID so a retried emit never duplicates a row.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL event sink.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Emit(ctx context.Context, event audit.Event) error {
	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("marshal event details: %w", err)
	}
	query := `
		INSERT INTO ledger_events (id, action, actor, subject, occurred_at, details)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, query,
		event.ID,
		string(event.Action),
		event.Actor.Lower(),
		event.Subject.Lower(),
		event.Timestamp,
		details,
	)
	if err != nil {
		return fmt.Errorf("insert ledger event: %w", err)
	}
	return nil
}

// ListBySubject returns events for a subject, oldest first.
func (s *Store) ListBySubject(ctx context.Context, subject id.Address) ([]audit.Event, error) {
	query := `
		SELECT id, action, actor, subject, occurred_at, details
		FROM ledger_events
		WHERE subject = $1
		ORDER BY occurred_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, subject.Lower())
	if err != nil {
		return nil, fmt.Errorf("query ledger events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			event          audit.Event
			eventID        uuid.UUID
			action         string
			actor, subj    string
			detailsPayload []byte
		)
		if err := rows.Scan(&eventID, &action, &actor, &subj, &event.Timestamp, &detailsPayload); err != nil {
			return nil, fmt.Errorf("scan ledger event: %w", err)
		}
		event.ID = eventID
		event.Action = audit.Action(action)
		if event.Actor, err = id.ParseAddress(actor); err != nil {
			return nil, fmt.Errorf("parse event actor: %w", err)
		}
		if event.Subject, err = id.ParseAddress(subj); err != nil {
			return nil, fmt.Errorf("parse event subject: %w", err)
		}
		if len(detailsPayload) > 0 {
			if err := json.Unmarshal(detailsPayload, &event.Details); err != nil {
				return nil, fmt.Errorf("unmarshal event details: %w", err)
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger events: %w", err)
	}
	return events, nil
}
