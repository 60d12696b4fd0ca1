// Package eventstore persists the append-only event log in Postgres.
package eventstore

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tasklist/engine/internal/contracts"
	"github.com/tasklist/engine/internal/domain"
)

const createEventsTableSQL = `
CREATE TABLE IF NOT EXISTS domain_events (
  seq bigserial,
  event_id text PRIMARY KEY,
  command_id text NOT NULL DEFAULT '',
  entity_id text NOT NULL,
  correlation_id text NOT NULL DEFAULT '',
  kind text NOT NULL,
  payload jsonb NOT NULL DEFAULT '{}'::jsonb,
  occurred_at timestamptz NOT NULL,
  inserted_at timestamptz NOT NULL DEFAULT now()
)`

const createEventsEntityIndexSQL = `
CREATE INDEX IF NOT EXISTS domain_events_entity_seq
ON domain_events (entity_id, seq)`

const createEventsCommandIndexSQL = `
CREATE INDEX IF NOT EXISTS domain_events_command
ON domain_events (command_id)`

const insertEventSQL = `
INSERT INTO domain_events (
  event_id, command_id, entity_id, correlation_id, kind, payload, occurred_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (event_id) DO NOTHING
`

const selectEntityEventsSQL = `
SELECT event_id, command_id, entity_id, correlation_id, kind, payload, occurred_at
FROM domain_events
WHERE entity_id = $1
ORDER BY seq
`

const selectCommandAppliedSQL = `
SELECT 1
FROM domain_events
WHERE command_id = $1
LIMIT 1
`

const selectCommandEventsSQL = `
SELECT event_id, command_id, entity_id, correlation_id, kind, payload, occurred_at
FROM domain_events
WHERE command_id = $1
ORDER BY seq
`

type Store struct {
	Pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.Pool.Exec(ctx, createEventsTableSQL); err != nil {
		return err
	}
	if _, err := s.Pool.Exec(ctx, createEventsEntityIndexSQL); err != nil {
		return err
	}
	if _, err := s.Pool.Exec(ctx, createEventsCommandIndexSQL); err != nil {
		return err
	}
	return nil
}

// Append writes the envelopes produced by one decision. Inserts are keyed by
// event id, so redelivered commands do not duplicate history.
func (s *Store) Append(ctx context.Context, envelopes ...contracts.EventEnvelope) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, env := range envelopes {
		if _, err := tx.Exec(ctx, insertEventSQL,
			env.EventID,
			env.CommandID,
			env.EntityID,
			env.CorrelationID,
			env.Kind,
			env.Payload,
			env.OccurredAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// Replay loads the full history of one entity in append order.
func (s *Store) Replay(ctx context.Context, entityID string) ([]domain.Event, error) {
	envelopes, err := s.selectEnvelopes(ctx, selectEntityEventsSQL, entityID)
	if err != nil {
		return nil, err
	}
	var events []domain.Event
	for _, env := range envelopes {
		evt, err := contracts.DecodeEvent(env)
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	return events, nil
}

// CommandEvents loads the envelopes one command produced, in append order.
// The decision engine uses it to re-announce a command that was committed on
// an earlier delivery.
func (s *Store) CommandEvents(ctx context.Context, commandID string) ([]contracts.EventEnvelope, error) {
	return s.selectEnvelopes(ctx, selectCommandEventsSQL, commandID)
}

func (s *Store) selectEnvelopes(ctx context.Context, sql, arg string) ([]contracts.EventEnvelope, error) {
	rows, err := s.Pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var envelopes []contracts.EventEnvelope
	for rows.Next() {
		var env contracts.EventEnvelope
		if err := rows.Scan(
			&env.EventID,
			&env.CommandID,
			&env.EntityID,
			&env.CorrelationID,
			&env.Kind,
			&env.Payload,
			&env.OccurredAt,
		); err != nil {
			return nil, err
		}
		envelopes = append(envelopes, env)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return envelopes, nil
}

// CommandApplied reports whether any event from the given command has been
// written. The command API uses it for read-your-write polling.
func (s *Store) CommandApplied(ctx context.Context, commandID string) (bool, error) {
	var marker int
	err := s.Pool.QueryRow(ctx, selectCommandAppliedSQL, commandID).Scan(&marker)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
