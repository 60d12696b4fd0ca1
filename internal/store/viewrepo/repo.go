// Package viewrepo persists denormalized view documents in Postgres.
package viewrepo

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrViewNotFound = errors.New("view not found")

// View kinds stored in the repository.
const (
	KindTaskList      = "task-list"
	KindLabelledTasks = "labelled-tasks"
	KindTaskItem      = "task-item"
)

// Well-known list view ids.
const (
	ViewActiveTasks = "active"
	ViewAllTasks    = "all"
	ViewDraftTasks  = "drafts"
)

const createViewsTableSQL = `
CREATE TABLE IF NOT EXISTS view_documents (
  view_id text PRIMARY KEY,
  kind text NOT NULL,
  body jsonb NOT NULL,
  last_event_seq bigint NOT NULL DEFAULT 0,
  updated_at timestamptz NOT NULL DEFAULT now()
)`

const selectViewSQL = `
SELECT body, last_event_seq
FROM view_documents
WHERE view_id = $1
`

// The GREATEST guard keeps a redelivered older event from rolling a view
// back; the body still updates so folds must be idempotent.
const upsertViewSQL = `
INSERT INTO view_documents (view_id, kind, body, last_event_seq, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (view_id) DO UPDATE
SET body = EXCLUDED.body,
    kind = EXCLUDED.kind,
    last_event_seq = GREATEST(view_documents.last_event_seq, EXCLUDED.last_event_seq),
    updated_at = now()
WHERE view_documents.last_event_seq <= EXCLUDED.last_event_seq
`

type Repository struct {
	Pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{Pool: pool}
}

func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.Pool.Exec(ctx, createViewsTableSQL)
	return err
}

// Get loads a view document into target and returns the sequence of the last
// event folded into it. A missing view returns ErrViewNotFound.
func (r *Repository) Get(ctx context.Context, viewID string, target any) (uint64, error) {
	var body []byte
	var seq int64
	err := r.Pool.QueryRow(ctx, selectViewSQL, viewID).Scan(&body, &seq)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrViewNotFound
		}
		return 0, err
	}
	if err := json.Unmarshal(body, target); err != nil {
		return 0, err
	}
	return uint64(seq), nil
}

// Put stores a view document, recording the sequence of the event that
// produced it. Writes carrying an older sequence are dropped.
func (r *Repository) Put(ctx context.Context, viewID, kind string, doc any, eventSeq uint64) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = r.Pool.Exec(ctx, upsertViewSQL, viewID, kind, body, int64(eventSeq))
	return err
}
