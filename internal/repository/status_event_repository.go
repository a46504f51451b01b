package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/transcript-api/internal/models"
)

// StatusEventRepository is the append-only transition log. It exposes no update or delete.
type StatusEventRepository struct {
	db *sqlx.DB
}

// NewStatusEventRepository constructs the event log repository.
func NewStatusEventRepository(db *sqlx.DB) *StatusEventRepository {
	return &StatusEventRepository{db: db}
}

func (r *StatusEventRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Append writes one event and fills in its id.
func (r *StatusEventRepository) Append(ctx context.Context, exec sqlx.ExtContext, event *models.StatusEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO status_events (request_id, status, note, created_at) VALUES ($1, $2, $3, $4) RETURNING id`
	if err := r.exec(exec).QueryRowxContext(ctx, query, event.RequestID, event.Status, event.Note, event.CreatedAt).Scan(&event.ID); err != nil {
		return fmt.Errorf("append status event: %w", err)
	}
	return nil
}

// ListByRequest returns the events for a request in the order they were recorded.
func (r *StatusEventRepository) ListByRequest(ctx context.Context, requestID string) ([]models.StatusEvent, error) {
	const query = `SELECT id, request_id, status, note, created_at FROM status_events WHERE request_id = $1 ORDER BY created_at ASC, id ASC`
	var events []models.StatusEvent
	if err := r.db.SelectContext(ctx, &events, query, requestID); err != nil {
		return nil, fmt.Errorf("list status events: %w", err)
	}
	return events, nil
}
