package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/transcript-api/internal/models"
)

// GatewayEventRepository keeps authenticated webhook bodies.
type GatewayEventRepository struct {
	db *sqlx.DB
}

// NewGatewayEventRepository constructs the repository.
func NewGatewayEventRepository(db *sqlx.DB) *GatewayEventRepository {
	return &GatewayEventRepository{db: db}
}

// Create stores an event.
func (r *GatewayEventRepository) Create(ctx context.Context, event *models.GatewayEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now().UTC()
	}
	const query = `
INSERT INTO gateway_events (id, provider, event_type, reference, payload, received_at)
VALUES (:id, :provider, :event_type, :reference, :payload, :received_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, event); err != nil {
		return fmt.Errorf("create gateway event: %w", err)
	}
	return nil
}
