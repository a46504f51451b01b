package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/transcript-api/internal/models"
)

const destinationColumns = `id, request_id, institution_name, country, address_line1, address_line2, city, state_region, postal_code, email_recipient, created_at`

// DestinationRepository stores destination history. Rows are never updated.
type DestinationRepository struct {
	db *sqlx.DB
}

// NewDestinationRepository constructs a destination repository.
func NewDestinationRepository(db *sqlx.DB) *DestinationRepository {
	return &DestinationRepository{db: db}
}

func (r *DestinationRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create appends a destination.
func (r *DestinationRepository) Create(ctx context.Context, exec sqlx.ExtContext, dest *models.Destination) error {
	if dest.ID == "" {
		dest.ID = uuid.NewString()
	}
	dest.CreatedAt = time.Now().UTC()

	const query = `
INSERT INTO destinations (id, request_id, institution_name, country, address_line1, address_line2, city, state_region, postal_code, email_recipient, created_at)
VALUES (:id, :request_id, :institution_name, :country, :address_line1, :address_line2, :city, :state_region, :postal_code, :email_recipient, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, dest); err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	return nil
}

// Latest returns the authoritative destination for a request, or sql.ErrNoRows.
func (r *DestinationRepository) Latest(ctx context.Context, exec sqlx.ExtContext, requestID string) (*models.Destination, error) {
	query := `SELECT ` + destinationColumns + ` FROM destinations WHERE request_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`
	var dest models.Destination
	if err := sqlx.GetContext(ctx, r.exec(exec), &dest, query, requestID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("latest destination: %w", err)
	}
	return &dest, nil
}
