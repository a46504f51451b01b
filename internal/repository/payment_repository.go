package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/transcript-api/internal/models"
)

const paymentColumns = `p.id, p.student_id, p.request_id, p.reference, p.amount_kobo, p.currency, p.status, p.paid_at, p.raw_init_json, p.raw_verify_json, p.created_at, p.updated_at`

// PaymentRepository persists gateway payments.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs a payment repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts an INITIATED payment before the gateway is contacted.
func (r *PaymentRepository) Create(ctx context.Context, exec sqlx.ExtContext, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.Status == "" {
		payment.Status = models.PaymentStatusInitiated
	}
	now := time.Now().UTC()
	payment.CreatedAt = now
	payment.UpdatedAt = now

	const query = `
INSERT INTO payments (id, student_id, request_id, reference, amount_kobo, currency, status, paid_at, raw_init_json, raw_verify_json, created_at, updated_at)
VALUES (:id, :student_id, :request_id, :reference, :amount_kobo, :currency, :status, :paid_at, :raw_init_json, :raw_verify_json, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, payment); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// FindByReference loads a payment by gateway reference or returns sql.ErrNoRows.
func (r *PaymentRepository) FindByReference(ctx context.Context, reference string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments p WHERE p.reference = $1`
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, reference); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find payment by reference: %w", err)
	}
	return &payment, nil
}

// LockByReference re-reads a payment under a row lock.
func (r *PaymentRepository) LockByReference(ctx context.Context, exec sqlx.ExtContext, reference string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments p WHERE p.reference = $1 FOR UPDATE`
	var payment models.Payment
	if err := sqlx.GetContext(ctx, r.exec(exec), &payment, query, reference); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock payment: %w", err)
	}
	return &payment, nil
}

// FindOwnedByReference returns a payment only when it belongs to the matriculation number.
func (r *PaymentRepository) FindOwnedByReference(ctx context.Context, matric, reference string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments p
JOIN students s ON s.id = p.student_id
WHERE p.reference = $1 AND s.matric_no = $2`
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, reference, matric); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find owned payment: %w", err)
	}
	return &payment, nil
}

// SaveInitPayload stores the gateway's initialize response.
func (r *PaymentRepository) SaveInitPayload(ctx context.Context, id string, raw []byte) error {
	const query = `UPDATE payments SET raw_init_json = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, nullJSON(raw), time.Now().UTC()); err != nil {
		return fmt.Errorf("save payment init payload: %w", err)
	}
	return nil
}

// MarkVerified records the gateway verdict. SUCCESS rows are never rewritten.
func (r *PaymentRepository) MarkVerified(ctx context.Context, exec sqlx.ExtContext, id string, status models.PaymentStatus, paidAt *time.Time, raw []byte) (bool, error) {
	const query = `UPDATE payments SET status = $2, paid_at = $3, raw_verify_json = $4, updated_at = $5
WHERE id = $1 AND status <> 'SUCCESS'`
	result, err := r.exec(exec).ExecContext(ctx, query, id, status, paidAt, nullJSON(raw), time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("mark payment verified: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark payment rows affected: %w", err)
	}
	return affected == 1, nil
}

// SetRequestID records which request a payment ended up linked to.
func (r *PaymentRepository) SetRequestID(ctx context.Context, exec sqlx.ExtContext, id, requestID string) error {
	const query = `UPDATE payments SET request_id = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, requestID, time.Now().UTC()); err != nil {
		return fmt.Errorf("set payment request: %w", err)
	}
	return nil
}

// ListByMatric returns a student's payments, newest first.
func (r *PaymentRepository) ListByMatric(ctx context.Context, matric string) ([]models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments p
JOIN students s ON s.id = p.student_id
WHERE s.matric_no = $1
ORDER BY p.created_at DESC`
	var items []models.Payment
	if err := r.db.SelectContext(ctx, &items, query, matric); err != nil {
		return nil, fmt.Errorf("list payments by matric: %w", err)
	}
	return items, nil
}

func nullJSON(raw []byte) types.NullJSONText {
	if len(raw) == 0 {
		return types.NullJSONText{}
	}
	return types.NullJSONText{JSONText: types.JSONText(raw), Valid: true}
}
