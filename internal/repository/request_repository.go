package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/transcript-api/internal/models"
)

const requestColumns = `r.id, r.student_id, r.scope, r.request_email, r.status, r.amount_kobo, r.currency, r.payment_reference, r.created_at, r.updated_at`

// linkable restricts candidates to requests that may accept the given payment reference.
const linkable = `r.status IN ('PAYMENT_PENDING', 'PAID') AND (r.payment_reference IS NULL OR r.payment_reference = $2)`

// RequestRepository persists transcript requests.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs a request repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

func (r *RequestRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a new request.
func (r *RequestRepository) Create(ctx context.Context, exec sqlx.ExtContext, req *models.TranscriptRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now

	const query = `
INSERT INTO transcript_requests (id, student_id, scope, request_email, status, amount_kobo, currency, payment_reference, created_at, updated_at)
VALUES (:id, :student_id, :scope, :request_email, :status, :amount_kobo, :currency, :payment_reference, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, req); err != nil {
		return fmt.Errorf("create transcript request: %w", err)
	}
	return nil
}

// FindOwned returns a request only when it belongs to the given matriculation number.
func (r *RequestRepository) FindOwned(ctx context.Context, matric, id string) (*models.TranscriptRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM transcript_requests r
JOIN students s ON s.id = r.student_id
WHERE r.id = $1 AND s.matric_no = $2`
	var req models.TranscriptRequest
	if err := r.db.GetContext(ctx, &req, query, id, matric); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find owned request: %w", err)
	}
	return &req, nil
}

// LockOwned is FindOwned with a row lock, for use inside a transaction.
func (r *RequestRepository) LockOwned(ctx context.Context, exec sqlx.ExtContext, matric, id string) (*models.TranscriptRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM transcript_requests r
JOIN students s ON s.id = r.student_id
WHERE r.id = $1 AND s.matric_no = $2
FOR UPDATE OF r`
	var req models.TranscriptRequest
	if err := sqlx.GetContext(ctx, r.exec(exec), &req, query, id, matric); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock owned request: %w", err)
	}
	return &req, nil
}

// LockByID locks a request regardless of owner. Staff paths only.
func (r *RequestRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.TranscriptRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM transcript_requests r WHERE r.id = $1 FOR UPDATE`
	var req models.TranscriptRequest
	if err := sqlx.GetContext(ctx, r.exec(exec), &req, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock request: %w", err)
	}
	return &req, nil
}

// FindByPaymentReference returns the request already linked to a payment.
func (r *RequestRepository) FindByPaymentReference(ctx context.Context, exec sqlx.ExtContext, reference string) (*models.TranscriptRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM transcript_requests r WHERE r.payment_reference = $1 LIMIT 1`
	var req models.TranscriptRequest
	if err := sqlx.GetContext(ctx, r.exec(exec), &req, query, reference); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find request by payment reference: %w", err)
	}
	return &req, nil
}

// LockLinkableByID locks the request named at initiation if it can still take the payment.
func (r *RequestRepository) LockLinkableByID(ctx context.Context, exec sqlx.ExtContext, id, reference, studentID string) (*models.TranscriptRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM transcript_requests r
WHERE r.id = $1 AND ` + linkable + ` AND r.student_id = $3
FOR UPDATE`
	var req models.TranscriptRequest
	if err := sqlx.GetContext(ctx, r.exec(exec), &req, query, id, reference, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock linkable request: %w", err)
	}
	return &req, nil
}

// LockLatestLinkable locks the student's most recently created request that can take the payment.
// Requests priced above amountKobo or in another currency are never candidates.
func (r *RequestRepository) LockLatestLinkable(ctx context.Context, exec sqlx.ExtContext, studentID, reference string, amountKobo int64, currency string) (*models.TranscriptRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM transcript_requests r
WHERE r.student_id = $1 AND ` + linkable + `
AND r.amount_kobo <= $3 AND UPPER(r.currency) = UPPER($4)
ORDER BY r.created_at DESC, r.id DESC
LIMIT 1
FOR UPDATE`
	var req models.TranscriptRequest
	if err := sqlx.GetContext(ctx, r.exec(exec), &req, query, studentID, reference, amountKobo, currency); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock latest linkable request: %w", err)
	}
	return &req, nil
}

// UpdateStatus moves a request from one status to another. It reports false
// when the row was not in the expected status.
func (r *RequestRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, from, to models.RequestStatus) (bool, error) {
	const query = `UPDATE transcript_requests SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	result, err := r.exec(exec).ExecContext(ctx, query, id, from, to, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("update request status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("request status rows affected: %w", err)
	}
	return affected == 1, nil
}

// LinkPayment records the payment reference on a request that has none, or already has this one.
func (r *RequestRepository) LinkPayment(ctx context.Context, exec sqlx.ExtContext, id, reference string) (bool, error) {
	const query = `UPDATE transcript_requests SET payment_reference = $2, updated_at = $3
WHERE id = $1 AND (payment_reference IS NULL OR payment_reference = $2)`
	result, err := r.exec(exec).ExecContext(ctx, query, id, reference, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return false, ErrDuplicate
		}
		return false, fmt.Errorf("link payment to request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("link payment rows affected: %w", err)
	}
	return affected == 1, nil
}

// ListByMatric returns a student's requests, newest first.
func (r *RequestRepository) ListByMatric(ctx context.Context, matric string) ([]models.TranscriptRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM transcript_requests r
JOIN students s ON s.id = r.student_id
WHERE s.matric_no = $1
ORDER BY r.created_at DESC, r.id DESC`
	var items []models.TranscriptRequest
	if err := r.db.SelectContext(ctx, &items, query, matric); err != nil {
		return nil, fmt.Errorf("list requests by matric: %w", err)
	}
	return items, nil
}

// ListForStaff returns a filtered page of requests with student and destination context.
func (r *RequestRepository) ListForStaff(ctx context.Context, filter models.TranscriptRequestFilter) ([]models.StaffRequestRow, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("r.status = $%d", len(args)))
	}
	if filter.Scope != "" {
		args = append(args, filter.Scope)
		conditions = append(conditions, fmt.Sprintf("r.scope = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.matric_no) LIKE $%d OR LOWER(s.full_name) LIKE $%d)", len(args), len(args)))
	}

	where := " WHERE 1=1"
	if len(conditions) > 0 {
		where += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 500 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	query := `SELECT ` + requestColumns + `, s.matric_no, s.full_name, s.department,
d.institution_name, d.country AS destination_country
FROM transcript_requests r
JOIN students s ON s.id = r.student_id
LEFT JOIN LATERAL (
	SELECT institution_name, country FROM destinations
	WHERE request_id = r.id
	ORDER BY created_at DESC, id DESC
	LIMIT 1
) d ON TRUE` + where + fmt.Sprintf(" ORDER BY r.created_at DESC LIMIT %d OFFSET %d", pageSize, offset)

	var rows []models.StaffRequestRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list requests for staff: %w", err)
	}

	countQuery := `SELECT COUNT(*) FROM transcript_requests r JOIN students s ON s.id = r.student_id` + where
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count requests for staff: %w", err)
	}
	return rows, total, nil
}
