package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/transcript-api/internal/models"
	"github.com/noah-isme/transcript-api/internal/repository"
	appErrors "github.com/noah-isme/transcript-api/pkg/errors"
	"github.com/noah-isme/transcript-api/pkg/events"
)

type lifecycleRequestStore interface {
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, from, to models.RequestStatus) (bool, error)
	LinkPayment(ctx context.Context, exec sqlx.ExtContext, id, reference string) (bool, error)
	FindByPaymentReference(ctx context.Context, exec sqlx.ExtContext, reference string) (*models.TranscriptRequest, error)
	LockLinkableByID(ctx context.Context, exec sqlx.ExtContext, id, reference, studentID string) (*models.TranscriptRequest, error)
	LockLatestLinkable(ctx context.Context, exec sqlx.ExtContext, studentID, reference string, amountKobo int64, currency string) (*models.TranscriptRequest, error)
}

type statusEventStore interface {
	Append(ctx context.Context, exec sqlx.ExtContext, event *models.StatusEvent) error
}

type paymentLinkStore interface {
	SetRequestID(ctx context.Context, exec sqlx.ExtContext, id, requestID string) error
}

// LinkResult describes what LinkPayment did. Request is nil when no request could take the payment.
type LinkResult struct {
	Request *models.TranscriptRequest
	Change  *events.StatusChanged
}

// Lifecycle applies status transitions and payment linkage inside a caller-owned transaction,
// and publishes the resulting events once that transaction has committed.
type Lifecycle struct {
	requests  lifecycleRequestStore
	events    statusEventStore
	payments  paymentLinkStore
	publisher events.Publisher
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewLifecycle constructs a Lifecycle. A nil publisher disables event publishing.
func NewLifecycle(requests lifecycleRequestStore, statusEvents statusEventStore, payments paymentLinkStore, publisher events.Publisher, metrics *MetricsService, logger *zap.Logger) *Lifecycle {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Lifecycle{
		requests:  requests,
		events:    statusEvents,
		payments:  payments,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Transition moves req to the target status with a guarded update and appends a status event.
// req.Status is updated in place on success.
func (l *Lifecycle) Transition(ctx context.Context, exec sqlx.ExtContext, req *models.TranscriptRequest, to models.RequestStatus, note string) (*events.StatusChanged, error) {
	from := req.Status
	if !models.CanTransition(from, to) {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("cannot move request from %s to %s", from, to))
	}

	updated, err := l.requests.UpdateStatus(ctx, exec, req.ID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update request status")
	}
	if !updated {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "request status changed concurrently")
	}

	now := l.now()
	event := &models.StatusEvent{RequestID: req.ID, Status: to, Note: optionalString(note), CreatedAt: now}
	if err := l.events.Append(ctx, exec, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record status event")
	}

	req.Status = to
	req.UpdatedAt = now
	return &events.StatusChanged{
		RequestID:  req.ID,
		FromStatus: string(from),
		ToStatus:   string(to),
		Note:       note,
		OccurredAt: now,
	}, nil
}

// LinkPayment attaches a confirmed payment to exactly one request and moves it to PAID.
// Calling it again for the same payment changes nothing.
func (l *Lifecycle) LinkPayment(ctx context.Context, exec sqlx.ExtContext, payment *models.Payment, note string) (*LinkResult, error) {
	req, err := l.requests.FindByPaymentReference(ctx, exec, payment.Reference)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up linked request")
	}
	if req != nil {
		result := &LinkResult{Request: req}
		if req.Status == models.RequestStatusPaymentPending {
			change, err := l.Transition(ctx, exec, req, models.RequestStatusPaid, note)
			if err != nil {
				return nil, err
			}
			result.Change = change
		}
		if err := l.attachRequest(ctx, exec, payment, req.ID); err != nil {
			return nil, err
		}
		return result, nil
	}

	req, err = l.findLinkable(ctx, exec, payment)
	if err != nil {
		return nil, err
	}
	if req == nil {
		l.logger.Warn("no linkable request for confirmed payment",
			zap.String("reference", payment.Reference),
			zap.String("student_id", payment.StudentID))
		return &LinkResult{}, nil
	}

	linked, err := l.requests.LinkPayment(ctx, exec, req.ID, payment.Reference)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "payment reference already linked to another request")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to link payment")
	}
	if !linked {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "request already carries another payment")
	}
	ref := payment.Reference
	req.PaymentReference = &ref

	result := &LinkResult{Request: req}
	if req.Status == models.RequestStatusPaymentPending {
		change, err := l.Transition(ctx, exec, req, models.RequestStatusPaid, note)
		if err != nil {
			return nil, err
		}
		result.Change = change
	}
	if err := l.attachRequest(ctx, exec, payment, req.ID); err != nil {
		return nil, err
	}
	return result, nil
}

// findLinkable returns the request named at initiation when it can still take the payment.
// Payments without a named request go to the student's newest open request the amount covers.
func (l *Lifecycle) findLinkable(ctx context.Context, exec sqlx.ExtContext, payment *models.Payment) (*models.TranscriptRequest, error) {
	if payment.RequestID != nil && *payment.RequestID != "" {
		req, err := l.requests.LockLinkableByID(ctx, exec, *payment.RequestID, payment.Reference, payment.StudentID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, nil
		case err != nil:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock request")
		}
		return req, nil
	}

	req, err := l.requests.LockLatestLinkable(ctx, exec, payment.StudentID, payment.Reference, payment.AmountKobo, payment.Currency)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock request")
	}
	return req, nil
}

func (l *Lifecycle) attachRequest(ctx context.Context, exec sqlx.ExtContext, payment *models.Payment, requestID string) error {
	if payment.RequestID != nil && *payment.RequestID == requestID {
		return nil
	}
	if err := l.payments.SetRequestID(ctx, exec, payment.ID, requestID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to attach payment to request")
	}
	id := requestID
	payment.RequestID = &id
	return nil
}

// Publish emits committed transitions. Delivery failures are logged and never surface to callers.
func (l *Lifecycle) Publish(ctx context.Context, changes ...*events.StatusChanged) {
	for _, change := range changes {
		if change == nil {
			continue
		}
		if change.FromStatus != "" {
			l.metrics.RecordTransition(change.FromStatus, change.ToStatus)
		}
		if err := l.publisher.PublishStatusChanged(ctx, *change); err != nil {
			l.logger.Warn("failed to publish status change",
				zap.String("request_id", change.RequestID),
				zap.String("to_status", change.ToStatus),
				zap.Error(err))
		}
	}
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
