package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/transcript-api/internal/dto"
	"github.com/noah-isme/transcript-api/internal/models"
	appErrors "github.com/noah-isme/transcript-api/pkg/errors"
	"github.com/noah-isme/transcript-api/pkg/events"
)

type staffRequestRepository interface {
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.TranscriptRequest, error)
	ListForStaff(ctx context.Context, filter models.TranscriptRequestFilter) ([]models.StaffRequestRow, int, error)
}

// StaffService drives the records-office stages of the lifecycle.
type StaffService struct {
	requests  staffRequestRepository
	lifecycle *Lifecycle
	tx        txProvider
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStaffService constructs a StaffService.
func NewStaffService(requests staffRequestRepository, lifecycle *Lifecycle, tx txProvider, validate *validator.Validate, logger *zap.Logger) *StaffService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StaffService{requests: requests, lifecycle: lifecycle, tx: tx, validator: validate, logger: logger}
}

// List returns one page of requests with the total match count.
func (s *StaffService) List(ctx context.Context, filter models.TranscriptRequestFilter) ([]models.StaffRequestRow, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, appErrors.Clone(appErrors.ErrValidation, "unknown status filter")
	}
	if filter.Scope != "" && !filter.Scope.Valid() {
		return nil, 0, appErrors.Clone(appErrors.ErrValidation, "unknown scope filter")
	}
	filter.Search = strings.TrimSpace(filter.Search)

	rows, total, err := s.requests.ListForStaff(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	if rows == nil {
		rows = []models.StaffRequestRow{}
	}
	return rows, total, nil
}

// Transition moves a request to PROCESSING, SENT or CANCELLED on behalf of a staff member.
func (s *StaffService) Transition(ctx context.Context, actorID, requestID string, req dto.TransitionRequest) (*models.TranscriptRequest, error) {
	req.Note = strings.TrimSpace(req.Note)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transition payload")
	}
	if _, err := uuid.Parse(requestID); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
	}
	note := req.Note
	if note == "" {
		note = fmt.Sprintf("Marked %s by records office", req.Status)
	}

	var (
		request *models.TranscriptRequest
		change  *events.StatusChanged
	)
	err := inTx(ctx, s.tx, "failed to commit transition", func(tx *sqlx.Tx) error {
		var err error
		request, err = s.requests.LockByID(ctx, tx, requestID)
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock request")
		}
		change, err = s.lifecycle.Transition(ctx, tx, request, req.Status, note)
		return err
	})
	if err != nil {
		return nil, err
	}
	change.Source = "staff:" + actorID

	s.logger.Info("request transitioned by staff",
		zap.String("request_id", request.ID),
		zap.String("actor_id", actorID),
		zap.String("from", change.FromStatus),
		zap.String("to", change.ToStatus))
	s.lifecycle.Publish(ctx, change)
	return request, nil
}
