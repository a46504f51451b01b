package service

import (
	"context"
	"database/sql"
	"errors"
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

const (
	noteRequestCreated      = "Request created"
	noteDestinationProvided = "Destination provided by student"
)

// FeeSchedule prices a request by scope in whole naira.
type FeeSchedule struct {
	WithinNigeriaNGN  int64
	OutsideNigeriaNGN int64
	Currency          string
}

// AmountNGN returns the fee for scope.
func (f FeeSchedule) AmountNGN(scope models.RequestScope) (int64, error) {
	var amount int64
	switch scope {
	case models.ScopeWithinNigeria:
		amount = f.WithinNigeriaNGN
	case models.ScopeOutsideNigeria:
		amount = f.OutsideNigeriaNGN
	default:
		return 0, appErrors.Clone(appErrors.ErrValidation, "unknown request scope")
	}
	if amount <= 0 {
		return 0, appErrors.Clone(appErrors.ErrInternal, "fee schedule not configured")
	}
	return amount, nil
}

// CurrencyCode defaults to NGN.
func (f FeeSchedule) CurrencyCode() string {
	if f.Currency == "" {
		return "NGN"
	}
	return strings.ToUpper(f.Currency)
}

// KoboToNGN converts a stored minor-unit amount back to whole naira.
func KoboToNGN(kobo int64) int64 {
	return kobo / 100
}

type requestStudentLookup interface {
	FindByMatric(ctx context.Context, matric string) (*models.Student, error)
}

type requestRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, req *models.TranscriptRequest) error
	FindOwned(ctx context.Context, matric, id string) (*models.TranscriptRequest, error)
	LockOwned(ctx context.Context, exec sqlx.ExtContext, matric, id string) (*models.TranscriptRequest, error)
	ListByMatric(ctx context.Context, matric string) ([]models.TranscriptRequest, error)
}

type destinationRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, dest *models.Destination) error
	Latest(ctx context.Context, exec sqlx.ExtContext, requestID string) (*models.Destination, error)
}

type statusEventReader interface {
	Append(ctx context.Context, exec sqlx.ExtContext, event *models.StatusEvent) error
	ListByRequest(ctx context.Context, requestID string) ([]models.StatusEvent, error)
}

// RequestService implements the student side of the request lifecycle.
type RequestService struct {
	students     requestStudentLookup
	requests     requestRepository
	destinations destinationRepository
	events       statusEventReader
	lifecycle    *Lifecycle
	fees         FeeSchedule
	tx           txProvider
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewRequestService constructs a RequestService.
func NewRequestService(students requestStudentLookup, requests requestRepository, destinations destinationRepository, statusEvents statusEventReader, lifecycle *Lifecycle, fees FeeSchedule, tx txProvider, validate *validator.Validate, logger *zap.Logger) *RequestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequestService{
		students:     students,
		requests:     requests,
		destinations: destinations,
		events:       statusEvents,
		lifecycle:    lifecycle,
		fees:         fees,
		tx:           tx,
		validator:    validate,
		logger:       logger,
	}
}

// Create opens a request in PAYMENT_PENDING with its fee fixed from the schedule.
func (s *RequestService) Create(ctx context.Context, matric string, payload dto.CreateRequestPayload) (*dto.CreateRequestResponse, error) {
	payload.RequestEmail = strings.TrimSpace(payload.RequestEmail)
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}
	amountNGN, err := s.fees.AmountNGN(payload.Scope)
	if err != nil {
		return nil, err
	}

	student, err := s.students.FindByMatric(ctx, models.NormalizeMatric(matric))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	req := &models.TranscriptRequest{
		StudentID:    student.ID,
		Scope:        payload.Scope,
		RequestEmail: payload.RequestEmail,
		Status:       models.RequestStatusPaymentPending,
		AmountKobo:   amountNGN * 100,
		Currency:     s.fees.CurrencyCode(),
	}

	note := noteRequestCreated
	err = inTx(ctx, s.tx, "failed to commit request", func(tx *sqlx.Tx) error {
		if err := s.requests.Create(ctx, tx, req); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
		}
		if err := s.events.Append(ctx, tx, &models.StatusEvent{RequestID: req.ID, Status: req.Status, Note: &note}); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record status event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.lifecycle.Publish(ctx, &events.StatusChanged{
		RequestID:  req.ID,
		MatricNo:   student.MatricNo,
		ToStatus:   string(req.Status),
		Note:       note,
		Source:     "student",
		OccurredAt: req.CreatedAt,
	})

	return &dto.CreateRequestResponse{
		RequestID:  req.ID,
		Scope:      req.Scope,
		Status:     req.Status,
		AmountNGN:  amountNGN,
		AmountKobo: req.AmountKobo,
		Currency:   req.Currency,
	}, nil
}

// Get returns an owned request with its latest destination.
func (s *RequestService) Get(ctx context.Context, matric, id string) (*dto.RequestDetail, error) {
	req, err := s.findOwned(ctx, matric, id)
	if err != nil {
		return nil, err
	}
	dest, err := s.latest(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	return &dto.RequestDetail{TranscriptRequest: *req, AmountNGN: KoboToNGN(req.AmountKobo), Destination: dest}, nil
}

// ListMine returns the caller's requests, newest first.
func (s *RequestService) ListMine(ctx context.Context, matric string) ([]models.TranscriptRequest, error) {
	items, err := s.requests.ListByMatric(ctx, models.NormalizeMatric(matric))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	if items == nil {
		items = []models.TranscriptRequest{}
	}
	return items, nil
}

// Events returns the status feed of an owned request, oldest first.
func (s *RequestService) Events(ctx context.Context, matric, id string) ([]dto.StatusEventItem, error) {
	req, err := s.findOwned(ctx, matric, id)
	if err != nil {
		return nil, err
	}
	items, err := s.events.ListByRequest(ctx, req.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list status events")
	}
	feed := make([]dto.StatusEventItem, 0, len(items))
	for _, item := range items {
		feed = append(feed, dto.StatusEventItem{Status: item.Status, Note: item.Note, CreatedAt: item.CreatedAt})
	}
	return feed, nil
}

// LatestDestination returns the authoritative destination or nil when none was submitted.
func (s *RequestService) LatestDestination(ctx context.Context, matric, id string) (*models.Destination, error) {
	req, err := s.findOwned(ctx, matric, id)
	if err != nil {
		return nil, err
	}
	return s.latest(ctx, req.ID)
}

// SubmitDestination records a delivery address. The first submission moves a PAID request to SUBMITTED;
// later submissions supersede earlier ones without another transition.
func (s *RequestService) SubmitDestination(ctx context.Context, matric, id string, payload dto.DestinationPayload) (*models.Destination, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid destination payload")
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
	}
	matric = models.NormalizeMatric(matric)

	var (
		latest *models.Destination
		change *events.StatusChanged
	)
	err := inTx(ctx, s.tx, "failed to commit destination", func(tx *sqlx.Tx) error {
		req, err := s.requests.LockOwned(ctx, tx, matric, id)
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock request")
		}
		if !req.Status.AcceptsDestination() {
			return appErrors.Clone(appErrors.ErrInvalidState, "destination can only be submitted after payment")
		}
		if req.Scope == models.ScopeWithinNigeria && payload.Country != models.NigeriaCountry {
			return appErrors.Clone(appErrors.ErrValidation, "destination country must be Nigeria for WITHIN_NG requests")
		}

		dest := &models.Destination{
			RequestID:       req.ID,
			InstitutionName: payload.InstitutionName,
			Country:         payload.Country,
			AddressLine1:    payload.AddressLine1,
			AddressLine2:    payload.AddressLine2,
			City:            payload.City,
			StateRegion:     payload.StateRegion,
			PostalCode:      payload.PostalCode,
			EmailRecipient:  payload.EmailRecipient,
		}
		if err := s.destinations.Create(ctx, tx, dest); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save destination")
		}

		// Only the first destination advances the request.
		if req.Status == models.RequestStatusPaid {
			change, err = s.lifecycle.Transition(ctx, tx, req, models.RequestStatusSubmitted, noteDestinationProvided)
			if err != nil {
				return err
			}
			change.MatricNo = matric
			change.Source = "student"
		}

		latest, err = s.destinations.Latest(ctx, tx, req.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load destination")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.lifecycle.Publish(ctx, change)
	return latest, nil
}

func (s *RequestService) findOwned(ctx context.Context, matric, id string) (*models.TranscriptRequest, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
	}
	req, err := s.requests.FindOwned(ctx, models.NormalizeMatric(matric), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	return req, nil
}

func (s *RequestService) latest(ctx context.Context, requestID string) (*models.Destination, error) {
	dest, err := s.destinations.Latest(ctx, nil, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load destination")
	}
	return dest, nil
}
