package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/transcript-api/internal/dto"
	"github.com/noah-isme/transcript-api/internal/models"
	appErrors "github.com/noah-isme/transcript-api/pkg/errors"
	"github.com/noah-isme/transcript-api/pkg/events"
	"github.com/noah-isme/transcript-api/pkg/jobs"
	"github.com/noah-isme/transcript-api/pkg/paystack"
)

const (
	referencePrefix = "TRX_"
	gatewayProvider = "paystack"
)

// Confirmation outcomes used as metric labels.
const (
	outcomeConfirmed        = "confirmed"
	outcomeAlreadyConfirmed = "already_confirmed"
	outcomeFailed           = "failed"
	outcomeError            = "error"
)

type paymentGateway interface {
	Initialize(ctx context.Context, req paystack.InitializeRequest) (*paystack.InitializeResponse, []byte, error)
	Verify(ctx context.Context, reference string) (*paystack.VerifyResponse, []byte, error)
	VerifySignature(body []byte, signature string) bool
}

type paymentRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, payment *models.Payment) error
	FindByReference(ctx context.Context, reference string) (*models.Payment, error)
	LockByReference(ctx context.Context, exec sqlx.ExtContext, reference string) (*models.Payment, error)
	FindOwnedByReference(ctx context.Context, matric, reference string) (*models.Payment, error)
	SaveInitPayload(ctx context.Context, id string, raw []byte) error
	MarkVerified(ctx context.Context, exec sqlx.ExtContext, id string, status models.PaymentStatus, paidAt *time.Time, raw []byte) (bool, error)
	ListByMatric(ctx context.Context, matric string) ([]models.Payment, error)
}

type paymentStudentLookup interface {
	requestStudentLookup
	MatricByID(ctx context.Context, id string) (string, error)
}

type paymentRequestLookup interface {
	FindOwned(ctx context.Context, matric, id string) (*models.TranscriptRequest, error)
}

type gatewayEventRepository interface {
	Create(ctx context.Context, event *models.GatewayEvent) error
}

type webhookDispatcher interface {
	Enqueue(job jobs.Job) error
}

// PaymentConfig carries gateway settings the service needs per call.
type PaymentConfig struct {
	CallbackURL string
}

// PaymentService starts gateway checkouts and reconciles their outcome. Callback, requery and
// webhook all funnel into ConfirmPayment.
type PaymentService struct {
	students      paymentStudentLookup
	requests      paymentRequestLookup
	payments      paymentRepository
	gatewayEvents gatewayEventRepository
	gateway       paymentGateway
	lifecycle     *Lifecycle
	tx            txProvider
	dispatcher    webhookDispatcher
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
	config        PaymentConfig
	now           func() time.Time
}

// NewPaymentService constructs a PaymentService.
func NewPaymentService(students paymentStudentLookup, requests paymentRequestLookup, payments paymentRepository, gatewayEvents gatewayEventRepository, gateway paymentGateway, lifecycle *Lifecycle, tx txProvider, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, config PaymentConfig) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{
		students:      students,
		requests:      requests,
		payments:      payments,
		gatewayEvents: gatewayEvents,
		gateway:       gateway,
		lifecycle:     lifecycle,
		tx:            tx,
		metrics:       metrics,
		validator:     validate,
		logger:        logger,
		config:        config,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// SetDispatcher routes verified webhook events through a background queue. Without one they are processed inline.
func (s *PaymentService) SetDispatcher(dispatcher webhookDispatcher) {
	s.dispatcher = dispatcher
}

// NewReference returns a fresh gateway reference such as TRX_3F2A9C01B7D84E55AA.
func NewReference() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return referencePrefix + strings.ToUpper(hex[:18])
}

// Initiate records an INITIATED payment for an owned PAYMENT_PENDING request and opens a gateway checkout.
func (s *PaymentService) Initiate(ctx context.Context, matric string, req dto.InitiatePaymentRequest) (*dto.InitiatePaymentResponse, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	matric = models.NormalizeMatric(matric)

	student, err := s.students.FindByMatric(ctx, matric)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	request, err := s.requests.FindOwned(ctx, matric, req.RequestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if request.Status != models.RequestStatusPaymentPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "request is not awaiting payment")
	}
	if req.AmountNGN != nil && *req.AmountNGN*100 != request.AmountKobo {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount does not match the fee for this request")
	}

	payment := &models.Payment{
		StudentID:  student.ID,
		RequestID:  &request.ID,
		Reference:  NewReference(),
		AmountKobo: request.AmountKobo,
		Currency:   request.Currency,
		Status:     models.PaymentStatusInitiated,
	}
	if err := s.payments.Create(ctx, nil, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}

	start := time.Now()
	res, raw, err := s.gateway.Initialize(ctx, paystack.InitializeRequest{
		Email:       req.Email,
		Amount:      payment.AmountKobo,
		Currency:    payment.Currency,
		Reference:   payment.Reference,
		CallbackURL: s.config.CallbackURL,
		Metadata: map[string]string{
			"request_id": request.ID,
			"matric_no":  matric,
		},
	})
	s.metrics.ObserveGatewayCall("initialize", time.Since(start))
	if len(raw) > 0 && json.Valid(raw) {
		if saveErr := s.payments.SaveInitPayload(ctx, payment.ID, raw); saveErr != nil {
			s.logger.Warn("failed to store initialize payload", zap.String("reference", payment.Reference), zap.Error(saveErr))
		}
	}
	if err != nil {
		s.logger.Error("gateway initialize failed", zap.String("reference", payment.Reference), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "payment gateway unavailable")
	}

	return &dto.InitiatePaymentResponse{
		Reference:        payment.Reference,
		AuthorizationURL: res.Data.AuthorizationURL,
		AccessCode:       res.Data.AccessCode,
		AmountKobo:       payment.AmountKobo,
		Currency:         payment.Currency,
	}, nil
}

// Verify reconciles a payment on behalf of its owner (callback redirect or manual requery).
func (s *PaymentService) Verify(ctx context.Context, matric, reference string, source dto.ConfirmationSource) (*dto.PaymentOutcome, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "reference is required")
	}
	if _, err := s.payments.FindOwnedByReference(ctx, models.NormalizeMatric(matric), reference); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	if source != dto.SourceCallback {
		source = dto.SourceRequery
	}
	return s.ConfirmPayment(ctx, reference, source)
}

type gatewayVerdict struct {
	success bool
	paidAt  *time.Time
	raw     []byte
}

// ConfirmPayment is the single reconciliation routine. It is idempotent: repeated calls for a
// confirmed reference re-check the linkage and produce no further transitions.
func (s *PaymentService) ConfirmPayment(ctx context.Context, reference string, source dto.ConfirmationSource) (*dto.PaymentOutcome, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "reference is required")
	}

	payment, err := s.payments.FindByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		s.metrics.RecordConfirmation(string(source), outcomeError)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}

	var verdict *gatewayVerdict
	if payment.Status != models.PaymentStatusSuccess {
		verdict, err = s.requery(ctx, payment)
		if err != nil {
			s.metrics.RecordConfirmation(string(source), outcomeError)
			return nil, err
		}
	}

	outcome, err := s.settle(ctx, reference, verdict, source)
	if err != nil {
		s.metrics.RecordConfirmation(string(source), outcomeError)
		return nil, err
	}

	label := outcomeFailed
	switch {
	case outcome.AlreadyConfirmed:
		label = outcomeAlreadyConfirmed
	case outcome.Confirmed:
		label = outcomeConfirmed
	}
	s.metrics.RecordConfirmation(string(source), label)
	return outcome, nil
}

func (s *PaymentService) requery(ctx context.Context, payment *models.Payment) (*gatewayVerdict, error) {
	start := time.Now()
	res, raw, err := s.gateway.Verify(ctx, payment.Reference)
	s.metrics.ObserveGatewayCall("verify", time.Since(start))
	if err != nil {
		s.logger.Error("gateway verify failed", zap.String("reference", payment.Reference), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "payment gateway unavailable")
	}
	if !json.Valid(raw) {
		raw = nil
	}

	verdict := &gatewayVerdict{raw: raw}
	if !res.Successful() {
		return verdict, nil
	}
	if res.Data.Amount != payment.AmountKobo || !strings.EqualFold(res.Data.Currency, payment.Currency) {
		s.logger.Warn("gateway amount mismatch",
			zap.String("reference", payment.Reference),
			zap.Int64("expected_kobo", payment.AmountKobo),
			zap.Int64("reported_kobo", res.Data.Amount),
			zap.String("expected_currency", payment.Currency),
			zap.String("reported_currency", res.Data.Currency))
		return verdict, nil
	}

	verdict.success = true
	paidAt := s.now()
	if res.Data.PaidAt != nil {
		paidAt = res.Data.PaidAt.UTC()
	}
	verdict.paidAt = &paidAt
	return verdict, nil
}

// settle applies a verdict and links a successful payment inside one transaction.
func (s *PaymentService) settle(ctx context.Context, reference string, verdict *gatewayVerdict, source dto.ConfirmationSource) (*dto.PaymentOutcome, error) {
	var (
		payment          *models.Payment
		outcome          *dto.PaymentOutcome
		change           *events.StatusChanged
		alreadyConfirmed bool
	)
	err := inTx(ctx, s.tx, "failed to commit payment confirmation", func(tx *sqlx.Tx) error {
		var err error
		payment, err = s.payments.LockByReference(ctx, tx, reference)
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock payment")
		}

		alreadyConfirmed = payment.Status == models.PaymentStatusSuccess
		if !alreadyConfirmed && verdict != nil {
			status := models.PaymentStatusFailed
			if verdict.success {
				status = models.PaymentStatusSuccess
			}
			updated, err := s.payments.MarkVerified(ctx, tx, payment.ID, status, verdict.paidAt, verdict.raw)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record gateway verdict")
			}
			if updated {
				payment.Status = status
				payment.PaidAt = verdict.paidAt
			}
		}

		outcome = &dto.PaymentOutcome{
			Reference:        payment.Reference,
			Confirmed:        payment.Status == models.PaymentStatusSuccess,
			Status:           payment.Status,
			RequestID:        payment.RequestID,
			AlreadyConfirmed: alreadyConfirmed,
		}
		if !outcome.Confirmed {
			return nil
		}

		result, err := s.lifecycle.LinkPayment(ctx, tx, payment, confirmationNote(source))
		if err != nil {
			return err
		}
		outcome.RequestID = nil
		if result.Request != nil {
			id := result.Request.ID
			outcome.RequestID = &id
		}
		change = result.Change
		return nil
	})
	if err != nil {
		return nil, err
	}

	if change != nil {
		change.Source = string(source)
		change.MatricNo = s.matricOf(ctx, payment.StudentID)
		s.lifecycle.Publish(ctx, change)
	}
	s.logger.Info("payment reconciled",
		zap.String("reference", payment.Reference),
		zap.String("source", string(source)),
		zap.String("status", string(payment.Status)),
		zap.Bool("already_confirmed", alreadyConfirmed))
	return outcome, nil
}

// matricOf resolves the student for an outgoing event. A lookup failure only
// leaves the field empty.
func (s *PaymentService) matricOf(ctx context.Context, studentID string) string {
	matric, err := s.students.MatricByID(ctx, studentID)
	if err != nil {
		s.logger.Warn("could not resolve matric for status event", zap.String("student_id", studentID), zap.Error(err))
	}
	return matric
}

func confirmationNote(source dto.ConfirmationSource) string {
	return fmt.Sprintf("Payment verified via %s", source)
}

// HandleWebhook authenticates a gateway notification and schedules reconciliation. Only a bad
// signature is reported to the caller; everything after that is acknowledged and logged.
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !s.gateway.VerifySignature(body, signature) {
		s.metrics.RecordWebhook("rejected")
		s.logger.Warn("webhook signature rejected", zap.Int("body_bytes", len(body)))
		return appErrors.Clone(appErrors.ErrInvalidSignature, "invalid webhook signature")
	}

	var evt paystack.Event
	if err := json.Unmarshal(body, &evt); err != nil {
		s.metrics.RecordWebhook("malformed")
		s.logger.Warn("webhook body could not be parsed", zap.Error(err))
		return nil
	}

	reference := strings.TrimSpace(evt.Data.Reference)
	record := &models.GatewayEvent{
		Provider:   gatewayProvider,
		EventType:  evt.Event,
		Reference:  optionalString(reference),
		Payload:    types.JSONText(body),
		ReceivedAt: s.now(),
	}
	if err := s.gatewayEvents.Create(ctx, record); err != nil {
		s.logger.Warn("failed to record gateway event", zap.String("event", evt.Event), zap.String("reference", reference), zap.Error(err))
	}

	if evt.Event != paystack.EventChargeSuccess {
		s.metrics.RecordWebhook("ignored")
		s.logger.Info("webhook event ignored", zap.String("event", evt.Event), zap.String("reference", reference))
		return nil
	}
	if reference == "" {
		s.metrics.RecordWebhook("malformed")
		s.logger.Warn("webhook event without reference", zap.String("event", evt.Event))
		return nil
	}

	s.metrics.RecordWebhook("accepted")
	if s.dispatcher != nil {
		err := s.dispatcher.Enqueue(jobs.Job{ID: reference, Type: evt.Event, Payload: reference, Enqueued: s.now()})
		if err == nil {
			return nil
		}
		s.logger.Warn("webhook queue unavailable, processing inline", zap.String("reference", reference), zap.Error(err))
	}
	if _, err := s.ConfirmPayment(ctx, reference, dto.SourceWebhook); err != nil {
		s.logger.Error("webhook reconciliation failed", zap.String("reference", reference), zap.Error(err))
	}
	return nil
}

// ProcessWebhookJob is the queue handler for verified charge.success events.
func (s *PaymentService) ProcessWebhookJob(ctx context.Context, job jobs.Job) error {
	reference, ok := job.Payload.(string)
	if !ok || strings.TrimSpace(reference) == "" {
		return jobs.Permanent(fmt.Errorf("webhook job %q has no reference", job.ID))
	}
	if _, err := s.ConfirmPayment(ctx, reference, dto.SourceWebhook); err != nil {
		if appErrors.HasCode(err, appErrors.ErrNotFound.Code) || appErrors.HasCode(err, appErrors.ErrValidation.Code) {
			return jobs.Permanent(err)
		}
		return err
	}
	return nil
}

// ListMine returns the caller's payments, newest first.
func (s *PaymentService) ListMine(ctx context.Context, matric string) ([]models.Payment, error) {
	items, err := s.payments.ListByMatric(ctx, models.NormalizeMatric(matric))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	if items == nil {
		items = []models.Payment{}
	}
	return items, nil
}
