package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/transcript-api/internal/models"
	"github.com/noah-isme/transcript-api/pkg/events"
	"github.com/noah-isme/transcript-api/pkg/paystack"
)

// memoryStore backs the repository fakes so that requests, payments and events share one view.
type memoryStore struct {
	mu           sync.Mutex
	matricByID   map[string]string
	requests     map[string]*models.TranscriptRequest
	payments     map[string]*models.Payment
	events       []models.StatusEvent
	destinations []models.Destination
	gateway      []models.GatewayEvent
	clock        time.Time
	eventSeq     int64

	appendErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		matricByID: map[string]string{},
		requests:   map[string]*models.TranscriptRequest{},
		payments:   map[string]*models.Payment{},
		clock:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (m *memoryStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memoryStore) addStudent(id, matric string) *models.Student {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matricByID[id] = matric
	return &models.Student{ID: id, MatricNo: matric, Email: "student@example.com", FullName: "Okafor Ada"}
}

func (m *memoryStore) addRequest(studentID string, scope models.RequestScope, status models.RequestStatus) *models.TranscriptRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	fee := int64(500000)
	if scope == models.ScopeOutsideNigeria {
		fee = 2000000
	}
	now := m.tick()
	req := &models.TranscriptRequest{
		ID:           uuid.NewString(),
		StudentID:    studentID,
		Scope:        scope,
		RequestEmail: "student@example.com",
		Status:       status,
		AmountKobo:   fee,
		Currency:     "NGN",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.requests[req.ID] = req
	copied := *req
	return &copied
}

func (m *memoryStore) addPayment(studentID string, requestID *string, amountKobo int64) *models.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.tick()
	p := &models.Payment{
		ID:         uuid.NewString(),
		StudentID:  studentID,
		RequestID:  requestID,
		Reference:  NewReference(),
		AmountKobo: amountKobo,
		Currency:   "NGN",
		Status:     models.PaymentStatusInitiated,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	m.payments[p.Reference] = p
	copied := *p
	return &copied
}

func (m *memoryStore) request(id string) models.TranscriptRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.requests[id]
}

func (m *memoryStore) payment(reference string) models.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.payments[reference]
}

func (m *memoryStore) eventsFor(requestID string, status models.RequestStatus) []models.StatusEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.StatusEvent
	for _, e := range m.events {
		if e.RequestID == requestID && (status == "" || e.Status == status) {
			out = append(out, e)
		}
	}
	return out
}

func (m *memoryStore) requestsOf(studentID string) []*models.TranscriptRequest {
	var out []*models.TranscriptRequest
	for _, r := range m.requests {
		if r.StudentID == studentID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

type fakeRequests struct{ *memoryStore }

func (f fakeRequests) Create(ctx context.Context, exec sqlx.ExtContext, req *models.TranscriptRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := f.tick()
	req.CreatedAt, req.UpdatedAt = now, now
	copied := *req
	f.requests[req.ID] = &copied
	return nil
}

func (f fakeRequests) owned(matric, id string) (*models.TranscriptRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok || f.matricByID[req.StudentID] != matric {
		return nil, sql.ErrNoRows
	}
	copied := *req
	return &copied, nil
}

func (f fakeRequests) FindOwned(ctx context.Context, matric, id string) (*models.TranscriptRequest, error) {
	return f.owned(matric, id)
}

func (f fakeRequests) LockOwned(ctx context.Context, exec sqlx.ExtContext, matric, id string) (*models.TranscriptRequest, error) {
	return f.owned(matric, id)
}

func (f fakeRequests) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.TranscriptRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *req
	return &copied, nil
}

func (f fakeRequests) FindByPaymentReference(ctx context.Context, exec sqlx.ExtContext, reference string) (*models.TranscriptRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, req := range f.requests {
		if req.PaymentReference != nil && *req.PaymentReference == reference {
			copied := *req
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func linkableFor(req *models.TranscriptRequest, reference string) bool {
	if req.Status != models.RequestStatusPaymentPending && req.Status != models.RequestStatusPaid {
		return false
	}
	return req.PaymentReference == nil || *req.PaymentReference == reference
}

func (f fakeRequests) LockLinkableByID(ctx context.Context, exec sqlx.ExtContext, id, reference, studentID string) (*models.TranscriptRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok || req.StudentID != studentID || !linkableFor(req, reference) {
		return nil, sql.ErrNoRows
	}
	copied := *req
	return &copied, nil
}

func (f fakeRequests) LockLatestLinkable(ctx context.Context, exec sqlx.ExtContext, studentID, reference string, amountKobo int64, currency string) (*models.TranscriptRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, req := range f.requestsOf(studentID) {
		if linkableFor(req, reference) && req.AmountKobo <= amountKobo && strings.EqualFold(req.Currency, currency) {
			copied := *req
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f fakeRequests) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, from, to models.RequestStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok || req.Status != from {
		return false, nil
	}
	req.Status = to
	req.UpdatedAt = f.tick()
	return true, nil
}

func (f fakeRequests) LinkPayment(ctx context.Context, exec sqlx.ExtContext, id, reference string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok || (req.PaymentReference != nil && *req.PaymentReference != reference) {
		return false, nil
	}
	ref := reference
	req.PaymentReference = &ref
	return true, nil
}

func (f fakeRequests) ListByMatric(ctx context.Context, matric string) ([]models.TranscriptRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.TranscriptRequest
	for id, m := range f.matricByID {
		if m != matric {
			continue
		}
		for _, req := range f.requestsOf(id) {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (f fakeRequests) ListForStaff(ctx context.Context, filter models.TranscriptRequestFilter) ([]models.StaffRequestRow, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []models.StaffRequestRow
	for _, req := range f.requests {
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		all = append(all, models.StaffRequestRow{TranscriptRequest: *req, MatricNo: f.matricByID[req.StudentID]})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	start := (filter.Page - 1) * filter.PageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + filter.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

type fakeStatusEvents struct{ *memoryStore }

func (f fakeStatusEvents) Append(ctx context.Context, exec sqlx.ExtContext, event *models.StatusEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.eventSeq++
	event.ID = f.eventSeq
	if event.CreatedAt.IsZero() {
		event.CreatedAt = f.tick()
	}
	f.events = append(f.events, *event)
	return nil
}

func (f fakeStatusEvents) ListByRequest(ctx context.Context, requestID string) ([]models.StatusEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.StatusEvent
	for _, e := range f.events {
		if e.RequestID == requestID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakePayments struct{ *memoryStore }

func (f fakePayments) Create(ctx context.Context, exec sqlx.ExtContext, payment *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	copied := *payment
	f.payments[payment.Reference] = &copied
	return nil
}

func (f fakePayments) get(reference string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[reference]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *p
	return &copied, nil
}

func (f fakePayments) FindByReference(ctx context.Context, reference string) (*models.Payment, error) {
	return f.get(reference)
}

func (f fakePayments) LockByReference(ctx context.Context, exec sqlx.ExtContext, reference string) (*models.Payment, error) {
	return f.get(reference)
}

func (f fakePayments) FindOwnedByReference(ctx context.Context, matric, reference string) (*models.Payment, error) {
	p, err := f.get(reference)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.matricByID[p.StudentID] != matric {
		return nil, sql.ErrNoRows
	}
	return p, nil
}

func (f fakePayments) SaveInitPayload(ctx context.Context, id string, raw []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.ID == id {
			p.RawInitJSON.JSONText = raw
			p.RawInitJSON.Valid = true
		}
	}
	return nil
}

func (f fakePayments) MarkVerified(ctx context.Context, exec sqlx.ExtContext, id string, status models.PaymentStatus, paidAt *time.Time, raw []byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.ID == id && p.Status != models.PaymentStatusSuccess {
			p.Status = status
			p.PaidAt = paidAt
			return true, nil
		}
	}
	return false, nil
}

func (f fakePayments) SetRequestID(ctx context.Context, exec sqlx.ExtContext, id, requestID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.ID == id {
			rid := requestID
			p.RequestID = &rid
			return nil
		}
	}
	return errors.New("payment not found")
}

func (f fakePayments) ListByMatric(ctx context.Context, matric string) ([]models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Payment
	for _, p := range f.payments {
		if f.matricByID[p.StudentID] == matric {
			out = append(out, *p)
		}
	}
	return out, nil
}

type fakeDestinations struct{ *memoryStore }

func (f fakeDestinations) Create(ctx context.Context, exec sqlx.ExtContext, dest *models.Destination) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if dest.ID == "" {
		dest.ID = uuid.NewString()
	}
	dest.CreatedAt = f.tick()
	f.destinations = append(f.destinations, *dest)
	return nil
}

func (f fakeDestinations) Latest(ctx context.Context, exec sqlx.ExtContext, requestID string) (*models.Destination, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.destinations) - 1; i >= 0; i-- {
		if f.destinations[i].RequestID == requestID {
			d := f.destinations[i]
			return &d, nil
		}
	}
	return nil, sql.ErrNoRows
}

type fakeGatewayEvents struct{ *memoryStore }

func (f fakeGatewayEvents) Create(ctx context.Context, event *models.GatewayEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gateway = append(f.gateway, *event)
	return nil
}

type fakeStudents struct{ *memoryStore }

func (f fakeStudents) FindByMatric(ctx context.Context, matric string) (*models.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, m := range f.matricByID {
		if m == matric {
			return &models.Student{ID: id, MatricNo: m, Email: "student@example.com"}, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f fakeStudents) MatricByID(ctx context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	matric, ok := f.matricByID[id]
	if !ok {
		return "", sql.ErrNoRows
	}
	return matric, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.StatusChanged
	err    error
}

func (p *recordingPublisher) PublishStatusChanged(ctx context.Context, event events.StatusChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

// fakeGateway answers verify calls from a per-reference table.
type fakeGateway struct {
	mu          sync.Mutex
	secret      string
	verify      map[string]*paystack.VerifyResponse
	verifyErr   error
	initErr     error
	verifyCalls int
	initCalls   []paystack.InitializeRequest
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{secret: "sk_test_secret", verify: map[string]*paystack.VerifyResponse{}}
}

func (g *fakeGateway) succeed(reference string, amount int64, currency string) {
	res := &paystack.VerifyResponse{Status: true}
	res.Data.Status = paystack.StatusSuccess
	res.Data.Reference = reference
	res.Data.Amount = amount
	res.Data.Currency = currency
	g.mu.Lock()
	g.verify[reference] = res
	g.mu.Unlock()
}

func (g *fakeGateway) Initialize(ctx context.Context, req paystack.InitializeRequest) (*paystack.InitializeResponse, []byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initCalls = append(g.initCalls, req)
	if g.initErr != nil {
		return nil, nil, g.initErr
	}
	res := &paystack.InitializeResponse{Status: true}
	res.Data.AuthorizationURL = "https://checkout.paystack.com/" + req.Reference
	res.Data.AccessCode = "access-" + req.Reference
	res.Data.Reference = req.Reference
	return res, []byte(`{"status":true}`), nil
}

func (g *fakeGateway) Verify(ctx context.Context, reference string) (*paystack.VerifyResponse, []byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyCalls++
	if g.verifyErr != nil {
		return nil, nil, g.verifyErr
	}
	res, ok := g.verify[reference]
	if !ok {
		res = &paystack.VerifyResponse{Status: true}
		res.Data.Status = paystack.StatusAbandoned
		res.Data.Reference = reference
	}
	return res, []byte(`{"status":true}`), nil
}

func (g *fakeGateway) VerifySignature(body []byte, signature string) bool {
	return paystack.ValidSignature(g.secret, body, signature)
}
