package service

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/noah-isme/transcript-api/internal/models"
)

const testMatric = "U2020/1001"

type serviceHarness struct {
	store     *memoryStore
	gateway   *fakeGateway
	publisher *recordingPublisher
	metrics   *MetricsService
	lifecycle *Lifecycle
	requests  *RequestService
	payments  *PaymentService
	staff     *StaffService
	mock      sqlmock.Sqlmock
	student   *models.Student
}

func newServiceHarness(t *testing.T) *serviceHarness {
	t.Helper()
	tx, mock := newTxProviderMock(t)
	store := newMemoryStore()
	gateway := newFakeGateway()
	publisher := &recordingPublisher{}
	metrics := NewMetricsService()

	lifecycle := NewLifecycle(fakeRequests{store}, fakeStatusEvents{store}, fakePayments{store}, publisher, metrics, nil)
	fees := FeeSchedule{WithinNigeriaNGN: 5000, OutsideNigeriaNGN: 20000, Currency: "NGN"}

	h := &serviceHarness{
		store:     store,
		gateway:   gateway,
		publisher: publisher,
		metrics:   metrics,
		lifecycle: lifecycle,
		mock:      mock,
		student:   store.addStudent("student-1", testMatric),
	}
	h.requests = NewRequestService(fakeStudents{store}, fakeRequests{store}, fakeDestinations{store}, fakeStatusEvents{store}, lifecycle, fees, tx, nil, nil)
	h.payments = NewPaymentService(fakeStudents{store}, fakeRequests{store}, fakePayments{store}, fakeGatewayEvents{store}, gateway, lifecycle, tx, metrics, nil, nil, PaymentConfig{CallbackURL: "https://portal.example.com/payments/callback"})
	h.staff = NewStaffService(fakeRequests{store}, lifecycle, tx, nil, nil)
	return h
}

// expectTx queues n committed transactions on the mock.
func (h *serviceHarness) expectTx(n int) {
	for i := 0; i < n; i++ {
		h.mock.ExpectBegin()
		h.mock.ExpectCommit()
	}
}

func (h *serviceHarness) expectRollback() {
	h.mock.ExpectBegin()
	h.mock.ExpectRollback()
}
