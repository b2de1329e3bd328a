package scheduler_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"ms-booking/internal/gateway"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/retry"
	"ms-booking/internal/scheduler"
)

// Mock implementations
type MockDBLayer struct {
	mock.Mock
}

func (m *MockDBLayer) CreateReservation(ctx context.Context, r *models.Reservation) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockDBLayer) GetReservationByID(ctx context.Context, id string) (*models.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}

func (m *MockDBLayer) UpdateReservation(ctx context.Context, r *models.Reservation) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockDBLayer) ListByStatus(ctx context.Context, status string) ([]models.Reservation, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Reservation), args.Error(1)
}

func (m *MockDBLayer) StatusCounts(ctx context.Context) (map[string]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int), args.Error(1)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateLink(ctx context.Context, req gateway.LinkRequest) (gateway.Link, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(gateway.Link), args.Error(1)
}

func (m *MockGateway) QueryCaptured(ctx context.Context, linkID string) (bool, error) {
	args := m.Called(ctx, linkID)
	return args.Bool(0), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(to, subject, body string) error {
	args := m.Called(to, subject, body)
	return args.Error(0)
}

func (m *MockNotifier) SendWithPaymentLink(to, subject, body, link string) error {
	args := m.Called(to, subject, body, link)
	return args.Error(0)
}

type MockLockManager struct {
	mock.Mock
}

func (m *MockLockManager) LockReservation(reservationID, owner string) (bool, error) {
	args := m.Called(reservationID, owner)
	return args.Bool(0), args.Error(1)
}

func (m *MockLockManager) UnlockReservation(reservationID, owner string) error {
	args := m.Called(reservationID, owner)
	return args.Error(0)
}

var schedulerNow = time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)

type schedulerMocks struct {
	db       *MockDBLayer
	gateway  *MockGateway
	notifier *MockNotifier
	locks    *MockLockManager
}

func newTestScheduler() (*scheduler.Scheduler, *schedulerMocks) {
	m := &schedulerMocks{
		db:       new(MockDBLayer),
		gateway:  new(MockGateway),
		notifier: new(MockNotifier),
		locks:    new(MockLockManager),
	}
	s := scheduler.New(m.db, m.gateway, m.notifier, m.locks, &logger.Logger{}, 9, 0, "admin@example.com")
	s.Retry = retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond}
	s.Now = func() time.Time { return schedulerNow }
	return s, m
}

func installmentReservation() *models.Reservation {
	return &models.Reservation{
		ID:            "res1",
		TransactionID: "txn_test_000000001",
		Status:        models.StatusAwaitingPayment,
		PaymentMethod: models.MethodInstallments,
		TotalPrice:    900,
		CustomerEmail: "guest@example.com",
		Payments: []models.Payment{
			{ID: "pay0", Kind: models.KindDownPayment, Amount: 300, Status: models.PaymentCompleted, InstallmentStage: models.StagePaid, Balance: 600},
			{ID: "pay1", Kind: models.KindInstallment, Amount: 300, Status: models.PaymentPending, InstallmentStage: models.StageReadyToInstall, Date: schedulerNow.Add(-time.Hour), Balance: 300},
			{ID: "pay2", Kind: models.KindInstallment, Amount: 300, Status: models.PaymentPending, InstallmentStage: models.StageReadyToInstall, Date: schedulerNow.Add(30 * 24 * time.Hour), Balance: 0},
		},
		Version: 1,
	}
}

func TestRunOnceActivatesDueInstallment(t *testing.T) {
	s, m := newTestScheduler()
	defer s.Stop()
	res := installmentReservation()

	m.db.On("ListByStatus", mock.Anything, models.StatusAwaitingPayment).Return([]models.Reservation{*res}, nil)
	m.gateway.On("CreateLink", mock.Anything, mock.Anything).
		Return(gateway.Link{ID: "MB-LINK-INST1", URL: "https://pay.example/i1"}, nil)
	m.locks.On("LockReservation", "res1", mock.Anything).Return(true, nil)
	m.locks.On("UnlockReservation", "res1", mock.Anything).Return(nil)
	m.db.On("GetReservationByID", mock.Anything, "res1").Return(res, nil)
	m.db.On("UpdateReservation", mock.Anything, mock.Anything).Return(nil)
	m.notifier.On("SendWithPaymentLink", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	m.notifier.On("Send", "admin@example.com", mock.Anything, mock.Anything).Return(nil)

	s.RunOnce(context.Background())

	// Only the due installment was activated
	assert.Equal(t, models.StageInstalledReady, res.Payments[1].InstallmentStage)
	assert.Equal(t, "MB-LINK-INST1", res.Payments[1].PaymentLinkID)
	assert.NotNil(t, res.Payments[1].InstalledAt)

	assert.Equal(t, models.StageReadyToInstall, res.Payments[2].InstallmentStage)
	assert.Empty(t, res.Payments[2].PaymentLinkID)

	m.gateway.AssertNumberOfCalls(t, "CreateLink", 1)
	m.notifier.AssertCalled(t, "Send", "admin@example.com", mock.Anything, mock.Anything)

	// A second pass does not mint another link
	s.RunOnce(context.Background())
	m.gateway.AssertNumberOfCalls(t, "CreateLink", 1)
}

func TestRunOnceIgnoresFutureInstallments(t *testing.T) {
	s, m := newTestScheduler()
	defer s.Stop()
	res := installmentReservation()
	res.Payments[1].Date = schedulerNow.Add(48 * time.Hour)

	m.db.On("ListByStatus", mock.Anything, models.StatusAwaitingPayment).Return([]models.Reservation{*res}, nil)

	s.RunOnce(context.Background())

	m.gateway.AssertNotCalled(t, "CreateLink", mock.Anything, mock.Anything)
	m.db.AssertNotCalled(t, "UpdateReservation", mock.Anything, mock.Anything)
}

func TestRunOnceIgnoresFullPaymentReservations(t *testing.T) {
	s, m := newTestScheduler()
	defer s.Stop()
	res := installmentReservation()
	res.PaymentMethod = models.MethodFull

	m.db.On("ListByStatus", mock.Anything, models.StatusAwaitingPayment).Return([]models.Reservation{*res}, nil)

	s.RunOnce(context.Background())

	m.gateway.AssertNotCalled(t, "CreateLink", mock.Anything, mock.Anything)
}

func TestOverdueActivatedInstallmentGetsReminder(t *testing.T) {
	s, m := newTestScheduler()
	defer s.Stop()

	res := installmentReservation()
	installedAt := schedulerNow.Add(-48 * time.Hour)
	res.Payments[1].InstallmentStage = models.StageInstalledReady
	res.Payments[1].InstalledAt = &installedAt
	res.Payments[1].PaymentLink = "https://pay.example/i1"
	res.Payments[1].PaymentLinkID = "MB-LINK-INST1"

	sent := make(chan struct{}, 1)

	m.db.On("ListByStatus", mock.Anything, models.StatusAwaitingPayment).Return([]models.Reservation{*res}, nil)
	m.db.On("GetReservationByID", mock.Anything, "res1").Return(res, nil)
	m.notifier.On("SendWithPaymentLink", "guest@example.com", mock.Anything, mock.Anything, "https://pay.example/i1").
		Run(func(args mock.Arguments) {
			select {
			case sent <- struct{}{}:
			default:
			}
		}).
		Return(nil)

	s.RunOnce(context.Background())

	select {
	case <-sent:
	case <-time.After(2 * time.Second):
		t.Fatal("expected an overdue installment reminder")
	}
}

func TestReminderSkipsSettledInstallment(t *testing.T) {
	s, m := newTestScheduler()
	defer s.Stop()

	res := installmentReservation()
	res.Payments[1].InstallmentStage = models.StageInstalledReady
	res.Payments[1].PaymentLink = "https://pay.example/i1"
	res.Payments[1].PaymentLinkID = "MB-LINK-INST1"

	// The fresh read shows the installment already settled
	settled := installmentReservation()
	settled.Payments[1].Status = models.PaymentCompleted
	settled.Payments[1].InstallmentStage = models.StagePaid

	m.db.On("ListByStatus", mock.Anything, models.StatusAwaitingPayment).Return([]models.Reservation{*res}, nil)
	m.db.On("GetReservationByID", mock.Anything, "res1").Return(settled, nil)

	s.RunOnce(context.Background())
	time.Sleep(300 * time.Millisecond)

	m.notifier.AssertNotCalled(t, "SendWithPaymentLink", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
