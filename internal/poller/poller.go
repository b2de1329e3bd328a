package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"ms-booking/internal/gateway"
	"ms-booking/internal/logger"
	"ms-booking/internal/mailer"
	"ms-booking/internal/models"
	"ms-booking/internal/reservation"
	"ms-booking/internal/retry"
)

// scopeCleanupInterval clears the in-memory caches so stale throttle
// and processed entries do not grow without bound.
const scopeCleanupInterval = time.Hour

// Scope is the poller's in-memory working set: which obligations were
// already settled this runtime and when each link was last checked.
// Losing it on restart only costs one redundant status check per link.
type Scope struct {
	mu          sync.Mutex
	processed   map[string]struct{}
	lastChecked map[string]time.Time
}

func NewScope() *Scope {
	return &Scope{
		processed:   make(map[string]struct{}),
		lastChecked: make(map[string]time.Time),
	}
}

func (s *Scope) isProcessed(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.processed[key]
	return ok
}

// markProcessed is called only after the settling write landed.
func (s *Scope) markProcessed(key string) {
	s.mu.Lock()
	s.processed[key] = struct{}{}
	s.mu.Unlock()
}

func (s *Scope) shouldCheck(linkID string, now time.Time, throttle time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.lastChecked[linkID]; ok && now.Sub(last) < throttle {
		return false
	}
	s.lastChecked[linkID] = now
	return true
}

// Reset clears the caches. The persisted payment state remains the
// source of truth, so a cleared cache never re-settles anything.
func (s *Scope) Reset() {
	s.mu.Lock()
	s.processed = make(map[string]struct{})
	s.lastChecked = make(map[string]time.Time)
	s.mu.Unlock()
}

// LockManager serializes settlement writes per reservation across the
// poller, the scheduler and the API.
type LockManager interface {
	LockReservation(reservationID, owner string) (bool, error)
	UnlockReservation(reservationID, owner string) error
}

// Poller watches reservations awaiting payment and settles their
// obligations as the provider captures charges.
type Poller struct {
	DB       reservation.DBLayer
	Gateway  reservation.LinkGateway
	Notifier reservation.Notifier
	Kafka    reservation.KafkaPublisher
	Locks    LockManager
	Logger   *logger.Logger

	Retry      retry.Policy
	AdminEmail string
	Interval   time.Duration
	Throttle   time.Duration
	Scope      *Scope
	Now        func() time.Time

	owner string
}

func New(db reservation.DBLayer, gw reservation.LinkGateway, notifier reservation.Notifier, kafka reservation.KafkaPublisher, locks LockManager, log *logger.Logger, interval, throttle time.Duration, adminEmail string) *Poller {
	return &Poller{
		DB:         db,
		Gateway:    gw,
		Notifier:   notifier,
		Kafka:      kafka,
		Locks:      locks,
		Logger:     log,
		Retry:      retry.DefaultPolicy(),
		AdminEmail: adminEmail,
		Interval:   interval,
		Throttle:   throttle,
		Scope:      NewScope(),
		Now:        time.Now,
		owner:      "poller-" + uuid.NewString(),
	}
}

// Run ticks until the context ends. Errors inside a tick are logged
// and the next tick proceeds.
func (p *Poller) Run(ctx context.Context) {
	p.Logger.LogProcess("POLLER", fmt.Sprintf("settlement poller started, interval %s", p.Interval))

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	cleanup := time.NewTicker(scopeCleanupInterval)
	defer cleanup.Stop()

	p.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			p.Logger.LogProcess("POLLER", "settlement poller stopped")
			return
		case <-cleanup.C:
			p.Scope.Reset()
			p.Logger.Debug("POLLER", "cleared throttle and processed caches")
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick runs one settlement pass over every reservation awaiting
// payment.
func (p *Poller) Tick(ctx context.Context) {
	reservations, err := p.DB.ListByStatus(ctx, models.StatusAwaitingPayment)
	if err != nil {
		p.Logger.Error("POLLER", fmt.Sprintf("failed to load reservations awaiting payment: %v", err))
		return
	}

	for i := range reservations {
		if ctx.Err() != nil {
			return
		}
		p.processReservation(ctx, &reservations[i])
	}
}

// candidate pairs a payment entry index with the link to poll for it.
type candidate struct {
	index  int
	linkID string
}

// candidates selects the pollable obligations. A full payment polls
// its single entry, preferring the top-level link id when the
// per-entry id is a local mock. Installment entries poll only once
// activated and still pending.
func candidates(r *models.Reservation) []candidate {
	if len(r.Payments) == 0 {
		return nil
	}

	if r.PaymentMethod != models.MethodInstallments {
		if r.Payments[0].Status != models.PaymentPending {
			return nil
		}
		linkID := r.Payments[0].PaymentLinkID
		if !gateway.IsRealLinkID(linkID) && gateway.IsRealLinkID(r.PaymentLinkID) {
			linkID = r.PaymentLinkID
		}
		if linkID == "" {
			return nil
		}
		return []candidate{{index: 0, linkID: linkID}}
	}

	var out []candidate
	for i, payment := range r.Payments {
		if payment.InstallmentStage != models.StageInstalledReady || payment.Status != models.PaymentPending {
			continue
		}
		if payment.PaymentLinkID == "" {
			continue
		}
		out = append(out, candidate{index: i, linkID: payment.PaymentLinkID})
	}
	return out
}

func (p *Poller) processReservation(ctx context.Context, r *models.Reservation) {
	now := p.Now()

	for _, c := range candidates(r) {
		processedKey := fmt.Sprintf("%s-%d-%s", r.ID, c.index, c.linkID)
		if p.Scope.isProcessed(processedKey) {
			continue
		}
		// Local mock links have no charges behind them.
		if gateway.IsMockLinkID(c.linkID) {
			continue
		}
		if !p.Scope.shouldCheck(c.linkID, now, p.Throttle) {
			continue
		}

		captured, err := p.Gateway.QueryCaptured(ctx, c.linkID)
		if err != nil {
			p.Logger.Error("POLLER", fmt.Sprintf("status check for link %s failed: %v", c.linkID, err))
			continue
		}
		if !captured {
			continue
		}

		if err := p.settle(ctx, r.ID, c); err != nil {
			p.Logger.Error("POLLER", fmt.Sprintf("settling payment %d of reservation %s failed: %v", c.index, r.ID, err))
			continue
		}
		p.Scope.markProcessed(processedKey)

		// A full payment has nothing further to poll.
		if r.PaymentMethod != models.MethodInstallments {
			return
		}
	}
}

// settle records a captured payment on a fresh copy of the
// reservation, confirming it when everything is paid. The write holds
// the reservation lock and retries lost races.
func (p *Poller) settle(ctx context.Context, reservationID string, c candidate) error {
	ok, err := p.Locks.LockReservation(reservationID, p.owner)
	if err != nil {
		return fmt.Errorf("settle lock error: %w", err)
	}
	if !ok {
		return fmt.Errorf("reservation %s is locked by another worker", reservationID)
	}
	defer func() {
		if err := p.Locks.UnlockReservation(reservationID, p.owner); err != nil {
			p.Logger.Warn("POLLER", fmt.Sprintf("failed to release lock for %s: %v", reservationID, err))
		}
	}()

	var (
		settled   *models.Reservation
		captured  models.Payment
		confirmed bool
	)

	err = p.Retry.Do(ctx, func() error {
		r, err := p.DB.GetReservationByID(ctx, reservationID)
		if err != nil {
			return err
		}
		if c.index >= len(r.Payments) {
			return fmt.Errorf("payment index %d out of range", c.index)
		}
		payment := &r.Payments[c.index]
		if payment.Status == models.PaymentCompleted {
			// Someone else settled it first; nothing to write.
			settled = r
			captured = *payment
			return nil
		}

		now := p.Now()
		payment.Status = models.PaymentCompleted
		payment.PaidAt = &now
		payment.InstallmentStage = models.StagePaid

		confirmed = false
		if r.AllPaid() && r.Status == models.StatusAwaitingPayment {
			r.Status = models.StatusConfirmed
			confirmed = true
		}

		r.UpdatedAt = now
		if err := p.DB.UpdateReservation(ctx, r); err != nil {
			return err
		}
		settled = r
		captured = r.Payments[c.index]
		return nil
	})
	if err != nil {
		return err
	}

	p.Logger.LogPayment("CAPTURED", c.linkID, fmt.Sprintf("reservation %s payment %s settled", settled.ID, captured.ID))

	if err := p.Kafka.PublishPaymentCaptured(*settled, captured); err != nil {
		p.Logger.Warn("KAFKA", fmt.Sprintf("payment captured event failed: %v", err))
	}

	if confirmed {
		subject, body := mailer.ConfirmedGuest(settled)
		if err := p.Notifier.Send(settled.CustomerEmail, subject, body); err != nil {
			p.Logger.Warn("MAILER", fmt.Sprintf("confirmation email for %s failed: %v", settled.ID, err))
		}
		subject, body = mailer.ConfirmedAdmin(settled)
		if err := p.Notifier.Send(p.AdminEmail, subject, body); err != nil {
			p.Logger.Warn("MAILER", fmt.Sprintf("confirmation admin email for %s failed: %v", settled.ID, err))
		}
		if err := p.Kafka.PublishStatusChanged(*settled, models.StatusAwaitingPayment); err != nil {
			p.Logger.Warn("KAFKA", fmt.Sprintf("status change event failed: %v", err))
		}
	}

	return nil
}
