package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"ms-booking/internal/gateway"
	"ms-booking/internal/logger"
	"ms-booking/internal/mailer"
	"ms-booking/internal/models"
	"ms-booking/internal/poller"
	"ms-booking/internal/reservation"
	"ms-booking/internal/retry"
)

// reminderLead is how far before the due date the reminder goes out.
const reminderLead = 24 * time.Hour

// sentReminderRetention keeps sent-reminder flags long enough to
// survive several daily passes before pruning.
const sentReminderRetention = 7 * 24 * time.Hour

type reminderEntry struct {
	timer  *time.Timer
	sentAt time.Time
}

// Scheduler activates installments as they come due and reminds guests
// about activated ones. It runs once at startup and then daily at the
// configured time.
type Scheduler struct {
	DB       reservation.DBLayer
	Gateway  reservation.LinkGateway
	Notifier reservation.Notifier
	Locks    poller.LockManager
	Logger   *logger.Logger

	Retry      retry.Policy
	AdminEmail string
	Hour       int
	Minute     int
	Now        func() time.Time

	cron  *cron.Cron
	owner string

	mu        sync.Mutex
	activated map[string]struct{}
	reminders map[string]*reminderEntry
}

func New(db reservation.DBLayer, gw reservation.LinkGateway, notifier reservation.Notifier, locks poller.LockManager, log *logger.Logger, hour, minute int, adminEmail string) *Scheduler {
	return &Scheduler{
		DB:         db,
		Gateway:    gw,
		Notifier:   notifier,
		Locks:      locks,
		Logger:     log,
		Retry:      retry.DefaultPolicy(),
		AdminEmail: adminEmail,
		Hour:       hour,
		Minute:     minute,
		Now:        time.Now,
		owner:      "scheduler-" + uuid.NewString(),
		activated:  make(map[string]struct{}),
		reminders:  make(map[string]*reminderEntry),
	}
}

// Start runs one pass immediately and schedules the daily one.
func (s *Scheduler) Start(ctx context.Context) error {
	go s.RunOnce(ctx)

	s.cron = cron.New()
	spec := fmt.Sprintf("%d %d * * *", s.Minute, s.Hour)
	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule daily installment pass: %w", err)
	}
	s.cron.Start()
	s.Logger.LogProcess("SCHEDULER", fmt.Sprintf("installment scheduler started, daily at %02d:%02d", s.Hour, s.Minute))
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	s.mu.Lock()
	for _, entry := range s.reminders {
		if entry.timer != nil {
			entry.timer.Stop()
		}
	}
	s.mu.Unlock()
	s.Logger.LogProcess("SCHEDULER", "installment scheduler stopped")
}

// RunOnce is one full pass: activate due installments, schedule
// reminders, prune old reminder flags.
func (s *Scheduler) RunOnce(ctx context.Context) {
	reservations, err := s.DB.ListByStatus(ctx, models.StatusAwaitingPayment)
	if err != nil {
		s.Logger.Error("SCHEDULER", fmt.Sprintf("failed to load reservations awaiting payment: %v", err))
		return
	}

	for i := range reservations {
		if ctx.Err() != nil {
			return
		}
		r := &reservations[i]
		if r.PaymentMethod != models.MethodInstallments {
			continue
		}
		s.activateDue(ctx, r)
		s.scheduleReminders(ctx, r)
	}

	s.pruneReminders()
}

func (s *Scheduler) activationKey(r *models.Reservation, index int) string {
	if id := r.Payments[index].ID; id != "" {
		return r.ID + "-" + id
	}
	return fmt.Sprintf("%s-%d", r.ID, index)
}

func (s *Scheduler) alreadyActivated(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.activated[key]; ok {
		return true
	}
	s.activated[key] = struct{}{}
	return false
}

// activateDue issues payment links for installments whose due date has
// arrived. The activation key keeps a runtime at-most-once; the
// persisted stage and link make a repeat harmless after a restart.
func (s *Scheduler) activateDue(ctx context.Context, r *models.Reservation) {
	now := s.Now()
	totalInstallments := len(r.Payments) - 1

	for i := range r.Payments {
		payment := &r.Payments[i]
		if payment.Kind != models.KindInstallment {
			continue
		}
		if payment.InstallmentStage != models.StageReadyToInstall || payment.Status != models.PaymentPending {
			continue
		}
		if payment.PaymentLinkID != "" || payment.Date.After(now) {
			continue
		}
		if s.alreadyActivated(s.activationKey(r, i)) {
			continue
		}

		link, err := s.Gateway.CreateLink(ctx, gateway.LinkRequest{
			Title:             fmt.Sprintf("Installment %d - booking %s", i, r.TransactionID),
			Description:       fmt.Sprintf("Installment %d of %d", i, totalInstallments),
			Amount:            payment.Amount,
			ReservationID:     r.ID,
			InstallmentNumber: i,
			TotalInstallments: totalInstallments,
		})
		if err != nil {
			s.Logger.Error("SCHEDULER", fmt.Sprintf("link creation for installment %d of %s failed: %v", i, r.ID, err))
			continue
		}

		if err := s.persistActivation(ctx, r.ID, i, link); err != nil {
			s.Logger.Error("SCHEDULER", fmt.Sprintf("activating installment %d of %s failed: %v", i, r.ID, err))
			continue
		}
		payment.PaymentLink = link.URL
		payment.PaymentLinkID = link.ID

		s.Logger.LogPayment("ACTIVATE", link.ID, fmt.Sprintf("installment %d of reservation %s activated", i, r.ID))

		subject, body := mailer.InstallmentDueGuest(r, payment, i, totalInstallments)
		if err := s.Notifier.SendWithPaymentLink(r.CustomerEmail, subject, body, link.URL); err != nil {
			s.Logger.Warn("MAILER", fmt.Sprintf("installment email for %s failed: %v", r.ID, err))
		}
		subject, body = mailer.InstallmentAdmin(r, payment, i, totalInstallments)
		if err := s.Notifier.Send(s.AdminEmail, subject, body); err != nil {
			s.Logger.Warn("MAILER", fmt.Sprintf("installment admin email for %s failed: %v", r.ID, err))
		}
	}
}

// persistActivation writes the activated stage and link onto a fresh
// copy of the reservation under the settlement lock.
func (s *Scheduler) persistActivation(ctx context.Context, reservationID string, index int, link gateway.Link) error {
	ok, err := s.Locks.LockReservation(reservationID, s.owner)
	if err != nil {
		return fmt.Errorf("settle lock error: %w", err)
	}
	if !ok {
		return fmt.Errorf("reservation %s is locked by another worker", reservationID)
	}
	defer func() {
		if err := s.Locks.UnlockReservation(reservationID, s.owner); err != nil {
			s.Logger.Warn("SCHEDULER", fmt.Sprintf("failed to release lock for %s: %v", reservationID, err))
		}
	}()

	return s.Retry.Do(ctx, func() error {
		fresh, err := s.DB.GetReservationByID(ctx, reservationID)
		if err != nil {
			return err
		}
		if index >= len(fresh.Payments) {
			return fmt.Errorf("payment index %d out of range", index)
		}
		payment := &fresh.Payments[index]
		if payment.InstallmentStage != models.StageReadyToInstall {
			// Already activated elsewhere.
			return nil
		}

		now := s.Now()
		payment.InstallmentStage = models.StageInstalledReady
		payment.InstalledAt = &now
		payment.PaymentLink = link.URL
		payment.PaymentLinkID = link.ID
		fresh.UpdatedAt = now
		return s.DB.UpdateReservation(ctx, fresh)
	})
}

// scheduleReminders arms one-shot reminders for activated unpaid
// installments: a day before the due date, or immediately when the due
// date already passed.
func (s *Scheduler) scheduleReminders(ctx context.Context, r *models.Reservation) {
	now := s.Now()

	for i := range r.Payments {
		payment := r.Payments[i]
		if payment.Kind != models.KindInstallment {
			continue
		}
		if payment.InstallmentStage != models.StageInstalledReady || payment.Status != models.PaymentPending {
			continue
		}
		if payment.PaymentLink == "" {
			continue
		}

		key := fmt.Sprintf("%s-%d", r.ID, i)
		s.mu.Lock()
		if _, exists := s.reminders[key]; exists {
			s.mu.Unlock()
			continue
		}
		entry := &reminderEntry{}
		s.reminders[key] = entry
		s.mu.Unlock()

		delay := payment.Date.Add(-reminderLead).Sub(now)
		if delay < 0 {
			delay = 0
		}

		reservationID := r.ID
		index := i
		entry.timer = time.AfterFunc(delay, func() {
			s.fireReminder(ctx, reservationID, index, key)
		})
	}
}

// fireReminder re-reads the reservation before sending so a payment
// settled in the meantime cancels the nudge.
func (s *Scheduler) fireReminder(ctx context.Context, reservationID string, index int, key string) {
	now := s.Now()
	s.mu.Lock()
	if entry, ok := s.reminders[key]; ok {
		if !entry.sentAt.IsZero() {
			s.mu.Unlock()
			return
		}
		entry.sentAt = now
	}
	s.mu.Unlock()

	r, err := s.DB.GetReservationByID(ctx, reservationID)
	if err != nil {
		s.Logger.Error("SCHEDULER", fmt.Sprintf("reminder load for %s failed: %v", reservationID, err))
		return
	}
	if r.Status != models.StatusAwaitingPayment || index >= len(r.Payments) {
		return
	}
	payment := r.Payments[index]
	if payment.Status != models.PaymentPending || payment.InstallmentStage != models.StageInstalledReady {
		return
	}

	subject, body := mailer.InstallmentReminderGuest(r, &payment, index, now)
	if err := s.Notifier.SendWithPaymentLink(r.CustomerEmail, subject, body, payment.PaymentLink); err != nil {
		s.Logger.Warn("MAILER", fmt.Sprintf("installment reminder for %s failed: %v", r.ID, err))
		return
	}
	s.Logger.LogReservation("REMINDER", r.ID, fmt.Sprintf("installment %d reminder sent", index))
}

func (s *Scheduler) pruneReminders() {
	now := s.Now()
	s.mu.Lock()
	for key, entry := range s.reminders {
		if !entry.sentAt.IsZero() && now.Sub(entry.sentAt) > sentReminderRetention {
			delete(s.reminders, key)
		}
	}
	s.mu.Unlock()
}
