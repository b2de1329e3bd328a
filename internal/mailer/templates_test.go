package mailer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ms-booking/internal/mailer"
	"ms-booking/internal/models"
)

func sampleReservation() *models.Reservation {
	start := time.Date(2026, 6, 6, 10, 0, 0, 0, time.UTC)
	return &models.Reservation{
		ID:            "res1",
		TransactionID: "txn_test_000000001",
		StartTime:     start,
		EndTime:       start.Add(5 * time.Hour),
		TotalPrice:    500,
		CustomerName:  "Dana",
		CustomerEmail: "guest@example.com",
	}
}

func TestAwaitingPaymentGuestTemplate(t *testing.T) {
	r := sampleReservation()
	subject, body := mailer.AwaitingPaymentGuest(r, "https://pay.example/abc", 300)

	assert.Contains(t, subject, r.TransactionID)
	assert.Contains(t, body, "AED 300")
	assert.Contains(t, body, "https://pay.example/abc")
	assert.Contains(t, body, "Dana")
}

func TestInstallmentReminderTemplateOverdueVariant(t *testing.T) {
	r := sampleReservation()
	due := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	p := &models.Payment{Amount: 300, Date: due, PaymentLink: "https://pay.example/i1"}

	subject, _ := mailer.InstallmentReminderGuest(r, p, 1, due.Add(-time.Hour))
	assert.Contains(t, subject, "due tomorrow")

	subject, body := mailer.InstallmentReminderGuest(r, p, 1, due.Add(time.Hour))
	assert.Contains(t, subject, "Overdue")
	assert.Contains(t, body, "still unpaid")
}

func TestConfirmedGuestTemplateCarriesLogistics(t *testing.T) {
	r := sampleReservation()
	r.MeetingPointName = "Marina Walk Gate 3"
	r.ContactPersonName = "Captain Ahmed"
	r.DepartureLocation = "Marina Walk, Pier 7, Dubai, UAE"

	subject, body := mailer.ConfirmedGuest(r)
	assert.Contains(t, subject, "confirmed")
	assert.Contains(t, body, "Marina Walk Gate 3")
	assert.Contains(t, body, "Captain Ahmed")
	assert.Contains(t, body, "Marina Walk, Pier 7, Dubai, UAE")
}
