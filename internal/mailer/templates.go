package mailer

import (
	"fmt"
	"time"

	"ms-booking/internal/models"
)

const dateLayout = "Mon, 02 Jan 2006 15:04"

func window(r *models.Reservation) string {
	return fmt.Sprintf("%s to %s", r.StartTime.Format(dateLayout), r.EndTime.Format(dateLayout))
}

// PendingGuest acknowledges a new booking request.
func PendingGuest(r *models.Reservation) (subject, body string) {
	subject = fmt.Sprintf("Booking request received - %s", r.TransactionID)
	body = fmt.Sprintf(`<h2>Thanks for your booking request, %s!</h2>
<p>We have received your request for <b>%s</b>.</p>
<p>Booking reference: <b>%s</b><br>Total: <b>AED %d</b></p>
<p>Our team will confirm availability and send you a payment link shortly.</p>`,
		r.CustomerName, window(r), r.TransactionID, r.TotalPrice)
	return subject, body
}

// AwaitingPaymentGuest carries the payment link for a full payment or
// the down payment of an installment plan.
func AwaitingPaymentGuest(r *models.Reservation, paymentLink string, amount int64) (subject, body string) {
	subject = fmt.Sprintf("Complete your payment - %s", r.TransactionID)
	body = fmt.Sprintf(`<h2>Your charter is reserved, %s</h2>
<p>Charter window: <b>%s</b></p>
<p>Amount due now: <b>AED %d</b></p>
<p><a href="%s">Pay securely here</a>, or scan the attached QR code.</p>
<p>Booking reference: %s</p>`,
		r.CustomerName, window(r), amount, paymentLink, r.TransactionID)
	return subject, body
}

// AwaitingPaymentAdmin mirrors the guest notification for operators.
func AwaitingPaymentAdmin(r *models.Reservation, amount int64) (subject, body string) {
	subject = fmt.Sprintf("Payment requested - %s", r.TransactionID)
	body = fmt.Sprintf(`<h3>Payment link issued</h3>
<p>Reservation %s (%s, %s)<br>Amount requested: AED %d of AED %d total.</p>`,
		r.TransactionID, r.CustomerName, window(r), amount, r.TotalPrice)
	return subject, body
}

// ConfirmedGuest announces a fully settled reservation.
func ConfirmedGuest(r *models.Reservation) (subject, body string) {
	subject = fmt.Sprintf("Booking confirmed - %s", r.TransactionID)
	body = fmt.Sprintf(`<h2>You're all set, %s!</h2>
<p>Your charter on <b>%s</b> is confirmed.</p>
<p>Meeting point: %s (%s)<br>Contact: %s (%s)<br>Parking: %s (%s)</p>
<p>Departure: %s</p>`,
		r.CustomerName, window(r),
		r.MeetingPointName, r.MeetingPointPin,
		r.ContactPersonName, r.ContactPersonNumber,
		r.ParkingLocationName, r.ParkingLocationPin,
		r.DepartureLocation)
	return subject, body
}

// ConfirmedAdmin mirrors the confirmation for operators.
func ConfirmedAdmin(r *models.Reservation) (subject, body string) {
	subject = fmt.Sprintf("Reservation confirmed - %s", r.TransactionID)
	body = fmt.Sprintf(`<h3>Reservation settled in full</h3>
<p>%s (%s) - %s<br>Total collected: AED %d.</p>`,
		r.TransactionID, r.CustomerName, window(r), r.TotalPrice)
	return subject, body
}

// CancelledGuest notifies the guest of a cancellation.
func CancelledGuest(r *models.Reservation) (subject, body string) {
	subject = fmt.Sprintf("Booking cancelled - %s", r.TransactionID)
	body = fmt.Sprintf(`<p>Hi %s,</p>
<p>Your booking %s for %s has been cancelled.</p>
<p>If this was unexpected, reply to this email and we will help.</p>`,
		r.CustomerName, r.TransactionID, window(r))
	return subject, body
}

// InstallmentDueGuest carries a freshly activated installment link.
func InstallmentDueGuest(r *models.Reservation, p *models.Payment, number, total int) (subject, body string) {
	subject = fmt.Sprintf("Installment %d of %d due - %s", number, total, r.TransactionID)
	body = fmt.Sprintf(`<h2>Installment payment due</h2>
<p>Hi %s, installment %d of %d for your charter (%s) is now due.</p>
<p>Amount: <b>AED %d</b> &middot; Remaining after this payment: AED %d</p>
<p><a href="%s">Pay securely here</a>, or scan the attached QR code.</p>`,
		r.CustomerName, number, total, window(r), p.Amount, p.Balance, p.PaymentLink)
	return subject, body
}

// InstallmentReminderGuest nudges an unpaid activated installment,
// with an overdue variant once the due date has passed.
func InstallmentReminderGuest(r *models.Reservation, p *models.Payment, number int, now time.Time) (subject, body string) {
	if now.After(p.Date) {
		subject = fmt.Sprintf("Overdue installment - %s", r.TransactionID)
		body = fmt.Sprintf(`<p>Hi %s,</p>
<p>Installment %d (AED %d) for booking %s was due on %s and is still unpaid.</p>
<p><a href="%s">Pay now</a> to keep your charter on schedule.</p>`,
			r.CustomerName, number, p.Amount, r.TransactionID, p.Date.Format(dateLayout), p.PaymentLink)
		return subject, body
	}
	subject = fmt.Sprintf("Installment due tomorrow - %s", r.TransactionID)
	body = fmt.Sprintf(`<p>Hi %s,</p>
<p>A friendly reminder: installment %d (AED %d) for booking %s is due on %s.</p>
<p><a href="%s">Pay now</a> and you're done.</p>`,
		r.CustomerName, number, p.Amount, r.TransactionID, p.Date.Format(dateLayout), p.PaymentLink)
	return subject, body
}

// InstallmentAdmin mirrors installment activity for operators.
func InstallmentAdmin(r *models.Reservation, p *models.Payment, number, total int) (subject, body string) {
	subject = fmt.Sprintf("Installment %d/%d activated - %s", number, total, r.TransactionID)
	body = fmt.Sprintf(`<p>Installment %d of %d activated for %s (%s): AED %d, due %s.</p>`,
		number, total, r.TransactionID, r.CustomerName, p.Amount, p.Date.Format(dateLayout))
	return subject, body
}

// StatusChangedGuest covers status moves with no richer template.
func StatusChangedGuest(r *models.Reservation) (subject, body string) {
	subject = fmt.Sprintf("Booking update - %s", r.TransactionID)
	body = fmt.Sprintf(`<p>Hi %s,</p><p>Your booking %s is now <b>%s</b>.</p>`,
		r.CustomerName, r.TransactionID, r.Status)
	return subject, body
}
