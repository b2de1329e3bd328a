package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Reservation lifecycle statuses.
const (
	StatusPending         = "pending"
	StatusAwaitingPayment = "awaiting payment"
	StatusConfirmed       = "confirmed"
	StatusCancelled       = "cancelled"
)

// Payment methods.
const (
	MethodFull         = "full"
	MethodInstallments = "installments"
)

// Payment entry kinds.
const (
	KindFull        = "full"
	KindDownPayment = "downpayment"
	KindInstallment = "installment"
)

// Payment entry statuses.
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
	PaymentRefunded  = "refunded"
)

// Installment stages.
const (
	StagePaid           = "paid"
	StageReadyToInstall = "ready_to_be_installed"
	StageInstalledReady = "installed_ready_to_be_paid"
)

// Payment is one payment obligation embedded in a reservation. Amounts
// are whole AED.
type Payment struct {
	ID               string     `json:"id"`
	Kind             string     `json:"kind"`
	Amount           int64      `json:"amount"`
	Method           string     `json:"method,omitempty"`
	Date             time.Time  `json:"date"`
	Status           string     `json:"status"`
	InstallmentStage string     `json:"installmentStage,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	InstalledAt      *time.Time `json:"installedAt,omitempty"`
	PaidAt           *time.Time `json:"paidAt,omitempty"`
	Balance          int64      `json:"balance"`
	PaymentLink      string     `json:"paymentLink,omitempty"`
	PaymentLinkID    string     `json:"paymentLinkId,omitempty"`
	Notes            string     `json:"notes,omitempty"`
}

// ExtraItem is an add-on charged per unit (catering, water toys, crew).
type ExtraItem struct {
	Name      string `json:"name"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
}

type Reservation struct {
	bun.BaseModel `bun:"table:reservations"`

	ID            string `bun:"id,pk" json:"id"`
	TransactionID string `bun:"transaction_id" json:"transactionId"`

	Boat      Ref       `bun:"boat_id" json:"boat"`
	StartTime time.Time `bun:"start_time" json:"startTime"`
	EndTime   time.Time `bun:"end_time" json:"endTime"`
	Status    string    `bun:"status" json:"status"`

	TotalPrice      int64 `bun:"total_price" json:"totalPrice"`
	BoatHourlyPrice int64 `bun:"boat_hourly_price" json:"boatHourlyPrice"`
	BoatDailyPrice  int64 `bun:"boat_daily_price" json:"boatDailyPrice"`

	PaymentMethod        string    `bun:"payment_method" json:"paymentMethod"`
	NumberOfInstallments int       `bun:"number_of_installments" json:"numberOfInstallments,omitempty"`
	DownPaymentAmount    int64     `bun:"down_payment_amount" json:"downPaymentAmount,omitempty"`
	Payments             []Payment `bun:"payments,type:jsonb" json:"payments"`

	// Mirror of the primary (full or down payment) link.
	PaymentLink   string `bun:"payment_link" json:"paymentLink,omitempty"`
	PaymentLinkID string `bun:"payment_link_id" json:"paymentLinkId,omitempty"`

	Coupon     Ref    `bun:"coupon_id" json:"coupon"`
	CouponCode string `bun:"coupon_code" json:"couponCode,omitempty"`

	CustomerName    string      `bun:"customer_name" json:"customerName"`
	CustomerEmail   string      `bun:"customer_email" json:"customerEmail"`
	CustomerPhone   string      `bun:"customer_phone" json:"customerPhone,omitempty"`
	NumberOfGuests  int         `bun:"number_of_guests" json:"numberOfGuests,omitempty"`
	SpecialRequests string      `bun:"special_requests" json:"specialRequests,omitempty"`
	Extras          []ExtraItem `bun:"extras,type:jsonb" json:"extras,omitempty"`

	// Fulfilment details, required before the reservation may be moved
	// to awaiting payment.
	MeetingPointName    string `bun:"meeting_point_name" json:"meetingPointName,omitempty"`
	MeetingPointPin     string `bun:"meeting_point_pin" json:"meetingPointPin,omitempty"`
	ContactPersonName   string `bun:"contact_person_name" json:"contactPersonName,omitempty"`
	ContactPersonNumber string `bun:"contact_person_number" json:"contactPersonNumber,omitempty"`
	ParkingLocationName string `bun:"parking_location_name" json:"parkingLocationName,omitempty"`
	ParkingLocationPin  string `bun:"parking_location_pin" json:"parkingLocationPin,omitempty"`

	DepartureLocation string `bun:"departure_location" json:"departureLocation,omitempty"`

	CreatedAt time.Time `bun:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at" json:"updatedAt"`

	// Bumped on every write; concurrent writers detect each other
	// through a version mismatch.
	Version int64 `bun:"version" json:"-"`
}

// PrimaryLinkID returns the link to poll for a full payment, preferring
// the top-level mirror when it carries a real provider id.
func (r *Reservation) PrimaryLinkID() string {
	if r.PaymentLinkID != "" {
		return r.PaymentLinkID
	}
	if len(r.Payments) > 0 {
		return r.Payments[0].PaymentLinkID
	}
	return ""
}

// AllPaid reports whether every payment entry is completed.
func (r *Reservation) AllPaid() bool {
	if len(r.Payments) == 0 {
		return false
	}
	for _, p := range r.Payments {
		if p.Status != PaymentCompleted {
			return false
		}
	}
	return true
}
