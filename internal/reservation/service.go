package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-booking/internal/gateway"
	"ms-booking/internal/installments"
	"ms-booking/internal/logger"
	"ms-booking/internal/mailer"
	"ms-booking/internal/models"
	"ms-booking/internal/pricing"
	"ms-booking/internal/retry"
	"ms-booking/internal/utils"
)

// Sentinel errors the HTTP layer maps onto status codes.
var (
	ErrReservationNotFound = errors.New("reservation not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
)

type DBLayer interface {
	CreateReservation(ctx context.Context, r *models.Reservation) error
	GetReservationByID(ctx context.Context, id string) (*models.Reservation, error)
	UpdateReservation(ctx context.Context, r *models.Reservation) error
	ListByStatus(ctx context.Context, status string) ([]models.Reservation, error)
	StatusCounts(ctx context.Context) (map[string]int, error)
}

type BoatStore interface {
	GetBoat(ctx context.Context, id string) (*models.Boat, error)
	GetLocation(ctx context.Context, id string) (*models.Location, error)
}

type CouponStore interface {
	GetCouponByID(ctx context.Context, id string) (*models.Coupon, error)
	GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
	IncrementUsage(ctx context.Context, id string) error
}

type LinkGateway interface {
	CreateLink(ctx context.Context, req gateway.LinkRequest) (gateway.Link, error)
	QueryCaptured(ctx context.Context, linkID string) (bool, error)
}

type Notifier interface {
	Send(to, subject, body string) error
	SendWithPaymentLink(to, subject, body, link string) error
}

type KafkaPublisher interface {
	PublishReservationCreated(r models.Reservation) error
	PublishStatusChanged(r models.Reservation, previous string) error
	PublishPaymentCaptured(r models.Reservation, p models.Payment) error
}

type Service struct {
	DB       DBLayer
	Boats    BoatStore
	Coupons  CouponStore
	Gateway  LinkGateway
	Notifier Notifier
	Kafka    KafkaPublisher
	Logger   *logger.Logger

	Retry      retry.Policy
	AdminEmail string
	Now        func() time.Time
}

func NewService(db DBLayer, boats BoatStore, coupons CouponStore, gw LinkGateway, notifier Notifier, kafka KafkaPublisher, log *logger.Logger, adminEmail string) *Service {
	return &Service{
		DB:         db,
		Boats:      boats,
		Coupons:    coupons,
		Gateway:    gw,
		Notifier:   notifier,
		Kafka:      kafka,
		Logger:     log,
		Retry:      retry.DefaultPolicy(),
		AdminEmail: adminEmail,
		Now:        time.Now,
	}
}

// CreateInput is a booking request, from the public form or an
// operator. TotalPrice is only honoured for operators.
type CreateInput struct {
	BoatID               string             `json:"boat"`
	StartTime            time.Time          `json:"startTime"`
	EndTime              time.Time          `json:"endTime"`
	CustomerName         string             `json:"customerName"`
	CustomerEmail        string             `json:"customerEmail"`
	CustomerPhone        string             `json:"customerPhone"`
	NumberOfGuests       int                `json:"numberOfGuests"`
	SpecialRequests      string             `json:"specialRequests"`
	Extras               []models.ExtraItem `json:"extras"`
	PaymentMethod        string             `json:"paymentMethod"`
	NumberOfInstallments *int               `json:"numberOfInstallments"`
	DownPaymentAmount    int64              `json:"downPaymentAmount"`
	CouponCode           string             `json:"couponCode"`
	TotalPrice           *int64             `json:"totalPrice"`
}

// Create registers a new reservation in pending. Prices for public
// requests are always computed server side; a client-supplied total is
// only an override when an operator sends it. Coupon usage, event
// publishing and notifications are best effort and never fail the
// booking.
func (s *Service) Create(ctx context.Context, in CreateInput, actor string) (*models.Reservation, error) {
	if in.BoatID == "" {
		return nil, fmt.Errorf("boat is required")
	}
	if in.CustomerEmail == "" {
		return nil, fmt.Errorf("customer email is required")
	}

	boat, err := s.Boats.GetBoat(ctx, in.BoatID)
	if err != nil {
		return nil, fmt.Errorf("boat %s not found: %w", in.BoatID, err)
	}

	now := s.Now()

	var coupon *models.Coupon
	if code := models.NormalizeCouponCode(in.CouponCode); code != "" {
		coupon, err = s.Coupons.GetCouponByCode(ctx, code)
		if err != nil {
			s.Logger.Warn("RESERVATION", fmt.Sprintf("coupon code %q not found, booking continues without it: %v", code, err))
			coupon = nil
		}
	}

	method := in.PaymentMethod
	if method == "" {
		method = models.MethodFull
	}

	// Zero is a valid choice (down payment only); the default applies
	// only when the field was never supplied.
	count := installments.DefaultCount
	if in.NumberOfInstallments != nil {
		count = *in.NumberOfInstallments
		if count < 0 {
			count = 0
		}
	}

	r := &models.Reservation{
		ID:                   uuid.NewString(),
		TransactionID:        utils.GenerateTransactionID(),
		Boat:                 models.NewRef(boat.ID),
		StartTime:            in.StartTime,
		EndTime:              in.EndTime,
		Status:               models.StatusPending,
		BoatHourlyPrice:      boat.HourlyPrice,
		BoatDailyPrice:       boat.DailyPrice,
		PaymentMethod:        method,
		NumberOfInstallments: count,
		DownPaymentAmount:    in.DownPaymentAmount,
		CustomerName:         in.CustomerName,
		CustomerEmail:        in.CustomerEmail,
		CustomerPhone:        in.CustomerPhone,
		NumberOfGuests:       in.NumberOfGuests,
		SpecialRequests:      in.SpecialRequests,
		Extras:               in.Extras,
		CreatedAt:            now,
		UpdatedAt:            now,
		Version:              1,
	}

	if coupon != nil {
		r.Coupon = models.NewRef(coupon.ID)
		r.CouponCode = coupon.Code
	}

	if !boat.Location.IsZero() {
		if loc, err := s.Boats.GetLocation(ctx, boat.Location.ID()); err == nil {
			r.DepartureLocation = loc.Label()
		} else {
			s.Logger.Warn("RESERVATION", fmt.Sprintf("location %s lookup failed: %v", boat.Location.ID(), err))
		}
	}

	if actor != "" && in.TotalPrice != nil {
		r.TotalPrice = *in.TotalPrice
	} else {
		r.TotalPrice = s.computePrice(boat, r, coupon, now)
	}

	if err := s.DB.CreateReservation(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to create reservation: %w", err)
	}
	s.Logger.LogReservation("CREATE", r.ID, fmt.Sprintf("booking %s for %s, total AED %d", r.TransactionID, r.CustomerEmail, r.TotalPrice))

	if coupon != nil {
		if err := s.Coupons.IncrementUsage(ctx, coupon.ID); err != nil {
			s.Logger.Warn("RESERVATION", fmt.Sprintf("coupon %s usage increment failed: %v", coupon.ID, err))
		}
	}

	if err := s.Kafka.PublishReservationCreated(*r); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("reservation created event failed: %v", err))
	}

	subject, body := mailer.PendingGuest(r)
	if err := s.Notifier.Send(r.CustomerEmail, subject, body); err != nil {
		s.Logger.Warn("MAILER", fmt.Sprintf("pending email for %s failed: %v", r.ID, err))
	}

	return r, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Reservation, error) {
	return s.DB.GetReservationByID(ctx, id)
}

func (s *Service) computePrice(boat *models.Boat, r *models.Reservation, coupon *models.Coupon, now time.Time) int64 {
	total := pricing.Quote(boat, r.StartTime, r.EndTime, r.Extras)
	hours := pricing.BilledHours(r.StartTime, r.EndTime)
	total = pricing.ApplyBoatDiscount(total, hours, boat.Discounts)
	return pricing.ApplyCoupon(total, coupon, boat.ID, now)
}

// UpdateInput carries a partial operator update. Nil fields keep the
// stored value.
type UpdateInput struct {
	BoatID               *string             `json:"boat"`
	StartTime            *time.Time          `json:"startTime"`
	EndTime              *time.Time          `json:"endTime"`
	Status               *string             `json:"status"`
	TotalPrice           *int64              `json:"totalPrice"`
	PaymentMethod        *string             `json:"paymentMethod"`
	NumberOfInstallments *int                `json:"numberOfInstallments"`
	DownPaymentAmount    *int64              `json:"downPaymentAmount"`
	CouponID             *string             `json:"coupon"`
	CustomerName         *string             `json:"customerName"`
	CustomerEmail        *string             `json:"customerEmail"`
	CustomerPhone        *string             `json:"customerPhone"`
	NumberOfGuests       *int                `json:"numberOfGuests"`
	SpecialRequests      *string             `json:"specialRequests"`
	Extras               *[]models.ExtraItem `json:"extras"`
	MeetingPointName     *string             `json:"meetingPointName"`
	MeetingPointPin      *string             `json:"meetingPointPin"`
	ContactPersonName    *string             `json:"contactPersonName"`
	ContactPersonNumber  *string             `json:"contactPersonNumber"`
	ParkingLocationName  *string             `json:"parkingLocationName"`
	ParkingLocationPin   *string             `json:"parkingLocationPin"`
}

// Update applies a partial update, enforcing the status table, the
// fulfilment guard and the price trust rule, and runs the entry
// actions of any status transition. The write retries on concurrent
// conflicts; side effects (links, emails, events, coupon usage) run
// exactly once after the write lands.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput, actor string) (*models.Reservation, error) {
	var (
		updated       *models.Reservation
		prevStatus    string
		enteredAwait  bool
		primaryAmount int64
		couponToCount string

		link        gateway.Link
		linkCreated bool
	)

	err := s.Retry.Do(ctx, func() error {
		r, err := s.DB.GetReservationByID(ctx, id)
		if err != nil {
			return fmt.Errorf("reservation %s (%v): %w", id, err, ErrReservationNotFound)
		}

		prev := r.Status
		storedPrice := r.TotalPrice
		prevCoupon := r.Coupon.ID()
		now := s.Now()

		inputsChanged := s.mergeBooking(r, in)
		mergeDetails(r, in)

		var coupon *models.Coupon
		couponChanged := false
		if in.CouponID != nil && *in.CouponID != prevCoupon {
			couponChanged = true
			if *in.CouponID == "" {
				r.Coupon = models.Ref{}
				r.CouponCode = ""
			} else {
				coupon, err = s.Coupons.GetCouponByID(ctx, *in.CouponID)
				if err != nil {
					return fmt.Errorf("coupon %s not found: %w", *in.CouponID, err)
				}
				r.Coupon = models.NewRef(coupon.ID)
				r.CouponCode = coupon.Code
			}
		}

		hasExplicitPrice := in.TotalPrice != nil
		priceUnchanged := hasExplicitPrice && *in.TotalPrice == storedPrice
		if pricing.ShouldRecalculate(hasExplicitPrice, actor != "", inputsChanged, priceUnchanged) {
			boat, err := s.Boats.GetBoat(ctx, r.Boat.ID())
			if err != nil {
				return fmt.Errorf("boat %s not found: %w", r.Boat.ID(), err)
			}
			r.BoatHourlyPrice = boat.HourlyPrice
			r.BoatDailyPrice = boat.DailyPrice
			if coupon == nil && !r.Coupon.IsZero() {
				coupon, _ = s.Coupons.GetCouponByID(ctx, r.Coupon.ID())
			}
			r.TotalPrice = s.computePrice(boat, r, coupon, now)
		} else if hasExplicitPrice {
			r.TotalPrice = *in.TotalPrice
		}

		if in.Status != nil && *in.Status != prev {
			target := *in.Status
			if !CanTransition(prev, target, actor != "") {
				return fmt.Errorf("cannot move reservation from %q to %q: %w", prev, target, ErrInvalidTransition)
			}
			if prev == models.StatusPending && target == models.StatusAwaitingPayment {
				if verr := CheckFulfilment(r); verr != nil {
					return verr
				}
			}
			r.Status = target
		}

		if prev != models.StatusAwaitingPayment && r.Status == models.StatusAwaitingPayment {
			if err := s.enterAwaitingPayment(ctx, r, &link, &linkCreated, now); err != nil {
				return err
			}
			enteredAwait = true
			primaryAmount = r.Payments[0].Amount
		}

		r.UpdatedAt = now
		if err := s.DB.UpdateReservation(ctx, r); err != nil {
			return err
		}

		updated = r
		prevStatus = prev
		if couponChanged && coupon != nil {
			couponToCount = coupon.ID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if couponToCount != "" {
		if err := s.Coupons.IncrementUsage(ctx, couponToCount); err != nil {
			s.Logger.Warn("RESERVATION", fmt.Sprintf("coupon %s usage increment failed: %v", couponToCount, err))
		}
	}

	s.notifyAfterUpdate(updated, prevStatus, actor, enteredAwait, primaryAmount)

	if updated.Status != prevStatus {
		if err := s.Kafka.PublishStatusChanged(*updated, prevStatus); err != nil {
			s.Logger.Warn("KAFKA", fmt.Sprintf("status change event failed: %v", err))
		}
	}

	return updated, nil
}

// mergeBooking applies fields that feed the price and reports whether
// any of them changed.
func (s *Service) mergeBooking(r *models.Reservation, in UpdateInput) bool {
	changed := false
	if in.BoatID != nil && *in.BoatID != r.Boat.ID() {
		r.Boat = models.NewRef(*in.BoatID)
		changed = true
	}
	if in.StartTime != nil && !in.StartTime.Equal(r.StartTime) {
		r.StartTime = *in.StartTime
		changed = true
	}
	if in.EndTime != nil && !in.EndTime.Equal(r.EndTime) {
		r.EndTime = *in.EndTime
		changed = true
	}
	if in.Extras != nil {
		r.Extras = *in.Extras
		changed = true
	}
	return changed
}

func mergeDetails(r *models.Reservation, in UpdateInput) {
	if in.PaymentMethod != nil {
		r.PaymentMethod = *in.PaymentMethod
	}
	if in.NumberOfInstallments != nil {
		r.NumberOfInstallments = *in.NumberOfInstallments
	}
	if in.DownPaymentAmount != nil {
		r.DownPaymentAmount = *in.DownPaymentAmount
	}
	if in.CustomerName != nil {
		r.CustomerName = *in.CustomerName
	}
	if in.CustomerEmail != nil {
		r.CustomerEmail = *in.CustomerEmail
	}
	if in.CustomerPhone != nil {
		r.CustomerPhone = *in.CustomerPhone
	}
	if in.NumberOfGuests != nil {
		r.NumberOfGuests = *in.NumberOfGuests
	}
	if in.SpecialRequests != nil {
		r.SpecialRequests = *in.SpecialRequests
	}
	if in.MeetingPointName != nil {
		r.MeetingPointName = *in.MeetingPointName
	}
	if in.MeetingPointPin != nil {
		r.MeetingPointPin = *in.MeetingPointPin
	}
	if in.ContactPersonName != nil {
		r.ContactPersonName = *in.ContactPersonName
	}
	if in.ContactPersonNumber != nil {
		r.ContactPersonNumber = *in.ContactPersonNumber
	}
	if in.ParkingLocationName != nil {
		r.ParkingLocationName = *in.ParkingLocationName
	}
	if in.ParkingLocationPin != nil {
		r.ParkingLocationPin = *in.ParkingLocationPin
	}
}

// enterAwaitingPayment lays out the payment schedule and issues the
// primary link. The link is created at most once even when the
// surrounding write retries.
func (s *Service) enterAwaitingPayment(ctx context.Context, r *models.Reservation, link *gateway.Link, linkCreated *bool, now time.Time) error {
	if r.PaymentMethod == models.MethodInstallments {
		if len(r.Payments) == 0 {
			count := r.NumberOfInstallments
			if count < 0 {
				count = 0
				r.NumberOfInstallments = 0
			}
			r.Payments = installments.Build(r.TotalPrice, count, r.DownPaymentAmount, now)
			r.DownPaymentAmount = r.Payments[0].Amount
		}
		if !*linkCreated {
			created, err := s.Gateway.CreateLink(ctx, gateway.LinkRequest{
				Title:             fmt.Sprintf("Down payment - booking %s", r.TransactionID),
				Description:       fmt.Sprintf("Down payment for charter %s", r.StartTime.Format("2006-01-02")),
				Amount:            r.Payments[0].Amount,
				ReservationID:     r.ID,
				InstallmentNumber: 0,
				TotalInstallments: len(r.Payments) - 1,
			})
			if err != nil {
				return fmt.Errorf("failed to create down payment link: %w", err)
			}
			*link = created
			*linkCreated = true
		}
		r.Payments[0].PaymentLink = link.URL
		r.Payments[0].PaymentLinkID = link.ID
	} else {
		if !*linkCreated {
			created, err := s.Gateway.CreateLink(ctx, gateway.LinkRequest{
				Title:         fmt.Sprintf("Payment - booking %s", r.TransactionID),
				Description:   fmt.Sprintf("Charter on %s", r.StartTime.Format("2006-01-02")),
				Amount:        r.TotalPrice,
				ReservationID: r.ID,
			})
			if err != nil {
				return fmt.Errorf("failed to create payment link: %w", err)
			}
			*link = created
			*linkCreated = true
		}
		if len(r.Payments) == 0 {
			r.Payments = []models.Payment{{
				ID:               utils.GeneratePaymentID(),
				Kind:             models.KindFull,
				Amount:           r.TotalPrice,
				Date:             now,
				Status:           models.PaymentPending,
				InstallmentStage: models.StageInstalledReady,
				CreatedAt:        now,
				InstalledAt:      &now,
				Balance:          0,
				Notes:            "Full payment",
			}}
		}
		r.Payments[0].PaymentLink = link.URL
		r.Payments[0].PaymentLinkID = link.ID
	}

	r.PaymentLink = link.URL
	r.PaymentLinkID = link.ID
	return nil
}

func (s *Service) notifyAfterUpdate(r *models.Reservation, prevStatus, actor string, enteredAwait bool, primaryAmount int64) {
	switch {
	case enteredAwait:
		subject, body := mailer.AwaitingPaymentGuest(r, r.PaymentLink, primaryAmount)
		if err := s.Notifier.SendWithPaymentLink(r.CustomerEmail, subject, body, r.PaymentLink); err != nil {
			s.Logger.Warn("MAILER", fmt.Sprintf("awaiting payment email for %s failed: %v", r.ID, err))
		}
		subject, body = mailer.AwaitingPaymentAdmin(r, primaryAmount)
		if err := s.Notifier.Send(s.AdminEmail, subject, body); err != nil {
			s.Logger.Warn("MAILER", fmt.Sprintf("awaiting payment admin email for %s failed: %v", r.ID, err))
		}

	case r.Status == models.StatusConfirmed && r.Status != prevStatus:
		// The settlement path already notified when it confirmed the
		// reservation itself; a system write arriving here would
		// double-send.
		if actor == "" && prevStatus == models.StatusAwaitingPayment {
			return
		}
		subject, body := mailer.ConfirmedGuest(r)
		if err := s.Notifier.Send(r.CustomerEmail, subject, body); err != nil {
			s.Logger.Warn("MAILER", fmt.Sprintf("confirmation email for %s failed: %v", r.ID, err))
		}
		subject, body = mailer.ConfirmedAdmin(r)
		if err := s.Notifier.Send(s.AdminEmail, subject, body); err != nil {
			s.Logger.Warn("MAILER", fmt.Sprintf("confirmation admin email for %s failed: %v", r.ID, err))
		}

	case r.Status == models.StatusCancelled && r.Status != prevStatus:
		subject, body := mailer.CancelledGuest(r)
		if err := s.Notifier.Send(r.CustomerEmail, subject, body); err != nil {
			s.Logger.Warn("MAILER", fmt.Sprintf("cancellation email for %s failed: %v", r.ID, err))
		}

	case r.Status != prevStatus:
		subject, body := mailer.StatusChangedGuest(r)
		if err := s.Notifier.Send(r.CustomerEmail, subject, body); err != nil {
			s.Logger.Warn("MAILER", fmt.Sprintf("status email for %s failed: %v", r.ID, err))
		}
	}
}

// Cancel moves the reservation to cancelled through the normal update
// path.
func (s *Service) Cancel(ctx context.Context, id, actor string) error {
	status := models.StatusCancelled
	_, err := s.Update(ctx, id, UpdateInput{Status: &status}, actor)
	return err
}

// Stats summarizes reservations by status plus the amount still owed
// across reservations awaiting payment.
type Stats struct {
	ByStatus    map[string]int `json:"byStatus"`
	Outstanding int64          `json:"outstandingBalance"`
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	counts, err := s.DB.StatusCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count reservations: %w", err)
	}

	awaiting, err := s.DB.ListByStatus(ctx, models.StatusAwaitingPayment)
	if err != nil {
		return nil, fmt.Errorf("failed to list awaiting reservations: %w", err)
	}

	var outstanding int64
	for _, r := range awaiting {
		for _, p := range r.Payments {
			if p.Status != models.PaymentCompleted {
				outstanding += p.Amount
			}
		}
	}

	return &Stats{ByStatus: counts, Outstanding: outstanding}, nil
}
