package reservation

import (
	"fmt"
	"strings"

	"ms-booking/internal/models"
)

// ValidationError reports every missing fulfilment detail at once so
// operators fix the form in one pass.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("cannot request payment before fulfilment details are set. Missing: %s",
		strings.Join(e.Missing, ", "))
}

// CanTransition is the reservation status table. Operators may confirm
// a pending reservation directly (offline payment); every other actor
// follows pending -> awaiting payment -> confirmed/cancelled. The two
// terminal states accept nothing.
func CanTransition(from, to string, operator bool) bool {
	if from == to {
		return true
	}
	switch from {
	case models.StatusPending:
		switch to {
		case models.StatusAwaitingPayment, models.StatusCancelled:
			return true
		case models.StatusConfirmed:
			return operator
		}
	case models.StatusAwaitingPayment:
		return to == models.StatusConfirmed || to == models.StatusCancelled
	}
	return false
}

type fulfilmentField struct {
	label string
	value func(*models.Reservation) string
}

var fulfilmentFields = []fulfilmentField{
	{"Meeting Point - Name", func(r *models.Reservation) string { return r.MeetingPointName }},
	{"Meeting Point - Pin", func(r *models.Reservation) string { return r.MeetingPointPin }},
	{"Contact Person - Name", func(r *models.Reservation) string { return r.ContactPersonName }},
	{"Contact Person - Number", func(r *models.Reservation) string { return r.ContactPersonNumber }},
	{"Parking Location - Name", func(r *models.Reservation) string { return r.ParkingLocationName }},
	{"Parking Location - Pin", func(r *models.Reservation) string { return r.ParkingLocationPin }},
}

// CheckFulfilment guards the move into awaiting payment: the guest is
// about to pay, so day-of logistics must already be on the document.
// The reservation passed in must carry the merged state of the write.
func CheckFulfilment(r *models.Reservation) *ValidationError {
	var missing []string
	for _, f := range fulfilmentFields {
		if strings.TrimSpace(f.value(r)) == "" {
			missing = append(missing, f.label)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}
