package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ms-booking/internal/models"
)

func TestValidateDiscounts(t *testing.T) {
	boat := &models.Boat{
		Discounts: []models.BoatDiscount{
			{Type: models.DiscountFixed, Amount: 100, Active: true},
			{Type: models.DiscountPercentage, Percent: 10, Active: true},
		},
	}
	assert.ErrorIs(t, boat.ValidateDiscounts(), models.ErrConflictingDiscounts)

	// An inactive one resolves the conflict
	boat.Discounts[0].Active = false
	assert.NoError(t, boat.ValidateDiscounts())

	// Bulk variants may coexist with anything
	boat.Discounts = []models.BoatDiscount{
		{Type: models.DiscountPercentage, Percent: 10, Active: true},
		{Type: models.DiscountBulkFixed, Amount: 50, MinHours: 8, Active: true},
	}
	assert.NoError(t, boat.ValidateDiscounts())
}

func TestNormalizeCouponCode(t *testing.T) {
	assert.Equal(t, "WELCOME10", models.NormalizeCouponCode("  welcome10 "))
	assert.Equal(t, "", models.NormalizeCouponCode("   "))
}

func TestCouponUsable(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)
	earlier := now.Add(-time.Hour)

	assert.True(t, (&models.Coupon{IsActive: true}).Usable(now))
	assert.True(t, (&models.Coupon{IsActive: true, ExpiresAt: &later}).Usable(now))
	assert.False(t, (&models.Coupon{IsActive: true, ExpiresAt: &earlier}).Usable(now))
	assert.False(t, (&models.Coupon{IsActive: false}).Usable(now))
}

func TestCouponAppliesToBoat(t *testing.T) {
	assert.True(t, (&models.Coupon{ApplyToAllBoats: true}).AppliesToBoat("boat1"))
	assert.True(t, (&models.Coupon{}).AppliesToBoat("boat1"))
	assert.True(t, (&models.Coupon{BoatIDs: []string{"boat1", "boat2"}}).AppliesToBoat("boat1"))
	assert.False(t, (&models.Coupon{BoatIDs: []string{"boat2"}}).AppliesToBoat("boat1"))
}

func TestLocationLabel(t *testing.T) {
	loc := &models.Location{Name: "Marina Walk", Harbour: "Pier 7", City: "Dubai", Country: "UAE"}
	assert.Equal(t, "Marina Walk, Pier 7, Dubai, UAE", loc.Label())

	sparse := &models.Location{Name: "Marina Walk", City: "Dubai"}
	assert.Equal(t, "Marina Walk, Dubai", sparse.Label())
}

func TestPrimaryLinkID(t *testing.T) {
	r := &models.Reservation{
		PaymentLinkID: "MB-LINK-TOP",
		Payments:      []models.Payment{{PaymentLinkID: "MB-LINK-ENTRY"}},
	}
	assert.Equal(t, "MB-LINK-TOP", r.PrimaryLinkID())

	r.PaymentLinkID = ""
	assert.Equal(t, "MB-LINK-ENTRY", r.PrimaryLinkID())

	empty := &models.Reservation{}
	assert.Equal(t, "", empty.PrimaryLinkID())
}

func TestAllPaid(t *testing.T) {
	r := &models.Reservation{Payments: []models.Payment{
		{Status: models.PaymentCompleted},
		{Status: models.PaymentPending},
	}}
	assert.False(t, r.AllPaid())

	r.Payments[1].Status = models.PaymentCompleted
	assert.True(t, r.AllPaid())

	// No payments is never "all paid"
	assert.False(t, (&models.Reservation{}).AllPaid())
}
