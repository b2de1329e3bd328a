package pricing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ms-booking/internal/models"
)

// BilledHours returns the chargeable hours for a charter window. Any
// started hour bills in full. A window that does not move forward in
// time bills zero hours.
func BilledHours(start, end time.Time) int {
	diff := end.Sub(start)
	if diff <= 0 {
		return 0
	}
	hours := int(diff / time.Hour)
	if diff%time.Hour != 0 {
		hours++
	}
	return hours
}

// BasePrice prices a charter from snapshot rates. At 24 hours or more
// the daily rate takes over and any started day bills in full.
func BasePrice(start, end time.Time, hourlyPrice, dailyPrice int64) int64 {
	hours := BilledHours(start, end)
	if hours == 0 {
		return 0
	}
	if hours >= 24 {
		days := int64(hours / 24)
		if hours%24 != 0 {
			days++
		}
		return days * dailyPrice
	}
	return int64(hours) * hourlyPrice
}

// ruleMatches checks whether a pricing rule covers the charter start.
func ruleMatches(rule models.PricingRule, start time.Time) bool {
	switch rule.DateMode {
	case models.DateModeDate:
		if rule.StartDate == nil || rule.EndDate == nil {
			return false
		}
		return !start.Before(*rule.StartDate) && !start.After(*rule.EndDate)
	case models.DateModeDay:
		return strings.EqualFold(rule.Weekday, start.Weekday().String())
	}
	return false
}

// EffectiveMinHours resolves the minimum billable hours for a charter
// start. An explicit date-range rule wins over a weekday rule, which
// wins over the boat default.
func EffectiveMinHours(boat *models.Boat, start time.Time) int {
	var weekdayMin int
	for _, rule := range boat.PricingRules {
		if rule.RuleType != models.RuleMinHours || !ruleMatches(rule, start) {
			continue
		}
		if rule.DateMode == models.DateModeDate {
			return rule.MinHours
		}
		if weekdayMin == 0 {
			weekdayMin = rule.MinHours
		}
	}
	if weekdayMin > 0 {
		return weekdayMin
	}
	return boat.MinHours
}

// specialEventHourly returns an overriding hourly rate derived from a
// matching special-event package, or zero when none applies.
func specialEventHourly(boat *models.Boat, start time.Time) int64 {
	for _, rule := range boat.PricingRules {
		if rule.RuleType != models.RuleSpecialEvent || !ruleMatches(rule, start) {
			continue
		}
		if rule.PackageHours <= 0 || rule.PackagePrice <= 0 {
			continue
		}
		rate := rule.PackagePrice / int64(rule.PackageHours)
		if rule.PackagePrice%int64(rule.PackageHours) != 0 {
			rate++
		}
		return rate
	}
	return 0
}

// Quote prices a charter against a boat, applying minimum-hours rules
// and special-event rates to sub-daily bookings, then extras. Invalid
// windows quote zero rather than erroring; validation lives with the
// caller.
func Quote(boat *models.Boat, start, end time.Time, extras []models.ExtraItem) int64 {
	hours := BilledHours(start, end)
	var total int64
	if hours > 0 && hours < 24 {
		if min := EffectiveMinHours(boat, start); hours < min {
			hours = min
		}
		hourly := boat.HourlyPrice
		if rate := specialEventHourly(boat, start); rate > 0 {
			hourly = rate
		}
		if hours >= 24 {
			total = BasePrice(start, start.Add(time.Duration(hours)*time.Hour), hourly, boat.DailyPrice)
		} else {
			total = int64(hours) * hourly
		}
	} else {
		total = BasePrice(start, end, boat.HourlyPrice, boat.DailyPrice)
	}

	for _, extra := range extras {
		if extra.Quantity > 0 && extra.UnitPrice > 0 {
			total += extra.UnitPrice * int64(extra.Quantity)
		}
	}
	return total
}

// ApplyBoatDiscount reduces the total by the first active applicable
// discount. Fixed and percentage apply unconditionally; the bulk
// variants require the booked hours to reach their threshold.
func ApplyBoatDiscount(total int64, hours int, discounts []models.BoatDiscount) int64 {
	for _, d := range discounts {
		if !d.Active {
			continue
		}
		switch d.Type {
		case models.DiscountFixed:
			return clampNonNegative(total - d.Amount)
		case models.DiscountPercentage:
			return percentOff(total, d.Percent)
		case models.DiscountBulkFixed:
			if hours >= d.MinHours {
				return clampNonNegative(total - d.Amount)
			}
		case models.DiscountBulkPercentage:
			if hours >= d.MinHours {
				return percentOff(total, d.Percent)
			}
		}
	}
	return total
}

// ApplyCoupon reduces the total by a usable coupon. Fixed coupons are
// capped at the total; percentage coupons round to whole AED.
func ApplyCoupon(total int64, coupon *models.Coupon, boatID string, now time.Time) int64 {
	if coupon == nil || !coupon.Usable(now) || !coupon.AppliesToBoat(boatID) {
		return total
	}
	switch coupon.Type {
	case models.CouponFixed:
		return clampNonNegative(total - coupon.Amount)
	case models.CouponPercentage:
		return percentOff(total, int(coupon.Amount))
	}
	return total
}

// ShouldRecalculate decides whether the server recomputes the price.
// Prices are always recomputed when the caller supplied none. On
// operator updates a supplied price that merely echoes the stored
// value does not pin it when the booking inputs changed.
func ShouldRecalculate(hasExplicitPrice, operatorUpdate, inputsChanged, priceUnchanged bool) bool {
	if !hasExplicitPrice {
		return true
	}
	return operatorUpdate && inputsChanged && priceUnchanged
}

func percentOff(total int64, percent int) int64 {
	if percent <= 0 {
		return total
	}
	if percent >= 100 {
		return 0
	}
	remaining := decimal.NewFromInt(total).
		Mul(decimal.NewFromInt(int64(100 - percent))).
		Div(decimal.NewFromInt(100)).
		Round(0)
	return remaining.IntPart()
}

func clampNonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
