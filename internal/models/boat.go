package models

import (
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// Pricing rule kinds and date modes.
const (
	RuleMinHours     = "minHours"
	RuleSpecialEvent = "specialEvent"

	DateModeDay  = "day"
	DateModeDate = "date"
)

// Boat discount types.
const (
	DiscountFixed          = "fixed"
	DiscountPercentage     = "percentage"
	DiscountB1G1           = "b1g1"
	DiscountBulkFixed      = "bulk_fixed"
	DiscountBulkPercentage = "bulk_percentage"
)

// PricingRule overrides the boat's minimum hours, or prices a special
// event as a package, for either a weekday or an explicit date range.
type PricingRule struct {
	RuleType  string     `json:"ruleType"`
	DateMode  string     `json:"dateMode"`
	Weekday   string     `json:"weekday,omitempty"`
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	MinHours  int        `json:"minHours,omitempty"`
	// Special events sell a fixed package: PackagePrice over
	// PackageHours, from which the effective hourly rate derives.
	PackagePrice int64 `json:"packagePrice,omitempty"`
	PackageHours int   `json:"packageHours,omitempty"`
}

type BoatDiscount struct {
	Type     string `json:"type"`
	Amount   int64  `json:"amount,omitempty"`
	Percent  int    `json:"percent,omitempty"`
	MinHours int    `json:"minHours,omitempty"`
	Active   bool   `json:"active"`
}

type Boat struct {
	bun.BaseModel `bun:"table:boats"`

	ID           string         `bun:"id,pk" json:"id"`
	Name         string         `bun:"name" json:"name"`
	HourlyPrice  int64          `bun:"hourly_price" json:"price"`
	DailyPrice   int64          `bun:"daily_price" json:"priceDay"`
	MinHours     int            `bun:"min_hours" json:"minHours"`
	Location     Ref            `bun:"location_id" json:"location"`
	PricingRules []PricingRule  `bun:"pricing_rules,type:jsonb" json:"pricingRules,omitempty"`
	Discounts    []BoatDiscount `bun:"discounts,type:jsonb" json:"discounts,omitempty"`
	CreatedAt    time.Time      `bun:"created_at" json:"createdAt"`
	UpdatedAt    time.Time      `bun:"updated_at" json:"updatedAt"`
}

var ErrConflictingDiscounts = errors.New("a fixed and a percentage discount cannot both be active")

// ValidateDiscounts rejects configurations where a fixed and a
// percentage discount are active at the same time.
func (b *Boat) ValidateDiscounts() error {
	var fixed, percentage bool
	for _, d := range b.Discounts {
		if !d.Active {
			continue
		}
		switch d.Type {
		case DiscountFixed:
			fixed = true
		case DiscountPercentage:
			percentage = true
		}
	}
	if fixed && percentage {
		return ErrConflictingDiscounts
	}
	return nil
}

type Location struct {
	bun.BaseModel `bun:"table:locations"`

	ID      string `bun:"id,pk" json:"id"`
	Name    string `bun:"name" json:"name"`
	Harbour string `bun:"harbour" json:"harbour,omitempty"`
	City    string `bun:"city" json:"city,omitempty"`
	Country string `bun:"country" json:"country,omitempty"`
}

// Label renders the location as the human string copied onto
// reservations.
func (l *Location) Label() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{l.Name, l.Harbour, l.City, l.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
