package models

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// Coupon types.
const (
	CouponPercentage = "percentage"
	CouponFixed      = "fixed"
)

type Coupon struct {
	bun.BaseModel `bun:"table:coupons"`

	ID              string     `bun:"id,pk" json:"id"`
	Code            string     `bun:"code" json:"code"`
	Type            string     `bun:"type" json:"type"`
	Amount          int64      `bun:"amount" json:"amount"`
	IsActive        bool       `bun:"is_active" json:"isActive"`
	ExpiresAt       *time.Time `bun:"expires_at" json:"expiresAt,omitempty"`
	UsageCount      int64      `bun:"usage_count" json:"usageCount"`
	ApplyToAllBoats bool       `bun:"apply_to_all_boats" json:"applyToAllBoats"`
	BoatIDs         []string   `bun:"boat_ids,type:jsonb" json:"boats,omitempty"`
	CreatedAt       time.Time  `bun:"created_at" json:"createdAt"`
	UpdatedAt       time.Time  `bun:"updated_at" json:"updatedAt"`
}

// NormalizeCouponCode is applied before any store or compare: codes are
// kept trimmed and upper-case.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Usable reports whether the coupon currently applies: active and not
// past its expiry.
func (c *Coupon) Usable(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return false
	}
	return true
}

// AppliesToBoat checks the boat restriction list.
func (c *Coupon) AppliesToBoat(boatID string) bool {
	if c.ApplyToAllBoats || len(c.BoatIDs) == 0 {
		return true
	}
	for _, id := range c.BoatIDs {
		if id == boatID {
			return true
		}
	}
	return false
}
