package coupons

import (
	"context"

	"github.com/uptrace/bun"

	"ms-booking/internal/models"
)

type Store struct {
	Bun *bun.DB
}

// GetCouponByID → fetch one coupon by its ID
func (s *Store) GetCouponByID(ctx context.Context, id string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := s.Bun.NewSelect().
		Model(&coupon).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// GetCouponByCode → fetch one coupon by its normalized code
func (s *Store) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := s.Bun.NewSelect().
		Model(&coupon).
		Where("code = ?", models.NormalizeCouponCode(code)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// IncrementUsage bumps the redemption counter in a single statement so
// concurrent redemptions never lose a count.
func (s *Store) IncrementUsage(ctx context.Context, id string) error {
	_, err := s.Bun.NewUpdate().
		Model((*models.Coupon)(nil)).
		Set("usage_count = usage_count + 1").
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// CreateCoupon → insert new coupon, code normalized first
func (s *Store) CreateCoupon(ctx context.Context, coupon *models.Coupon) error {
	coupon.Code = models.NormalizeCouponCode(coupon.Code)
	_, err := s.Bun.NewInsert().Model(coupon).Exec(ctx)
	return err
}
