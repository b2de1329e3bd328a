package boats

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"ms-booking/internal/models"
)

type Store struct {
	Bun *bun.DB
}

// GetBoat → fetch one boat by its ID
func (s *Store) GetBoat(ctx context.Context, id string) (*models.Boat, error) {
	var boat models.Boat
	err := s.Bun.NewSelect().
		Model(&boat).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &boat, nil
}

// GetLocation → fetch one location by its ID
func (s *Store) GetLocation(ctx context.Context, id string) (*models.Location, error) {
	var location models.Location
	err := s.Bun.NewSelect().
		Model(&location).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &location, nil
}

// SaveBoat validates and upserts a boat. Discount configurations that
// stack a fixed and a percentage discount are rejected at write time.
func (s *Store) SaveBoat(ctx context.Context, boat *models.Boat) error {
	if err := boat.ValidateDiscounts(); err != nil {
		return fmt.Errorf("invalid discounts for boat %s: %w", boat.ID, err)
	}
	_, err := s.Bun.NewInsert().
		Model(boat).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("hourly_price = EXCLUDED.hourly_price").
		Set("daily_price = EXCLUDED.daily_price").
		Set("min_hours = EXCLUDED.min_hours").
		Set("location_id = EXCLUDED.location_id").
		Set("pricing_rules = EXCLUDED.pricing_rules").
		Set("discounts = EXCLUDED.discounts").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}
