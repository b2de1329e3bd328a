package db

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"ms-booking/internal/models"
	"ms-booking/internal/retry"
)

type DB struct {
	Bun *bun.DB
}

// CreateReservation → insert new reservation
func (d *DB) CreateReservation(ctx context.Context, r *models.Reservation) error {
	_, err := d.Bun.NewInsert().Model(r).Exec(ctx)
	return err
}

// GetReservationByID → fetch one reservation by its ID
func (d *DB) GetReservationByID(ctx context.Context, id string) (*models.Reservation, error) {
	var r models.Reservation
	err := d.Bun.NewSelect().
		Model(&r).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// UpdateReservation writes the full document, guarded by the version
// the caller read. A concurrent writer bumps the version first and the
// second write reports a conflict instead of clobbering it.
func (d *DB) UpdateReservation(ctx context.Context, r *models.Reservation) error {
	expected := r.Version
	r.Version = expected + 1

	res, err := d.Bun.NewUpdate().
		Model(r).
		WherePK().
		Where("version = ?", expected).
		Exec(ctx)
	if err != nil {
		r.Version = expected
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		r.Version = expected
		return fmt.Errorf("reservation %s version %d: %w", r.ID, expected, retry.ErrWriteConflict)
	}
	return nil
}

// ListByStatus → fetch reservations in a lifecycle status, oldest first
func (d *DB) ListByStatus(ctx context.Context, status string) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := d.Bun.NewSelect().
		Model(&reservations).
		Where("status = ?", status).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

// StatusCounts → reservations grouped by lifecycle status
func (d *DB) StatusCounts(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Status string `bun:"status"`
		Count  int    `bun:"count"`
	}
	err := d.Bun.NewSelect().
		Model((*models.Reservation)(nil)).
		Column("status").
		ColumnExpr("count(*) AS count").
		Group("status").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
