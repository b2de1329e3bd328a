package coupons_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-booking/internal/coupons"
	"ms-booking/internal/models"
)

func setupTestStore(t *testing.T) (*coupons.Store, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = bunDB.NewCreateTable().Model((*models.Coupon)(nil)).Exec(context.Background())
	if err != nil {
		t.Fatalf("Failed to create coupons table: %v", err)
	}

	return &coupons.Store{Bun: bunDB}, bunDB
}

func TestCreateCouponNormalizesCode(t *testing.T) {
	store, bunDB := setupTestStore(t)
	defer bunDB.Close()

	coupon := &models.Coupon{
		ID:       "c1",
		Code:     "  welcome10 ",
		Type:     models.CouponPercentage,
		Amount:   10,
		IsActive: true,
	}
	assert.NoError(t, store.CreateCoupon(context.Background(), coupon))
	assert.Equal(t, "WELCOME10", coupon.Code)

	// Lookup normalizes the caller's code too
	got, err := store.GetCouponByCode(context.Background(), "welcome10")
	assert.NoError(t, err)
	assert.Equal(t, "c1", got.ID)

	got, err = store.GetCouponByID(context.Background(), "c1")
	assert.NoError(t, err)
	assert.Equal(t, "WELCOME10", got.Code)
}

func TestGetCouponMissing(t *testing.T) {
	store, bunDB := setupTestStore(t)
	defer bunDB.Close()

	_, err := store.GetCouponByCode(context.Background(), "NOPE")
	assert.Error(t, err)

	_, err = store.GetCouponByID(context.Background(), "nope")
	assert.Error(t, err)
}

func TestIncrementUsage(t *testing.T) {
	store, bunDB := setupTestStore(t)
	defer bunDB.Close()

	coupon := &models.Coupon{ID: "c1", Code: "SUMMER", Type: models.CouponFixed, Amount: 100, IsActive: true}
	assert.NoError(t, store.CreateCoupon(context.Background(), coupon))

	assert.NoError(t, store.IncrementUsage(context.Background(), "c1"))
	assert.NoError(t, store.IncrementUsage(context.Background(), "c1"))

	got, err := store.GetCouponByID(context.Background(), "c1")
	assert.NoError(t, err)
	assert.Equal(t, int64(2), got.UsageCount)
}
