package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-booking/internal/config"
	"ms-booking/internal/database/migrations"
	"ms-booking/internal/models"
)

// Development database bootstrap: creates the schema through the
// migration runner when SQL migrations are present, or straight from
// the models otherwise, then seeds sample data on request.

func main() {
	var (
		reset = flag.Bool("reset", false, "drop all tables first")
		seed  = flag.Bool("seed", false, "insert sample data")
	)
	flag.Parse()

	_ = godotenv.Load()

	ctx := context.Background()

	dsn := config.Load().Database.ConnString()

	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer sqldb.Close()

	if err := sqldb.PingContext(ctx); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	db := bun.NewDB(sqldb, pgdialect.New())

	if *reset {
		log.Println("Dropping tables...")
		dropTables(ctx, db)
	}

	if _, err := os.Stat("./migrations"); err == nil {
		log.Println("Running SQL migrations...")
		runner := migrations.NewRunner(db, migrations.MigrateOptions{
			MigrationsDir: "./migrations",
			SeedData:      *seed,
		})
		if err := runner.RunMigrations(); err != nil {
			log.Fatalf("❌ Migrations failed: %v", err)
		}
		defer runner.Close()
	} else {
		log.Println("Creating tables from models...")
		createTables(ctx, db)
	}

	if *seed {
		log.Println("Seeding sample data...")
		seedData(ctx, db)
	}

	log.Println("✅ Done.")
}

func dropTables(ctx context.Context, db *bun.DB) {
	tables := []interface{}{
		(*models.Reservation)(nil),
		(*models.Coupon)(nil),
		(*models.Boat)(nil),
		(*models.Location)(nil),
	}
	for _, m := range tables {
		_, _ = db.NewDropTable().Model(m).IfExists().Cascade().Exec(ctx)
	}
}

func createTables(ctx context.Context, db *bun.DB) {
	tables := []interface{}{
		(*models.Location)(nil),
		(*models.Boat)(nil),
		(*models.Coupon)(nil),
		(*models.Reservation)(nil),
	}
	for _, m := range tables {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			log.Fatalf("❌ Failed to create table for %T: %v", m, err)
		}
	}
}

func seedData(ctx context.Context, db *bun.DB) {
	location := models.Location{
		ID:      "loc001",
		Name:    "Marina Walk",
		Harbour: "Pier 7",
		City:    "Dubai",
		Country: "UAE",
	}
	_, _ = db.NewInsert().Model(&location).Exec(ctx)

	boats := []models.Boat{
		{
			ID:          "boat001",
			Name:        "Sea Breeze 42",
			HourlyPrice: 100,
			DailyPrice:  2000,
			MinHours:    2,
			Location:    models.NewRef("loc001"),
			PricingRules: []models.PricingRule{
				{RuleType: models.RuleMinHours, DateMode: models.DateModeDay, Weekday: "Saturday", MinHours: 4},
			},
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		},
		{
			ID:          "boat002",
			Name:        "Pearl Diver 58",
			HourlyPrice: 250,
			DailyPrice:  4500,
			MinHours:    3,
			Location:    models.NewRef("loc001"),
			Discounts: []models.BoatDiscount{
				{Type: models.DiscountBulkPercentage, Percent: 10, MinHours: 8, Active: true},
			},
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		},
	}
	_, _ = db.NewInsert().Model(&boats).Exec(ctx)

	coupon := models.Coupon{
		ID:              "coupon001",
		Code:            "WELCOME10",
		Type:            models.CouponPercentage,
		Amount:          10,
		IsActive:        true,
		ApplyToAllBoats: true,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	_, _ = db.NewInsert().Model(&coupon).Exec(ctx)
}
