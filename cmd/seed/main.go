package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"hostly/internal/app"
	"hostly/internal/bookings"
	"hostly/internal/inventory"
	"hostly/internal/notifications"
	"hostly/internal/shared/config"
	"hostly/internal/shared/database"
	"hostly/internal/shared/identity"
	"hostly/internal/waitlist"
	"hostly/pkg/logger"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
)

type Seeder struct {
	db  *database.DB
	app *app.App
}

type seedEvent struct {
	title    string
	startsIn time.Duration
	capacity int
	price    string
	mode     inventory.BookingMode
	guests   []int // seats per booking attempt, in order
}

var seedEvents = []seedEvent{
	{title: "Rooftop Jazz Evening", startsIn: 72 * time.Hour, capacity: 40, price: "35.00", mode: inventory.ModeInstant, guests: []int{2, 4, 2, 1}},
	{title: "Sourdough Workshop", startsIn: 20 * time.Hour, capacity: 8, price: "60.00", mode: inventory.ModeRequest, guests: []int{2, 2, 2, 2, 3, 1}},
	{title: "Vineyard Supper Club", startsIn: 2 * time.Hour, capacity: 12, price: "120.00", mode: inventory.ModeInstant, guests: []int{4, 4, 4, 2}},
	{title: "Sunrise Kayak Tour", startsIn: 14 * 24 * time.Hour, capacity: 6, price: "45.50", mode: inventory.ModeRequest, guests: []int{3, 3, 2}},
}

func main() {
	fmt.Println("🌱 Starting Hostly Database Seeder...")

	cfg := config.Load()
	if cfg.UsesMemoryStore() {
		log.Fatalf("STORE_DRIVER=memory has nothing to seed")
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := app.Migrate(db.PostgreSQL); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	appLogger := logger.GetDefault()
	clock := clockwork.NewRealClock()
	dispatcher := notifications.NewDispatcher(notifications.NewLogSender(appLogger), appLogger, clock, cfg.Booking.NotificationTimeout)
	defer dispatcher.Wait()

	application, err := app.New(app.Options{
		Config:   cfg,
		Stores:   app.PostgresStores(db.PostgreSQL),
		Notifier: dispatcher,
		Clock:    clock,
		Log:      appLogger,
	})
	if err != nil {
		log.Fatalf("Failed to assemble services: %v", err)
	}

	seeder := &Seeder{db: db, app: application}

	fmt.Println("\n🧹 Cleaning database...")
	if err := seeder.CleanDatabase(); err != nil {
		log.Fatalf("Failed to clean database: %v", err)
	}
	fmt.Println("✅ Database cleaned successfully")

	fmt.Println("\n🌱 Seeding database...")
	if err := seeder.SeedAll(context.Background()); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}
	fmt.Println("✅ Database seeded successfully")

	fmt.Println("\n🎉 Seeding completed! Database is ready for testing.")
}

// CleanDatabase truncates all tables, children first
func (s *Seeder) CleanDatabase() error {
	tables := []string{
		"payments",
		"bookings",
		"waitlist_entries",
		"event_inventories",
	}

	tx := s.db.PostgreSQL.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	for _, table := range tables {
		fmt.Printf("  Truncating table: %s\n", table)
		if err := tx.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return tx.Commit().Error
}

// SeedAll publishes the sample events and books them until they overflow
// into their waitlists
func (s *Seeder) SeedAll(ctx context.Context) error {
	host := identity.Actor{UserID: uuid.New(), Email: "host@hostly.app", Role: identity.RoleHost}
	fmt.Printf("  Host: %s (%s)\n", host.Email, host.UserID)

	for _, ev := range seedEvents {
		inv, err := s.app.Inventory.Publish(ctx, host, inventory.PublishEventRequest{
			Title:     ev.title,
			StartsAt:  s.app.Clock.Now().Add(ev.startsIn).Truncate(time.Minute),
			Capacity:  ev.capacity,
			UnitPrice: decimal.RequireFromString(ev.price),
			Mode:      ev.mode,
		})
		if err != nil {
			return fmt.Errorf("failed to publish %q: %w", ev.title, err)
		}
		fmt.Printf("\n  📅 %s (%s, capacity %d, %s)\n", inv.Title, inv.Mode, inv.Capacity, inv.EventID)

		if err := s.seedGuests(ctx, host, inv, ev.guests); err != nil {
			return fmt.Errorf("failed to seed guests for %q: %w", ev.title, err)
		}
	}
	return nil
}

func (s *Seeder) seedGuests(ctx context.Context, host identity.Actor, inv *inventory.EventInventory, guests []int) error {
	for i, seatsWanted := range guests {
		guest := identity.Actor{
			UserID: uuid.New(),
			Email:  fmt.Sprintf("guest%d+%s@hostly.app", i+1, inv.EventID.String()[:8]),
			Role:   identity.RoleUser,
		}

		res, redirect, err := s.app.Bookings.CreateBooking(ctx, guest, bookings.CreateBookingRequest{
			EventID:   inv.EventID.String(),
			SeatCount: seatsWanted,
		})
		if redirect != nil {
			entry, err := s.app.Waitlist.Join(ctx, waitlist.JoinWaitlistRequest{
				EventID:   inv.EventID.String(),
				Email:     guest.Email,
				Name:      fmt.Sprintf("Guest %d", i+1),
				SeatCount: seatsWanted,
			}, &guest.UserID)
			if err != nil {
				return err
			}
			fmt.Printf("    ⏳ %s waitlisted for %d seats at position %d\n", guest.Email, seatsWanted, entry.Position)
			continue
		}
		if err != nil {
			return err
		}

		// Hosts approve every other request so both states show up
		if res.Status == bookings.StatusPending && i%2 == 0 {
			if res, err = s.app.Bookings.ApproveBooking(ctx, host, res.ID); err != nil {
				return err
			}
		}
		fmt.Printf("    🎟️  %s booked %d seats (%s)\n", guest.Email, seatsWanted, res.Status)
	}

	avail, err := s.app.Inventory.Availability(ctx, inv.EventID)
	if err != nil {
		return err
	}
	fmt.Printf("    Available: %d of %d\n", avail.Available, avail.Capacity)
	return nil
}
