// Package app assembles the marketplace services from their stores.
package app

import (
	"fmt"

	"hostly/internal/bookings"
	"hostly/internal/inventory"
	"hostly/internal/memstore"
	"hostly/internal/notifications"
	"hostly/internal/offers"
	"hostly/internal/payments"
	"hostly/internal/reminders"
	"hostly/internal/shared/config"
	"hostly/internal/shared/database"
	"hostly/internal/sweeper"
	"hostly/internal/waitlist"
	"hostly/pkg/logger"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Stores bundles the repositories and the transaction boundary they share
type Stores struct {
	Inventory inventory.Repository
	Waitlist  waitlist.Repository
	Bookings  bookings.Repository
	Payments  payments.Repository
	Tx        database.Transactor
}

func PostgresStores(db *gorm.DB) Stores {
	return Stores{
		Inventory: inventory.NewRepository(db),
		Waitlist:  waitlist.NewRepository(db),
		Bookings:  bookings.NewRepository(db),
		Payments:  payments.NewRepository(db),
		Tx:        database.NewGormTransactor(db),
	}
}

func MemoryStores(store *memstore.Store) Stores {
	return Stores{
		Inventory: store.Inventory(),
		Waitlist:  store.Waitlist(),
		Bookings:  store.Bookings(),
		Payments:  store.Payments(),
		Tx:        store,
	}
}

type Options struct {
	Config   *config.Config
	Stores   Stores
	Notifier notifications.Notifier
	// Redis backs the sweep lock; nil falls back to an in-process lock
	Redis redis.Cmdable
	Clock clockwork.Clock
	Log   *logger.Logger
}

// App holds the wired services
type App struct {
	Config   *config.Config
	Clock    clockwork.Clock
	Log      *logger.Logger
	Notifier notifications.Notifier

	Ledger    *inventory.Ledger
	Issuer    *offers.Issuer
	Inventory inventory.Service
	Waitlist  waitlist.Service
	Bookings  bookings.Service
	Payments  *payments.MockCharger
	Sweeper   *sweeper.Sweeper
	Reminders *reminders.Service
}

func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Load()
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	log := opts.Log
	if log == nil {
		log = logger.GetDefault()
	}
	if opts.Notifier == nil {
		return nil, fmt.Errorf("app: notifier is required")
	}

	fee, err := decimal.NewFromString(cfg.Booking.PlatformFeePercent)
	if err != nil {
		return nil, fmt.Errorf("invalid PLATFORM_FEE_PERCENT %q: %w", cfg.Booking.PlatformFeePercent, err)
	}
	if fee.IsNegative() {
		return nil, fmt.Errorf("PLATFORM_FEE_PERCENT must not be negative")
	}

	stores := opts.Stores
	ledger := inventory.NewLedger(stores.Inventory, clock, log)
	issuer := offers.NewIssuer(clock, cfg.Booking.OfferWindow)
	charger := payments.NewMockCharger(stores.Payments, clock, log)

	waitlistService := waitlist.NewService(stores.Waitlist, ledger, issuer, stores.Tx, opts.Notifier, waitlist.ServiceConfig{
		MaxSeatsPerRequest: cfg.Booking.MaxSeatsPerRequest,
		MaxWaitlistSize:    waitlist.MaxWaitlistSize,
		PublicBaseURL:      cfg.Booking.PublicBaseURL,
	}, log)

	bookingService := bookings.NewService(stores.Bookings, ledger, waitlistService, charger, stores.Tx, opts.Notifier, clock, bookings.ServiceConfig{
		PlatformFeePercent: fee,
		MaxSeatsPerRequest: cfg.Booking.MaxSeatsPerRequest,
	}, log)

	var lock sweeper.Locker
	if opts.Redis != nil {
		lock = sweeper.NewRedisLock(opts.Redis, cfg.Redis.SweepLockKey, cfg.Booking.SweepLockTTL, log)
	} else {
		lock = sweeper.NewLocalLock()
	}

	return &App{
		Config:    cfg,
		Clock:     clock,
		Log:       log,
		Notifier:  opts.Notifier,
		Ledger:    ledger,
		Issuer:    issuer,
		Inventory: inventory.NewService(stores.Inventory, clock, log, cfg.Booking.Currency),
		Waitlist:  waitlistService,
		Bookings:  bookingService,
		Payments:  charger,
		Sweeper:   sweeper.NewSweeper(waitlistService, lock, clock, cfg.Booking.SweepBatchSize, log),
		Reminders: reminders.NewService(stores.Inventory, stores.Bookings, opts.Notifier, clock, log),
	}, nil
}

// NewJobProcessor schedules the sweep and the reminder pass
func (a *App) NewJobProcessor() (*sweeper.JobProcessor, error) {
	return sweeper.NewJobProcessor(a.Sweeper, a.Reminders, a.Clock, &sweeper.JobConfig{
		SweepInterval:    a.Config.Booking.SweepInterval,
		ReminderInterval: a.Config.Booking.ReminderInterval,
		RunOnStart:       true,
	}, a.Log)
}
