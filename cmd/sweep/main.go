// Command sweep runs one reconciliation pass and prints its result. It is
// meant for cron or manual recovery when the server's scheduler is off.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hostly/internal/app"
	"hostly/internal/notifications"
	"hostly/internal/shared/apperr"
	"hostly/internal/shared/config"
	"hostly/internal/shared/database"
	"hostly/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
)

func main() {
	timeout := flag.Duration("timeout", 5*time.Minute, "abort the sweep after this long")
	withReminders := flag.Bool("reminders", false, "also send due event reminders")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	if cfg.UsesMemoryStore() {
		log.Fatalf("STORE_DRIVER=memory keeps no state between processes; nothing to sweep")
	}

	appLogger := logger.GetDefault()

	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	sender, closeSender, err := app.NewSender(cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to initialize notification sender: %v", err)
	}
	defer closeSender()

	clock := clockwork.NewRealClock()
	dispatcher := notifications.NewDispatcher(sender, appLogger, clock, cfg.Booking.NotificationTimeout)
	defer dispatcher.Wait()

	opts := app.Options{
		Config:   cfg,
		Stores:   app.PostgresStores(db.PostgreSQL),
		Notifier: dispatcher,
		Clock:    clock,
		Log:      appLogger,
	}
	if db.Redis != nil {
		opts.Redis = db.Redis
	}
	application, err := app.New(opts)
	if err != nil {
		log.Fatalf("Failed to assemble services: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	result, err := application.Sweeper.Run(ctx)
	if errors.Is(err, apperr.ErrSweepInProgress) {
		fmt.Fprintln(os.Stderr, "another sweep holds the lock; exiting")
		return
	}
	if result != nil {
		out, _ := json.Marshal(result)
		fmt.Println(string(out))
	}
	if err != nil {
		dispatcher.Wait()
		log.Fatalf("Sweep failed: %v", err)
	}

	if *withReminders {
		sent, err := application.Reminders.Run(ctx)
		if err != nil {
			dispatcher.Wait()
			log.Fatalf("Reminder pass failed: %v", err)
		}
		fmt.Printf("reminders: %d sent (%d day-before, %d 3h)\n", sent.Total(), sent.Sent24h, sent.Sent3h)
	}
}
