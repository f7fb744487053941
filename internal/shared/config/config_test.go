package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 12*time.Hour, cfg.Booking.OfferWindow)
	assert.Equal(t, 30*time.Minute, cfg.Booking.SweepInterval)
	assert.Equal(t, "10", cfg.Booking.PlatformFeePercent)
	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Contains(t, cfg.Database.DSN, "dbname=hostly_db")
	assert.Equal(t, "/api/v1", cfg.GetAPIBasePath())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("OFFER_WINDOW", "90m")
	t.Setenv("SWEEP_BATCH_SIZE", "25")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("RATE_LIMIT_ENABLED", "false")

	cfg := Load()

	assert.Equal(t, 90*time.Minute, cfg.Booking.OfferWindow)
	assert.Equal(t, 25, cfg.Booking.SweepBatchSize)
	assert.True(t, cfg.UsesMemoryStore())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("OFFER_WINDOW", "soon")
	t.Setenv("SWEEP_BATCH_SIZE", "many")

	cfg := Load()

	assert.Equal(t, 12*time.Hour, cfg.Booking.OfferWindow)
	assert.Equal(t, 100, cfg.Booking.SweepBatchSize)
}
