package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v9"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestLimiter(cfg *Config) (*RateLimiter, redismock.ClientMock, *clockwork.FakeClock) {
	db, mock := redismock.NewClientMock()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return NewRateLimiterWithClock(db, cfg, clock), mock, clock
}

func testConfig() *Config {
	return &Config{
		Enabled:                 true,
		WindowDuration:          time.Minute,
		DefaultRequests:         60,
		BookingCriticalRequests: 5,
		WhitelistedIPs:          []string{"10.0.0.1"},
	}
}

func expectWindow(mock redismock.ClientMock, clock *clockwork.FakeClock, key string, limit int) *redismock.ExpectedCmd {
	now := clock.Now()
	return mock.ExpectEval(slidingWindowScript, []string{key},
		now.Add(-time.Minute).Unix(), now.Unix(), limit, 60)
}

func TestIsAllowed_UnderLimit(t *testing.T) {
	limiter, mock, clock := setupTestLimiter(testConfig())

	expectWindow(mock, clock, Key("1.2.3.4", RateLimitTypeBookingCritical), 5).
		SetVal([]interface{}{int64(2), int64(3)})

	result, err := limiter.IsAllowed(context.Background(), "1.2.3.4", RateLimitTypeBookingCritical)

	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 5, result.Limit)
	assert.Equal(t, 3, result.Remaining)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsAllowed_OverLimit(t *testing.T) {
	limiter, mock, clock := setupTestLimiter(testConfig())

	expectWindow(mock, clock, Key("1.2.3.4", RateLimitTypeBookingCritical), 5).
		SetVal([]interface{}{int64(6), int64(0)})

	result, err := limiter.IsAllowed(context.Background(), "1.2.3.4", RateLimitTypeBookingCritical)

	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
}

func TestIsAllowed_WhitelistedSkipsRedis(t *testing.T) {
	limiter, mock, _ := setupTestLimiter(testConfig())

	result, err := limiter.IsAllowed(context.Background(), "10.0.0.1", RateLimitTypeDefault)

	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsAllowed_RedisError(t *testing.T) {
	limiter, mock, clock := setupTestLimiter(testConfig())

	expectWindow(mock, clock, Key("1.2.3.4", RateLimitTypeDefault), 60).
		SetErr(errors.New("connection refused"))

	_, err := limiter.IsAllowed(context.Background(), "1.2.3.4", RateLimitTypeDefault)
	assert.Error(t, err)
}

func TestGetRateLimitType(t *testing.T) {
	tests := map[string]RateLimitType{
		"/health":                             RateLimitTypeHealth,
		"/metrics":                            RateLimitTypeHealth,
		"/api/v1/admin/sweep":                 RateLimitTypeAdmin,
		"/api/v1/bookings":                    RateLimitTypeBookingCritical,
		"/api/v1/bookings/:id/cancel":         RateLimitTypeBookingCritical,
		"/api/v1/waitlist/:id/redeem":         RateLimitTypeBookingCritical,
		"/api/v1/bookings/:id":                RateLimitTypeBooking,
		"/api/v1/waitlist":                    RateLimitTypeBooking,
		"/api/v1/users/bookings":              RateLimitTypeBooking,
		"/api/v1/events/:id/availability":     RateLimitTypePublic,
		"/api/v1/something":                   RateLimitTypeDefault,
	}

	for path, want := range tests {
		assert.Equal(t, want, getRateLimitType(path), path)
	}
}

func TestMiddleware_Rejects(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter, mock, clock := setupTestLimiter(testConfig())

	expectWindow(mock, clock, Key("192.0.2.1", RateLimitTypeBookingCritical), 5).
		SetVal([]interface{}{int64(6), int64(0)})

	r := gin.New()
	r.Use(Middleware(limiter))
	r.POST("/api/v1/bookings", func(c *gin.Context) { c.Status(http.StatusCreated) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
}
