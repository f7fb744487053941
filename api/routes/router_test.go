package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hostly/internal/app"
	"hostly/internal/memstore"
	"hostly/internal/notifications"
	"hostly/internal/shared/config"
	"hostly/internal/shared/database"
	"hostly/internal/shared/identity"
	"hostly/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "router-test-secret"

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Errors json.RawMessage `json:"errors"`
}

type testServer struct {
	t      *testing.T
	engine *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Load()
	cfg.StoreDriver = "memory"
	cfg.JWT.Secret = testSecret

	log := logger.Discard()
	clock := clockwork.NewRealClock()
	dispatcher := notifications.NewDispatcher(&notifications.RecordingSender{}, log, clock, time.Second)
	t.Cleanup(dispatcher.Wait)

	application, err := app.New(app.Options{
		Config:   cfg,
		Stores:   app.MemoryStores(memstore.New()),
		Notifier: dispatcher,
		Clock:    clock,
		Log:      log,
	})
	require.NoError(t, err)

	engine := gin.New()
	NewRouter(cfg, &database.DB{}, application, nil).SetupRoutes(engine)
	return &testServer{t: t, engine: engine}
}

func (s *testServer) token(role string) string {
	s.t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": uuid.NewString(),
		"email":   uuid.NewString()[:8] + "@example.com",
		"role":    role,
		"type":    "access",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(s.t, err)
	return signed
}

func (s *testServer) do(method, path, token string, body interface{}) (int, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w.Code, env
}

func TestRoutes_SoldOutFlow(t *testing.T) {
	srv := newTestServer(t)
	host := srv.token(identity.RoleHost)

	code, env := srv.do(http.MethodPost, "/api/v1/events", host, map[string]interface{}{
		"title":      "Garden Dinner",
		"starts_at":  time.Now().Add(7 * 24 * time.Hour).UTC().Format(time.RFC3339),
		"capacity":   2,
		"unit_price": "25",
		"mode":       "instant",
	})
	require.Equal(t, http.StatusCreated, code)
	var inv struct {
		EventID string `json:"event_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &inv))
	require.NotEmpty(t, inv.EventID)

	code, env = srv.do(http.MethodPost, "/api/v1/bookings", srv.token(identity.RoleUser), map[string]interface{}{
		"event_id":   inv.EventID,
		"seat_count": 2,
	})
	require.Equal(t, http.StatusCreated, code)
	var booking struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &booking))
	assert.Equal(t, "APPROVED", booking.Status)

	code, env = srv.do(http.MethodPost, "/api/v1/bookings", srv.token(identity.RoleUser), map[string]interface{}{
		"event_id":   inv.EventID,
		"seat_count": 1,
	})
	require.Equal(t, http.StatusConflict, code)
	var redirect struct {
		JoinPath       string `json:"join_path"`
		AvailableSeats int    `json:"available_seats"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &redirect))
	assert.Equal(t, "/api/v1/waitlist", redirect.JoinPath)
	assert.Equal(t, 0, redirect.AvailableSeats)
	assert.Contains(t, string(env.Errors), "INSUFFICIENT_CAPACITY")

	code, env = srv.do(http.MethodGet, "/api/v1/events/"+inv.EventID+"/availability", "", nil)
	require.Equal(t, http.StatusOK, code)
	var avail struct {
		Available int  `json:"available"`
		SoldOut   bool `json:"sold_out"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &avail))
	assert.Equal(t, 0, avail.Available)
	assert.True(t, avail.SoldOut)

	// Guests join without an account
	code, env = srv.do(http.MethodPost, "/api/v1/waitlist", "", map[string]interface{}{
		"event_id":   inv.EventID,
		"email":      "late@example.com",
		"seat_count": 1,
	})
	require.Equal(t, http.StatusCreated, code)
	var entry struct {
		Position int    `json:"position"`
		Status   string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &entry))
	assert.Equal(t, 1, entry.Position)

	code, _ = srv.do(http.MethodPost, "/api/v1/waitlist", "", map[string]interface{}{
		"event_id":   inv.EventID,
		"email":      "LATE@example.com",
		"seat_count": 1,
	})
	assert.Equal(t, http.StatusConflict, code)
}

func TestRoutes_Auth(t *testing.T) {
	srv := newTestServer(t)

	code, _ := srv.do(http.MethodPost, "/api/v1/bookings", "", map[string]interface{}{
		"event_id":   uuid.NewString(),
		"seat_count": 1,
	})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = srv.do(http.MethodPost, "/api/v1/events", srv.token(identity.RoleUser), map[string]interface{}{
		"title":     "Not a host",
		"starts_at": time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
		"capacity":  1,
	})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestRoutes_AdminSweep(t *testing.T) {
	srv := newTestServer(t)

	code, _ := srv.do(http.MethodPost, "/api/v1/admin/sweep", srv.token(identity.RoleHost), nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env := srv.do(http.MethodPost, "/api/v1/admin/sweep", srv.token(identity.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"expired_count":0,"promoted_count":0}`, string(env.Data))

	code, env = srv.do(http.MethodGet, "/api/v1/admin/jobs", srv.token(identity.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), "disabled")
}

func TestRoutes_Health(t *testing.T) {
	srv := newTestServer(t)

	code, env := srv.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", env.Status)

	code, _ = srv.do(http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, code)
}
