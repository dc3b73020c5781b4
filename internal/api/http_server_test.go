package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"woodslot/internal/auth"
	"woodslot/internal/config"
	"woodslot/internal/database"
	"woodslot/internal/events"
	"woodslot/internal/models"
	"woodslot/internal/repository"
	"woodslot/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const (
	testAdmin    = "Claire"
	testPassword = "atelier-bois"
)

var fixedNow = time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC) // a Wednesday

type capturingSender struct {
	mu   sync.Mutex
	sent []string
}

func (c *capturingSender) Send(_ context.Context, to, _, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, to)
	return nil
}

func (c *capturingSender) recipients() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

type testEnv struct {
	server *HTTPServer
	db     *database.DB
	sender *capturingSender
	bus    *events.EventBus
}

func newTestEnv(t *testing.T, httpCfg config.HTTPConfig, quota int) *testEnv {
	t.Helper()

	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	bus := events.NewEventBus()
	sender := &capturingSender{}
	bookingCfg := config.BookingConfig{DailyQuota: quota, WindowDays: models.DefaultWindowDays}

	notifications := service.NewNotificationService(db, sender, bus, "", &logger)
	bookings := service.NewBookingService(db, notifications, bus, bookingCfg, &logger)
	availability := service.NewAvailabilityService(db, db, bus, bookingCfg, &logger)
	authSvc := service.NewAuthService(db, repository.NewMemorySessionRepository(),
		auth.NewManager("0123456789abcdef0123", time.Hour), &logger)
	require.NoError(t, authSvc.SeedAdmin(context.Background(), config.AdminSeed{
		FirstName: testAdmin,
		Password:  testPassword,
	}))

	srv := NewHTTPServer(httpCfg, time.UTC, Services{
		Bookings:      bookings,
		Notifications: notifications,
		Availability:  availability,
		Auth:          authSvc,
	}, db, &logger)
	srv.now = func() time.Time { return fixedNow }

	return &testEnv{server: srv, db: db, sender: sender, bus: bus}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T) *http.Cookie {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/admin/login", map[string]string{
		"firstName": testAdmin,
		"password":  testPassword,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for _, c := range rec.Result().Cookies() {
		if c.Name == models.SessionCookieName {
			return c
		}
	}
	t.Fatal("login did not set a session cookie")
	return nil
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func bookingBody(day string) map[string]any {
	return map[string]any{
		"phoneNumber": "0601020304",
		"firstName":   "Jean",
		"lastName":    "Martin",
		"day":         day,
		"startHour":   9,
		"endHour":     12,
	}
}

func TestDatesStartOnMonday(t *testing.T) {
	env := newTestEnv(t, config.HTTPConfig{}, 10)

	rec := env.do(t, http.MethodGet, "/api/dates", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	days := decodeBody[[]string](t, rec)
	require.Len(t, days, models.DefaultWindowDays)
	assert.Equal(t, "2026-10-12", days[0])
	assert.Equal(t, "2026-10-25", days[len(days)-1])
}

func TestCalendar(t *testing.T) {
	env := newTestEnv(t, config.HTTPConfig{}, 10)

	rec := env.do(t, http.MethodGet, "/api/calendar", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	days := decodeBody[[]models.CalendarDay](t, rec)
	require.Len(t, days, models.DefaultWindowDays)
	assert.False(t, days[0].Selectable, "monday")
	assert.True(t, days[3].Selectable, "thursday")
}

func TestBookUntilFull(t *testing.T) {
	env := newTestEnv(t, config.HTTPConfig{}, 2)
	const day = "2026-10-15"

	for i := 1; i <= 2; i++ {
		rec := env.do(t, http.MethodPost, "/api/book", bookingBody(day))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, int64(i), decodeBody[map[string]int64](t, rec)["id"])
	}

	rec := env.do(t, http.MethodPost, "/api/book", bookingBody(day))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Maximum bookings reached for this date", decodeBody[map[string]string](t, rec)["error"])

	rec = env.do(t, http.MethodGet, "/api/availability/"+day, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[map[string]bool](t, rec)["isFullyBooked"])
}

func TestBookRejectsBadInput(t *testing.T) {
	env := newTestEnv(t, config.HTTPConfig{}, 10)

	rec := env.do(t, http.MethodPost, "/api/book", bookingBody("15/10/2026"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/book", bytes.NewBufferString("{not json"))
	raw := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)

	rec = env.do(t, http.MethodGet, "/api/availability/tomorrow", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotifySubscription(t *testing.T) {
	env := newTestEnv(t, config.HTTPConfig{}, 10)
	body := map[string]string{"email": "jean@example.org", "day": "2026-10-16"}

	rec := env.do(t, http.MethodPost, "/api/notify", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "You will be notified when this date becomes available.", decodeBody[map[string]string](t, rec)["message"])

	rec = env.do(t, http.MethodPost, "/api/notify", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "You are already subscribed for notifications for this date.", decodeBody[map[string]string](t, rec)["error"])

	rec = env.do(t, http.MethodPost, "/api/notify", map[string]string{"email": "nope", "day": "2026-10-16"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRoutesRequireSession(t *testing.T) {
	env := newTestEnv(t, config.HTTPConfig{}, 10)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodDelete, "/api/bookings/1"},
		{http.MethodGet, "/api/admin/bookings?day=2026-10-15"},
		{http.MethodGet, "/api/admin/bookings/export?day=2026-10-15"},
		{http.MethodGet, "/api/availability-status/2026-10-15"},
		{http.MethodPost, "/api/admin/availability-status"},
		{http.MethodGet, "/api/admin/name"},
		{http.MethodPost, "/admin/logout"},
	}

	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			rec := env.do(t, rt.method, rt.path, nil)
			assert.Equal(t, http.StatusForbidden, rec.Code)
		})
	}

	forged := &http.Cookie{Name: models.SessionCookieName, Value: "not-a-token"}
	rec := env.do(t, http.MethodGet, "/api/admin/name", nil, forged)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t, config.HTTPConfig{}, 10)

	rec := env.do(t, http.MethodPost, "/admin/login", map[string]string{"firstName": testAdmin, "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/admin/login", map[string]string{"firstName": testAdmin, "password": testPassword})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[map[string]any](t, rec)
	assert.Positive(t, resp["adminId"])
	assert.NotEmpty(t, resp["token"])

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, models.SessionCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, "/", cookies[0].Path)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/name", nil)
	req.Header.Set("Authorization", "Bearer "+resp["token"].(string))
	bearer := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(bearer, req)
	require.Equal(t, http.StatusOK, bearer.Code)
	assert.Equal(t, testAdmin, decodeBody[map[string]string](t, bearer)["name"])
}

func TestLoginAttemptsAreLimited(t *testing.T) {
	env := newTestEnv(t, config.HTTPConfig{}, 10)
	body := map[string]string{"firstName": testAdmin, "password": "wrong"}

	for i := 0; i < 5; i++ {
		rec := env.do(t, http.MethodPost, "/admin/login", body)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := env.do(t, http.MethodPost, "/admin/login", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestLoginLockoutIsPerClient(t *testing.T) {
	env := newTestEnv(t, config.HTTPConfig{}, 10)

	login := func(remoteAddr, forwarded, password string) int {
		body, err := json.Marshal(map[string]string{"firstName": testAdmin, "password": password})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/admin/login", bytes.NewReader(body))
		req.RemoteAddr = remoteAddr
		if forwarded != "" {
			req.Header.Set("X-Forwarded-For", forwarded)
		}
		rec := httptest.NewRecorder()
		env.server.Handler().ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusUnauthorized, login("198.51.100.66:4000", "", "wrong"))
	}
	// A forged header does not give the same peer a fresh counter.
	assert.Equal(t, http.StatusTooManyRequests, login("198.51.100.66:4001", "203.0.113.1", "wrong"))

	for i := 0; i < 6; i++ {
		assert.Equal(t, http.StatusOK, login("198.51.100.7:5000", "", testPassword), "login #%d", i+1)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	env := newTestEnv(t, config.HTTPConfig{}, 10)
	cookie := env.login(t)

	rec := env.do(t, http.MethodGet, "/api/admin/name", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testAdmin, decodeBody[map[string]string](t, rec)["name"])

	rec = env.do(t, http.MethodPost, "/admin/logout", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Empty(t, cleared[0].Value)
	assert.Negative(t, cleared[0].MaxAge)

	rec = env.do(t, http.MethodGet, "/api/admin/name", nil, cookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeleteBookingNotifiesSubscribers(t *testing.T) {
	env := newTestEnv(t, config.HTTPConfig{}, 1)
	const day = "2026-10-16"
	cookie := env.login(t)

	var freed []*events.Event
	env.bus.Subscribe(events.EventSlotFreed, func(e *events.Event) error {
		freed = append(freed, e)
		return nil
	})

	rec := env.do(t, http.MethodPost, "/api/book", bookingBody(day))
	require.Equal(t, http.StatusOK, rec.Code)
	id := decodeBody[map[string]int64](t, rec)["id"]

	rec = env.do(t, http.MethodPost, "/api/notify", map[string]string{"email": "jean@example.org", "day": day})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/bookings/"+strconv.FormatInt(id, 10), nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "Booking deleted successfully.", resp["message"])
	assert.EqualValues(t, 1, resp["notified"])
	assert.EqualValues(t, 0, resp["failed"])
	assert.Equal(t, []string{"jean@example.org"}, env.sender.recipients())
	assert.Len(t, freed, 1)

	rec = env.do(t, http.MethodGet, "/api/availability/"+day, nil)
	assert.False(t, decodeBody[map[string]bool](t, rec)["isFullyBooked"])

	// The subscription was consumed, so subscribing again is accepted.
	rec = env.do(t, http.MethodPost, "/api/notify", map[string]string{"email": "jean@example.org", "day": day})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeleteBookingEdgeCases(t *testing.T) {
	env := newTestEnv(t, config.HTTPConfig{}, 10)
	cookie := env.login(t)

	rec := env.do(t, http.MethodDelete, "/api/bookings/abc", nil, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/bookings/999", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decodeBody[map[string]any](t, rec)["notified"])
	assert.Empty(t, env.sender.recipients())
}

func TestListAndExportBookings(t *testing.T) {
	env := newTestEnv(t, config.HTTPConfig{}, 10)
	const day = "2026-10-15"
	cookie := env.login(t)

	for i := 0; i < 3; i++ {
		rec := env.do(t, http.MethodPost, "/api/book", bookingBody(day))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/api/admin/bookings?day="+day, nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]models.Booking](t, rec)
	require.Len(t, list, 3)
	assert.Equal(t, "Jean", list[0].FirstName)

	rec = env.do(t, http.MethodGet, "/api/admin/bookings?day=", nil, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/admin/bookings/export?day="+day, nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "bookings_2026-10-15.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(exportSheetName)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, exportHeaders, rows[1])
	assert.Equal(t, "Martin", rows[2][2])
	assert.Equal(t, "09:00", rows[2][4])
}

func TestAvailabilityOverride(t *testing.T) {
	env := newTestEnv(t, config.HTTPConfig{}, 10)
	const day = "2026-10-19" // a Monday, closed by default
	cookie := env.login(t)

	rec := env.do(t, http.MethodGet, "/api/availability-status/"+day, nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "{}", rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/admin/availability-status",
		map[string]any{"date": day, "comment": "stage"}, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/admin/availability-status",
		map[string]any{"date": day, "status": true, "comment": "Atelier exceptionnel"}, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/availability-status/"+day, nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	override := decodeBody[map[string]any](t, rec)
	assert.NotZero(t, override["id"])
	assert.Equal(t, true, override["status"])
	assert.Equal(t, "Atelier exceptionnel", override["comment"])

	rec = env.do(t, http.MethodGet, "/api/calendar", nil)
	days := decodeBody[[]models.CalendarDay](t, rec)
	require.Len(t, days, models.DefaultWindowDays)
	assert.Equal(t, day, days[7].Day)
	assert.True(t, days[7].Selectable)
	assert.Equal(t, "Atelier exceptionnel", days[7].Comment)
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, config.HTTPConfig{}, 10)

	rec := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, env.db.Close())
	rec = env.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequestIDHeader(t *testing.T) {
	env := newTestEnv(t, config.HTTPConfig{}, 10)

	rec := env.do(t, http.MethodGet, "/healthz", nil)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-42")
	echoed := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(echoed, req)
	assert.Equal(t, "req-42", echoed.Header().Get(requestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, config.HTTPConfig{AllowedOrigins: []string{"http://localhost:5173"}}, 10)

	req := httptest.NewRequest(http.MethodOptions, "/api/book", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/api/dates", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestPublicWritesAreRateLimited(t *testing.T) {
	env := newTestEnv(t, config.HTTPConfig{RateLimit: config.RateLimitConfig{RPS: 0.01, Burst: 1}}, 10)

	rec := env.do(t, http.MethodPost, "/api/book", bookingBody("2026-10-15"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/book", bookingBody("2026-10-15"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Reads are not limited.
	rec = env.do(t, http.MethodGet, "/api/dates", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWriteServiceErrorHidesInternalErrors(t *testing.T) {
	env := newTestEnv(t, config.HTTPConfig{}, 10)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/dates", nil)
	env.server.writeServiceError(rec, req, errors.New("disk I/O error at /var/lib/woodslot.db"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, internalErrorMessage, decodeBody[map[string]string](t, rec)["error"])
}
