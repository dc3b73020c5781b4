package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"woodslot/internal/config"
	"woodslot/internal/database"
	"woodslot/internal/domain"
	"woodslot/internal/models"
	"woodslot/internal/service"

	"github.com/rs/zerolog"
)

const (
	internalErrorMessage = "internal error, try again"
	maxBodyBytes         = 1 << 20
)

// Services groups what the HTTP layer delegates to.
type Services struct {
	Bookings      domain.BookingService
	Notifications domain.NotificationService
	Availability  domain.AvailabilityService
	Auth          domain.AuthService
}

// HealthChecker is satisfied by *database.DB.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// HTTPServer exposes the booking API consumed by the web client.
type HTTPServer struct {
	cfg      config.HTTPConfig
	services Services
	health   HealthChecker
	limiter  *rateLimiter
	loc      *time.Location
	now      func() time.Time
	server   *http.Server
	logger   *zerolog.Logger
}

func NewHTTPServer(cfg config.HTTPConfig, loc *time.Location, services Services, health HealthChecker, logger *zerolog.Logger) *HTTPServer {
	if loc == nil {
		loc = time.Local
	}
	srv := &HTTPServer{
		cfg:      cfg,
		services: services,
		health:   health,
		limiter:  newRateLimiter(cfg.RateLimit, cfg.TrustedProxies),
		loc:      loc,
		now:      time.Now,
		logger:   logger,
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

// Handler returns the full middleware chain around the route table.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/dates", s.handleDates)
	mux.HandleFunc("GET /api/calendar", s.handleCalendar)
	mux.HandleFunc("GET /api/availability/{day}", s.handleAvailability)
	mux.HandleFunc("POST /api/book", s.limiter.limit(s.handleBook))
	mux.HandleFunc("POST /api/notify", s.limiter.limit(s.handleNotify))

	mux.HandleFunc("DELETE /api/bookings/{id}", s.requireAdmin(s.handleDeleteBooking))
	mux.HandleFunc("GET /api/admin/bookings", s.requireAdmin(s.handleListBookings))
	mux.HandleFunc("GET /api/admin/bookings/export", s.requireAdmin(s.handleExportBookings))
	mux.HandleFunc("GET /api/availability-status/{day}", s.requireAdmin(s.handleGetOverride))
	mux.HandleFunc("POST /api/admin/availability-status", s.requireAdmin(s.handleSetOverride))
	mux.HandleFunc("GET /api/admin/name", s.requireAdmin(s.handleAdminName))

	mux.HandleFunc("POST /admin/login", s.limiter.limit(s.handleLogin))
	mux.HandleFunc("POST /admin/logout", s.requireAdmin(s.handleLogout))

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	return accessLog(s.logger, cors(s.cfg.AllowedOrigins, mux))
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Str("public_url", s.cfg.PublicURL).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleDates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.services.Bookings.ListDateWindow(s.now().In(s.loc)))
}

func (s *HTTPServer) handleCalendar(w http.ResponseWriter, r *http.Request) {
	days, err := s.services.Availability.Calendar(r.Context(), s.now().In(s.loc))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	avail, err := s.services.Bookings.CheckAvailability(r.Context(), r.PathValue("day"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"isFullyBooked": avail.IsFullyBooked})
}

func (s *HTTPServer) handleBook(w http.ResponseWriter, r *http.Request) {
	var req models.BookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id, err := s.services.Bookings.Book(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"id": id})
}

func (s *HTTPServer) handleNotify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Day   string `json:"day"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	msg, err := s.services.Notifications.Subscribe(r.Context(), req.Email, req.Day)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

func (s *HTTPServer) handleDeleteBooking(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	report, err := s.services.Bookings.DeleteBooking(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if session := sessionFrom(r.Context()); session != nil {
		s.logger.Info().Int64("booking_id", id).Int64("admin_id", session.AdminID).Msg("booking deleted by admin")
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Booking deleted successfully.",
		"notified": report.Sent(),
		"failed":   report.Failed(),
	})
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.services.Bookings.ListBookings(r.Context(), r.URL.Query().Get("day"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

func (s *HTTPServer) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	day := r.URL.Query().Get("day")
	bookings, err := s.services.Bookings.ListBookings(r.Context(), day)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="bookings_%s.xlsx"`, day))
	if err := writeBookingsXLSX(w, day, bookings); err != nil {
		s.logger.Error().Err(err).Str("day", day).Msg("failed to write bookings export")
	}
}

func (s *HTTPServer) handleGetOverride(w http.ResponseWriter, r *http.Request) {
	override, err := s.services.Availability.GetOverride(r.Context(), r.PathValue("day"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if override == nil {
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, override)
}

func (s *HTTPServer) handleSetOverride(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date    string `json:"date"`
		Status  *bool  `json:"status"`
		Comment string `json:"comment"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Status == nil {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}

	override, err := s.services.Availability.SetOverride(r.Context(), req.Date, *req.Status, req.Comment)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, override)
}

func (s *HTTPServer) handleAdminName(w http.ResponseWriter, r *http.Request) {
	name, err := s.services.Auth.AdminName(r.Context(), sessionToken(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": name})
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FirstName string `json:"firstName"`
		Password  string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := service.WithClientAddr(r.Context(), clientIP(r, s.cfg.TrustedProxies))
	session, err := s.services.Auth.Authenticate(ctx, req.FirstName, req.Password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     models.SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   s.secureCookies(r),
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"adminId": session.AdminID,
		"token":   session.Token,
	})
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Auth.Logout(r.Context(), sessionToken(r)); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     models.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies(r),
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out."})
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health.PingContext(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("readiness check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *HTTPServer) secureCookies(r *http.Request) bool {
	return r.TLS != nil || strings.HasPrefix(s.cfg.PublicURL, "https://")
}

// writeServiceError maps domain errors to status codes. Unexpected errors are
// logged and answered with a generic message.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, database.ErrCapacityExceeded):
		writeError(w, http.StatusBadRequest, "Maximum bookings reached for this date")
	case errors.Is(err, database.ErrDuplicateSubscription):
		writeError(w, http.StatusBadRequest, "You are already subscribed for notifications for this date.")
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, service.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "unauthorized")
	case errors.Is(err, service.ErrTooManyAttempts):
		writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		s.logger.Error().
			Err(err).
			Str("request_id", requestIDFrom(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeError(w, http.StatusInternalServerError, internalErrorMessage)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
