package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"woodslot/internal/auth"
	"woodslot/internal/config"
	"woodslot/internal/database"
	"woodslot/internal/domain"
	"woodslot/internal/models"

	"github.com/rs/zerolog"
)

const (
	loginAttemptLimit  = 5
	loginAttemptWindow = 15 * time.Minute
)

type AuthService struct {
	admins   domain.AdminRepository
	sessions domain.SessionRepository
	tokens   *auth.Manager
	logger   *zerolog.Logger
}

func NewAuthService(admins domain.AdminRepository, sessions domain.SessionRepository, tokens *auth.Manager, logger *zerolog.Logger) *AuthService {
	return &AuthService{
		admins:   admins,
		sessions: sessions,
		tokens:   tokens,
		logger:   logger,
	}
}

// SeedAdmin creates or updates the configured administrator. An empty seed is
// a no-op.
func (s *AuthService) SeedAdmin(ctx context.Context, seed config.AdminSeed) error {
	if seed.FirstName == "" {
		return nil
	}

	hash := seed.PasswordHash
	if hash == "" {
		if seed.Password == "" {
			return fmt.Errorf("admin seed %q has no password", seed.FirstName)
		}
		var err error
		if hash, err = auth.HashPassword(seed.Password); err != nil {
			return fmt.Errorf("hash admin password: %w", err)
		}
	}

	admin := &models.Admin{FirstName: seed.FirstName, PasswordHash: hash}
	if err := s.admins.UpsertAdmin(ctx, admin); err != nil {
		return err
	}
	s.logger.Info().Int64("admin_id", admin.ID).Str("first_name", admin.FirstName).Msg("admin seeded")
	return nil
}

type clientAddrKey struct{}

// WithClientAddr tags ctx with the caller's network address. Login attempts
// are counted per first name and address.
func WithClientAddr(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, clientAddrKey{}, addr)
}

func loginAttemptKey(ctx context.Context, firstName string) string {
	key := "login:" + strings.ToLower(firstName)
	if addr, _ := ctx.Value(clientAddrKey{}).(string); addr != "" {
		key += "@" + addr
	}
	return key
}

// Authenticate checks the credentials and opens a session. Only failed
// verifications are counted; once loginAttemptLimit failures accumulate in
// the window every attempt from that client for that name is refused, and a
// successful login clears the counter.
func (s *AuthService) Authenticate(ctx context.Context, firstName, password string) (*models.Session, error) {
	firstName = strings.TrimSpace(firstName)
	if firstName == "" || password == "" {
		return nil, fmt.Errorf("%w: firstName and password are required", ErrValidation)
	}

	attemptKey := loginAttemptKey(ctx, firstName)
	failures, err := s.sessions.AttemptCount(ctx, attemptKey)
	if err != nil {
		return nil, err
	}
	if failures >= loginAttemptLimit {
		s.logger.Warn().Str("first_name", firstName).Msg("login rate limit exceeded")
		return nil, ErrTooManyAttempts
	}

	admin, err := s.admins.GetAdminByFirstName(ctx, firstName)
	if errors.Is(err, database.ErrAdminNotFound) {
		return nil, s.loginFailed(ctx, attemptKey, firstName)
	}
	if err != nil {
		return nil, err
	}
	if !auth.VerifyPassword(admin.PasswordHash, password) {
		return nil, s.loginFailed(ctx, attemptKey, firstName)
	}

	token, claims, err := s.tokens.GenerateToken(admin.ID, admin.FirstName)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}

	session := &models.Session{
		ID:        claims.ID,
		AdminID:   admin.ID,
		FirstName: admin.FirstName,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if err := s.sessions.SetSession(ctx, session, s.tokens.TTL()); err != nil {
		return nil, err
	}

	if err := s.sessions.ResetRateLimit(ctx, attemptKey); err != nil {
		s.logger.Warn().Err(err).Msg("failed to reset login attempts")
	}

	s.logger.Info().Int64("admin_id", admin.ID).Msg("admin logged in")
	session.Token = token
	return session, nil
}

// loginFailed records a failed verification and returns the error to report.
func (s *AuthService) loginFailed(ctx context.Context, attemptKey, firstName string) error {
	s.logger.Info().Str("first_name", firstName).Msg("login failed")
	if _, err := s.sessions.CheckRateLimit(ctx, attemptKey, loginAttemptLimit, loginAttemptWindow); err != nil {
		s.logger.Warn().Err(err).Msg("failed to record login attempt")
	}
	return ErrInvalidCredentials
}

// Validate resolves a token to its live session. Missing, malformed, expired
// and revoked tokens all yield ErrUnauthorized.
func (s *AuthService) Validate(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}

	claims, err := s.tokens.ParseToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	session, err := s.sessions.GetSession(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("%w: session revoked", ErrUnauthorized)
	}

	adminID, err := claims.AdminID()
	if err != nil || adminID != session.AdminID {
		return nil, fmt.Errorf("%w: session mismatch", ErrUnauthorized)
	}

	admin, err := s.admins.GetAdminByID(ctx, adminID)
	if errors.Is(err, database.ErrAdminNotFound) {
		return nil, fmt.Errorf("%w: admin no longer exists", ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}

	session.ID = claims.ID
	session.FirstName = admin.FirstName
	session.Token = token
	return session, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	session, err := s.Validate(ctx, token)
	if err != nil {
		return err
	}
	if err := s.sessions.DeleteSession(ctx, session.ID); err != nil {
		return err
	}
	s.logger.Info().Int64("admin_id", session.AdminID).Msg("admin logged out")
	return nil
}

func (s *AuthService) AdminName(ctx context.Context, token string) (string, error) {
	session, err := s.Validate(ctx, token)
	if err != nil {
		return "", err
	}
	return session.FirstName, nil
}
