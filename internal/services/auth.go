package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gitshopapp/storefront/internal/auth"
	"github.com/gitshopapp/storefront/internal/logging"
	"github.com/gitshopapp/storefront/internal/observability"
)

const adminSubject = "admin"

var (
	ErrAuthUnavailable    = errors.New("admin auth unavailable")
	ErrInvalidCredentials = errors.New("invalid admin credentials")
)

type LoginResult struct {
	Subject   string
	Token     string
	ExpiresAt time.Time
}

// AuthService signs admins in with the shop password and checks their tokens.
type AuthService struct {
	passwords *auth.PasswordChecker
	tokens    *auth.TokenIssuer
	logger    *slog.Logger
}

func NewAuthService(passwords *auth.PasswordChecker, tokens *auth.TokenIssuer, logger *slog.Logger) *AuthService {
	return &AuthService{passwords: passwords, tokens: tokens, logger: logger}
}

func (s *AuthService) Login(ctx context.Context, password string) (LoginResult, error) {
	if s == nil || s.passwords == nil || s.tokens == nil {
		return LoginResult{}, ErrAuthUnavailable
	}
	meter := observability.MeterFromContext(ctx)
	if !s.passwords.Check(password) {
		observability.CountReason(meter, "admin.login.failed", "invalid_credentials")
		logging.FromContext(ctx, s.logger).Warn("admin login rejected")
		return LoginResult{}, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(adminSubject)
	if err != nil {
		observability.CountReason(meter, "admin.login.failed", "token_issue_failed")
		return LoginResult{}, fmt.Errorf("failed to issue admin token: %w", err)
	}
	meter.Count("admin.login.succeeded", 1)
	return LoginResult{Subject: adminSubject, Token: token, ExpiresAt: expiresAt}, nil
}

// VerifyToken returns the subject of a valid admin bearer token.
func (s *AuthService) VerifyToken(raw string) (string, error) {
	if s == nil || s.tokens == nil {
		return "", ErrAuthUnavailable
	}
	claims, err := s.tokens.Verify(raw)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}
