package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/portfolio-api/internal/domain"
)

// LoginResult carries the provider session plus whether the account still owes
// a TOTP code. The access token is usable either way; the frontend gates the
// protected views on TwoFactorRequired until verify-2fa succeeds.
type LoginResult struct {
	Session           *domain.Session
	TwoFactorRequired bool
}

type Service interface {
	Signup(ctx context.Context, req domain.SignupRequest) (*domain.Session, error)
	Login(ctx context.Context, req domain.LoginRequest) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.Session, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, recoveryToken, newPassword string) (*domain.Session, error)
}

type identityProvider interface {
	CreateAccount(ctx context.Context, email, password string, meta domain.AccountMetadata) (*domain.Account, error)
	PasswordSignIn(ctx context.Context, email, password string) (*domain.Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (*domain.Session, error)
	SendRecovery(ctx context.Context, email string) error
	ExchangeRecoveryToken(ctx context.Context, token, newPassword string) (*domain.Session, error)
}

type service struct {
	identity identityProvider
}

func NewService(identity identityProvider) Service {
	return &service{identity: identity}
}

func (s *service) Signup(ctx context.Context, req domain.SignupRequest) (*domain.Session, error) {
	meta := domain.AccountMetadata{DisplayName: req.DisplayName}
	account, err := s.identity.CreateAccount(ctx, req.Email, req.Password, meta)
	if err != nil {
		return nil, err
	}
	// Providers configured with email confirmation return the account without
	// a session; sign in explicitly to keep the response shape uniform.
	session, err := s.identity.PasswordSignIn(ctx, req.Email, req.Password)
	if err != nil {
		slog.Warn("signup succeeded but immediate sign-in failed",
			"account_id", account.ID, "err", err)
		return &domain.Session{Account: account}, nil
	}
	if session.Account == nil {
		session.Account = account
	}
	return session, nil
}

func (s *service) Login(ctx context.Context, req domain.LoginRequest) (*LoginResult, error) {
	session, err := s.identity.PasswordSignIn(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	account := session.Account
	if account == nil {
		return nil, fmt.Errorf("provider session missing account: %w", domain.ErrUnauthorized)
	}
	return &LoginResult{
		Session:           session,
		TwoFactorRequired: account.Metadata.TwoFactorEnabled,
	}, nil
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("refresh_token required: %w", domain.ErrBadRequest)
	}
	return s.identity.RefreshSession(ctx, refreshToken)
}

// RequestPasswordReset never reveals whether the email has an account; the
// handler returns the same accepted response either way.
func (s *service) RequestPasswordReset(ctx context.Context, email string) error {
	err := s.identity.SendRecovery(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			slog.Info("password reset requested for unknown email")
			return nil
		}
		return err
	}
	return nil
}

func (s *service) ResetPassword(ctx context.Context, recoveryToken, newPassword string) (*domain.Session, error) {
	if recoveryToken == "" {
		return nil, fmt.Errorf("token required: %w", domain.ErrBadRequest)
	}
	session, err := s.identity.ExchangeRecoveryToken(ctx, recoveryToken, newPassword)
	if err != nil {
		return nil, fmt.Errorf("invalid or expired recovery token: %w", domain.ErrUnauthorized)
	}
	return session, nil
}
