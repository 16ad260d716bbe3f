package identity

import (
	"context"

	"github.com/portfolio-api/internal/domain"
)

// Provider is the narrow capability set this service needs from the managed
// identity backend. Everything account-shaped lives behind it so the backend
// is swappable without touching the code-lifecycle or 2FA logic.
type Provider interface {
	// CreateAccount registers a new email+password account.
	CreateAccount(ctx context.Context, email, password string, meta domain.AccountMetadata) (*domain.Account, error)
	// PasswordSignIn exchanges credentials for a session.
	PasswordSignIn(ctx context.Context, email, password string) (*domain.Session, error)
	// RefreshSession rotates a refresh token into a fresh session.
	RefreshSession(ctx context.Context, refreshToken string) (*domain.Session, error)
	// MintSession issues a session for an account that proved ownership of a
	// delivery channel out of band (our verified login code).
	MintSession(ctx context.Context, accountID string) (*domain.Session, error)
	// GetAccount resolves the account behind a bearer access token.
	GetAccount(ctx context.Context, accessToken string) (*domain.Account, error)
	// LookupByID fetches an account through the admin surface.
	LookupByID(ctx context.Context, accountID string) (*domain.Account, error)
	// LookupByEmail and LookupByPhone resolve the owner of a verified code.
	// domain.ErrNotFound when no account matches.
	LookupByEmail(ctx context.Context, email string) (*domain.Account, error)
	LookupByPhone(ctx context.Context, phone string) (*domain.Account, error)
	// UpdateMetadata patches the account's user metadata and returns the
	// updated record. The patch is a shallow key merge; an explicit zero value
	// clears the key, which is how 2FA disable wipes both secrets in one call.
	UpdateMetadata(ctx context.Context, accountID string, patch map[string]interface{}) (*domain.Account, error)
	// SendRecovery asks the provider to email a password-recovery link.
	SendRecovery(ctx context.Context, email string) error
	// ExchangeRecoveryToken trades a recovery token for a session and sets the
	// new password in the same call.
	ExchangeRecoveryToken(ctx context.Context, token, newPassword string) (*domain.Session, error)
}
