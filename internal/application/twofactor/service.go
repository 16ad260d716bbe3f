package twofactor

import (
	"context"
	"fmt"
	"time"

	"github.com/portfolio-api/internal/domain"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// SetupResult is handed back once per setup; the plaintext secret is never
// recoverable from storage afterwards.
type SetupResult struct {
	Secret          string // base32 shared secret, shown once for manual entry
	ProvisioningURI string // otpauth:// URL
	QRCode          string // data:image/png;base64 rendering of the URI
}

// Service drives the TOTP credential state machine:
// DISABLED -> PENDING_SETUP -> ENABLED -> DISABLED, with disable reachable
// from either non-disabled state. Secrets live in provider user metadata,
// sealed at rest.
type Service interface {
	BeginSetup(ctx context.Context, accountID string) (*SetupResult, error)
	ConfirmSetup(ctx context.Context, accountID, submittedOTP string) error
	VerifyLogin(ctx context.Context, accountID, submittedOTP string) (bool, error)
	Disable(ctx context.Context, accountID string) error
}

type accountStore interface {
	LookupByID(ctx context.Context, accountID string) (*domain.Account, error)
	UpdateMetadata(ctx context.Context, accountID string, patch map[string]interface{}) (*domain.Account, error)
}

type secretSealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

type service struct {
	accounts accountStore
	sealer   secretSealer
	issuer   string
	now      func() time.Time
}

type ServiceDeps struct {
	Accounts accountStore
	Sealer   secretSealer
	Issuer   string
	Now      func() time.Time // defaults to time.Now
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		accounts: deps.Accounts,
		sealer:   deps.Sealer,
		issuer:   deps.Issuer,
		now:      now,
	}
}

// BeginSetup generates a fresh shared secret and stores it as the pending
// secret. Re-running setup overwrites a prior pending secret (it carries no
// authentication capability until confirmed) and never touches an active one.
func (s *service) BeginSetup(ctx context.Context, accountID string) (*SetupResult, error) {
	acct, err := s.accounts.LookupByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: accountLabel(acct),
		Period:      totpPeriod,
		SecretSize:  20,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}

	sealed, err := s.sealer.Seal(key.Secret())
	if err != nil {
		return nil, err
	}
	if _, err := s.accounts.UpdateMetadata(ctx, accountID, map[string]interface{}{
		"temp_2fa_secret": sealed,
	}); err != nil {
		return nil, err
	}

	qr, err := renderQR(key)
	if err != nil {
		return nil, err
	}
	return &SetupResult{
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
		QRCode:          qr,
	}, nil
}

// ConfirmSetup promotes the pending secret to active after one successful
// verification. On failure nothing changes.
func (s *service) ConfirmSetup(ctx context.Context, accountID, submittedOTP string) error {
	acct, err := s.accounts.LookupByID(ctx, accountID)
	if err != nil {
		return err
	}
	sealed := acct.Metadata.TempTwoFactorSecret
	if sealed == "" {
		return fmt.Errorf("no two-factor setup in progress: %w", domain.ErrBadRequest)
	}
	secret, err := s.sealer.Open(sealed)
	if err != nil {
		return err
	}
	if !s.validate(submittedOTP, secret) {
		return fmt.Errorf("invalid token: %w", domain.ErrBadRequest)
	}
	// Promote, enable, and clear pending in one metadata write.
	_, err = s.accounts.UpdateMetadata(ctx, accountID, map[string]interface{}{
		"two_factor_secret":  sealed,
		"two_factor_enabled": true,
		"temp_2fa_secret":    "",
	})
	return err
}

// VerifyLogin checks a code against the active secret. No state mutation:
// TOTP codes are replayable within their time step, matching standard TOTP
// semantics (a documented trade-off, not single-use like login codes).
func (s *service) VerifyLogin(ctx context.Context, accountID, submittedOTP string) (bool, error) {
	acct, err := s.accounts.LookupByID(ctx, accountID)
	if err != nil {
		return false, err
	}
	if !acct.Metadata.TwoFactorEnabled || acct.Metadata.TwoFactorSecret == "" {
		return false, fmt.Errorf("two-factor authentication not enabled: %w", domain.ErrBadRequest)
	}
	secret, err := s.sealer.Open(acct.Metadata.TwoFactorSecret)
	if err != nil {
		return false, err
	}
	return s.validate(submittedOTP, secret), nil
}

// Disable clears active and pending secrets in one write. Idempotent.
func (s *service) Disable(ctx context.Context, accountID string) error {
	_, err := s.accounts.UpdateMetadata(ctx, accountID, map[string]interface{}{
		"temp_2fa_secret":    "",
		"two_factor_secret":  "",
		"two_factor_enabled": false,
	})
	return err
}

const totpPeriod = 30

// validate accepts one step of clock skew either side, per RFC 6238 practice.
func (s *service) validate(submittedOTP, secret string) bool {
	ok, err := totp.ValidateCustom(submittedOTP, secret, s.now().UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

func accountLabel(acct *domain.Account) string {
	if acct.Email != "" {
		return acct.Email
	}
	if acct.Phone != "" {
		return acct.Phone
	}
	return acct.ID
}
