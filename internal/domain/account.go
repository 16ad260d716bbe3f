package domain

import "time"

// AccountMetadata is the slice of provider user-metadata this service reads
// and writes. The provider stores it as an opaque JSON object, so unknown
// keys set by other clients survive round trips untouched.
type AccountMetadata struct {
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	// Two-factor state. TempTwoFactorSecret holds the sealed pending secret
	// between setup and confirmation; TwoFactorSecret is the sealed active one.
	TempTwoFactorSecret string `json:"temp_2fa_secret,omitempty"`
	TwoFactorSecret     string `json:"two_factor_secret,omitempty"`
	TwoFactorEnabled    bool   `json:"two_factor_enabled,omitempty"`
}

// Account is the projection of a provider user record this service works with.
// The provider owns the record; this type never touches local storage.
type Account struct {
	ID        string          `json:"id"`
	Email     string          `json:"email,omitempty"`
	Phone     string          `json:"phone,omitempty"`
	Metadata  AccountMetadata `json:"user_metadata"`
	CreatedAt time.Time       `json:"created_at"`
}

// Sanitized returns a copy safe to serialize in API responses: the sealed
// two-factor secrets stay server-side, only the enabled flag goes out.
func (a *Account) Sanitized() *Account {
	if a == nil {
		return nil
	}
	cp := *a
	cp.Metadata.TempTwoFactorSecret = ""
	cp.Metadata.TwoFactorSecret = ""
	return &cp
}

// Session is a provider-issued session pair.
type Session struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int64    `json:"expires_in"`
	TokenType    string   `json:"token_type,omitempty"`
	Account      *Account `json:"user,omitempty"`
}

// Sanitized returns a copy with the embedded account sanitized.
func (s *Session) Sanitized() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Account = s.Account.Sanitized()
	return &cp
}

type SignupRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	DisplayName string `json:"display_name"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name"`
	AvatarURL   *string `json:"avatar_url"`
}
