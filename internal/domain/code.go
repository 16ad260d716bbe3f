package domain

import (
	"fmt"
	"time"
)

// Channel names the delivery route a verification code is bound to.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Owner identifies who a verification code belongs to: exactly one of
// Email or Phone. The zero value is invalid.
type Owner struct {
	Email string
	Phone string
}

// Validate enforces the one-channel rule.
func (o Owner) Validate() error {
	if o.Email == "" && o.Phone == "" {
		return fmt.Errorf("email or phone required: %w", ErrBadRequest)
	}
	if o.Email != "" && o.Phone != "" {
		return fmt.Errorf("email and phone are mutually exclusive: %w", ErrBadRequest)
	}
	return nil
}

// Channel returns the delivery channel implied by the populated field.
func (o Owner) Channel() Channel {
	if o.Email != "" {
		return ChannelEmail
	}
	return ChannelSMS
}

// Key returns the canonical owner string stored in the codes table,
// e.g. "email:a@b.com" or "phone:+15550100". Prefixing keeps the two
// identity spaces disjoint so a phone number can never match an email row.
func (o Owner) Key() string {
	if o.Email != "" {
		return "email:" + o.Email
	}
	return "phone:" + o.Phone
}

// VerificationCode is a single-use 6-digit login code.
// PK: code_id. GSI: owner-index (owner, created_at).
// Used flips true exactly once; rows past ExpiresAt are swept by GC.
type VerificationCode struct {
	CodeID    string    `json:"id" dynamodbav:"code_id"`
	Owner     string    `json:"owner" dynamodbav:"owner"`
	Channel   Channel   `json:"channel" dynamodbav:"channel"`
	Code      string    `json:"-" dynamodbav:"code"`
	ExpiresAt int64     `json:"expires_at" dynamodbav:"expires_at"` // Unix seconds, also DynamoDB TTL
	Used      bool      `json:"used" dynamodbav:"used"`
	CreatedAt time.Time `json:"created_at" dynamodbav:"created_at"`
	UserAgent string    `json:"-" dynamodbav:"user_agent"` // audit only
	SourceIP  string    `json:"-" dynamodbav:"source_ip"`  // audit only
}
