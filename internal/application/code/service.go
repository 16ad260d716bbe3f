package code

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/portfolio-api/internal/domain"
	"github.com/portfolio-api/internal/pkg/id"
	"github.com/portfolio-api/internal/pkg/otpcode"
)

type IssueRequest struct {
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	UserAgent string `json:"-"`
	SourceIP  string `json:"-"`
}

type IssueResult struct {
	Channel   domain.Channel
	ExpiresAt time.Time
}

type VerifyRequest struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

type VerifyResult struct {
	Account *domain.Account
	Session *domain.Session
}

// Service is the login-code lifecycle: issue a fresh single-use code and
// verify-and-consume a submitted one.
type Service interface {
	Issue(ctx context.Context, req IssueRequest) (*IssueResult, error)
	Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error)
}

type codeStore interface {
	Put(ctx context.Context, c *domain.VerificationCode) error
	InvalidateUnused(ctx context.Context, owner domain.Owner) error
	FindAndConsume(ctx context.Context, owner domain.Owner, code string, now time.Time) (*domain.VerificationCode, error)
}

type mailer interface {
	SendEmail(to, subject, body string) error
}

type smsSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type accountResolver interface {
	LookupByEmail(ctx context.Context, email string) (*domain.Account, error)
	LookupByPhone(ctx context.Context, phone string) (*domain.Account, error)
	MintSession(ctx context.Context, accountID string) (*domain.Session, error)
}

type service struct {
	store    codeStore
	mailer   mailer
	sms      smsSender
	identity accountResolver
	ttl      time.Duration
	now      func() time.Time
}

type ServiceDeps struct {
	Store    codeStore
	Mailer   mailer
	SMS      smsSender
	Identity accountResolver
	TTL      time.Duration
	Now      func() time.Time // defaults to time.Now
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		store:    deps.Store,
		mailer:   deps.Mailer,
		sms:      deps.SMS,
		identity: deps.Identity,
		ttl:      deps.TTL,
		now:      now,
	}
}

// Issue invalidates any open code for the owner, persists a fresh one, and
// dispatches it. Dispatch failure is logged but does not fail issuance: the
// persisted code stays valid so a retried send or an alternate delivery path
// is not blocked by a transient outage.
func (s *service) Issue(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	owner := domain.Owner{Email: req.Email, Phone: req.Phone}
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.InvalidateUnused(ctx, owner); err != nil {
		return nil, fmt.Errorf("invalidate open codes: %w", err)
	}

	value, err := otpcode.Generate()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.ttl)
	c := &domain.VerificationCode{
		CodeID:    id.New(),
		Owner:     owner.Key(),
		Channel:   owner.Channel(),
		Code:      value,
		ExpiresAt: expiresAt.Unix(),
		Used:      false,
		CreatedAt: now,
		UserAgent: req.UserAgent,
		SourceIP:  req.SourceIP,
	}
	if err := s.store.Put(ctx, c); err != nil {
		return nil, fmt.Errorf("persist code: %w", err)
	}

	if err := s.dispatch(ctx, owner, value); err != nil {
		slog.Warn("code dispatch failed, code remains valid",
			"channel", owner.Channel(), "err", err)
	}
	return &IssueResult{Channel: owner.Channel(), ExpiresAt: expiresAt}, nil
}

// Verify consumes a matching still-valid code and resolves the owning account
// to a fresh session. All unverifiable codes produce the same ErrInvalidCode.
func (s *service) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	owner := domain.Owner{Email: req.Email, Phone: req.Phone}
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if req.Code == "" {
		return nil, fmt.Errorf("code required: %w", domain.ErrBadRequest)
	}

	consumed, err := s.store.FindAndConsume(ctx, owner, req.Code, s.now())
	if err != nil {
		return nil, fmt.Errorf("consume code: %w", err)
	}
	if consumed == nil {
		return nil, domain.ErrInvalidCode
	}

	acct, err := s.resolveAccount(ctx, owner)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// A matched code without an account means provider and code store
			// disagree about this owner. Never surface that to the caller.
			slog.Error("consumed code has no resolvable account", "owner", owner.Key())
			return nil, domain.ErrInvalidCode
		}
		return nil, err
	}

	sess, err := s.identity.MintSession(ctx, acct.ID)
	if err != nil {
		return nil, fmt.Errorf("mint session: %w", err)
	}
	return &VerifyResult{Account: acct, Session: sess}, nil
}

func (s *service) dispatch(ctx context.Context, owner domain.Owner, code string) error {
	if owner.Channel() == domain.ChannelEmail {
		if s.mailer == nil {
			return fmt.Errorf("email delivery not configured")
		}
		return s.mailer.SendEmail(owner.Email, "Your login code",
			fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, int(s.ttl.Minutes())))
	}
	if s.sms == nil {
		return fmt.Errorf("sms delivery not configured")
	}
	return s.sms.SendSMS(ctx, owner.Phone, "Your verification code: "+code)
}

func (s *service) resolveAccount(ctx context.Context, owner domain.Owner) (*domain.Account, error) {
	if owner.Email != "" {
		return s.identity.LookupByEmail(ctx, owner.Email)
	}
	return s.identity.LookupByPhone(ctx, owner.Phone)
}
