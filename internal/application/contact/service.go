package contact

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/portfolio-api/internal/domain"
)

// Service forwards contact messages. Delivery is best-effort on purpose: the
// visitor gets an acceptance either way, failures are only logged.
type Service interface {
	Submit(ctx context.Context, msg domain.ContactMessage)
}

type notifier interface {
	Notify(ctx context.Context, payload interface{}) error
}

type mailer interface {
	SendEmail(to, subject, body string) error
}

type service struct {
	notifier    notifier
	mailer      mailer
	notifyEmail string
	now         func() time.Time
}

// NewService wires the forwarding targets. m may be nil or notifyEmail empty,
// in which case no email copy is sent.
func NewService(n notifier, m mailer, notifyEmail string) Service {
	return &service{notifier: n, mailer: m, notifyEmail: notifyEmail, now: time.Now}
}

func (s *service) Submit(ctx context.Context, msg domain.ContactMessage) {
	msg.ReceivedAt = s.now().UTC()

	if err := s.notifier.Notify(ctx, msg); err != nil {
		slog.Error("contact webhook delivery failed", "err", err)
	}

	if s.mailer != nil && s.notifyEmail != "" {
		body := fmt.Sprintf("From: %s <%s>\n\n%s", msg.Name, msg.Email, msg.Message)
		subject := msg.Subject
		if subject == "" {
			subject = "New contact message"
		}
		if err := s.mailer.SendEmail(s.notifyEmail, subject, body); err != nil {
			slog.Error("contact email copy failed", "err", err)
		}
	}
}
