package http

import (
	"github.com/portfolio-api/internal/infrastructure/dynamo"
	"github.com/portfolio-api/internal/infrastructure/identity"
	s3infra "github.com/portfolio-api/internal/infrastructure/s3"
	"github.com/portfolio-api/internal/infrastructure/smtp"
	"github.com/portfolio-api/internal/infrastructure/sns"
	"github.com/portfolio-api/internal/infrastructure/webhook"
	"github.com/portfolio-api/internal/pkg/secretbox"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	CodeRepo        *dynamo.CodeRepo
	Identity        identity.Provider
	Verifier        *identity.TokenVerifier
	Sealer          *secretbox.Sealer
	Mailer          smtp.Mailer
	SMSSender       sns.SMSSender
	AvatarStore     *s3infra.Store
	ContactNotifier *webhook.Notifier
}
