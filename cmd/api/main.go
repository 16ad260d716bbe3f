package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/portfolio-api/internal/application/code"
	"github.com/portfolio-api/internal/config"
	"github.com/portfolio-api/internal/infrastructure/dynamo"
	"github.com/portfolio-api/internal/infrastructure/identity"
	s3infra "github.com/portfolio-api/internal/infrastructure/s3"
	"github.com/portfolio-api/internal/infrastructure/smtp"
	"github.com/portfolio-api/internal/infrastructure/sns"
	"github.com/portfolio-api/internal/infrastructure/webhook"
	"github.com/portfolio-api/internal/pkg/secretbox"
	transporthttp "github.com/portfolio-api/internal/transport/http"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)
	codeRepo := dynamo.NewCodeRepo(dynamoClient, cfg.DynamoTables.VerificationCodes)

	// Identity provider client plus local token verification.
	provider := identity.NewClient(cfg)
	verifier := identity.NewTokenVerifier(cfg.IdentityJWTSecret, provider)

	// Sealer for two-factor secrets stored in provider metadata.
	sealer, err := secretbox.New(cfg.SecretSealKey)
	if err != nil {
		log.Fatalf("invalid SECRET_SEAL_KEY: %v", err)
	}

	// S3 avatar store.
	s3Client := s3infra.NewClient(cfg)
	avatarStore := s3infra.NewStore(s3Client, cfg)

	// SMTP mailer.
	mailer := smtp.NewMailer(cfg)

	// SNS SMS sender (optional, graceful fallback).
	var smsSender sns.SMSSender
	if sender, err := sns.NewSender(cfg); err == nil {
		smsSender = sender
	} else {
		log.Printf("WARN: SNS sender not available: %v", err)
	}

	// Contact-form webhook (no-op when unconfigured).
	contactNotifier := webhook.NewNotifier(cfg.ContactWebhookURL)

	deps := &transporthttp.Deps{
		CodeRepo:        codeRepo,
		Identity:        provider,
		Verifier:        verifier,
		Sealer:          sealer,
		Mailer:          mailer,
		SMSSender:       smsSender,
		AvatarStore:     avatarStore,
		ContactNotifier: contactNotifier,
	}

	router := transporthttp.NewRouter(cfg, deps)

	// Periodic cleanup of expired verification codes, in addition to the
	// table's TTL attribute.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go code.NewSweeper(codeRepo, cfg.SweepInterval).Run(sweepCtx)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	stopSweep()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
