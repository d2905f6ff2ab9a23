package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/credit-relay/internal/application/credit"
	"github.com/credit-relay/internal/application/verification"
	"github.com/credit-relay/internal/config"
	"github.com/credit-relay/internal/infrastructure/deliverable"
	"github.com/credit-relay/internal/infrastructure/dynamo"
	"github.com/credit-relay/internal/infrastructure/google"
	jwtinfra "github.com/credit-relay/internal/infrastructure/jwt"
	"github.com/credit-relay/internal/infrastructure/ledger"
	"github.com/credit-relay/internal/infrastructure/memstore"
	"github.com/credit-relay/internal/infrastructure/outbox"
	s3infra "github.com/credit-relay/internal/infrastructure/s3"
	"github.com/credit-relay/internal/infrastructure/smtp"
	transporthttp "github.com/credit-relay/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	loadEnv()
	cfg := config.Load()
	if cfg.AppEnv != "development" && cfg.AppBaseURL == "" {
		log.Printf("WARN: APP_BASE_URL is unset; verification links follow the request Origin/Host")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := newVerificationStore(ctx, cfg)
	if err != nil {
		log.Fatalf("verification store: %v", err)
	}
	go store.RunSweeper(ctx, cfg.SweepInterval)

	// SMTP relay; a configuration error is kept and reported on every send.
	var primary smtp.Transport
	relay, relayErr := smtp.NewRelay(cfg.SMTP)
	if relayErr != nil {
		log.Printf("WARN: SMTP relay not available: %v", relayErr)
	} else {
		primary = relay
	}
	preview, previews, err := newPreviewOutbox(ctx, cfg)
	if err != nil {
		log.Fatalf("preview outbox: %v", err)
	}
	mailer := smtp.NewDispatcher(primary, relayErr, preview, cfg.SMTP.AllowPreview, cfg.SMTP.From)

	// JWT provider (optional, sessions are disabled if keys are missing).
	var jwtProvider *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		jwtProvider = p
	} else {
		log.Printf("WARN: JWT provider not available: %v", err)
	}

	fetch := &http.Client{Timeout: cfg.Ledger.Timeout}
	deps := &transporthttp.Deps{
		Verifier:   store,
		Mailer:     mailer,
		MemberRepo: memstore.NewMemberRepo(),
		Ledger:     ledger.NewClient(cfg.Ledger),
		Account:    credit.AccountFromConfig(cfg.Ledger),
		Products: map[string]credit.Product{
			credit.KindImage: {ProductID: cfg.Ledger.ProductImage, Producer: deliverable.NewImage(fetch, cfg.Ledger.ImageSourceURL)},
			credit.KindMusic: {ProductID: cfg.Ledger.ProductMusic, Producer: deliverable.NewAudio(fetch, cfg.Ledger.AudioSourceURL, cfg.Ledger.AudioProbe)},
		},
		JWTProvider:   jwtProvider,
		GoogleDecoder: google.NewDecoder(cfg.GoogleClientID),
	}
	if previews != nil {
		deps.Previews = previews
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // purchases wait on deliverable producers
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}

// loadEnv reads the first env file found, leaving the process environment
// authoritative.
func loadEnv() {
	for _, f := range []string{".env.server", "server/.env.server", ".env"} {
		if err := godotenv.Load(f); err == nil {
			log.Printf("Loaded environment from %s", f)
			return
		}
	}
	log.Println("No .env file found, reading from environment")
}

func newVerificationStore(ctx context.Context, cfg *config.Config) (*verification.Store, error) {
	if cfg.VerificationBackend != "dynamo" {
		return verification.NewStore(memstore.NewVerificationRepo()), nil
	}
	client, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	dynamo.Bootstrap(ctx, client, cfg.VerificationTable)
	return verification.NewStore(dynamo.NewVerificationRepo(client, cfg.VerificationTable)), nil
}

// newPreviewOutbox returns the preview transport and, when previews are held
// in memory, the store that serves them.
func newPreviewOutbox(ctx context.Context, cfg *config.Config) (*outbox.Transport, *outbox.MemoryStore, error) {
	if cfg.PreviewS3Bucket == "" {
		mem := outbox.NewMemoryStore(cfg.PreviewBaseURL)
		return outbox.New(mem), mem, nil
	}
	client, err := s3infra.NewClient(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	objects := s3infra.NewStore(client, cfg.PreviewS3Bucket)
	return outbox.New(outbox.NewS3Store(objects, cfg.PreviewTTL)), nil, nil
}
