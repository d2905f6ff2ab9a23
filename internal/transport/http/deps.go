package http

import (
	"context"

	"github.com/credit-relay/internal/application/credit"
	"github.com/credit-relay/internal/application/mailrelay"
	"github.com/credit-relay/internal/domain"
	"github.com/credit-relay/internal/infrastructure/google"
	jwtinfra "github.com/credit-relay/internal/infrastructure/jwt"
)

// MemberRepository is the minimal interface the router requires from a member store.
type MemberRepository interface {
	Create(ctx context.Context, m *domain.Member) error
	Put(ctx context.Context, m *domain.Member) error
	Get(ctx context.Context, memberID string) (*domain.Member, error)
	GetByEmail(ctx context.Context, email string) (*domain.Member, error)
	SetVerified(ctx context.Context, email string) error
}

// PreviewSource serves messages held by the in-memory preview outbox.
type PreviewSource interface {
	Get(id string) ([]byte, bool)
}

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	Verifier   mailrelay.Verifier
	Mailer     mailrelay.Mailer
	Previews   PreviewSource // nil when previews go to S3
	MemberRepo MemberRepository

	Ledger   credit.Ledger
	Account  credit.Account
	Products map[string]credit.Product

	JWTProvider   *jwtinfra.Provider // nil disables sessions and credit routes
	GoogleDecoder *google.Decoder
}
