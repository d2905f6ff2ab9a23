package member

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/credit-relay/internal/domain"
	"github.com/credit-relay/internal/infrastructure/google"
	"github.com/credit-relay/internal/pkg/id"
	"github.com/credit-relay/internal/pkg/validate"
	"golang.org/x/crypto/bcrypt"
)

// Session is a signed-in member and its bearer token.
type Session struct {
	Bearer string         `json:"Bearer"`
	Member *domain.Member `json:"member"`
}

type Service interface {
	Register(ctx context.Context, req domain.RegisterRequest) (*Session, error)
	Login(ctx context.Context, req domain.LoginRequest) (*Session, error)
	LoginGoogle(ctx context.Context, req domain.GoogleLoginRequest) (*Session, error)
	Get(ctx context.Context, memberID string) (*domain.Member, error)
	// MarkVerified flags the account registered under email. Unknown emails
	// are ignored; verification may precede registration.
	MarkVerified(ctx context.Context, email string) error
}

type memberStore interface {
	Create(ctx context.Context, m *domain.Member) error
	Put(ctx context.Context, m *domain.Member) error
	Get(ctx context.Context, memberID string) (*domain.Member, error)
	GetByEmail(ctx context.Context, email string) (*domain.Member, error)
	SetVerified(ctx context.Context, email string) error
}

type jwtSigner interface {
	Sign(m *domain.Member) (string, error)
}

type googleDecoder interface {
	Decode(credential string) (*google.Payload, error)
}

type service struct {
	repo   memberStore
	signer jwtSigner
	google googleDecoder
	now    func() time.Time
}

type ServiceDeps struct {
	MemberRepo    memberStore
	JWTProvider   jwtSigner
	GoogleDecoder googleDecoder
}

func NewService(deps ServiceDeps) Service {
	return &service{
		repo:   deps.MemberRepo,
		signer: deps.JWTProvider,
		google: deps.GoogleDecoder,
		now:    time.Now,
	}
}

var (
	errInvalidCredentials = domain.Reject(domain.ErrUnauthorized, "Invalid credentials")
	errEmailTaken         = domain.Reject(domain.ErrConflict, "Email already registered")
)

func check(req interface{}) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	return nil
}

func (s *service) Register(ctx context.Context, req domain.RegisterRequest) (*Session, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	m := &domain.Member{
		MemberID:     id.New(),
		Email:        strings.TrimSpace(req.Email),
		Name:         strings.TrimSpace(req.Name),
		Provider:     domain.ProviderLocal,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.Create(ctx, m); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, errEmailTaken
		}
		return nil, err
	}
	return s.session(m)
}

func (s *service) Login(ctx context.Context, req domain.LoginRequest) (*Session, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	m, err := s.repo.GetByEmail(ctx, req.Email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if m.Provider != domain.ProviderLocal || bcrypt.CompareHashAndPassword([]byte(m.PasswordHash), []byte(req.Password)) != nil {
		return nil, errInvalidCredentials
	}
	return s.session(m)
}

// LoginGoogle trusts the decoded token as-is and upserts the member keyed by
// the Google subject.
func (s *service) LoginGoogle(ctx context.Context, req domain.GoogleLoginRequest) (*Session, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	if s.google == nil {
		return nil, fmt.Errorf("google sign-in not configured: %w", domain.ErrBadRequest)
	}
	p, err := s.google.Decode(req.Credential)
	if err != nil {
		return nil, err
	}
	memberID := "google:" + p.Sub
	m, err := s.repo.Get(ctx, memberID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		if other, lookupErr := s.repo.GetByEmail(ctx, p.Email); lookupErr == nil && other.MemberID != memberID {
			return nil, errEmailTaken
		}
		m = &domain.Member{MemberID: memberID, Provider: domain.ProviderGoogle, CreatedAt: s.now().UTC()}
	case err != nil:
		return nil, err
	}
	m.Email, m.Name, m.Picture = p.Email, p.Name, p.Picture
	if err := s.repo.Put(ctx, m); err != nil {
		return nil, err
	}
	return s.session(m)
}

func (s *service) Get(ctx context.Context, memberID string) (*domain.Member, error) {
	return s.repo.Get(ctx, memberID)
}

func (s *service) MarkVerified(ctx context.Context, email string) error {
	err := s.repo.SetVerified(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}

func (s *service) session(m *domain.Member) (*Session, error) {
	if s.signer == nil {
		return nil, fmt.Errorf("session signing not configured: %w", domain.ErrMissingCredential)
	}
	bearer, err := s.signer.Sign(m)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}
	return &Session{Bearer: bearer, Member: m}, nil
}
