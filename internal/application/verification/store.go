package verification

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/credit-relay/internal/domain"
	pkgtoken "github.com/credit-relay/internal/pkg/token"
)

const (
	OTPTTL      = 10 * time.Minute
	TokenTTL    = 60 * time.Minute
	tokenLength = 32
)

// Backend persists verification records. Get and Delete return a
// domain.ErrNotFound-wrapped error when the record is absent; Delete is the
// commit point of single use, so it must report absence rather than succeed silently.
type Backend interface {
	Put(ctx context.Context, v *domain.VerificationRecord) error
	Get(ctx context.Context, kind, key string) (*domain.VerificationRecord, error)
	Delete(ctx context.Context, kind, key string) error
}

// Sweeper is implemented by backends that can drop expired records in bulk.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// Store issues and checks OTP codes and one-time link tokens.
type Store struct {
	mu      sync.Mutex
	backend Backend
	now     func() time.Time
	random  io.Reader
}

type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithRandom replaces crypto/rand as the source for codes and tokens.
func WithRandom(r io.Reader) Option {
	return func(s *Store) { s.random = r }
}

func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{backend: backend, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IssueOTP stores a fresh code for email, replacing any previous one, and
// returns it for delivery.
func (s *Store) IssueOTP(ctx context.Context, email string) (string, error) {
	code, err := pkgtoken.NumericCode(s.random)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err = s.backend.Put(ctx, &domain.VerificationRecord{
		Key:       normalize(email),
		Kind:      domain.VerificationOTP,
		Code:      code,
		ExpiresAt: s.now().Add(OTPTTL).UnixMilli(),
	})
	if err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}
	return code, nil
}

// VerifyOTP checks code against the live OTP for email. A wrong code leaves
// the record in place; a correct one consumes it.
func (s *Store) VerifyOTP(ctx context.Context, email, code string) error {
	key := normalize(email)
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.backend.Get(ctx, domain.VerificationOTP, key)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrNoRecord
	}
	if err != nil {
		return err
	}
	if rec.Expired(s.now()) {
		s.discard(ctx, domain.VerificationOTP, key)
		return domain.ErrOTPExpired
	}
	if strings.TrimSpace(code) != rec.Code {
		return domain.ErrMismatch
	}
	if err := s.backend.Delete(ctx, domain.VerificationOTP, key); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNoRecord
		}
		return err
	}
	return nil
}

// IssueToken stores a one-time link token bound to email and returns it.
func (s *Store) IssueToken(ctx context.Context, email string) (string, error) {
	tok, err := pkgtoken.Alphanumeric(s.random, tokenLength)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err = s.backend.Put(ctx, &domain.VerificationRecord{
		Key:       tok,
		Kind:      domain.VerificationToken,
		Email:     normalize(email),
		ExpiresAt: s.now().Add(TokenTTL).UnixMilli(),
	})
	if err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}
	return tok, nil
}

// ValidateToken consumes token when it exists, belongs to email and has not
// expired. It returns the email the token was issued for.
func (s *Store) ValidateToken(ctx context.Context, token, email string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.backend.Get(ctx, domain.VerificationToken, token)
	if errors.Is(err, domain.ErrNotFound) {
		return "", domain.ErrInvalid
	}
	if err != nil {
		return "", err
	}
	expired := rec.Expired(s.now())
	if expired {
		s.discard(ctx, domain.VerificationToken, token)
	}
	if rec.Email != normalize(email) {
		return "", domain.ErrInvalid
	}
	if expired {
		return "", domain.ErrTokenExpired
	}
	if err := s.backend.Delete(ctx, domain.VerificationToken, token); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrInvalid
		}
		return "", err
	}
	return rec.Email, nil
}

// Sweep drops expired records when the backend supports it.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	sw, ok := s.backend.(Sweeper)
	if !ok {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return sw.Sweep(ctx, s.now())
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Store) RunSweeper(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				slog.Warn("verification sweep failed", "err", err)
				continue
			}
			if n > 0 {
				slog.Info("verification sweep", "removed", n)
			}
		}
	}
}

func (s *Store) discard(ctx context.Context, kind, key string) {
	if err := s.backend.Delete(ctx, kind, key); err != nil && !errors.Is(err, domain.ErrNotFound) {
		slog.Warn("failed to delete expired verification record", "kind", kind, "err", err)
	}
}
