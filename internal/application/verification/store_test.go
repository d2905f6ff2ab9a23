package verification

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/credit-relay/internal/domain"
	"github.com/credit-relay/internal/infrastructure/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore() (*Store, *fakeClock, *memstore.VerificationRepo) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	repo := memstore.NewVerificationRepo()
	return NewStore(repo, WithClock(clock.Now)), clock, repo
}

type mockBackend struct{ mock.Mock }

func (m *mockBackend) Put(ctx context.Context, v *domain.VerificationRecord) error {
	return m.Called(ctx, v).Error(0)
}
func (m *mockBackend) Get(ctx context.Context, kind, key string) (*domain.VerificationRecord, error) {
	args := m.Called(ctx, kind, key)
	if v, _ := args.Get(0).(*domain.VerificationRecord); v != nil {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockBackend) Delete(ctx context.Context, kind, key string) error {
	return m.Called(ctx, kind, key).Error(0)
}

// --- OTP ---

func TestOTP_VerifySucceedsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore()

	code, err := s.IssueOTP(ctx, "Alice@Example.com")
	require.NoError(t, err)
	assert.Len(t, code, 6)

	require.NoError(t, s.VerifyOTP(ctx, "alice@example.com", code))
	assert.ErrorIs(t, s.VerifyOTP(ctx, "alice@example.com", code), domain.ErrNoRecord)
}

func TestOTP_MismatchKeepsRecord(t *testing.T) {
	ctx := context.Background()
	s, clock, _ := newTestStore()

	code, err := s.IssueOTP(ctx, "a@b.com")
	require.NoError(t, err)
	wrong := "000000"
	if code == wrong {
		wrong = "000001"
	}

	assert.ErrorIs(t, s.VerifyOTP(ctx, "a@b.com", wrong), domain.ErrMismatch)
	clock.Advance(9 * time.Minute)
	assert.NoError(t, s.VerifyOTP(ctx, "a@b.com", code))
}

func TestOTP_ExpiredRegardlessOfCorrectness(t *testing.T) {
	ctx := context.Background()
	s, clock, repo := newTestStore()

	code, err := s.IssueOTP(ctx, "a@b.com")
	require.NoError(t, err)
	clock.Advance(10*time.Minute + time.Millisecond)

	err = s.VerifyOTP(ctx, "a@b.com", code)
	assert.ErrorIs(t, err, domain.ErrExpired)
	assert.EqualError(t, err, "otp expired")
	// Expired records are removed lazily on lookup.
	assert.Equal(t, 0, repo.Len())
	assert.ErrorIs(t, s.VerifyOTP(ctx, "a@b.com", code), domain.ErrNoRecord)
}

func TestOTP_ExactExpiryInstantStillValid(t *testing.T) {
	ctx := context.Background()
	s, clock, _ := newTestStore()
	code, err := s.IssueOTP(ctx, "a@b.com")
	require.NoError(t, err)
	clock.Advance(OTPTTL)
	assert.NoError(t, s.VerifyOTP(ctx, "a@b.com", code))
}

func TestOTP_NewRequestInvalidatesPrevious(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(0, 0)}
	// Each code consumes three bytes: 0x000000 then 0x000001.
	seq := bytes.NewReader([]byte{0, 0, 0, 0, 0, 1})
	s := NewStore(memstore.NewVerificationRepo(), WithClock(clock.Now), WithRandom(seq))

	first, err := s.IssueOTP(ctx, "a@b.com")
	require.NoError(t, err)
	second, err := s.IssueOTP(ctx, "a@b.com")
	require.NoError(t, err)
	require.Equal(t, "100000", first)
	require.Equal(t, "100001", second)

	assert.ErrorIs(t, s.VerifyOTP(ctx, "a@b.com", first), domain.ErrMismatch)
	assert.NoError(t, s.VerifyOTP(ctx, "a@b.com", second))
}

func TestOTP_NoRecord(t *testing.T) {
	s, _, _ := newTestStore()
	assert.ErrorIs(t, s.VerifyOTP(context.Background(), "nobody@b.com", "123456"), domain.ErrNoRecord)
}

func TestOTP_ConcurrentConsumeReportsNoRecord(t *testing.T) {
	ctx := context.Background()
	b := &mockBackend{}
	b.On("Get", mock.Anything, domain.VerificationOTP, "a@b.com").
		Return(&domain.VerificationRecord{Key: "a@b.com", Kind: domain.VerificationOTP, Code: "123456", ExpiresAt: time.Now().Add(time.Minute).UnixMilli()}, nil)
	b.On("Delete", mock.Anything, domain.VerificationOTP, "a@b.com").Return(domain.ErrNotFound)

	s := NewStore(b)
	assert.ErrorIs(t, s.VerifyOTP(ctx, "a@b.com", "123456"), domain.ErrNoRecord)
	b.AssertExpectations(t)
}

func TestOTP_BackendFailurePropagates(t *testing.T) {
	b := &mockBackend{}
	boom := errors.New("boom")
	b.On("Put", mock.Anything, mock.AnythingOfType("*domain.VerificationRecord")).Return(boom)
	s := NewStore(b)
	_, err := s.IssueOTP(context.Background(), "a@b.com")
	assert.ErrorIs(t, err, boom)
}

// --- link tokens ---

func TestToken_ValidatesOnce(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore()

	tok, err := s.IssueToken(ctx, "Bob@Example.com")
	require.NoError(t, err)
	assert.Len(t, tok, tokenLength)

	email, err := s.ValidateToken(ctx, tok, "BOB@example.com")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", email)

	_, err = s.ValidateToken(ctx, tok, "bob@example.com")
	assert.ErrorIs(t, err, domain.ErrInvalid)
}

func TestToken_EmailMismatchIsInvalidAndKeepsToken(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore()

	tok, err := s.IssueToken(ctx, "bob@example.com")
	require.NoError(t, err)

	_, err = s.ValidateToken(ctx, tok, "eve@example.com")
	assert.ErrorIs(t, err, domain.ErrInvalid)

	_, err = s.ValidateToken(ctx, tok, "bob@example.com")
	assert.NoError(t, err)
}

func TestToken_Expired(t *testing.T) {
	ctx := context.Background()
	s, clock, repo := newTestStore()

	tok, err := s.IssueToken(ctx, "bob@example.com")
	require.NoError(t, err)
	clock.Advance(61 * time.Minute)

	_, err = s.ValidateToken(ctx, tok, "bob@example.com")
	assert.ErrorIs(t, err, domain.ErrExpired)
	assert.EqualError(t, err, "token expired")
	assert.Equal(t, 0, repo.Len())
}

func TestToken_Unknown(t *testing.T) {
	s, _, _ := newTestStore()
	_, err := s.ValidateToken(context.Background(), "nope", "bob@example.com")
	assert.ErrorIs(t, err, domain.ErrInvalid)
}

// --- sweep ---

func TestSweep_RemovesExpired(t *testing.T) {
	ctx := context.Background()
	s, clock, repo := newTestStore()

	_, err := s.IssueOTP(ctx, "a@b.com")
	require.NoError(t, err)
	_, err = s.IssueToken(ctx, "a@b.com")
	require.NoError(t, err)

	clock.Advance(30 * time.Minute)
	n, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, repo.Len())
}

func TestSweep_BackendWithoutSweeper(t *testing.T) {
	s := NewStore(&mockBackend{})
	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
