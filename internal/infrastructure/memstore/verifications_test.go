package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/credit-relay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerificationRepo_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	r := NewVerificationRepo()
	require.NoError(t, r.Put(ctx, &domain.VerificationRecord{Key: "a@b.com", Kind: domain.VerificationOTP, Code: "123456"}))

	got, err := r.Get(ctx, domain.VerificationOTP, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "123456", got.Code)

	// Same key under another kind is a different record.
	_, err = r.Get(ctx, domain.VerificationToken, "a@b.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, r.Delete(ctx, domain.VerificationOTP, "a@b.com"))
	assert.ErrorIs(t, r.Delete(ctx, domain.VerificationOTP, "a@b.com"), domain.ErrNotFound)
}

func TestVerificationRepo_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	r := NewVerificationRepo()
	require.NoError(t, r.Put(ctx, &domain.VerificationRecord{Key: "k", Kind: domain.VerificationOTP, Code: "111111"}))
	got, err := r.Get(ctx, domain.VerificationOTP, "k")
	require.NoError(t, err)
	got.Code = "changed"
	again, err := r.Get(ctx, domain.VerificationOTP, "k")
	require.NoError(t, err)
	assert.Equal(t, "111111", again.Code)
}

func TestVerificationRepo_Sweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r := NewVerificationRepo()
	require.NoError(t, r.Put(ctx, &domain.VerificationRecord{Key: "old", Kind: domain.VerificationToken, ExpiresAt: now.Add(-time.Second).UnixMilli()}))
	require.NoError(t, r.Put(ctx, &domain.VerificationRecord{Key: "new", Kind: domain.VerificationToken, ExpiresAt: now.Add(time.Minute).UnixMilli()}))

	n, err := r.Sweep(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, r.Len())
}
