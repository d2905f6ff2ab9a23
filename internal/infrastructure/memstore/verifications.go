package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/credit-relay/internal/domain"
)

// VerificationRepo keeps verification records in process memory.
// Records are lost on restart.
type VerificationRepo struct {
	mu      sync.Mutex
	records map[string]domain.VerificationRecord
}

func NewVerificationRepo() *VerificationRepo {
	return &VerificationRepo{records: make(map[string]domain.VerificationRecord)}
}

func recordKey(kind, key string) string { return kind + "#" + key }

func (r *VerificationRepo) Put(_ context.Context, v *domain.VerificationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[recordKey(v.Kind, v.Key)] = *v
	return nil
}

func (r *VerificationRepo) Get(_ context.Context, kind, key string) (*domain.VerificationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.records[recordKey(kind, key)]
	if !ok {
		return nil, fmt.Errorf("verification not found: %w", domain.ErrNotFound)
	}
	return &v, nil
}

func (r *VerificationRepo) Delete(_ context.Context, kind, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := recordKey(kind, key)
	if _, ok := r.records[k]; !ok {
		return fmt.Errorf("verification not found: %w", domain.ErrNotFound)
	}
	delete(r.records, k)
	return nil
}

// Sweep removes every record expired at now and reports how many were dropped.
func (r *VerificationRepo) Sweep(_ context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k, v := range r.records {
		if v.Expired(now) {
			delete(r.records, k)
			n++
		}
	}
	return n, nil
}

// Len reports the number of stored records.
func (r *VerificationRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}
