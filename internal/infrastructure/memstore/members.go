package memstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/credit-relay/internal/domain"
)

// MemberRepo keeps member accounts in process memory, indexed by id and by
// lowercased email.
type MemberRepo struct {
	mu      sync.RWMutex
	byID    map[string]domain.Member
	byEmail map[string]string
}

func NewMemberRepo() *MemberRepo {
	return &MemberRepo{byID: make(map[string]domain.Member), byEmail: make(map[string]string)}
}

func emailKey(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Create stores m, failing with domain.ErrConflict when the email is taken.
func (r *MemberRepo) Create(_ context.Context, m *domain.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := emailKey(m.Email)
	if _, taken := r.byEmail[k]; taken {
		return fmt.Errorf("email already registered: %w", domain.ErrConflict)
	}
	r.byID[m.MemberID] = *m
	r.byEmail[k] = m.MemberID
	return nil
}

// Put inserts or replaces m.
func (r *MemberRepo) Put(_ context.Context, m *domain.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.byID[m.MemberID]; ok {
		delete(r.byEmail, emailKey(old.Email))
	}
	r.byID[m.MemberID] = *m
	r.byEmail[emailKey(m.Email)] = m.MemberID
	return nil
}

func (r *MemberRepo) Get(_ context.Context, memberID string) (*domain.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byID[memberID]
	if !ok {
		return nil, fmt.Errorf("member %s: %w", memberID, domain.ErrNotFound)
	}
	return &m, nil
}

func (r *MemberRepo) GetByEmail(_ context.Context, email string) (*domain.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[emailKey(email)]
	if !ok {
		return nil, fmt.Errorf("member %s: %w", email, domain.ErrNotFound)
	}
	m := r.byID[id]
	return &m, nil
}

// SetVerified flags every account registered under email. It reports
// domain.ErrNotFound when there is none.
func (r *MemberRepo) SetVerified(_ context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byEmail[emailKey(email)]
	if !ok {
		return fmt.Errorf("member %s: %w", email, domain.ErrNotFound)
	}
	m := r.byID[id]
	m.Verified = true
	r.byID[id] = m
	return nil
}
