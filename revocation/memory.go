package revocation

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-local revocation set guarded by a RWMutex.
//
// Entries are never removed. That keeps membership semantics exact at the
// cost of unbounded growth over the process lifetime; use [Redis] for
// long-lived or multi-instance deployments.
type Memory struct {
	mu      sync.RWMutex
	revoked map[string]struct{}
}

// NewMemory returns an empty in-process registry.
func NewMemory() *Memory {
	return &Memory{revoked: make(map[string]struct{})}
}

// Revoke adds token to the set. Revoking an already revoked token is a no-op.
func (m *Memory) Revoke(_ context.Context, token string, _ time.Time) error {
	m.mu.Lock()
	m.revoked[token] = struct{}{}
	m.mu.Unlock()
	return nil
}

// IsRevoked reports set membership.
func (m *Memory) IsRevoked(_ context.Context, token string) (bool, error) {
	m.mu.RLock()
	_, ok := m.revoked[token]
	m.mu.RUnlock()
	return ok, nil
}

// Len returns the number of distinct revoked tokens.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.revoked)
}

var _ Registry = (*Memory)(nil)
