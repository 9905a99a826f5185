// Package storage provides the persisted key-value tiers backing sessions:
// a durable tier that survives portal restarts and a session-scoped tier
// that expires with the browsing session.
package storage

import (
	"context"
	"sync"
)

// Keys used by the session store. The tiers never assume the keys are
// mutually consistent; the session layer treats any gap as "no session".
const (
	KeyToken        = "token"
	KeyRefreshToken = "refreshToken"
	KeyUser         = "user"
)

// SessionKeys lists every key a session writes, in wipe order.
var SessionKeys = []string{KeyToken, KeyRefreshToken, KeyUser}

// Vault is a namespaced key-value tier. Get returns (nil, nil) on a miss so
// callers can treat unavailable backends the same as absent data.
type Vault interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Wipe removes every session key from the vault. Errors on individual keys
// are ignored; a failed delete degrades to an expired or dangling entry that
// the read path already treats as no session.
func Wipe(ctx context.Context, v Vault) {
	for _, key := range SessionKeys {
		_ = v.Delete(ctx, key)
	}
}

// MemoryVault is an in-process Vault used in tests and as a fallback tier.
type MemoryVault struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemoryVault creates an empty in-memory vault.
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{entries: make(map[string][]byte)}
}

// Get returns the stored value or nil when absent.
func (v *MemoryVault) Get(_ context.Context, key string) ([]byte, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	value, ok := v.entries[key]
	if !ok {
		return nil, nil
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	return cp, nil
}

// Set stores a copy of value under key.
func (v *MemoryVault) Set(_ context.Context, key string, value []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	v.entries[key] = cp
	return nil
}

// Delete removes key if present.
func (v *MemoryVault) Delete(_ context.Context, key string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.entries, key)
	return nil
}
