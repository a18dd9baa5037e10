package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/layer-3/recoverable/core"
	"github.com/layer-3/recoverable/ports"
)

// walletEntry serializes updates of a single wallet
type walletEntry struct {
	mu     sync.Mutex
	wallet *core.Wallet
}

// MemoryStore is an in-memory implementation of the token and wallet stores.
// Wallet updates lock only the wallet being updated.
type MemoryStore struct {
	invalidatedTokens map[string]time.Time
	wallets           map[string]*walletEntry
	mu                sync.RWMutex
}

var (
	_ ports.Store       = (*MemoryStore)(nil)
	_ ports.WalletStore = (*MemoryStore)(nil)
)

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		invalidatedTokens: make(map[string]time.Time),
		wallets:           make(map[string]*walletEntry),
	}
}

// InvalidateToken marks a token as invalidated until expiry has passed
func (s *MemoryStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiryTime := time.Now().Add(expiry)
	if stored, ok := s.invalidatedTokens[tokenID]; ok && stored.After(expiryTime) {
		return nil
	}
	s.invalidatedTokens[tokenID] = expiryTime

	return nil
}

// IsTokenInvalidated checks if a token is invalidated. Expired records are
// dropped on read.
func (s *MemoryStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	expiryTime, exists := s.invalidatedTokens[tokenID]
	s.mu.RUnlock()

	if !exists {
		return false, nil
	}

	if time.Now().After(expiryTime) {
		s.mu.Lock()
		if stored, ok := s.invalidatedTokens[tokenID]; ok && !stored.After(expiryTime) {
			delete(s.invalidatedTokens, tokenID)
		}
		s.mu.Unlock()
		return false, nil
	}

	return true, nil
}

// ConsumeToken invalidates a token unless it is already invalidated
func (s *MemoryStore) ConsumeToken(ctx context.Context, tokenID string, expiry time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if stored, ok := s.invalidatedTokens[tokenID]; ok && !now.After(stored) {
		return false, nil
	}
	s.invalidatedTokens[tokenID] = now.Add(expiry)

	return true, nil
}

// Create stores a new wallet
func (s *MemoryStore) Create(ctx context.Context, w *core.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.wallets[w.ID]; exists {
		return fmt.Errorf("wallet %s already exists", w.ID)
	}
	s.wallets[w.ID] = &walletEntry{wallet: w.Clone()}

	return nil
}

// Get returns a copy of the wallet
func (s *MemoryStore) Get(ctx context.Context, id string) (*core.Wallet, error) {
	entry, err := s.entry(id)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	return entry.wallet.Clone(), nil
}

// Update applies fn to a copy of the wallet under the wallet's lock and
// commits the copy only if fn succeeds
func (s *MemoryStore) Update(ctx context.Context, id string, fn ports.UpdateFunc) (*core.Wallet, error) {
	entry, err := s.entry(id)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	working := entry.wallet.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	entry.wallet = working

	return working.Clone(), nil
}

func (s *MemoryStore) entry(id string) (*walletEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.wallets[id]
	if !ok {
		return nil, core.ErrWalletNotFound
	}
	return entry, nil
}
