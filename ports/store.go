package ports

import (
	"context"
	"time"

	"github.com/layer-3/recoverable/core"
)

// Store interface for token invalidation
type Store interface {
	InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error
	IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error)
	// ConsumeToken invalidates tokenID and reports whether this call did so.
	// Of any number of concurrent calls for the same id, exactly one sees true.
	ConsumeToken(ctx context.Context, tokenID string, expiry time.Duration) (bool, error)
}

// UpdateFunc mutates a wallet in place. Returning an error discards the change.
type UpdateFunc func(w *core.Wallet) error

// WalletStore persists wallets. Update must apply fn atomically with respect
// to every other Update of the same wallet: fn sees the latest committed
// state and nothing is written when fn fails.
type WalletStore interface {
	Create(ctx context.Context, w *core.Wallet) error
	Get(ctx context.Context, id string) (*core.Wallet, error)
	Update(ctx context.Context, id string, fn UpdateFunc) (*core.Wallet, error)
}
