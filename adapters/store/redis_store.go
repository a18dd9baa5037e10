package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/layer-3/recoverable/core"
	"github.com/layer-3/recoverable/ports"
	"github.com/redis/go-redis/v9"
)

const (
	invalidatedPrefix = "recoverable:invalidated:"
	walletPrefix      = "recoverable:wallet:"

	txRetryMaxElapsed = 5 * time.Second
)

// RedisStore is a Redis implementation of the token and wallet stores.
// Wallet updates are optimistic WATCH/MULTI transactions on the wallet key,
// retried when another writer commits first.
type RedisStore struct {
	client *redis.Client
}

var (
	_ ports.Store       = (*RedisStore)(nil)
	_ ports.WalletStore = (*RedisStore)(nil)
)

// NewRedisStore creates a new Redis store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
	}
}

func newTxBackoff() backoff.BackOff {
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 5 * time.Millisecond
	bo.MaxInterval = 100 * time.Millisecond
	bo.MaxElapsedTime = txRetryMaxElapsed
	return bo
}

// InvalidateToken marks a token as invalidated in Redis
func (s *RedisStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	if err := s.client.Set(ctx, invalidatedPrefix+tokenID, "1", expiry).Err(); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}
	return nil
}

// IsTokenInvalidated checks if a token is invalidated in Redis
func (s *RedisStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	val, err := s.client.Exists(ctx, invalidatedPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token invalidation: %w", err)
	}
	return val > 0, nil
}

// ConsumeToken invalidates a token unless it is already invalidated
func (s *RedisStore) ConsumeToken(ctx context.Context, tokenID string, expiry time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, invalidatedPrefix+tokenID, "1", expiry).Result()
	if err != nil {
		return false, fmt.Errorf("failed to consume token: %w", err)
	}
	return ok, nil
}

// Create stores a new wallet. It fails if the id is taken.
func (s *RedisStore) Create(ctx context.Context, w *core.Wallet) error {
	payload, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("failed to encode wallet: %w", err)
	}

	ok, err := s.client.SetNX(ctx, walletPrefix+w.ID, payload, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	if !ok {
		return fmt.Errorf("wallet %s already exists", w.ID)
	}
	return nil
}

// Get loads a wallet
func (s *RedisStore) Get(ctx context.Context, id string) (*core.Wallet, error) {
	raw, err := s.client.Get(ctx, walletPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}
	return decodeWallet(raw)
}

// Update runs fn inside an optimistic transaction on the wallet key
func (s *RedisStore) Update(ctx context.Context, id string, fn ports.UpdateFunc) (*core.Wallet, error) {
	key := walletPrefix + id
	var updated *core.Wallet

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return core.ErrWalletNotFound
			}
			return fmt.Errorf("failed to load wallet: %w", err)
		}

		w, err := decodeWallet(raw)
		if err != nil {
			return err
		}
		if err := fn(w); err != nil {
			return err
		}

		payload, err := json.Marshal(w)
		if err != nil {
			return fmt.Errorf("failed to encode wallet: %w", err)
		}

		// Commits only if key was not modified since WATCH.
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		if err != nil {
			return err
		}

		updated = w
		return nil
	}

	err := backoff.Retry(func() error {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			return err // Lost the race - backoff will retry
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, backoff.WithContext(newTxBackoff(), ctx))
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func decodeWallet(raw []byte) (*core.Wallet, error) {
	var w core.Wallet
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("failed to decode wallet: %w", err)
	}
	return &w, nil
}
