package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/recoverable/core"
	"github.com/layer-3/recoverable/ports"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	creator      = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	user         = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	recoveryUser = common.HexToAddress("0x00000000000000000000000000000000000000b3")
)

type walletStore interface {
	ports.Store
	ports.WalletStore
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStore(client)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func stores(t *testing.T) map[string]walletStore {
	redisStore, _ := newRedisStore(t)
	return map[string]walletStore{
		"memory": NewMemoryStore(),
		"redis":  redisStore,
	}
}

func newWallet(t *testing.T) *core.Wallet {
	t.Helper()
	w, err := core.NewWallet("", creator, time.Hour, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return w
}

func TestWalletStoreContract(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			w := newWallet(t)

			require.NoError(t, s.Create(ctx, w))
			assert.Error(t, s.Create(ctx, w), "duplicate id")

			got, err := s.Get(ctx, w.ID)
			require.NoError(t, err)
			assert.Equal(t, w.Owner, got.Owner)
			assert.Equal(t, w.RecoveryDelay, got.RecoveryDelay)
			assert.True(t, w.CreatedAt.Equal(got.CreatedAt))

			_, err = s.Get(ctx, "missing")
			assert.ErrorIs(t, err, core.ErrWalletNotFound)
			_, err = s.Update(ctx, "missing", func(*core.Wallet) error { return nil })
			assert.ErrorIs(t, err, core.ErrWalletNotFound)

			updated, err := s.Update(ctx, w.ID, func(w *core.Wallet) error {
				return w.DesignateRecoveryAgent(creator, recoveryUser)
			})
			require.NoError(t, err)
			assert.Equal(t, recoveryUser, updated.RecoveryAgent)

			now := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
			_, err = s.Update(ctx, w.ID, func(w *core.Wallet) error {
				_, err := w.InitiateRecovery(recoveryUser, user, now)
				return err
			})
			require.NoError(t, err)

			got, err = s.Get(ctx, w.ID)
			require.NoError(t, err)
			require.NotNil(t, got.Pending)
			assert.Equal(t, user, got.Pending.ProposedOwner)
			assert.True(t, now.Equal(got.Pending.RequestedAt))
			assert.Equal(t, uint64(3), got.Version)
		})
	}
}

func TestFailedUpdateIsNotPersisted(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			w := newWallet(t)
			require.NoError(t, s.Create(ctx, w))

			_, err := s.Update(ctx, w.ID, func(w *core.Wallet) error {
				w.Owner = user
				return core.ErrUnauthorized
			})
			assert.ErrorIs(t, err, core.ErrUnauthorized)

			got, err := s.Get(ctx, w.ID)
			require.NoError(t, err)
			assert.Equal(t, creator, got.Owner)
			assert.Equal(t, uint64(1), got.Version)
		})
	}
}

func TestConcurrentUpdatesAreSerialized(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			w := newWallet(t)
			require.NoError(t, s.Create(ctx, w))
			_, err := s.Update(ctx, w.ID, func(w *core.Wallet) error {
				return w.DesignateRecoveryAgent(creator, recoveryUser)
			})
			require.NoError(t, err)

			const workers = 10
			var wg sync.WaitGroup
			var opened atomic.Int32
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := s.Update(ctx, w.ID, func(w *core.Wallet) error {
						_, err := w.InitiateRecovery(recoveryUser, user, time.Now())
						return err
					})
					if err == nil {
						opened.Add(1)
						return
					}
					assert.ErrorIs(t, err, core.ErrRecoveryAlreadyPending)
				}()
			}
			wg.Wait()

			assert.Equal(t, int32(1), opened.Load())
			got, err := s.Get(ctx, w.ID)
			require.NoError(t, err)
			assert.Equal(t, uint64(3), got.Version)
		})
	}
}

func TestConsumeTokenSucceedsOnce(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			const workers = 10
			var wg sync.WaitGroup
			var consumed atomic.Int32
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ok, err := s.ConsumeToken(ctx, "challenge-1", time.Minute)
					assert.NoError(t, err)
					if ok {
						consumed.Add(1)
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(1), consumed.Load())

			invalidated, err := s.IsTokenInvalidated(ctx, "challenge-1")
			require.NoError(t, err)
			assert.True(t, invalidated)

			require.NoError(t, s.InvalidateToken(ctx, "refresh-1", time.Minute))
			ok, err := s.ConsumeToken(ctx, "refresh-1", time.Minute)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	w := newWallet(t)
	require.NoError(t, s.Create(ctx, w))

	w.Owner = user
	got, err := s.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, creator, got.Owner)

	got.Owner = user
	again, err := s.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, creator, again.Owner)
}

func TestMemoryStoreTokenInvalidation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	invalidated, err := s.IsTokenInvalidated(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, invalidated)

	require.NoError(t, s.InvalidateToken(ctx, "t1", time.Hour))
	invalidated, err = s.IsTokenInvalidated(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, invalidated)

	require.NoError(t, s.InvalidateToken(ctx, "t2", -time.Second))
	invalidated, err = s.IsTokenInvalidated(ctx, "t2")
	require.NoError(t, err)
	assert.False(t, invalidated)
}

func TestRedisStoreTokenInvalidation(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t)

	require.NoError(t, s.InvalidateToken(ctx, "t1", time.Minute))
	invalidated, err := s.IsTokenInvalidated(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, invalidated)

	mr.FastForward(2 * time.Minute)
	invalidated, err = s.IsTokenInvalidated(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, invalidated)
}
