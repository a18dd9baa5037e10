package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/recoverable/core"
	"github.com/layer-3/recoverable/ports"
)

// DefaultRecoveryDelay is used for wallets created without an explicit delay
const DefaultRecoveryDelay = 72 * time.Hour

// WalletService runs the recovery lifecycle for stored wallets. Every
// mutation goes through WalletStore.Update, which serializes writers of the
// same wallet; different wallets proceed independently.
type WalletService struct {
	store        ports.WalletStore
	eventPub     ports.EventPublisher
	logger       watermill.LoggerAdapter
	clock        core.Clock
	defaultDelay time.Duration
}

// WalletOption configures a WalletService
type WalletOption func(*WalletService)

// WithClock sets the time source. It is wrapped in a core.MonotonicClock.
func WithClock(clock core.Clock) WalletOption {
	return func(s *WalletService) { s.clock = core.NewMonotonicClock(clock) }
}

// WithDefaultRecoveryDelay sets the delay for wallets created without one
func WithDefaultRecoveryDelay(d time.Duration) WalletOption {
	return func(s *WalletService) { s.defaultDelay = d }
}

// NewWalletService creates a new wallet service
func NewWalletService(
	store ports.WalletStore,
	eventPub ports.EventPublisher,
	logger watermill.LoggerAdapter,
	opts ...WalletOption,
) *WalletService {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	s := &WalletService{
		store:        store,
		eventPub:     eventPub,
		logger:       logger.With(watermill.LogFields{"component": "wallet"}),
		clock:        core.NewMonotonicClock(core.SystemClock{}),
		defaultDelay: DefaultRecoveryDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateWallet creates a wallet owned by creator. A zero delay selects the
// default delay.
func (s *WalletService) CreateWallet(ctx context.Context, creator common.Address, delay time.Duration) (*core.Wallet, error) {
	if delay == 0 {
		delay = s.defaultDelay
	}

	now := s.clock.Now()
	w, err := core.NewWallet("", creator, delay, now)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, w); err != nil {
		return nil, fmt.Errorf("failed to store wallet: %w", err)
	}

	s.emit(ctx, w, core.EventWalletCreated, creator, nil, now)
	return w, nil
}

// GetWallet returns the current state of a wallet
func (s *WalletService) GetWallet(ctx context.Context, id string) (*core.Wallet, error) {
	return s.store.Get(ctx, id)
}

// DesignateRecoveryAgent sets the wallet's recovery agent
func (s *WalletService) DesignateRecoveryAgent(ctx context.Context, id string, caller, agent common.Address) (*core.Wallet, error) {
	w, _, err := s.mutate(ctx, id, caller, core.EventAgentDesignated, func(w *core.Wallet, _ time.Time) (*core.RecoveryRequest, error) {
		return nil, w.DesignateRecoveryAgent(caller, agent)
	})
	return w, err
}

// RevokeRecoveryAgent disables recovery for the wallet
func (s *WalletService) RevokeRecoveryAgent(ctx context.Context, id string, caller common.Address) (*core.Wallet, error) {
	w, _, err := s.mutate(ctx, id, caller, core.EventAgentRevoked, func(w *core.Wallet, _ time.Time) (*core.RecoveryRequest, error) {
		return nil, w.RevokeRecoveryAgent(caller)
	})
	return w, err
}

// InitiateRecovery opens a recovery request on behalf of the agent
func (s *WalletService) InitiateRecovery(ctx context.Context, id string, caller, proposedOwner common.Address) (*core.Wallet, *core.RecoveryRequest, error) {
	return s.mutate(ctx, id, caller, core.EventRecoveryStarted, func(w *core.Wallet, now time.Time) (*core.RecoveryRequest, error) {
		req, err := w.InitiateRecovery(caller, proposedOwner, now)
		return &req, err
	})
}

// CancelRecovery vetoes the pending request
func (s *WalletService) CancelRecovery(ctx context.Context, id string, caller common.Address) (*core.Wallet, *core.RecoveryRequest, error) {
	return s.mutate(ctx, id, caller, core.EventRecoveryCanceled, func(w *core.Wallet, now time.Time) (*core.RecoveryRequest, error) {
		req, err := w.CancelRecovery(caller, now)
		return &req, err
	})
}

// FinalizeRecovery completes a mature request. Any caller may finalize.
func (s *WalletService) FinalizeRecovery(ctx context.Context, id string, caller common.Address) (*core.Wallet, *core.RecoveryRequest, error) {
	return s.mutate(ctx, id, caller, core.EventRecoveryFinal, func(w *core.Wallet, now time.Time) (*core.RecoveryRequest, error) {
		req, err := w.FinalizeRecovery(caller, now)
		return &req, err
	})
}

type transition func(w *core.Wallet, now time.Time) (*core.RecoveryRequest, error)

// mutate applies op inside a store update. The clock is read inside the
// update so a retried transaction sees a fresh time.
func (s *WalletService) mutate(
	ctx context.Context,
	id string,
	caller common.Address,
	eventType core.EventType,
	op transition,
) (*core.Wallet, *core.RecoveryRequest, error) {
	var (
		req *core.RecoveryRequest
		now time.Time
	)

	w, err := s.store.Update(ctx, id, func(w *core.Wallet) error {
		now = s.clock.Now()
		r, err := op(w, now)
		if err != nil {
			return err
		}
		req = r
		return nil
	})
	if err != nil {
		s.logger.Debug("Wallet operation rejected", watermill.LogFields{
			"wallet_id": id,
			"operation": string(eventType),
			"caller":    caller.Hex(),
			"reason":    err.Error(),
		})
		return nil, nil, err
	}

	s.emit(ctx, w, eventType, caller, req, now)
	return w, req, nil
}

func (s *WalletService) emit(ctx context.Context, w *core.Wallet, eventType core.EventType, actor common.Address, req *core.RecoveryRequest, now time.Time) {
	fields := watermill.LogFields{
		"wallet_id": w.ID,
		"event":     string(eventType),
		"actor":     actor.Hex(),
		"owner":     w.Owner.Hex(),
		"version":   w.Version,
	}
	if req != nil {
		fields["request_id"] = req.ID
	}
	s.logger.Info("Wallet updated", fields)

	if s.eventPub == nil {
		return
	}

	// The transition is committed; a lost notification is not fatal.
	err := s.eventPub.PublishWalletEvent(ctx, core.WalletEvent{
		Type:       eventType,
		WalletID:   w.ID,
		Actor:      actor,
		Owner:      w.Owner,
		Agent:      w.RecoveryAgent,
		Request:    req,
		Version:    w.Version,
		OccurredAt: now,
	})
	if err != nil {
		s.logger.Error("Failed to publish wallet event", err, fields)
	}
}
