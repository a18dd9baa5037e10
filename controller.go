package recoverable

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/recoverable/core"
)

// RecoveryController is a single in-process recoverable wallet. All
// operations are serialized on one mutex; distinct controllers share nothing.
type RecoveryController struct {
	mu     sync.Mutex
	wallet *core.Wallet
	clock  Clock
}

// Option configures a RecoveryController
type Option func(*RecoveryController)

// WithClock sets the clock source. It is wrapped so readings never go backwards.
func WithClock(clock Clock) Option {
	return func(c *RecoveryController) {
		c.clock = core.NewMonotonicClock(clock)
	}
}

// New creates a controller for a wallet owned by creator. The delay is fixed
// for the lifetime of the wallet.
func New(creator common.Address, delay time.Duration, opts ...Option) (*RecoveryController, error) {
	c := &RecoveryController{
		clock: core.NewMonotonicClock(core.SystemClock{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	wallet, err := core.NewWallet("", creator, delay, c.clock.Now())
	if err != nil {
		return nil, err
	}
	c.wallet = wallet

	return c, nil
}

var _ Controller = (*RecoveryController)(nil)

// DesignateRecoveryAgent sets the recovery agent
func (c *RecoveryController) DesignateRecoveryAgent(caller, agent common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.wallet.DesignateRecoveryAgent(caller, agent)
}

// RevokeRecoveryAgent clears the recovery agent
func (c *RecoveryController) RevokeRecoveryAgent(caller common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.wallet.RevokeRecoveryAgent(caller)
}

// InitiateRecovery opens a pending recovery request
func (c *RecoveryController) InitiateRecovery(caller, proposedOwner common.Address) (core.RecoveryRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.wallet.InitiateRecovery(caller, proposedOwner, c.clock.Now())
}

// CancelRecovery vetoes the pending recovery request
func (c *RecoveryController) CancelRecovery(caller common.Address) (core.RecoveryRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.wallet.CancelRecovery(caller, c.clock.Now())
}

// FinalizeRecovery completes a mature recovery request
func (c *RecoveryController) FinalizeRecovery(caller common.Address) (core.RecoveryRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.wallet.FinalizeRecovery(caller, c.clock.Now())
}

// Snapshot returns a deep copy of the wallet state
func (c *RecoveryController) Snapshot() core.Wallet {
	c.mu.Lock()
	defer c.mu.Unlock()

	return *c.wallet.Clone()
}
