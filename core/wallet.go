package core

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// RecoveryStatus is the lifecycle state of a recovery request.
type RecoveryStatus string

const (
	RecoveryPending   RecoveryStatus = "PENDING"
	RecoveryCancelled RecoveryStatus = "CANCELLED"
	RecoveryFinalized RecoveryStatus = "FINALIZED"
)

// RecoveryRequest is an attempt by the recovery agent to install a new owner.
type RecoveryRequest struct {
	ID            string          `json:"id"`
	Initiator     common.Address  `json:"initiator"`
	ProposedOwner common.Address  `json:"proposed_owner"`
	RequestedAt   time.Time       `json:"requested_at"`
	Status        RecoveryStatus  `json:"status"`
	ResolvedAt    *time.Time      `json:"resolved_at,omitempty"`
	ResolvedBy    *common.Address `json:"resolved_by,omitempty"`
}

// MaturesAt returns the first instant at which the request may be finalized.
func (r RecoveryRequest) MaturesAt(delay time.Duration) time.Time {
	return r.RequestedAt.Add(delay)
}

func (r *RecoveryRequest) resolve(status RecoveryStatus, by common.Address, at time.Time) RecoveryRequest {
	r.Status = status
	r.ResolvedAt = &at
	r.ResolvedBy = &by
	return *r
}

// Wallet is the custody state of a single recoverable wallet.
//
// Wallet is not safe for concurrent use. Every mutating method validates all
// of its preconditions before touching any field, so a returned error means
// the wallet is unchanged.
type Wallet struct {
	ID            string         `json:"id"`
	Owner         common.Address `json:"owner"`
	RecoveryAgent common.Address `json:"recovery_agent"` // zero: recovery disabled
	RecoveryDelay time.Duration  `json:"recovery_delay"`

	// Pending is the live request slot.
	Pending *RecoveryRequest `json:"pending,omitempty"`
	// LastRecovery is the most recent terminal (cancelled or finalized) request.
	LastRecovery *RecoveryRequest `json:"last_recovery,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	Version   uint64    `json:"version"`
}

// NewWallet creates a wallet owned by creator with no recovery agent.
func NewWallet(id string, creator common.Address, delay time.Duration, now time.Time) (*Wallet, error) {
	if creator == (common.Address{}) {
		return nil, ErrUnauthorized
	}
	if delay <= 0 {
		return nil, ErrInvalidDelay
	}
	if id == "" {
		id = uuid.New().String()
	}
	return &Wallet{
		ID:            id,
		Owner:         creator,
		RecoveryDelay: delay,
		CreatedAt:     now,
		Version:       1,
	}, nil
}

// HasRecoveryAgent reports whether recovery is enabled.
func (w *Wallet) HasRecoveryAgent() bool {
	return w.RecoveryAgent != (common.Address{})
}

// DesignateRecoveryAgent sets the principal allowed to initiate recovery.
// A pending request is left untouched; the owner can still cancel it.
func (w *Wallet) DesignateRecoveryAgent(caller, agent common.Address) error {
	if caller != w.Owner {
		return ErrUnauthorized
	}
	if agent == (common.Address{}) || agent == w.Owner {
		return ErrInvalidAgent
	}
	w.RecoveryAgent = agent
	w.Version++
	return nil
}

// RevokeRecoveryAgent disables recovery until a new agent is designated.
func (w *Wallet) RevokeRecoveryAgent(caller common.Address) error {
	if caller != w.Owner {
		return ErrUnauthorized
	}
	w.RecoveryAgent = common.Address{}
	w.Version++
	return nil
}

// InitiateRecovery opens a pending request to hand the wallet to proposedOwner.
func (w *Wallet) InitiateRecovery(caller, proposedOwner common.Address, now time.Time) (RecoveryRequest, error) {
	if !w.HasRecoveryAgent() || caller != w.RecoveryAgent {
		return RecoveryRequest{}, ErrUnauthorized
	}
	if w.Pending != nil {
		return RecoveryRequest{}, ErrRecoveryAlreadyPending
	}
	if proposedOwner == (common.Address{}) || proposedOwner == w.Owner {
		return RecoveryRequest{}, ErrInvalidProposedOwner
	}

	req := &RecoveryRequest{
		ID:            uuid.New().String(),
		Initiator:     caller,
		ProposedOwner: proposedOwner,
		RequestedAt:   now,
		Status:        RecoveryPending,
	}
	w.Pending = req
	w.Version++
	return *req, nil
}

// CancelRecovery lets the owner veto the pending request at any time before
// it is finalized.
func (w *Wallet) CancelRecovery(caller common.Address, now time.Time) (RecoveryRequest, error) {
	if caller != w.Owner {
		return RecoveryRequest{}, ErrUnauthorized
	}
	if w.Pending == nil {
		return RecoveryRequest{}, ErrNoPendingRecovery
	}

	record := w.Pending.resolve(RecoveryCancelled, caller, now)
	w.LastRecovery = &record
	w.Pending = nil
	w.Version++
	return record, nil
}

// FinalizeRecovery installs the proposed owner once the delay has elapsed.
// Any caller may finalize a mature request. The recovery agent is cleared so
// the new owner has to designate one explicitly.
func (w *Wallet) FinalizeRecovery(caller common.Address, now time.Time) (RecoveryRequest, error) {
	if w.Pending == nil {
		return RecoveryRequest{}, ErrNoPendingRecovery
	}
	if now.Before(w.Pending.MaturesAt(w.RecoveryDelay)) {
		return RecoveryRequest{}, ErrRecoveryNotMature
	}

	record := w.Pending.resolve(RecoveryFinalized, caller, now)
	w.Owner = record.ProposedOwner
	w.RecoveryAgent = common.Address{}
	w.LastRecovery = &record
	w.Pending = nil
	w.Version++
	return record, nil
}

// Clone returns a deep copy of the wallet.
func (w *Wallet) Clone() *Wallet {
	c := *w
	c.Pending = cloneRequest(w.Pending)
	c.LastRecovery = cloneRequest(w.LastRecovery)
	return &c
}

func cloneRequest(r *RecoveryRequest) *RecoveryRequest {
	if r == nil {
		return nil
	}
	c := *r
	if r.ResolvedAt != nil {
		at := *r.ResolvedAt
		c.ResolvedAt = &at
	}
	if r.ResolvedBy != nil {
		by := *r.ResolvedBy
		c.ResolvedBy = &by
	}
	return &c
}
