package recoverable

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/recoverable/core"
)

// Controller represents the public interface of an embeddable recoverable
// wallet. Callers are identified by their Ethereum address; authenticating
// them is the host's job.
type Controller interface {
	// DesignateRecoveryAgent lets the owner choose who may initiate recovery
	DesignateRecoveryAgent(caller, agent common.Address) error

	// RevokeRecoveryAgent lets the owner disable recovery
	RevokeRecoveryAgent(caller common.Address) error

	// InitiateRecovery opens a pending request on behalf of the recovery agent
	InitiateRecovery(caller, proposedOwner common.Address) (core.RecoveryRequest, error)

	// CancelRecovery lets the owner veto the pending request
	CancelRecovery(caller common.Address) (core.RecoveryRequest, error)

	// FinalizeRecovery installs the proposed owner once the delay has elapsed
	FinalizeRecovery(caller common.Address) (core.RecoveryRequest, error)

	// Snapshot returns a copy of the current wallet state
	Snapshot() core.Wallet
}

// Clock supplies the time used for recovery delay enforcement
type Clock = core.Clock
