package recoverable

import (
	"github.com/layer-3/recoverable/core"
)

var (
	// ErrUnauthorized is returned when the caller does not hold the role the operation requires
	ErrUnauthorized = core.ErrUnauthorized

	// ErrInvalidAgent is returned when the agent is the owner or the zero address
	ErrInvalidAgent = core.ErrInvalidAgent

	// ErrInvalidProposedOwner is returned when recovery would install the current owner or the zero address
	ErrInvalidProposedOwner = core.ErrInvalidProposedOwner

	// ErrRecoveryAlreadyPending is returned when a second request is initiated while one is pending
	ErrRecoveryAlreadyPending = core.ErrRecoveryAlreadyPending

	// ErrRecoveryNotMature is returned when finalization is attempted before the delay has elapsed
	ErrRecoveryNotMature = core.ErrRecoveryNotMature

	// ErrNoPendingRecovery is returned when there is no request to cancel or finalize
	ErrNoPendingRecovery = core.ErrNoPendingRecovery

	// ErrInvalidDelay is returned when the recovery delay is not positive
	ErrInvalidDelay = core.ErrInvalidDelay
)
