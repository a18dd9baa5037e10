package core

import "errors"

var (
	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenInvalidated = errors.New("token has been invalidated")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidToken     = errors.New("invalid token")
	ErrInvalidChallenge = errors.New("invalid challenge")
)

// Recovery errors. All of them are precondition violations: nothing was
// changed and retrying without changing the input yields the same result.
var (
	ErrUnauthorized           = errors.New("caller is not authorized for this operation")
	ErrInvalidAgent           = errors.New("invalid recovery agent")
	ErrInvalidProposedOwner   = errors.New("invalid proposed owner")
	ErrRecoveryAlreadyPending = errors.New("a recovery request is already pending")
	ErrRecoveryNotMature      = errors.New("recovery delay has not elapsed")
	ErrNoPendingRecovery      = errors.New("no pending recovery request")
	ErrInvalidDelay           = errors.New("recovery delay must be positive")
	ErrWalletNotFound         = errors.New("wallet not found")
)
