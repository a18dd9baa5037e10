package http

import (
	"errors"
	"net/http"

	"github.com/layer-3/recoverable/core"
)

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, core.ErrInvalidAgent),
		errors.Is(err, core.ErrInvalidProposedOwner),
		errors.Is(err, core.ErrInvalidDelay):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrRecoveryAlreadyPending),
		errors.Is(err, core.ErrNoPendingRecovery):
		return http.StatusConflict
	case errors.Is(err, core.ErrRecoveryNotMature):
		return http.StatusTooEarly
	case errors.Is(err, core.ErrWalletNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// outcomeFor is the metrics label for an operation result
func outcomeFor(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, core.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, core.ErrInvalidAgent):
		return "invalid_agent"
	case errors.Is(err, core.ErrInvalidProposedOwner):
		return "invalid_proposed_owner"
	case errors.Is(err, core.ErrInvalidDelay):
		return "invalid_delay"
	case errors.Is(err, core.ErrRecoveryAlreadyPending):
		return "already_pending"
	case errors.Is(err, core.ErrNoPendingRecovery):
		return "no_pending"
	case errors.Is(err, core.ErrRecoveryNotMature):
		return "not_mature"
	case errors.Is(err, core.ErrWalletNotFound):
		return "not_found"
	default:
		return "error"
	}
}
