package core

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventType names a wallet state transition.
type EventType string

const (
	EventWalletCreated    EventType = "wallet.created"
	EventAgentDesignated  EventType = "recovery.agent_designated"
	EventAgentRevoked     EventType = "recovery.agent_revoked"
	EventRecoveryStarted  EventType = "recovery.initiated"
	EventRecoveryCanceled EventType = "recovery.cancelled"
	EventRecoveryFinal    EventType = "recovery.finalized"
)

// WalletEvent describes a committed transition of a wallet.
type WalletEvent struct {
	Type       EventType        `json:"type"`
	WalletID   string           `json:"wallet_id"`
	Actor      common.Address   `json:"actor"`
	Owner      common.Address   `json:"owner"`
	Agent      common.Address   `json:"agent"`
	Request    *RecoveryRequest `json:"request,omitempty"`
	Version    uint64           `json:"version"`
	OccurredAt time.Time        `json:"occurred_at"`
}
