package core

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Challenge is a nonce a caller signs to prove control of Address.
type Challenge struct {
	ID        string
	Address   common.Address
	Nonce     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Session is an authenticated caller. Address is the principal every wallet
// operation is authorized against.
type Session struct {
	ID            string
	Address       common.Address
	IssuedAt      time.Time
	RefreshExpiry time.Time
	AccessExpiry  time.Time
	RefreshID     string // jti of the paired refresh token
}
