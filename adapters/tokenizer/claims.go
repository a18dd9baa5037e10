package tokenizer

import "github.com/golang-jwt/jwt/v5"

// ChallengeClaims carries the nonce the caller must sign
type ChallengeClaims struct {
	jwt.RegisteredClaims
	Nonce string `json:"nonce"`
}

// AccessClaims binds an access token to its refresh token
type AccessClaims struct {
	jwt.RegisteredClaims
	RefreshID string `json:"rid"`
}

// RefreshClaims are just the standard claims; the jti is the refresh id
type RefreshClaims struct {
	jwt.RegisteredClaims
}
