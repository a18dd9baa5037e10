package ports

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/recoverable/core"
)

// Tokenizer converts between caller identities and signed tokens
type Tokenizer interface {
	ChallengeToToken(challenge *core.Challenge) (string, error)
	TokenToChallenge(token string) (*core.Challenge, error)

	SessionToAccessToken(session *core.Session) (string, error)
	AccessTokenToSession(token string) (*core.Session, error)
	SessionToRefreshToken(session *core.Session) (string, error)
	RefreshTokenToSession(token string) (*core.Session, error)

	// VerifySignature checks that signature over the challenge nonce was
	// produced by the key behind address.
	VerifySignature(challenge *core.Challenge, signature string, address common.Address) error
}
