package tokenizer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/recoverable/core"
	"github.com/layer-3/recoverable/internal/eth"
	"github.com/layer-3/recoverable/ports"
)

const (
	AudienceChallenge = "recovery:challenge"
	AudienceAccess    = "recovery:access"
	AudienceRefresh   = "recovery:refresh"
)

// JWTTokenizer implements the Tokenizer interface using ES256 JWTs and
// EIP-712 challenge signatures
type JWTTokenizer struct {
	signKey *ecdsa.PrivateKey
	domain  eth.EIP712Domain
}

// NewJWTTokenizer creates a new JWT tokenizer. domain is the EIP-712 domain
// callers sign challenges under.
func NewJWTTokenizer(signKey *ecdsa.PrivateKey, domain eth.EIP712Domain) ports.Tokenizer {
	return &JWTTokenizer{signKey: signKey, domain: domain}
}

func (j *JWTTokenizer) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	signed, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (j *JWTTokenizer) parse(tokenStr string, claims jwt.Claims, audience string) error {
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &j.signKey.PublicKey, nil
	}, jwt.WithAudience(audience), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return core.ErrTokenExpired
		}
		return fmt.Errorf("%w: %v", core.ErrInvalidToken, err)
	}
	if !token.Valid {
		return core.ErrInvalidToken
	}
	return nil
}

func subjectAddress(subject string) (common.Address, error) {
	if !common.IsHexAddress(subject) {
		return common.Address{}, fmt.Errorf("%w: subject is not an address", core.ErrInvalidToken)
	}
	return common.HexToAddress(subject), nil
}

// ChallengeToToken converts a Challenge to a JWT token
func (j *JWTTokenizer) ChallengeToToken(challenge *core.Challenge) (string, error) {
	return j.sign(ChallengeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   challenge.Address.Hex(),
			ID:        challenge.ID,
			ExpiresAt: jwt.NewNumericDate(challenge.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(challenge.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceChallenge},
		},
		Nonce: challenge.Nonce,
	})
}

// TokenToChallenge converts a JWT token to a Challenge
func (j *JWTTokenizer) TokenToChallenge(tokenStr string) (*core.Challenge, error) {
	claims := &ChallengeClaims{}
	if err := j.parse(tokenStr, claims, AudienceChallenge); err != nil {
		return nil, err
	}

	address, err := subjectAddress(claims.Subject)
	if err != nil {
		return nil, err
	}

	return &core.Challenge{
		ID:        claims.ID,
		Address:   address,
		Nonce:     claims.Nonce,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// SessionToAccessToken converts a Session to an access JWT token
func (j *JWTTokenizer) SessionToAccessToken(session *core.Session) (string, error) {
	return j.sign(AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.Address.Hex(),
			ID:        session.ID,
			ExpiresAt: jwt.NewNumericDate(session.AccessExpiry),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceAccess},
		},
		RefreshID: session.RefreshID,
	})
}

// SessionToRefreshToken converts a Session to a refresh JWT token
func (j *JWTTokenizer) SessionToRefreshToken(session *core.Session) (string, error) {
	return j.sign(RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.Address.Hex(),
			ID:        session.RefreshID,
			ExpiresAt: jwt.NewNumericDate(session.RefreshExpiry),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceRefresh},
		},
	})
}

// AccessTokenToSession parses an access token and returns the associated session
func (j *JWTTokenizer) AccessTokenToSession(tokenStr string) (*core.Session, error) {
	claims := &AccessClaims{}
	if err := j.parse(tokenStr, claims, AudienceAccess); err != nil {
		return nil, err
	}

	address, err := subjectAddress(claims.Subject)
	if err != nil {
		return nil, err
	}

	return &core.Session{
		ID:           claims.ID,
		Address:      address,
		IssuedAt:     claims.IssuedAt.Time,
		AccessExpiry: claims.ExpiresAt.Time,
		RefreshID:    claims.RefreshID,
	}, nil
}

// RefreshTokenToSession parses a refresh token. Only the refresh half of the
// session is populated.
func (j *JWTTokenizer) RefreshTokenToSession(tokenStr string) (*core.Session, error) {
	claims := &RefreshClaims{}
	if err := j.parse(tokenStr, claims, AudienceRefresh); err != nil {
		return nil, err
	}

	address, err := subjectAddress(claims.Subject)
	if err != nil {
		return nil, err
	}

	return &core.Session{
		Address:       address,
		IssuedAt:      claims.IssuedAt.Time,
		RefreshExpiry: claims.ExpiresAt.Time,
		RefreshID:     claims.ID,
	}, nil
}

// VerifySignature verifies an EIP-712 signature of the challenge nonce
func (j *JWTTokenizer) VerifySignature(challenge *core.Challenge, signatureStr string, address common.Address) error {
	if challenge.Address != address {
		return fmt.Errorf("address mismatch: %w", core.ErrInvalidChallenge)
	}
	decodedSig, err := hexutil.Decode(signatureStr)
	if err != nil {
		return fmt.Errorf("failed to decode signature: %w", core.ErrInvalidSignature)
	}
	if len(decodedSig) != eth.SignatureLength {
		return fmt.Errorf("signature must be 65 bytes: %w", core.ErrInvalidSignature)
	}

	verified, err := eth.VerifySignatureAgainstAddress(j.domain, eth.NonceMessage(challenge.Nonce), decodedSig, address)
	if err != nil {
		return fmt.Errorf("EIP-712 signature verification failed: %v: %w", err, core.ErrInvalidSignature)
	}
	if !verified {
		return core.ErrInvalidSignature
	}

	return nil
}
