package tokenizer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/recoverable/core"
	"github.com/layer-3/recoverable/internal/eth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDomain = eth.EIP712Domain{
	Name:              "Recoverable Wallet",
	Version:           "1",
	ChainID:           big.NewInt(1),
	VerifyingContract: common.HexToAddress("0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC"),
}

func newTokenizer(t *testing.T) *JWTTokenizer {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return NewJWTTokenizer(key, testDomain).(*JWTTokenizer)
}

func TestSessionRoundTrip(t *testing.T) {
	tk := newTokenizer(t)
	now := time.Now().Truncate(time.Second)
	session := &core.Session{
		ID:            "session-1",
		Address:       common.HexToAddress("0x00000000000000000000000000000000000000c1"),
		IssuedAt:      now,
		AccessExpiry:  now.Add(5 * time.Minute),
		RefreshExpiry: now.Add(time.Hour),
		RefreshID:     "refresh-1",
	}

	access, err := tk.SessionToAccessToken(session)
	require.NoError(t, err)
	got, err := tk.AccessTokenToSession(access)
	require.NoError(t, err)
	assert.Equal(t, session.Address, got.Address)
	assert.Equal(t, "refresh-1", got.RefreshID)
	assert.Equal(t, session.AccessExpiry.Unix(), got.AccessExpiry.Unix())

	refresh, err := tk.SessionToRefreshToken(session)
	require.NoError(t, err)
	got, err = tk.RefreshTokenToSession(refresh)
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", got.RefreshID)
	assert.Equal(t, session.Address, got.Address)

	// Audiences are not interchangeable.
	_, err = tk.RefreshTokenToSession(access)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
	_, err = tk.AccessTokenToSession(refresh)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestExpiredTokenIsReported(t *testing.T) {
	tk := newTokenizer(t)
	past := time.Now().Add(-time.Hour)
	access, err := tk.SessionToAccessToken(&core.Session{
		ID:           "s",
		Address:      common.HexToAddress("0x01"),
		IssuedAt:     past,
		AccessExpiry: past.Add(time.Minute),
	})
	require.NoError(t, err)

	_, err = tk.AccessTokenToSession(access)
	assert.ErrorIs(t, err, core.ErrTokenExpired)
}

func TestTokenFromAnotherKeyIsRejected(t *testing.T) {
	issuer := newTokenizer(t)
	verifier := newTokenizer(t)

	token, err := issuer.ChallengeToToken(&core.Challenge{
		ID:        "c",
		Address:   common.HexToAddress("0x01"),
		Nonce:     "n",
		IssuedAt:  time.Now(),
		ExpiresAt: time.Now().Add(time.Minute),
	})
	require.NoError(t, err)

	_, err = verifier.TokenToChallenge(token)
	assert.ErrorIs(t, err, core.ErrInvalidToken)

	challenge, err := issuer.TokenToChallenge(token)
	require.NoError(t, err)
	assert.Equal(t, "n", challenge.Nonce)
}

func TestVerifySignature(t *testing.T) {
	tk := newTokenizer(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey)

	challenge := &core.Challenge{ID: "c", Address: addr, Nonce: "deadbeef"}
	sig, err := eth.Sign(testDomain, eth.NonceMessage(challenge.Nonce), key)
	require.NoError(t, err)

	require.NoError(t, tk.VerifySignature(challenge, hexutil.Encode(sig), addr))

	other := common.HexToAddress("0x00000000000000000000000000000000000000d4")
	err = tk.VerifySignature(&core.Challenge{Address: other, Nonce: "deadbeef"}, hexutil.Encode(sig), other)
	assert.ErrorIs(t, err, core.ErrInvalidSignature)

	err = tk.VerifySignature(challenge, hexutil.Encode(sig), other)
	assert.ErrorIs(t, err, core.ErrInvalidChallenge)

	err = tk.VerifySignature(challenge, "0x1234", addr)
	assert.ErrorIs(t, err, core.ErrInvalidSignature)

	err = tk.VerifySignature(challenge, "not-hex", addr)
	assert.ErrorIs(t, err, core.ErrInvalidSignature)
}
