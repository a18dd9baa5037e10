// Package eth implements the EIP-712 challenge signature used to prove
// control of an Ethereum address.
package eth

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// SignatureLength is the size of an [R || S || V] secp256k1 signature.
const SignatureLength = 65

// ErrBadSignatureLength is returned for signatures that are not 65 bytes.
var ErrBadSignatureLength = errors.New("signature must be 65 bytes")

// EIP712Domain separates challenge signatures of this service from any other
// typed data a wallet may sign.
type EIP712Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// NonceMessage builds the Challenge message for nonce.
func NonceMessage(nonce string) apitypes.TypedDataMessage {
	return apitypes.TypedDataMessage{"nonce": nonce}
}

// TypedData assembles the full EIP-712 payload for a challenge message.
func TypedData(domain EIP712Domain, msg apitypes.TypedDataMessage) apitypes.TypedData {
	chainID := domain.ChainID
	if chainID == nil {
		chainID = big.NewInt(1)
	}
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Challenge": {
				{Name: "nonce", Type: "string"},
			},
		},
		PrimaryType: "Challenge",
		Domain: apitypes.TypedDataDomain{
			Name:              domain.Name,
			Version:           domain.Version,
			ChainId:           (*math.HexOrDecimal256)(chainID),
			VerifyingContract: domain.VerifyingContract.Hex(),
		},
		Message: msg,
	}
}

// Hash returns the EIP-712 digest a wallet signs for msg.
func Hash(domain EIP712Domain, msg apitypes.TypedDataMessage) ([]byte, error) {
	hash, _, err := apitypes.TypedDataAndHash(TypedData(domain, msg))
	if err != nil {
		return nil, fmt.Errorf("failed to hash typed data: %w", err)
	}
	return hash, nil
}

// RecoverSigner returns the address whose key produced sig over msg.
// Both 0/1 and 27/28 recovery ids are accepted.
func RecoverSigner(domain EIP712Domain, msg apitypes.TypedDataMessage, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, ErrBadSignatureLength
	}
	hash, err := Hash(domain, msg)
	if err != nil {
		return common.Address{}, err
	}

	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}

	pub, err := crypto.SigToPub(hash, normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifySignatureAgainstAddress reports whether sig over msg was produced by expected.
func VerifySignatureAgainstAddress(domain EIP712Domain, msg apitypes.TypedDataMessage, sig []byte, expected common.Address) (bool, error) {
	signer, err := RecoverSigner(domain, msg, sig)
	if err != nil {
		return false, err
	}
	return signer == expected, nil
}

// Sign produces a wallet-style signature (V in 27/28) over msg.
func Sign(domain EIP712Domain, msg apitypes.TypedDataMessage, key *ecdsa.PrivateKey) ([]byte, error) {
	hash, err := Hash(domain, msg)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(hash, key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	sig[64] += 27
	return sig, nil
}
