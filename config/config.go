// Package config loads recoverd settings from the environment, an optional
// .env file and command line flags.
package config

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/layer-3/recoverable/internal/eth"
	"github.com/layer-3/recoverable/service"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. RECOVERD_HTTP_ADDR
const EnvPrefix = "RECOVERD"

// Store backends
const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Keys
const (
	KeyHTTPAddr                = "http_addr"
	KeyRedisURL                = "redis_url"
	KeyStore                   = "store"
	KeySigningKey              = "signing_key"
	KeyDefaultRecoveryDelay    = "default_recovery_delay"
	KeyEIP712Name              = "eip712_name"
	KeyEIP712Version           = "eip712_version"
	KeyEIP712ChainID           = "eip712_chain_id"
	KeyEIP712VerifyingContract = "eip712_verifying_contract"
	KeyDebug                   = "debug"
)

var ErrInvalidSigningKey = errors.New("invalid signing key")

const p256ScalarSize = 32

// Config holds everything needed to wire the server
type Config struct {
	HTTPAddr             string
	RedisURL             string
	Store                string
	SigningKey           *ecdsa.PrivateKey
	DefaultRecoveryDelay time.Duration
	EIP712Name           string
	EIP712Version        string
	EIP712ChainID        int64
	VerifyingContract    common.Address
	Debug                bool
}

// Domain is the EIP-712 domain login challenges are signed under
func (c Config) Domain() eth.EIP712Domain {
	return eth.EIP712Domain{
		Name:              c.EIP712Name,
		Version:           c.EIP712Version,
		ChainID:           big.NewInt(c.EIP712ChainID),
		VerifyingContract: c.VerifyingContract,
	}
}

// NewViper returns a viper instance with defaults and environment binding.
// Flags may be bound to it before calling Load.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyHTTPAddr, ":9000")
	v.SetDefault(KeyRedisURL, "redis://localhost:6379/0")
	v.SetDefault(KeyStore, StoreRedis)
	v.SetDefault(KeySigningKey, "")
	v.SetDefault(KeyDefaultRecoveryDelay, service.DefaultRecoveryDelay)
	v.SetDefault(KeyEIP712Name, "Recoverable Wallet")
	v.SetDefault(KeyEIP712Version, "1")
	v.SetDefault(KeyEIP712ChainID, 1)
	v.SetDefault(KeyEIP712VerifyingContract, common.Address{}.Hex())
	v.SetDefault(KeyDebug, false)
	return v
}

// LoadDotEnv loads .env from the working directory if present. Variables
// already set in the environment win.
func LoadDotEnv() error {
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	if err := godotenv.Load(); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// Load reads and validates the configuration from v
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		HTTPAddr:             v.GetString(KeyHTTPAddr),
		RedisURL:             v.GetString(KeyRedisURL),
		Store:                strings.ToLower(v.GetString(KeyStore)),
		DefaultRecoveryDelay: v.GetDuration(KeyDefaultRecoveryDelay),
		EIP712Name:           v.GetString(KeyEIP712Name),
		EIP712Version:        v.GetString(KeyEIP712Version),
		EIP712ChainID:        v.GetInt64(KeyEIP712ChainID),
		Debug:                v.GetBool(KeyDebug),
	}

	switch cfg.Store {
	case StoreRedis, StoreMemory:
	default:
		return Config{}, fmt.Errorf("unknown store %q", cfg.Store)
	}

	if cfg.DefaultRecoveryDelay <= 0 {
		return Config{}, fmt.Errorf("%s must be positive, got %s", KeyDefaultRecoveryDelay, cfg.DefaultRecoveryDelay)
	}

	contract := v.GetString(KeyEIP712VerifyingContract)
	if !common.IsHexAddress(contract) {
		return Config{}, fmt.Errorf("%s: invalid address %q", KeyEIP712VerifyingContract, contract)
	}
	cfg.VerifyingContract = common.HexToAddress(contract)

	key, err := ParseSigningKey(v.GetString(KeySigningKey))
	if err != nil {
		return Config{}, err
	}
	cfg.SigningKey = key

	return cfg, nil
}

// ParseSigningKey decodes a hex P-256 private scalar. An empty string
// generates a fresh key; tokens then do not survive a restart.
func ParseSigningKey(s string) (*ecdsa.PrivateKey, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	}

	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSigningKey, err)
	}

	if len(raw) > p256ScalarSize {
		return nil, fmt.Errorf("%w: scalar longer than %d bytes", ErrInvalidSigningKey, p256ScalarSize)
	}
	scalar := make([]byte, p256ScalarSize)
	copy(scalar[p256ScalarSize-len(raw):], raw)

	// Rejects zero and scalars not below the group order.
	priv, err := ecdh.P256().NewPrivateKey(scalar)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSigningKey, err)
	}

	// Uncompressed point: 0x04 || X || Y
	point := priv.PublicKey().Bytes()
	return &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(point[1 : 1+p256ScalarSize]),
			Y:     new(big.Int).SetBytes(point[1+p256ScalarSize:]),
		},
		D: new(big.Int).SetBytes(scalar),
	}, nil
}

// EncodeSigningKey is the inverse of ParseSigningKey
func EncodeSigningKey(key *ecdsa.PrivateKey) string {
	return hex.EncodeToString(key.D.FillBytes(make([]byte, p256ScalarSize)))
}
