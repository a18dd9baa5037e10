package http

import (
	"bytes"
	"context"
	"errors"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/recoverable/adapters/store"
	"github.com/layer-3/recoverable/adapters/tokenizer"
	"github.com/layer-3/recoverable/core"
	"github.com/layer-3/recoverable/internal/eth"
	"github.com/layer-3/recoverable/ports"
	"github.com/layer-3/recoverable/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDomain = eth.EIP712Domain{
	Name:              "Recoverable Wallet",
	Version:           "1",
	ChainID:           big.NewInt(1),
	VerifyingContract: common.HexToAddress("0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC"),
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type actor struct {
	key    *ecdsa.PrivateKey
	addr   common.Address
	access string
}

type testEnv struct {
	router    *gin.Engine
	clock     *fakeClock
	tokenizer *tokenizer.JWTTokenizer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithWallets(t, nil)
}

// newTestEnvWithWallets uses wallets for wallet state when it is not nil
func newTestEnvWithWallets(t *testing.T, wallets ports.WalletStore) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	signKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	mem := store.NewMemoryStore()
	clock := &fakeClock{now: time.Now().UTC()}
	tk := tokenizer.NewJWTTokenizer(signKey, testDomain).(*tokenizer.JWTTokenizer)
	authService := service.NewAuthService(tk, mem, nil, nil)
	if wallets == nil {
		wallets = mem
	}
	walletService := service.NewWalletService(wallets, nil, nil, service.WithClock(clock))

	return &testEnv{
		router:    SetupRouter(authService, walletService, nil),
		clock:     clock,
		tokenizer: tk,
	}
}

func (e *testEnv) do(t *testing.T, method, path, access string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var out map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func (e *testEnv) newActor(t *testing.T) *actor {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	a := &actor{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}

	w, out := e.do(t, http.MethodPost, "/auth/challenge", "", gin.H{"address": a.addr.Hex()})
	require.Equal(t, http.StatusOK, w.Code)
	challenge := out["token"].(string)

	parsed, err := e.tokenizer.TokenToChallenge(challenge)
	require.NoError(t, err)
	sig, err := eth.Sign(testDomain, eth.NonceMessage(parsed.Nonce), key)
	require.NoError(t, err)

	w, out = e.do(t, http.MethodPost, "/auth/login", "", gin.H{
		"challenge_token": challenge,
		"signature":       hexutil.Encode(sig),
		"address":         a.addr.Hex(),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	a.access = out["access_token"].(string)
	return a
}

func TestRecoveryOverHTTP(t *testing.T) {
	e := newTestEnv(t)
	creator := e.newActor(t)
	user := e.newActor(t)
	recoveryUser := e.newActor(t)
	randomUser := e.newActor(t)

	w, out := e.do(t, http.MethodPost, "/api/wallets", creator.access, gin.H{"recovery_delay_seconds": 1000})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := out["id"].(string)
	base := "/api/wallets/" + id
	assert.Equal(t, creator.addr.Hex(), out["owner"])
	assert.EqualValues(t, 1000, out["recovery_delay_seconds"])

	w, _ = e.do(t, http.MethodPut, base+"/agent", randomUser.access, gin.H{"agent": recoveryUser.addr.Hex()})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = e.do(t, http.MethodPut, base+"/agent", creator.access, gin.H{"agent": creator.addr.Hex()})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, out = e.do(t, http.MethodPut, base+"/agent", creator.access, gin.H{"agent": recoveryUser.addr.Hex()})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, recoveryUser.addr.Hex(), out["recovery_agent"])

	w, _ = e.do(t, http.MethodPost, base+"/recovery", randomUser.access, gin.H{"proposed_owner": user.addr.Hex()})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, out = e.do(t, http.MethodPost, base+"/recovery", recoveryUser.access, gin.H{"proposed_owner": user.addr.Hex()})
	require.Equal(t, http.StatusCreated, w.Code)
	pending := out["pending"].(map[string]any)
	assert.Equal(t, "PENDING", pending["status"])

	w, _ = e.do(t, http.MethodPost, base+"/recovery", recoveryUser.access, gin.H{"proposed_owner": user.addr.Hex()})
	assert.Equal(t, http.StatusConflict, w.Code)

	e.clock.Advance(500 * time.Second)
	w, _ = e.do(t, http.MethodDelete, base+"/recovery", recoveryUser.access, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, out = e.do(t, http.MethodDelete, base+"/recovery", creator.access, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, out["pending"])
	assert.Equal(t, "CANCELLED", out["last_recovery"].(map[string]any)["status"])

	w, _ = e.do(t, http.MethodPost, base+"/recovery/finalize", recoveryUser.access, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = e.do(t, http.MethodPost, base+"/recovery", recoveryUser.access, gin.H{"proposed_owner": user.addr.Hex()})
	require.Equal(t, http.StatusCreated, w.Code)

	e.clock.Advance(999 * time.Second)
	w, _ = e.do(t, http.MethodPost, base+"/recovery/finalize", randomUser.access, nil)
	assert.Equal(t, http.StatusTooEarly, w.Code)

	e.clock.Advance(time.Second)
	w, out = e.do(t, http.MethodPost, base+"/recovery/finalize", randomUser.access, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, user.addr.Hex(), out["owner"])
	assert.Nil(t, out["recovery_agent"])

	w, out = e.do(t, http.MethodGet, base, randomUser.access, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, user.addr.Hex(), out["owner"])
	assert.Equal(t, "FINALIZED", out["last_recovery"].(map[string]any)["status"])
}

func TestWalletRoutesRequireAuth(t *testing.T) {
	e := newTestEnv(t)

	w, _ := e.do(t, http.MethodPost, "/api/wallets", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = e.do(t, http.MethodPost, "/api/wallets", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateWalletWithoutBodyUsesDefaultDelay(t *testing.T) {
	e := newTestEnv(t)
	creator := e.newActor(t)

	w, out := e.do(t, http.MethodPost, "/api/wallets", creator.access, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.EqualValues(t, int64(service.DefaultRecoveryDelay/time.Second), out["recovery_delay_seconds"])
}

func TestUnknownWalletIsNotFound(t *testing.T) {
	e := newTestEnv(t)
	a := e.newActor(t)

	w, _ := e.do(t, http.MethodGet, "/api/wallets/missing", a.access, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBadAddressesAreRejected(t *testing.T) {
	e := newTestEnv(t)

	w, _ := e.do(t, http.MethodPost, "/auth/challenge", "", gin.H{"address": "bob"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	a := e.newActor(t)
	_, out := e.do(t, http.MethodPost, "/api/wallets", a.access, nil)
	w, _ = e.do(t, http.MethodPut, "/api/wallets/"+out["id"].(string)+"/agent", a.access, gin.H{"agent": "0x123"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMe(t *testing.T) {
	e := newTestEnv(t)
	a := e.newActor(t)

	w, out := e.do(t, http.MethodGet, "/api/me", a.access, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, a.addr.Hex(), out["address"])
}

func TestAuthorize(t *testing.T) {
	e := newTestEnv(t)
	a := e.newActor(t)

	w, _ := e.do(t, http.MethodGet, "/api/authorize", a.access, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, a.addr.Hex(), w.Header().Get("X-Wallet-Address"))

	w, _ = e.do(t, http.MethodGet, "/api/authorize", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateWalletRejectsOutOfRangeDelay(t *testing.T) {
	e := newTestEnv(t)
	a := e.newActor(t)

	for _, seconds := range []int64{-1, 18446744074, maxRecoveryDelaySeconds + 1} {
		w, out := e.do(t, http.MethodPost, "/api/wallets", a.access, gin.H{"recovery_delay_seconds": seconds})
		assert.Equal(t, http.StatusBadRequest, w.Code, "seconds=%d", seconds)
		assert.Equal(t, core.ErrInvalidDelay.Error(), out["error"])
	}

	w, out := e.do(t, http.MethodPost, "/api/wallets", a.access, gin.H{"recovery_delay_seconds": maxRecoveryDelaySeconds})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.EqualValues(t, maxRecoveryDelaySeconds, out["recovery_delay_seconds"])
}

type brokenWalletStore struct{}

var errStoreDown = errors.New("dial tcp 10.0.0.7:6379: connect: connection refused")

func (brokenWalletStore) Create(context.Context, *core.Wallet) error { return errStoreDown }

func (brokenWalletStore) Get(context.Context, string) (*core.Wallet, error) {
	return nil, errStoreDown
}

func (brokenWalletStore) Update(context.Context, string, ports.UpdateFunc) (*core.Wallet, error) {
	return nil, errStoreDown
}

func TestStoreFailuresAreNotExposed(t *testing.T) {
	e := newTestEnvWithWallets(t, brokenWalletStore{})
	a := e.newActor(t)

	requests := []struct{ method, path string }{
		{http.MethodPost, "/api/wallets"},
		{http.MethodGet, "/api/wallets/w-1"},
		{http.MethodDelete, "/api/wallets/w-1/agent"},
		{http.MethodPost, "/api/wallets/w-1/recovery/finalize"},
	}
	for _, r := range requests {
		w, out := e.do(t, r.method, r.path, a.access, nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code, r.path)
		assert.Equal(t, "Internal error", out["error"], r.path)
		assert.NotContains(t, w.Body.String(), "10.0.0.7", r.path)
	}
}
