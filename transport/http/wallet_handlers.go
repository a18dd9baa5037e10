package http

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/recoverable/core"
	"github.com/layer-3/recoverable/service"
)

// maxRecoveryDelaySeconds is the largest delay representable as a time.Duration
const maxRecoveryDelaySeconds = math.MaxInt64 / int64(time.Second)

// WalletHandlers exposes the recovery lifecycle over HTTP
type WalletHandlers struct {
	walletService *service.WalletService
	logger        watermill.LoggerAdapter
}

// NewWalletHandlers creates new wallet handlers
func NewWalletHandlers(walletService *service.WalletService, logger watermill.LoggerAdapter) *WalletHandlers {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &WalletHandlers{walletService: walletService, logger: logger}
}

// fail writes err as a response. Domain errors are reported as is; anything
// else is logged and answered with a fixed message.
func (h *WalletHandlers) fail(c *gin.Context, operation string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Wallet operation failed", err, watermill.LogFields{
			"operation": operation,
			"wallet_id": c.Param("id"),
		})
		c.JSON(status, gin.H{"error": "Internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

type requestResponse struct {
	ID            string     `json:"id"`
	Initiator     string     `json:"initiator"`
	ProposedOwner string     `json:"proposed_owner"`
	Status        string     `json:"status"`
	RequestedAt   time.Time  `json:"requested_at"`
	MaturesAt     time.Time  `json:"matures_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy    string     `json:"resolved_by,omitempty"`
}

type walletResponse struct {
	ID                   string           `json:"id"`
	Owner                string           `json:"owner"`
	RecoveryAgent        string           `json:"recovery_agent,omitempty"`
	RecoveryDelaySeconds int64            `json:"recovery_delay_seconds"`
	Pending              *requestResponse `json:"pending,omitempty"`
	LastRecovery         *requestResponse `json:"last_recovery,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
	Version              uint64           `json:"version"`
}

func newRequestResponse(r *core.RecoveryRequest, delay time.Duration) *requestResponse {
	if r == nil {
		return nil
	}
	resp := &requestResponse{
		ID:            r.ID,
		Initiator:     r.Initiator.Hex(),
		ProposedOwner: r.ProposedOwner.Hex(),
		Status:        string(r.Status),
		RequestedAt:   r.RequestedAt,
		MaturesAt:     r.MaturesAt(delay),
		ResolvedAt:    r.ResolvedAt,
	}
	if r.ResolvedBy != nil {
		resp.ResolvedBy = r.ResolvedBy.Hex()
	}
	return resp
}

func newWalletResponse(w *core.Wallet) walletResponse {
	resp := walletResponse{
		ID:                   w.ID,
		Owner:                w.Owner.Hex(),
		RecoveryDelaySeconds: int64(w.RecoveryDelay / time.Second),
		Pending:              newRequestResponse(w.Pending, w.RecoveryDelay),
		LastRecovery:         newRequestResponse(w.LastRecovery, w.RecoveryDelay),
		CreatedAt:            w.CreatedAt,
		Version:              w.Version,
	}
	if w.HasRecoveryAgent() {
		resp.RecoveryAgent = w.RecoveryAgent.Hex()
	}
	return resp
}

// run executes a wallet operation for the authenticated caller and writes
// the resulting wallet state
func (h *WalletHandlers) run(c *gin.Context, operation string, status int, op func(ctx context.Context, caller common.Address) (*core.Wallet, error)) {
	addr, ok := caller(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Caller not found in context"})
		return
	}

	w, err := op(c.Request.Context(), addr)
	observeOperation(operation, err)
	if err != nil {
		h.fail(c, operation, err)
		return
	}

	c.JSON(status, newWalletResponse(w))
}

// Create creates a wallet owned by the caller
func (h *WalletHandlers) Create(c *gin.Context) {
	var req struct {
		RecoveryDelaySeconds int64 `json:"recovery_delay_seconds"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
	}
	if req.RecoveryDelaySeconds < 0 || req.RecoveryDelaySeconds > maxRecoveryDelaySeconds {
		observeOperation("create", core.ErrInvalidDelay)
		c.JSON(http.StatusBadRequest, gin.H{"error": core.ErrInvalidDelay.Error()})
		return
	}

	h.run(c, "create", http.StatusCreated, func(ctx context.Context, caller common.Address) (*core.Wallet, error) {
		return h.walletService.CreateWallet(ctx, caller, time.Duration(req.RecoveryDelaySeconds)*time.Second)
	})
}

// Get returns a wallet
func (h *WalletHandlers) Get(c *gin.Context) {
	w, err := h.walletService.GetWallet(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "get", err)
		return
	}
	c.JSON(http.StatusOK, newWalletResponse(w))
}

// DesignateAgent sets the recovery agent
func (h *WalletHandlers) DesignateAgent(c *gin.Context) {
	var req struct {
		Agent string `json:"agent" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	agent, ok := parseAddress(req.Agent)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid agent address"})
		return
	}

	h.run(c, "designate_agent", http.StatusOK, func(ctx context.Context, caller common.Address) (*core.Wallet, error) {
		return h.walletService.DesignateRecoveryAgent(ctx, c.Param("id"), caller, agent)
	})
}

// RevokeAgent clears the recovery agent
func (h *WalletHandlers) RevokeAgent(c *gin.Context) {
	h.run(c, "revoke_agent", http.StatusOK, func(ctx context.Context, caller common.Address) (*core.Wallet, error) {
		return h.walletService.RevokeRecoveryAgent(ctx, c.Param("id"), caller)
	})
}

// InitiateRecovery opens a recovery request
func (h *WalletHandlers) InitiateRecovery(c *gin.Context) {
	var req struct {
		ProposedOwner string `json:"proposed_owner" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	proposed, ok := parseAddress(req.ProposedOwner)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid proposed owner address"})
		return
	}

	h.run(c, "initiate", http.StatusCreated, func(ctx context.Context, caller common.Address) (*core.Wallet, error) {
		w, _, err := h.walletService.InitiateRecovery(ctx, c.Param("id"), caller, proposed)
		return w, err
	})
}

// CancelRecovery vetoes the pending request
func (h *WalletHandlers) CancelRecovery(c *gin.Context) {
	h.run(c, "cancel", http.StatusOK, func(ctx context.Context, caller common.Address) (*core.Wallet, error) {
		w, _, err := h.walletService.CancelRecovery(ctx, c.Param("id"), caller)
		return w, err
	})
}

// FinalizeRecovery completes a mature request
func (h *WalletHandlers) FinalizeRecovery(c *gin.Context) {
	h.run(c, "finalize", http.StatusOK, func(ctx context.Context, caller common.Address) (*core.Wallet, error) {
		w, _, err := h.walletService.FinalizeRecovery(ctx, c.Param("id"), caller)
		return w, err
	})
}
