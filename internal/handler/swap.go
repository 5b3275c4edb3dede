package handler

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/Djtrixuk/moltydex-sub000/internal/chain"
	"github.com/Djtrixuk/moltydex-sub000/internal/model"
	"github.com/Djtrixuk/moltydex-sub000/internal/pkg/apperrors"
	"github.com/Djtrixuk/moltydex-sub000/internal/service"
)

type SwapHandler struct {
	quotes   *service.QuoteService
	balances *service.BalanceService
	chain    *chain.Client
	tracking *service.TrackingService
	cfg      service.LifecycleConfig

	mu       sync.Mutex
	sessions map[string]*service.Controller
}

func NewSwapHandler(quotes *service.QuoteService, balances *service.BalanceService, c *chain.Client, tracking *service.TrackingService, cfg service.LifecycleConfig) *SwapHandler {
	return &SwapHandler{
		quotes:   quotes,
		balances: balances,
		chain:    c,
		tracking: tracking,
		cfg:      cfg,
		sessions: make(map[string]*service.Controller),
	}
}

// Execute handles POST /v1/swaps/execute: the client fetched a quote,
// signed the transaction, and hands it over for broadcast and
// confirmation tracking.
func (h *SwapHandler) Execute(c *gin.Context) {
	var req model.ExecuteSwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidation(err.Error()))
		return
	}

	ctrl := service.NewController(h.quotes, h.balances, h.chain, h.tracking,
		service.StaticSigner(req.SignedTx), h.cfg)

	if err := ctrl.Begin(c.Request.Context(), req.Wallet, req.InputMint, req.OutputMint, req.Amount, req.SlippageBps); err != nil {
		c.Error(apperrors.Wrap(err))
		return
	}
	if err := ctrl.Approve(c.Request.Context()); err != nil {
		c.Error(apperrors.Wrap(err))
		return
	}

	h.mu.Lock()
	h.sessions[ctrl.ID()] = ctrl
	h.mu.Unlock()

	c.JSON(http.StatusAccepted, model.ExecuteSwapResponse{
		ID:        ctrl.ID(),
		Signature: ctrl.Signature(),
		State:     string(ctrl.State()),
	})
}

// Status handles GET /v1/sessions/:id for swaps submitted through
// Execute.
func (h *SwapHandler) Status(c *gin.Context) {
	id := c.Param("id")

	h.mu.Lock()
	ctrl, ok := h.sessions[id]
	h.mu.Unlock()
	if !ok {
		c.Error(apperrors.New("SWAP_NOT_FOUND", apperrors.CatNotFound, "unknown swap id", nil))
		return
	}

	resp := gin.H{
		"id":        id,
		"state":     string(ctrl.State()),
		"signature": ctrl.Signature(),
	}
	if failure := ctrl.Failure(); failure != nil {
		resp["failure"] = failure
	}
	c.JSON(http.StatusOK, resp)
}

// Abandon handles DELETE /v1/sessions/:id: before broadcast the intent is
// cancelled; after broadcast only confirmation polling is abandoned.
func (h *SwapHandler) Abandon(c *gin.Context) {
	id := c.Param("id")

	h.mu.Lock()
	ctrl, ok := h.sessions[id]
	h.mu.Unlock()
	if !ok {
		c.Error(apperrors.New("SWAP_NOT_FOUND", apperrors.CatNotFound, "unknown swap id", nil))
		return
	}

	if err := ctrl.Cancel(); err != nil {
		ctrl.Abandon()
		c.JSON(http.StatusOK, gin.H{"id": id, "state": string(ctrl.State()), "polling": "abandoned"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "state": string(ctrl.State())})
}

// Record handles POST /v1/swaps: a client-completed swap is recorded and
// points are awarded. This path never fails on persistence problems.
func (h *SwapHandler) Record(c *gin.Context) {
	var req model.RecordSwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidation(err.Error()))
		return
	}

	rec := h.tracking.RecordSwap(c.Request.Context(), service.RecordSwapInput{
		Wallet:     req.Wallet,
		InputMint:  req.InputMint,
		OutputMint: req.OutputMint,
		InAmount:   req.InAmount,
		OutAmount:  req.OutAmount,
		FeeAmount:  req.FeeAmount,
		Signature:  req.Signature,
	})
	points := h.tracking.AwardPoints(c.Request.Context(), req.Wallet, req.OutAmount)

	c.JSON(http.StatusCreated, gin.H{"swap": rec, "points": points})
}
