package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/Djtrixuk/moltydex-sub000/internal/model"
	"github.com/Djtrixuk/moltydex-sub000/internal/pkg/apperrors"
	"github.com/Djtrixuk/moltydex-sub000/internal/service"
)

type BalanceHandler struct {
	svc *service.BalanceService
}

func NewBalanceHandler(svc *service.BalanceService) *BalanceHandler {
	return &BalanceHandler{svc: svc}
}

// GetBalance handles GET /v1/balance?wallet=...&mint=...
func (h *BalanceHandler) GetBalance(c *gin.Context) {
	wallet := c.Query("wallet")
	mint := c.Query("mint")
	if wallet == "" {
		c.Error(apperrors.NewValidation("wallet query parameter is required"))
		return
	}

	bal, err := h.svc.GetBalance(c.Request.Context(), wallet, mint)
	if err != nil {
		c.Error(apperrors.Wrap(err))
		return
	}

	if bal.Native {
		sol := decimal.NewFromBigInt(bal.Raw, -int32(model.NativeDecimals))
		c.JSON(http.StatusOK, model.NativeBalanceResponse{
			WalletAddress: bal.Wallet,
			Balance:       bal.Raw.String(),
			BalanceSOL:    sol.String(),
			Decimals:      bal.Decimals,
		})
		return
	}

	c.JSON(http.StatusOK, model.BalanceResponse{
		WalletAddress: bal.Wallet,
		TokenMint:     bal.Mint,
		Balance:       bal.Raw.String(),
		Decimals:      bal.Decimals,
		HasBalance:    bal.HasBalance,
		UIAmount:      bal.UIAmount(),
	})
}
