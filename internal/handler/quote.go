package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Djtrixuk/moltydex-sub000/internal/model"
	"github.com/Djtrixuk/moltydex-sub000/internal/pkg/apperrors"
	"github.com/Djtrixuk/moltydex-sub000/internal/service"
)

type QuoteHandler struct {
	svc    *service.QuoteService
	tokens *service.TokenCache
}

func NewQuoteHandler(svc *service.QuoteService, tokens *service.TokenCache) *QuoteHandler {
	return &QuoteHandler{svc: svc, tokens: tokens}
}

// GetQuote handles GET /v1/quote?input_mint=...&output_mint=...&amount=...&slippage_bps=...
func (h *QuoteHandler) GetQuote(c *gin.Context) {
	inputMint := c.Query("input_mint")
	outputMint := c.Query("output_mint")
	amount := c.Query("amount")
	if inputMint == "" || outputMint == "" || amount == "" {
		c.Error(apperrors.NewValidation("input_mint, output_mint and amount are required"))
		return
	}
	slippageBps, _ := strconv.Atoi(c.DefaultQuery("slippage_bps", "50"))

	quote, err := h.svc.GetQuote(c.Request.Context(), inputMint, outputMint, amount, slippageBps)
	if err != nil {
		var quoteErrs *service.QuoteErrors
		if errors.As(err, &quoteErrs) {
			appErr := apperrors.New("QUOTE_UNAVAILABLE", apperrors.CatServerUnavailable,
				"no routing endpoint produced a quote", err)
			appErr.Details = quoteErrs.Failures
			c.Error(appErr)
			return
		}
		c.Error(apperrors.Wrap(err))
		return
	}

	c.JSON(http.StatusOK, model.QuoteResponse{
		InputMint:      quote.InputMint,
		OutputMint:     quote.OutputMint,
		InputAmount:    quote.InAmount,
		OutputAmount:   quote.OutAmount,
		OutputAfterFee: quote.OutAmountAfterFee,
		FeeAmount:      quote.FeeAmount,
		PriceImpact:    quote.PriceImpactPct,
		HighImpact:     service.HighImpact(quote),
		SlippageBps:    quote.SlippageBps,
		RoutePlan:      quote.RoutePlan,
		Source:         quote.SourceEndpoint,
	})
}

// GetTokens handles GET /v1/tokens
func (h *QuoteHandler) GetTokens(c *gin.Context) {
	tokens, err := h.tokens.Tokens(c.Request.Context())
	if err != nil {
		c.Error(apperrors.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}
