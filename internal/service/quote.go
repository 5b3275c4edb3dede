package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Djtrixuk/moltydex-sub000/internal/chain"
	"github.com/Djtrixuk/moltydex-sub000/internal/model"
	"github.com/Djtrixuk/moltydex-sub000/internal/pkg/logger"
	"github.com/Djtrixuk/moltydex-sub000/internal/pkg/metrics"
)

// launchMintSuffix marks low-liquidity launch tokens. Their pools need
// more accounts per hop and are excluded by the default intermediate-token
// restriction, so routing hints are relaxed for them.
const launchMintSuffix = "pump"

// launchMaxAccounts is the raised on-chain account budget for launch-token
// routes.
const launchMaxAccounts = 64

// highImpactThreshold is the price-impact fraction above which a quote is
// flagged.
var highImpactThreshold = decimal.NewFromFloat(0.01)

// EndpointFailure records why one routing endpoint produced no usable quote.
type EndpointFailure struct {
	Endpoint string `json:"endpoint"`
	Reason   string `json:"reason"`
}

// QuoteErrors aggregates per-endpoint failures after the whole endpoint
// list has been exhausted.
type QuoteErrors struct {
	Failures []EndpointFailure
}

func (e *QuoteErrors) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Endpoint, f.Reason))
	}
	return "all quote endpoints failed: " + strings.Join(parts, "; ")
}

// QuoteService fetches quotes from an ordered list of routing endpoints,
// returning the first valid response.
type QuoteService struct {
	endpoints []string
	apiKey    string
	feeBps    int64
	execs     []*chain.Executor
	timeout   time.Duration
	now       func() time.Time
}

func NewQuoteService(pool *chain.Pool, endpoints []string, apiKey string, feeBps int64, timeout time.Duration) *QuoteService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	execs := make([]*chain.Executor, len(endpoints))
	for i, ep := range endpoints {
		execs[i] = chain.NewExecutor(pool, ep, "", chain.Policy{
			MaxAttempts: 2,
			BaseDelay:   250 * time.Millisecond,
		})
	}
	return &QuoteService{
		endpoints: endpoints,
		apiKey:    apiKey,
		feeBps:    feeBps,
		execs:     execs,
		timeout:   timeout,
		now:       time.Now,
	}
}

// GetQuote walks the endpoint list in order and returns the first quote
// with a non-empty output amount. When every endpoint fails or answers
// invalidly, it returns a *QuoteErrors listing each endpoint's failure.
func (s *QuoteService) GetQuote(ctx context.Context, inputMint, outputMint, amount string, slippageBps int) (*model.Quote, error) {
	if len(s.endpoints) == 0 {
		return nil, fmt.Errorf("no quote endpoints configured")
	}

	params := s.routingParams(inputMint, outputMint, amount, slippageBps)

	var failures []EndpointFailure
	for i, ep := range s.endpoints {
		quote, err := s.fetchQuote(ctx, s.execs[i], ep, params)
		if err != nil {
			metrics.QuotesTotal.WithLabelValues(ep, "error").Inc()
			logger.Warn("quote endpoint failed", "endpoint", ep, "error", err)
			failures = append(failures, EndpointFailure{Endpoint: ep, Reason: err.Error()})
			continue
		}
		metrics.QuotesTotal.WithLabelValues(ep, "ok").Inc()
		return quote, nil
	}
	return nil, &QuoteErrors{Failures: failures}
}

// routingParams builds the query for one quote request. The default
// policy restricts intermediate hops to high-liquidity tokens; launch
// tokens lift the restriction and raise the account budget since they
// are only reachable through non-standard pools.
func (s *QuoteService) routingParams(inputMint, outputMint, amount string, slippageBps int) url.Values {
	v := url.Values{}
	v.Set("inputMint", inputMint)
	v.Set("outputMint", outputMint)
	v.Set("amount", amount)
	v.Set("slippageBps", strconv.Itoa(slippageBps))

	if isLaunchMint(inputMint) || isLaunchMint(outputMint) {
		v.Set("restrictIntermediateTokens", "false")
		v.Set("maxAccounts", strconv.Itoa(launchMaxAccounts))
	} else {
		v.Set("restrictIntermediateTokens", "true")
	}
	return v
}

func isLaunchMint(mint string) bool {
	return strings.HasSuffix(strings.ToLower(mint), launchMintSuffix)
}

type quoteResponse struct {
	InputMint            string `json:"inputMint"`
	OutputMint           string `json:"outputMint"`
	InAmount             string `json:"inAmount"`
	OutAmount            string `json:"outAmount"`
	OtherAmountThreshold string `json:"otherAmountThreshold"`
	PriceImpactPct       string `json:"priceImpactPct"`
	SlippageBps          int    `json:"slippageBps"`
	RoutePlan            []struct {
		SwapInfo struct {
			Label      string `json:"label"`
			InputMint  string `json:"inputMint"`
			OutputMint string `json:"outputMint"`
		} `json:"swapInfo"`
		Percent int `json:"percent"`
	} `json:"routePlan"`
}

func (s *QuoteService) fetchQuote(ctx context.Context, exec *chain.Executor, endpoint string, params url.Values) (*model.Quote, error) {
	var parsed quoteResponse
	err := exec.Execute(ctx, func(ctx context.Context, h *chain.Handle) error {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/quote?"+params.Encode(), nil)
		if err != nil {
			return err
		}
		if s.apiKey != "" {
			req.Header.Set("x-api-key", s.apiKey)
		}

		resp, err := h.HTTP.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return &chain.HTTPError{Status: resp.StatusCode, Body: string(body)}
		}
		return json.Unmarshal(body, &parsed)
	})
	if err != nil {
		return nil, err
	}

	// Anything without an output amount is an invalid response and the
	// router advances to the next endpoint.
	if parsed.OutAmount == "" {
		return nil, fmt.Errorf("invalid quote response: empty output amount")
	}

	quote := &model.Quote{
		InputMint:            parsed.InputMint,
		OutputMint:           parsed.OutputMint,
		InAmount:             parsed.InAmount,
		OutAmount:            parsed.OutAmount,
		OtherAmountThreshold: parsed.OtherAmountThreshold,
		PriceImpactPct:       parsed.PriceImpactPct,
		SlippageBps:          parsed.SlippageBps,
		SourceEndpoint:       endpoint,
		FetchedAt:            s.now(),
	}
	for _, step := range parsed.RoutePlan {
		quote.RoutePlan = append(quote.RoutePlan, model.RouteStep{
			Label:      step.SwapInfo.Label,
			InputMint:  step.SwapInfo.InputMint,
			OutputMint: step.SwapInfo.OutputMint,
			Percent:    step.Percent,
		})
	}

	quote.FeeAmount, quote.OutAmountAfterFee = s.applyFee(parsed.OutAmount)
	return quote, nil
}

// applyFee deducts the platform fee from the quoted output amount.
func (s *QuoteService) applyFee(outAmount string) (fee string, afterFee string) {
	out, err := decimal.NewFromString(outAmount)
	if err != nil {
		return "0", outAmount
	}
	f := out.Mul(decimal.NewFromInt(s.feeBps)).Div(decimal.NewFromInt(10_000)).Floor()
	return f.String(), out.Sub(f).String()
}

// HighImpact reports whether the quote's price impact crosses the warning
// threshold.
func HighImpact(q *model.Quote) bool {
	if q.PriceImpactPct == "" {
		return false
	}
	impact, err := decimal.NewFromString(q.PriceImpactPct)
	if err != nil {
		return false
	}
	return impact.GreaterThan(highImpactThreshold)
}
