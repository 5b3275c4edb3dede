package service

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Djtrixuk/moltydex-sub000/internal/chain"
	"github.com/Djtrixuk/moltydex-sub000/internal/model"
	"github.com/Djtrixuk/moltydex-sub000/internal/pkg/apperrors"
	"github.com/Djtrixuk/moltydex-sub000/internal/pkg/logger"
	"github.com/Djtrixuk/moltydex-sub000/internal/pkg/metrics"
)

// SwapState is one step of the swap lifecycle.
type SwapState string

const (
	StateIdle       SwapState = "idle"
	StateQuoting    SwapState = "quoting"
	StateBuilt      SwapState = "built"
	StateSigning    SwapState = "signing"
	StateSubmitted  SwapState = "submitted"
	StateConfirming SwapState = "confirming"
	StateSucceeded  SwapState = "succeeded"
	StateFailed     SwapState = "failed"
)

// Signer produces a signed transaction for an approved quote. Signing is
// owned by the client; the server-side implementation wraps a transaction
// the client already signed.
type Signer interface {
	SignTransaction(ctx context.Context, quote *model.Quote) (string, error)
}

// StaticSigner returns a pre-signed transaction supplied by the client.
type StaticSigner string

func (s StaticSigner) SignTransaction(context.Context, *model.Quote) (string, error) {
	if s == "" {
		return "", fmt.Errorf("user rejected the request: no signed transaction provided")
	}
	return string(s), nil
}

// LifecycleConfig tunes the swap state machine.
type LifecycleConfig struct {
	PollInterval    time.Duration
	MaxPolls        int
	QuoteRefreshAge time.Duration
	FeeReserve      uint64
	// OptimisticConfirm resolves an exhausted poll budget as success.
	// Most such swaps did land on-chain, but this can mask genuine
	// failures, so each optimistic resolution is flagged for
	// reconciliation.
	OptimisticConfirm bool
}

// DefaultLifecycleConfig matches production behavior.
var DefaultLifecycleConfig = LifecycleConfig{
	PollInterval:      2 * time.Second,
	MaxPolls:          60,
	QuoteRefreshAge:   20 * time.Second,
	FeeReserve:        10_000_000,
	OptimisticConfirm: true,
}

var refreshDelays = []time.Duration{2 * time.Second, 5 * time.Second, 10 * time.Second}

// Controller drives one swap intent from quote to terminal outcome. It is
// owned by a single client session; confirmation polling runs on scheduled
// callbacks keyed to the currently active signature so an abandoned poll
// can never overwrite newer state.
type Controller struct {
	quotes   *QuoteService
	balances *BalanceService
	chain    *chain.Client
	tracking *TrackingService
	signer   Signer
	cfg      LifecycleConfig

	now   func() time.Time
	after func(time.Duration, func())

	mu              sync.Mutex
	id              string
	state           SwapState
	wallet          string
	inputMint       string
	outputMint      string
	amount          string
	slippageBps     int
	quote           *model.Quote
	record          *model.SwapRecord
	signature       string
	activeSignature string
	failure         *apperrors.AppError
	optimistic      bool
	preSwapBalance  *big.Int
	done            chan struct{}
}

func NewController(quotes *QuoteService, balances *BalanceService, c *chain.Client, tracking *TrackingService, signer Signer, cfg LifecycleConfig) *Controller {
	if cfg.PollInterval <= 0 {
		cfg = DefaultLifecycleConfig
	}
	return &Controller{
		quotes:   quotes,
		balances: balances,
		chain:    c,
		tracking: tracking,
		signer:   signer,
		cfg:      cfg,
		now:      time.Now,
		after:    func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		state:    StateIdle,
		done:     make(chan struct{}),
	}
}

// ID of the swap intent.
func (c *Controller) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// State returns the current lifecycle state.
func (c *Controller) State() SwapState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Signature returns the broadcast signature, if any.
func (c *Controller) Signature() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.signature
}

// Failure returns the terminal failure, if the swap failed.
func (c *Controller) Failure() *apperrors.AppError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failure
}

// Done is closed when the swap reaches a terminal state.
func (c *Controller) Done() <-chan struct{} { return c.done }

// Begin moves idle→quoting, fetches a quote, and lands in built.
func (c *Controller) Begin(ctx context.Context, wallet, inputMint, outputMint, amount string, slippageBps int) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return fmt.Errorf("cannot begin swap in state %s", c.state)
	}
	c.id = uuid.NewString()
	c.state = StateQuoting
	c.wallet = wallet
	c.inputMint = inputMint
	c.outputMint = outputMint
	c.amount = amount
	c.slippageBps = slippageBps
	c.mu.Unlock()

	quote, err := c.quotes.GetQuote(ctx, inputMint, outputMint, amount, slippageBps)
	if err != nil {
		c.fail(apperrors.New("QUOTE_FAILED", apperrors.CatServerUnavailable, "no routing endpoint produced a quote", err))
		return err
	}

	c.mu.Lock()
	c.quote = quote
	c.state = StateBuilt
	c.mu.Unlock()
	return nil
}

// Approve moves built→signing→submitted→confirming. A quote older than
// the refresh margin is re-fetched first: it is still inside its TTL, but
// the remaining steps need headroom. Insufficient funds short-circuits to
// failed before any signing or broadcast call.
func (c *Controller) Approve(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateBuilt {
		c.mu.Unlock()
		return fmt.Errorf("cannot approve swap in state %s", c.state)
	}
	quote := c.quote
	c.mu.Unlock()

	if quote.Age(c.now()) > c.cfg.QuoteRefreshAge {
		logger.Info("quote past refresh margin, re-fetching", "age", quote.Age(c.now()).String())
		fresh, err := c.quotes.GetQuote(ctx, c.inputMint, c.outputMint, c.amount, c.slippageBps)
		if err != nil {
			appErr := apperrors.New("QUOTE_STALE", apperrors.CatQuoteStale, "quote expired and refresh failed", err)
			c.fail(appErr)
			return appErr
		}
		c.mu.Lock()
		c.quote = fresh
		quote = fresh
		c.mu.Unlock()
	}

	c.setState(StateSigning)

	if err := c.validateBalance(ctx); err != nil {
		c.fail(apperrors.Wrap(err))
		return err
	}

	// Pre-swap destination balance, used to cut the post-swap refresh
	// schedule short once the swap is visible.
	if pre, err := c.balances.GetBalance(ctx, c.wallet, c.outputMint); err == nil {
		c.mu.Lock()
		c.preSwapBalance = pre.Raw
		c.mu.Unlock()
	}

	signedTx, err := c.signer.SignTransaction(ctx, quote)
	if err != nil {
		appErr := classifyOnChainError(err.Error())
		c.fail(appErr)
		return appErr
	}

	c.setState(StateSubmitted)

	signature, err := c.chain.SendTransaction(ctx, signedTx)
	if err != nil {
		appErr := classifyOnChainError(err.Error())
		c.fail(appErr)
		return appErr
	}

	c.mu.Lock()
	c.signature = signature
	c.activeSignature = signature
	c.state = StateConfirming
	c.mu.Unlock()

	c.recordPending()
	c.schedulePoll(signature, 0)
	return nil
}

// Cancel discards the intent before broadcast, returning it to idle.
// After broadcast only Abandon is meaningful.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateIdle, StateQuoting, StateBuilt, StateSigning:
		c.state = StateIdle
		c.quote = nil
		return nil
	default:
		return fmt.Errorf("cannot cancel swap in state %s", c.state)
	}
}

// Abandon stops confirmation polling by invalidating the active-signature
// marker. In-flight polls compare their captured signature against it and
// become no-ops; shared state is never mutated by a stale callback.
func (c *Controller) Abandon() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeSignature = ""
}

// Reset returns a terminal controller to idle.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateSucceeded && c.state != StateFailed {
		return fmt.Errorf("cannot reset swap in state %s", c.state)
	}
	c.state = StateIdle
	c.quote = nil
	c.record = nil
	c.signature = ""
	c.activeSignature = ""
	c.failure = nil
	c.optimistic = false
	c.preSwapBalance = nil
	c.done = make(chan struct{})
	return nil
}

func (c *Controller) validateBalance(ctx context.Context) error {
	bal, err := c.balances.GetBalance(ctx, c.wallet, c.inputMint)
	if err != nil {
		return err
	}

	required, ok := new(big.Int).SetString(c.amount, 10)
	if !ok {
		return apperrors.NewValidation("swap amount is not a valid integer")
	}
	// Network fees are paid in SOL, so the reservation only applies when
	// the input asset itself is native.
	if bal.Native {
		required = new(big.Int).Add(required, new(big.Int).SetUint64(c.cfg.FeeReserve))
	}

	if bal.Raw.Cmp(required) < 0 {
		return apperrors.NewInsufficientBalance(fmt.Sprintf(
			"wallet holds %s but %s is required", bal.Raw.String(), required.String()))
	}
	return nil
}

func (c *Controller) schedulePoll(signature string, attempt int) {
	c.after(c.cfg.PollInterval, func() {
		c.poll(signature, attempt)
	})
}

func (c *Controller) poll(signature string, attempt int) {
	c.mu.Lock()
	if signature != c.activeSignature {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.PollInterval*5)
	status, err := c.chain.SignatureStatus(ctx, signature)
	cancel()

	c.mu.Lock()
	if signature != c.activeSignature {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	switch {
	case err == nil && status.Confirmed():
		c.succeed(false)
		return
	case err == nil && status.Failed():
		c.fail(classifyOnChainError(string(status.Err)))
		return
	}

	// Errors and not-yet-final statuses both just keep polling until the
	// budget runs out.
	if attempt+1 >= c.cfg.MaxPolls {
		if c.cfg.OptimisticConfirm {
			c.succeed(true)
		} else {
			c.fail(apperrors.New("ONCHAIN_EXPIRED", apperrors.CatOnChainFailure,
				"confirmation window elapsed without a terminal status", nil))
		}
		return
	}
	c.schedulePoll(signature, attempt+1)
}

func (c *Controller) recordPending() {
	if c.tracking == nil {
		return
	}
	c.mu.Lock()
	quote := c.quote
	wallet, id := c.wallet, c.id
	input, output := c.inputMint, c.outputMint
	c.mu.Unlock()

	rec := c.tracking.RecordSwap(context.Background(), RecordSwapInput{
		ID:         id,
		Wallet:     wallet,
		InputMint:  input,
		OutputMint: output,
		InAmount:   quote.InAmount,
		OutAmount:  quote.OutAmount,
		FeeAmount:  quote.FeeAmount,
	})

	c.mu.Lock()
	c.record = rec
	c.mu.Unlock()
}

func (c *Controller) succeed(optimistic bool) {
	c.mu.Lock()
	if c.state == StateSucceeded || c.state == StateFailed {
		c.mu.Unlock()
		return
	}
	c.state = StateSucceeded
	c.optimistic = optimistic
	signature := c.signature
	record := c.record
	wallet := c.wallet
	quote := c.quote
	done := c.done
	c.mu.Unlock()

	if optimistic {
		metrics.OptimisticConfirms.Inc()
		logger.Warn("swap resolved optimistically after poll budget exhaustion",
			"signature", signature, "wallet", wallet)
	}
	metrics.SwapsTotal.WithLabelValues("succeeded").Inc()

	if c.tracking != nil && record != nil {
		ctx := context.Background()
		c.tracking.ConfirmSwap(ctx, record.ID, signature)
		c.tracking.AwardPoints(ctx, wallet, quote.OutAmount)
	}

	c.scheduleBalanceRefresh(0)
	close(done)
}

func (c *Controller) fail(appErr *apperrors.AppError) {
	c.mu.Lock()
	if c.state == StateSucceeded || c.state == StateFailed {
		c.mu.Unlock()
		return
	}
	c.state = StateFailed
	c.failure = appErr
	done := c.done
	c.mu.Unlock()

	metrics.SwapsTotal.WithLabelValues("failed").Inc()
	logger.Warn("swap failed", "code", appErr.Code, "category", string(appErr.Category), "error", appErr.Error())
	close(done)
}

// scheduleBalanceRefresh re-reads the destination balance a few times
// after success, stopping early once it moves off its pre-swap value.
func (c *Controller) scheduleBalanceRefresh(idx int) {
	if idx >= len(refreshDelays) {
		return
	}
	c.after(refreshDelays[idx], func() {
		c.mu.Lock()
		pre := c.preSwapBalance
		wallet, mint := c.wallet, c.outputMint
		c.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		bal, err := c.balances.GetBalance(ctx, wallet, mint)
		cancel()
		if err == nil && pre != nil && bal.Raw.Cmp(pre) != 0 {
			logger.Debug("destination balance updated", "wallet", wallet, "mint", mint)
			return
		}
		c.scheduleBalanceRefresh(idx + 1)
	})
}

func (c *Controller) setState(s SwapState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// classifyOnChainError folds a raw on-chain or signer error into the fixed
// category set surfaced to clients.
func classifyOnChainError(raw string) *apperrors.AppError {
	s := strings.ToLower(raw)
	code := "ONCHAIN_UNKNOWN"
	msg := "transaction failed on-chain"

	switch {
	case strings.Contains(s, "insufficient lamports") || strings.Contains(s, "insufficient funds") ||
		strings.Contains(s, `"custom":1}`) || strings.Contains(s, "0x1 "):
		code, msg = "ONCHAIN_INSUFFICIENT_FUNDS", "insufficient funds for the swap"
	case strings.Contains(s, "slippage") || strings.Contains(s, "0x1771") ||
		strings.Contains(s, "price moved"):
		code, msg = "ONCHAIN_SLIPPAGE", "price moved beyond the slippage tolerance"
	case strings.Contains(s, "too large") || strings.Contains(s, "encoding overruns"):
		code, msg = "ONCHAIN_TX_TOO_LARGE", "transaction exceeds the size limit"
	case strings.Contains(s, "blockhash not found") || strings.Contains(s, "block height exceeded") ||
		strings.Contains(s, "expired"):
		code, msg = "ONCHAIN_EXPIRED", "transaction expired before confirmation"
	case strings.Contains(s, "user rejected") || strings.Contains(s, "rejected the request") ||
		strings.Contains(s, "declined"):
		code, msg = "ONCHAIN_REJECTED", "the signer rejected the transaction"
	case strings.Contains(s, "simulation failed") || strings.Contains(s, "preflight"):
		code, msg = "ONCHAIN_SIMULATION", "transaction simulation failed"
	}

	err := apperrors.New(code, apperrors.CatOnChainFailure, msg, nil)
	err.Details = raw
	return err
}
