package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Djtrixuk/moltydex-sub000/internal/chain"
	"github.com/Djtrixuk/moltydex-sub000/internal/model"
	"github.com/Djtrixuk/moltydex-sub000/internal/pkg/apperrors"
	"github.com/Djtrixuk/moltydex-sub000/internal/repository"
)

const testSignature = "5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW"

// swapEnv wires a controller against a fake node and quote endpoint with
// callbacks running synchronously instead of on timers.
type swapEnv struct {
	rpc       *fakeRPC
	quoteHits atomic.Int64
	ctrl      *Controller
}

func newSwapEnv(t *testing.T, nativeLamports uint64, tracking *TrackingService, cfg LifecycleConfig) *swapEnv {
	t.Helper()
	env := &swapEnv{rpc: newFakeRPC()}
	t.Cleanup(env.rpc.close)

	quoteSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.quoteHits.Add(1)
		json.NewEncoder(w).Encode(validQuoteJSON("2500000"))
	}))
	t.Cleanup(quoteSrv.Close)

	env.rpc.on("getBalance", func([]json.RawMessage) (any, *rpcError) {
		return balanceResult(nativeLamports), nil
	})
	env.rpc.on("getTokenAccountsByOwner", func([]json.RawMessage) (any, *rpcError) {
		return tokenAccountsResult(tokenAccount(testMint, "50", 6)), nil
	})
	env.rpc.on("sendTransaction", func([]json.RawMessage) (any, *rpcError) {
		return testSignature, nil
	})
	env.rpc.on("getSignatureStatuses", func([]json.RawMessage) (any, *rpcError) {
		return signatureStatusResult("finalized", nil), nil
	})

	client := env.rpc.client()
	quotes := NewQuoteService(chain.NewPool(), []string{quoteSrv.URL}, "", 50, 5*time.Second)
	env.ctrl = NewController(quotes, NewBalanceService(client), client, tracking, StaticSigner("c2lnbmVkdHg="), cfg)
	env.ctrl.after = func(_ time.Duration, f func()) { f() }
	return env
}

func testLifecycleConfig() LifecycleConfig {
	return LifecycleConfig{
		PollInterval:      50 * time.Millisecond,
		MaxPolls:          3,
		QuoteRefreshAge:   20 * time.Second,
		FeeReserve:        10_000_000,
		OptimisticConfirm: true,
	}
}

func (e *swapEnv) begin(t *testing.T) {
	t.Helper()
	err := e.ctrl.Begin(context.Background(), testWallet, model.NativeMint, testMint, "1000000000", 50)
	require.NoError(t, err)
	require.Equal(t, StateBuilt, e.ctrl.State())
}

func TestApproveConfirmedSwapSucceeds(t *testing.T) {
	env := newSwapEnv(t, 2_000_000_000, nil, testLifecycleConfig())
	env.begin(t)

	require.NoError(t, env.ctrl.Approve(context.Background()))

	assert.Equal(t, StateSucceeded, env.ctrl.State())
	assert.Equal(t, testSignature, env.ctrl.Signature())
	assert.Nil(t, env.ctrl.Failure())
	select {
	case <-env.ctrl.Done():
	default:
		t.Fatal("done channel not closed after terminal state")
	}
}

func TestApproveRefreshesAgedQuote(t *testing.T) {
	env := newSwapEnv(t, 2_000_000_000, nil, testLifecycleConfig())
	env.begin(t)

	// The held quote is inside its TTL but past the refresh margin.
	env.ctrl.now = func() time.Time { return time.Now().Add(25 * time.Second) }

	require.NoError(t, env.ctrl.Approve(context.Background()))
	assert.Equal(t, int64(2), env.quoteHits.Load())
}

func TestApproveKeepsFreshQuote(t *testing.T) {
	env := newSwapEnv(t, 2_000_000_000, nil, testLifecycleConfig())
	env.begin(t)

	require.NoError(t, env.ctrl.Approve(context.Background()))
	assert.Equal(t, int64(1), env.quoteHits.Load())
}

func TestApproveInsufficientFundsSkipsBroadcast(t *testing.T) {
	// Covers the amount but not the native fee reservation on top of it.
	env := newSwapEnv(t, 1_005_000_000, nil, testLifecycleConfig())
	env.begin(t)

	err := env.ctrl.Approve(context.Background())

	require.Error(t, err)
	assert.Equal(t, StateFailed, env.ctrl.State())
	require.NotNil(t, env.ctrl.Failure())
	assert.Equal(t, apperrors.CatInsufficientBalance, env.ctrl.Failure().Category)
	assert.Zero(t, env.rpc.callCount("sendTransaction"))
}

func TestApproveSignerRejectionSkipsBroadcast(t *testing.T) {
	env := newSwapEnv(t, 2_000_000_000, nil, testLifecycleConfig())
	env.ctrl.signer = StaticSigner("")
	env.begin(t)

	err := env.ctrl.Approve(context.Background())

	require.Error(t, err)
	require.NotNil(t, env.ctrl.Failure())
	assert.Equal(t, "ONCHAIN_REJECTED", env.ctrl.Failure().Code)
	assert.Zero(t, env.rpc.callCount("sendTransaction"))
}

func TestPollOnChainFailureClassified(t *testing.T) {
	env := newSwapEnv(t, 2_000_000_000, nil, testLifecycleConfig())
	env.rpc.on("getSignatureStatuses", func([]json.RawMessage) (any, *rpcError) {
		return signatureStatusResult("finalized", map[string]any{
			"InstructionError": []any{2, map[string]any{"Custom": 1}},
		}), nil
	})
	env.begin(t)

	require.NoError(t, env.ctrl.Approve(context.Background()))

	assert.Equal(t, StateFailed, env.ctrl.State())
	require.NotNil(t, env.ctrl.Failure())
	assert.Equal(t, "ONCHAIN_INSUFFICIENT_FUNDS", env.ctrl.Failure().Code)
	assert.Equal(t, apperrors.CatOnChainFailure, env.ctrl.Failure().Category)
}

func TestPollExhaustionResolvesOptimistically(t *testing.T) {
	env := newSwapEnv(t, 2_000_000_000, nil, testLifecycleConfig())
	env.rpc.on("getSignatureStatuses", func([]json.RawMessage) (any, *rpcError) {
		return signatureStatusResult("processed", nil), nil
	})
	env.begin(t)

	require.NoError(t, env.ctrl.Approve(context.Background()))

	assert.Equal(t, StateSucceeded, env.ctrl.State())
	assert.True(t, env.ctrl.optimistic)
	assert.Equal(t, int64(3), env.rpc.callCount("getSignatureStatuses"))
}

func TestPollExhaustionStrictModeFails(t *testing.T) {
	cfg := testLifecycleConfig()
	cfg.OptimisticConfirm = false
	env := newSwapEnv(t, 2_000_000_000, nil, cfg)
	env.rpc.on("getSignatureStatuses", func([]json.RawMessage) (any, *rpcError) {
		return signatureStatusResult("processed", nil), nil
	})
	env.begin(t)

	require.NoError(t, env.ctrl.Approve(context.Background()))

	assert.Equal(t, StateFailed, env.ctrl.State())
	require.NotNil(t, env.ctrl.Failure())
	assert.Equal(t, "ONCHAIN_EXPIRED", env.ctrl.Failure().Code)
}

func TestAbandonDiscardsPendingPolls(t *testing.T) {
	env := newSwapEnv(t, 2_000_000_000, nil, testLifecycleConfig())

	var pending []func()
	env.ctrl.after = func(_ time.Duration, f func()) { pending = append(pending, f) }

	env.begin(t)
	require.NoError(t, env.ctrl.Approve(context.Background()))
	require.Equal(t, StateConfirming, env.ctrl.State())
	require.Len(t, pending, 1)

	env.ctrl.Abandon()
	pending[0]()

	assert.Equal(t, StateConfirming, env.ctrl.State())
	assert.Zero(t, env.rpc.callCount("getSignatureStatuses"))
}

func TestCancelBeforeBroadcast(t *testing.T) {
	env := newSwapEnv(t, 2_000_000_000, nil, testLifecycleConfig())
	env.begin(t)

	require.NoError(t, env.ctrl.Cancel())
	assert.Equal(t, StateIdle, env.ctrl.State())
}

func TestCancelAfterBroadcastRejected(t *testing.T) {
	env := newSwapEnv(t, 2_000_000_000, nil, testLifecycleConfig())

	// Hold the poll so the controller stays in confirming.
	env.ctrl.after = func(time.Duration, func()) {}

	env.begin(t)
	require.NoError(t, env.ctrl.Approve(context.Background()))
	require.Equal(t, StateConfirming, env.ctrl.State())

	assert.Error(t, env.ctrl.Cancel())
}

func TestConfirmedSwapRecordedAndRewarded(t *testing.T) {
	tracking := NewTrackingService(nil, repository.NewMemoryTrackingRepo(0, 0), nil)
	env := newSwapEnv(t, 2_000_000_000, tracking, testLifecycleConfig())
	env.begin(t)

	require.NoError(t, env.ctrl.Approve(context.Background()))

	ctx := context.Background()
	swaps := tracking.WalletSwaps(ctx, testWallet, 10)
	require.Len(t, swaps, 1)
	assert.Equal(t, model.SwapStatusConfirmed, swaps[0].Status)
	assert.Equal(t, testSignature, swaps[0].Signature)

	// 1 base point plus floor(2,500,000 / 1,000,000).
	points := tracking.Points(ctx, testWallet)
	assert.Equal(t, int64(3), points.TotalPoints)
}

func TestResetReturnsTerminalControllerToIdle(t *testing.T) {
	env := newSwapEnv(t, 2_000_000_000, nil, testLifecycleConfig())
	env.begin(t)
	require.NoError(t, env.ctrl.Approve(context.Background()))
	require.Equal(t, StateSucceeded, env.ctrl.State())

	require.NoError(t, env.ctrl.Reset())
	assert.Equal(t, StateIdle, env.ctrl.State())
	assert.Empty(t, env.ctrl.Signature())
}

func TestClassifyOnChainError(t *testing.T) {
	cases := []struct {
		raw  string
		code string
	}{
		{`{"InstructionError":[2,{"Custom":1}]}`, "ONCHAIN_INSUFFICIENT_FUNDS"},
		{"Transfer: insufficient lamports 5000, need 2039280", "ONCHAIN_INSUFFICIENT_FUNDS"},
		{"custom program error: 0x1771", "ONCHAIN_SLIPPAGE"},
		{"Slippage tolerance exceeded", "ONCHAIN_SLIPPAGE"},
		{"VersionedTransaction too large: 1693 bytes", "ONCHAIN_TX_TOO_LARGE"},
		{"Blockhash not found", "ONCHAIN_EXPIRED"},
		{"block height exceeded", "ONCHAIN_EXPIRED"},
		{"User rejected the request", "ONCHAIN_REJECTED"},
		{"Transaction simulation failed: InstructionError", "ONCHAIN_SIMULATION"},
		{"something nobody has seen before", "ONCHAIN_UNKNOWN"},
	}
	for _, tc := range cases {
		appErr := classifyOnChainError(tc.raw)
		assert.Equal(t, tc.code, appErr.Code, "raw: %s", tc.raw)
		assert.Equal(t, apperrors.CatOnChainFailure, appErr.Category)
		assert.Equal(t, tc.raw, appErr.Details)
	}
}
