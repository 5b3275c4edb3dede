package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Djtrixuk/moltydex-sub000/internal/model"
	"github.com/Djtrixuk/moltydex-sub000/internal/repository"
)

// brokenRepo fails every write while delegating reads, imitating a durable
// backend that has gone away mid-process.
type brokenRepo struct {
	repository.TrackingRepo
}

var errBackendDown = errors.New("connection refused")

func (r *brokenRepo) InsertSwap(context.Context, *model.SwapRecord) error { return errBackendDown }
func (r *brokenRepo) ConfirmSwap(context.Context, string, string) error   { return errBackendDown }
func (r *brokenRepo) AddPoints(context.Context, string, int64, time.Time) (*model.PointsAccount, error) {
	return nil, errBackendDown
}
func (r *brokenRepo) IncrStats(context.Context, time.Time) error { return errBackendDown }

func newTrackingService() *TrackingService {
	return NewTrackingService(nil, repository.NewMemoryTrackingRepo(0, 0), nil)
}

func recordInput(wallet, outAmount string) RecordSwapInput {
	return RecordSwapInput{
		Wallet:     wallet,
		InputMint:  model.NativeMint,
		OutputMint: testMint,
		InAmount:   "1000000000",
		OutAmount:  outAmount,
	}
}

func TestRecordSwapAssignsIDAndPendingStatus(t *testing.T) {
	svc := newTrackingService()

	rec := svc.RecordSwap(context.Background(), recordInput(testWallet, "2500000"))

	require.NotNil(t, rec)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, model.SwapStatusPending, rec.Status)
	assert.Equal(t, "0", rec.FeeAmount)
}

func TestRecordSwapWithSignatureIsConfirmed(t *testing.T) {
	svc := newTrackingService()

	in := recordInput(testWallet, "2500000")
	in.Signature = "sig123"
	rec := svc.RecordSwap(context.Background(), in)

	assert.Equal(t, model.SwapStatusConfirmed, rec.Status)
}

func TestConfirmSwapFlipsPendingRecord(t *testing.T) {
	svc := newTrackingService()
	ctx := context.Background()

	rec := svc.RecordSwap(ctx, recordInput(testWallet, "2500000"))
	svc.ConfirmSwap(ctx, rec.ID, "sig456")

	swaps := svc.WalletSwaps(ctx, testWallet, 10)
	require.Len(t, swaps, 1)
	assert.Equal(t, model.SwapStatusConfirmed, swaps[0].Status)
	assert.Equal(t, "sig456", swaps[0].Signature)
}

func TestWalletSwapsIsolatedPerWallet(t *testing.T) {
	svc := newTrackingService()
	ctx := context.Background()

	svc.RecordSwap(ctx, recordInput("walletA", "100"))
	svc.RecordSwap(ctx, recordInput("walletB", "200"))

	swapsA := svc.WalletSwaps(ctx, "walletA", 10)
	require.Len(t, swapsA, 1)
	assert.Equal(t, "walletA", swapsA[0].Wallet)

	assert.Len(t, svc.RecentSwaps(ctx, 10), 2)
}

func TestPointsForAmount(t *testing.T) {
	cases := []struct {
		outAmount string
		want      int64
	}{
		{"0", 1},
		{"999999", 1},
		{"1000000", 2},
		{"2500000", 3},
		{"1000000000", 1001},
		{"not-a-number", 1},
		{"", 1},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, PointsForAmount(tc.outAmount), "outAmount: %q", tc.outAmount)
	}
}

func TestAwardPointsAccumulatesAndRanks(t *testing.T) {
	svc := newTrackingService()
	ctx := context.Background()

	svc.AwardPoints(ctx, "whale", "10000000") // 11 points
	res := svc.AwardPoints(ctx, "minnow", "500000")

	assert.Equal(t, int64(1), res.PointsAwarded)
	assert.Equal(t, int64(1), res.TotalPoints)
	assert.Equal(t, int64(2), res.Rank)

	res = svc.AwardPoints(ctx, "minnow", "2500000")
	assert.Equal(t, int64(3), res.PointsAwarded)
	assert.Equal(t, int64(4), res.TotalPoints)

	board := svc.Leaderboard(ctx, 10)
	require.Len(t, board, 2)
	assert.Equal(t, "whale", board[0].Wallet)
	assert.Equal(t, int64(11), board[0].TotalPoints)
	assert.Equal(t, int64(1), board[0].Rank)
}

func TestDurableWriteFailureFallsBackAndStaysReadable(t *testing.T) {
	durable := &brokenRepo{TrackingRepo: repository.NewMemoryTrackingRepo(0, 0)}
	svc := NewTrackingService(durable, repository.NewMemoryTrackingRepo(0, 0), nil)
	ctx := context.Background()

	rec := svc.RecordSwap(ctx, recordInput(testWallet, "2500000"))
	require.NotNil(t, rec)

	// The write degraded to the volatile store; reads must still see it.
	swaps := svc.WalletSwaps(ctx, testWallet, 10)
	require.Len(t, swaps, 1)
	assert.Equal(t, rec.ID, swaps[0].ID)

	res := svc.AwardPoints(ctx, testWallet, "2500000")
	assert.Equal(t, int64(3), res.TotalPoints)
	assert.Equal(t, int64(1), res.Rank)
	assert.Equal(t, int64(3), svc.Points(ctx, testWallet).TotalPoints)
}

func TestReadsMergeBothBackends(t *testing.T) {
	durable := repository.NewMemoryTrackingRepo(0, 0)
	volatile := repository.NewMemoryTrackingRepo(0, 0)
	svc := NewTrackingService(durable, volatile, nil)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, durable.InsertSwap(ctx, &model.SwapRecord{
		ID: "in-durable", Wallet: testWallet, Status: model.SwapStatusConfirmed, CreatedAt: now,
	}))
	require.NoError(t, volatile.InsertSwap(ctx, &model.SwapRecord{
		ID: "in-volatile", Wallet: testWallet, Status: model.SwapStatusPending, CreatedAt: now.Add(time.Second),
	}))

	swaps := svc.WalletSwaps(ctx, testWallet, 10)
	require.Len(t, swaps, 2)
	// Newest first regardless of which backend holds it.
	assert.Equal(t, "in-volatile", swaps[0].ID)
	assert.Equal(t, "in-durable", swaps[1].ID)
}

func TestStatsCountSwaps(t *testing.T) {
	svc := newTrackingService()
	ctx := context.Background()

	svc.RecordSwap(ctx, recordInput(testWallet, "100"))
	svc.RecordSwap(ctx, recordInput(testWallet, "200"))

	stats := svc.Stats(ctx)
	assert.Equal(t, int64(2), stats.TotalSwaps)
	assert.Equal(t, int64(2), stats.DailySwaps)
}

type captureListener struct {
	records []*model.SwapRecord
}

func (l *captureListener) SwapRecorded(rec *model.SwapRecord) {
	l.records = append(l.records, rec)
}

func TestListenersNotifiedOnRecord(t *testing.T) {
	svc := newTrackingService()
	listener := &captureListener{}
	svc.AddListener(listener)

	rec := svc.RecordSwap(context.Background(), recordInput(testWallet, "100"))

	require.Len(t, listener.records, 1)
	assert.Equal(t, rec.ID, listener.records[0].ID)
}
