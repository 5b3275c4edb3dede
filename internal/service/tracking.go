package service

import (
	"context"
	"math/big"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Djtrixuk/moltydex-sub000/internal/model"
	"github.com/Djtrixuk/moltydex-sub000/internal/pkg/logger"
	"github.com/Djtrixuk/moltydex-sub000/internal/pkg/metrics"
	"github.com/Djtrixuk/moltydex-sub000/internal/repository"
)

// pointsUnit is the output-amount denominator of the reward formula:
// points = 1 + floor(outAmount / pointsUnit).
var pointsUnit = big.NewInt(1_000_000)

// RecordSwapInput are the fields for one recorded swap.
type RecordSwapInput struct {
	ID         string
	Wallet     string
	InputMint  string
	OutputMint string
	InAmount   string
	OutAmount  string
	FeeAmount  string
	Signature  string
}

// SwapListener is notified after a swap record is written.
type SwapListener interface {
	SwapRecorded(rec *model.SwapRecord)
}

// SwapArchiver persists swap records outside the tracking backends.
type SwapArchiver interface {
	Insert(ctx context.Context, rec *model.SwapRecord) error
	Confirm(ctx context.Context, id, signature string) error
}

// TrackingService records swaps, awards points, and serves history and
// leaderboard reads. Writes go to the durable backend when configured and
// fall back to the volatile one on failure; callers never see an error
// from this path. Reads consult both backends so data written during a
// durable outage stays visible within the process.
type TrackingService struct {
	durable   repository.TrackingRepo
	volatile  repository.TrackingRepo
	archive   SwapArchiver
	listeners []SwapListener
	now       func() time.Time
}

func NewTrackingService(durable repository.TrackingRepo, volatile repository.TrackingRepo, archive SwapArchiver) *TrackingService {
	if volatile == nil {
		volatile = repository.NewMemoryTrackingRepo(0, 0)
	}
	return &TrackingService{
		durable:  durable,
		volatile: volatile,
		archive:  archive,
		now:      time.Now,
	}
}

// AddListener registers a notification target for recorded swaps.
func (s *TrackingService) AddListener(l SwapListener) {
	s.listeners = append(s.listeners, l)
}

// RecordSwap assigns an id and status, persists the record, and bumps the
// recent lists and counters. This is an analytics path, not a ledger of
// record: persistence problems degrade to volatile storage and are never
// surfaced to the caller.
func (s *TrackingService) RecordSwap(ctx context.Context, in RecordSwapInput) *model.SwapRecord {
	rec := &model.SwapRecord{
		ID:         in.ID,
		Wallet:     in.Wallet,
		InputMint:  in.InputMint,
		OutputMint: in.OutputMint,
		InAmount:   in.InAmount,
		OutAmount:  in.OutAmount,
		FeeAmount:  in.FeeAmount,
		Signature:  in.Signature,
		Status:     model.SwapStatusPending,
		CreatedAt:  s.now().UTC(),
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.FeeAmount == "" {
		rec.FeeAmount = "0"
	}
	if rec.Signature != "" {
		rec.Status = model.SwapStatusConfirmed
	}

	repo := s.writeRepo(ctx, func(r repository.TrackingRepo) error {
		return r.InsertSwap(ctx, rec)
	})
	if err := repo.IncrStats(ctx, rec.CreatedAt); err != nil {
		logger.Warn("stats counter update failed", "error", err)
	}

	if s.archive != nil {
		if err := s.archive.Insert(ctx, rec); err != nil {
			logger.Warn("swap archive write failed", "swap_id", rec.ID, "error", err)
		}
	}

	metrics.SwapsTotal.WithLabelValues(rec.Status).Inc()
	for _, l := range s.listeners {
		l.SwapRecorded(rec)
	}
	return rec
}

// ConfirmSwap applies the single pending→confirmed mutation once the
// signature is learned.
func (s *TrackingService) ConfirmSwap(ctx context.Context, id, signature string) {
	s.writeRepo(ctx, func(r repository.TrackingRepo) error {
		return r.ConfirmSwap(ctx, id, signature)
	})
	if s.archive != nil {
		if err := s.archive.Confirm(ctx, id, signature); err != nil {
			logger.Warn("swap archive confirm failed", "swap_id", id, "error", err)
		}
	}
}

// AwardPoints computes 1 + floor(outAmount/1e6) points, applies them to
// the wallet's account, and returns the award with the wallet's new rank.
func (s *TrackingService) AwardPoints(ctx context.Context, wallet, outAmount string) *model.PointsResult {
	points := PointsForAmount(outAmount)
	at := s.now().UTC()

	var acct *model.PointsAccount
	repo := s.writeRepo(ctx, func(r repository.TrackingRepo) error {
		a, err := r.AddPoints(ctx, wallet, points, at)
		if err != nil {
			return err
		}
		acct = a
		return nil
	})

	rank, err := repo.Rank(ctx, wallet)
	if err != nil {
		logger.Warn("rank lookup failed", "wallet", wallet, "error", err)
	}

	total := points
	if acct != nil {
		total = acct.TotalPoints
	}
	return &model.PointsResult{PointsAwarded: points, TotalPoints: total, Rank: rank}
}

// PointsForAmount computes the reward for one swap's output amount in
// smallest units. Unparseable amounts earn the base point only.
func PointsForAmount(outAmount string) int64 {
	out, ok := new(big.Int).SetString(outAmount, 10)
	if !ok || out.Sign() < 0 {
		return 1
	}
	bonus := new(big.Int).Quo(out, pointsUnit)
	return 1 + bonus.Int64()
}

// writeRepo runs the write against the durable backend first, degrading
// to the volatile one on failure. It returns the repo that took the write
// so follow-up reads hit consistent state.
func (s *TrackingService) writeRepo(_ context.Context, write func(repository.TrackingRepo) error) repository.TrackingRepo {
	if s.durable != nil {
		err := write(s.durable)
		if err == nil {
			return s.durable
		}
		metrics.TrackingFallbacks.Inc()
		logger.Warn("durable tracking write failed, using volatile store", "error", err)
	}
	if err := write(s.volatile); err != nil {
		logger.Error("volatile tracking write failed", "error", err)
	}
	return s.volatile
}

// WalletSwaps returns the wallet's recent swaps, newest first.
func (s *TrackingService) WalletSwaps(ctx context.Context, wallet string, limit int) []*model.SwapRecord {
	return s.readSwaps(ctx, func(r repository.TrackingRepo) ([]*model.SwapRecord, error) {
		return r.WalletSwaps(ctx, wallet, limit)
	})
}

// RecentSwaps returns the newest swaps across all wallets.
func (s *TrackingService) RecentSwaps(ctx context.Context, limit int) []*model.SwapRecord {
	return s.readSwaps(ctx, func(r repository.TrackingRepo) ([]*model.SwapRecord, error) {
		return r.RecentSwaps(ctx, limit)
	})
}

func (s *TrackingService) readSwaps(_ context.Context, read func(repository.TrackingRepo) ([]*model.SwapRecord, error)) []*model.SwapRecord {
	var merged []*model.SwapRecord
	seen := make(map[string]bool)

	for _, repo := range s.repos() {
		records, err := read(repo)
		if err != nil {
			logger.Warn("tracking read failed", "error", err)
			continue
		}
		for _, rec := range records {
			if !seen[rec.ID] {
				seen[rec.ID] = true
				merged = append(merged, rec)
			}
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})
	return merged
}

// Points returns the wallet's points account. With both backends in play
// the larger totals win, since the counters are monotonic.
func (s *TrackingService) Points(ctx context.Context, wallet string) *model.PointsAccount {
	result := &model.PointsAccount{Wallet: wallet}
	for _, repo := range s.repos() {
		acct, err := repo.Points(ctx, wallet)
		if err != nil {
			logger.Warn("points read failed", "wallet", wallet, "error", err)
			continue
		}
		if acct.TotalPoints > result.TotalPoints {
			result.TotalPoints = acct.TotalPoints
		}
		if acct.SwapCount > result.SwapCount {
			result.SwapCount = acct.SwapCount
		}
		if acct.LastSwapAt.After(result.LastSwapAt) {
			result.LastSwapAt = acct.LastSwapAt
		}
		if result.CreatedAt.IsZero() || (!acct.CreatedAt.IsZero() && acct.CreatedAt.Before(result.CreatedAt)) {
			result.CreatedAt = acct.CreatedAt
		}
	}
	return result
}

// Leaderboard returns the top-N wallets by points, 1-based rank.
func (s *TrackingService) Leaderboard(ctx context.Context, limit int) []*model.LeaderboardEntry {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	best := make(map[string]int64)
	for _, repo := range s.repos() {
		entries, err := repo.Leaderboard(ctx, limit)
		if err != nil {
			logger.Warn("leaderboard read failed", "error", err)
			continue
		}
		for _, e := range entries {
			if e.TotalPoints > best[e.Wallet] {
				best[e.Wallet] = e.TotalPoints
			}
		}
	}

	wallets := make([]string, 0, len(best))
	for w := range best {
		wallets = append(wallets, w)
	}
	sort.Slice(wallets, func(i, j int) bool {
		if best[wallets[i]] != best[wallets[j]] {
			return best[wallets[i]] > best[wallets[j]]
		}
		return wallets[i] < wallets[j]
	})

	entries := make([]*model.LeaderboardEntry, 0, limit)
	for i, w := range wallets {
		if i >= limit {
			break
		}
		entries = append(entries, &model.LeaderboardEntry{
			Rank:        int64(i + 1),
			Wallet:      w,
			TotalPoints: best[w],
		})
	}
	return entries
}

// Stats returns aggregate swap counters.
func (s *TrackingService) Stats(ctx context.Context) *model.Stats {
	result := &model.Stats{}
	for _, repo := range s.repos() {
		stats, err := repo.Stats(ctx)
		if err != nil {
			logger.Warn("stats read failed", "error", err)
			continue
		}
		if stats.TotalSwaps > result.TotalSwaps {
			result.TotalSwaps = stats.TotalSwaps
		}
		if stats.DailySwaps > result.DailySwaps {
			result.DailySwaps = stats.DailySwaps
		}
	}
	return result
}

func (s *TrackingService) repos() []repository.TrackingRepo {
	if s.durable != nil {
		return []repository.TrackingRepo{s.durable, s.volatile}
	}
	return []repository.TrackingRepo{s.volatile}
}
