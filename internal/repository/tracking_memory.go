package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Djtrixuk/moltydex-sub000/internal/model"
)

// MemoryTrackingRepo is the volatile tracking backend. It serves the same
// read contract as the Redis repo and exists so tracking keeps working
// when no durable store is configured or a durable write fails.
type MemoryTrackingRepo struct {
	mu        sync.RWMutex
	swaps     map[string]*model.SwapRecord
	byWallet  map[string][]string
	recent    []string
	points    map[string]*model.PointsAccount
	total     int64
	daily     map[string]int64
	walletMax int
	globalMax int
}

func NewMemoryTrackingRepo(walletMax, globalMax int) *MemoryTrackingRepo {
	if walletMax <= 0 {
		walletMax = DefaultWalletListMax
	}
	if globalMax <= 0 {
		globalMax = DefaultGlobalListMax
	}
	return &MemoryTrackingRepo{
		swaps:     make(map[string]*model.SwapRecord),
		byWallet:  make(map[string][]string),
		points:    make(map[string]*model.PointsAccount),
		daily:     make(map[string]int64),
		walletMax: walletMax,
		globalMax: globalMax,
	}
}

func (m *MemoryTrackingRepo) InsertSwap(_ context.Context, rec *model.SwapRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *rec
	m.swaps[rec.ID] = &cp

	ids := append([]string{rec.ID}, m.byWallet[rec.Wallet]...)
	if len(ids) > m.walletMax {
		ids = ids[:m.walletMax]
	}
	m.byWallet[rec.Wallet] = ids

	m.recent = append([]string{rec.ID}, m.recent...)
	if len(m.recent) > m.globalMax {
		m.recent = m.recent[:m.globalMax]
	}
	return nil
}

func (m *MemoryTrackingRepo) ConfirmSwap(_ context.Context, id, signature string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.swaps[id]; ok {
		rec.Signature = signature
		rec.Status = model.SwapStatusConfirmed
	}
	return nil
}

func (m *MemoryTrackingRepo) WalletSwaps(_ context.Context, wallet string, limit int) ([]*model.SwapRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(m.byWallet[wallet], limit), nil
}

func (m *MemoryTrackingRepo) RecentSwaps(_ context.Context, limit int) ([]*model.SwapRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(m.recent, limit), nil
}

func (m *MemoryTrackingRepo) collect(ids []string, limit int) []*model.SwapRecord {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	records := make([]*model.SwapRecord, 0, limit)
	for _, id := range ids {
		if rec, ok := m.swaps[id]; ok {
			cp := *rec
			records = append(records, &cp)
			if len(records) >= limit {
				break
			}
		}
	}
	return records
}

func (m *MemoryTrackingRepo) AddPoints(_ context.Context, wallet string, points int64, at time.Time) (*model.PointsAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct, ok := m.points[wallet]
	if !ok {
		acct = &model.PointsAccount{Wallet: wallet, CreatedAt: at.UTC()}
		m.points[wallet] = acct
	}
	acct.TotalPoints += points
	acct.SwapCount++
	acct.LastSwapAt = at.UTC()

	cp := *acct
	return &cp, nil
}

func (m *MemoryTrackingRepo) Points(_ context.Context, wallet string) (*model.PointsAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if acct, ok := m.points[wallet]; ok {
		cp := *acct
		return &cp, nil
	}
	return &model.PointsAccount{Wallet: wallet}, nil
}

func (m *MemoryTrackingRepo) Rank(_ context.Context, wallet string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ranking := m.ranking()
	for i, w := range ranking {
		if w == wallet {
			return int64(i + 1), nil
		}
	}
	return 0, nil
}

func (m *MemoryTrackingRepo) Leaderboard(_ context.Context, limit int) ([]*model.LeaderboardEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	entries := make([]*model.LeaderboardEntry, 0, limit)
	for i, wallet := range m.ranking() {
		if i >= limit {
			break
		}
		entries = append(entries, &model.LeaderboardEntry{
			Rank:        int64(i + 1),
			Wallet:      wallet,
			TotalPoints: m.points[wallet].TotalPoints,
		})
	}
	return entries, nil
}

// ranking sorts wallets by totalPoints descending. Ties break on wallet
// address so a rank is stable within one read.
func (m *MemoryTrackingRepo) ranking() []string {
	wallets := make([]string, 0, len(m.points))
	for w := range m.points {
		wallets = append(wallets, w)
	}
	sort.Slice(wallets, func(i, j int) bool {
		pi, pj := m.points[wallets[i]].TotalPoints, m.points[wallets[j]].TotalPoints
		if pi != pj {
			return pi > pj
		}
		return wallets[i] < wallets[j]
	})
	return wallets
}

func (m *MemoryTrackingRepo) IncrStats(_ context.Context, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total++
	m.daily[at.UTC().Format("2006-01-02")]++
	return nil
}

func (m *MemoryTrackingRepo) Stats(_ context.Context) (*model.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &model.Stats{
		TotalSwaps: m.total,
		DailySwaps: m.daily[time.Now().UTC().Format("2006-01-02")],
	}, nil
}
