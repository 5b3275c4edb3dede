package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Djtrixuk/moltydex-sub000/internal/model"
)

const (
	keySwapPrefix   = "swap:"
	keyWalletPrefix = "swaps:wallet:"
	keyRecent       = "swaps:recent"
	keyPointsPrefix = "points:"
	keyLeaderboard  = "leaderboard"
	keyStatsTotal   = "stats:total"
	keyStatsDaily   = "stats:daily:"

	swapRetention  = 90 * 24 * time.Hour
	dailyRetention = 48 * time.Hour
)

// RedisTrackingRepo is the durable tracking backend: a ZSET leaderboard,
// bounded LPUSH/LTRIM recent lists, and hash-based points accounts.
type RedisTrackingRepo struct {
	client    *redis.Client
	walletMax int
	globalMax int
}

func NewRedisTrackingRepo(client *redis.Client, walletMax, globalMax int) *RedisTrackingRepo {
	if walletMax <= 0 {
		walletMax = DefaultWalletListMax
	}
	if globalMax <= 0 {
		globalMax = DefaultGlobalListMax
	}
	return &RedisTrackingRepo{client: client, walletMax: walletMax, globalMax: globalMax}
}

func (r *RedisTrackingRepo) InsertSwap(ctx context.Context, rec *model.SwapRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	walletKey := keyWalletPrefix + rec.Wallet
	pipe := r.client.Pipeline()
	pipe.Set(ctx, keySwapPrefix+rec.ID, payload, swapRetention)
	pipe.LPush(ctx, walletKey, rec.ID)
	pipe.LTrim(ctx, walletKey, 0, int64(r.walletMax-1))
	pipe.LPush(ctx, keyRecent, rec.ID)
	pipe.LTrim(ctx, keyRecent, 0, int64(r.globalMax-1))
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisTrackingRepo) ConfirmSwap(ctx context.Context, id, signature string) error {
	key := keySwapPrefix + id
	raw, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}
	var rec model.SwapRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return err
	}
	rec.Signature = signature
	rec.Status = model.SwapStatusConfirmed
	payload, err := json.Marshal(&rec)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, payload, swapRetention).Err()
}

func (r *RedisTrackingRepo) WalletSwaps(ctx context.Context, wallet string, limit int) ([]*model.SwapRecord, error) {
	return r.swapsFromList(ctx, keyWalletPrefix+wallet, limit)
}

func (r *RedisTrackingRepo) RecentSwaps(ctx context.Context, limit int) ([]*model.SwapRecord, error) {
	return r.swapsFromList(ctx, keyRecent, limit)
}

func (r *RedisTrackingRepo) swapsFromList(ctx context.Context, listKey string, limit int) ([]*model.SwapRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	ids, err := r.client.LRange(ctx, listKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = keySwapPrefix + id
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	records := make([]*model.SwapRecord, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // evicted swap key, keep the rest
		}
		var rec model.SwapRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			continue
		}
		records = append(records, &rec)
	}
	return records, nil
}

func (r *RedisTrackingRepo) AddPoints(ctx context.Context, wallet string, points int64, at time.Time) (*model.PointsAccount, error) {
	key := keyPointsPrefix + wallet

	pipe := r.client.Pipeline()
	totalCmd := pipe.HIncrBy(ctx, key, "total_points", points)
	countCmd := pipe.HIncrBy(ctx, key, "swap_count", 1)
	pipe.HSet(ctx, key, "last_swap_at", at.UTC().Format(time.RFC3339))
	pipe.HSetNX(ctx, key, "created_at", at.UTC().Format(time.RFC3339))
	pipe.ZIncrBy(ctx, keyLeaderboard, float64(points), wallet)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	return &model.PointsAccount{
		Wallet:      wallet,
		TotalPoints: totalCmd.Val(),
		SwapCount:   countCmd.Val(),
		LastSwapAt:  at.UTC(),
	}, nil
}

func (r *RedisTrackingRepo) Points(ctx context.Context, wallet string) (*model.PointsAccount, error) {
	fields, err := r.client.HGetAll(ctx, keyPointsPrefix+wallet).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return &model.PointsAccount{Wallet: wallet}, nil
	}

	acct := &model.PointsAccount{Wallet: wallet}
	acct.TotalPoints, _ = strconv.ParseInt(fields["total_points"], 10, 64)
	acct.SwapCount, _ = strconv.ParseInt(fields["swap_count"], 10, 64)
	if t, err := time.Parse(time.RFC3339, fields["last_swap_at"]); err == nil {
		acct.LastSwapAt = t
	}
	if t, err := time.Parse(time.RFC3339, fields["created_at"]); err == nil {
		acct.CreatedAt = t
	}
	return acct, nil
}

func (r *RedisTrackingRepo) Rank(ctx context.Context, wallet string) (int64, error) {
	rank, err := r.client.ZRevRank(ctx, keyLeaderboard, wallet).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rank + 1, nil
}

func (r *RedisTrackingRepo) Leaderboard(ctx context.Context, limit int) ([]*model.LeaderboardEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	members, err := r.client.ZRevRangeWithScores(ctx, keyLeaderboard, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]*model.LeaderboardEntry, 0, len(members))
	for i, m := range members {
		wallet, _ := m.Member.(string)
		entries = append(entries, &model.LeaderboardEntry{
			Rank:        int64(i + 1),
			Wallet:      wallet,
			TotalPoints: int64(m.Score),
		})
	}
	return entries, nil
}

func (r *RedisTrackingRepo) IncrStats(ctx context.Context, at time.Time) error {
	daily := keyStatsDaily + at.UTC().Format("2006-01-02")
	pipe := r.client.Pipeline()
	pipe.Incr(ctx, keyStatsTotal)
	pipe.Incr(ctx, daily)
	pipe.Expire(ctx, daily, dailyRetention)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisTrackingRepo) Stats(ctx context.Context) (*model.Stats, error) {
	daily := keyStatsDaily + time.Now().UTC().Format("2006-01-02")
	pipe := r.client.Pipeline()
	totalCmd := pipe.Get(ctx, keyStatsTotal)
	dailyCmd := pipe.Get(ctx, daily)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("read stats: %w", err)
	}

	total, _ := totalCmd.Int64()
	day, _ := dailyCmd.Int64()
	return &model.Stats{TotalSwaps: total, DailySwaps: day}, nil
}
