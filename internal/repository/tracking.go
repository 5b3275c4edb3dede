package repository

import (
	"context"
	"time"

	"github.com/Djtrixuk/moltydex-sub000/internal/model"
)

// Default bounds for the recent-swap lists.
const (
	DefaultWalletListMax = 500
	DefaultGlobalListMax = 10000
)

// TrackingRepo is the read/write contract shared by the durable and
// volatile tracking backends. Durability across restarts is the only
// observable difference between implementations.
type TrackingRepo interface {
	InsertSwap(ctx context.Context, rec *model.SwapRecord) error
	ConfirmSwap(ctx context.Context, id, signature string) error
	WalletSwaps(ctx context.Context, wallet string, limit int) ([]*model.SwapRecord, error)
	RecentSwaps(ctx context.Context, limit int) ([]*model.SwapRecord, error)

	AddPoints(ctx context.Context, wallet string, points int64, at time.Time) (*model.PointsAccount, error)
	Points(ctx context.Context, wallet string) (*model.PointsAccount, error)
	Rank(ctx context.Context, wallet string) (int64, error)
	Leaderboard(ctx context.Context, limit int) ([]*model.LeaderboardEntry, error)

	IncrStats(ctx context.Context, at time.Time) error
	Stats(ctx context.Context) (*model.Stats, error)
}
