package repository

import (
	"context"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Djtrixuk/moltydex-sub000/internal/config"
	"github.com/Djtrixuk/moltydex-sub000/internal/model"
)

// archivedSwap is the Postgres row for one swap. The archive is an
// append-mostly audit trail beside the Redis tracking store, not the read
// path for the API.
type archivedSwap struct {
	ID         string `gorm:"primaryKey"`
	Wallet     string `gorm:"index"`
	InputMint  string
	OutputMint string
	InAmount   string
	OutAmount  string
	FeeAmount  string
	Signature  string
	Status     string
	CreatedAt  time.Time
}

func (archivedSwap) TableName() string { return "swaps" }

// SwapArchive persists swap records to Postgres when a DSN is configured.
type SwapArchive struct {
	db *gorm.DB
}

func NewSwapArchive(cfg *config.Config) (*SwapArchive, error) {
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&archivedSwap{}); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(1 * time.Hour)

	return &SwapArchive{db: db}, nil
}

func (a *SwapArchive) Insert(ctx context.Context, rec *model.SwapRecord) error {
	row := archivedSwap{
		ID:         rec.ID,
		Wallet:     rec.Wallet,
		InputMint:  rec.InputMint,
		OutputMint: rec.OutputMint,
		InAmount:   rec.InAmount,
		OutAmount:  rec.OutAmount,
		FeeAmount:  rec.FeeAmount,
		Signature:  rec.Signature,
		Status:     rec.Status,
		CreatedAt:  rec.CreatedAt,
	}
	return a.db.WithContext(ctx).Create(&row).Error
}

func (a *SwapArchive) Confirm(ctx context.Context, id, signature string) error {
	return a.db.WithContext(ctx).Model(&archivedSwap{}).
		Where("id = ?", id).
		Updates(map[string]any{"signature": signature, "status": model.SwapStatusConfirmed}).Error
}

func (a *SwapArchive) ListByWallet(ctx context.Context, wallet string, limit int) ([]*model.SwapRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var rows []archivedSwap
	err := a.db.WithContext(ctx).
		Where("wallet = ?", wallet).
		Order("created_at desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	records := make([]*model.SwapRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, &model.SwapRecord{
			ID:         row.ID,
			Wallet:     row.Wallet,
			InputMint:  row.InputMint,
			OutputMint: row.OutputMint,
			InAmount:   row.InAmount,
			OutAmount:  row.OutAmount,
			FeeAmount:  row.FeeAmount,
			Signature:  row.Signature,
			Status:     row.Status,
			CreatedAt:  row.CreatedAt,
		})
	}
	return records, nil
}
