package model

import "time"

// Well-known Solana identifiers.
const (
	NativeMint     = "So11111111111111111111111111111111111111112"
	TokenProgramID = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	NativeDecimals = 9
)

// SwapStatus values for a persisted SwapRecord.
const (
	SwapStatusPending   = "pending"
	SwapStatusConfirmed = "confirmed"
)

// SwapRecord is the persisted history entry for one executed swap.
// Immutable after creation except for the single pending→confirmed
// transition once the signature is learned.
type SwapRecord struct {
	ID         string    `json:"id"`
	Wallet     string    `json:"wallet"`
	InputMint  string    `json:"input_mint"`
	OutputMint string    `json:"output_mint"`
	InAmount   string    `json:"in_amount"`
	OutAmount  string    `json:"out_amount"`
	FeeAmount  string    `json:"fee_amount"`
	Signature  string    `json:"signature,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// PointsAccount tracks a wallet's accumulated reward points.
// TotalPoints and SwapCount only ever grow.
type PointsAccount struct {
	Wallet      string    `json:"wallet"`
	TotalPoints int64     `json:"total_points"`
	SwapCount   int64     `json:"swap_count"`
	LastSwapAt  time.Time `json:"last_swap_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// LeaderboardEntry is one row of the descending-points ranking, 1-based.
type LeaderboardEntry struct {
	Rank        int64  `json:"rank"`
	Wallet      string `json:"wallet"`
	TotalPoints int64  `json:"total_points"`
}

// PointsResult is returned after awarding points for one swap.
type PointsResult struct {
	PointsAwarded int64 `json:"points_awarded"`
	TotalPoints   int64 `json:"total_points"`
	Rank          int64 `json:"rank"`
}

// Stats aggregates swap activity counters.
type Stats struct {
	TotalSwaps int64 `json:"total_swaps"`
	DailySwaps int64 `json:"daily_swaps"`
}
