package model

// BalanceResponse is the payload for a token balance query.
type BalanceResponse struct {
	WalletAddress string `json:"wallet_address"`
	TokenMint     string `json:"token_mint"`
	Balance       string `json:"balance"`
	Decimals      int    `json:"decimals"`
	HasBalance    bool   `json:"has_balance"`
	UIAmount      string `json:"ui_amount,omitempty"`
}

// NativeBalanceResponse is the payload when the queried asset is SOL.
type NativeBalanceResponse struct {
	WalletAddress string `json:"wallet_address"`
	Balance       string `json:"balance"`
	BalanceSOL    string `json:"balance_sol"`
	Decimals      int    `json:"decimals"`
}

// QuoteResponse is the payload for a quote query.
type QuoteResponse struct {
	InputMint      string      `json:"input_mint"`
	OutputMint     string      `json:"output_mint"`
	InputAmount    string      `json:"input_amount"`
	OutputAmount   string      `json:"output_amount"`
	OutputAfterFee string      `json:"output_after_fee"`
	FeeAmount      string      `json:"fee_amount"`
	PriceImpact    string      `json:"price_impact,omitempty"`
	HighImpact     bool        `json:"high_impact"`
	SlippageBps    int         `json:"slippage_bps"`
	RoutePlan      []RouteStep `json:"route_plan,omitempty"`
	Source         string      `json:"source"`
}

// RecordSwapRequest is the incoming body for recording a completed swap.
type RecordSwapRequest struct {
	Wallet     string `json:"wallet" binding:"required"`
	InputMint  string `json:"input_mint" binding:"required"`
	OutputMint string `json:"output_mint" binding:"required"`
	InAmount   string `json:"in_amount" binding:"required"`
	OutAmount  string `json:"out_amount" binding:"required"`
	FeeAmount  string `json:"fee_amount,omitempty"`
	Signature  string `json:"signature,omitempty"`
}

// ExecuteSwapRequest submits a client-signed transaction for broadcast
// and confirmation tracking.
type ExecuteSwapRequest struct {
	Wallet      string `json:"wallet" binding:"required"`
	InputMint   string `json:"input_mint" binding:"required"`
	OutputMint  string `json:"output_mint" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
	SlippageBps int    `json:"slippage_bps"`
	SignedTx    string `json:"signed_tx" binding:"required"`
}

// ExecuteSwapResponse acknowledges a broadcast swap.
type ExecuteSwapResponse struct {
	ID        string `json:"id"`
	Signature string `json:"signature"`
	State     string `json:"state"`
}

// WebhookRequest registers a callback URL for recorded swaps.
type WebhookRequest struct {
	URL string `json:"url" binding:"required"`
}

// Webhook is a registered swap-notification target.
type Webhook struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}
