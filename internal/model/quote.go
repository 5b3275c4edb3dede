package model

import "time"

// QuoteTTL is how long a fetched quote remains usable.
const QuoteTTL = 30 * time.Second

// Quote is a priced, time-bounded offer from one routing endpoint.
type Quote struct {
	InputMint            string      `json:"input_mint"`
	OutputMint           string      `json:"output_mint"`
	InAmount             string      `json:"in_amount"`
	OutAmount            string      `json:"out_amount"`
	OutAmountAfterFee    string      `json:"out_amount_after_fee"`
	OtherAmountThreshold string      `json:"other_amount_threshold,omitempty"`
	FeeAmount            string      `json:"fee_amount"`
	PriceImpactPct       string      `json:"price_impact_pct,omitempty"`
	SlippageBps          int         `json:"slippage_bps"`
	RoutePlan            []RouteStep `json:"route_plan,omitempty"`
	SourceEndpoint       string      `json:"source_endpoint"`
	FetchedAt            time.Time   `json:"fetched_at"`
}

// RouteStep is one hop of the aggregated route.
type RouteStep struct {
	Label      string `json:"label,omitempty"`
	InputMint  string `json:"input_mint"`
	OutputMint string `json:"output_mint"`
	Percent    int    `json:"percent,omitempty"`
}

// Age of the quote relative to now.
func (q *Quote) Age(now time.Time) time.Duration {
	return now.Sub(q.FetchedAt)
}

// Expired reports whether the quote is past its TTL.
func (q *Quote) Expired(now time.Time) bool {
	return q.Age(now) > QuoteTTL
}
