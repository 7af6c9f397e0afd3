package model

import "time"

// OutcomeQuote is the current state of one outcome inside an update payload.
type OutcomeQuote struct {
	TokenID   string  `json:"id"`
	Name      string  `json:"name"`
	Prob      float64 `json:"prob"`
	Volume    float64 `json:"volume"`
	Liquidity float64 `json:"liquidity"`
}

// TradeSummary is one recent trade inside an update payload.
type TradeSummary struct {
	TokenID string  `json:"token_id"`
	Price   float64 `json:"price"`
	Size    float64 `json:"size"`
	Side    string  `json:"side"`
	TS      int64   `json:"ts"` // Unix seconds, provider clock
}

// ShiftSummary is one newly recorded shift inside an update payload.
type ShiftSummary struct {
	OutcomeID    int64     `json:"outcome_id"`
	PrevProb     float64   `json:"prev_prob"`
	NewProb      float64   `json:"new_prob"`
	Delta        float64   `json:"delta"`
	VolumeImpact float64   `json:"volume_impact"`
	Significant  bool      `json:"significant"`
	TS           time.Time `json:"ts"`
}

// UpdateData is the data section of a market update.
type UpdateData struct {
	Outcomes     []OutcomeQuote `json:"outcomes"`
	Shifts       []ShiftSummary `json:"shifts"`
	RecentTrades []TradeSummary `json:"recent_trades,omitempty"`
}

// Update is the payload broadcast to every subscriber of a market after an
// ingestion + detection cycle completes.
type Update struct {
	Type     string     `json:"type"` // Always "market_update"
	MarketID int64      `json:"market_id"`
	TS       time.Time  `json:"timestamp"`
	Data     UpdateData `json:"data"`
}

// NewUpdate builds a market update payload.
func NewUpdate(marketID int64, ts time.Time, data UpdateData) Update {
	return Update{
		Type:     "market_update",
		MarketID: marketID,
		TS:       ts,
		Data:     data,
	}
}
