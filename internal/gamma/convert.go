package gamma

import (
	"github.com/polytrack/polytrack/internal/model"
)

// Reading is one outcome's normalized reading extracted from an event.
type Reading struct {
	TokenID   string
	Name      string
	Prob      float64
	Volume    float64
	Liquidity float64
}

// Readings extracts normalized per-outcome readings from an event.
//
// Prices are normalized so probabilities sum to 1. When every price is zero
// or missing, probability mass is split equally across outcomes.
func (e *APIEvent) Readings() []Reading {
	markets := e.Markets
	if len(markets) == 0 && len(e.Outcomes) > 0 {
		markets = []APIMarket{{
			Outcomes:  e.Outcomes,
			Volume:    e.Volume,
			Liquidity: e.Liquidity,
		}}
	}

	var readings []Reading
	var total float64

	for _, m := range markets {
		volume := m.Volume.Float64()
		if volume == 0 {
			volume = e.Volume.Float64()
		}
		liquidity := m.Liquidity.Float64()
		if liquidity == 0 {
			liquidity = e.Liquidity.Float64()
		}

		for _, o := range m.Outcomes {
			price := o.Price.Float64()
			total += price
			readings = append(readings, Reading{
				TokenID:   o.TokenID(),
				Name:      o.DisplayName(),
				Prob:      price, // normalized below
				Volume:    volume,
				Liquidity: liquidity,
			})
		}
	}

	if total > 0 {
		for i := range readings {
			readings[i].Prob /= total
		}
	} else if len(readings) > 0 {
		equal := 1.0 / float64(len(readings))
		for i := range readings {
			readings[i].Prob = equal
		}
	}

	return readings
}

// ToTradeSummaries converts CLOB trades into broadcast trade summaries.
func ToTradeSummaries(trades []APITrade) []model.TradeSummary {
	out := make([]model.TradeSummary, 0, len(trades))
	for _, t := range trades {
		out = append(out, model.TradeSummary{
			TokenID: t.TokenID,
			Price:   t.Price.Float64(),
			Size:    t.Size.Float64(),
			Side:    t.Side,
			TS:      t.MatchTime,
		})
	}
	return out
}
