package gamma

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Number decodes a JSON value that may arrive as a number, a quoted number,
// or null. The Gamma API mixes all three across endpoints.
type Number float64

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*n = 0
		return nil
	}

	s := string(data)
	if s[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = 0
			return nil
		}
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Unparsable prices are treated as absent, not fatal.
		*n = 0
		return nil
	}

	*n = Number(f)
	return nil
}

// Float64 returns the value as a float64.
func (n Number) Float64() float64 { return float64(n) }

// APIOutcome is one outcome within a market as returned by the Gamma API.
type APIOutcome struct {
	ID        string `json:"id"`
	OutcomeID string `json:"outcome_id"`
	Title     string `json:"title"`
	Name      string `json:"name"`
	Price     Number `json:"price"`
}

// TokenID returns the stable identifier for the outcome, preferring "id".
func (o APIOutcome) TokenID() string {
	if o.ID != "" {
		return o.ID
	}
	return o.OutcomeID
}

// DisplayName returns the outcome label, preferring "title".
func (o APIOutcome) DisplayName() string {
	if o.Title != "" {
		return o.Title
	}
	return o.Name
}

// APIMarket is one market within an event.
type APIMarket struct {
	ID        string       `json:"id"`
	Question  string       `json:"question"`
	Outcomes  []APIOutcome `json:"outcomes"`
	Volume    Number       `json:"volume"`
	Liquidity Number       `json:"liquidity"`
}

// APIEvent is the response of GET /events/{slug}. Single-market events may
// carry outcomes directly instead of nesting them under markets.
type APIEvent struct {
	ID        string       `json:"id"`
	Slug      string       `json:"slug"`
	Title     string       `json:"title"`
	Markets   []APIMarket  `json:"markets"`
	Outcomes  []APIOutcome `json:"outcomes"`
	Volume    Number       `json:"volume"`
	Liquidity Number       `json:"liquidity"`
}

// APITrade is one trade from the CLOB API.
type APITrade struct {
	TokenID   string `json:"asset_id"`
	Price     Number `json:"price"`
	Size      Number `json:"size"`
	Side      string `json:"side"`
	MatchTime int64  `json:"match_time"`
}

// TradesResponse is the envelope of GET /trades. Some deployments return a
// bare array instead of {"data": [...]}.
type TradesResponse struct {
	Trades []APITrade
}

// UnmarshalJSON accepts both the enveloped and bare-array forms.
func (r *TradesResponse) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		return json.Unmarshal(data, &r.Trades)
	}

	var envelope struct {
		Data []APITrade `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}
	r.Trades = envelope.Data
	return nil
}
