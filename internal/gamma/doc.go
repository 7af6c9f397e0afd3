// Package gamma implements the Polymarket market-data provider.
//
// Two REST endpoints are consumed:
//   - Gamma API: event details (outcomes, prices, volume, liquidity)
//   - CLOB API: recent trades per outcome token
//
// Outcome prices are normalized into probabilities that sum to 1. Requests
// retry on 5xx/429 with exponential backoff and jitter.
package gamma
