// Package client is the consumer side of the update feed: a WebSocket
// subscriber that survives disconnects with bounded exponential backoff.
package client
