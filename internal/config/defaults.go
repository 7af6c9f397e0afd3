package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultGammaURL     = "https://gamma-api.polymarket.com"
	DefaultClobURL      = "https://clob.polymarket.com"
	DefaultAPITimeout   = 30 * time.Second
	DefaultMaxRetries   = 3
	DefaultRetryBackoff = 1 * time.Second

	DefaultDBPort   = 5432
	DefaultDBSSL    = "prefer"
	DefaultMaxConns = 10
	DefaultMinConns = 2

	DefaultAbsoluteDelta = 0.05
	DefaultRelativeDelta = 0.20
	DefaultMinVolume     = 100.0
	DefaultAlertCooldown = 15 * time.Minute

	DefaultMarketRefreshInterval    = 5 * time.Minute
	DefaultDiscoveryRefreshInterval = 10 * time.Minute
	DefaultConcurrency              = 10
	DefaultMarketTimeout            = 30 * time.Second

	DefaultFanoutAddr        = ":8080"
	DefaultSendTimeout       = 5 * time.Second
	DefaultQueueSize         = 1024
	DefaultReconnectBase     = 1 * time.Second
	DefaultReconnectMax      = 60 * time.Second
	DefaultReconnectAttempts = 10
)

func (c *TrackerConfig) applyDefaults() {
	// Provider defaults
	if c.Provider.GammaURL == "" {
		c.Provider.GammaURL = DefaultGammaURL
	}
	if c.Provider.ClobURL == "" {
		c.Provider.ClobURL = DefaultClobURL
	}
	if c.Provider.Timeout == 0 {
		c.Provider.Timeout = DefaultAPITimeout
	}
	if c.Provider.MaxRetries == 0 {
		c.Provider.MaxRetries = DefaultMaxRetries
	}
	if c.Provider.RetryBackoff == 0 {
		c.Provider.RetryBackoff = DefaultRetryBackoff
	}

	// Database defaults
	if c.Database.Postgres.Port == 0 {
		c.Database.Postgres.Port = DefaultDBPort
	}
	if c.Database.Postgres.SSLMode == "" {
		c.Database.Postgres.SSLMode = DefaultDBSSL
	}
	if c.Database.Postgres.MaxConns == 0 {
		c.Database.Postgres.MaxConns = DefaultMaxConns
	}
	if c.Database.Postgres.MinConns == 0 {
		c.Database.Postgres.MinConns = DefaultMinConns
	}

	// Detector defaults
	if c.Detector.AbsoluteDeltaThreshold == 0 {
		c.Detector.AbsoluteDeltaThreshold = DefaultAbsoluteDelta
	}
	if c.Detector.RelativeDeltaThreshold == 0 {
		c.Detector.RelativeDeltaThreshold = DefaultRelativeDelta
	}
	if c.Detector.MinVolumeThreshold == 0 {
		c.Detector.MinVolumeThreshold = DefaultMinVolume
	}
	if c.Detector.AlertCooldown == 0 {
		c.Detector.AlertCooldown = DefaultAlertCooldown
	}

	// Scheduler defaults
	if c.Scheduler.MarketRefreshInterval == 0 {
		c.Scheduler.MarketRefreshInterval = DefaultMarketRefreshInterval
	}
	if c.Scheduler.DiscoveryRefreshInterval == 0 {
		c.Scheduler.DiscoveryRefreshInterval = DefaultDiscoveryRefreshInterval
	}
	if c.Scheduler.Concurrency == 0 {
		c.Scheduler.Concurrency = DefaultConcurrency
	}
	if c.Scheduler.MarketTimeout == 0 {
		c.Scheduler.MarketTimeout = DefaultMarketTimeout
	}

	// Fanout defaults
	if c.Fanout.Addr == "" {
		c.Fanout.Addr = DefaultFanoutAddr
	}
	if c.Fanout.SendTimeout == 0 {
		c.Fanout.SendTimeout = DefaultSendTimeout
	}
	if c.Fanout.QueueSize == 0 {
		c.Fanout.QueueSize = DefaultQueueSize
	}

	// Reconnect defaults
	if c.Reconnect.BaseDelay == 0 {
		c.Reconnect.BaseDelay = DefaultReconnectBase
	}
	if c.Reconnect.MaxDelay == 0 {
		c.Reconnect.MaxDelay = DefaultReconnectMax
	}
	if c.Reconnect.MaxAttempts == 0 {
		c.Reconnect.MaxAttempts = DefaultReconnectAttempts
	}
}
