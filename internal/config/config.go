package config

import "time"

// TrackerConfig is the root configuration for a tracker instance.
type TrackerConfig struct {
	Instance  InstanceConfig  `yaml:"instance"`
	Provider  ProviderConfig  `yaml:"provider"`
	Database  DatabaseConfig  `yaml:"database"`
	Detector  DetectorConfig  `yaml:"detector"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Fanout    FanoutConfig    `yaml:"fanout"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
}

// InstanceConfig identifies this tracker.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ProviderConfig holds market-data provider settings.
type ProviderConfig struct {
	GammaURL     string        `yaml:"gamma_url"`
	ClobURL      string        `yaml:"clob_url"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// DatabaseConfig holds the Postgres connection for snapshots, shifts and alerts.
type DatabaseConfig struct {
	Postgres DBConfig `yaml:"postgres"`
	// InMemory switches the store to the in-process implementation. Postgres
	// settings are ignored when set. Intended for local runs.
	InMemory bool `yaml:"in_memory"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// DetectorConfig holds shift-detection thresholds.
type DetectorConfig struct {
	AbsoluteDeltaThreshold float64       `yaml:"absolute_delta_threshold"`
	RelativeDeltaThreshold float64       `yaml:"relative_delta_threshold"`
	MinVolumeThreshold     float64       `yaml:"min_volume_threshold"`
	AlertCooldown          time.Duration `yaml:"alert_cooldown"`
	// AlertMaxAge expires long-lived active alerts when set. Zero disables
	// expiry, which is the default behavior.
	AlertMaxAge time.Duration `yaml:"alert_max_age"`
}

// SchedulerConfig holds cadence settings.
type SchedulerConfig struct {
	MarketRefreshInterval    time.Duration `yaml:"market_refresh_interval"`
	DiscoveryRefreshInterval time.Duration `yaml:"discovery_refresh_interval"`
	Concurrency              int           `yaml:"concurrency"`
	MarketTimeout            time.Duration `yaml:"market_timeout"`
}

// FanoutConfig holds push-channel server settings.
type FanoutConfig struct {
	Addr        string        `yaml:"addr"`
	SendTimeout time.Duration `yaml:"send_timeout"`
	QueueSize   int           `yaml:"queue_size"`
}

// ReconnectConfig holds consumer-side reconnection backoff settings.
type ReconnectConfig struct {
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	MaxAttempts int           `yaml:"max_attempts"`
}
