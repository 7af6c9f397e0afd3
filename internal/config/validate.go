package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *TrackerConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if !c.Database.InMemory {
		if err := c.Database.Postgres.validate("database.postgres"); err != nil {
			return err
		}
	}

	if c.Detector.AbsoluteDeltaThreshold <= 0 || c.Detector.AbsoluteDeltaThreshold > 1 {
		return fmt.Errorf("detector.absolute_delta_threshold must be in (0, 1], got %v",
			c.Detector.AbsoluteDeltaThreshold)
	}
	if c.Detector.RelativeDeltaThreshold <= 0 {
		return errors.New("detector.relative_delta_threshold must be > 0")
	}
	if c.Detector.MinVolumeThreshold < 0 {
		return errors.New("detector.min_volume_threshold must be >= 0")
	}
	if c.Detector.AlertCooldown <= 0 {
		return errors.New("detector.alert_cooldown must be > 0")
	}
	if c.Detector.AlertMaxAge < 0 {
		return errors.New("detector.alert_max_age must be >= 0")
	}

	if c.Scheduler.Concurrency < 1 {
		return errors.New("scheduler.concurrency must be >= 1")
	}
	if c.Scheduler.MarketRefreshInterval <= 0 {
		return errors.New("scheduler.market_refresh_interval must be > 0")
	}
	if c.Scheduler.DiscoveryRefreshInterval <= 0 {
		return errors.New("scheduler.discovery_refresh_interval must be > 0")
	}

	if c.Fanout.SendTimeout <= 0 {
		return errors.New("fanout.send_timeout must be > 0")
	}
	if c.Fanout.QueueSize < 1 {
		return errors.New("fanout.queue_size must be >= 1")
	}

	if c.Reconnect.BaseDelay <= 0 {
		return errors.New("reconnect.base_delay must be > 0")
	}
	if c.Reconnect.MaxDelay < c.Reconnect.BaseDelay {
		return fmt.Errorf("reconnect.max_delay (%v) cannot be below base_delay (%v)",
			c.Reconnect.MaxDelay, c.Reconnect.BaseDelay)
	}
	if c.Reconnect.MaxAttempts < 1 {
		return errors.New("reconnect.max_attempts must be >= 1")
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
