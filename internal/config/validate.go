package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for driver %q", DriverPostgres)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("database.driver must be %q or %q (got %q)", DriverPostgres, DriverMemory, c.Database.Driver)
	}
	c.Database.Driver = strings.ToLower(c.Database.Driver)

	if p := c.Server.Port; p < 0 || p > 65535 {
		return fmt.Errorf("server.port must be within 0..65535 (got %d)", p)
	}

	if err := c.Ledger.validate(); err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	if err := c.Funding.validate(); err != nil {
		return fmt.Errorf("funding: %w", err)
	}
	if t := c.Notifications.LowBalanceThreshold; t < 0 || t > 100 {
		return fmt.Errorf("notifications.low_balance_threshold must be within 0..100 (got %d)", t)
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	if err := c.Scheduler.validate(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	return nil
}

func (l *LedgerConfig) validate() error {
	if l.MinRate <= 0 {
		return fmt.Errorf("min_rate must be > 0 (got %d)", l.MinRate)
	}
	if l.MaxRate < l.MinRate {
		return fmt.Errorf("max_rate must be >= min_rate (got %d < %d)", l.MaxRate, l.MinRate)
	}
	if l.TouchWorkers <= 0 {
		return fmt.Errorf("touch_workers must be > 0 (got %d)", l.TouchWorkers)
	}
	return nil
}

func (f *FundingConfig) validate() error {
	if f.InitialBalance < 0 {
		return fmt.Errorf("initial_balance must be >= 0 (got %d)", f.InitialBalance)
	}
	if f.CancelFeeBps < 0 || f.CancelFeeBps > 10000 {
		return fmt.Errorf("cancel_fee_bps must be within 0..10000 (got %d)", f.CancelFeeBps)
	}
	return nil
}

func (s *SchedulerConfig) validate() error {
	specs := map[string]string{
		"touch_spec":       s.TouchSpec,
		"low_balance_spec": s.LowBalanceSpec,
		"purge_spec":       s.PurgeSpec,
	}
	for name, spec := range specs {
		if !s.JobEnabled(spec) {
			continue
		}
		if _, err := ParseSpec(spec); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// ParseSpec parses a cron spec with a leading seconds field.
func ParseSpec(spec string) (cron.Schedule, error) {
	return cronParser.Parse(spec)
}

// JobEnabled reports whether spec schedules a job; "" and "off" disable it.
func (s SchedulerConfig) JobEnabled(spec string) bool {
	return spec != "" && !strings.EqualFold(spec, "off")
}
