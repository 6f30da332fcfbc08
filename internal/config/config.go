package config

import "time"

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Log           LogConfig           `yaml:"log"`
	Ledger        LedgerConfig        `yaml:"ledger"`
	Funding       FundingConfig       `yaml:"funding"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Redis         RedisConfig         `yaml:"redis"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Templates     TemplatesConfig     `yaml:"templates"`
}

// ServerConfig holds the ops HTTP listener settings (health probes only).
type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SERVER_HOST"             env-default:"0.0.0.0"`
	Port            int           `yaml:"port"             env:"SERVER_PORT"             env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// DatabaseConfig holds storage settings. DSN is required for the postgres driver.
type DatabaseConfig struct {
	Driver           string        `yaml:"driver"             env:"DATABASE_DRIVER"             env-default:"postgres"`
	DSN              string        `yaml:"dsn"                env:"DATABASE_DSN"`
	MaxConns         int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"25"`
	MinConns         int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"5"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
	AutoMigrate      bool          `yaml:"auto_migrate"       env:"DATABASE_AUTO_MIGRATE"       env-default:"true"`
	ApplicationName  string        `yaml:"application_name"   env:"DATABASE_APPLICATION_NAME"   env-default:"satstream-ledger"`
	StatementTimeout time.Duration `yaml:"statement_timeout"  env:"DATABASE_STATEMENT_TIMEOUT"  env-default:"30s"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// LedgerConfig holds stream engine limits.
type LedgerConfig struct {
	MinRate      int64 `yaml:"min_rate"      env:"LEDGER_MIN_RATE"      env-default:"1"`
	MaxRate      int64 `yaml:"max_rate"      env:"LEDGER_MAX_RATE"      env-default:"100000000"`
	TouchWorkers int   `yaml:"touch_workers" env:"LEDGER_TOUCH_WORKERS" env-default:"8"`
}

// FundingConfig holds the escrow collaborator settings. Amounts are sats.
type FundingConfig struct {
	InitialBalance int64 `yaml:"initial_balance" env:"FUNDING_INITIAL_BALANCE" env-default:"100000000"`
	CancelFeeBps   int64 `yaml:"cancel_fee_bps"  env:"FUNDING_CANCEL_FEE_BPS"  env-default:"100"`
}

// NotificationsConfig holds notification generator settings.
type NotificationsConfig struct {
	LowBalanceThreshold int           `yaml:"low_balance_threshold" env:"NOTIFICATIONS_LOW_BALANCE_THRESHOLD" env-default:"10"`
	ReadRetention       time.Duration `yaml:"read_retention"        env:"NOTIFICATIONS_READ_RETENTION"        env-default:"720h"`
	RetryBase           time.Duration `yaml:"retry_base"            env:"NOTIFICATIONS_RETRY_BASE"            env-default:"100ms"`
	RetryMax            uint64        `yaml:"retry_max"             env:"NOTIFICATIONS_RETRY_MAX"             env-default:"5"`
	SubscriberBuffer    int           `yaml:"subscriber_buffer"     env:"NOTIFICATIONS_SUBSCRIBER_BUFFER"     env-default:"256"`
	PollInterval        time.Duration `yaml:"poll_interval"         env:"NOTIFICATIONS_POLL_INTERVAL"         env-default:"5s"`
}

// RedisConfig holds the optional event bridge settings.
type RedisConfig struct {
	Enabled       bool   `yaml:"enabled"        env:"REDIS_ENABLED"        env-default:"false"`
	Addr          string `yaml:"addr"           env:"REDIS_ADDR"           env-default:"localhost:6379"`
	Password      string `yaml:"password"       env:"REDIS_PASSWORD"`
	DB            int    `yaml:"db"             env:"REDIS_DB"             env-default:"0"`
	ChannelPrefix string `yaml:"channel_prefix" env:"REDIS_CHANNEL_PREFIX" env-default:"satstream"`
	StreamMaxLen  int64  `yaml:"stream_max_len" env:"REDIS_STREAM_MAX_LEN" env-default:"10000"`
}

// SchedulerConfig holds cron specs (with seconds field) for maintenance jobs.
// A spec of "off" disables the job.
type SchedulerConfig struct {
	Enabled        bool   `yaml:"enabled"          env:"SCHEDULER_ENABLED"          env-default:"true"`
	TouchSpec      string `yaml:"touch_spec"       env:"SCHEDULER_TOUCH_SPEC"       env-default:"*/30 * * * * *"`
	LowBalanceSpec string `yaml:"low_balance_spec" env:"SCHEDULER_LOW_BALANCE_SPEC" env-default:"0 * * * * *"`
	PurgeSpec      string `yaml:"purge_spec"       env:"SCHEDULER_PURGE_SPEC"       env-default:"0 0 3 * * *"`
}

// TemplatesConfig points at an optional YAML template catalog.
type TemplatesConfig struct {
	SeedFile string `yaml:"seed_file" env:"TEMPLATES_SEED_FILE"`
}
