package config

import "time"

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Simulator SimulatorConfig `yaml:"simulator"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr"        env:"LABTRACK_HTTP_ADDR"        env-default:":8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"LABTRACK_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"LABTRACK_WRITE_TIMEOUT"    env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"LABTRACK_IDLE_TIMEOUT"     env-default:"60s"`
	RequestTimeout  time.Duration `yaml:"request_timeout"  env:"LABTRACK_REQUEST_TIMEOUT"  env-default:"15s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"LABTRACK_SHUTDOWN_TIMEOUT" env-default:"10s"`

	// GRPCAddr serves the gRPC health service.
	GRPCAddr string `yaml:"grpc_addr" env:"LABTRACK_GRPC_ADDR" env-default:":9090"`
	// HealthCheckInterval is how often the ledger index is verified for
	// the gRPC health status; 0 disables verification.
	HealthCheckInterval time.Duration `yaml:"health_check_interval" env:"LABTRACK_HEALTH_CHECK_INTERVAL" env-default:"1m"`
}

type DatabaseConfig struct {
	// Backend is "sqlite" or "memory". The memory backend serves the demo
	// roster and keeps nothing across restarts.
	Backend string `yaml:"backend"  env:"LABTRACK_DB_BACKEND"  env-default:"sqlite"`
	Path    string `yaml:"path"     env:"LABTRACK_DB_PATH"     env-default:"./data/labtrack.db"`
	Env     string `yaml:"env"      env:"LABTRACK_ENV"         env-default:"dev"`
	SeedDev bool   `yaml:"seed_dev" env:"LABTRACK_DB_SEED_DEV" env-default:"true"`
}

type LedgerConfig struct {
	// TimeZone is an IANA name used for calendar-day statistics.
	TimeZone      string        `yaml:"time_zone"       env:"LABTRACK_TIME_ZONE"       env-default:"UTC"`
	MaxFutureSkew time.Duration `yaml:"max_future_skew" env:"LABTRACK_MAX_FUTURE_SKEW" env-default:"1m"`
}

// Location resolves TimeZone.
func (c LedgerConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.TimeZone)
}

type HeartbeatConfig struct {
	RetentionDays      int           `yaml:"retention_days"       env:"LABTRACK_HEARTBEAT_RETENTION_DAYS" env-default:"30"`
	PruneIntervalHours int           `yaml:"prune_interval_hours" env:"LABTRACK_PRUNE_INTERVAL_HOURS"     env-default:"6"`
	OfflineAfter       time.Duration `yaml:"offline_after"        env:"LABTRACK_OFFLINE_AFTER"            env-default:"2m"`
	StaleCheckInterval time.Duration `yaml:"stale_check_interval" env:"LABTRACK_STALE_CHECK_INTERVAL"     env-default:"30s"`
}

type SnapshotConfig struct {
	// Interval between periodic saves; 0 disables them.
	Interval       time.Duration `yaml:"interval"         env:"LABTRACK_SNAPSHOT_INTERVAL"         env-default:"5m"`
	RestoreOnStart bool          `yaml:"restore_on_start" env:"LABTRACK_SNAPSHOT_RESTORE_ON_START" env-default:"true"`
	// Keep is how many stored snapshots survive each save; 0 keeps all.
	Keep int `yaml:"keep" env:"LABTRACK_SNAPSHOT_KEEP" env-default:"12"`
}

type SimulatorConfig struct {
	Enabled bool `yaml:"enabled" env:"LABTRACK_SIM_ENABLED" env-default:"false"`
	// Seed 0 picks a random seed.
	Seed           uint64        `yaml:"seed"             env:"LABTRACK_SIM_SEED"             env-default:"0"`
	ScanInterval   time.Duration `yaml:"scan_interval"    env:"LABTRACK_SIM_SCAN_INTERVAL"    env-default:"3s"`
	StatusInterval time.Duration `yaml:"status_interval"  env:"LABTRACK_SIM_STATUS_INTERVAL"  env-default:"10s"`
	StatusFlipProb float64       `yaml:"status_flip_prob" env:"LABTRACK_SIM_STATUS_FLIP_PROB" env-default:"0.05"`
	SeedVisits     int           `yaml:"seed_visits"      env:"LABTRACK_SIM_SEED_VISITS"      env-default:"50"`
}

type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}
