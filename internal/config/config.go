// Package config defines the top-level configuration for the resolvd service
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by RESOLVD_* environment variables.
type Config struct {
	Signer    SignerConfig    `toml:"signer"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Reporting ReportingConfig `toml:"reporting"`
	Monitor   MonitorConfig   `toml:"monitor"`
	Archive   ArchiveConfig   `toml:"archive"`
	Server    ServerConfig    `toml:"server"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// SignerConfig holds the key material used to verify signed designated
// reports and to sign service-originated attestations.
type SignerConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
	RequireSigned    bool   `toml:"require_signed_reports"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ReportingConfig holds the lifecycle timing and bond-sizing knobs. Bond and
// stake amounts are decimal attostake strings so full-precision values survive
// the TOML round trip.
type ReportingConfig struct {
	WindowDuration        duration `toml:"window_duration"`
	DisputePhaseDuration  duration `toml:"dispute_phase_duration"`
	ForkDuration          duration `toml:"fork_duration"`
	DesignatedDuration    duration `toml:"designated_duration"`
	DesignatedStake       string   `toml:"designated_stake"`
	DesignatedDisputeBond string   `toml:"designated_dispute_bond"`
	LimitedDisputeBond    string   `toml:"limited_dispute_bond"`
	AllDisputeBond        string   `toml:"all_dispute_bond"`
	ReportingFeeBps       int64    `toml:"reporting_fee_bps"`
}

// MonitorConfig holds the phase-monitor sweep parameters.
type MonitorConfig struct {
	Enabled       bool     `toml:"enabled"`
	SweepInterval duration `toml:"sweep_interval"`
}

// ArchiveConfig holds the cold-storage archiver parameters.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	Interval      duration `toml:"interval"`
	RetentionDays int      `toml:"retention_days"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	AdminToken  string   `toml:"admin_token"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "72h", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "72h" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "resolvd",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "resolvd-archive",
			ForcePathStyle: true,
		},
		Reporting: ReportingConfig{
			WindowDuration:        duration{30 * 24 * time.Hour},
			DisputePhaseDuration:  duration{3 * 24 * time.Hour},
			ForkDuration:          duration{60 * 24 * time.Hour},
			DesignatedDuration:    duration{3 * 24 * time.Hour},
			DesignatedStake:       "2000000000000000000",
			DesignatedDisputeBond: "1100000000000000000000",
			LimitedDisputeBond:    "11000000000000000000000",
			AllDisputeBond:        "110000000000000000000000",
			ReportingFeeBps:       1,
		},
		Monitor: MonitorConfig{
			Enabled:       true,
			SweepInterval: duration{time.Minute},
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			Interval:      duration{time.Hour},
			RetentionDays: 90,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"serve":   true,
	"monitor": true,
	"archive": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// isAttoAmount reports whether s is a non-empty decimal integer.
func isAttoAmount(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, monitor, archive, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Signer key material only needs to resolve when signed reports are
	// enforced.
	if c.Signer.RequireSigned {
		if c.Signer.PrivateKey == "" && c.Signer.EncryptedKeyPath == "" {
			errs = append(errs, "signer: either private_key or encrypted_key_path must be set when require_signed_reports is on")
		}
	}
	if c.Signer.EncryptedKeyPath != "" && c.Signer.KeyPassword == "" {
		errs = append(errs, "signer: key_password is required when encrypted_key_path is set")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 is only needed when the archiver runs.
	if c.Archive.Enabled || c.Mode == "archive" {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archiving is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archiving is enabled")
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be positive")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	// Reporting
	if c.Reporting.WindowDuration.Duration <= 0 {
		errs = append(errs, "reporting: window_duration must be positive")
	}
	if c.Reporting.DisputePhaseDuration.Duration <= 0 ||
		c.Reporting.DisputePhaseDuration.Duration >= c.Reporting.WindowDuration.Duration {
		errs = append(errs, "reporting: dispute_phase_duration must be positive and shorter than window_duration")
	}
	if c.Reporting.ForkDuration.Duration <= 0 {
		errs = append(errs, "reporting: fork_duration must be positive")
	}
	if c.Reporting.DesignatedDuration.Duration <= 0 {
		errs = append(errs, "reporting: designated_duration must be positive")
	}
	for name, v := range map[string]string{
		"designated_stake":        c.Reporting.DesignatedStake,
		"designated_dispute_bond": c.Reporting.DesignatedDisputeBond,
		"limited_dispute_bond":    c.Reporting.LimitedDisputeBond,
		"all_dispute_bond":        c.Reporting.AllDisputeBond,
	} {
		if !isAttoAmount(v) {
			errs = append(errs, fmt.Sprintf("reporting: %s must be a decimal attostake amount, got %q", name, v))
		}
	}
	if c.Reporting.ReportingFeeBps < 0 || c.Reporting.ReportingFeeBps > 10_000 {
		errs = append(errs, fmt.Sprintf("reporting: reporting_fee_bps must be 0-10000, got %d", c.Reporting.ReportingFeeBps))
	}

	// Monitor
	if c.Monitor.Enabled && c.Monitor.SweepInterval.Duration <= 0 {
		errs = append(errs, "monitor: sweep_interval must be positive when enabled")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
