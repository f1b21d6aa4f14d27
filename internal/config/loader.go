package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies RESOLVD_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known RESOLVD_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Signer ──
	setStr(&cfg.Signer.PrivateKey, "RESOLVD_SIGNER_PRIVATE_KEY")
	setStr(&cfg.Signer.EncryptedKeyPath, "RESOLVD_SIGNER_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Signer.KeyPassword, "RESOLVD_SIGNER_KEY_PASSWORD")
	setBool(&cfg.Signer.RequireSigned, "RESOLVD_SIGNER_REQUIRE_SIGNED_REPORTS")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "RESOLVD_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "RESOLVD_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "RESOLVD_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "RESOLVD_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "RESOLVD_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "RESOLVD_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "RESOLVD_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "RESOLVD_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "RESOLVD_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "RESOLVD_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "RESOLVD_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "RESOLVD_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "RESOLVD_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "RESOLVD_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "RESOLVD_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "RESOLVD_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "RESOLVD_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "RESOLVD_S3_REGION")
	setStr(&cfg.S3.Bucket, "RESOLVD_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "RESOLVD_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "RESOLVD_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "RESOLVD_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "RESOLVD_S3_FORCE_PATH_STYLE")

	// ── Reporting ──
	setDuration(&cfg.Reporting.WindowDuration, "RESOLVD_REPORTING_WINDOW_DURATION")
	setDuration(&cfg.Reporting.DisputePhaseDuration, "RESOLVD_REPORTING_DISPUTE_PHASE_DURATION")
	setDuration(&cfg.Reporting.ForkDuration, "RESOLVD_REPORTING_FORK_DURATION")
	setDuration(&cfg.Reporting.DesignatedDuration, "RESOLVD_REPORTING_DESIGNATED_DURATION")
	setStr(&cfg.Reporting.DesignatedStake, "RESOLVD_REPORTING_DESIGNATED_STAKE")
	setStr(&cfg.Reporting.DesignatedDisputeBond, "RESOLVD_REPORTING_DESIGNATED_DISPUTE_BOND")
	setStr(&cfg.Reporting.LimitedDisputeBond, "RESOLVD_REPORTING_LIMITED_DISPUTE_BOND")
	setStr(&cfg.Reporting.AllDisputeBond, "RESOLVD_REPORTING_ALL_DISPUTE_BOND")
	setInt64(&cfg.Reporting.ReportingFeeBps, "RESOLVD_REPORTING_FEE_BPS")

	// ── Monitor ──
	setBool(&cfg.Monitor.Enabled, "RESOLVD_MONITOR_ENABLED")
	setDuration(&cfg.Monitor.SweepInterval, "RESOLVD_MONITOR_SWEEP_INTERVAL")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "RESOLVD_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "RESOLVD_ARCHIVE_INTERVAL")
	setInt(&cfg.Archive.RetentionDays, "RESOLVD_ARCHIVE_RETENTION_DAYS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "RESOLVD_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "RESOLVD_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "RESOLVD_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.AdminToken, "RESOLVD_SERVER_ADMIN_TOKEN")

	// ── Top-level ──
	setStr(&cfg.Mode, "RESOLVD_MODE")
	setStr(&cfg.LogLevel, "RESOLVD_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
