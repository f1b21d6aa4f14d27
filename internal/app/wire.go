package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	s3blob "github.com/alanyoungcy/resolvd/internal/blob/s3"
	"github.com/alanyoungcy/resolvd/internal/cache/redis"
	"github.com/alanyoungcy/resolvd/internal/config"
	"github.com/alanyoungcy/resolvd/internal/crypto"
	"github.com/alanyoungcy/resolvd/internal/domain"
	"github.com/alanyoungcy/resolvd/internal/reporting"
	"github.com/alanyoungcy/resolvd/internal/service"
	"github.com/alanyoungcy/resolvd/internal/store/postgres"
	"github.com/alanyoungcy/resolvd/internal/universe"
)

// Dependencies bundles every domain-level dependency the application modes
// need to operate. It is constructed by Wire and torn down by the returned
// cleanup function.
type Dependencies struct {
	// Stores
	MarketStore domain.MarketStore
	BondStore   domain.DisputeBondStore
	EventStore  domain.StakeEventStore
	AuditStore  domain.AuditStore

	// Redis
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage (nil outside archiving modes)
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	// Reporting engine
	Registry *service.Registry
	Service  *service.MarketService

	// Raw clients, kept for health checks.
	PG    *postgres.Client
	Redis *redis.Client
	S3    *s3blob.Client
}

// needsS3 returns true for configurations that require object storage.
func needsS3(cfg *config.Config) bool {
	return cfg.Mode == "archive" || cfg.Archive.Enabled
}

// reportingParams converts the configured durations and decimal attostake
// strings into engine parameters. The single designated duration covers both
// the reporting and the dispute leg of the designated phase.
func reportingParams(cfg config.ReportingConfig) (reporting.Params, error) {
	p := reporting.Params{
		DesignatedReportingDuration: cfg.DesignatedDuration.Duration,
		DesignatedDisputeDuration:   cfg.DesignatedDuration.Duration,
		ReportingFeeBps:             cfg.ReportingFeeBps,
	}

	for _, amt := range []struct {
		name string
		raw  string
		dst  **big.Int
	}{
		{"designated_stake", cfg.DesignatedStake, &p.DesignatedReporterStake},
		{"designated_dispute_bond", cfg.DesignatedDisputeBond, &p.DesignatedDisputeBond},
		{"limited_dispute_bond", cfg.LimitedDisputeBond, &p.LimitedDisputeBond},
		{"all_dispute_bond", cfg.AllDisputeBond, &p.AllDisputeBond},
	} {
		v, ok := new(big.Int).SetString(amt.raw, 10)
		if !ok {
			return reporting.Params{}, fmt.Errorf("reporting.%s: not a decimal amount: %q", amt.name, amt.raw)
		}
		*amt.dst = v
	}
	return p, nil
}

// universeParams derives window parameters from the reporting config. Markets
// with a designated reporter land in a window shifted past both designated
// phases, so the offset is twice the designated duration.
func universeParams(cfg config.ReportingConfig) universe.Params {
	return universe.Params{
		WindowDuration:       cfg.WindowDuration.Duration,
		DisputePhaseDuration: cfg.DisputePhaseDuration.Duration,
		ForkDuration:         cfg.ForkDuration.Duration,
		DesignatedOffset:     2 * cfg.DesignatedDuration.Duration,
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.PG = pgClient
	deps.MarketStore = postgres.NewMarketStore(pool)
	deps.BondStore = postgres.NewDisputeBondStore(pool)
	deps.EventStore = postgres.NewStakeEventStore(pool)
	deps.AuditStore = postgres.NewAuditStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.Redis = redisClient
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- S3 blob storage (only when archiving) ---
	if needsS3(cfg) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.S3 = s3Client
		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.Archiver = s3blob.NewArchiver(
			deps.BlobWriter,
			postgres.NewMarketStore(pool),
			postgres.NewStakeEventStore(pool),
			deps.AuditStore,
		)
	}

	// --- Signer key material ---
	// Resolving the key at wire time surfaces a bad key or password before any
	// report is rejected for it.
	if cfg.Signer.PrivateKey != "" || cfg.Signer.EncryptedKeyPath != "" {
		keyHex, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Signer.PrivateKey,
			EncryptedKeyPath: cfg.Signer.EncryptedKeyPath,
			KeyPassword:      cfg.Signer.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: signer key: %w", err)
		}
		signer, err := crypto.NewSigner(keyHex)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: signer: %w", err)
		}
		logger.InfoContext(ctx, "report signer loaded",
			slog.String("address", signer.Address().Hex()),
			slog.Bool("require_signed_reports", cfg.Signer.RequireSigned),
		)
	}

	// --- Reporting engine ---
	repParams, err := reportingParams(cfg.Reporting)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %w", err)
	}

	clock := domain.ClockFunc(func() time.Time { return time.Now().UTC() })
	genesis := universe.NewGenesis(clock, universeParams(cfg.Reporting))
	deps.Registry = service.NewRegistry(genesis)
	deps.Service = service.NewMarketService(
		deps.Registry,
		deps.MarketStore,
		deps.BondStore,
		deps.EventStore,
		deps.AuditStore,
		deps.SignalBus,
		deps.LockManager,
		clock,
		repParams,
		cfg.Signer.RequireSigned,
		logger,
	)

	logger.InfoContext(ctx, "genesis universe initialized",
		slog.String("universe_id", genesis.ID()),
	)

	return deps, cleanup, nil
}
