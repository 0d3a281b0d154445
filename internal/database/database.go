// Package database is the data access layer.
//
// It handles:
//   - building a DSN from config
//   - creating a bounded pgx connection pool (pgxpool)
//   - wiring query tracing/logging (pgx tracelog, New Relic nrpgx5)
//   - running units of work with a per-statement timeout, optionally in a
//     transaction, under a retry policy for transient failures
//
// Repositories talk to it through the generic helpers in facade.go.
package database

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/deppfellow/user-service/internal/config"
	loggerConfig "github.com/deppfellow/user-service/internal/logger"
	"github.com/deppfellow/user-service/internal/retry"
	pgxzero "github.com/jackc/pgx-zerolog"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/newrelic/go-agent/v3/integrations/nrpgx5"
	"github.com/rs/zerolog"
)

// Database is the data access facade. Pool is nil when the facade was
// built over another Pool implementation with NewWithPool.
type Database struct {
	Pool   *pgxpool.Pool
	exec   *Executor
	policy *retry.Policy
	log    *zerolog.Logger
}

// multiTracer fans pgx query trace callbacks out to several tracers, since
// ConnConfig has a single Tracer slot.
type multiTracer struct {
	tracers []any
}

func (mt *multiTracer) TraceQueryStart(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	for _, tracer := range mt.tracers {
		if t, ok := tracer.(interface {
			TraceQueryStart(context.Context, *pgx.Conn, pgx.TraceQueryStartData) context.Context
		}); ok {
			ctx = t.TraceQueryStart(ctx, conn, data)
		}
	}
	return ctx
}

func (mt *multiTracer) TraceQueryEnd(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryEndData) {
	for _, tracer := range mt.tracers {
		if t, ok := tracer.(interface {
			TraceQueryEnd(context.Context, *pgx.Conn, pgx.TraceQueryEndData)
		}); ok {
			t.TraceQueryEnd(ctx, conn, data)
		}
	}
}

// DatabasePingTimeout is the number of seconds to wait for the start-up ping.
const DatabasePingTimeout = 10

// DSN builds the postgres URL for cfg. The password is escaped.
func DSN(cfg *config.DatabaseConfig) string {
	hostPort := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=%s",
		url.QueryEscape(cfg.User),
		url.QueryEscape(cfg.Password),
		hostPort,
		cfg.Name,
		cfg.SSLMode,
	)
}

// PoolConfig parses the DSN and applies pool bounds and timeouts.
func PoolConfig(cfg *config.DatabaseConfig) (*pgxpool.Config, error) {
	pgxPoolConfig, err := pgxpool.ParseConfig(DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pgx pool config: %w", err)
	}

	pgxPoolConfig.MinConns = cfg.MinConns
	pgxPoolConfig.MaxConns = cfg.MaxConns
	pgxPoolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	if cfg.ConnMaxLifetime > 0 {
		pgxPoolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		pgxPoolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}

	return pgxPoolConfig, nil
}

// NewPolicy builds the retry policy from config. Each retry is logged at
// warn level.
func NewPolicy(cfg config.RetryConfig, logger *zerolog.Logger) *retry.Policy {
	return retry.New(
		retry.WithMaxRetries(cfg.MaxRetries),
		retry.WithBackoff(retry.NewExponentialBackoff(
			retry.WithBaseDelay(cfg.BaseDelay),
			retry.WithMaxJitter(cfg.MaxJitter),
		)),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			logger.Warn().
				Err(err).
				Int("attempt", attempt).
				Int("max_retries", cfg.MaxRetries).
				Dur("delay", delay).
				Msg("transient database failure, retrying")
		}),
	)
}

// New creates the PostgreSQL pool with instrumentation, pings it and wraps
// it in the facade.
func New(cfg *config.Config, logger *zerolog.Logger, loggerService *loggerConfig.LoggerService) (*Database, error) {
	pgxPoolConfig, err := PoolConfig(&cfg.Database)
	if err != nil {
		return nil, err
	}

	if loggerService.GetApplication() != nil {
		pgxPoolConfig.ConnConfig.Tracer = nrpgx5.NewTracer()
	}

	// SQL statement logging is noisy, so only in local.
	if cfg.IsLocal() {
		globalLevel := logger.GetLevel()
		pgxLogger := loggerConfig.NewPgxLogger(globalLevel)

		localTracer := &tracelog.TraceLog{
			Logger:   pgxzero.NewLogger(pgxLogger),
			LogLevel: tracelog.LogLevel(loggerConfig.GetPgxTraceLogLevel(globalLevel)),
		}

		if pgxPoolConfig.ConnConfig.Tracer != nil {
			pgxPoolConfig.ConnConfig.Tracer = &multiTracer{
				tracers: []any{pgxPoolConfig.ConnConfig.Tracer, localTracer},
			}
		} else {
			pgxPoolConfig.ConnConfig.Tracer = localTracer
		}
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), pgxPoolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), DatabasePingTimeout*time.Second)
	defer cancel()
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	database := NewWithPool(pool, NewPolicy(cfg.Database.Retry, logger), logger, cfg.Database.CommandTimeout)
	database.Pool = pool

	logger.Info().
		Int32("min_conns", pgxPoolConfig.MinConns).
		Int32("max_conns", pgxPoolConfig.MaxConns).
		Msg("connected to the database")

	return database, nil
}

// NewWithPool builds the facade over any Pool. A nil policy disables
// retries.
func NewWithPool(pool Pool, policy *retry.Policy, logger *zerolog.Logger, commandTimeout time.Duration) *Database {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if policy == nil {
		policy = retry.NoRetry()
	}

	return &Database{
		exec:   NewExecutor(pool, commandTimeout, logger),
		policy: policy,
		log:    logger,
	}
}

// Close closes the connection pool, if the facade owns one.
func (db *Database) Close() error {
	db.log.Info().Msg("closing database connection pool")
	if db.Pool != nil {
		db.Pool.Close()
	}
	return nil
}
