// Package postgres manages the PostgreSQL connection used by the audit
// mirror: a pgx connection pool for low-level health checks, wrapped as a
// database/sql handle so gorm can run migrations and inserts against the
// same pool rather than opening a second one.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	vaulterr "github.com/genlayerlabs/glvault/pkg/errors"
	"github.com/genlayerlabs/glvault/pkg/logger"
)

// Config holds PostgreSQL connection parameters for the audit mirror.
type Config struct {
	Host              string
	Port              int
	User              string
	Password          string
	Database          string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	ConnTimeout       time.Duration
}

// DBConnection manages the PostgreSQL connection pool and exposes it both
// as a raw pgx pool and as a gorm.DB for the audit mirror's ORM usage.
type DBConnection struct {
	pool   *pgxpool.Pool
	gormDB *gorm.DB
	config Config
	logger logger.Logger
}

// NewDBConnection opens a pgx connection pool, verifies connectivity, and
// wraps it as a gorm.DB via the database/sql bridge so both drivers share
// one physical pool.
func NewDBConnection(ctx context.Context, cfg Config, log logger.Logger) (*DBConnection, error) {
	log.Info(ctx, "initializing postgres connection pool", logger.Fields{
		"host": cfg.Host, "port": cfg.Port, "database": cfg.Database,
	})

	connString := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, vaulterr.BackendFail("invalid postgres connection string").WithCause(err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	}

	connectTimeout := cfg.ConnTimeout
	if connectTimeout == 0 {
		connectTimeout = 10 * time.Second
	}
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, vaulterr.BackendFail("postgres connection failed").WithCause(err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	if err != nil {
		pool.Close()
		return nil, vaulterr.BackendFail("gorm init failed").WithCause(err)
	}

	dbConn := &DBConnection{pool: pool, gormDB: gormDB, config: cfg, logger: log}

	if err := dbConn.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info(ctx, "postgres connection pool initialized", logger.Fields{
		"total_conns": pool.Stat().TotalConns(),
		"idle_conns":  pool.Stat().IdleConns(),
	})

	return dbConn, nil
}

// Pool returns the underlying pgx connection pool.
func (db *DBConnection) Pool() *pgxpool.Pool { return db.pool }

// Gorm returns the gorm.DB handle sharing this connection's pool.
func (db *DBConnection) Gorm() *gorm.DB { return db.gormDB }

// Ping verifies database connectivity.
func (db *DBConnection) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	if err := db.pool.Ping(pingCtx); err != nil {
		return vaulterr.BackendFail("postgres ping failed").WithCause(err)
	}

	latency := time.Since(start)
	if latency > 100*time.Millisecond {
		db.logger.Warn(ctx, "high postgres latency", logger.Fields{"latency_ms": latency.Milliseconds()})
	}
	return nil
}

// HealthCheck returns pool statistics alongside a connectivity check.
func (db *DBConnection) HealthCheck(ctx context.Context) (map[string]interface{}, error) {
	if err := db.Ping(ctx); err != nil {
		return nil, err
	}

	stats := db.pool.Stat()
	health := map[string]interface{}{
		"status":               "healthy",
		"total_connections":    stats.TotalConns(),
		"idle_connections":     stats.IdleConns(),
		"acquired_connections": stats.AcquiredConns(),
		"acquire_count":        stats.AcquireCount(),
		"acquire_duration_ms":  stats.AcquireDuration().Milliseconds(),
	}

	if stats.IdleConns() == 0 && stats.TotalConns() >= db.config.MaxConns && db.config.MaxConns > 0 {
		health["warning"] = "connection_pool_near_limit"
	}

	return health, nil
}

// Close shuts down the connection pool.
func (db *DBConnection) Close() {
	db.logger.Info(context.Background(), "closing postgres connection pool", logger.Fields{
		"total_conns": db.pool.Stat().TotalConns(),
	})
	db.pool.Close()
}

// Stats returns current connection pool statistics.
func (db *DBConnection) Stats() *pgxpool.Stat { return db.pool.Stat() }
