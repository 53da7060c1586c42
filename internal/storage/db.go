package storage

import (
	"context"
	_ "embed"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Shugur-Network/nostr-client/internal/constants"
	"github.com/Shugur-Network/nostr-client/internal/errors"
	"github.com/Shugur-Network/nostr-client/internal/logger"
	"github.com/Shugur-Network/nostr-client/internal/metrics"
)

//go:embed schema.sql
var schemaDDL string

// DBState represents the current state of the database connection
type DBState int

const (
	DBStateInitial DBState = iota
	DBStateConnecting
	DBStateConnected
	DBStateDisconnecting
	DBStateClosed
)

// DB is the PostgreSQL connection behind the storage processor.
type DB struct {
	Pool    *pgxpool.Pool
	state   DBState
	stateMu sync.RWMutex
	log     *zap.Logger
}

func createPool(ctx context.Context, dsn string, workers int) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}

	// one connection per worker plus one for CLI queries
	config.MaxConns = int32(workers + 1)
	config.MinConns = constants.DBPoolMinConns
	config.MaxConnLifetime = constants.DBConnMaxLifetime
	config.MaxConnIdleTime = constants.DBConnMaxIdleTime
	config.ConnConfig.ConnectTimeout = constants.DBConnAcquireTimeout
	config.HealthCheckPeriod = constants.DBHealthCheckPeriod

	return pgxpool.NewWithConfig(ctx, config)
}

// InitDB connects with exponential backoff and applies the schema.
func InitDB(ctx context.Context, dsn string, workers int) (*DB, error) {
	if workers < 1 {
		workers = constants.DefaultStoreWorkers
	}
	db := &DB{state: DBStateConnecting, log: logger.New("storage")}

	backoff := constants.DBRetryDelay
	var err error
	for attempt := 1; attempt <= constants.MaxDBRetries; attempt++ {
		var pool *pgxpool.Pool
		pool, err = createPool(ctx, dsn, workers)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				db.Pool = pool
				db.setState(DBStateConnected)
				stat := pool.Stat()
				db.log.Info("Database connected",
					zap.Int("attempts", attempt),
					zap.Int32("max_connections", stat.MaxConns()))
				metrics.StorageOperations.WithLabelValues("connect").Inc()

				if err := db.InitializeSchema(ctx); err != nil {
					db.Close()
					return nil, err
				}
				return db, nil
			}
			pool.Close()
		}

		db.log.Warn("Failed to connect to database, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff))
		metrics.StorageOperations.WithLabelValues("connect_failed").Inc()

		select {
		case <-ctx.Done():
			db.setState(DBStateClosed)
			return nil, errors.StorageError("connect", ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	db.setState(DBStateClosed)
	return nil, errors.StorageError("connect", fmt.Errorf("failed after %d attempts: %w", constants.MaxDBRetries, err))
}

// InitializeSchema creates the tables if they don't exist.
func (db *DB) InitializeSchema(ctx context.Context) error {
	if !db.isConnected() {
		return errors.StorageError("initialize schema", fmt.Errorf("database is not connected"))
	}
	if _, err := db.Pool.Exec(ctx, schemaDDL); err != nil {
		return errors.StorageError("initialize schema", err)
	}
	db.log.Debug("Database schema ready")
	return nil
}

// Close releases the pool. Safe to call more than once.
func (db *DB) Close() {
	db.stateMu.Lock()
	if db.state == DBStateDisconnecting || db.state == DBStateClosed {
		db.stateMu.Unlock()
		return
	}
	db.state = DBStateDisconnecting
	db.stateMu.Unlock()

	if db.Pool != nil {
		db.Pool.Close()
	}
	db.setState(DBStateClosed)
	db.log.Debug("Database connection closed")
}

// Ping checks database connectivity
func (db *DB) Ping(ctx context.Context) error {
	if db.Pool == nil || !db.isConnected() {
		return fmt.Errorf("database pool is not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, constants.HealthCheckTimeout)
	defer cancel()
	return db.Pool.Ping(ctx)
}

// Stats returns database connection pool statistics
func (db *DB) Stats() DatabaseStats {
	if db.Pool == nil {
		return DatabaseStats{}
	}
	stat := db.Pool.Stat()
	return DatabaseStats{
		OpenConnections:    int(stat.TotalConns()),
		InUse:              int(stat.AcquiredConns()),
		Idle:               int(stat.IdleConns()),
		MaxOpenConnections: int(stat.MaxConns()),
	}
}

// DatabaseStats represents database connection pool statistics
type DatabaseStats struct {
	OpenConnections    int `json:"open_connections"`
	InUse              int `json:"in_use"`
	Idle               int `json:"idle"`
	MaxOpenConnections int `json:"max_open_connections"`
}

func (db *DB) isConnected() bool {
	db.stateMu.RLock()
	defer db.stateMu.RUnlock()
	return db.state == DBStateConnected
}

func (db *DB) setState(s DBState) {
	db.stateMu.Lock()
	db.state = s
	db.stateMu.Unlock()
}
