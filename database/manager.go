/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/tomoncle/fleetbook/schema"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/extra/bundebug"
)

type defaultDatabaseManager struct {
	config          *ConnectionConfig
	db              *bun.DB
	sqlDB           *sql.DB
	logger          Logger
	mu              sync.RWMutex
	connected       bool
	lastError       error
	lastHealthCheck time.Time
	healthStatus    *HealthStatus
	reconnectTries  int
	stopHealthCheck chan struct{}
}

// NewDatabaseManager returns an AbstractDatabaseManager backed by bun.
// A nil config means DefaultConnectionConfig, which has no target and
// fails on Connect.
func NewDatabaseManager(config *ConnectionConfig) AbstractDatabaseManager {
	if config == nil {
		config = DefaultConnectionConfig()
	}
	return &defaultDatabaseManager{
		config:       config,
		logger:       GetLogger(),
		healthStatus: &HealthStatus{},
	}
}

// Open creates a bun.DB for the configuration without contacting the
// server. Query hooks are attached according to the logging settings.
func Open(cfg *ConnectionConfig, logger Logger) (*bun.DB, error) {
	driverName, err := cfg.DriverName()
	if err != nil {
		return nil, err
	}
	dsn, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}
	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", driverName, err)
	}

	var db *bun.DB
	switch cfg.NormalizedType() {
	case TypeMySQL:
		db = bun.NewDB(sqlDB, mysqldialect.New())
	case TypePostgres:
		db = bun.NewDB(sqlDB, pgdialect.New())
	case TypeSQLite:
		db = bun.NewDB(sqlDB, sqlitedialect.New())
		if isSQLiteMemory(dsn) {
			// every new connection to a private in-memory database is empty
			sqlDB.SetMaxOpenConns(1)
			sqlDB.SetMaxIdleConns(1)
			sqlDB.SetConnMaxLifetime(0)
			sqlDB.SetConnMaxIdleTime(0)
		}
	}

	if cfg.EnableQueryLog {
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.FromEnv("BUNDEBUG"),
		))
	}
	if cfg.ColorQueryLog {
		db.AddQueryHook(NewQueryHook(nil))
	}
	if cfg.SlowQueryTime > 0 {
		db.AddQueryHook(NewSlowQueryHook(cfg.SlowQueryTime, logger))
	}
	return db, nil
}

func isSQLiteMemory(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// DialectName reports the dialect of any bun handle.
func DialectName(idb bun.IDB) string {
	switch idb.Dialect().Name() {
	case dialect.PG:
		return TypePostgres
	case dialect.MySQL:
		return TypeMySQL
	case dialect.SQLite:
		return TypeSQLite
	default:
		return idb.Dialect().Name().String()
	}
}

func (dm *defaultDatabaseManager) Connect(ctx context.Context) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.connected && dm.db != nil {
		return nil
	}

	db, err := Open(dm.config, dm.logger)
	if err != nil {
		dm.lastError = err
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	dm.db = db
	dm.sqlDB = db.DB
	dm.configureConnectionPool()

	timeout := dm.config.ConnectTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctxTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := dm.db.PingContext(ctxTimeout); err != nil {
		dm.lastError = err
		_ = dm.db.Close()
		dm.db, dm.sqlDB = nil, nil
		return fmt.Errorf("database connection test failed: %w", err)
	}

	dm.connected = true
	dm.lastError = nil
	dm.reconnectTries = 0

	if dm.config.HealthCheckInterval > 0 {
		dm.startHealthCheck()
	}

	if dm.logger != nil {
		dm.logger.Info("Database connected successfully", "type", dm.config.NormalizedType(), "host", dm.config.Host)
	}
	return nil
}

func (dm *defaultDatabaseManager) configureConnectionPool() {
	if dm.sqlDB == nil {
		return
	}
	if dsn, _ := dm.config.Resolve(); isSQLiteMemory(dsn) {
		return
	}
	if dm.config.MaxIdleConns > 0 {
		dm.sqlDB.SetMaxIdleConns(dm.config.MaxIdleConns)
	}
	if dm.config.MaxOpenConns > 0 {
		dm.sqlDB.SetMaxOpenConns(dm.config.MaxOpenConns)
	}
	dm.sqlDB.SetConnMaxLifetime(dm.config.ConnMaxLifetime)
	dm.sqlDB.SetConnMaxIdleTime(dm.config.ConnMaxIdleTime)
}

func (dm *defaultDatabaseManager) Disconnect() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.closeLocked()
}

func (dm *defaultDatabaseManager) closeLocked() error {
	if dm.stopHealthCheck != nil {
		close(dm.stopHealthCheck)
		dm.stopHealthCheck = nil
	}
	if dm.db == nil {
		return nil
	}

	err := dm.db.Close()
	dm.db, dm.sqlDB = nil, nil
	dm.connected = false
	if dm.logger == nil {
		return err
	}
	if err != nil {
		dm.logger.Error("Failed to close database connection", "error", err)
	} else {
		dm.logger.Info("Database connection closed", "type", dm.config.NormalizedType())
	}
	return err
}

// Reconnect drops the current pool and connects again. Failed attempts
// are retried with exponential backoff starting at ReconnectInterval, at
// most MaxReconnectTries times.
func (dm *defaultDatabaseManager) Reconnect(ctx context.Context) error {
	if err := dm.Disconnect(); err != nil && dm.logger != nil {
		dm.logger.Warn("Error disconnecting existing connection", "error", err)
	}

	b := backoff.NewExponentialBackOff()
	if dm.config.ReconnectInterval > 0 {
		b.InitialInterval = dm.config.ReconnectInterval
	}
	b.MaxElapsedTime = 0
	var policy backoff.BackOff = b
	if dm.config.MaxReconnectTries > 0 {
		policy = backoff.WithMaxRetries(b, uint64(dm.config.MaxReconnectTries))
	}

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		return dm.Connect(ctx)
	}, backoff.WithContext(policy, ctx), func(err error, wait time.Duration) {
		if dm.logger != nil {
			dm.logger.Warn("Reconnect attempt failed", "attempt", attempt, "retry_in", wait, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("reconnect failed after %d attempts: %w", attempt, err)
	}
	if dm.logger != nil {
		dm.logger.Info("Reconnect succeeded", "attempts", attempt)
	}
	return nil
}

func (dm *defaultDatabaseManager) Ping(ctx context.Context) error {
	db := dm.GetDB()
	if db == nil {
		return ErrNotConnected
	}
	return db.PingContext(ctx)
}

func (dm *defaultDatabaseManager) GetDB() *bun.DB {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.db
}

func (dm *defaultDatabaseManager) GetSQLDB() *sql.DB {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.sqlDB
}

// HealthCheck pings outside the manager lock so a slow server does not
// block GetDB callers.
func (dm *defaultDatabaseManager) HealthCheck(ctx context.Context) *HealthStatus {
	dm.mu.RLock()
	db, sqlDB := dm.db, dm.sqlDB
	dm.mu.RUnlock()

	status := &HealthStatus{LastCheckTime: time.Now()}
	if db == nil {
		status.LastError = ErrNotConnected.Error()
		dm.recordHealth(status, ErrNotConnected)
		return status
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err := db.PingContext(pingCtx)
	cancel()
	status.ResponseTime = time.Since(status.LastCheckTime)
	status.Connected = err == nil
	status.Healthy = err == nil
	if err != nil {
		status.LastError = err.Error()
	}

	stats := sqlDB.Stats()
	status.ActiveConns = stats.InUse
	status.IdleConns = stats.Idle
	status.MaxOpenConns = stats.MaxOpenConnections

	dm.recordHealth(status, err)
	return status
}

func (dm *defaultDatabaseManager) recordHealth(status *HealthStatus, err error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.healthStatus = status
	dm.lastHealthCheck = status.LastCheckTime
	dm.lastError = err
	if err != nil {
		dm.reconnectTries++
	} else {
		dm.reconnectTries = 0
	}
}

// startHealthCheck must be called with dm.mu held.
func (dm *defaultDatabaseManager) startHealthCheck() {
	stop := make(chan struct{})
	dm.stopHealthCheck = stop
	interval := dm.config.HealthCheckInterval

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
			}

			status := dm.HealthCheck(context.Background())
			if status.Healthy || !dm.config.EnableReconnect {
				continue
			}
			if dm.logger != nil {
				dm.logger.Warn("Database unhealthy, reconnecting", "error", status.LastError)
			}
			ctx, cancel := context.WithTimeout(context.Background(), dm.reconnectBudget())
			if err := dm.Reconnect(ctx); err != nil && dm.logger != nil {
				dm.logger.Error("Giving up on database reconnect", "error", err)
			}
			cancel()
			// Reconnect started a fresh checker on success.
			return
		}
	}()
}

func (dm *defaultDatabaseManager) reconnectBudget() time.Duration {
	tries := dm.config.MaxReconnectTries
	if tries <= 0 {
		tries = 1
	}
	connect := dm.config.ConnectTimeout
	if connect <= 0 {
		connect = 30 * time.Second
	}
	return time.Duration(tries+1) * (connect + dm.config.ReconnectInterval)
}

func (dm *defaultDatabaseManager) GetStats() *DBStats {
	sqlDB := dm.GetSQLDB()
	if sqlDB == nil {
		return &DBStats{}
	}
	return newDBStats(sqlDB.Stats())
}

func newDBStats(s sql.DBStats) *DBStats {
	return &DBStats{
		MaxOpenConns:      s.MaxOpenConnections,
		OpenConns:         s.OpenConnections,
		InUse:             s.InUse,
		Idle:              s.Idle,
		WaitCount:         s.WaitCount,
		WaitDuration:      s.WaitDuration,
		MaxIdleClosed:     s.MaxIdleClosed,
		MaxIdleTimeClosed: s.MaxIdleTimeClosed,
		MaxLifetimeClosed: s.MaxLifetimeClosed,
	}
}

func (dm *defaultDatabaseManager) RunMigrations(ctx context.Context, tables []schema.Table, opts MigrateConfig) error {
	db := dm.GetDB()
	if db == nil {
		return ErrNotConnected
	}
	return NewMigrationManager(db, dm.logger).RunMigrations(ctx, tables, opts)
}

func (dm *defaultDatabaseManager) SetLogger(logger Logger) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.logger = logger
}
