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
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

// TxFunc is the body of a unit of work. It runs inside an explicit
// transaction on a connection that belongs to it alone.
type TxFunc func(ctx context.Context, tx bun.Tx) error

// Manager owns the database handle and hands out one connection and one
// transaction per unit of work.
type Manager struct {
	config *ConnectionConfig
	db     *bun.DB
	sqlDB  *sql.DB
	logger Logger
	mu     sync.RWMutex
}

// NewManager returns a disconnected Manager. If config is nil, a default
// configuration is used.
func NewManager(config *ConnectionConfig) *Manager {
	if config == nil {
		config = DefaultConnectionConfig()
	}
	return &Manager{
		config: config,
		logger: GetLogger(),
	}
}

// Open builds a Manager for config and connects it.
func Open(ctx context.Context, config *ConnectionConfig) (*Manager, error) {
	if config == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	m := NewManager(config)
	if err := m.Connect(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// SetLogger replaces the manager's logger.
func (m *Manager) SetLogger(logger Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if logger == nil {
		logger = NopLogger()
	}
	m.logger = logger
}

// Logger returns the manager's logger.
func (m *Manager) Logger() Logger {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.logger
}

// Config returns the connection configuration in use.
func (m *Manager) Config() *ConnectionConfig {
	return m.config
}

// Connect opens the handle and verifies it with a ping. It is a no-op when
// already connected.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db != nil {
		return nil
	}

	sqlDB, db, err := m.createConnection()
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}

	sqlDB.SetMaxIdleConns(m.config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(m.config.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(m.config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(m.config.ConnMaxIdleTime)
	if isSQLiteMemory(m.config) {
		// The database lives as long as its one connection does.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
		sqlDB.SetConnMaxIdleTime(0)
	}

	pingCtx := ctx
	if m.config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, m.config.ConnectTimeout)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return fmt.Errorf("database connection test failed: %w", err)
	}

	m.sqlDB, m.db = sqlDB, db
	m.logger.Info("Database connected successfully", "type", m.config.Type, "host", m.config.Host, "dbname", m.config.DBName)
	return nil
}

func (m *Manager) createConnection() (*sql.DB, *bun.DB, error) {
	if m.config.ConnectTimeout <= 0 {
		m.config.ConnectTimeout = 30 * time.Second
	}

	var (
		sqlDB *sql.DB
		db    *bun.DB
		err   error
	)
	switch normalizeType(m.config.Type) {
	case TypeMySQL:
		sqlDB, err = sql.Open("mysql", mysqlDSN(m.config))
		if err == nil {
			db = bun.NewDB(sqlDB, mysqldialect.New())
		}
	case TypePostgres:
		sqlDB, err = sql.Open("postgres", postgresDSN(m.config))
		if err == nil {
			db = bun.NewDB(sqlDB, pgdialect.New())
		}
	case TypeSQLite:
		sqlDB, err = sql.Open(sqliteshim.ShimName, sqliteDSN(m.config))
		if err == nil {
			db = bun.NewDB(sqlDB, sqlitedialect.New())
		}
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedDatabase, m.config.Type)
	}
	if err != nil {
		return nil, nil, err
	}

	db.AddQueryHook(bundebug.NewQueryHook(
		bundebug.WithEnabled(false),
		bundebug.FromEnv("BUNDEBUG"),
	))
	if m.config.EnableQueryLog {
		db.AddQueryHook(NewQueryHook(nil))
	}
	if m.config.SlowQueryTime > 0 {
		db.AddQueryHook(&slowQueryHook{slowTime: m.config.SlowQueryTime, logger: m.Logger})
	}
	return sqlDB, db, nil
}

func mysqlDSN(c *ConnectionConfig) string {
	cfg := mysql.NewConfig()
	cfg.User = c.Username
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	cfg.DBName = c.DBName
	cfg.ParseTime = true
	// RowsAffected reports matched rows, so a no-op UPDATE still counts as found.
	cfg.ClientFoundRows = true
	cfg.Loc = time.UTC
	cfg.Timeout = c.ConnectTimeout
	cfg.ReadTimeout = c.ReadTimeout
	cfg.WriteTimeout = c.WriteTimeout
	charset := c.Charset
	if charset == "" {
		charset = "utf8mb4"
	}
	cfg.Params = map[string]string{"charset": charset}
	return cfg.FormatDSN()
}

func postgresDSN(c *ConnectionConfig) string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("connect_timeout", strconv.Itoa(int(c.ConnectTimeout.Seconds())))
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.DBName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// SQLiteMemory as DBName selects a private in-memory SQLite database.
const SQLiteMemory = ":memory:"

// sqliteDSN opens DBName as a file (".db" is appended when missing).
// ":memory:" and "file:" URIs are passed through. Transactions begin
// IMMEDIATE so concurrent writers queue on the busy timeout instead of
// failing on lock upgrade.
func sqliteDSN(c *ConnectionConfig) string {
	path := c.DBName
	switch {
	case path == SQLiteMemory:
		path = "file::memory:"
	case strings.HasPrefix(path, "file:"):
	case !strings.HasSuffix(path, ".db"):
		path += ".db"
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_txlock=immediate"
}

func isSQLiteMemory(c *ConnectionConfig) bool {
	return normalizeType(c.Type) == TypeSQLite && c.DBName == SQLiteMemory
}

// Disconnect closes the handle.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db, m.sqlDB = nil, nil
	if err != nil {
		m.logger.Error("Failed to close database connection", "error", err)
	} else {
		m.logger.Info("Database connection closed")
	}
	return err
}

// Close is an alias for Disconnect.
func (m *Manager) Close() error {
	return m.Disconnect()
}

// GetDB returns the Bun handle, or nil when disconnected.
func (m *Manager) GetDB() *bun.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db
}

// Dialect returns the normalized database type.
func (m *Manager) Dialect() string {
	return normalizeType(m.config.Type)
}

func (m *Manager) Ping(ctx context.Context) error {
	db := m.GetDB()
	if db == nil {
		return ErrNotConnected
	}
	return db.PingContext(ctx)
}

// GetStats returns a snapshot of database/sql connection statistics.
func (m *Manager) GetStats() *DBStats {
	m.mu.RLock()
	sqlDB := m.sqlDB
	m.mu.RUnlock()

	if sqlDB == nil {
		return &DBStats{}
	}
	stats := sqlDB.Stats()
	return &DBStats{
		MaxOpenConns:      stats.MaxOpenConnections,
		OpenConns:         stats.OpenConnections,
		InUse:             stats.InUse,
		Idle:              stats.Idle,
		WaitCount:         stats.WaitCount,
		WaitDuration:      stats.WaitDuration,
		MaxIdleClosed:     stats.MaxIdleClosed,
		MaxIdleTimeClosed: stats.MaxIdleTimeClosed,
		MaxLifetimeClosed: stats.MaxLifetimeClosed,
	}
}

// WithConnection acquires a dedicated connection, begins a transaction and
// runs body. A nil result commits. An error from body rolls back and is
// returned as is. A panic rolls back and is re-raised. The connection is
// released on every path.
func (m *Manager) WithConnection(ctx context.Context, body TxFunc) error {
	db := m.GetDB()
	if db == nil {
		return ErrNotConnected
	}
	logger := m.Logger()

	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			logger.Warn("Failed to release connection", "error", cerr)
		}
	}()

	if err := m.prepareSession(ctx, conn); err != nil {
		return err
	}

	tx, err := conn.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	var committed bool
	defer func() {
		if committed {
			return
		}
		if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
			logger.Error("Failed to roll back transaction", "error", rerr)
			return
		}
		logger.Debug("Transaction rolled back")
	}()

	if err := body(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

// prepareSession applies per-connection settings. SQLite leaves foreign key
// enforcement off unless each connection asks for it.
func (m *Manager) prepareSession(ctx context.Context, conn bun.Conn) error {
	if normalizeType(m.config.Type) != TypeSQLite {
		return nil
	}
	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if m.config.BusyTimeout > 0 {
		stmt := fmt.Sprintf("PRAGMA busy_timeout = %d", m.config.BusyTimeout.Milliseconds())
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to set busy timeout: %w", err)
		}
	}
	return nil
}
