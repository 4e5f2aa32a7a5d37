// Package database manages the SQL connections scripts open through the sql module.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Pool settings applied to every connection. SQLite is pinned to a single
// connection so in-memory databases are shared by all statements.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultPoolConfig mirrors the pool sizes used for server databases.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// Manager manages database connections
type Manager struct {
	connections map[string]*Conn
	pool        PoolConfig
	logger      *zap.Logger
	mu          sync.RWMutex
}

// Conn represents an active database connection
type Conn struct {
	ID       string
	Type     string // sqlite, postgres, mysql, sqlserver
	Driver   string
	DB       *sql.DB
	Created  time.Time
	lastUsed time.Time
	mu       sync.Mutex
}

// LastUsed reports when the connection last ran a statement.
func (c *Conn) LastUsed() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsed
}

func (c *Conn) touch() {
	c.mu.Lock()
	c.lastUsed = time.Now()
	c.mu.Unlock()
}

// Row is one result row with its columns in select order.
type Row struct {
	Columns []string
	Values  map[string]interface{}
}

// NewManager creates a new database manager
func NewManager(pool PoolConfig, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		connections: make(map[string]*Conn),
		pool:        pool,
		logger:      logger,
	}
}

// DriverName maps a database type to its registered database/sql driver.
func DriverName(dbType string) (string, error) {
	switch dbType {
	case "sqlite", "sqlite3":
		return "sqlite", nil
	case "postgres", "postgresql":
		return "postgres", nil
	case "mysql":
		return "mysql", nil
	case "sqlserver", "mssql":
		return "sqlserver", nil
	default:
		return "", fmt.Errorf("unsupported database type: %s", dbType)
	}
}

// Open creates a new connection and returns its generated id.
func (m *Manager) Open(ctx context.Context, dbType, dsn string) (string, error) {
	driverName, err := DriverName(dbType)
	if err != nil {
		return "", err
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return "", fmt.Errorf("failed to connect: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return "", fmt.Errorf("failed to ping database: %w", err)
	}

	if driverName == "sqlite" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(m.pool.MaxOpenConns)
		db.SetMaxIdleConns(m.pool.MaxIdleConns)
		db.SetConnMaxLifetime(m.pool.ConnMaxLifetime)
	}

	now := time.Now()
	conn := &Conn{
		ID:       uuid.NewString(),
		Type:     dbType,
		Driver:   driverName,
		DB:       db,
		Created:  now,
		lastUsed: now,
	}

	m.mu.Lock()
	m.connections[conn.ID] = conn
	m.mu.Unlock()

	m.logger.Debug("database connection opened", zap.String("id", conn.ID), zap.String("driver", driverName))
	return conn.ID, nil
}

// Execute runs a statement that doesn't return rows and reports rows affected.
func (m *Manager) Execute(ctx context.Context, connID, query string, args ...interface{}) (int64, error) {
	conn, err := m.get(connID)
	if err != nil {
		return 0, err
	}
	conn.touch()

	result, err := conn.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("execution failed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// Query runs a query that returns rows
func (m *Manager) Query(ctx context.Context, connID, query string, args ...interface{}) ([]Row, error) {
	conn, err := m.get(connID)
	if err != nil {
		return nil, err
	}
	conn.touch()

	rows, err := conn.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	values := make([]interface{}, len(columns))
	valuePtrs := make([]interface{}, len(columns))
	for i := range columns {
		valuePtrs[i] = &values[i]
	}

	var results []Row
	for rows.Next() {
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := Row{Columns: columns, Values: make(map[string]interface{}, len(columns))}
		for i, col := range columns {
			// Handle byte arrays as strings
			if b, ok := values[i].([]byte); ok {
				row.Values[col] = string(b)
			} else {
				row.Values[col] = values[i]
			}
		}
		results = append(results, row)
	}

	return results, rows.Err()
}

// Transaction runs fn within a database transaction, rolling back on error.
func (m *Manager) Transaction(ctx context.Context, connID string, fn func(*sql.Tx) error) error {
	conn, err := m.get(connID)
	if err != nil {
		return err
	}
	conn.touch()

	tx, err := conn.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %v, rollback failed: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes a specific connection
func (m *Manager) Close(connID string) error {
	m.mu.Lock()
	conn, exists := m.connections[connID]
	if !exists {
		m.mu.Unlock()
		return fmt.Errorf("connection '%s' not found", connID)
	}
	delete(m.connections, connID)
	m.mu.Unlock()

	m.logger.Debug("database connection closed", zap.String("id", connID))
	return conn.DB.Close()
}

// CloseAll closes all connections, returning the first error seen.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	conns := m.connections
	m.connections = make(map[string]*Conn)
	m.mu.Unlock()

	var first error
	for id, conn := range conns {
		if err := conn.DB.Close(); err != nil {
			m.logger.Warn("error closing connection", zap.String("id", id), zap.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// List returns the ids of open connections, sorted.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.connections))
	for id := range m.connections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Get retrieves a connection by ID
func (m *Manager) Get(connID string) (*Conn, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.connections[connID]
	return conn, ok
}

func (m *Manager) get(connID string) (*Conn, error) {
	conn, ok := m.Get(connID)
	if !ok {
		return nil, fmt.Errorf("connection '%s' not found", connID)
	}
	return conn, nil
}
