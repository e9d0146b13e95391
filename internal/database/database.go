/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
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

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/config"
)

// DBAdapter defines the database operations needed to write generated
// column descriptions back as column comments.
type DBAdapter interface {
	ListTables(ctx context.Context) ([]string, error)
	ListColumns(ctx context.Context, tableName string) ([]ColumnInfo, error)
	GetColumnComment(ctx context.Context, tableName string, columnName string) (string, error)
	GenerateCommentSQL(ctx context.Context, data *CommentData) (string, error)
	GenerateDeleteCommentSQL(ctx context.Context, tableName string, columnName string) (string, error)
	ExecuteSQLStatements(ctx context.Context, sqlStatements []string) error
	Ping(ctx context.Context) error
	Close() error
	GetConfig() config.DatabaseConfig
}

var _ DBAdapter = (*DB)(nil)

// DB holds the database connection pool and dialect handler.
type DB struct {
	Pool    *sql.DB
	Handler DialectHandler
	Config  config.DatabaseConfig
}

// ColumnInfo holds basic information about a database column.
type ColumnInfo struct {
	Name     string
	DataType string
}

// CommentData holds information needed to generate a column comment.
type CommentData struct {
	TableName      string
	ColumnName     string
	ColumnDataType string
	Description    string
	Definition     string
	SourceTables   []string
}

// DialectHandler implements the dialect-specific parts of DBAdapter.
type DialectHandler interface {
	CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error)
	CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error)
	QuoteIdentifier(name string) string
	ListTables(ctx context.Context, db *DB) ([]string, error)
	ListColumns(ctx context.Context, db *DB, tableName string) ([]ColumnInfo, error)
	GetColumnComment(ctx context.Context, db *DB, tableName string, columnName string) (string, error)
	GenerateCommentSQL(ctx context.Context, db *DB, data *CommentData) (string, error)
	GenerateDeleteCommentSQL(ctx context.Context, db *DB, tableName string, columnName string) (string, error)
}

var (
	dialectHandlers = make(map[string]DialectHandler)
	mu              sync.RWMutex
)

// RegisterDialectHandler makes a handler available under a dialect name.
func RegisterDialectHandler(dialect string, handler DialectHandler) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := dialectHandlers[dialect]; exists {
		zap.S().Warnf("Dialect handler for '%s' is being overwritten.", dialect)
	}
	dialectHandlers[dialect] = handler
}

// GetDialectHandler returns the handler registered for dialect.
func GetDialectHandler(dialect string) (DialectHandler, error) {
	mu.RLock()
	defer mu.RUnlock()
	handler, ok := dialectHandlers[dialect]
	if !ok {
		return nil, fmt.Errorf("unsupported database dialect: %s", dialect)
	}
	return handler, nil
}

// New opens a connection pool for cfg.Dialect and verifies it with a ping.
func New(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	handler, err := GetDialectHandler(cfg.Dialect)
	if err != nil {
		return nil, err
	}

	var pool *sql.DB
	if strings.HasPrefix(cfg.Dialect, "cloudsql") {
		pool, err = handler.CreateCloudSQLPool(cfg)
	} else {
		pool, err = handler.CreateStandardPool(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool for dialect %s: %w", cfg.Dialect, err)
	}

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database (ping failed) for dialect %s: %w", cfg.Dialect, err)
	}

	return &DB{
		Pool:    pool,
		Handler: handler,
		Config:  cfg,
	}, nil
}

func (db *DB) GetConfig() config.DatabaseConfig {
	return db.Config
}

func (db *DB) Ping(ctx context.Context) error {
	if db.Pool == nil {
		return fmt.Errorf("database connection pool is not initialized")
	}
	return db.Pool.PingContext(ctx)
}

func (db *DB) Close() error {
	if db.Pool != nil {
		return db.Pool.Close()
	}
	zap.S().Warn("Attempted to close a nil database connection pool.")
	return nil
}

// QueryContext runs a query on the pool.
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if db.Pool == nil {
		return nil, fmt.Errorf("database connection pool is not initialized")
	}
	return db.Pool.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a single-row query on the pool.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.Pool.QueryRowContext(ctx, query, args...)
}

func (db *DB) ListTables(ctx context.Context) ([]string, error) {
	if db.Handler == nil {
		return nil, fmt.Errorf("dialect handler not initialized")
	}
	return db.Handler.ListTables(ctx, db)
}

func (db *DB) ListColumns(ctx context.Context, tableName string) ([]ColumnInfo, error) {
	if db.Handler == nil {
		return nil, fmt.Errorf("dialect handler not initialized")
	}
	return db.Handler.ListColumns(ctx, db, tableName)
}

func (db *DB) GetColumnComment(ctx context.Context, tableName string, columnName string) (string, error) {
	if db.Handler == nil {
		return "", fmt.Errorf("dialect handler not initialized")
	}
	return db.Handler.GetColumnComment(ctx, db, tableName, columnName)
}

func (db *DB) GenerateCommentSQL(ctx context.Context, data *CommentData) (string, error) {
	if db.Handler == nil {
		return "", fmt.Errorf("dialect handler not initialized")
	}
	return db.Handler.GenerateCommentSQL(ctx, db, data)
}

func (db *DB) GenerateDeleteCommentSQL(ctx context.Context, tableName string, columnName string) (string, error) {
	if db.Handler == nil {
		return "", fmt.Errorf("dialect handler not initialized")
	}
	return db.Handler.GenerateDeleteCommentSQL(ctx, db, tableName, columnName)
}

// ExecuteSQLStatements runs the statements in a single transaction.
func (db *DB) ExecuteSQLStatements(ctx context.Context, sqlStatements []string) error {
	if db.Pool == nil {
		return fmt.Errorf("database connection pool is not initialized")
	}
	if len(sqlStatements) == 0 {
		zap.S().Info("No SQL statements provided to ExecuteSQLStatements.")
		return nil
	}

	tx, err := db.Pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, stmt := range sqlStatements {
		trimmedStmt := strings.TrimSpace(stmt)
		if trimmedStmt == "" {
			continue
		}
		if _, err = tx.ExecContext(ctx, trimmedStmt); err != nil {
			zap.S().Errorw("Failed executing statement", "index", i+1, "statement", trimmedStmt, "error", err)
			return fmt.Errorf("failed executing statement #%d: %w", i+1, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
