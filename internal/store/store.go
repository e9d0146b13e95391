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

// Package store persists uploaded SQL scripts and generated column
// descriptions in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/enricher"
)

//go:embed migrations/*.sql
var migrations embed.FS

const defaultBusyTimeout = 5000

const (
	insertScriptQuery = "INSERT INTO sql_queries (filename, content) VALUES (?, ?)"

	listScriptsQuery = "SELECT id, filename, content, created_at FROM sql_queries ORDER BY id"

	insertDescriptionQuery = `
		INSERT INTO column_descriptions (run_id, table_name, column_name, description, definition, source_tables, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	listDescriptionsQuery = `
		SELECT id, run_id, table_name, column_name, description, definition, source_tables, failed, created_at
		FROM column_descriptions
		WHERE (? = '' OR table_name = ?)
		ORDER BY id`
)

// goose keeps its configuration in package globals.
var migrateMu sync.Mutex

// Script is an uploaded SQL file.
type Script struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Description is a stored column description.
type Description struct {
	ID           int64     `json:"-"`
	RunID        string    `json:"run_id"`
	Table        string    `json:"table"`
	Column       string    `json:"column"`
	Description  string    `json:"description"`
	Definition   string    `json:"definition,omitempty"`
	SourceTables []string  `json:"source_tables,omitempty"`
	Failed       bool      `json:"failed,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies pending
// migrations. ":memory:" gives a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("store path cannot be empty")
	}
	dsn := fmt.Sprintf("%s?_busy_timeout=%d&_foreign_keys=on", path, defaultBusyTimeout)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single connection serializes writers and keeps ":memory:" alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	zap.S().Debugf("Opened store at %s", path)
	return &Store{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{})
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("goose set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Version returns the applied migration version.
func (s *Store) Version() (int64, error) {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return 0, fmt.Errorf("goose set dialect: %w", err)
	}
	return goose.GetDBVersion(s.db)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveScripts stores all scripts in one transaction.
func (s *Store) SaveScripts(ctx context.Context, scripts []Script) error {
	if len(scripts) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, insertScriptQuery)
		if err != nil {
			return fmt.Errorf("prepare script insert: %w", err)
		}
		defer stmt.Close()

		for _, sc := range scripts {
			if _, err := stmt.ExecContext(ctx, sc.Filename, sc.Content); err != nil {
				return fmt.Errorf("insert script %s: %w", sc.Filename, err)
			}
		}
		return nil
	})
}

// ListScripts returns every stored script in upload order.
func (s *Store) ListScripts(ctx context.Context) ([]Script, error) {
	rows, err := s.db.QueryContext(ctx, listScriptsQuery)
	if err != nil {
		return nil, fmt.Errorf("query scripts: %w", err)
	}
	defer rows.Close()

	var scripts []Script
	for rows.Next() {
		var sc Script
		if err := rows.Scan(&sc.ID, &sc.Filename, &sc.Content, &sc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan script: %w", err)
		}
		scripts = append(scripts, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scripts: %w", err)
	}
	return scripts, nil
}

// SaveDescriptions stores one batch of descriptions under runID.
func (s *Store) SaveDescriptions(ctx context.Context, runID string, described []enricher.DescribedColumn) error {
	if runID == "" {
		return fmt.Errorf("run id cannot be empty")
	}
	if len(described) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, insertDescriptionQuery)
		if err != nil {
			return fmt.Errorf("prepare description insert: %w", err)
		}
		defer stmt.Close()

		for _, d := range described {
			sources := d.SourceTables
			if sources == nil {
				sources = []string{}
			}
			encoded, err := json.Marshal(sources)
			if err != nil {
				return fmt.Errorf("encode source tables for %s.%s: %w", d.Table, d.Column, err)
			}
			if _, err := stmt.ExecContext(ctx, runID, d.Table, d.Column, d.Description, d.Definition, string(encoded), d.Failed); err != nil {
				return fmt.Errorf("insert description %s.%s: %w", d.Table, d.Column, err)
			}
		}
		return nil
	})
}

// ListDescriptions returns stored descriptions, optionally only those of
// tableName, in insertion order.
func (s *Store) ListDescriptions(ctx context.Context, tableName string) ([]Description, error) {
	tableName = strings.TrimSpace(tableName)
	rows, err := s.db.QueryContext(ctx, listDescriptionsQuery, tableName, tableName)
	if err != nil {
		return nil, fmt.Errorf("query descriptions: %w", err)
	}
	defer rows.Close()

	descriptions := []Description{}
	for rows.Next() {
		var (
			d       Description
			sources string
		)
		if err := rows.Scan(&d.ID, &d.RunID, &d.Table, &d.Column, &d.Description, &d.Definition, &sources, &d.Failed, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan description: %w", err)
		}
		if sources != "" {
			if err := json.Unmarshal([]byte(sources), &d.SourceTables); err != nil {
				return nil, fmt.Errorf("decode source tables for %s.%s: %w", d.Table, d.Column, err)
			}
		}
		descriptions = append(descriptions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate descriptions: %w", err)
	}
	return descriptions, nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			zap.S().Errorf("Failed to roll back transaction: %v", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...interface{}) {
	zap.S().Infof(strings.TrimSuffix(format, "\n"), v...)
}

func (gooseLogger) Fatalf(format string, v ...interface{}) {
	zap.S().Fatalf(strings.TrimSuffix(format, "\n"), v...)
}
