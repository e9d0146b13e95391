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
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strings"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/config"
	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/database"
)

const (
	listTablesQuery = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = current_schema()
		AND table_type = 'BASE TABLE'
		ORDER BY table_name;`

	listColumnsQuery = `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = COALESCE(NULLIF($1, ''), current_schema())
		AND table_name = $2
		ORDER BY ordinal_position;`

	columnCommentQuery = `
		SELECT col_description(c.oid, a.attnum)
		FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON c.relnamespace = n.oid
		JOIN pg_catalog.pg_attribute a ON a.attrelid = c.oid
		WHERE n.nspname = COALESCE(NULLIF($1, ''), current_schema())
		  AND c.relname = $2
		  AND a.attname = $3;`
)

// postgresHandler struct implements database.DialectHandler for PostgreSQL.
type postgresHandler struct{}

var _ database.DialectHandler = (*postgresHandler)(nil)

// CreateCloudSQLPool connects through the Cloud SQL connector using pgx.
func (h postgresHandler) CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.User == "" || cfg.DBName == "" || cfg.CloudSQLInstanceConnectionName == "" {
		return nil, fmt.Errorf("missing required CloudSQL connection parameter (user, db, instance)")
	}

	dsn := fmt.Sprintf("user=%s password=%s database=%s", cfg.User, cfg.Password, cfg.DBName)
	pgxConfig, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	var opts []cloudsqlconn.Option
	if cfg.UsePrivateIP {
		opts = append(opts, cloudsqlconn.WithDefaultDialOptions(cloudsqlconn.WithPrivateIP()))
	}
	d, err := cloudsqlconn.NewDialer(context.Background(), opts...)
	if err != nil {
		return nil, err
	}
	instance := cfg.CloudSQLInstanceConnectionName
	pgxConfig.DialFunc = func(ctx context.Context, network, addr string) (net.Conn, error) {
		return d.Dial(ctx, instance)
	}
	dbURI := stdlib.RegisterConnConfig(pgxConfig)
	dbPool, err := sql.Open("pgx", dbURI)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	return dbPool, nil
}

// CreateStandardPool creates a standard PostgreSQL connection pool
func (h postgresHandler) CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	dbPool, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	return dbPool, nil
}

// QuoteIdentifier for PostgreSQL
func (h postgresHandler) QuoteIdentifier(name string) string {
	return pq.QuoteIdentifier(name)
}

func (h postgresHandler) quoteTable(name string) string {
	schema, table := database.SplitQualifiedName(name)
	if schema == "" {
		return h.QuoteIdentifier(table)
	}
	return h.QuoteIdentifier(schema) + "." + h.QuoteIdentifier(table)
}

// ListTables for PostgreSQL
func (h postgresHandler) ListTables(ctx context.Context, db *database.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, listTablesQuery)
	if err != nil {
		return nil, fmt.Errorf("error querying tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, fmt.Errorf("error scanning table name: %w", err)
		}
		tables = append(tables, tableName)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating table rows: %w", err)
	}
	return tables, nil
}

// ListColumns for PostgreSQL. tableName may be schema-qualified.
func (h postgresHandler) ListColumns(ctx context.Context, db *database.DB, tableName string) ([]database.ColumnInfo, error) {
	schema, table := database.SplitQualifiedName(tableName)
	rows, err := db.QueryContext(ctx, listColumnsQuery, schema, table)
	if err != nil {
		return nil, fmt.Errorf("error querying columns for table %s: %w", tableName, err)
	}
	defer rows.Close()

	var columns []database.ColumnInfo
	for rows.Next() {
		var colInfo database.ColumnInfo
		if err := rows.Scan(&colInfo.Name, &colInfo.DataType); err != nil {
			return nil, fmt.Errorf("error scanning column name and data type: %w", err)
		}
		columns = append(columns, colInfo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column rows: %w", err)
	}
	return columns, nil
}

// GetColumnComment for PostgreSQL retrieves the comment for a specific column.
func (h postgresHandler) GetColumnComment(ctx context.Context, db *database.DB, tableName string, columnName string) (string, error) {
	schema, table := database.SplitQualifiedName(tableName)

	var comment sql.NullString
	err := db.QueryRowContext(ctx, columnCommentQuery, schema, table, columnName).Scan(&comment)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to retrieve column comment: %w", err)
	}
	if comment.Valid {
		return comment.String, nil
	}
	return "", nil
}

// GenerateCommentSQL creates a COMMENT ON COLUMN statement carrying the merged comment.
func (h postgresHandler) GenerateCommentSQL(ctx context.Context, db *database.DB, data *database.CommentData) (string, error) {
	if data == nil {
		return "", fmt.Errorf("comment data cannot be nil")
	}
	if data.TableName == "" || data.ColumnName == "" {
		return "", fmt.Errorf("table and column names cannot be empty")
	}

	newMetadataComment := database.GenerateMetadataCommentString(data)
	if newMetadataComment == "" {
		return "", nil
	}
	existingComment, err := h.GetColumnComment(ctx, db, data.TableName, data.ColumnName)
	if err != nil {
		return "", err
	}
	finalComment := database.MergeComments(existingComment, newMetadataComment, db.Config.UpdateExistingMode)

	return fmt.Sprintf(
		"COMMENT ON COLUMN %s.%s IS %s;",
		h.quoteTable(data.TableName),
		h.QuoteIdentifier(data.ColumnName),
		pq.QuoteLiteral(finalComment),
	), nil
}

// GenerateDeleteCommentSQL removes the generated section of a column comment.
// It returns "" when the comment has no generated section.
func (h postgresHandler) GenerateDeleteCommentSQL(ctx context.Context, db *database.DB, tableName string, columnName string) (string, error) {
	if tableName == "" || columnName == "" {
		return "", fmt.Errorf("table and column names cannot be empty")
	}

	existingComment, err := h.GetColumnComment(ctx, db, tableName, columnName)
	if err != nil {
		return "", err
	}
	finalComment := database.RemoveGeneratedComment(existingComment)
	if finalComment == strings.TrimSpace(existingComment) {
		return "", nil
	}

	literal := "NULL"
	if finalComment != "" {
		literal = pq.QuoteLiteral(finalComment)
	}
	return fmt.Sprintf(
		"COMMENT ON COLUMN %s.%s IS %s;",
		h.quoteTable(tableName),
		h.QuoteIdentifier(columnName),
		literal,
	), nil
}

func init() {
	database.RegisterDialectHandler("postgres", postgresHandler{})
	database.RegisterDialectHandler("cloudsqlpostgres", postgresHandler{})
}
