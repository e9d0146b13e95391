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
package sqlserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strings"

	"cloud.google.com/go/cloudsqlconn"
	mssql "github.com/denisenkom/go-mssqldb"

	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/config"
	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/database"
)

const defaultSchema = "dbo"

const (
	listTablesQuery = "SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_TYPE = 'BASE TABLE' AND TABLE_CATALOG = DB_NAME() ORDER BY TABLE_NAME"

	listColumnsQuery = `
		SELECT COLUMN_NAME, DATA_TYPE
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = @schemaName
		  AND TABLE_NAME = @tableName
		  AND TABLE_CATALOG = DB_NAME()
		ORDER BY ORDINAL_POSITION`

	columnCommentQuery = `
		SELECT CAST(value as NVARCHAR(MAX))
		FROM fn_listextendedproperty (N'MS_Description', N'SCHEMA', @schemaName, N'TABLE', @tableName, N'COLUMN', @columnName)
	`
)

// sqlServerHandler struct implements database.DialectHandler for SQL Server.
type sqlServerHandler struct{}

var _ database.DialectHandler = (*sqlServerHandler)(nil)

type csqlDialer struct {
	dialer     *cloudsqlconn.Dialer
	connName   string
	usePrivate bool
}

// DialContext adheres to the mssql.Dialer interface.
func (c *csqlDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	var opts []cloudsqlconn.DialOption
	if c.usePrivate {
		opts = append(opts, cloudsqlconn.WithPrivateIP())
	}
	return c.dialer.Dial(ctx, c.connName, opts...)
}

// CreateCloudSQLPool for SQL Server
func (h sqlServerHandler) CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.User == "" || cfg.DBName == "" || cfg.CloudSQLInstanceConnectionName == "" {
		return nil, fmt.Errorf("missing required CloudSQL connection parameter (user, db, instance)")
	}

	// WithLazyRefresh() refreshes certificates on demand instead of in the background.
	dialer, err := cloudsqlconn.NewDialer(context.Background(), cloudsqlconn.WithLazyRefresh())
	if err != nil {
		return nil, fmt.Errorf("cloudsqlconn.NewDialer: %w", err)
	}
	connector, err := mssql.NewConnector(fmt.Sprintf("sqlserver://%s:%s@localhost:1433?database=%s&dial=cloudsqlconn&instance=%s",
		cfg.User, cfg.Password, cfg.DBName, cfg.CloudSQLInstanceConnectionName))
	if err != nil {
		return nil, fmt.Errorf("mssql.NewConnector: %w", err)
	}
	connector.Dialer = &csqlDialer{
		dialer:     dialer,
		connName:   cfg.CloudSQLInstanceConnectionName,
		usePrivate: cfg.UsePrivateIP,
	}

	return sql.OpenDB(connector), nil
}

// CreateStandardPool creates a standard SQL Server connection pool
func (h sqlServerHandler) CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	port := cfg.Port
	if port == 0 {
		port = 1433
	}
	connStr := fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s",
		cfg.User, cfg.Password, cfg.Host, port, cfg.DBName)

	dbPool, err := sql.Open("sqlserver", connStr)
	if err != nil {
		return nil, fmt.Errorf("sql.Open (standard sqlserver): %w", err)
	}
	return dbPool, nil
}

// QuoteIdentifier for SQL Server uses square brackets.
func (h sqlServerHandler) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// splitName returns the schema and table, defaulting the schema to dbo.
func splitName(tableName string) (string, string) {
	schema, table := database.SplitQualifiedName(tableName)
	if schema == "" {
		schema = defaultSchema
	}
	return schema, table
}

// ListTables for SQL Server
func (h sqlServerHandler) ListTables(ctx context.Context, db *database.DB) ([]string, error) {
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

// ListColumns for SQL Server
func (h sqlServerHandler) ListColumns(ctx context.Context, db *database.DB, tableName string) ([]database.ColumnInfo, error) {
	schema, table := splitName(tableName)
	rows, err := db.QueryContext(ctx, listColumnsQuery, sql.Named("schemaName", schema), sql.Named("tableName", table))
	if err != nil {
		return nil, fmt.Errorf("error querying columns for table %s: %w", tableName, err)
	}
	defer rows.Close()

	var columns []database.ColumnInfo
	for rows.Next() {
		var colInfo database.ColumnInfo
		if err := rows.Scan(&colInfo.Name, &colInfo.DataType); err != nil {
			return nil, fmt.Errorf("error scanning column details: %w", err)
		}
		columns = append(columns, colInfo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column rows: %w", err)
	}
	return columns, nil
}

// lookupComment reports the MS_Description of a column and whether the property exists.
func (h sqlServerHandler) lookupComment(ctx context.Context, db *database.DB, tableName, columnName string) (string, bool, error) {
	schema, table := splitName(tableName)

	var comment sql.NullString
	err := db.QueryRowContext(ctx, columnCommentQuery,
		sql.Named("schemaName", schema),
		sql.Named("tableName", table),
		sql.Named("columnName", columnName),
	).Scan(&comment)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to retrieve column comment: %w", err)
	}
	return comment.String, true, nil
}

// GetColumnComment for SQL Server retrieves the comment for a specific column.
func (h sqlServerHandler) GetColumnComment(ctx context.Context, db *database.DB, tableName string, columnName string) (string, error) {
	comment, _, err := h.lookupComment(ctx, db, tableName, columnName)
	return comment, err
}

func (h sqlServerHandler) propertySQL(procedure, tableName, columnName string, comment *string) string {
	schema, table := splitName(tableName)
	value := ""
	if comment != nil {
		value = fmt.Sprintf(" N'%s',", strings.ReplaceAll(*comment, "'", "''"))
	}
	return fmt.Sprintf(
		"EXEC %s N'MS_Description',%s N'SCHEMA', N'%s', N'TABLE', %s, N'COLUMN', %s;",
		procedure,
		value,
		strings.ReplaceAll(schema, "'", "''"),
		h.QuoteIdentifier(table),
		h.QuoteIdentifier(columnName),
	)
}

// GenerateCommentSQL creates the extended property statement for a column
// comment. sp_addextendedproperty is used when the column has no description.
func (h sqlServerHandler) GenerateCommentSQL(ctx context.Context, db *database.DB, data *database.CommentData) (string, error) {
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
	existingComment, exists, err := h.lookupComment(ctx, db, data.TableName, data.ColumnName)
	if err != nil {
		return "", err
	}
	finalComment := database.MergeComments(existingComment, newMetadataComment, db.Config.UpdateExistingMode)

	procedure := "sp_addextendedproperty"
	if exists {
		procedure = "sp_updateextendedproperty"
	}
	return h.propertySQL(procedure, data.TableName, data.ColumnName, &finalComment), nil
}

// GenerateDeleteCommentSQL for SQL Server drops the property when nothing but
// generated text was stored.
func (h sqlServerHandler) GenerateDeleteCommentSQL(ctx context.Context, db *database.DB, tableName string, columnName string) (string, error) {
	if tableName == "" || columnName == "" {
		return "", fmt.Errorf("table and column names cannot be empty")
	}

	existingComment, exists, err := h.lookupComment(ctx, db, tableName, columnName)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", nil
	}

	finalComment := database.RemoveGeneratedComment(existingComment)
	if finalComment == strings.TrimSpace(existingComment) {
		return "", nil
	}
	if finalComment == "" {
		return h.propertySQL("sp_dropextendedproperty", tableName, columnName, nil), nil
	}
	return h.propertySQL("sp_updateextendedproperty", tableName, columnName, &finalComment), nil
}

func init() {
	database.RegisterDialectHandler("sqlserver", sqlServerHandler{})
	database.RegisterDialectHandler("cloudsqlsqlserver", sqlServerHandler{})
}
