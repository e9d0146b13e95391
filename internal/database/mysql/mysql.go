package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strings"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/config"
	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/database"
)

const (
	listTablesQuery = "SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME"

	listColumnsQuery = `
		  SELECT COLUMN_NAME, COLUMN_TYPE
		  FROM information_schema.COLUMNS
		  WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE())
			AND TABLE_NAME = ?
		  ORDER BY ORDINAL_POSITION;`

	columnCommentQuery = `
		  SELECT COLUMN_COMMENT
		  FROM information_schema.COLUMNS
		  WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE())
			AND TABLE_NAME = ?
			AND COLUMN_NAME = ?;`

	columnTypeQuery = `
		  SELECT COLUMN_TYPE
		  FROM information_schema.COLUMNS
		  WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE())
			AND TABLE_NAME = ?
			AND COLUMN_NAME = ?;`
)

type mysqlHandler struct{}

var _ database.DialectHandler = (*mysqlHandler)(nil)

func (h mysqlHandler) CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.User == "" || cfg.Password == "" || cfg.DBName == "" || cfg.CloudSQLInstanceConnectionName == "" {
		return nil, fmt.Errorf("missing required CloudSQL connection parameter (user, pass, db, instance)")
	}
	instanceConnectionName := cfg.CloudSQLInstanceConnectionName

	d, err := cloudsqlconn.NewDialer(context.Background())
	if err != nil {
		return nil, fmt.Errorf("cloudsqlconn.NewDialer: %w", err)
	}

	var opts []cloudsqlconn.DialOption
	if cfg.UsePrivateIP {
		opts = append(opts, cloudsqlconn.WithPrivateIP())
	}

	network := fmt.Sprintf("cloudsql-%s", instanceConnectionName)

	mysql.RegisterDialContext(network,
		func(ctx context.Context, addr string) (net.Conn, error) {
			conn, dialErr := d.Dial(ctx, instanceConnectionName, opts...)
			if dialErr != nil {
				zap.S().Errorf("Cloud SQL dial failed for %s: %v", instanceConnectionName, dialErr)
			}
			return conn, dialErr
		})

	mysqlCfg := mysql.Config{
		User:                 cfg.User,
		Passwd:               cfg.Password,
		Net:                  network,
		Addr:                 instanceConnectionName,
		DBName:               cfg.DBName,
		AllowNativePasswords: true,
		ParseTime:            true,
	}

	dbPool, err := sql.Open("mysql", mysqlCfg.FormatDSN())
	if err != nil {
		mysql.DeregisterDialContext(network)
		d.Close()
		return nil, fmt.Errorf("sql.Open failed for CloudSQL MySQL: %w", err)
	}
	return dbPool, nil
}

func (h mysqlHandler) CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	mysqlCfg := mysql.Config{
		User:                 cfg.User,
		Passwd:               cfg.Password,
		Net:                  "tcp",
		Addr:                 fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		DBName:               cfg.DBName,
		AllowNativePasswords: true,
		ParseTime:            true,
	}

	dbPool, err := sql.Open("mysql", mysqlCfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("sql.Open (standard mysql): %w", err)
	}
	return dbPool, nil
}

func (h mysqlHandler) QuoteIdentifier(name string) string {
	name = strings.ReplaceAll(name, "`", "``")
	return fmt.Sprintf("`%s`", name)
}

func (h mysqlHandler) quoteTable(name string) string {
	schema, table := database.SplitQualifiedName(name)
	if schema == "" {
		return h.QuoteIdentifier(table)
	}
	return h.QuoteIdentifier(schema) + "." + h.QuoteIdentifier(table)
}

func (h mysqlHandler) ListTables(ctx context.Context, db *database.DB) ([]string, error) {
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

func (h mysqlHandler) ListColumns(ctx context.Context, db *database.DB, tableName string) ([]database.ColumnInfo, error) {
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

func escapeMySQLString(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, `'`, `''`)
	return value
}

func (h mysqlHandler) GenerateCommentSQL(ctx context.Context, db *database.DB, data *database.CommentData) (string, error) {
	if data == nil || data.TableName == "" || data.ColumnName == "" {
		return "", fmt.Errorf("invalid input for GenerateCommentSQL")
	}

	newMetadataComment := database.GenerateMetadataCommentString(data)
	if newMetadataComment == "" {
		return "", nil
	}

	existingComment, err := h.GetColumnComment(ctx, db, data.TableName, data.ColumnName)
	if err != nil {
		zap.S().Warnf("Failed to get existing column comment for %s.%s: %v. Proceeding as if empty.", data.TableName, data.ColumnName, err)
		existingComment = ""
	}

	finalComment := database.MergeComments(existingComment, newMetadataComment, db.Config.UpdateExistingMode)

	columnDataType, err := h.getColumnDataType(ctx, db, data.TableName, data.ColumnName)
	if err != nil {
		return "", fmt.Errorf("failed to get column data type for %s.%s: %w", data.TableName, data.ColumnName, err)
	}

	return h.modifyColumnSQL(data.TableName, data.ColumnName, columnDataType, finalComment), nil
}

func (h mysqlHandler) GenerateDeleteCommentSQL(ctx context.Context, db *database.DB, tableName string, columnName string) (string, error) {
	if tableName == "" || columnName == "" {
		return "", fmt.Errorf("table and column names cannot be empty for GenerateDeleteCommentSQL")
	}

	existingComment, err := h.GetColumnComment(ctx, db, tableName, columnName)
	if err != nil {
		return "", fmt.Errorf("failed to get existing column comment for %s.%s before delete: %w", tableName, columnName, err)
	}

	finalComment := database.RemoveGeneratedComment(existingComment)
	if finalComment == strings.TrimSpace(existingComment) {
		return "", nil
	}

	columnDataType, err := h.getColumnDataType(ctx, db, tableName, columnName)
	if err != nil {
		return "", fmt.Errorf("failed to get column data type for deleting comment on %s.%s: %w", tableName, columnName, err)
	}

	return h.modifyColumnSQL(tableName, columnName, columnDataType, finalComment), nil
}

// modifyColumnSQL restates the column type, which MySQL requires to change a comment.
func (h mysqlHandler) modifyColumnSQL(tableName, columnName, columnDataType, comment string) string {
	return fmt.Sprintf(
		"ALTER TABLE %s MODIFY COLUMN %s %s COMMENT '%s';",
		h.quoteTable(tableName),
		h.QuoteIdentifier(columnName),
		columnDataType,
		escapeMySQLString(comment),
	)
}

func (h mysqlHandler) GetColumnComment(ctx context.Context, db *database.DB, tableName string, columnName string) (string, error) {
	schema, table := database.SplitQualifiedName(tableName)

	var comment sql.NullString
	err := db.QueryRowContext(ctx, columnCommentQuery, schema, table, columnName).Scan(&comment)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		zap.S().Errorf("Failed to retrieve column comment for %s.%s: %v", tableName, columnName, err)
		return "", fmt.Errorf("failed to retrieve column comment for %s.%s: %w", tableName, columnName, err)
	}

	if comment.Valid {
		return comment.String, nil
	}
	return "", nil
}

func (h mysqlHandler) getColumnDataType(ctx context.Context, db *database.DB, tableName string, columnName string) (string, error) {
	schema, table := database.SplitQualifiedName(tableName)

	var columnType sql.NullString
	err := db.QueryRowContext(ctx, columnTypeQuery, schema, table, columnName).Scan(&columnType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("column %s.%s not found when retrieving data type", tableName, columnName)
		}
		return "", fmt.Errorf("failed to retrieve column type for %s.%s: %w", tableName, columnName, err)
	}
	if !columnType.Valid || columnType.String == "" {
		return "", fmt.Errorf("retrieved null or empty column type for %s.%s", tableName, columnName)
	}
	return columnType.String, nil
}

func init() {
	database.RegisterDialectHandler("mysql", mysqlHandler{})
	database.RegisterDialectHandler("cloudsqlmysql", mysqlHandler{})
}
