package sqlserver

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/config"
	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/database"
)

func newMockSQLServerDB(t *testing.T, mode string) (*database.DB, sqlmock.Sqlmock, *sqlServerHandler) {
	t.Helper()
	mockDb, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	handler := sqlServerHandler{}
	db := &database.DB{
		Pool:    mockDb,
		Handler: &handler,
		Config:  config.DatabaseConfig{Dialect: "sqlserver", UpdateExistingMode: mode},
	}
	return db, mock, &handler
}

func expectComment(mock sqlmock.Sqlmock, schema, table, column string, value any, exists bool) {
	exp := mock.ExpectQuery(regexp.QuoteMeta(columnCommentQuery)).
		WithArgs(sql.Named("schemaName", schema), sql.Named("tableName", table), sql.Named("columnName", column))
	rows := sqlmock.NewRows([]string{"value"})
	if exists {
		rows.AddRow(value)
	}
	exp.WillReturnRows(rows)
}

func TestSQLServerQuoteIdentifier(t *testing.T) {
	handler := sqlServerHandler{}
	tests := map[string]string{
		"orders":     "[orders]",
		"order line": "[order line]",
		"odd]name":   "[odd]]name]",
	}
	for in, want := range tests {
		if got := handler.QuoteIdentifier(in); got != want {
			t.Errorf("QuoteIdentifier(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSQLServerListTables(t *testing.T) {
	db, mock, handler := newMockSQLServerDB(t, "overwrite")
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(listTablesQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("customers").AddRow("orders"))

	tables, err := handler.ListTables(context.Background(), db)
	if err != nil {
		t.Fatalf("ListTables() unexpected error: %v", err)
	}
	if len(tables) != 2 || tables[0] != "customers" || tables[1] != "orders" {
		t.Errorf("ListTables() = %v", tables)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled mock expectations: %v", err)
	}
}

func TestSQLServerListColumns(t *testing.T) {
	tests := []struct {
		name   string
		table  string
		schema string
		bare   string
	}{
		{"Default schema", "orders", "dbo", "orders"},
		{"Qualified table", "sales.orders", "sales", "orders"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, handler := newMockSQLServerDB(t, "overwrite")
			defer db.Close()

			mock.ExpectQuery(regexp.QuoteMeta(listColumnsQuery)).
				WithArgs(sql.Named("schemaName", tt.schema), sql.Named("tableName", tt.bare)).
				WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE"}).AddRow("id", "int").AddRow("total", "decimal"))

			cols, err := handler.ListColumns(context.Background(), db, tt.table)
			if err != nil {
				t.Fatalf("ListColumns() unexpected error: %v", err)
			}
			if len(cols) != 2 || cols[1].Name != "total" || cols[1].DataType != "decimal" {
				t.Errorf("ListColumns() = %+v", cols)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("Unfulfilled mock expectations: %v", err)
			}
		})
	}
}

func TestSQLServerGetColumnCommentError(t *testing.T) {
	db, mock, handler := newMockSQLServerDB(t, "overwrite")
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(columnCommentQuery)).WillReturnError(errors.New("database connection failed"))
	if _, err := handler.GetColumnComment(context.Background(), db, "orders", "total"); err == nil {
		t.Error("GetColumnComment() expected error, got nil")
	}
}

func TestSQLServerGenerateCommentSQL(t *testing.T) {
	data := &database.CommentData{
		TableName:    "orders",
		ColumnName:   "total",
		Description:  "Order value incl. tax",
		SourceTables: []string{"order_lines"},
	}

	tests := []struct {
		name     string
		mode     string
		existing any
		exists   bool
		want     string
	}{
		{
			name: "Adds property",
			mode: "overwrite",
			want: "EXEC sp_addextendedproperty N'MS_Description', N'<gemini>Order value incl. tax | Derived from: order_lines</gemini>', N'SCHEMA', N'dbo', N'TABLE', [orders], N'COLUMN', [total];",
		},
		{
			name:     "Updates property",
			mode:     "overwrite",
			existing: "Finance's column <gemini>old</gemini>",
			exists:   true,
			want:     "EXEC sp_updateextendedproperty N'MS_Description', N'Finance''s column <gemini>Order value incl. tax | Derived from: order_lines</gemini>', N'SCHEMA', N'dbo', N'TABLE', [orders], N'COLUMN', [total];",
		},
		{
			name:     "Appends to property",
			mode:     "append",
			existing: "<gemini>old</gemini>",
			exists:   true,
			want:     "EXEC sp_updateextendedproperty N'MS_Description', N'<gemini>old | Order value incl. tax | Derived from: order_lines</gemini>', N'SCHEMA', N'dbo', N'TABLE', [orders], N'COLUMN', [total];",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, handler := newMockSQLServerDB(t, tt.mode)
			defer db.Close()
			expectComment(mock, "dbo", "orders", "total", tt.existing, tt.exists)

			got, err := handler.GenerateCommentSQL(context.Background(), db, data)
			if err != nil {
				t.Fatalf("GenerateCommentSQL() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("GenerateCommentSQL()\n got: %s\nwant: %s", got, tt.want)
			}
		})
	}
}

func TestSQLServerGenerateDeleteCommentSQL(t *testing.T) {
	tests := []struct {
		name     string
		existing any
		exists   bool
		want     string
	}{
		{
			name:     "Drops generated only property",
			existing: "<gemini>generated</gemini>",
			exists:   true,
			want:     "EXEC sp_dropextendedproperty N'MS_Description', N'SCHEMA', N'sales', N'TABLE', [orders], N'COLUMN', [total];",
		},
		{
			name:     "Keeps manual text",
			existing: "Manual <gemini>generated</gemini>",
			exists:   true,
			want:     "EXEC sp_updateextendedproperty N'MS_Description', N'Manual', N'SCHEMA', N'sales', N'TABLE', [orders], N'COLUMN', [total];",
		},
		{
			name:     "No generated text",
			existing: "Manual",
			exists:   true,
			want:     "",
		},
		{
			name: "No property",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, handler := newMockSQLServerDB(t, "overwrite")
			defer db.Close()
			expectComment(mock, "sales", "orders", "total", tt.existing, tt.exists)

			got, err := handler.GenerateDeleteCommentSQL(context.Background(), db, "sales.orders", "total")
			if err != nil {
				t.Fatalf("GenerateDeleteCommentSQL() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("GenerateDeleteCommentSQL()\n got: %s\nwant: %s", got, tt.want)
			}
		})
	}
}

func TestSQLServerRegistered(t *testing.T) {
	for _, dialect := range []string{"sqlserver", "cloudsqlsqlserver"} {
		if _, err := database.GetDialectHandler(dialect); err != nil {
			t.Errorf("GetDialectHandler(%q) error: %v", dialect, err)
		}
	}
}
