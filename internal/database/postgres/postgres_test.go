package postgres

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

// Helper to create a mock DB and handler for testing
func newMockPostgresDB(t *testing.T, mode string) (*database.DB, sqlmock.Sqlmock, *postgresHandler) {
	t.Helper()
	mockDb, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}

	handler := postgresHandler{}
	db := &database.DB{
		Pool:    mockDb,
		Handler: &handler,
		Config: config.DatabaseConfig{
			Dialect:            "postgres",
			UpdateExistingMode: mode,
		},
	}
	return db, mock, &handler
}

func TestPostgresQuoteIdentifier(t *testing.T) {
	handler := postgresHandler{}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"Simple name", "mytable", `"mytable"`},
		{"Name with spaces", "my table", `"my table"`},
		{"Name with quotes", `my"table`, `"my""table"`},
		{"Empty name", "", `""`},
		{"Keyword", "user", `"user"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := handler.QuoteIdentifier(tt.in); got != tt.want {
				t.Errorf("QuoteIdentifier() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPostgresListTables(t *testing.T) {
	db, mock, handler := newMockPostgresDB(t, "overwrite")
	defer db.Close()
	ctx := context.Background()
	expectedQuery := regexp.QuoteMeta(listTablesQuery)

	t.Run("Success", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"table_name"}).
			AddRow("customer_orders").
			AddRow("daily_revenue")
		mock.ExpectQuery(expectedQuery).WillReturnRows(rows)

		tables, err := handler.ListTables(ctx, db)
		if err != nil {
			t.Fatalf("ListTables() unexpected error: %v", err)
		}
		if len(tables) != 2 || tables[0] != "customer_orders" || tables[1] != "daily_revenue" {
			t.Errorf("ListTables() got %v, want [customer_orders daily_revenue]", tables)
		}
	})

	t.Run("Query Error", func(t *testing.T) {
		dbError := errors.New("connection failed")
		mock.ExpectQuery(expectedQuery).WillReturnError(dbError)

		_, err := handler.ListTables(ctx, db)
		if !errors.Is(err, dbError) {
			t.Errorf("ListTables() got error %v, want error wrapping %v", err, dbError)
		}
	})

	t.Run("Scan Error", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"table_name"}).
			AddRow("customer_orders").
			AddRow(nil)
		mock.ExpectQuery(expectedQuery).WillReturnRows(rows)

		if _, err := handler.ListTables(ctx, db); err == nil {
			t.Fatalf("ListTables() expected scan error, got nil")
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestPostgresListColumns(t *testing.T) {
	db, mock, handler := newMockPostgresDB(t, "overwrite")
	defer db.Close()
	ctx := context.Background()
	expectedQuery := regexp.QuoteMeta(listColumnsQuery)

	t.Run("Unqualified table", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"column_name", "data_type"}).
			AddRow("order_id", "integer").
			AddRow("total", "numeric")
		mock.ExpectQuery(expectedQuery).WithArgs("", "orders").WillReturnRows(rows)

		cols, err := handler.ListColumns(ctx, db, "orders")
		if err != nil {
			t.Fatalf("ListColumns() unexpected error: %v", err)
		}
		expected := []database.ColumnInfo{
			{Name: "order_id", DataType: "integer"},
			{Name: "total", DataType: "numeric"},
		}
		if len(cols) != len(expected) {
			t.Fatalf("ListColumns() got %d columns, want %d", len(cols), len(expected))
		}
		for i := range cols {
			if cols[i] != expected[i] {
				t.Errorf("ListColumns() column %d = %+v, want %+v", i, cols[i], expected[i])
			}
		}
	})

	t.Run("Schema qualified table", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"column_name", "data_type"}).AddRow("day", "date")
		mock.ExpectQuery(expectedQuery).WithArgs("analytics", "daily_revenue").WillReturnRows(rows)

		cols, err := handler.ListColumns(ctx, db, "analytics.daily_revenue")
		if err != nil {
			t.Fatalf("ListColumns() unexpected error: %v", err)
		}
		if len(cols) != 1 || cols[0].Name != "day" {
			t.Errorf("ListColumns() got %v", cols)
		}
	})

	t.Run("Query Error", func(t *testing.T) {
		mock.ExpectQuery(expectedQuery).WithArgs("", "orders").WillReturnError(sql.ErrConnDone)
		if _, err := handler.ListColumns(ctx, db, "orders"); !errors.Is(err, sql.ErrConnDone) {
			t.Errorf("ListColumns() got error %v, want %v", err, sql.ErrConnDone)
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestPostgresGetColumnComment(t *testing.T) {
	db, mock, handler := newMockPostgresDB(t, "overwrite")
	defer db.Close()
	ctx := context.Background()
	expectedQuery := regexp.QuoteMeta(columnCommentQuery)

	tests := []struct {
		name    string
		value   any
		err     error
		want    string
		wantErr bool
	}{
		{name: "Existing comment", value: "Order total", want: "Order total"},
		{name: "Null comment", value: nil, want: ""},
		{name: "No rows", err: sql.ErrNoRows, want: ""},
		{name: "Query error", err: errors.New("boom"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := mock.ExpectQuery(expectedQuery).WithArgs("sales", "orders", "total")
			if tt.err != nil {
				exp.WillReturnError(tt.err)
			} else {
				exp.WillReturnRows(sqlmock.NewRows([]string{"col_description"}).AddRow(tt.value))
			}

			got, err := handler.GetColumnComment(ctx, db, "sales.orders", "total")
			if (err != nil) != tt.wantErr {
				t.Fatalf("GetColumnComment() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("GetColumnComment() = %q, want %q", got, tt.want)
			}
		})
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestPostgresGenerateCommentSQL(t *testing.T) {
	data := &database.CommentData{
		TableName:    "analytics.daily_revenue",
		ColumnName:   "revenue",
		Description:  "Sum of order totals per day",
		SourceTables: []string{"sales.orders"},
	}

	tests := []struct {
		name     string
		mode     string
		existing any
		want     string
	}{
		{
			name:     "No existing comment",
			mode:     "overwrite",
			existing: nil,
			want:     `COMMENT ON COLUMN "analytics"."daily_revenue"."revenue" IS '<gemini>Sum of order totals per day | Derived from: sales.orders</gemini>';`,
		},
		{
			name:     "Keeps manual text",
			mode:     "overwrite",
			existing: "Owned by finance",
			want:     `COMMENT ON COLUMN "analytics"."daily_revenue"."revenue" IS 'Owned by finance <gemini>Sum of order totals per day | Derived from: sales.orders</gemini>';`,
		},
		{
			name:     "Overwrites generated text",
			mode:     "overwrite",
			existing: "Owned by finance <gemini>old</gemini>",
			want:     `COMMENT ON COLUMN "analytics"."daily_revenue"."revenue" IS 'Owned by finance <gemini>Sum of order totals per day | Derived from: sales.orders</gemini>';`,
		},
		{
			name:     "Appends generated text",
			mode:     "append",
			existing: "<gemini>old</gemini>",
			want:     `COMMENT ON COLUMN "analytics"."daily_revenue"."revenue" IS '<gemini>old | Sum of order totals per day | Derived from: sales.orders</gemini>';`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, handler := newMockPostgresDB(t, tt.mode)
			defer db.Close()
			mock.ExpectQuery(regexp.QuoteMeta(columnCommentQuery)).
				WithArgs("analytics", "daily_revenue", "revenue").
				WillReturnRows(sqlmock.NewRows([]string{"col_description"}).AddRow(tt.existing))

			got, err := handler.GenerateCommentSQL(context.Background(), db, data)
			if err != nil {
				t.Fatalf("GenerateCommentSQL() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("GenerateCommentSQL()\n got: %s\nwant: %s", got, tt.want)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("there were unfulfilled expectations: %s", err)
			}
		})
	}
}

func TestPostgresGenerateCommentSQLEscapesQuotes(t *testing.T) {
	db, mock, handler := newMockPostgresDB(t, "overwrite")
	defer db.Close()
	mock.ExpectQuery(regexp.QuoteMeta(columnCommentQuery)).
		WithArgs("", "orders", "status").
		WillReturnRows(sqlmock.NewRows([]string{"col_description"}).AddRow(nil))

	got, err := handler.GenerateCommentSQL(context.Background(), db, &database.CommentData{
		TableName:   "orders",
		ColumnName:  "status",
		Description: "The order's status",
	})
	if err != nil {
		t.Fatalf("GenerateCommentSQL() unexpected error: %v", err)
	}
	want := `COMMENT ON COLUMN "orders"."status" IS '<gemini>The order''s status</gemini>';`
	if got != want {
		t.Errorf("GenerateCommentSQL() = %s, want %s", got, want)
	}
}

func TestPostgresGenerateCommentSQLInvalidInput(t *testing.T) {
	db, _, handler := newMockPostgresDB(t, "overwrite")
	defer db.Close()
	ctx := context.Background()

	if _, err := handler.GenerateCommentSQL(ctx, db, nil); err == nil {
		t.Error("GenerateCommentSQL(nil) expected error")
	}
	if _, err := handler.GenerateCommentSQL(ctx, db, &database.CommentData{ColumnName: "c"}); err == nil {
		t.Error("GenerateCommentSQL() with empty table expected error")
	}
	got, err := handler.GenerateCommentSQL(ctx, db, &database.CommentData{TableName: "t", ColumnName: "c"})
	if err != nil || got != "" {
		t.Errorf("GenerateCommentSQL() with empty metadata = %q, %v; want empty", got, err)
	}
}

func TestPostgresGenerateDeleteCommentSQL(t *testing.T) {
	tests := []struct {
		name     string
		existing any
		want     string
	}{
		{"Only generated text", "<gemini>generated</gemini>", `COMMENT ON COLUMN "orders"."total" IS NULL;`},
		{"Keeps manual text", "Manual note <gemini>generated</gemini>", `COMMENT ON COLUMN "orders"."total" IS 'Manual note';`},
		{"Nothing generated", "Manual note", ""},
		{"No comment", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, handler := newMockPostgresDB(t, "overwrite")
			defer db.Close()
			mock.ExpectQuery(regexp.QuoteMeta(columnCommentQuery)).
				WithArgs("", "orders", "total").
				WillReturnRows(sqlmock.NewRows([]string{"col_description"}).AddRow(tt.existing))

			got, err := handler.GenerateDeleteCommentSQL(context.Background(), db, "orders", "total")
			if err != nil {
				t.Fatalf("GenerateDeleteCommentSQL() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("GenerateDeleteCommentSQL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPostgresRegistered(t *testing.T) {
	for _, dialect := range []string{"postgres", "cloudsqlpostgres"} {
		if _, err := database.GetDialectHandler(dialect); err != nil {
			t.Errorf("GetDialectHandler(%q) error: %v", dialect, err)
		}
	}
}

func TestPostgresCreateCloudSQLPoolMissingParams(t *testing.T) {
	handler := postgresHandler{}
	if _, err := handler.CreateCloudSQLPool(config.DatabaseConfig{User: "u"}); err == nil {
		t.Error("CreateCloudSQLPool() expected error for missing parameters")
	}
}
