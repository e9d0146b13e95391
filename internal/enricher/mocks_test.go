package enricher

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/config"
	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/database"
)

// MockLLMClient is a testify mock of genai.LLMClient.
type MockLLMClient struct {
	mock.Mock
}

func (m *MockLLMClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func (m *MockLLMClient) IsAPIKeyValid(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockLLMClient) Close() error {
	return nil
}

// MockDBAdapter is a testify mock of database.DBAdapter.
type MockDBAdapter struct {
	mock.Mock
}

func (m *MockDBAdapter) ListTables(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockDBAdapter) ListColumns(ctx context.Context, tableName string) ([]database.ColumnInfo, error) {
	args := m.Called(ctx, tableName)
	return args.Get(0).([]database.ColumnInfo), args.Error(1)
}

func (m *MockDBAdapter) GetColumnComment(ctx context.Context, tableName string, columnName string) (string, error) {
	args := m.Called(ctx, tableName, columnName)
	return args.String(0), args.Error(1)
}

func (m *MockDBAdapter) GenerateCommentSQL(ctx context.Context, data *database.CommentData) (string, error) {
	args := m.Called(ctx, data)
	return args.String(0), args.Error(1)
}

func (m *MockDBAdapter) GenerateDeleteCommentSQL(ctx context.Context, tableName string, columnName string) (string, error) {
	args := m.Called(ctx, tableName, columnName)
	return args.String(0), args.Error(1)
}

func (m *MockDBAdapter) ExecuteSQLStatements(ctx context.Context, sqlStatements []string) error {
	return m.Called(ctx, sqlStatements).Error(0)
}

func (m *MockDBAdapter) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDBAdapter) Close() error {
	return nil
}

func (m *MockDBAdapter) GetConfig() config.DatabaseConfig {
	return config.DatabaseConfig{Dialect: "mock", UpdateExistingMode: "overwrite"}
}
