package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/config"
	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/lineage"
	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/store"
)

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestValidateDialect(t *testing.T) {
	for _, d := range supportedDialects {
		assert.NoError(t, validateDialect(d))
	}
	assert.Error(t, validateDialect("oracle"))
	assert.Error(t, validateDialect(""))
}

func TestEnricherConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Generation.BatchSize = 5
	cfg.Generation.MaxAttempts = 4

	got := enricherConfig(cfg)
	assert.Equal(t, 5, got.BatchSize)
	assert.Equal(t, time.Second, got.BatchPause)
	assert.Equal(t, 4, got.Retry.MaxAttempts)
	assert.Equal(t, 2.0, got.Retry.BackoffMultiplier)
}

func TestLatestDescriptions(t *testing.T) {
	stored := []store.Description{
		{Table: "orders", Column: "id", Description: "old"},
		{Table: "orders", Column: "total", Description: "Order value", SourceTables: []string{"lines"}},
		{Table: "orders", Column: "id", Description: "new"},
	}
	got := latestDescriptions(stored)
	require.Len(t, got, 2)
	assert.Equal(t, "new", got[0].Description)
	assert.Equal(t, lineage.ColumnRecord{Table: "orders", Column: "total", SourceTables: []string{"lines"}}, got[1].ColumnRecord)
}

func TestExtractCommand(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "queries.sql")
	require.NoError(t, os.WriteFile(script, []byte(`
CREATE TABLE orders (id INT, total DECIMAL(10,2), PRIMARY KEY(id));
CREATE TABLE summary AS SELECT SUM(total) AS revenue FROM orders;
`), 0o644))

	out, err := runRoot(t, "extract", script, "--format", "json")
	require.NoError(t, err)

	var records []lineage.ColumnRecord
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 3)
	assert.Equal(t, "summary", records[2].Table)
	assert.Equal(t, "revenue", records[2].Column)
	assert.Equal(t, []string{"orders"}, records[2].SourceTables)
}

func TestExtractCommandMissingFile(t *testing.T) {
	_, err := runRoot(t, "extract", filepath.Join(t.TempDir(), "missing.sql"), "--format", "table")
	assert.Error(t, err)
}

func TestDescribeRequiresAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("SQLDESC_GEMINI_API_KEY", "")

	dir := t.TempDir()
	script := filepath.Join(dir, "queries.sql")
	require.NoError(t, os.WriteFile(script, []byte("CREATE TABLE a (x INT);"), 0o644))
	output := filepath.Join(dir, "out.csv")

	_, err := runRoot(t, "describe", script, "--out_file", output)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
	assert.NoFileExists(t, output)
}
