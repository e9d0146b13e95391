package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadScriptFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.sql", "CREATE TABLE a (x INT);\n")
	b := writeFile(t, dir, "b.sql", "CREATE TABLE b AS SELECT x FROM a")
	empty := writeFile(t, dir, "empty.sql", "  \n")

	script, err := ReadScriptFiles([]string{a})
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE a (x INT);\n", script)

	script, err = ReadScriptFiles([]string{a, b})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(script, "CREATE TABLE b AS SELECT x FROM a;\n"))

	_, err = ReadScriptFiles([]string{empty})
	assert.ErrorContains(t, err, "is empty")

	_, err = ReadScriptFiles([]string{filepath.Join(dir, "missing.sql")})
	assert.Error(t, err)

	_, err = ReadScriptFiles(nil)
	assert.Error(t, err)
}

func TestReadContextFiles(t *testing.T) {
	dir := t.TempDir()
	glossary := writeFile(t, dir, "glossary.txt", "GMV means gross merchandise value")
	notes := writeFile(t, dir, "notes.md", "Amounts are in EUR")

	got, err := ReadContextFiles(glossary + ", " + notes)
	require.NoError(t, err)
	assert.Contains(t, got, "-- Context from file: "+glossary+" --\nGMV means gross merchandise value")
	assert.Contains(t, got, "Amounts are in EUR")

	got, err = ReadContextFiles("")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = ReadContextFiles(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}

func TestGetDefaultOutputFilePath(t *testing.T) {
	assert.Equal(t, "column_descriptions.csv", GetDefaultOutputFilePath("", "describe"))
	assert.Equal(t, "shop_comments.txt", GetDefaultOutputFilePath("shop", "get-comments"))
	assert.Equal(t, "shop_comments.sql", GetDefaultOutputFilePath("shop", "add-comments"))
	assert.Equal(t, "shop_comments.sql", GetDefaultOutputFilePath("shop", "delete-comments"))
}

func TestReportPathFor(t *testing.T) {
	assert.Equal(t, "generation_report.txt", ReportPathFor("column_descriptions.csv"))
	assert.Equal(t, filepath.Join("out", "generation_report.txt"), ReportPathFor(filepath.Join("out", "cols.md")))
}

func TestConfirmAction(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"yes\n", true},
		{"Y\n", true},
		{"no\n", false},
		{"", false},
		{"maybe\n", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		got := ConfirmAction(strings.NewReader(tt.input), &out, "SQL statements")
		assert.Equal(t, tt.want, got, "input %q", tt.input)
		assert.Contains(t, out.String(), "Generated SQL statements:")
	}
}

func TestParseTablesFlag(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    map[string][]string
		wantErr bool
	}{
		{name: "Empty", input: "", want: map[string][]string{}},
		{name: "Tables only", input: "orders, customers", want: map[string][]string{"orders": nil, "customers": nil}},
		{
			name:  "Tables with columns",
			input: "orders[id, total],customers",
			want:  map[string][]string{"orders": {"id", "total"}, "customers": nil},
		},
		{name: "Qualified table", input: "sales.orders[id]", want: map[string][]string{"sales.orders": {"id"}}},
		{name: "Missing closing bracket", input: "orders[id", wantErr: true},
		{name: "Missing table name", input: "[id]", wantErr: true},
		{name: "Stray closing bracket", input: "orders]", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTablesFlag(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitOutsideBrackets(t *testing.T) {
	assert.Equal(t, []string{"a[x,y]", "b"}, SplitOutsideBrackets("a[x,y],b"))
	assert.Equal(t, []string{"a"}, SplitOutsideBrackets("a"))
	assert.Nil(t, SplitOutsideBrackets(""))
}
