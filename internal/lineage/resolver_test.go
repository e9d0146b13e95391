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
package lineage

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClauseAnalyzer(t *testing.T) {
	tests := []struct {
		name        string
		statement   string
		wantTargets []string
		wantSources []string
	}{
		{
			name:        "create as select",
			statement:   "CREATE TABLE out AS SELECT a+b AS total FROM src",
			wantTargets: []string{"out"},
			wantSources: []string{"src"},
		},
		{
			name:        "plain create has no sources",
			statement:   "CREATE TABLE t (id INT, amount DECIMAL(10,2))",
			wantTargets: []string{"t"},
			wantSources: []string{},
		},
		{
			name:        "create if not exists",
			statement:   "CREATE TABLE IF NOT EXISTS t (id INT)",
			wantTargets: []string{"t"},
			wantSources: []string{},
		},
		{
			name:        "insert select with join",
			statement:   "INSERT INTO summary (id, total) SELECT o.id, SUM(i.amount) FROM orders o JOIN items i ON o.id = i.order_id GROUP BY o.id",
			wantTargets: []string{"summary"},
			wantSources: []string{"items", "orders"},
		},
		{
			name:        "cte names are not sources",
			statement:   "CREATE TABLE r AS WITH recent AS (SELECT id FROM orders) SELECT id FROM recent",
			wantTargets: []string{"r"},
			wantSources: []string{"orders"},
		},
		{
			name:        "subquery and comma list",
			statement:   "SELECT * FROM (SELECT id FROM a) x, b",
			wantTargets: []string{},
			wantSources: []string{"a", "b"},
		},
		{
			name:        "subquery in where",
			statement:   "SELECT * FROM a WHERE id IN (SELECT id FROM b)",
			wantTargets: []string{},
			wantSources: []string{"a", "b"},
		},
		{
			name:        "from inside function call is ignored",
			statement:   "SELECT EXTRACT(YEAR FROM ts) FROM events",
			wantTargets: []string{},
			wantSources: []string{"events"},
		},
		{
			name:        "table functions are ignored",
			statement:   "SELECT * FROM generate_series(1, 3)",
			wantTargets: []string{},
			wantSources: []string{},
		},
		{
			name:        "update target",
			statement:   "UPDATE accounts SET balance = 0 WHERE id = 1",
			wantTargets: []string{"accounts"},
			wantSources: []string{},
		},
		{
			name:        "sources are de-duplicated and sorted",
			statement:   "SELECT * FROM zeta JOIN alpha ON zeta.id = alpha.id JOIN zeta z2 ON z2.id = alpha.id",
			wantTargets: []string{},
			wantSources: []string{"alpha", "zeta"},
		},
		{
			name:        "comma join after join condition",
			statement:   "CREATE TABLE r AS SELECT s1.id FROM s1 JOIN s2 ON s1.id = s2.id, s3 WHERE s3.id = s1.id",
			wantTargets: []string{"r"},
			wantSources: []string{"s1", "s2", "s3"},
		},
		{
			name:        "join using keeps from list open",
			statement:   "SELECT * FROM a JOIN b USING (id), c",
			wantTargets: []string{},
			wantSources: []string{"a", "b", "c"},
		},
		{
			name:        "upsert assignments are not sources",
			statement:   "INSERT INTO totals SELECT id, amount FROM orders ON DUPLICATE KEY UPDATE amount = 1, id = 2",
			wantTargets: []string{"totals"},
			wantSources: []string{"orders"},
		},
	}

	analyzer := NewClauseAnalyzer("")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := analyzer.Analyze(tt.statement)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTargets, info.Targets)
			assert.Equal(t, tt.wantSources, info.Sources)
		})
	}
}

func TestClauseAnalyzerStripsConfiguredSchema(t *testing.T) {
	analyzer := NewClauseAnalyzer("postgres", "public")

	info, err := analyzer.Analyze(`CREATE TABLE "public"."t" AS SELECT id FROM public.src`)
	require.NoError(t, err)
	assert.Equal(t, []string{"t"}, info.Targets)
	assert.Equal(t, []string{"src"}, info.Sources)
	assert.Equal(t, "t", info.Target())
}

func TestClauseAnalyzerErrors(t *testing.T) {
	analyzer := NewClauseAnalyzer("")
	for _, stmt := range []string{"", "   ", "SELECT (a FROM t", "SELECT a) FROM t"} {
		t.Run(stmt, func(t *testing.T) {
			_, err := analyzer.Analyze(stmt)
			require.Error(t, err)
			var resErr *ResolutionError
			assert.True(t, errors.As(err, &resErr))
		})
	}
}

func TestInfoTarget(t *testing.T) {
	assert.Equal(t, "", Info{}.Target())
	assert.Equal(t, "a", Info{Targets: []string{"a", "b"}}.Target())
}

func TestTokenizeMarksWhitespace(t *testing.T) {
	tokens := tokenize("SELECT  a\n\tFROM t", dialectFor(""))
	var spaces int
	for _, tok := range tokens {
		if tok.class == classSpace {
			spaces++
			assert.Empty(t, strings.TrimSpace(tok.value))
		}
	}
	assert.Equal(t, 3, spaces)

	sig := significant(tokens)
	values := make([]string, 0, len(sig))
	for _, tok := range sig {
		values = append(values, tok.value)
	}
	assert.Equal(t, []string{"SELECT", "a", "FROM", "t"}, values)
	assert.False(t, sig[0].spaceBefore)
	assert.True(t, sig[1].spaceBefore)
}
