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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSegment(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   []string
	}{
		{"empty", "", nil},
		{"whitespace and empty statements", "  ;  ;\n\t; ", nil},
		{"collapses whitespace", "SELECT 1;\n\nSELECT\t  2", []string{"SELECT 1", "SELECT 2"}},
		{"no trailing terminator", "CREATE TABLE t (a INT)", []string{"CREATE TABLE t (a INT)"}},
		{
			"drops comments",
			"-- header\nCREATE TABLE t (a INT); /* note */ SELECT 1",
			[]string{"CREATE TABLE t (a INT)", "SELECT 1"},
		},
		{"comment marker inside literal", "SELECT '--x' FROM t", []string{"SELECT '--x' FROM t"}},
		{
			"semicolon inside literal still splits",
			"SELECT 'a;b' FROM t",
			[]string{"SELECT 'a", "b' FROM t"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Segment(tt.script))
		})
	}
}

func TestJoinFragments(t *testing.T) {
	assert.Equal(t, "", JoinFragments(nil))
	assert.Equal(t, "CREATE TABLE a (x INT);\nSELECT 1;\n", JoinFragments([]string{"CREATE TABLE a (x INT)", "SELECT 1"}))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		text string
		want Kind
	}{
		{"CREATE TABLE out AS SELECT a FROM src", KindCreateAs},
		{"create table out as select a from src", KindCreateAs},
		{"CREATE TABLE t (a INT, b TEXT)", KindCreatePlain},
		{"CREATE TABLE t (a INT) AS SELECT 1", KindCreateAs},
		{"CREATE OR REPLACE TABLE t (a INT)", KindUnrecognized},
		{"CREATE TABLE t", KindUnrecognized},
		{"INSERT INTO t VALUES (1)", KindUnrecognized},
		{"SELECT a AS b FROM t", KindUnrecognized},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.text))
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "CREATE_AS", KindCreateAs.String())
	assert.Equal(t, "CREATE_PLAIN", KindCreatePlain.String())
	assert.Equal(t, "UNRECOGNIZED", KindUnrecognized.String())
}

func TestStripDefaultSchema(t *testing.T) {
	assert.Equal(t, "orders", StripDefaultSchema("<default>.orders"))
	assert.Equal(t, "orders", StripDefaultSchema("<DEFAULT>.orders"))
	assert.Equal(t, "sales.orders", StripDefaultSchema("sales.orders"))
	assert.Equal(t, "orders", StripDefaultSchema("public.orders", "public"))
	assert.Equal(t, "orders", StripDefaultSchema("<default>.public.orders", "public"))
	assert.Equal(t, "orders", StripDefaultSchema("orders", "public"))
}

func TestNormalizeTable(t *testing.T) {
	assert.Equal(t, "t", NormalizeTable(`"public"."t"`, "public"))
	assert.Equal(t, "dbo.t", NormalizeTable("[dbo].[t]"))
	assert.Equal(t, "sales.orders", NormalizeTable("`sales`.`orders`"))
	assert.Equal(t, "", NormalizeTable("  "))
}
