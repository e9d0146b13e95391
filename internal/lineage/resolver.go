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
	"sort"
	"strings"

	"github.com/DataDog/go-sqllexer"
)

// Analyzer resolves the target and source tables of a single statement.
type Analyzer interface {
	Analyze(statement string) (Info, error)
}

// ClauseAnalyzer is an Analyzer that walks lexer tokens and reads table
// names out of the clauses that introduce them.
type ClauseAnalyzer struct {
	dbms    sqllexer.DBMSType
	markers []string
}

// NewClauseAnalyzer creates a ClauseAnalyzer for the given SQL dialect.
// Extra schemas are stripped from resolved names in addition to "<default>".
func NewClauseAnalyzer(dialect string, defaultSchemas ...string) *ClauseAnalyzer {
	return &ClauseAnalyzer{dbms: dialectFor(dialect), markers: defaultSchemas}
}

// keywords that may precede the real table keyword in a CREATE statement.
var createModifiers = map[string]bool{
	"OR": true, "REPLACE": true, "TEMP": true, "TEMPORARY": true, "GLOBAL": true,
	"LOCAL": true, "UNLOGGED": true, "EXTERNAL": true, "TRANSIENT": true,
	"VOLATILE": true, "MATERIALIZED": true, "SECURE": true, "RECURSIVE": true,
}

// keywords that close a FROM clause at the current nesting level. A join
// condition (ON) does not: a comma after it still lists another table.
var fromTerminators = map[string]bool{
	"WHERE": true, "GROUP": true, "ORDER": true, "HAVING": true, "LIMIT": true,
	"UNION": true, "INTERSECT": true, "EXCEPT": true, "SET": true,
	"WINDOW": true, "QUALIFY": true, "RETURNING": true, "SELECT": true,
	"VALUES": true, "OFFSET": true, "FETCH": true, "WHEN": true,
	"CONFLICT": true, "DUPLICATE": true,
}

type walker struct {
	sig     []token
	markers []string

	verb    string
	targets []string
	sources []string
	ctes    map[string]bool

	// parens holds one entry per open parenthesis: true when it opens a
	// subquery, false for expression lists and column definitions.
	parens   []bool
	pending  int
	exprOpen int

	fromAt    map[int]bool
	withLevel int
	expectCTE bool
}

// Analyze implements Analyzer.
func (a *ClauseAnalyzer) Analyze(statement string) (Info, error) {
	if strings.TrimSpace(statement) == "" {
		return Info{}, newResolutionError(statement, "empty statement")
	}
	w := &walker{
		sig:       significant(tokenize(statement, a.dbms)),
		markers:   a.markers,
		ctes:      map[string]bool{},
		pending:   -1,
		fromAt:    map[int]bool{},
		withLevel: -1,
	}
	if len(w.sig) == 0 {
		return Info{}, newResolutionError(statement, "statement has no tokens")
	}
	w.verb = w.sig[0].upper
	if err := w.walk(statement); err != nil {
		return Info{}, err
	}
	return w.info(), nil
}

func (w *walker) walk(statement string) error {
	for i := 0; i < len(w.sig); i++ {
		t := w.sig[i]

		if w.pending >= 0 {
			query := t.is("SELECT", "WITH", "(")
			w.parens[w.pending] = query
			if !query {
				w.exprOpen++
			}
			w.pending = -1
		}

		switch t.value {
		case "(":
			w.parens = append(w.parens, false)
			w.pending = len(w.parens) - 1
			continue
		case ")":
			if len(w.parens) == 0 {
				return newResolutionError(statement, "unbalanced parentheses: unexpected ')'")
			}
			top := len(w.parens) - 1
			if w.pending == top {
				w.pending = -1
			} else if !w.parens[top] {
				w.exprOpen--
			}
			delete(w.fromAt, len(w.parens))
			w.parens = w.parens[:top]
			if w.withLevel > len(w.parens) {
				w.withLevel = -1
			}
			continue
		}

		if w.exprOpen > 0 {
			continue
		}
		level := len(w.parens)

		if w.expectCTE && level == w.withLevel && t.startsName() && !t.is("RECURSIVE") {
			name, last := w.readName(i)
			w.ctes[strings.ToLower(NormalizeTable(name))] = true
			w.expectCTE = false
			i = last
			continue
		}

		switch {
		case t.value == ",":
			if w.fromAt[level] {
				i = w.readSource(i + 1)
			} else if w.withLevel == level {
				w.expectCTE = true
			}
		case t.is("WITH"):
			w.withLevel = level
			w.expectCTE = true
		case t.is("RECURSIVE") && w.expectCTE:
		case t.is("CREATE"):
			i = w.readCreateTarget(i + 1)
		case t.is("INSERT"):
			j := w.skip(i+1, "INTO", "OVERWRITE", "IGNORE", "TABLE")
			i = w.readTarget(j)
		case t.is("UPDATE"):
			if prev := w.prev(i); prev == "" || prev == "(" || prev == ")" {
				i = w.readTarget(i + 1)
			}
		case t.is("MERGE"):
			i = w.readTarget(w.skip(i+1, "INTO"))
		case t.is("INTO"):
			// SELECT ... INTO new_table
			if w.verb == "SELECT" || w.verb == "WITH" {
				i = w.readTarget(i + 1)
			}
		case t.is("USING"):
			if w.verb == "MERGE" || w.verb == "DELETE" {
				i = w.readSource(i + 1)
			}
		case t.is("FROM"):
			if prev := w.prev(i); prev == "DISTINCT" {
				continue
			} else if prev == "DELETE" {
				_, last := w.readName(i + 1)
				i = max(i, last)
				continue
			}
			w.fromAt[level] = true
			if w.withLevel == level {
				w.withLevel = -1
			}
			i = w.readSource(i + 1)
		case t.is("JOIN"):
			w.fromAt[level] = true
			i = w.readSource(i + 1)
		case fromTerminators[t.upper]:
			delete(w.fromAt, level)
			if t.is("SELECT") && w.withLevel == level {
				w.withLevel = -1
				w.expectCTE = false
			}
		}
	}

	if len(w.parens) != 0 {
		return newResolutionError(statement, "unbalanced parentheses: missing ')'")
	}
	return nil
}

// prev returns the upper-cased significant token before i.
func (w *walker) prev(i int) string {
	if i == 0 {
		return ""
	}
	return w.sig[i-1].upper
}

// skip advances past any run of the given keywords starting at i.
func (w *walker) skip(i int, keywords ...string) int {
	for i < len(w.sig) && w.sig[i].is(keywords...) {
		i++
	}
	return i
}

// readName reads a possibly qualified identifier starting at i. It returns
// the raw name and the index of the last token consumed, or ("", i-1) when
// no identifier starts at i.
func (w *walker) readName(i int) (string, int) {
	if i >= len(w.sig) || !w.sig[i].startsName() {
		return "", i - 1
	}
	var b strings.Builder
	b.WriteString(w.sig[i].value)
	j := i + 1
	for j < len(w.sig) && w.sig[j].continuesName() {
		b.WriteString(w.sig[j].value)
		j++
	}
	return b.String(), j - 1
}

func (w *walker) readCreateTarget(i int) int {
	j := w.skip(i, keys(createModifiers)...)
	if j >= len(w.sig) || !w.sig[j].is("TABLE", "VIEW") {
		return i - 1
	}
	j++
	if j+2 < len(w.sig) && w.sig[j].is("IF") && w.sig[j+1].is("NOT") && w.sig[j+2].is("EXISTS") {
		j += 3
	}
	return w.readTarget(j)
}

func (w *walker) readTarget(i int) int {
	name, last := w.readName(i)
	if name != "" {
		w.targets = append(w.targets, name)
	}
	return last
}

// readSource reads one table reference in a FROM, JOIN or USING position.
// Subqueries and table functions are left for the main loop.
func (w *walker) readSource(i int) int {
	i = w.skip(i, "ONLY", "LATERAL")
	name, last := w.readName(i)
	if name == "" {
		return i - 1
	}
	if last+1 < len(w.sig) && w.sig[last+1].value == "(" {
		return last
	}
	w.sources = append(w.sources, name)
	return last
}

func (w *walker) info() Info {
	targets := make([]string, 0, len(w.targets))
	for _, t := range w.targets {
		targets = append(targets, NormalizeTable(t, w.markers...))
	}
	sources := make([]string, 0, len(w.sources))
	for _, s := range w.sources {
		name := NormalizeTable(s, w.markers...)
		if w.ctes[strings.ToLower(name)] {
			continue
		}
		sources = append(sources, name)
	}
	return Info{Targets: sortedUnique(targets), Sources: sortedUnique(sources)}
}

func sortedUnique(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
