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
	"strings"

	"github.com/DataDog/go-sqllexer"
)

// selectTerminators end the projection list of a SELECT at depth zero.
var selectTerminators = map[string]bool{
	"FROM": true, "INTO": true, "WHERE": true, "GROUP": true, "HAVING": true,
	"ORDER": true, "LIMIT": true, "UNION": true, "INTERSECT": true,
	"EXCEPT": true, "WINDOW": true, "QUALIFY": true, "OFFSET": true, "FETCH": true,
}

// skippedItems are projection items that are really clause keywords.
var skippedItems = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "GROUP": true, "BY": true, "ORDER": true,
}

// extractCreateAs emits one record per projection item of the SELECT body
// of a CREATE TABLE ... AS statement.
func extractCreateAs(text string, info Info, dbms sqllexer.DBMSType, markers []string) ([]ColumnRecord, error) {
	asIdx := indexFold(text, " AS ")
	if asIdx < 0 {
		return nil, newResolutionError(text, "no AS keyword in CREATE TABLE ... AS statement")
	}
	target := createAsTarget(text[:asIdx], markers)
	if target == "" {
		return nil, newResolutionError(text, "no target table after TABLE keyword")
	}

	var records []ColumnRecord
	for _, item := range projectionItems(text[asIdx+len(" AS "):], dbms) {
		definition := strings.TrimSpace(item.text())
		if definition == "" || skippedItems[strings.ToUpper(definition)] {
			continue
		}
		name := definition
		if alias := item.alias(); alias != "" {
			name = alias
		}
		name = StripQuotes(name)
		if name == "" || isDigits(name) {
			continue
		}
		records = append(records, ColumnRecord{
			Table:        target,
			Column:       name,
			FullQuery:    text,
			Definition:   definition,
			SourceTables: cloneSources(info.Sources),
		})
	}
	return records, nil
}

// createAsTarget returns the table named after the TABLE keyword in the
// part of the statement before AS.
func createAsTarget(prefix string, markers []string) string {
	words := strings.Fields(prefix)
	for i, w := range words {
		if !strings.EqualFold(w, "TABLE") {
			continue
		}
		rest := words[i+1:]
		if len(rest) >= 3 && strings.EqualFold(rest[0], "IF") &&
			strings.EqualFold(rest[1], "NOT") && strings.EqualFold(rest[2], "EXISTS") {
			rest = rest[3:]
		}
		if len(rest) == 0 {
			return ""
		}
		name := rest[0]
		if idx := strings.IndexByte(name, '('); idx >= 0 {
			name = name[:idx]
		}
		return NormalizeTable(name, markers...)
	}
	return ""
}

type depthToken struct {
	token
	depth int
}

type projectionItem []depthToken

func (p projectionItem) text() string {
	var b strings.Builder
	for _, t := range p {
		b.WriteString(t.value)
	}
	return b.String()
}

// alias returns the text following the last top-level AS keyword.
func (p projectionItem) alias() string {
	last := -1
	for i, t := range p {
		if t.depth == 0 && t.class == classWord && t.upper == "AS" {
			last = i
		}
	}
	if last < 0 {
		return ""
	}
	return strings.TrimSpace(p[last+1:].text())
}

// projectionItems returns the comma-separated items of the first top-level
// SELECT in body. Whitespace tokens are kept so item text reads as written.
func projectionItems(body string, dbms sqllexer.DBMSType) []projectionItem {
	tokens := unwrapParens(tokenize(body, dbms))

	depth := 0
	start := -1
	for i, t := range tokens {
		switch t.value {
		case "(":
			depth++
		case ")":
			depth--
		}
		if depth == 0 && t.class == classWord && t.upper == "SELECT" {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return nil
	}
	start = skipSelectModifiers(tokens, start)

	var (
		items   []projectionItem
		current projectionItem
	)
	depth = 0
	for _, t := range tokens[start:] {
		if depth == 0 {
			if t.value == ";" || (t.class == classWord && selectTerminators[t.upper]) {
				break
			}
			if t.value == "," {
				items = append(items, current)
				current = nil
				continue
			}
		}
		if t.class == classComment {
			continue
		}
		if t.value == ")" {
			depth--
		}
		current = append(current, depthToken{token: t, depth: depth})
		if t.value == "(" {
			depth++
		}
	}
	if len(current) > 0 {
		items = append(items, current)
	}
	return items
}

// unwrapParens removes parentheses enclosing the whole token stream.
func unwrapParens(tokens []token) []token {
	for {
		first, last := -1, -1
		for i, t := range tokens {
			if t.class == classSpace || t.class == classComment {
				continue
			}
			if first < 0 {
				first = i
			}
			last = i
		}
		if first < 0 || tokens[first].value != "(" || tokens[last].value != ")" {
			return tokens
		}
		depth := 0
		for i := first; i <= last; i++ {
			switch tokens[i].value {
			case "(":
				depth++
			case ")":
				depth--
			}
			if depth == 0 && i < last {
				return tokens
			}
		}
		tokens = tokens[first+1 : last]
	}
}

// skipSelectModifiers steps over DISTINCT [ON (...)], ALL and TOP n.
func skipSelectModifiers(tokens []token, i int) int {
	next := func(j int) int {
		for j < len(tokens) && (tokens[j].class == classSpace || tokens[j].class == classComment) {
			j++
		}
		return j
	}
	skipGroup := func(j int) int {
		depth := 0
		for ; j < len(tokens); j++ {
			switch tokens[j].value {
			case "(":
				depth++
			case ")":
				depth--
				if depth == 0 {
					return j + 1
				}
			}
		}
		return j
	}

	for {
		j := next(i)
		if j >= len(tokens) {
			return i
		}
		switch tokens[j].upper {
		case "DISTINCT":
			i = j + 1
			if k := next(i); k < len(tokens) && tokens[k].upper == "ON" {
				if g := next(k + 1); g < len(tokens) && tokens[g].value == "(" {
					i = skipGroup(g)
				}
			}
		case "ALL":
			i = j + 1
		case "TOP":
			k := next(j + 1)
			switch {
			case k >= len(tokens):
				return len(tokens)
			case tokens[k].value == "(":
				i = skipGroup(k)
			default:
				i = k + 1
			}
			if p := next(i); p < len(tokens) && tokens[p].upper == "PERCENT" {
				i = p + 1
			}
		default:
			return i
		}
	}
}

// extractCreatePlain emits one record per column definition of a
// CREATE TABLE statement with an explicit column list.
func extractCreatePlain(text string, info Info) []ColumnRecord {
	table := info.Target()
	if table == "" {
		return nil
	}
	start := strings.IndexByte(text, '(')
	end := strings.LastIndexByte(text, ')')
	if start < 0 || end <= start {
		return nil
	}

	var records []ColumnRecord
	for _, def := range splitTopLevel(text[start+1 : end]) {
		def = strings.TrimSpace(def)
		if def == "" {
			continue
		}
		name, ok := columnName(def)
		if !ok {
			continue
		}
		records = append(records, ColumnRecord{
			Table:        table,
			Column:       name,
			FullQuery:    text,
			Definition:   def,
			SourceTables: cloneSources(info.Sources),
		})
	}
	return records
}

// splitTopLevel splits s on commas that are not nested in parentheses.
func splitTopLevel(s string) []string {
	var (
		parts []string
		depth int
		last  int
	)
	for i, ch := range s {
		switch ch {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	return append(parts, s[last:])
}

// columnName returns the column declared by def, or false when def is a
// table-level constraint or has no usable name.
func columnName(def string) (string, bool) {
	var head, rest string
	switch def[0] {
	case '"', '`', '[':
		closing := def[0]
		if closing == '[' {
			closing = ']'
		}
		end := strings.IndexByte(def[1:], closing)
		if end < 0 {
			head, rest = def, ""
		} else {
			head, rest = def[:end+2], def[end+2:]
		}
		head = strings.Trim(head, "[]")
	default:
		fields := strings.Fields(def)
		head = fields[0]
		rest = strings.TrimPrefix(def, head)
		if idx := strings.IndexByte(head, '('); idx >= 0 {
			rest = head[idx:] + rest
			head = head[:idx]
		}
		switch strings.ToUpper(head) {
		case "PRIMARY", "FOREIGN", "CONSTRAINT":
			return "", false
		case "UNIQUE", "CHECK":
			if strings.HasPrefix(strings.TrimSpace(rest), "(") {
				return "", false
			}
		}
	}

	name := StripQuotes(head)
	if name == "" || isDigits(name) {
		return "", false
	}
	return name, true
}

func cloneSources(sources []string) []string {
	out := make([]string, len(sources))
	copy(out, sources)
	return out
}
