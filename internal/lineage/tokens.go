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
	"unicode"

	"github.com/DataDog/go-sqllexer"
)

type tokenClass int

const (
	classSpace tokenClass = iota
	classComment
	classString
	classWord
	classPunct
	classOther
)

// token is a lexer token copied out of the scanner.
type token struct {
	class       tokenClass
	value       string
	upper       string
	spaceBefore bool
}

func (t token) is(values ...string) bool {
	for _, v := range values {
		if t.upper == v {
			return true
		}
	}
	return false
}

// startsName reports whether the token can begin a table or column identifier.
func (t token) startsName() bool {
	if t.class != classWord {
		return false
	}
	r := []rune(t.value)[0]
	return unicode.IsLetter(r) || strings.ContainsRune("_\"`[#", r)
}

// continuesName reports whether the token can be glued onto a preceding
// identifier part when no whitespace separates them (schema.table, [a].[b]).
func (t token) continuesName() bool {
	if t.spaceBefore {
		return false
	}
	switch t.value {
	case ".", "[", "]":
		return true
	}
	return t.startsName() || strings.HasPrefix(t.value, ".")
}

// dialectFor maps a configured SQL dialect onto the lexer DBMS.
func dialectFor(dialect string) sqllexer.DBMSType {
	switch strings.ToLower(dialect) {
	case "postgres", "postgresql", "cloudsqlpostgres":
		return sqllexer.DBMSPostgres
	case "mysql", "cloudsqlmysql":
		return sqllexer.DBMSMySQL
	case "sqlserver", "mssql", "cloudsqlsqlserver":
		return sqllexer.DBMSSQLServer
	default:
		return ""
	}
}

// tokenize scans sql and returns every token, whitespace included.
func tokenize(sql string, dbms sqllexer.DBMSType) []token {
	var lexer *sqllexer.Lexer
	if dbms != "" {
		lexer = sqllexer.New(sql, sqllexer.WithDBMS(dbms))
	} else {
		lexer = sqllexer.New(sql)
	}

	var tokens []token
	for {
		tok := lexer.Scan()
		if tok.Type == sqllexer.EOF || tok.Value == "" {
			break
		}
		value := strings.Clone(tok.Value)
		tokens = append(tokens, token{
			class: classify(tok.Type, value),
			value: value,
			upper: strings.ToUpper(value),
		})
	}
	return tokens
}

// significant drops whitespace and comments, recording on each remaining
// token whether anything was skipped before it.
func significant(tokens []token) []token {
	out := make([]token, 0, len(tokens))
	gap := false
	for _, t := range tokens {
		if t.class == classSpace || t.class == classComment {
			gap = true
			continue
		}
		t.spaceBefore = gap
		gap = false
		out = append(out, t)
	}
	return out
}

func classify(typ sqllexer.TokenType, value string) tokenClass {
	switch typ {
	case sqllexer.WS:
		return classSpace
	case sqllexer.COMMENT, sqllexer.MULTILINE_COMMENT:
		return classComment
	case sqllexer.STRING, sqllexer.INCOMPLETE_STRING:
		return classString
	}
	switch value {
	case "(", ")", ",", ";", ".":
		return classPunct
	}
	if strings.TrimSpace(value) == "" {
		return classSpace
	}
	r := []rune(value)[0]
	if r == '\'' {
		return classString
	}
	if unicode.IsLetter(r) || strings.ContainsRune("_\"`[]#", r) {
		return classWord
	}
	return classOther
}
