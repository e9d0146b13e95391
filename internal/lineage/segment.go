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

import "strings"

type segmentState int

const (
	stateCode segmentState = iota
	stateLiteral
	stateLineComment
	stateBlockComment
)

// Segment splits a script into statements on every ';'.
//
// Line (--) and block (/* */) comments outside single-quoted literals are
// dropped, whitespace runs are collapsed to one space, and empty statements
// are discarded. A ';' inside a string literal still ends the statement.
func Segment(script string) []string {
	var (
		statements []string
		current    strings.Builder
		state      = stateCode
	)

	flush := func() {
		if stmt := collapseWhitespace(current.String()); stmt != "" {
			statements = append(statements, stmt)
		}
		current.Reset()
	}

	runes := []rune(script)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		var next rune
		if i+1 < len(runes) {
			next = runes[i+1]
		}

		switch state {
		case stateLineComment:
			if ch == '\n' {
				current.WriteRune(' ')
				state = stateCode
			}
			continue
		case stateBlockComment:
			if ch == '*' && next == '/' {
				current.WriteRune(' ')
				state = stateCode
				i++
			}
			continue
		case stateLiteral:
			switch ch {
			case ';':
				flush()
				state = stateCode
			case '\'':
				current.WriteRune(ch)
				state = stateCode
			default:
				current.WriteRune(ch)
			}
			continue
		}

		switch {
		case ch == ';':
			flush()
		case ch == '-' && next == '-':
			state = stateLineComment
			i++
		case ch == '/' && next == '*':
			state = stateBlockComment
			i++
		case ch == '\'':
			current.WriteRune(ch)
			state = stateLiteral
		default:
			current.WriteRune(ch)
		}
	}
	flush()

	return statements
}

// JoinFragments concatenates fragments, terminating each with ";\n".
func JoinFragments(fragments []string) string {
	var b strings.Builder
	for _, f := range fragments {
		b.WriteString(f)
		b.WriteString(";\n")
	}
	return b.String()
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
