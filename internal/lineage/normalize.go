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
)

// DefaultSchemaMarker is the placeholder schema lineage tools report for
// unqualified table names. It is always stripped.
const DefaultSchemaMarker = "<default>"

const quoteChars = "\"'`"

// StripQuotes removes surrounding quote characters (", ' and `).
func StripQuotes(s string) string {
	return strings.Trim(s, quoteChars)
}

// StripDefaultSchema removes a leading "<marker>." prefix from name for the
// default marker and every extra marker given. Markers match case-insensitively.
func StripDefaultSchema(name string, markers ...string) string {
	name = strings.TrimSpace(name)
	for {
		stripped := false
		for _, marker := range append([]string{DefaultSchemaMarker}, markers...) {
			if marker == "" {
				continue
			}
			prefix := marker + "."
			if len(name) > len(prefix) && strings.EqualFold(name[:len(prefix)], prefix) {
				name = name[len(prefix):]
				stripped = true
			}
		}
		if !stripped {
			return name
		}
	}
}

// NormalizeTable strips quoting from every dotted part of a table reference
// and removes default-schema prefixes.
func NormalizeTable(name string, markers ...string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	parts := strings.Split(name, ".")
	for i, part := range parts {
		part = strings.TrimSpace(part)
		part = strings.TrimPrefix(part, "[")
		part = strings.TrimSuffix(part, "]")
		parts[i] = StripQuotes(part)
	}
	return StripDefaultSchema(strings.Join(parts, "."), markers...)
}

// isDigits reports whether s is non-empty and made only of digits.
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// indexFold returns the byte index of the first ASCII case-insensitive match
// of sub in s, or -1.
func indexFold(s, sub string) int {
	n := len(sub)
	for i := 0; i+n <= len(s); i++ {
		if strings.EqualFold(s[i:i+n], sub) {
			return i
		}
	}
	return -1
}
