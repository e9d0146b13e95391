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

// Kind is the extraction strategy chosen for a statement.
type Kind int

const (
	KindUnrecognized Kind = iota // contributes no records
	KindCreateAs                 // CREATE TABLE ... AS SELECT ...
	KindCreatePlain              // CREATE TABLE ... (column definitions)
)

func (k Kind) String() string {
	switch k {
	case KindCreateAs:
		return "CREATE_AS"
	case KindCreatePlain:
		return "CREATE_PLAIN"
	default:
		return "UNRECOGNIZED"
	}
}

// Statement is one segmented, whitespace-collapsed SQL statement.
type Statement struct {
	Text string
	Kind Kind
}

// Info holds the tables a statement writes to and reads from.
// Names are normalized: quotes and default-schema prefixes removed.
type Info struct {
	Targets []string
	Sources []string
}

// Target returns the first target table, or "" when the statement has none.
func (i Info) Target() string {
	if len(i.Targets) == 0 {
		return ""
	}
	return i.Targets[0]
}

// ColumnRecord describes where one output column of a statement comes from.
type ColumnRecord struct {
	Table        string   `json:"table"`
	Column       string   `json:"column"`
	FullQuery    string   `json:"full_query"`
	Definition   string   `json:"definition"`
	SourceTables []string `json:"source_tables"`
}

// Key identifies a record for de-duplication.
type Key struct {
	Table  string
	Column string
}
