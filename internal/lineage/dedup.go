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

// Deduplicate keeps the first record for every (table, column) pair, in
// input order. Table names are stripped of default-schema prefixes before
// comparison and the stripped name is stored on the kept record.
func Deduplicate(records []ColumnRecord, markers ...string) []ColumnRecord {
	seen := make(map[Key]struct{}, len(records))
	unique := make([]ColumnRecord, 0, len(records))
	for _, rec := range records {
		rec.Table = StripDefaultSchema(rec.Table, markers...)
		key := Key{Table: rec.Table, Column: rec.Column}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, rec)
	}
	return unique
}
