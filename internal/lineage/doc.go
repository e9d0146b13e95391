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

// Package lineage extracts per-column provenance from raw SQL scripts.
//
// A script is split into statements, each statement is classified, its
// target and source tables are resolved, and one ColumnRecord is emitted per
// column the statement creates. Records are de-duplicated by (table, column)
// across the whole script, first occurrence wins.
//
// Extraction is best effort: a statement that cannot be resolved is logged
// and skipped, and the remaining statements are still processed.
//
//	extractor := lineage.NewExtractor(lineage.Config{})
//	records, err := extractor.Extract(ctx, script)
//	if err != nil {
//	    return err // only on context cancellation
//	}
//	for _, rec := range records {
//	    fmt.Printf("%s.%s <- %v\n", rec.Table, rec.Column, rec.SourceTables)
//	}
package lineage
