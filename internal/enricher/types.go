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
package enricher

import (
	"context"

	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/lineage"
)

// DescribedColumn is a column record together with its generated description.
type DescribedColumn struct {
	lineage.ColumnRecord
	Description string `json:"description"`
	// Failed is set when Description is a fallback text.
	Failed bool `json:"failed,omitempty"`
}

// BatchFunc receives every finished batch of descriptions.
type BatchFunc func(ctx context.Context, batch []DescribedColumn) error

// DescribeParams controls a DescribeColumns run.
type DescribeParams struct {
	AdditionalContext string
	OnBatch           BatchFunc
}

type GenerateSQLParams struct {
	TableFilters map[string][]string
}

type GenerateDeleteSQLParams struct {
	TableFilters map[string][]string
}

type GetCommentsParams struct {
	TableFilters map[string][]string
}

type OrderedSQL struct {
	SQL    string
	Table  string
	Column string
}

type ColumnComment struct {
	Table   string `json:"table"`
	Column  string `json:"column"`
	Comment string `json:"comment"`
}
