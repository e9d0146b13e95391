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
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/database"
	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/genai"
	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/lineage"
)

// DefaultBatchSize is the number of columns described between pauses.
const DefaultBatchSize = 20

type Service struct {
	dbAdapter database.DBAdapter
	llmClient genai.LLMClient
	cfg       Config
	sleep     sleepFunc
}

// Config controls pacing and retries of description generation.
type Config struct {
	BatchSize  int
	BatchPause time.Duration
	Retry      RetryOptions
}

// DefaultConfig returns batches of 20 with a one second pause.
func DefaultConfig() Config {
	return Config{
		BatchSize:  DefaultBatchSize,
		BatchPause: time.Second,
		Retry:      DefaultRetryOptions,
	}
}

// NewService creates a Service. db may be nil when only descriptions are
// generated, and llm may be nil when only comments are read or removed.
func NewService(db database.DBAdapter, llm genai.LLMClient, cfg Config) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryOptions
	}
	return &Service{
		dbAdapter: db,
		llmClient: llm,
		cfg:       cfg,
		sleep:     sleepContext,
	}
}

// DescriptionLabel is the prefix every description starts with.
func DescriptionLabel(table, column string) string {
	return fmt.Sprintf("**`%s.%s:`**", table, column)
}

// StripDescriptionLabel removes a leading "**`table.column:`**" label.
func StripDescriptionLabel(description string) string {
	trimmed := strings.TrimSpace(description)
	if !strings.HasPrefix(trimmed, "**`") {
		return trimmed
	}
	end := strings.Index(trimmed[3:], "`**")
	if end == -1 {
		return trimmed
	}
	return strings.TrimSpace(trimmed[3+end+3:])
}

func rateLimitFallback(rec lineage.ColumnRecord) string {
	return DescriptionLabel(rec.Table, rec.Column) + " Description generation failed due to API rate limits"
}

func errorFallback(rec lineage.ColumnRecord, err error) string {
	return fmt.Sprintf("%s Description generation failed: %v", DescriptionLabel(rec.Table, rec.Column), err)
}

// BuildColumnPrompt builds the generation prompt for one column.
func BuildColumnPrompt(rec lineage.ColumnRecord, additionalContext string) string {
	var b strings.Builder
	b.WriteString("Generate a precise and detailed description for the following SQL column:\n\n")
	fmt.Fprintf(&b, "Table: %s\n", rec.Table)
	fmt.Fprintf(&b, "Column: %s\n", rec.Column)
	if rec.Definition != "" {
		fmt.Fprintf(&b, "Definition: %s\n", rec.Definition)
	}
	fmt.Fprintf(&b, "Source Tables: %s\n\n", strings.Join(rec.SourceTables, ", "))
	fmt.Fprintf(&b, "Query Context:\n%s\n\n", rec.FullQuery)
	if ctx := strings.TrimSpace(additionalContext); ctx != "" {
		fmt.Fprintf(&b, "Additional Context:\n%s\n\n", ctx)
	}
	b.WriteString("Format the description as follows:\n")
	fmt.Fprintf(&b, "%s <description>\n\n", DescriptionLabel(rec.Table, rec.Column))
	b.WriteString("The description should include:\n")
	b.WriteString("1. The purpose and meaning of this column\n")
	b.WriteString("2. How it's calculated (if derived)\n")
	b.WriteString("3. Any business logic or conditions applied\n")
	b.WriteString("4. Data relationships with source tables\n")
	b.WriteString("5. Data type constraints and validations (if any)\n\n")
	b.WriteString("Keep the description technical but understandable.\n")
	return b.String()
}

// GenerateColumnDescription describes one column. It never fails: capacity
// errors are retried and every other error degrades to a fallback text.
func (s *Service) GenerateColumnDescription(ctx context.Context, rec lineage.ColumnRecord, additionalContext string) DescribedColumn {
	out := DescribedColumn{ColumnRecord: rec}
	logPrefix := fmt.Sprintf("Column[%s.%s]", rec.Table, rec.Column)

	if s.llmClient == nil {
		out.Description = errorFallback(rec, errors.New("text generation client is not configured"))
		out.Failed = true
		return out
	}

	prompt := BuildColumnPrompt(rec, additionalContext)
	text, err := withRetry(ctx, s.cfg.Retry, s.sleep, func(ctx context.Context) (string, error) {
		return s.llmClient.GenerateText(ctx, prompt)
	})

	var exhausted *ErrRetriesExhausted
	switch {
	case err == nil:
		out.Description = text
	case errors.As(err, &exhausted):
		zap.S().Warnf("%s Rate limit persisted after %d attempts: %v", logPrefix, s.cfg.Retry.MaxAttempts, err)
		out.Description = rateLimitFallback(rec)
		out.Failed = true
	default:
		zap.S().Warnf("%s Description generation failed: %v", logPrefix, err)
		out.Description = errorFallback(rec, err)
		out.Failed = true
	}
	return out
}

// DescribeColumns describes records in batches, pausing between batches.
// Records keep their input order. OnBatch, when set, is called after every
// batch; its error stops the run. The descriptions finished so far are
// returned with any error.
func (s *Service) DescribeColumns(ctx context.Context, records []lineage.ColumnRecord, params DescribeParams) ([]DescribedColumn, error) {
	if s.llmClient == nil {
		return nil, &ErrInvalidInput{Msg: "text generation client is not configured"}
	}

	startTime := time.Now()
	results := make([]DescribedColumn, 0, len(records))
	batchSize := s.cfg.BatchSize

	for start := 0; start < len(records); start += batchSize {
		if start > 0 {
			if err := s.sleep(ctx, s.cfg.BatchPause); err != nil {
				return results, &ErrCancelled{Msg: "cancelled between batches", Err: err}
			}
		}
		end := min(start+batchSize, len(records))

		batch := make([]DescribedColumn, 0, end-start)
		for _, rec := range records[start:end] {
			if err := ctx.Err(); err != nil {
				return results, &ErrCancelled{Msg: "cancelled while describing columns", Err: err}
			}
			batch = append(batch, s.GenerateColumnDescription(ctx, rec, params.AdditionalContext))
		}
		results = append(results, batch...)

		if params.OnBatch != nil {
			if err := params.OnBatch(ctx, batch); err != nil {
				return results, fmt.Errorf("failed to handle batch ending at column %d: %w", end, err)
			}
		}
		zap.S().Infof("Described %d/%d columns", len(results), len(records))
	}

	zap.S().Infof("Description generation completed in %s.", time.Since(startTime))
	return results, nil
}
