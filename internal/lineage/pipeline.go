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
	"context"
	"fmt"

	"github.com/DataDog/go-sqllexer"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config controls how an Extractor tokenizes and resolves statements.
type Config struct {
	// Dialect selects lexer rules: postgres, mysql or sqlserver. Empty means generic.
	Dialect string
	// DefaultSchemas are stripped from table names in addition to "<default>".
	DefaultSchemas []string
	// Workers > 1 resolves statements concurrently. Output order is unchanged.
	Workers int
	// Analyzer overrides the token-based table resolver.
	Analyzer Analyzer
}

// Extractor turns a SQL script into de-duplicated column lineage records.
type Extractor struct {
	dbms     sqllexer.DBMSType
	markers  []string
	workers  int
	analyzer Analyzer
}

// NewExtractor creates an Extractor. The zero Config gives a sequential,
// dialect-agnostic extractor.
func NewExtractor(cfg Config) *Extractor {
	analyzer := cfg.Analyzer
	if analyzer == nil {
		analyzer = NewClauseAnalyzer(cfg.Dialect, cfg.DefaultSchemas...)
	}
	return &Extractor{
		dbms:     dialectFor(cfg.Dialect),
		markers:  cfg.DefaultSchemas,
		workers:  cfg.Workers,
		analyzer: analyzer,
	}
}

// Resolve classifies a statement and resolves its tables.
func (e *Extractor) Resolve(text string) (Statement, Info, error) {
	stmt := Statement{Text: text, Kind: Classify(text)}
	info, err := e.analyzer.Analyze(text)
	if err != nil {
		return stmt, Info{}, err
	}
	for i, t := range info.Targets {
		info.Targets[i] = StripDefaultSchema(t, e.markers...)
	}
	for i, s := range info.Sources {
		info.Sources[i] = StripDefaultSchema(s, e.markers...)
	}
	return stmt, info, nil
}

// ExtractStatement returns the column records for a single statement.
func (e *Extractor) ExtractStatement(text string) (records []ColumnRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			records = nil
			err = &ResolutionError{Statement: text, Msg: "extraction panicked", Err: fmt.Errorf("%v", r)}
		}
	}()

	stmt, info, err := e.Resolve(text)
	if err != nil {
		return nil, err
	}
	switch stmt.Kind {
	case KindCreateAs:
		return extractCreateAs(stmt.Text, info, e.dbms, e.markers)
	case KindCreatePlain:
		return extractCreatePlain(stmt.Text, info), nil
	default:
		return nil, nil
	}
}

// Extract segments script and extracts lineage from every statement.
// Statements that fail to resolve are logged and skipped. The only error
// returned is a context error.
func (e *Extractor) Extract(ctx context.Context, script string) ([]ColumnRecord, error) {
	statements := Segment(script)
	if len(statements) == 0 {
		return []ColumnRecord{}, nil
	}
	zap.S().Debugf("Segmented script into %d statements", len(statements))

	perStatement := make([][]ColumnRecord, len(statements))
	if e.workers <= 1 {
		for i, text := range statements {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			perStatement[i] = e.extractLogged(i, text)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.workers)
		for i, text := range statements {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				perStatement[i] = e.extractLogged(i, text)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	var all []ColumnRecord
	for _, recs := range perStatement {
		all = append(all, recs...)
	}
	return Deduplicate(all, e.markers...), nil
}

func (e *Extractor) extractLogged(i int, text string) []ColumnRecord {
	records, err := e.ExtractStatement(text)
	if err != nil {
		zap.S().Warnf("Skipping statement #%d: %v", i+1, err)
		return nil
	}
	return records
}

// Extract runs a default Extractor over script.
func Extract(ctx context.Context, script string) ([]ColumnRecord, error) {
	return NewExtractor(Config{}).Extract(ctx, script)
}
