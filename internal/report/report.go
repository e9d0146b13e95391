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

// Package report renders extracted columns and generated descriptions.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/enricher"
	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/lineage"
)

// Format selects the output rendering.
type Format string

const (
	FormatTable    Format = "table"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatJSON     Format = "json"
)

// ParseFormat accepts a format name; "md" is an alias of markdown.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "table", "text", "txt":
		return FormatTable, nil
	case "csv":
		return FormatCSV, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unsupported output format %q (want table, csv, markdown, html or json)", name)
}

// FormatForPath picks a format from the file extension, defaulting to CSV.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return FormatMarkdown
	case ".html", ".htm":
		return FormatHTML
	case ".json":
		return FormatJSON
	case ".txt":
		return FormatTable
	default:
		return FormatCSV
	}
}

// RenderColumns writes extracted column records.
func RenderColumns(w io.Writer, records []lineage.ColumnRecord, format Format) error {
	if format == FormatJSON {
		return writeJSON(w, records)
	}
	header := []string{"Table", "Column", "Definition", "Source Tables"}
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{rec.Table, rec.Column, rec.Definition, strings.Join(rec.SourceTables, ", ")})
	}
	return render(w, header, rows, format)
}

// RenderDescriptions writes generated descriptions.
func RenderDescriptions(w io.Writer, described []enricher.DescribedColumn, format Format) error {
	if format == FormatJSON {
		return writeJSON(w, described)
	}
	header := []string{"Table", "Column", "Description"}
	rows := make([][]string, 0, len(described))
	for _, d := range described {
		rows = append(rows, []string{d.Table, d.Column, d.Description})
	}
	return render(w, header, rows, format)
}

func newTable(w io.Writer, header []string, rows [][]string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(toRow(header))
	for _, r := range rows {
		t.AppendRow(toRow(r))
	}
	return t
}

func toRow(values []string) table.Row {
	row := make(table.Row, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}

func render(w io.Writer, header []string, rows [][]string, format Format) error {
	// CSV fields are quoted per RFC 4180; go-pretty backslash-escapes them.
	if format == FormatCSV {
		return writeCSV(w, header, rows)
	}
	t := newTable(w, header, rows)
	switch format {
	case FormatMarkdown:
		t.RenderMarkdown()
	case FormatHTML:
		t.RenderHTML()
	case FormatTable, "":
		t.Render()
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
	return nil
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write CSV rows: %w", err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Summary is the content of the generation report.
type Summary struct {
	QueriesProcessed   int
	ColumnsDocumented  int
	FailedDescriptions int
	Model              string
	Output             string
}

// Summarize counts distinct statements and failed descriptions.
func Summarize(described []enricher.DescribedColumn) Summary {
	queries := make(map[string]struct{})
	s := Summary{ColumnsDocumented: len(described)}
	for _, d := range described {
		queries[d.FullQuery] = struct{}{}
		if d.Failed {
			s.FailedDescriptions++
		}
	}
	s.QueriesProcessed = len(queries)
	return s
}

// WriteGenerationReport writes the plain-text run summary.
func WriteGenerationReport(w io.Writer, s Summary) error {
	model := s.Model
	if model == "" {
		model = "Gemini"
	}
	output := s.Output
	if output == "" {
		output = "a spreadsheet"
	}

	var b strings.Builder
	b.WriteString("Column Description Generation Report\n\n")
	fmt.Fprintf(&b, "Total SQL Queries Processed: %d\n", s.QueriesProcessed)
	fmt.Fprintf(&b, "Total Columns Documented: %d\n", s.ColumnsDocumented)
	if s.FailedDescriptions > 0 {
		fmt.Fprintf(&b, "Descriptions Using Fallback Text: %d\n", s.FailedDescriptions)
	}
	b.WriteString("\nProcess Summary:\n")
	b.WriteString("1. SQL queries were parsed to extract column-level lineage\n")
	b.WriteString("2. For each column, context was gathered including source tables and full query\n")
	fmt.Fprintf(&b, "3. The %s model was used to generate detailed descriptions based on the context\n", model)
	fmt.Fprintf(&b, "4. Results were compiled into %s\n", output)
	b.WriteString("\nThe generated descriptions include:\n")
	b.WriteString("- Column purpose and meaning\n")
	b.WriteString("- Calculation methods for derived columns\n")
	b.WriteString("- Business logic and conditions\n")
	b.WriteString("- Data relationships with source tables\n")

	_, err := io.WriteString(w, b.String())
	return err
}
