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
package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/lineage"
)

// ReadScriptFiles reads SQL scripts and joins them into one script, each
// file terminated as its own statement. Missing or empty files are errors.
func ReadScriptFiles(paths []string) (string, error) {
	if len(paths) == 0 {
		return "", fmt.Errorf("no SQL file given")
	}
	fragments := make([]string, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read SQL file '%s': %w", path, err)
		}
		if strings.TrimSpace(string(content)) == "" {
			return "", fmt.Errorf("SQL file '%s' is empty", path)
		}
		fragments = append(fragments, string(content))
	}
	if len(fragments) == 1 {
		return fragments[0], nil
	}
	return lineage.JoinFragments(fragments), nil
}

// ReadContextFiles reads the content of the specified context files and combines them into a single string.
func ReadContextFiles(filePaths string) (string, error) {
	if filePaths == "" {
		return "", nil
	}

	var combinedContext strings.Builder
	for _, path := range strings.Split(filePaths, ",") {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read context file '%s': %w", path, err)
		}
		combinedContext.WriteString("\n-- Context from file: " + path + " --\n")
		combinedContext.Write(content)
	}
	return combinedContext.String(), nil
}

// GetDefaultOutputFilePath names the output of a command when none is given.
func GetDefaultOutputFilePath(dbName, commandName string) string {
	switch commandName {
	case "describe":
		return "column_descriptions.csv"
	case "get-comments":
		return fmt.Sprintf("%s_comments.txt", dbName)
	default: // add-comments, delete-comments
		return fmt.Sprintf("%s_comments.sql", dbName)
	}
}

// ReportPathFor places the generation report next to the output file.
func ReportPathFor(outputPath string) string {
	return filepath.Join(filepath.Dir(outputPath), "generation_report.txt")
}

// ConfirmAction asks on out and reads a yes/no answer from in.
func ConfirmAction(in io.Reader, out io.Writer, actionDescription string) bool {
	reader := bufio.NewReader(in)
	fmt.Fprintf(out, "\n-------------------------------------------------------------\n")
	fmt.Fprintf(out, "Generated %s:\n", actionDescription)
	fmt.Fprint(out, "Do you want to apply these changes to the database? (yes/no): ")
	text, _ := reader.ReadString('\n')
	action := strings.TrimSpace(strings.ToLower(text))
	return action == "yes" || action == "y"
}

// ParseTablesFlag parses "t1,t2[c1,c2]" into table -> columns. A table
// without brackets maps to nil, meaning all columns.
func ParseTablesFlag(tablesFlag string) (map[string][]string, error) {
	tableColumns := make(map[string][]string)
	tablesFlag = strings.ReplaceAll(tablesFlag, " ", "")
	if tablesFlag == "" {
		return tableColumns, nil
	}

	for _, part := range SplitOutsideBrackets(tablesFlag) {
		if part == "" {
			continue
		}
		bracketStart := strings.Index(part, "[")
		if bracketStart == -1 {
			if strings.Contains(part, "]") {
				return nil, fmt.Errorf("unexpected closing bracket in: %s", part)
			}
			tableColumns[part] = nil
			continue
		}

		bracketEnd := strings.LastIndex(part, "]")
		if bracketEnd < bracketStart {
			return nil, fmt.Errorf("missing closing bracket in: %s", part)
		}
		tableName := part[:bracketStart]
		if tableName == "" {
			return nil, fmt.Errorf("missing table name in: %s", part)
		}

		var columns []string
		for _, col := range strings.Split(part[bracketStart+1:bracketEnd], ",") {
			if col != "" {
				columns = append(columns, col)
			}
		}
		tableColumns[tableName] = append(tableColumns[tableName], columns...)
	}
	return tableColumns, nil
}

// SplitOutsideBrackets splits s on commas that are not inside square brackets.
func SplitOutsideBrackets(s string) []string {
	var result []string
	var current strings.Builder
	depth := 0

	for _, char := range s {
		switch {
		case char == '[':
			depth++
		case char == ']' && depth > 0:
			depth--
		case char == ',' && depth == 0:
			result = append(result, current.String())
			current.Reset()
			continue
		}
		current.WriteRune(char)
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}
