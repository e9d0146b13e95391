package enricher

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/database"
)

// GenerateCommentSQLs turns generated descriptions into column comment SQL
// for the connected database. Columns with fallback descriptions and columns
// the database does not have are skipped.
func (s *Service) GenerateCommentSQLs(ctx context.Context, described []DescribedColumn, params GenerateSQLParams) ([]string, error) {
	if s.dbAdapter == nil {
		return nil, &ErrInvalidInput{Msg: "database connection not available for comment generation"}
	}
	startTime := time.Now()
	zap.S().Info("Starting SQL comment generation...")

	byTable := make(map[string][]DescribedColumn)
	var tables []string
	for _, col := range described {
		if col.Failed || strings.TrimSpace(col.Description) == "" {
			zap.S().Warnf("Column[%s.%s] Skipping column without a generated description.", col.Table, col.Column)
			continue
		}
		if _, ok := byTable[col.Table]; !ok {
			tables = append(tables, col.Table)
		}
		byTable[col.Table] = append(byTable[col.Table], col)
	}

	filteredTables := filterTables(tables, params.TableFilters)
	if len(filteredTables) == 0 {
		zap.S().Info("No described tables match the provided filters (--tables).")
		return []string{}, nil
	}

	var orderedSQLs []OrderedSQL
	var wg sync.WaitGroup
	var mu sync.Mutex
	errorChannel := make(chan error, len(filteredTables))

	zap.S().Infof("Processing %d described table(s)...", len(filteredTables))

	for _, tableName := range filteredTables {
		wg.Add(1)
		go func(table string) {
			defer wg.Done()
			tableLogPrefix := fmt.Sprintf("Table[%s]", table)

			columnInfos, listColErr := s.dbAdapter.ListColumns(ctx, table)
			if listColErr != nil {
				zap.S().Errorf("%s Failed to list columns: %v", tableLogPrefix, listColErr)
				errorChannel <- fmt.Errorf("%s list columns: %w", tableLogPrefix, listColErr)
				return
			}
			if len(columnInfos) == 0 {
				zap.S().Warnf("%s Table not found in the database, skipping.", tableLogPrefix)
				return
			}
			filteredColumnInfos := filterColumns(table, columnInfos, params.TableFilters)
			existing := make(map[string]database.ColumnInfo, len(filteredColumnInfos))
			for _, ci := range filteredColumnInfos {
				existing[strings.ToLower(ci.Name)] = ci
			}

			var colWg sync.WaitGroup
			for _, col := range byTable[table] {
				ci, ok := existing[strings.ToLower(col.Column)]
				if !ok {
					zap.S().Debugf("Column[%s.%s] Not present in the database or filtered out, skipping.", table, col.Column)
					continue
				}
				colWg.Add(1)
				go func(col DescribedColumn, ci database.ColumnInfo) {
					defer colWg.Done()
					colLogPrefix := fmt.Sprintf("Column[%s.%s]", table, ci.Name)

					commentData := &database.CommentData{
						TableName:      table,
						ColumnName:     ci.Name,
						ColumnDataType: ci.DataType,
						Description:    StripDescriptionLabel(col.Description),
						Definition:     col.Definition,
						SourceTables:   col.SourceTables,
					}
					sql, genErr := s.dbAdapter.GenerateCommentSQL(ctx, commentData)
					if genErr != nil {
						zap.S().Warnf("%s Failed to generate comment SQL: %v", colLogPrefix, genErr)
					} else if sql != "" {
						mu.Lock()
						orderedSQLs = append(orderedSQLs, OrderedSQL{SQL: sql, Table: table, Column: ci.Name})
						mu.Unlock()
					}
				}(col, ci)
			}
			colWg.Wait()
		}(tableName)
	}

	wg.Wait()
	close(errorChannel)

	if err := collectErrors("SQL generation", errorChannel); err != nil {
		return nil, err
	}

	sortSQLs(orderedSQLs)
	allSQLs := extractSQL(orderedSQLs)

	zap.S().Infof("SQL comment generation completed in %s. Generated %d statements.", time.Since(startTime), len(allSQLs))
	return allSQLs, nil
}

// GenerateDeleteCommentSQLs removes generated comment sections from every
// (filtered) table in the database.
func (s *Service) GenerateDeleteCommentSQLs(ctx context.Context, params GenerateDeleteSQLParams) ([]string, error) {
	if s.dbAdapter == nil {
		return nil, &ErrInvalidInput{Msg: "database connection not available for comment deletion"}
	}
	startTime := time.Now()
	zap.S().Info("Starting SQL comment deletion generation...")

	tables, err := s.dbAdapter.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	filteredTables := filterTables(tables, params.TableFilters)
	if len(filteredTables) == 0 {
		zap.S().Info("No tables match the provided filters (--tables) for deletion.")
		return []string{}, nil
	}

	var orderedSQLs []OrderedSQL
	var wg sync.WaitGroup
	var mu sync.Mutex
	errorChannel := make(chan error, len(filteredTables))

	zap.S().Infof("Processing %d filtered table(s) for deletion...", len(filteredTables))

	for _, tableName := range filteredTables {
		wg.Add(1)
		go func(table string) {
			defer wg.Done()
			tableLogPrefix := fmt.Sprintf("Table[%s]", table)

			columnInfos, listColErr := s.dbAdapter.ListColumns(ctx, table)
			if listColErr != nil {
				zap.S().Errorf("%s Failed to list columns for delete: %v", tableLogPrefix, listColErr)
				errorChannel <- fmt.Errorf("%s list columns delete: %w", tableLogPrefix, listColErr)
				return
			}
			filteredColumnInfos := filterColumns(table, columnInfos, params.TableFilters)

			var colWg sync.WaitGroup
			for _, colInfo := range filteredColumnInfos {
				colWg.Add(1)
				go func(ci database.ColumnInfo) {
					defer colWg.Done()
					colLogPrefix := fmt.Sprintf("Column[%s.%s]", table, ci.Name)

					sql, genErr := s.dbAdapter.GenerateDeleteCommentSQL(ctx, table, ci.Name)
					if genErr != nil {
						zap.S().Warnf("%s Failed to generate delete comment SQL: %v", colLogPrefix, genErr)
					} else if sql != "" {
						mu.Lock()
						orderedSQLs = append(orderedSQLs, OrderedSQL{SQL: sql, Table: table, Column: ci.Name})
						mu.Unlock()
					}
				}(colInfo)
			}
			colWg.Wait()
		}(tableName)
	}

	wg.Wait()
	close(errorChannel)

	if err := collectErrors("delete SQL generation", errorChannel); err != nil {
		return nil, err
	}

	sortSQLs(orderedSQLs)
	allSQLs := extractSQL(orderedSQLs)

	if len(allSQLs) == 0 {
		zap.S().Info("No SQL statements generated for deleting comments (no matching tables/columns or no generated comments found).")
	} else {
		zap.S().Infof("Generated %d SQL statements for deleting comments.", len(allSQLs))
	}
	zap.S().Infof("SQL comment deletion generation completed in %s.", time.Since(startTime))
	return allSQLs, nil
}

// GetComments reads the column comments of every (filtered) table. Comments
// found before an error are returned together with the error.
func (s *Service) GetComments(ctx context.Context, params GetCommentsParams) ([]*ColumnComment, error) {
	if s.dbAdapter == nil {
		return nil, &ErrInvalidInput{Msg: "database connection not available for comment retrieval"}
	}
	startTime := time.Now()
	zap.S().Info("Starting comment retrieval...")

	tables, err := s.dbAdapter.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	filteredTables := filterTables(tables, params.TableFilters)
	if len(filteredTables) == 0 {
		zap.S().Info("No tables match the provided filters (--tables) for retrieval.")
		return []*ColumnComment{}, nil
	}

	var allComments []*ColumnComment
	var wg sync.WaitGroup
	var mu sync.Mutex
	errorChannel := make(chan error, len(filteredTables))

	zap.S().Infof("Retrieving comments for %d filtered table(s)...", len(filteredTables))

	for _, tableName := range filteredTables {
		wg.Add(1)
		go func(table string) {
			defer wg.Done()
			tableLogPrefix := fmt.Sprintf("Table[%s]", table)

			columnInfos, listColErr := s.dbAdapter.ListColumns(ctx, table)
			if listColErr != nil {
				zap.S().Errorf("%s Failed to list columns for get comments: %v", tableLogPrefix, listColErr)
				errorChannel <- fmt.Errorf("%s list columns get: %w", tableLogPrefix, listColErr)
				return
			}
			filteredColumnInfos := filterColumns(table, columnInfos, params.TableFilters)

			var colWg sync.WaitGroup
			for _, colInfo := range filteredColumnInfos {
				colWg.Add(1)
				go func(ci database.ColumnInfo) {
					defer colWg.Done()
					colLogPrefix := fmt.Sprintf("Column[%s.%s]", table, ci.Name)

					comment, err := s.dbAdapter.GetColumnComment(ctx, table, ci.Name)
					if err != nil {
						zap.S().Warnf("%s Failed to get column comment: %v", colLogPrefix, err)
					} else if comment != "" {
						mu.Lock()
						allComments = append(allComments, &ColumnComment{
							Table:   table,
							Column:  ci.Name,
							Comment: comment,
						})
						mu.Unlock()
					}
				}(colInfo)
			}
			colWg.Wait()
		}(tableName)
	}

	wg.Wait()
	close(errorChannel)

	sortComments(allComments)
	if err := collectErrors("comment retrieval", errorChannel); err != nil {
		return allComments, err
	}

	zap.S().Infof("Comment retrieval completed in %s. Found %d comments.", time.Since(startTime), len(allComments))
	return allComments, nil
}

func collectErrors(operation string, errorChannel <-chan error) error {
	var errorMessages []string
	for err := range errorChannel {
		errorMessages = append(errorMessages, err.Error())
	}
	if len(errorMessages) == 0 {
		return nil
	}
	return fmt.Errorf("encountered %d error(s) during %s:\n- %s",
		len(errorMessages), operation, strings.Join(errorMessages, "\n- "))
}

func filterTables(allTables []string, tableFilters map[string][]string) []string {
	if len(tableFilters) == 0 {
		filtered := append([]string(nil), allTables...)
		sort.Strings(filtered)
		return filtered
	}
	filtered := make([]string, 0, len(tableFilters))
	for _, table := range allTables {
		if _, ok := tableFilters[table]; ok {
			filtered = append(filtered, table)
		}
	}
	sort.Strings(filtered)
	return filtered
}

func filterColumns(tableName string, allColumns []database.ColumnInfo, tableFilters map[string][]string) []database.ColumnInfo {
	if len(tableFilters) == 0 {
		return allColumns
	}
	specificColumnFilters, tableIncluded := tableFilters[tableName]
	if !tableIncluded || len(specificColumnFilters) == 0 {
		return allColumns
	}
	filtered := make([]database.ColumnInfo, 0, len(specificColumnFilters))
	allowed := make(map[string]bool)
	for _, colName := range specificColumnFilters {
		allowed[colName] = true
	}
	for _, colInfo := range allColumns {
		if allowed[colInfo.Name] {
			filtered = append(filtered, colInfo)
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].Name < filtered[j].Name
	})
	return filtered
}

func sortSQLs(sqls []OrderedSQL) {
	sort.Slice(sqls, func(i, j int) bool {
		if sqls[i].Table != sqls[j].Table {
			return sqls[i].Table < sqls[j].Table
		}
		return sqls[i].Column < sqls[j].Column
	})
}

func extractSQL(orderedSQLs []OrderedSQL) []string {
	allSQLs := make([]string, len(orderedSQLs))
	for i, osql := range orderedSQLs {
		allSQLs[i] = osql.SQL
	}
	return allSQLs
}

func sortComments(comments []*ColumnComment) {
	sort.Slice(comments, func(i, j int) bool {
		if comments[i].Table != comments[j].Table {
			return comments[i].Table < comments[j].Table
		}
		return comments[i].Column < comments[j].Column
	})
}

// FormatCommentsAsText renders comments grouped by table.
func FormatCommentsAsText(comments []*ColumnComment) string {
	if len(comments) == 0 {
		return "No comments found.\n"
	}
	var buffer bytes.Buffer
	lastTable := ""
	for _, comment := range comments {
		if comment.Table != lastTable {
			if lastTable != "" {
				buffer.WriteString("\n")
			}
			buffer.WriteString(fmt.Sprintf("--- Table: %s ---\n", comment.Table))
			lastTable = comment.Table
		}
		buffer.WriteString(fmt.Sprintf("  Column: %s\n", comment.Column))
		buffer.WriteString(fmt.Sprintf("  Comment: %s\n", strings.TrimSpace(comment.Comment)))
	}
	return buffer.String()
}
