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
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/config"
	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/enricher"
	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/lineage"
	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/store"
	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/utils"
)

// addCommentsCmd represents the addComments command
var addCommentsCmd = &cobra.Command{
	Use:   "add-comments [file.sql]...",
	Short: "Generate SQL for adding generated column descriptions as database comments",
	Long: `Describes the columns of the given SQL scripts, or takes the descriptions already in the
SQLite store when no script is given, and generates SQL statements that add them as column
comments to a live database. The statements are written to a file for review before actual application.`,
	Example: `./sql_lineage_describer add-comments queries.sql --dialect cloudsqlpostgres --username user --password pass --database mydb --cloudsql-instance-connection-name my-project:my-region:my-instance --out_file ./mydb_comments.sql --tables "table1[column1,column3],table2"`,
	RunE: runAddComments,
}

func runAddComments(cmd *cobra.Command, args []string) error {
	cfg := config.GetConfig()
	dbConfig := cfg.Database
	ctx := cmd.Context()

	if err := validateDialect(dbConfig.Dialect); err != nil {
		return err
	}
	tableFilters, err := utils.ParseTablesFlag(cmd.Flag("tables").Value.String())
	if err != nil {
		return err
	}

	outputFile := cmd.Flag("out_file").Value.String()
	if outputFile == "" {
		outputFile = utils.GetDefaultOutputFilePath(dbConfig.DBName, "add-comments")
	}

	zap.S().Infow("Starting add-comments operation", "dialect", dbConfig.Dialect, "database", dbConfig.DBName)

	var described []enricher.DescribedColumn
	if len(args) > 0 {
		described, err = describeScripts(ctx, cmd, cfg, args)
	} else {
		described, err = loadStoredDescriptions(ctx, cfg.Server.StorePath)
	}
	if err != nil {
		return err
	}
	if len(described) == 0 {
		zap.S().Info("No column descriptions available, nothing to add.")
		return nil
	}

	db, err := setupDatabase(ctx, dbConfig)
	if err != nil {
		return err
	}
	defer db.Close()

	service := enricher.NewService(db, nil, enricherConfig(cfg))
	sqlStatements, err := service.GenerateCommentSQLs(ctx, described, enricher.GenerateSQLParams{TableFilters: tableFilters})
	if err != nil {
		return fmt.Errorf("SQL generation for column comments failed: %w", err)
	}

	if err := writeLines(outputFile, sqlStatements); err != nil {
		return err
	}
	zap.S().Infof("SQL statements to add column comments have been written to: %s", outputFile)

	if dryRun {
		zap.S().Info("Add comments operation completed in dry-run mode. No changes were made to the database.")
		return nil
	}

	if len(sqlStatements) == 0 {
		zap.S().Info("No comments to add.")
		return nil
	}
	if !utils.ConfirmAction(cmd.InOrStdin(), cmd.OutOrStdout(), "SQL statements to add column comments") {
		zap.S().Info("Comment addition aborted by user.")
		return nil
	}

	// The file may have been edited during review.
	fileContent, err := os.ReadFile(outputFile)
	if err != nil {
		return fmt.Errorf("failed to read SQL statements from output file: %w", err)
	}
	sqlStatements = strings.Split(strings.TrimSpace(string(fileContent)), "\n")

	if err := db.ExecuteSQLStatements(ctx, sqlStatements); err != nil {
		return fmt.Errorf("failed to execute SQL statements to add comments: %w", err)
	}
	zap.S().Info("Successfully added comments to the database.")
	return nil
}

func describeScripts(ctx context.Context, cmd *cobra.Command, cfg *config.Config, paths []string) ([]enricher.DescribedColumn, error) {
	llmClient, err := newLLMClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer llmClient.Close()

	additionalContext, err := utils.ReadContextFiles(cmd.Flag("context").Value.String())
	if err != nil {
		return nil, fmt.Errorf("failed to read context files: %w", err)
	}
	script, err := utils.ReadScriptFiles(paths)
	if err != nil {
		return nil, err
	}
	records, err := newExtractor(cfg).Extract(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("column extraction failed: %w", err)
	}

	service := enricher.NewService(nil, llmClient, enricherConfig(cfg))
	return service.DescribeColumns(ctx, records, enricher.DescribeParams{AdditionalContext: additionalContext})
}

// loadStoredDescriptions returns the latest stored description of every column.
func loadStoredDescriptions(ctx context.Context, storePath string) ([]enricher.DescribedColumn, error) {
	st, err := store.Open(ctx, storePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	stored, err := st.ListDescriptions(ctx, "")
	if err != nil {
		return nil, err
	}
	return latestDescriptions(stored), nil
}

func latestDescriptions(stored []store.Description) []enricher.DescribedColumn {
	index := make(map[lineage.Key]int)
	var described []enricher.DescribedColumn
	for _, d := range stored {
		col := enricher.DescribedColumn{
			ColumnRecord: lineage.ColumnRecord{
				Table:        d.Table,
				Column:       d.Column,
				Definition:   d.Definition,
				SourceTables: d.SourceTables,
			},
			Description: d.Description,
			Failed:      d.Failed,
		}
		key := lineage.Key{Table: d.Table, Column: d.Column}
		if i, ok := index[key]; ok {
			described[i] = col
			continue
		}
		index[key] = len(described)
		described = append(described, col)
	}
	return described
}

func init() {
	addCommentsCmd.Flags().StringP("out_file", "o", "", "File path to output generated SQL statements (defaults to <database>_comments.sql)")
	addCommentsCmd.Flags().String("tables", "", "Comma-separated list of tables and columns to include (e.g., 'table1[col1,col2],table2,table3[col4]')")
	addCommentsCmd.Flags().String("context", "", "Comma-separated list of context files to provide additional information for description generation.")
	addCommentsCmd.Flags().String("store", "", "SQLite store to read descriptions from when no SQL file is given (defaults to sql_storage.db)")
}
