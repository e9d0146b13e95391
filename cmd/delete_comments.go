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
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/config"
	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/enricher"
	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/utils"
)

var deleteCommentsCmd = &cobra.Command{
	Use:     "delete-comments",
	Short:   "Delete generated descriptions from database column comments",
	Long:    `Deletes the portion of column comments that is within the <gemini> tags, leaving other parts of the comment untouched.`,
	Example: `./sql_lineage_describer delete-comments --dialect cloudsqlpostgres --username user --password pass --database mydb --cloudsql-instance-connection-name my-project:my-region:my-instance --dry-run=false --tables "table1[column1,column3],table2"`,
	Args:    cobra.NoArgs,
	RunE:    runDeleteComments,
}

func runDeleteComments(cmd *cobra.Command, args []string) error {
	dbConfig := config.GetConfig().Database
	ctx := cmd.Context()

	tableFilters, err := utils.ParseTablesFlag(cmd.Flag("tables").Value.String())
	if err != nil {
		return err
	}
	outputFile := cmd.Flag("out_file").Value.String()
	if outputFile == "" {
		outputFile = utils.GetDefaultOutputFilePath(dbConfig.DBName, "delete-comments")
	}

	zap.S().Infow("Starting delete-comments operation", "dialect", dbConfig.Dialect, "database", dbConfig.DBName)

	db, err := setupDatabase(ctx, dbConfig)
	if err != nil {
		return err
	}
	defer db.Close()

	service := enricher.NewService(db, nil, enricher.DefaultConfig())
	sqlStatements, err := service.GenerateDeleteCommentSQLs(ctx, enricher.GenerateDeleteSQLParams{TableFilters: tableFilters})
	if err != nil {
		return fmt.Errorf("SQL generation for delete comments failed: %w", err)
	}

	if err := writeLines(outputFile, sqlStatements); err != nil {
		return err
	}
	zap.S().Infof("SQL statements to delete column comments have been written to: %s", outputFile)

	if dryRun {
		zap.S().Info("No comments were actually deleted in dry-run mode. Rerun with --dry-run=false to delete them.")
		return nil
	}

	if len(sqlStatements) == 0 {
		zap.S().Info("No generated comments found to delete.")
		return nil
	}
	if !utils.ConfirmAction(cmd.InOrStdin(), cmd.OutOrStdout(), "SQL statements to delete column comments") {
		zap.S().Info("Comment deletion aborted by user.")
		return nil
	}
	if err := db.ExecuteSQLStatements(ctx, sqlStatements); err != nil {
		return fmt.Errorf("failed to execute SQL statements to delete comments: %w", err)
	}
	zap.S().Info("Successfully deleted generated comments from the database.")
	return nil
}

func init() {
	deleteCommentsCmd.Flags().StringP("out_file", "o", "", "File path to output generated SQL statements (defaults to <database>_comments.sql)")
	deleteCommentsCmd.Flags().String("tables", "", "Comma-separated list of tables and columns to include for comment deletion (e.g., 'table1[col1,col2],table2,table3[col4]')")
}
