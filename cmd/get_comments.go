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
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/config"
	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/enricher"
	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/utils"
)

var getCommentsCmd = &cobra.Command{
	Use:     "get-comments",
	Short:   "Get comments from database columns",
	Long:    `Retrieves column comments from the database and writes them to a file.`,
	Example: `./sql_lineage_describer get-comments --dialect cloudsqlpostgres --username user --password pass --database mydb --cloudsql-instance-connection-name my-project:my-region:my-instance --out_file ./mydb_comments.txt`,
	Args:    cobra.NoArgs,
	RunE:    runGetComments,
}

func runGetComments(cmd *cobra.Command, args []string) error {
	dbConfig := config.GetConfig().Database
	ctx := cmd.Context()

	tableFilters, err := utils.ParseTablesFlag(cmd.Flag("tables").Value.String())
	if err != nil {
		return err
	}
	outputFile := cmd.Flag("out_file").Value.String()
	if outputFile == "" {
		outputFile = utils.GetDefaultOutputFilePath(dbConfig.DBName, "get-comments")
	}

	zap.S().Infow("Starting get-comments operation", "dialect", dbConfig.Dialect, "database", dbConfig.DBName)

	db, err := setupDatabase(ctx, dbConfig)
	if err != nil {
		return err
	}
	defer db.Close()

	service := enricher.NewService(db, nil, enricher.DefaultConfig())
	comments, err := service.GetComments(ctx, enricher.GetCommentsParams{TableFilters: tableFilters})
	if err != nil {
		if len(comments) == 0 {
			return fmt.Errorf("failed to retrieve comments: %w", err)
		}
		zap.S().Warnf("Some comments could not be retrieved: %v", err)
	}

	if err := os.WriteFile(outputFile, []byte(enricher.FormatCommentsAsText(comments)), 0o644); err != nil {
		return fmt.Errorf("failed to write comments to file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Comments written to: %s\n", outputFile)

	zap.S().Info("Get comments operation completed")
	return nil
}

func init() {
	getCommentsCmd.Flags().StringP("out_file", "o", "", "File path to save comments to (optional, defaults to <database>_comments.txt)")
	getCommentsCmd.Flags().String("tables", "", "Comma-separated list of tables and columns to read (e.g., 'table1[col1,col2],table2')")
}
