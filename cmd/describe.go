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

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/config"
	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/enricher"
	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/report"
	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/store"
	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/utils"
)

var describeCmd = &cobra.Command{
	Use:   "describe <file.sql>...",
	Short: "Generate a description for every column defined by SQL scripts",
	Long: `Extracts column lineage from the given SQL scripts, asks Gemini for a description of
each column and writes the descriptions (CSV by default) together with generation_report.txt.`,
	Example: `./sql_lineage_describer describe queries.sql --out_file column_descriptions.csv --context glossary.md --persist`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runDescribe,
}

func runDescribe(cmd *cobra.Command, args []string) error {
	cfg := config.GetConfig()
	ctx := cmd.Context()

	outputFile := cmd.Flag("out_file").Value.String()
	if outputFile == "" {
		outputFile = utils.GetDefaultOutputFilePath("", "describe")
	}

	// Credentials and inputs are checked before any extraction work.
	llmClient, err := newLLMClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer llmClient.Close()

	additionalContext, err := utils.ReadContextFiles(cmd.Flag("context").Value.String())
	if err != nil {
		return fmt.Errorf("failed to read context files: %w", err)
	}
	script, err := utils.ReadScriptFiles(args)
	if err != nil {
		return err
	}

	records, err := newExtractor(cfg).Extract(ctx, script)
	if err != nil {
		return fmt.Errorf("column extraction failed: %w", err)
	}
	if len(records) == 0 {
		zap.S().Warn("No columns were extracted from the SQL files")
		return nil
	}

	params := enricher.DescribeParams{AdditionalContext: additionalContext}
	if persist, _ := cmd.Flags().GetBool("persist"); persist {
		st, err := store.Open(ctx, cfg.Server.StorePath)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer st.Close()

		runID := uuid.NewString()
		zap.S().Infof("Persisting run %s to %s", runID, cfg.Server.StorePath)
		params.OnBatch = func(ctx context.Context, batch []enricher.DescribedColumn) error {
			return st.SaveDescriptions(ctx, runID, batch)
		}
	}

	service := enricher.NewService(nil, llmClient, enricherConfig(cfg))
	described, err := service.DescribeColumns(ctx, records, params)
	if err != nil {
		return fmt.Errorf("description generation failed: %w", err)
	}

	if err := writeDescriptions(outputFile, described); err != nil {
		return err
	}
	zap.S().Infof("Descriptions for SQL queries generated successfully: %s", outputFile)

	summary := report.Summarize(described)
	summary.Model = cfg.Model
	summary.Output = outputFile
	reportPath := utils.ReportPathFor(outputFile)
	if err := writeReport(reportPath, summary); err != nil {
		return err
	}
	zap.S().Infof("Generation report written to: %s", reportPath)
	return nil
}

func writeDescriptions(path string, described []enricher.DescribedColumn) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()
	if err := report.RenderDescriptions(file, described, report.FormatForPath(path)); err != nil {
		return fmt.Errorf("failed to write descriptions: %w", err)
	}
	return nil
}

func writeReport(path string, summary report.Summary) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()
	if err := report.WriteGenerationReport(file, summary); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func init() {
	describeCmd.Flags().StringP("out_file", "o", "", "File path for the descriptions; the extension picks the format (defaults to column_descriptions.csv)")
	describeCmd.Flags().String("context", "", "Comma-separated list of context files to provide additional information for description generation.")
	describeCmd.Flags().Bool("persist", false, "Also store the descriptions in the SQLite store")
	describeCmd.Flags().String("store", "", "SQLite store path (defaults to sql_storage.db)")
}
