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
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/config"
	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/report"
	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/utils"
)

var extractCmd = &cobra.Command{
	Use:     "extract <file.sql>...",
	Short:   "Extract column lineage from SQL scripts",
	Long:    `Parses the given SQL scripts and prints one record per output column: owning table, column, defining expression and source tables.`,
	Example: `./sql_lineage_describer extract queries.sql --format markdown --default-schemas public`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runExtract,
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg := config.GetConfig()

	format, err := report.ParseFormat(cmd.Flag("format").Value.String())
	if err != nil {
		return err
	}

	script, err := utils.ReadScriptFiles(args)
	if err != nil {
		return err
	}

	records, err := newExtractor(cfg).Extract(cmd.Context(), script)
	if err != nil {
		return fmt.Errorf("column extraction failed: %w", err)
	}
	zap.S().Infof("Extracted %d columns from %d file(s)", len(records), len(args))

	var out io.Writer = cmd.OutOrStdout()
	if outputFile := cmd.Flag("out_file").Value.String(); outputFile != "" {
		file, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()
		out = file
	}
	return report.RenderColumns(out, records, format)
}

func init() {
	extractCmd.Flags().StringP("format", "f", "table", "Output format (table, csv, markdown, html, json)")
	extractCmd.Flags().StringP("out_file", "o", "", "File path to write the records to (defaults to stdout)")
}
