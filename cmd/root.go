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
	"go.uber.org/zap/zapcore"

	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/config"
	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/database"
	_ "github.com/GoogleCloudPlatform/sql-lineage-describer/internal/database/mysql"
	_ "github.com/GoogleCloudPlatform/sql-lineage-describer/internal/database/postgres"
	_ "github.com/GoogleCloudPlatform/sql-lineage-describer/internal/database/sqlserver"
	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/enricher"
	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/genai"
	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/lineage"
)

var supportedDialects = []string{"postgres", "cloudsqlpostgres", "mysql", "cloudsqlmysql", "sqlserver", "cloudsqlsqlserver"}

var (
	cfgFile string
	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "sql_lineage_describer",
	Short: "Extract column lineage from SQL scripts and describe every column",
	Long: `sql_lineage_describer parses SQL scripts, resolves where every output column
comes from and uses Gemini to write a description for each column. Descriptions
can be exported, served over HTTP or written back to a database as column comments.`,
	SilenceUsage:      true,
	PersistentPreRunE: initLoggerAndConfig,
}

// initLoggerAndConfig installs the global logger and loads configuration
// from the config file, environment and flags.
func initLoggerAndConfig(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	zap.ReplaceGlobals(logger)

	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	cfg.Database.UpdateExistingMode = strings.ToLower(cfg.Database.UpdateExistingMode)
	config.SetConfig(cfg)
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if verbose {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Encoding = "console"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zcfg.OutputPaths = []string{"stderr"}
	return zcfg.Build()
}

func validateDialect(dialect string) error {
	for _, supportedDialect := range supportedDialects {
		if dialect == supportedDialect {
			return nil
		}
	}
	return fmt.Errorf("unsupported dialect: %s (only %s are supported)", dialect, strings.Join(supportedDialects, ", "))
}

func setupDatabase(ctx context.Context, dbConfig config.DatabaseConfig) (*database.DB, error) {
	if err := validateDialect(dbConfig.Dialect); err != nil {
		return nil, err
	}
	db, err := database.New(ctx, dbConfig)
	if err != nil {
		zap.S().Errorf("Failed to connect to database: %v", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// newLLMClient fails when no API key is configured; this is the only hard
// failure of description generation.
func newLLMClient(ctx context.Context, cfg *config.Config) (genai.LLMClient, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("Gemini API key is not configured. Use --gemini-api-key or set the GEMINI_API_KEY environment variable")
	}
	return genai.NewClient(ctx, genai.Config{APIKey: cfg.GeminiAPIKey, Model: cfg.Model})
}

func newExtractor(cfg *config.Config) *lineage.Extractor {
	return lineage.NewExtractor(lineage.Config{
		Dialect:        cfg.Extraction.LexerDialect,
		DefaultSchemas: cfg.Extraction.DefaultSchemas,
		Workers:        cfg.Extraction.Workers,
	})
}

func enricherConfig(cfg *config.Config) enricher.Config {
	return enricher.Config{
		BatchSize:  cfg.Generation.BatchSize,
		BatchPause: cfg.Generation.BatchPause,
		Retry: enricher.RetryOptions{
			MaxAttempts:       cfg.Generation.MaxAttempts,
			InitialBackoff:    cfg.Generation.InitialBackoff,
			MaxBackoff:        cfg.Generation.MaxBackoff,
			BackoffMultiplier: enricher.DefaultRetryOptions.BackoffMultiplier,
		},
	}
}

func writeLines(path string, lines []string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	for _, line := range lines {
		if _, err := file.WriteString(line + "\n"); err != nil {
			return fmt.Errorf("failed to write to %s: %w", path, err)
		}
	}
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (YAML, TOML or JSON)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	pf.BoolVar(&dryRun, "dry-run", true, "Enable dry-run mode (no database modifications)")

	// Extraction and generation flags
	pf.String("gemini-api-key", "", "Gemini API key (can also be set via GEMINI_API_KEY environment variable)")
	pf.String("model", genai.DefaultModel, "Gemini model used for description generation")
	pf.String("sql-dialect", "", "Lexer dialect for SQL scripts (postgres, mysql, sqlserver); empty for generic SQL")
	pf.StringSlice("default-schemas", nil, "Schema names stripped from table names, e.g. public,dbo")
	pf.Int("workers", 1, "Number of statements resolved concurrently")
	pf.Int("batch-size", enricher.DefaultBatchSize, "Number of columns described between pauses")

	// Database connection flags
	pf.String("dialect", "", fmt.Sprintf("Database dialect (%s)", strings.Join(supportedDialects, ", ")))
	pf.String("host", "", "Database host")
	pf.Int("port", 0, "Database port")
	pf.String("username", "", "Database username")
	pf.String("password", "", "Database password")
	pf.String("database", "", "Database name")
	pf.String("cloudsql-instance-connection-name", "", "Cloud SQL instance connection name (for Cloud SQL dialects)")
	pf.Bool("cloudsql-use-private-ip", false, "Use private IP for Cloud SQL connection (Cloud SQL)")
	pf.String("update_existing", "overwrite", "Mode to update existing comments ('overwrite' or 'append')")

	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(addCommentsCmd)
	rootCmd.AddCommand(getCommentsCmd)
	rootCmd.AddCommand(deleteCommentsCmd)
}
