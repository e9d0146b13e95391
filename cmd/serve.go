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
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/config"
	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/enricher"
	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/server"
	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/store"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Serve the SQL analysis HTTP API",
	Long:    `Starts an HTTP API to upload SQL files, analyze them and retrieve the stored column descriptions.`,
	Example: `./sql_lineage_describer serve --listen :8000 --store sql_storage.db`,
	Args:    cobra.NoArgs,
	RunE:    runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.GetConfig()
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Server.StorePath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	// Analysis answers 500 until an API key is configured.
	var describer server.Describer
	llmClient, err := newLLMClient(ctx, cfg)
	if err != nil {
		zap.S().Warnf("Description generation disabled: %v", err)
	} else {
		defer llmClient.Close()
		describer = enricher.NewService(nil, llmClient, enricherConfig(cfg))
	}

	srv := server.New(server.Config{
		ListenAddr:     cfg.Server.ListenAddr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimit: server.RateLimitConfig{
			RequestsPerSecond: cfg.Server.RateLimitRPS,
			Burst:             cfg.Server.RateLimitBurst,
		},
	}, st, newExtractor(cfg), describer)

	return srv.Serve(ctx)
}

func init() {
	serveCmd.Flags().String("listen", "", "Address to listen on (defaults to :8000)")
	serveCmd.Flags().String("store", "", "SQLite store path (defaults to sql_storage.db)")
}
