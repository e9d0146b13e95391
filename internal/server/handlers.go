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
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/enricher"
	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/lineage"
	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/store"
)

const indexPage = `<html>
    <head>
        <title>SQL Analysis API</title>
    </head>
    <body>
        <h1>SQL Analysis API</h1>
        <p>Available endpoints:</p>
        <ul>
            <li>POST /upload-sql/ - Upload SQL files</li>
            <li>GET /analyze-sql/ - Process SQL files and generate descriptions</li>
            <li>GET /get-descriptions/ - Retrieve stored descriptions</li>
        </ul>
    </body>
</html>
`

type errorResponse struct {
	Detail string `json:"detail"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type analyzeResult struct {
	Table       string `json:"table"`
	Column      string `json:"column"`
	Description string `json:"description"`
}

type analyzeResponse struct {
	Message               string          `json:"message"`
	TotalColumnsProcessed int             `json:"total_columns_processed"`
	RunID                 string          `json:"run_id"`
	Results               []analyzeResult `json:"results"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.S().Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, indexPage)
}

// handleUpload stores every uploaded .sql file of the "files" form field.
// Nothing is stored when any file is rejected.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart upload: %v", err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "no files uploaded")
		return
	}

	scripts := make([]store.Script, 0, len(headers))
	names := make([]string, 0, len(headers))
	for _, fh := range headers {
		name := filepath.Base(fh.Filename)
		if !strings.EqualFold(filepath.Ext(name), ".sql") {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("File %s is not a SQL file", name))
			return
		}
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to open %s: %v", name, err))
			return
		}
		content, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read %s: %v", name, err))
			return
		}
		scripts = append(scripts, store.Script{Filename: name, Content: string(content)})
		names = append(names, name)
	}

	if err := s.store.SaveScripts(r.Context(), scripts); err != nil {
		zap.S().Errorf("Failed to store uploaded scripts: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	zap.S().Infof("Stored %d SQL file(s)", len(scripts))
	writeJSON(w, http.StatusOK, messageResponse{
		Message: "Successfully stored SQL files: " + strings.Join(names, ", "),
	})
}

// handleAnalyze extracts columns from every stored script, describes them and
// stores each finished batch under a new run id.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if s.describer == nil {
		writeError(w, http.StatusInternalServerError, "text generation is not configured: set GEMINI_API_KEY")
		return
	}
	ctx := r.Context()

	scripts, err := s.store.ListScripts(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(scripts) == 0 {
		writeError(w, http.StatusNotFound, "No SQL files found in database")
		return
	}

	fragments := make([]string, len(scripts))
	for i, sc := range scripts {
		fragments[i] = sc.Content
	}
	records, err := s.extractor.Extract(ctx, lineage.JoinFragments(fragments))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(records) == 0 {
		writeError(w, http.StatusNotFound, "No columns found in SQL queries")
		return
	}

	runID := uuid.NewString()
	zap.S().Infof("Run %s: describing %d columns from %d script(s)", runID, len(records), len(scripts))
	described, err := s.describer.DescribeColumns(ctx, records, enricher.DescribeParams{
		AdditionalContext: r.FormValue("context"),
		OnBatch: func(ctx context.Context, batch []enricher.DescribedColumn) error {
			return s.store.SaveDescriptions(ctx, runID, batch)
		},
	})
	if err != nil {
		zap.S().Errorf("Run %s failed after %d columns: %v", runID, len(described), err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	results := make([]analyzeResult, len(described))
	for i, d := range described {
		results[i] = analyzeResult{Table: d.Table, Column: d.Column, Description: d.Description}
	}
	writeJSON(w, http.StatusOK, analyzeResponse{
		Message:               "Analysis complete",
		TotalColumnsProcessed: len(results),
		RunID:                 runID,
		Results:               results,
	})
}

func (s *Server) handleGetDescriptions(w http.ResponseWriter, r *http.Request) {
	descriptions, err := s.store.ListDescriptions(r.Context(), r.URL.Query().Get("table_name"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, descriptions)
}
