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
package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	GeminiAPIKey string           `mapstructure:"gemini_api_key"`
	Model        string           `mapstructure:"model"`
	Extraction   ExtractionConfig `mapstructure:"extraction"`
	Generation   GenerationConfig `mapstructure:"generation"`
	Server       ServerConfig     `mapstructure:"server"`
	Database     DatabaseConfig   `mapstructure:"database"`
}

// ExtractionConfig controls SQL lineage extraction.
type ExtractionConfig struct {
	LexerDialect   string   `mapstructure:"lexer_dialect"`
	DefaultSchemas []string `mapstructure:"default_schemas"`
	Workers        int      `mapstructure:"workers"`
}

// GenerationConfig controls description generation pacing and retries.
type GenerationConfig struct {
	BatchSize      int           `mapstructure:"batch_size"`
	BatchPause     time.Duration `mapstructure:"batch_pause"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	ListenAddr     string   `mapstructure:"listen_addr"`
	StorePath      string   `mapstructure:"store_path"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	RateLimitRPS   float64  `mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Dialect                        string `mapstructure:"dialect"`
	Host                           string `mapstructure:"host"`
	Port                           int    `mapstructure:"port"`
	User                           string `mapstructure:"user"`
	Password                       string `mapstructure:"password"`
	DBName                         string `mapstructure:"dbname"`
	SSLMode                        string `mapstructure:"sslmode"`
	CloudSQLInstanceConnectionName string `mapstructure:"cloudsql_instance_connection_name"`
	UsePrivateIP                   bool   `mapstructure:"use_private_ip"`
	UpdateExistingMode             string `mapstructure:"update_existing_mode"`
}

// flagKeys maps command-line flag names onto configuration keys.
var flagKeys = map[string]string{
	"gemini-api-key":                    "gemini_api_key",
	"model":                             "model",
	"sql-dialect":                       "extraction.lexer_dialect",
	"default-schemas":                   "extraction.default_schemas",
	"workers":                           "extraction.workers",
	"batch-size":                        "generation.batch_size",
	"listen":                            "server.listen_addr",
	"store":                             "server.store_path",
	"dialect":                           "database.dialect",
	"host":                              "database.host",
	"port":                              "database.port",
	"username":                          "database.user",
	"password":                          "database.password",
	"database":                          "database.dbname",
	"cloudsql-instance-connection-name": "database.cloudsql_instance_connection_name",
	"cloudsql-use-private-ip":           "database.use_private_ip",
	"update_existing":                   "database.update_existing_mode",
}

var (
	globalConfig *Config
	mu           sync.RWMutex
)

// Default returns a configuration populated with default values.
func Default() *Config {
	return &Config{
		Model: "gemini-1.5-flash",
		Generation: GenerationConfig{
			BatchSize:      20,
			BatchPause:     time.Second,
			MaxAttempts:    3,
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
		},
		Extraction: ExtractionConfig{Workers: 1},
		Server: ServerConfig{
			ListenAddr:     ":8000",
			StorePath:      "sql_storage.db",
			AllowedOrigins: []string{"http://localhost:5173"},
			RateLimitRPS:   1,
			RateLimitBurst: 5,
		},
		Database: DatabaseConfig{
			Dialect:            "postgres",
			Host:               "localhost",
			Port:               5432,
			SSLMode:            "disable",
			UpdateExistingMode: "overwrite",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("model", d.Model)
	v.SetDefault("extraction.lexer_dialect", d.Extraction.LexerDialect)
	v.SetDefault("extraction.default_schemas", d.Extraction.DefaultSchemas)
	v.SetDefault("extraction.workers", d.Extraction.Workers)
	v.SetDefault("generation.batch_size", d.Generation.BatchSize)
	v.SetDefault("generation.batch_pause", d.Generation.BatchPause)
	v.SetDefault("generation.max_attempts", d.Generation.MaxAttempts)
	v.SetDefault("generation.initial_backoff", d.Generation.InitialBackoff)
	v.SetDefault("generation.max_backoff", d.Generation.MaxBackoff)
	v.SetDefault("server.listen_addr", d.Server.ListenAddr)
	v.SetDefault("server.store_path", d.Server.StorePath)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("server.rate_limit_rps", d.Server.RateLimitRPS)
	v.SetDefault("server.rate_limit_burst", d.Server.RateLimitBurst)
	v.SetDefault("database.dialect", d.Database.Dialect)
	v.SetDefault("database.host", d.Database.Host)
	v.SetDefault("database.port", d.Database.Port)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "")
	v.SetDefault("database.sslmode", d.Database.SSLMode)
	v.SetDefault("database.cloudsql_instance_connection_name", "")
	v.SetDefault("database.use_private_ip", false)
	v.SetDefault("database.update_existing_mode", d.Database.UpdateExistingMode)
}

// Load builds the configuration from defaults, an optional config file,
// environment variables and the given flags, in increasing precedence.
// flags may be nil. Only flags present in the set are bound.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SQLDESC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("gemini_api_key", "GEMINI_API_KEY", "GOOGLE_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind API key environment: %w", err)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) {
				return nil, fmt.Errorf("config file not found: %s", cfgFile)
			}
			return nil, fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Generation.BatchSize <= 0 {
		return fmt.Errorf("generation.batch_size must be positive, got %d", c.Generation.BatchSize)
	}
	if c.Generation.MaxAttempts <= 0 {
		return fmt.Errorf("generation.max_attempts must be positive, got %d", c.Generation.MaxAttempts)
	}
	switch c.Database.UpdateExistingMode {
	case "overwrite", "append":
	default:
		return fmt.Errorf("database.update_existing_mode must be 'overwrite' or 'append', got %q", c.Database.UpdateExistingMode)
	}
	return nil
}

// GetConfig returns the configuration set by the command tree, or the defaults.
func GetConfig() *Config {
	mu.RLock()
	defer mu.RUnlock()
	if globalConfig == nil {
		return Default()
	}
	return globalConfig
}

// SetConfig sets the global configuration.
func SetConfig(cfg *Config) {
	mu.Lock()
	defer mu.Unlock()
	globalConfig = cfg
}
