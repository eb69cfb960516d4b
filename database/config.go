/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tomoncle/rdsdemo/utils"
)

// LoadConfig reads a YAML configuration file on top of DefaultConfig and then
// applies environment overrides. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	OverrideFromEnv(&cfg.ConnectionConfig)
	if seed := os.Getenv("DB_SEED_FILE"); seed != "" {
		cfg.SeedConfig.Filepath = seed
	}
	cfg.LogConfig.Level = utils.EnvDefaultString("LOG_LEVEL", cfg.LogConfig.Level)
	cfg.LogConfig.Format = utils.EnvDefaultString("CONSOLE_LOG_FORMAT", cfg.LogConfig.Format)

	if err := cfg.ConnectionConfig.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OverrideFromEnv overrides configuration values from environment variables.
func OverrideFromEnv(cfg *ConnectionConfig) {
	if typ := os.Getenv("DB_TYPE"); typ != "" {
		cfg.Type = typ
	}
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Host = host
	}
	if port, ok := utils.EnvInt("DB_PORT"); ok {
		cfg.Port = port
	}
	// DB_USER is accepted for compatibility with the classic DB_* naming.
	if username := utils.EnvDefaultString("DB_USERNAME", os.Getenv("DB_USER")); username != "" {
		cfg.Username = username
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if dbname := os.Getenv("DB_NAME"); dbname != "" {
		cfg.DBName = dbname
	}
	if sslmode := os.Getenv("DB_SSLMODE"); sslmode != "" {
		cfg.SSLMode = sslmode
	}
	if maxIdle, ok := utils.EnvInt("DB_MAX_IDLE_CONNS"); ok {
		cfg.MaxIdleConns = maxIdle
	}
	if maxOpen, ok := utils.EnvInt("DB_MAX_OPEN_CONNS"); ok {
		cfg.MaxOpenConns = maxOpen
	}
	if lifetime, ok := utils.EnvSeconds("DB_CONN_MAX_LIFETIME"); ok {
		cfg.ConnMaxLifetime = lifetime
	}
	cfg.EnableQueryLog = utils.EnvDefaultBool("DB_ENABLE_QUERY_LOG", cfg.EnableQueryLog)
}

// Validate reports configuration that cannot produce a working connection.
func (c *ConnectionConfig) Validate() error {
	if !slices.Contains(supportedTypes, normalizeType(c.Type)) {
		return NewError(ErrUnsupportedDatabase, "validate config", fmt.Errorf("%q, supported types: %v", c.Type, supportedTypes))
	}
	if c.DBName == "" {
		return NewError(ErrInvalidArgument, "validate config", fmt.Errorf("database name cannot be empty"))
	}
	if normalizeType(c.Type) != TypeSQLite && c.Host == "" {
		return NewError(ErrInvalidArgument, "validate config", fmt.Errorf("database host cannot be empty for %s", c.Type))
	}
	return validateStruct("validate config", c)
}

func normalizeType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	switch t {
	case "postgresql":
		return TypePostgres
	case "sqlite3":
		return TypeSQLite
	default:
		return t
	}
}
