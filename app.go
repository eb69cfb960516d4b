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

// Package rdsdemo wires configuration, the connection manager and the record
// store into one application value, and provides the scripted walkthrough
// and table dump used by the command line.
package rdsdemo

import (
	"context"
	"fmt"

	"github.com/tomoncle/rdsdemo/database"
	"github.com/tomoncle/rdsdemo/repository"
)

// App owns a connected Manager and the Store built on it.
type App struct {
	Config  *database.Config
	Manager *database.Manager
	Store   *repository.Store
}

// NewApp connects using cfg. The caller must Close the returned App.
func NewApp(ctx context.Context, cfg *database.Config) (*App, error) {
	if cfg == nil {
		cfg = database.DefaultConfig()
	}
	m, err := database.Open(ctx, &cfg.ConnectionConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &App{
		Config:  cfg,
		Manager: m,
		Store:   repository.NewStore(m),
	}, nil
}

// OpenApp loads the YAML configuration at path, applies environment
// overrides and connects. An empty path uses defaults plus environment.
func OpenApp(ctx context.Context, path string) (*App, error) {
	cfg, err := database.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return NewApp(ctx, cfg)
}

// SetupSchema recreates the tables, destroying existing data.
func (a *App) SetupSchema(ctx context.Context) error {
	return database.SetupSchema(ctx, a.Manager)
}

// LoadSeedData inserts the document at path, or at the configured seed file
// when path is empty.
func (a *App) LoadSeedData(ctx context.Context, path string) (*database.SeedResult, error) {
	if path == "" {
		path = a.Config.SeedConfig.Filepath
	}
	return database.LoadSeedData(ctx, a.Manager, path)
}

func (a *App) Close() error {
	return a.Manager.Close()
}
