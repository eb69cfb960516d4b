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

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tomoncle/rdsdemo"
	"github.com/tomoncle/rdsdemo/database"
	"github.com/tomoncle/rdsdemo/utils"
)

var (
	version = "dev"
	commit  = "none"
)

var (
	configPath string
	envFile    string
	logLevel   string
	seedFile   string
	keepData   bool
)

var log = utils.NewLogger("RDSDEMO")

func main() {
	rootCmd := &cobra.Command{
		Use:           "rdsdemo",
		Short:         "Relational database access patterns over MySQL, PostgreSQL and SQLite",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnv()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the configuration")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "log level (trace, debug, info, warn, error)")

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the seed document into existing tables",
		RunE: withApp(func(ctx context.Context, app *rdsdemo.App) error {
			result, err := app.LoadSeedData(ctx, seedFile)
			if err != nil {
				return err
			}
			fmt.Printf("Loaded %d records\n", result.Total())
			return nil
		}),
	}
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "seed document (.json, .yaml or .yml)")

	demoCmd := &cobra.Command{
		Use:   "demo",
		Short: "Reset the schema, seed it and run every record operation",
		RunE: withApp(func(ctx context.Context, app *rdsdemo.App) error {
			return app.RunDemo(ctx, os.Stdout, rdsdemo.DemoOptions{SeedFile: seedFile, KeepData: keepData})
		}),
	}
	demoCmd.Flags().StringVarP(&seedFile, "file", "f", "", "seed document (.json, .yaml or .yml)")
	demoCmd.Flags().BoolVar(&keepData, "keep-data", false, "run against existing data without resetting the schema")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "setup",
			Short: "Drop and recreate users, activity and preferences",
			RunE: withApp(func(ctx context.Context, app *rdsdemo.App) error {
				if err := app.SetupSchema(ctx); err != nil {
					return err
				}
				for _, table := range []string{database.TableUsers, database.TableActivity, database.TablePreferences} {
					indexes, err := database.ListIndexes(ctx, app.Manager, table)
					if err != nil {
						return err
					}
					for _, idx := range indexes {
						fmt.Printf("%s: %s (%s)\n", table, idx.Name, strings.Join(idx.Columns, ", "))
					}
				}
				return nil
			}),
		},
		seedCmd,
		demoCmd,
		&cobra.Command{
			Use:   "view",
			Short: "Print every row of the three tables",
			RunE: withApp(func(ctx context.Context, app *rdsdemo.App) error {
				return app.Dump(ctx, os.Stdout)
			}),
		},
		&cobra.Command{
			Use:   "ping",
			Short: "Check connectivity and print pool statistics",
			RunE: withApp(func(ctx context.Context, app *rdsdemo.App) error {
				if err := app.Manager.Ping(ctx); err != nil {
					return err
				}
				stats := app.Manager.GetStats()
				fmt.Printf("%s reachable: open=%d in_use=%d idle=%d\n",
					app.Manager.Dialect(), stats.OpenConns, stats.InUse, stats.Idle)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("rdsdemo %s (commit: %s)\n", version, commit)
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Error("Command failed")
		os.Exit(1)
	}
}

func loadEnv() error {
	if envFile == "" {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", envFile, err)
	}
	return nil
}

// withApp loads the configuration, connects, runs fn and closes the
// connection. SIGINT and SIGTERM cancel the context.
func withApp(fn func(ctx context.Context, app *rdsdemo.App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := database.LoadConfig(configPath)
		if err != nil {
			return err
		}
		configureLogging(cfg)

		app, err := rdsdemo.NewApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := app.Close(); err != nil {
				log.WithError(err).Warn("Failed to close database")
			}
		}()
		return fn(ctx, app)
	}
}

func configureLogging(cfg *database.Config) {
	level := cfg.LogConfig.Level
	if logLevel != "" {
		level = logLevel
	}
	utils.ConfigureConsoleLogFormat(cfg.LogConfig.Format)
	utils.ConfigureLogLevel(level)
	if opts, ok := utils.FileLogOptionsFromEnv(); ok {
		utils.ConfigureFileLog(opts)
	}
}
