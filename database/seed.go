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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"gopkg.in/yaml.v3"

	"github.com/tomoncle/rdsdemo/types"
)

const opLoadSeed = "load seed data"

// SeedUser is one entry of the users collection.
type SeedUser struct {
	UserID    string `json:"user_id" yaml:"user_id" validate:"required,max=50"`
	Email     string `json:"email" yaml:"email" validate:"required,max=100"`
	FirstName string `json:"first_name" yaml:"first_name" validate:"max=50"`
	LastName  string `json:"last_name" yaml:"last_name" validate:"max=50"`
}

// SeedActivity is one entry of the activity collection. Omitted fields take
// the column defaults.
type SeedActivity struct {
	UserID     string          `json:"user_id" yaml:"user_id" validate:"required,max=50"`
	LoginTime  types.Timestamp `json:"login_time" yaml:"login_time"`
	LoginCount *int            `json:"login_count" yaml:"login_count" validate:"omitempty,gte=0"`
}

// SeedPreferences is one entry of the preferences collection.
type SeedPreferences struct {
	UserID        string  `json:"user_id" yaml:"user_id" validate:"required,max=50"`
	Theme         *string `json:"theme" yaml:"theme" validate:"omitempty,max=20"`
	Notifications *bool   `json:"notifications" yaml:"notifications"`
}

// SeedData is a parsed seed document.
type SeedData struct {
	Users       []SeedUser        `json:"users" yaml:"users" validate:"dive"`
	Activity    []SeedActivity    `json:"activity" yaml:"activity" validate:"dive"`
	Preferences []SeedPreferences `json:"preferences" yaml:"preferences" validate:"dive"`
}

// SeedResult counts the rows inserted per table.
type SeedResult struct {
	Users       int
	Activity    int
	Preferences int
	Duration    time.Duration
}

func (r *SeedResult) Total() int {
	return r.Users + r.Activity + r.Preferences
}

// ReadSeedFile parses a seed document. Files ending in .yaml or .yml are
// read as YAML, everything else as JSON. A missing file yields ErrNotFound.
func ReadSeedFile(path string) (*SeedData, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, NewError(ErrNotFound, opLoadSeed, fmt.Errorf("file %s not found", path))
		}
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}
	format := "json"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	}
	return ParseSeedData(content, format)
}

// ParseSeedData decodes content as "json" or "yaml".
func ParseSeedData(content []byte, format string) (*SeedData, error) {
	var data SeedData
	switch format {
	case "yaml":
		if err := yaml.Unmarshal(content, &data); err != nil {
			return nil, fmt.Errorf("failed to parse seed yaml: %w", err)
		}
	case "json":
		dec := json.NewDecoder(bytes.NewReader(content))
		if err := dec.Decode(&data); err != nil {
			return nil, fmt.Errorf("failed to parse seed json: %w", err)
		}
	default:
		return nil, NewError(ErrInvalidArgument, opLoadSeed, fmt.Errorf("unknown seed format %q", format))
	}
	return &data, nil
}

// LoadSeedData reads path and inserts its records in one transaction. A
// missing file is reported before any connection is opened.
func LoadSeedData(ctx context.Context, m *Manager, path string) (*SeedResult, error) {
	data, err := ReadSeedFile(path)
	if err != nil {
		m.Logger().Error("Failed to load seed data", "file", path, "error", err)
		return nil, err
	}
	result, err := InsertSeedData(ctx, m, data)
	if err != nil {
		return nil, err
	}
	m.Logger().Info("Loaded seed data", "file", path, "records", result.Total(), "duration", result.Duration)
	return result, nil
}

// Validate checks required fields and column lengths of every record.
func (d *SeedData) Validate() error {
	return validateStruct(opLoadSeed, d)
}

// InsertSeedData inserts users, then activity, then preferences. Any failure
// rolls back every row inserted by this call. Invalid records are rejected
// before a connection is acquired.
func InsertSeedData(ctx context.Context, m *Manager, data *SeedData) (*SeedResult, error) {
	if err := data.Validate(); err != nil {
		m.Logger().Error("Invalid seed data", "error", err)
		return nil, err
	}
	start := time.Now()
	result := &SeedResult{}
	err := m.WithConnection(ctx, func(ctx context.Context, tx bun.Tx) error {
		for i := range data.Users {
			if err := insertSeedUser(ctx, tx, &data.Users[i]); err != nil {
				return fmt.Errorf("users[%d]: %w", i, err)
			}
		}
		for i := range data.Activity {
			if err := insertSeedActivity(ctx, tx, &data.Activity[i]); err != nil {
				return fmt.Errorf("activity[%d]: %w", i, err)
			}
		}
		for i := range data.Preferences {
			if err := insertSeedPreferences(ctx, tx, &data.Preferences[i]); err != nil {
				return fmt.Errorf("preferences[%d]: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		err = TransactionError(opLoadSeed, err)
		m.Logger().Error("Failed to insert seed data", "error", err)
		return nil, err
	}
	result.Users = len(data.Users)
	result.Activity = len(data.Activity)
	result.Preferences = len(data.Preferences)
	result.Duration = time.Since(start)
	return result, nil
}

func insertSeedUser(ctx context.Context, tx bun.Tx, u *SeedUser) error {
	user := &User{
		UserID:    u.UserID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
	_, err := tx.NewInsert().
		Model(user).
		Column("user_id", "email", "first_name", "last_name").
		Exec(ctx)
	return err
}

func insertSeedActivity(ctx context.Context, tx bun.Tx, a *SeedActivity) error {
	activity := &Activity{UserID: a.UserID, LoginTime: a.LoginTime.Time}
	q := tx.NewInsert().
		Model(activity).
		Column("user_id", "login_time")
	if a.LoginCount != nil {
		// login_count carries a column default, so a zero must be bound explicitly.
		q = q.Column("login_count").Value("login_count", "?", *a.LoginCount)
	}
	_, err := q.Exec(ctx)
	return err
}

func insertSeedPreferences(ctx context.Context, tx bun.Tx, p *SeedPreferences) error {
	q := tx.NewInsert().
		Model(&Preferences{UserID: p.UserID}).
		Column("user_id")
	if p.Theme != nil {
		q = q.Column("theme").Value("theme", "?", *p.Theme)
	}
	if p.Notifications != nil {
		q = q.Column("notifications").Value("notifications", "?", *p.Notifications)
	}
	_, err := q.Exec(ctx)
	return err
}
