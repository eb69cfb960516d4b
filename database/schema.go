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
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/uptrace/bun"
)

// SetupSchema drops and recreates users, activity and preferences together
// with their foreign keys and indexes. Existing data is destroyed. It must
// not run concurrently with other operations.
func SetupSchema(ctx context.Context, m *Manager) error {
	return SetupSchemaWith(ctx, m, DefaultRegistry())
}

// SetupSchemaWith is SetupSchema for an arbitrary registry. Tables are
// dropped children first and created parents first, following Priority.
func SetupSchemaWith(ctx context.Context, m *Manager, registry ModelRegistry) error {
	models := registry.Models()
	for _, model := range models {
		for _, fk := range model.ForeignKeys() {
			if err := fk.Validate(); err != nil {
				return NewError(ErrInvalidArgument, "setup schema", err)
			}
		}
	}

	tables := make([]string, 0, len(models))
	err := m.WithConnection(ctx, func(ctx context.Context, tx bun.Tx) error {
		for i := len(models) - 1; i >= 0; i-- {
			if err := dropTable(ctx, tx, models[i]); err != nil {
				return err
			}
		}
		for _, model := range models {
			if err := createTable(ctx, tx, model); err != nil {
				return err
			}
			name, _ := resolveTableName(model.Instance())
			tables = append(tables, name)
		}
		return nil
	})
	if err != nil {
		m.Logger().Error("Failed to create database schema", "error", err)
		return err
	}
	m.Logger().Info("Created database schema", "tables", strings.Join(tables, ", "))
	return nil
}

func dropTable(ctx context.Context, tx bun.Tx, model SQLModel) error {
	_, err := tx.NewDropTable().
		Model(model.Instance()).
		IfExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to drop table %T: %w", model.Instance(), err)
	}
	return nil
}

func createTable(ctx context.Context, tx bun.Tx, model SQLModel) error {
	q := tx.NewCreateTable().Model(model.Instance())
	for _, fk := range model.ForeignKeys() {
		q = q.ForeignKey(fk.Clause())
	}
	if _, err := q.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create table %T: %w", model.Instance(), err)
	}

	for _, idx := range model.Indexes() {
		iq := tx.NewCreateIndex().
			Model(model.Instance()).
			Index(idx.Name).
			Column(idx.Columns...)
		if idx.Unique {
			iq = iq.Unique()
		}
		if _, err := iq.Exec(ctx); err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.Name, err)
		}
	}
	return nil
}

// resolveTableName reads the table name from the bun.BaseModel tag.
func resolveTableName(model interface{}) (string, error) {
	t := reflect.TypeOf(model)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Type.Name() == "BaseModel" && strings.Contains(f.Type.PkgPath(), "uptrace/bun") {
			for _, part := range strings.Split(f.Tag.Get("bun"), ",") {
				part = strings.TrimSpace(part)
				if strings.HasPrefix(part, "table:") {
					return strings.TrimPrefix(part, "table:"), nil
				}
			}
		}
	}
	return "", fmt.Errorf("missing table tag on bun.BaseModel in %s", t.Name())
}
