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
	"sort"
	"sync"
)

var defaultRegistry = newModelRegistry()

// IndexSpec is a secondary index created after its table.
type IndexSpec struct {
	Name    string
	Columns []string
	Unique  bool
}

// SQLModel is a table known to the schema initializer. Instance returns a
// Bun model pointer. Priority is the dependency order: parents have lower
// values, are created first and dropped last.
type SQLModel interface {
	Instance() interface{}
	Priority() int
	ForeignKeys() []ForeignKeyConstraint
	Indexes() []IndexSpec
}

// ModelRegistry stores SQL models and exposes them in a deterministic order.
type ModelRegistry interface {
	Register(model SQLModel)
	Models() []SQLModel
}

type modelRegistry struct {
	models []SQLModel
	mutex  sync.RWMutex
}

func newModelRegistry() ModelRegistry {
	return &modelRegistry{
		models: make([]SQLModel, 0),
	}
}

// NewModelRegistry returns an empty registry, for schemas other than the
// default one.
func NewModelRegistry() ModelRegistry {
	return newModelRegistry()
}

func (r *modelRegistry) Register(model SQLModel) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.models = append(r.models, model)
}

func (r *modelRegistry) Models() []SQLModel {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]SQLModel, len(r.models))
	copy(result, r.models)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Priority() < result[j].Priority()
	})
	return result
}

type ModelAdapter struct {
	instance    interface{}
	priority    int
	foreignKeys []ForeignKeyConstraint
	indexes     []IndexSpec
}

// NewModelAdapter wraps a model pointer and priority into an SQLModel.
func NewModelAdapter(instance interface{}, priority int) *ModelAdapter {
	return &ModelAdapter{
		instance: instance,
		priority: priority,
	}
}

// WithForeignKey adds a constraint rendered into the CREATE TABLE statement.
func (a *ModelAdapter) WithForeignKey(fk ForeignKeyConstraint) *ModelAdapter {
	a.foreignKeys = append(a.foreignKeys, fk)
	return a
}

// WithIndex adds an index created after the table.
func (a *ModelAdapter) WithIndex(idx IndexSpec) *ModelAdapter {
	a.indexes = append(a.indexes, idx)
	return a
}

func (a *ModelAdapter) Instance() interface{} { return a.instance }

func (a *ModelAdapter) Priority() int { return a.priority }

func (a *ModelAdapter) ForeignKeys() []ForeignKeyConstraint { return a.foreignKeys }

func (a *ModelAdapter) Indexes() []IndexSpec { return a.indexes }

// GetRegisteredModels returns the default registry's models sorted by
// ascending priority.
func GetRegisteredModels() []SQLModel {
	return defaultRegistry.Models()
}

// RegisteredModel adds a model to the default registry.
func RegisteredModel(model SQLModel) {
	defaultRegistry.Register(model)
}

// DefaultRegistry returns the registry holding users, activity and preferences.
func DefaultRegistry() ModelRegistry {
	return defaultRegistry
}
