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
	"time"

	"github.com/uptrace/bun"
)

const (
	TableUsers       = "users"
	TableActivity    = "activity"
	TablePreferences = "preferences"

	DefaultTheme         = "light"
	DefaultNotifications = true
)

// User is a row of the users table. CreatedAt is assigned by the server.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	UserID    string    `bun:"user_id,pk,type:varchar(50)" json:"user_id" yaml:"user_id"`
	Email     string    `bun:"email,notnull,unique,type:varchar(100)" json:"email" yaml:"email"`
	FirstName string    `bun:"first_name,type:varchar(50)" json:"first_name" yaml:"first_name"`
	LastName  string    `bun:"last_name,type:varchar(50)" json:"last_name" yaml:"last_name"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at" yaml:"created_at"`
}

// Activity is one login record of a user.
type Activity struct {
	bun.BaseModel `bun:"table:activity,alias:a"`

	ActivityID int64     `bun:"activity_id,pk,autoincrement" json:"activity_id" yaml:"activity_id"`
	UserID     string    `bun:"user_id,notnull,type:varchar(50)" json:"user_id" yaml:"user_id"`
	LoginTime  time.Time `bun:"login_time,nullzero,notnull,default:current_timestamp" json:"login_time" yaml:"login_time"`
	LoginCount int       `bun:"login_count,notnull,default:1" json:"login_count" yaml:"login_count"`
}

var _ bun.BeforeAppendModelHook = (*Activity)(nil)

// BeforeAppendModel stamps LoginTime on insert when it is unset. SQLite's
// CURRENT_TIMESTAMP text differs from the layout bun binds for time values,
// so the column is always written by the application.
func (a *Activity) BeforeAppendModel(_ context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok && a.LoginTime.IsZero() {
		a.LoginTime = time.Now().UTC().Truncate(time.Second)
	}
	return nil
}

// Preferences holds per-user settings; at most one row per user.
type Preferences struct {
	bun.BaseModel `bun:"table:preferences,alias:p"`

	UserID        string `bun:"user_id,pk,type:varchar(50)" json:"user_id" yaml:"user_id"`
	Theme         string `bun:"theme,notnull,type:varchar(20),default:'light'" json:"theme" yaml:"theme"`
	Notifications bool   `bun:"notifications,notnull,default:true" json:"notifications" yaml:"notifications"`
}

func init() {
	cascade := func(table string) ForeignKeyConstraint {
		return ForeignKeyConstraint{
			Table:           table,
			Column:          "user_id",
			ReferenceTable:  TableUsers,
			ReferenceColumn: "user_id",
			OnDelete:        "CASCADE",
		}
	}

	RegisteredModel(NewModelAdapter((*User)(nil), 1).
		WithIndex(IndexSpec{Name: "idx_email", Columns: []string{"email"}}))
	RegisteredModel(NewModelAdapter((*Activity)(nil), 2).
		WithForeignKey(cascade(TableActivity)).
		WithIndex(IndexSpec{Name: "idx_user_time", Columns: []string{"user_id", "login_time"}}))
	RegisteredModel(NewModelAdapter((*Preferences)(nil), 3).
		WithForeignKey(cascade(TablePreferences)))
}
