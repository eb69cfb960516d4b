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

package repository

import (
	"context"
	"time"

	"github.com/tomoncle/rdsdemo/database"
)

// DefaultIncrement is the login_count increment used when callers have no
// preference.
const DefaultIncrement = 1

// ErrNoUpdates is returned by UpdatePreferences when no field was provided.
var ErrNoUpdates = database.NewError(database.ErrInvalidArgument, "update preferences", errNoFields)

// UserWithPreferences is a user joined with its optional preferences row.
// Theme and Notifications are nil when the user has no preferences.
type UserWithPreferences struct {
	UserID        string  `bun:"user_id" json:"user_id"`
	Email         string  `bun:"email" json:"email"`
	FirstName     string  `bun:"first_name" json:"first_name"`
	LastName      string  `bun:"last_name" json:"last_name"`
	Theme         *string `bun:"theme" json:"theme"`
	Notifications *bool   `bun:"notifications" json:"notifications"`
}

// ActivitySummary aggregates the activity rows of one user. LastLogin is nil
// for users without activity.
type ActivitySummary struct {
	UserID          string     `bun:"user_id" json:"user_id"`
	FirstName       string     `bun:"first_name" json:"first_name"`
	LastName        string     `bun:"last_name" json:"last_name"`
	TotalActivities int64      `bun:"total_activities" json:"total_activities"`
	TotalLogins     int64      `bun:"total_logins" json:"total_logins"`
	LastLogin       *time.Time `bun:"last_login" json:"last_login"`
}

// ActivityRange bounds GetUserActivity. Both ends are inclusive and either
// may be nil.
type ActivityRange struct {
	Start *time.Time
	End   *time.Time
}

// PreferencesUpdate lists the preference fields to change. Nil fields are
// left untouched.
type PreferencesUpdate struct {
	Theme         *string
	Notifications *bool
}

func (u PreferencesUpdate) empty() bool {
	return u.Theme == nil && u.Notifications == nil
}

// NewUser carries the caller supplied columns of a users row.
type NewUser struct {
	UserID    string
	Email     string
	FirstName string
	LastName  string
}

// NewUserWithPreferences is the input of CreateUserWithPreferences. An empty
// Theme and a nil Notifications take the column defaults.
type NewUserWithPreferences struct {
	NewUser
	Theme         string
	Notifications *bool
}

// NewUserWithDefaults returns input carrying the default theme and
// notification setting.
func NewUserWithDefaults(user NewUser) NewUserWithPreferences {
	notifications := database.DefaultNotifications
	return NewUserWithPreferences{
		NewUser:       user,
		Theme:         database.DefaultTheme,
		Notifications: &notifications,
	}
}

// Repository is the set of record operations. Every call uses its own
// connection and transaction.
type Repository interface {
	CreateUser(ctx context.Context, userID, email, firstName, lastName string) error
	GetUser(ctx context.Context, userID string) (*database.User, error)
	GetUserWithPreferences(ctx context.Context, userID string) (*UserWithPreferences, error)
	GetUserActivity(ctx context.Context, userID string, r ActivityRange) ([]database.Activity, error)
	UpdateLoginCount(ctx context.Context, userID string, activityID int64, increment int) (int64, error)
	UpdatePreferences(ctx context.Context, userID string, update PreferencesUpdate) (*UserWithPreferences, error)
	SearchUsersByEmail(ctx context.Context, substring string) ([]database.User, error)
	GetActivitySummary(ctx context.Context) ([]ActivitySummary, error)
	DeleteUser(ctx context.Context, userID string) (bool, error)
	CreateUserWithPreferences(ctx context.Context, in NewUserWithPreferences) error
	BatchGetUsers(ctx context.Context, userIDs []string) ([]database.User, error)
}
