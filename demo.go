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

package rdsdemo

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/tomoncle/rdsdemo/database"
	"github.com/tomoncle/rdsdemo/repository"
	"github.com/tomoncle/rdsdemo/types"
)

// DemoOptions adjusts RunDemo.
type DemoOptions struct {
	// SeedFile overrides the configured seed document.
	SeedFile string
	// KeepData skips the schema reset and the seed load, running the
	// operations against whatever the database already holds. The
	// transactional step then uses a fresh user id so it can commit.
	KeepData bool
}

var demoHeader = color.New(color.FgCyan, color.Bold)

func step(w io.Writer, n int, title string) {
	demoHeader.Fprintf(w, "\n=== %d. %s ===\n", n, title)
}

// RunDemo walks through every record operation, printing what each returns.
// Expected failures, such as the duplicate user on a rerun, are reported and
// skipped. Anything else aborts the run.
func (a *App) RunDemo(ctx context.Context, w io.Writer, opts DemoOptions) error {
	store := a.Store

	if !opts.KeepData {
		step(w, 0, "SETUP DATABASE")
		if err := a.SetupSchema(ctx); err != nil {
			return err
		}

		step(w, 1, "LOAD SEED DATA")
		result, err := a.LoadSeedData(ctx, opts.SeedFile)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "   Loaded %d records (%d users, %d activity, %d preferences)\n",
			result.Total(), result.Users, result.Activity, result.Preferences)
	}

	step(w, 2, "CREATE USER")
	err := store.CreateUser(ctx, "user999", "user999@example.com", "Bob", "Williams")
	switch {
	case errors.Is(err, database.ErrDuplicateKey):
		fmt.Fprintln(w, "   user999 already exists")
	case err != nil:
		return err
	default:
		fmt.Fprintln(w, "   Created user999")
	}

	step(w, 3, "GET USER")
	user, err := store.GetUser(ctx, "user123")
	if err != nil {
		return err
	}
	if user != nil {
		fmt.Fprintf(w, "   User: %s %s (%s)\n", user.FirstName, user.LastName, user.Email)
	}

	step(w, 4, "GET USER WITH JOIN")
	view, err := store.GetUserWithPreferences(ctx, "user123")
	if err != nil {
		return err
	}
	if view != nil {
		fmt.Fprintf(w, "   Theme: %s, Notifications: %s\n", optional(view.Theme), optional(view.Notifications))
	}

	step(w, 5, "QUERY ACTIVITY")
	since, err := types.ParseTimestamp("2023-10-31")
	if err != nil {
		return err
	}
	activities, err := store.GetUserActivity(ctx, "user123", repository.ActivityRange{Start: since.Ptr()})
	if err != nil {
		return err
	}
	for _, act := range activities {
		fmt.Fprintf(w, "   - %s: %d logins\n", types.NewTimestamp(act.LoginTime), act.LoginCount)
	}

	step(w, 6, "UPDATE LOGIN COUNT")
	if len(activities) > 0 {
		n, err := store.UpdateLoginCount(ctx, "user123", activities[0].ActivityID, 2)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "   %d row(s) updated\n", n)
	}

	step(w, 7, "UPDATE PREFERENCES")
	theme, notifications := "purple", true
	updated, err := store.UpdatePreferences(ctx, "user456", repository.PreferencesUpdate{
		Theme:         &theme,
		Notifications: &notifications,
	})
	if err != nil {
		return err
	}
	if updated != nil {
		fmt.Fprintf(w, "   New theme: %s\n", optional(updated.Theme))
	}

	step(w, 8, "SEARCH BY EMAIL")
	users, err := store.SearchUsersByEmail(ctx, "example.com")
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "   Found %d users with 'example.com'\n", len(users))

	step(w, 9, "ACTIVITY SUMMARY")
	summary, err := store.GetActivitySummary(ctx)
	if err != nil {
		return err
	}
	for _, row := range summary {
		fmt.Fprintf(w, "   - %s: %d total logins\n", row.FirstName, row.TotalLogins)
	}

	step(w, 10, "TRANSACTION")
	userID := "user888"
	if opts.KeepData {
		userID = "user-" + uuid.NewString()
	}
	off := false
	err = store.CreateUserWithPreferences(ctx, repository.NewUserWithPreferences{
		NewUser: repository.NewUser{
			UserID:    userID,
			Email:     userID + "@example.com",
			FirstName: "Charlie",
			LastName:  "Brown",
		},
		Theme:         "dark",
		Notifications: &off,
	})
	switch {
	case errors.Is(err, database.ErrTransactionFailure):
		fmt.Fprintf(w, "   Rolled back: %v\n", err)
	case err != nil:
		return err
	default:
		fmt.Fprintf(w, "   Created %s with preferences\n", userID)
	}

	step(w, 11, "BATCH GET")
	batch, err := store.BatchGetUsers(ctx, []string{"user123", "user456", "user789"})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "   Retrieved %d users\n", len(batch))

	step(w, 12, "DELETE USER")
	deleted, err := store.DeleteUser(ctx, "user999")
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "   Deleted: %t\n", deleted)
	return nil
}

func optional[T any](v *T) string {
	if v == nil {
		return "<none>"
	}
	return fmt.Sprint(*v)
}
