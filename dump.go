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
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/uptrace/bun"

	"github.com/tomoncle/rdsdemo/database"
	"github.com/tomoncle/rdsdemo/types"
)

// TableDump is a full snapshot of the three tables.
type TableDump struct {
	Users       []database.User
	Activity    []database.Activity
	Preferences []database.Preferences
}

// Snapshot reads every row of users, activity and preferences in one
// transaction.
func (a *App) Snapshot(ctx context.Context) (*TableDump, error) {
	dump := &TableDump{}
	err := a.Manager.WithConnection(ctx, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewSelect().Model(&dump.Users).Order("user_id").Scan(ctx); err != nil {
			return fmt.Errorf("select users: %w", err)
		}
		if err := tx.NewSelect().Model(&dump.Activity).Order("activity_id").Scan(ctx); err != nil {
			return fmt.Errorf("select activity: %w", err)
		}
		if err := tx.NewSelect().Model(&dump.Preferences).Order("user_id").Scan(ctx); err != nil {
			return fmt.Errorf("select preferences: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dump, nil
}

// Dump prints every row of the three tables as aligned columns.
func (a *App) Dump(ctx context.Context, w io.Writer) error {
	dump, err := a.Snapshot(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	demoHeader.Fprintln(tw, "\n=== USERS ===")
	fmt.Fprintln(tw, "user_id\temail\tfirst_name\tlast_name\tcreated_at")
	for _, u := range dump.Users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", u.UserID, u.Email, u.FirstName, u.LastName, types.NewTimestamp(u.CreatedAt))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	demoHeader.Fprintln(tw, "\n=== ACTIVITY ===")
	fmt.Fprintln(tw, "activity_id\tuser_id\tlogin_time\tlogin_count")
	for _, act := range dump.Activity {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", act.ActivityID, act.UserID, types.NewTimestamp(act.LoginTime), act.LoginCount)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	demoHeader.Fprintln(tw, "\n=== PREFERENCES ===")
	fmt.Fprintln(tw, "user_id\ttheme\tnotifications")
	for _, p := range dump.Preferences {
		fmt.Fprintf(tw, "%s\t%s\t%t\n", p.UserID, p.Theme, p.Notifications)
	}
	return tw.Flush()
}
