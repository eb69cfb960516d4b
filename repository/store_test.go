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
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoncle/rdsdemo/database"
	"github.com/tomoncle/rdsdemo/types"
)

func ptr[T any](v T) *T { return &v }

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := types.ParseTimestamp(s)
	require.NoError(t, err)
	return ts.Time
}

func fixture(t *testing.T) *database.SeedData {
	at := func(s string) types.Timestamp { return types.NewTimestamp(mustTime(t, s)) }
	return &database.SeedData{
		Users: []database.SeedUser{
			{UserID: "user123", Email: "john.doe@example.com", FirstName: "John", LastName: "Doe"},
			{UserID: "user456", Email: "jane.smith@example.com", FirstName: "Jane", LastName: "Smith"},
			{UserID: "user789", Email: "alice.jones@example.com", FirstName: "Alice", LastName: "Jones"},
		},
		Activity: []database.SeedActivity{
			{UserID: "user123", LoginTime: at("2023-10-30 08:15:00"), LoginCount: ptr(1)},
			{UserID: "user123", LoginTime: at("2023-11-01 09:30:00"), LoginCount: ptr(3)},
			{UserID: "user123", LoginTime: at("2023-11-02 14:45:00"), LoginCount: ptr(2)},
			{UserID: "user456", LoginTime: at("2023-11-01 10:00:00"), LoginCount: ptr(5)},
			{UserID: "user789", LoginTime: at("2023-11-03 18:20:00")},
		},
		Preferences: []database.SeedPreferences{
			{UserID: "user123", Theme: ptr("dark"), Notifications: ptr(true)},
			{UserID: "user456", Theme: ptr("light"), Notifications: ptr(false)},
		},
	}
}

func sqliteConfig(t *testing.T) *database.ConnectionConfig {
	cfg := database.DefaultConnectionConfig()
	cfg.Type = database.TypeSQLite
	cfg.DBName = filepath.Join(t.TempDir(), "store")
	return cfg
}

// newTestStore returns a Store over a fresh SQLite file holding the fixture.
func newTestStore(t *testing.T) (*Store, *database.Manager) {
	t.Helper()
	ctx := context.Background()
	m, err := database.Open(ctx, sqliteConfig(t))
	require.NoError(t, err)
	m.SetLogger(database.NopLogger())
	t.Cleanup(func() { _ = m.Close() })

	require.NoError(t, database.SetupSchema(ctx, m))
	_, err = database.InsertSeedData(ctx, m, fixture(t))
	require.NoError(t, err)
	return NewStore(m), m
}

func TestCreateAndGetUser(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, "u1", "a@x.com", "A", "B"))

	user, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "u1", user.UserID)
	assert.Equal(t, "a@x.com", user.Email)
	assert.Equal(t, "A", user.FirstName)
	assert.Equal(t, "B", user.LastName)
	assert.False(t, user.CreatedAt.IsZero())
}

func TestGetUserMissing(t *testing.T) {
	store, _ := newTestStore(t)

	user, err := store.GetUser(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestCreateUserDuplicate(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	err := store.CreateUser(ctx, "user123", "other@example.com", "X", "Y")
	assert.ErrorIs(t, err, database.ErrDuplicateKey)

	err = store.CreateUser(ctx, "fresh", "john.doe@example.com", "X", "Y")
	assert.ErrorIs(t, err, database.ErrDuplicateKey)

	user, err := store.GetUser(ctx, "fresh")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestGetUserWithPreferences(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	view, err := store.GetUserWithPreferences(ctx, "user123")
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, "john.doe@example.com", view.Email)
	require.NotNil(t, view.Theme)
	assert.Equal(t, "dark", *view.Theme)
	require.NotNil(t, view.Notifications)
	assert.True(t, *view.Notifications)

	// user789 has no preferences row
	view, err = store.GetUserWithPreferences(ctx, "user789")
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, "Alice", view.FirstName)
	assert.Nil(t, view.Theme)
	assert.Nil(t, view.Notifications)

	view, err = store.GetUserWithPreferences(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, view)
}

func TestGetUserActivityRange(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	all, err := store.GetUserActivity(ctx, "user123", ActivityRange{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].LoginTime.Before(all[i-1].LoginTime), "activity must be ordered by login_time")
	}

	start := mustTime(t, "2023-10-31")
	since, err := store.GetUserActivity(ctx, "user123", ActivityRange{Start: &start})
	require.NoError(t, err)
	require.Len(t, since, 2)
	assert.Equal(t, 3, since[0].LoginCount)
	assert.Equal(t, 2, since[1].LoginCount)

	end := mustTime(t, "2023-11-01 09:30:00")
	window, err := store.GetUserActivity(ctx, "user123", ActivityRange{Start: &start, End: &end})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.True(t, window[0].LoginTime.Equal(end))

	none, err := store.GetUserActivity(ctx, "nobody", ActivityRange{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetUserActivityBoundsOnDefaultTime(t *testing.T) {
	store, m := newTestStore(t)
	ctx := context.Background()

	_, err := database.InsertSeedData(ctx, m, &database.SeedData{
		Users:    []database.SeedUser{{UserID: "user555", Email: "user555@example.com"}},
		Activity: []database.SeedActivity{{UserID: "user555"}},
	})
	require.NoError(t, err)

	acts, err := store.GetUserActivity(ctx, "user555", ActivityRange{})
	require.NoError(t, err)
	require.Len(t, acts, 1)
	at := acts[0].LoginTime
	assert.False(t, at.IsZero())

	window, err := store.GetUserActivity(ctx, "user555", ActivityRange{Start: &at, End: &at})
	require.NoError(t, err)
	require.Len(t, window, 1, "bounds are inclusive")

	summary, err := store.GetActivitySummary(ctx)
	require.NoError(t, err)
	for _, row := range summary {
		if row.UserID == "user555" {
			require.NotNil(t, row.LastLogin)
			assert.True(t, at.Equal(*row.LastLogin))
		}
	}
}

func TestUpdateLoginCount(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	acts, err := store.GetUserActivity(ctx, "user123", ActivityRange{})
	require.NoError(t, err)
	first := acts[0]

	n, err := store.UpdateLoginCount(ctx, "user123", first.ActivityID, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	acts, err = store.GetUserActivity(ctx, "user123", ActivityRange{})
	require.NoError(t, err)
	assert.Equal(t, first.LoginCount+2, acts[0].LoginCount)

	// activity belongs to a different user
	n, err = store.UpdateLoginCount(ctx, "user456", first.ActivityID, DefaultIncrement)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = store.UpdateLoginCount(ctx, "user123", 99999, DefaultIncrement)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpdateLoginCountConcurrent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	acts, err := store.GetUserActivity(ctx, "user456", ActivityRange{})
	require.NoError(t, err)
	require.Len(t, acts, 1)
	target := acts[0]

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.UpdateLoginCount(ctx, "user456", target.ActivityID, DefaultIncrement); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	acts, err = store.GetUserActivity(ctx, "user456", ActivityRange{})
	require.NoError(t, err)
	assert.Equal(t, target.LoginCount+workers, acts[0].LoginCount)
}

func TestUpdatePreferences(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	view, err := store.UpdatePreferences(ctx, "user456", PreferencesUpdate{Theme: ptr("purple")})
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, "purple", *view.Theme)
	assert.False(t, *view.Notifications, "untouched field keeps its value")

	view, err = store.UpdatePreferences(ctx, "user456", PreferencesUpdate{Theme: ptr("dark"), Notifications: ptr(true)})
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, "dark", *view.Theme)
	assert.True(t, *view.Notifications)

	view, err = store.UpdatePreferences(ctx, "user789", PreferencesUpdate{Theme: ptr("dark")})
	require.NoError(t, err)
	assert.Nil(t, view)
}

func TestNoConnectionNeeded(t *testing.T) {
	// The manager is never connected: these calls must return before
	// acquiring a connection.
	store := NewStore(database.NewManager(sqliteConfig(t)))
	ctx := context.Background()

	view, err := store.UpdatePreferences(ctx, "user123", PreferencesUpdate{})
	assert.Nil(t, view)
	assert.ErrorIs(t, err, ErrNoUpdates)
	assert.ErrorIs(t, err, database.ErrInvalidArgument)

	users, err := store.BatchGetUsers(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, users)

	_, err = store.GetUser(ctx, "user123")
	assert.ErrorIs(t, err, database.ErrNotConnected)
}

func TestSearchUsersByEmail(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, "u1", "a@x.com", "A", "B"))
	require.NoError(t, store.CreateUser(ctx, "u2", "b@xycom.org", "C", "D"))
	require.NoError(t, store.CreateUser(ctx, "u3", "100%off@shop.org", "E", "F"))
	require.NoError(t, store.CreateUser(ctx, "u4", "first_last@shop.org", "G", "H"))
	require.NoError(t, store.CreateUser(ctx, "u5", "wow!@shop.org", "I", "J"))

	users, err := store.SearchUsersByEmail(ctx, "example.com")
	require.NoError(t, err)
	assert.Len(t, users, 3)

	users, err = store.SearchUsersByEmail(ctx, "x.com")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "u1", users[0].UserID)

	cases := map[string]string{"%": "u3", "_": "u4", "!": "u5"}
	for substring, want := range cases {
		users, err := store.SearchUsersByEmail(ctx, substring)
		require.NoError(t, err)
		require.Len(t, users, 1, "substring %q", substring)
		assert.Equal(t, want, users[0].UserID)
	}

	users, err = store.SearchUsersByEmail(ctx, "nothing-matches")
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestGetActivitySummary(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateUser(ctx, "user000", "idle@example.com", "Idle", "User"))

	summary, err := store.GetActivitySummary(ctx)
	require.NoError(t, err)
	require.Len(t, summary, 4)

	ids := make([]string, len(summary))
	for i, row := range summary {
		ids[i] = row.UserID
	}
	assert.Equal(t, []string{"user123", "user456", "user789", "user000"}, ids)

	assert.Equal(t, int64(3), summary[0].TotalActivities)
	assert.Equal(t, int64(6), summary[0].TotalLogins)
	require.NotNil(t, summary[0].LastLogin)
	assert.True(t, summary[0].LastLogin.Equal(mustTime(t, "2023-11-02 14:45:00")))

	assert.Equal(t, int64(1), summary[2].TotalLogins, "login_count falls back to its default")

	idle := summary[3]
	assert.Zero(t, idle.TotalActivities)
	assert.Zero(t, idle.TotalLogins)
	assert.Nil(t, idle.LastLogin)
}

func TestDeleteUserCascades(t *testing.T) {
	store, m := newTestStore(t)
	ctx := context.Background()

	deleted, err := store.DeleteUser(ctx, "user123")
	require.NoError(t, err)
	assert.True(t, deleted)

	user, err := store.GetUser(ctx, "user123")
	require.NoError(t, err)
	assert.Nil(t, user)

	acts, err := store.GetUserActivity(ctx, "user123", ActivityRange{})
	require.NoError(t, err)
	assert.Empty(t, acts)

	prefs, err := m.GetDB().NewSelect().
		Model((*database.Preferences)(nil)).
		Where("user_id = ?", "user123").
		Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, prefs)

	deleted, err = store.DeleteUser(ctx, "user123")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestCreateUserWithPreferences(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	err := store.CreateUserWithPreferences(ctx, NewUserWithDefaults(NewUser{
		UserID: "user888", Email: "user888@example.com", FirstName: "Charlie", LastName: "Brown",
	}))
	require.NoError(t, err)

	view, err := store.GetUserWithPreferences(ctx, "user888")
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, database.DefaultTheme, *view.Theme)
	assert.Equal(t, database.DefaultNotifications, *view.Notifications)

	err = store.CreateUserWithPreferences(ctx, NewUserWithPreferences{
		NewUser: NewUser{UserID: "user123", Email: "someone@example.com"},
		Theme:   "dark",
	})
	assert.ErrorIs(t, err, database.ErrTransactionFailure)
	assert.ErrorIs(t, err, database.ErrDuplicateKey)
}

func TestCreateUserWithPreferencesKeepsFalse(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	err := store.CreateUserWithPreferences(ctx, NewUserWithPreferences{
		NewUser:       NewUser{UserID: "user901", Email: "user901@example.com"},
		Theme:         "dark",
		Notifications: ptr(false),
	})
	require.NoError(t, err)
	view, err := store.GetUserWithPreferences(ctx, "user901")
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, "dark", *view.Theme)
	assert.False(t, *view.Notifications)

	// unset fields take the defaults
	err = store.CreateUserWithPreferences(ctx, NewUserWithPreferences{
		NewUser: NewUser{UserID: "user902", Email: "user902@example.com"},
	})
	require.NoError(t, err)
	view, err = store.GetUserWithPreferences(ctx, "user902")
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, database.DefaultTheme, *view.Theme)
	assert.Equal(t, database.DefaultNotifications, *view.Notifications)
}

func TestCreateUserWithPreferencesRollsBack(t *testing.T) {
	store, m := newTestStore(t)
	ctx := context.Background()

	_, err := m.GetDB().ExecContext(ctx, `CREATE TRIGGER reject_preferences BEFORE INSERT ON preferences
		BEGIN SELECT RAISE(ABORT, 'preferences rejected'); END`)
	require.NoError(t, err)

	err = store.CreateUserWithPreferences(ctx, NewUserWithPreferences{
		NewUser:       NewUser{UserID: "user777", Email: "user777@example.com", FirstName: "Lucy", LastName: "Van Pelt"},
		Theme:         "dark",
		Notifications: ptr(true),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, database.ErrTransactionFailure)
	assert.Contains(t, err.Error(), "preferences rejected")

	user, err := store.GetUser(ctx, "user777")
	require.NoError(t, err)
	assert.Nil(t, user, "user insert must be rolled back with the failed preferences insert")
}

func TestBatchGetUsers(t *testing.T) {
	store, _ := newTestStore(t)

	users, err := store.BatchGetUsers(context.Background(), []string{"user123", "user456", "nobody"})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "user123", users[0].UserID)
	assert.Equal(t, "user456", users[1].UserID)
}
