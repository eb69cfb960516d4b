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
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/tomoncle/rdsdemo/database"
	"github.com/tomoncle/rdsdemo/types"
)

var userColumns = []string{"user_id", "email", "first_name", "last_name"}

// Store implements Repository on top of a database.Manager.
type Store struct {
	manager *database.Manager
}

var _ Repository = (*Store)(nil)

// NewStore returns a Store issuing every operation through m.
func NewStore(m *database.Manager) *Store {
	return &Store{manager: m}
}

func (s *Store) logger() database.Logger {
	return s.manager.Logger()
}

// CreateUser inserts a users row. A duplicate user_id or email yields
// database.ErrDuplicateKey.
func (s *Store) CreateUser(ctx context.Context, userID, email, firstName, lastName string) error {
	const op = "create user"
	err := s.manager.WithConnection(ctx, func(ctx context.Context, tx bun.Tx) error {
		return insertUser(ctx, tx, NewUser{UserID: userID, Email: email, FirstName: firstName, LastName: lastName})
	})
	if err != nil {
		err = database.ClassifyError(op, err)
		s.logger().Warn("Failed to create user", "user_id", userID, "error", err)
		return err
	}
	s.logger().Info("Created user", "user_id", userID)
	return nil
}

// GetUser returns the user or nil when no row matches.
func (s *Store) GetUser(ctx context.Context, userID string) (*database.User, error) {
	var user *database.User
	err := s.manager.WithConnection(ctx, func(ctx context.Context, tx bun.Tx) error {
		row := new(database.User)
		err := tx.NewSelect().
			Model(row).
			Column(userColumns...).
			Column("created_at").
			Where("user_id = ?", userID).
			Limit(1).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		user = row
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}
	return user, nil
}

// GetUserWithPreferences joins the user with its preferences. It returns nil
// when the user does not exist.
func (s *Store) GetUserWithPreferences(ctx context.Context, userID string) (*UserWithPreferences, error) {
	var view *UserWithPreferences
	err := s.manager.WithConnection(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		view, err = selectUserWithPreferences(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get user with preferences %s: %w", userID, err)
	}
	return view, nil
}

func selectUserWithPreferences(ctx context.Context, tx bun.Tx, userID string) (*UserWithPreferences, error) {
	view := new(UserWithPreferences)
	err := tx.NewSelect().
		Model((*database.User)(nil)).
		ColumnExpr("u.user_id, u.email, u.first_name, u.last_name").
		ColumnExpr("p.theme, p.notifications").
		Join("LEFT JOIN preferences AS p ON p.user_id = u.user_id").
		Where("u.user_id = ?", userID).
		Limit(1).
		Scan(ctx, view)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return view, nil
}

// GetUserActivity lists the user's activity ordered by login_time.
func (s *Store) GetUserActivity(ctx context.Context, userID string, r ActivityRange) ([]database.Activity, error) {
	activities := make([]database.Activity, 0)
	err := s.manager.WithConnection(ctx, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewSelect().
			Model(&activities).
			Column("activity_id", "user_id", "login_time", "login_count")
		return applyFilters(q, r.filters(userID)).
			Order("login_time ASC", "activity_id ASC").
			Scan(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("get activity of %s: %w", userID, err)
	}
	return activities, nil
}

// UpdateLoginCount adds increment to one activity row in a single statement,
// so concurrent callers never lose updates. It returns the number of rows
// matched; 0 means no such row and is not an error.
func (s *Store) UpdateLoginCount(ctx context.Context, userID string, activityID int64, increment int) (int64, error) {
	var affected int64
	err := s.manager.WithConnection(ctx, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*database.Activity)(nil)).
			Set("login_count = login_count + ?", increment).
			Where("user_id = ?", userID).
			Where("activity_id = ?", activityID).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, database.ClassifyError("update login count", err)
	}
	s.logger().Debug("Updated login count", "user_id", userID, "activity_id", activityID, "rows", affected)
	return affected, nil
}

// UpdatePreferences changes the provided preference fields and returns the
// refreshed joined view, or nil when the user has no preferences row.
func (s *Store) UpdatePreferences(ctx context.Context, userID string, update PreferencesUpdate) (*UserWithPreferences, error) {
	if update.empty() {
		return nil, ErrNoUpdates
	}
	var view *UserWithPreferences
	err := s.manager.WithConnection(ctx, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewUpdate().
			Model((*database.Preferences)(nil)).
			Where("user_id = ?", userID)
		res, err := update.apply(q).Exec(ctx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil || n == 0 {
			return err
		}
		view, err = selectUserWithPreferences(ctx, tx, userID)
		return err
	})
	if err != nil {
		err = database.ClassifyError("update preferences", err)
		s.logger().Warn("Failed to update preferences", "user_id", userID, "error", err)
		return nil, err
	}
	if view == nil {
		s.logger().Info("No preferences to update", "user_id", userID)
		return nil, nil
	}
	s.logger().Info("Updated preferences", "user_id", userID)
	return view, nil
}

// SearchUsersByEmail returns users whose email contains substring. LIKE
// wildcards in substring match literally.
func (s *Store) SearchUsersByEmail(ctx context.Context, substring string) ([]database.User, error) {
	filters := types.Filters{}.And(
		fmt.Sprintf("email LIKE ? ESCAPE '%c'", likeEscape), containsPattern(substring))
	return s.selectUsers(ctx, "search users", filters)
}

// BatchGetUsers returns the users among userIDs that exist. Unknown ids are
// skipped. An empty list returns without touching the database.
func (s *Store) BatchGetUsers(ctx context.Context, userIDs []string) ([]database.User, error) {
	if len(userIDs) == 0 {
		return []database.User{}, nil
	}
	filters := types.Filters{}.And("user_id IN (?)", bun.In(userIDs))
	return s.selectUsers(ctx, "batch get users", filters)
}

func (s *Store) selectUsers(ctx context.Context, op string, filters types.Filters) ([]database.User, error) {
	users := make([]database.User, 0)
	err := s.manager.WithConnection(ctx, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewSelect().
			Model(&users).
			Column(userColumns...)
		return applyFilters(q, filters).
			Order("user_id ASC").
			Scan(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}

// GetActivitySummary aggregates activity per user, including users without
// activity, ordered by total logins descending and then user_id.
func (s *Store) GetActivitySummary(ctx context.Context) ([]ActivitySummary, error) {
	summary := make([]ActivitySummary, 0)
	err := s.manager.WithConnection(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().
			Model((*database.User)(nil)).
			ColumnExpr("u.user_id, u.first_name, u.last_name").
			ColumnExpr("COUNT(a.activity_id) AS total_activities").
			ColumnExpr("COALESCE(SUM(a.login_count), 0) AS total_logins").
			ColumnExpr("MAX(a.login_time) AS last_login").
			Join("LEFT JOIN activity AS a ON a.user_id = u.user_id").
			GroupExpr("u.user_id, u.first_name, u.last_name").
			OrderExpr("total_logins DESC, u.user_id ASC").
			Scan(ctx, &summary)
	})
	if err != nil {
		return nil, fmt.Errorf("activity summary: %w", err)
	}
	return summary, nil
}

// DeleteUser removes the user; activity and preferences go with it through
// the cascading foreign keys. It reports whether a row was removed.
func (s *Store) DeleteUser(ctx context.Context, userID string) (bool, error) {
	var deleted bool
	err := s.manager.WithConnection(ctx, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().
			Model((*database.User)(nil)).
			Where("user_id = ?", userID).
			Exec(ctx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		deleted = n > 0
		return err
	})
	if err != nil {
		err = database.ClassifyError("delete user", err)
		s.logger().Warn("Failed to delete user", "user_id", userID, "error", err)
		return false, err
	}
	if deleted {
		s.logger().Info("Deleted user", "user_id", userID)
	} else {
		s.logger().Info("User not found", "user_id", userID)
	}
	return deleted, nil
}

// CreateUserWithPreferences inserts the user and its preferences in one
// transaction. Either both rows exist afterwards or neither does.
func (s *Store) CreateUserWithPreferences(ctx context.Context, in NewUserWithPreferences) error {
	const op = "create user with preferences"
	theme, notifications := in.Theme, database.DefaultNotifications
	if theme == "" {
		theme = database.DefaultTheme
	}
	if in.Notifications != nil {
		notifications = *in.Notifications
	}
	err := s.manager.WithConnection(ctx, func(ctx context.Context, tx bun.Tx) error {
		if err := insertUser(ctx, tx, in.NewUser); err != nil {
			return err
		}
		// Both columns have defaults; bind the values so false is kept.
		_, err := tx.NewInsert().
			Model(&database.Preferences{UserID: in.UserID}).
			Column("user_id", "theme", "notifications").
			Value("theme", "?", theme).
			Value("notifications", "?", notifications).
			Exec(ctx)
		return err
	})
	if err != nil {
		err = database.TransactionError(op, err)
		s.logger().Warn("Transaction rolled back", "user_id", in.UserID, "error", err)
		return err
	}
	s.logger().Info("Created user with preferences", "user_id", in.UserID)
	return nil
}

func insertUser(ctx context.Context, tx bun.Tx, u NewUser) error {
	user := &database.User{
		UserID:    u.UserID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
	_, err := tx.NewInsert().
		Model(user).
		Column(userColumns...).
		Exec(ctx)
	return err
}
