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
	"errors"
	"strings"

	"github.com/uptrace/bun"

	"github.com/tomoncle/rdsdemo/types"
)

// likeEscape is the ESCAPE character of LIKE patterns. '!' needs no quoting
// in any supported dialect, unlike backslash.
const likeEscape = '!'

var errNoFields = errors.New("no fields to update")

var likeReplacer = strings.NewReplacer(
	string(likeEscape), string(likeEscape)+string(likeEscape),
	"%", string(likeEscape)+"%",
	"_", string(likeEscape)+"_",
)

// containsPattern returns a LIKE pattern matching s literally anywhere in
// the value.
func containsPattern(s string) string {
	return "%" + likeReplacer.Replace(s) + "%"
}

// filters renders the range as login_time bounds. Each bound is added only
// when set, keeping the (user_id, login_time) index usable.
func (r ActivityRange) filters(userID string) types.Filters {
	f := types.Filters{}.And("user_id = ?", userID)
	if r.Start != nil {
		f = f.And("login_time >= ?", r.Start.UTC())
	}
	if r.End != nil {
		f = f.And("login_time <= ?", r.End.UTC())
	}
	return f
}

// apply adds one SET clause per provided field.
func (u PreferencesUpdate) apply(q *bun.UpdateQuery) *bun.UpdateQuery {
	if u.Theme != nil {
		q = q.Set("theme = ?", *u.Theme)
	}
	if u.Notifications != nil {
		q = q.Set("notifications = ?", *u.Notifications)
	}
	return q
}

func applyFilters(q *bun.SelectQuery, filters types.Filters) *bun.SelectQuery {
	for _, f := range filters {
		q = q.Where(f.Schema, f.Args...)
	}
	return q
}
