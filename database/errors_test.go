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
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestClassifyError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"mysql duplicate", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'u1' for key 'PRIMARY'"}, ErrDuplicateKey},
		{"mysql foreign key", &mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row"}, ErrIntegrityViolation},
		{"mysql not null", &mysql.MySQLError{Number: 1048, Message: "Column 'email' cannot be null"}, ErrIntegrityViolation},
		{"postgres duplicate", &pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"}, ErrDuplicateKey},
		{"postgres foreign key", &pq.Error{Code: "23503"}, ErrIntegrityViolation},
		{"sqlite unique", errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)"), ErrDuplicateKey},
		{"sqlite primary key", errors.New("UNIQUE constraint failed: users.user_id"), ErrDuplicateKey},
		{"sqlite foreign key", errors.New("FOREIGN KEY constraint failed"), ErrIntegrityViolation},
		{"wrapped", fmt.Errorf("insert: %w", &pq.Error{Code: "23505"}), ErrDuplicateKey},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := ClassifyError("create user", c.err)
			assert.ErrorIs(t, err, c.want)
			assert.ErrorIs(t, err, c.err, "driver error stays reachable")
		})
	}
}

func TestClassifyErrorPassThrough(t *testing.T) {
	assert.NoError(t, ClassifyError("op", nil))

	plain := errors.New("connection refused")
	assert.Same(t, plain, ClassifyError("op", plain))

	already := NewError(ErrInvalidArgument, "op", plain)
	assert.Same(t, already, ClassifyError("other", already))
}

func TestClassifyErrorKeepsDriverType(t *testing.T) {
	err := ClassifyError("create user", &mysql.MySQLError{Number: 1062})
	var mysqlErr *mysql.MySQLError
	assert.ErrorAs(t, err, &mysqlErr)
	assert.Equal(t, uint16(1062), mysqlErr.Number)
}

func TestTransactionError(t *testing.T) {
	assert.NoError(t, TransactionError("op", nil))

	err := TransactionError("create user with preferences", &pq.Error{Code: "23505"})
	assert.ErrorIs(t, err, ErrTransactionFailure)
	assert.ErrorIs(t, err, ErrDuplicateKey)

	err = TransactionError("load seed data", errors.New("boom"))
	assert.ErrorIs(t, err, ErrTransactionFailure)
	assert.NotErrorIs(t, err, ErrDuplicateKey)
	assert.Equal(t, "load seed data: transaction failed: boom", err.Error())
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "not found", NewError(ErrNotFound, "", nil).Error())
	assert.Equal(t, "get: not found", NewError(ErrNotFound, "get", nil).Error())
	assert.Equal(t, "get: not found: x", NewError(ErrNotFound, "get", errors.New("x")).Error())
}

func TestIsSqlError(t *testing.T) {
	is, code := IsSqlError(&mysql.MySQLError{Number: 1146})
	assert.True(t, is)
	assert.Equal(t, NoTableErr, code)
	assert.Equal(t, "no such table", code.String())

	is, code = IsSqlError(errors.New("no such table: users"))
	assert.True(t, is)
	assert.Equal(t, NoTableErr, code)

	is, _ = IsSqlError(errors.New("dial tcp: connection refused"))
	assert.False(t, is)

	is, _ = IsSqlError(nil)
	assert.False(t, is)
}
