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

package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2023, 11, 1, 9, 30, 0, 0, time.UTC)
	for _, in := range []string{
		"2023-11-01 09:30:00",
		"2023-11-01T09:30:00Z",
		"2023-11-01T11:30:00+02:00",
		"2023-11-01T09:30:00",
	} {
		ts, err := ParseTimestamp(in)
		require.NoError(t, err, in)
		assert.True(t, ts.Equal(want), "%s parsed as %s", in, ts)
		assert.Equal(t, time.UTC, ts.Location())
	}

	ts, err := ParseTimestamp("2023-10-31")
	require.NoError(t, err)
	assert.Equal(t, "2023-10-31 00:00:00", ts.String())

	ts, err = ParseTimestamp("  ")
	require.NoError(t, err)
	assert.True(t, ts.IsZero())
	assert.Nil(t, ts.Ptr())
	assert.Empty(t, ts.String())

	_, err = ParseTimestamp("31/10/2023")
	assert.Error(t, err)
}

func TestTimestampJSON(t *testing.T) {
	var v struct {
		At   Timestamp `json:"at"`
		Null Timestamp `json:"null"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"at": "2023-11-01 09:30:00", "null": null}`), &v))
	assert.Equal(t, "2023-11-01 09:30:00", v.At.String())
	assert.True(t, v.Null.IsZero())

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"at": "2023-11-01 09:30:00", "null": null}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"at": 12}`), &v))
}

func TestTimestampYAML(t *testing.T) {
	var v struct {
		At   Timestamp `yaml:"at"`
		Date Timestamp `yaml:"date"`
		None Timestamp `yaml:"none"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("at: 2023-11-01T09:30:00Z\ndate: 2023-10-31\nnone: null\n"), &v))
	assert.Equal(t, "2023-11-01 09:30:00", v.At.String())
	assert.Equal(t, "2023-10-31 00:00:00", v.Date.String())
	assert.True(t, v.None.IsZero())
}

func TestFilters(t *testing.T) {
	var f Filters
	assert.True(t, f.Empty())
	f = f.And("user_id = ?", "u1").And("login_time >= ?", 5)
	require.Len(t, f, 2)
	assert.Equal(t, "login_time >= ?", f[1].Schema)
	assert.Equal(t, []interface{}{5}, f[1].Args)
}
