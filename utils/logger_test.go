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

package utils

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureConsole(t *testing.T) *bytes.Buffer {
	var buf bytes.Buffer
	SetConsoleOutput(&buf)
	t.Cleanup(func() {
		SetConsoleOutput(nil)
		ConfigureConsoleLogFormat("text")
	})
	return &buf
}

func TestLoggerText(t *testing.T) {
	buf := captureConsole(t)
	ConfigureConsoleLogFormat("text")
	l := NewLogger("TEXTLOG")
	l.SetLevel(logrus.InfoLevel)

	l.WithFields(logrus.Fields{"user_id": "u1", "rows": 2}).Info("Updated login count")
	l.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "Updated login count rows=2 user_id=u1")
	assert.Contains(t, out, "TEXTLOG")
	assert.NotContains(t, out, "hidden")
	assert.Same(t, l, NewLogger("TEXTLOG"), "loggers are registered by name")
}

func TestLoggerJSON(t *testing.T) {
	buf := captureConsole(t)
	l := NewLogger("JSONLOG")
	l.SetLevel(logrus.InfoLevel)
	ConfigureConsoleLogFormat("json")

	l.WithField("error", assert.AnError).Warn("Failed to delete user")

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	assert.Equal(t, "warning", rec["level"])
	assert.Equal(t, "JSONLOG", rec["model"])
	assert.Equal(t, "Failed to delete user", rec["message"])
	fields := rec["fields"].(map[string]interface{})
	assert.Equal(t, assert.AnError.Error(), fields["error"])
}

func TestSetLoggerLevel(t *testing.T) {
	buf := captureConsole(t)
	l := NewLogger("LEVELLOG")
	assert.True(t, SetLoggerLevel("LEVELLOG", "error"))
	assert.False(t, SetLoggerLevel("NOSUCHLOG", "debug"))

	l.Warn("dropped")
	assert.Empty(t, buf.String())
	assert.Equal(t, logrus.DebugLevel, ParseLogLevel("DEBUG"))
	assert.Equal(t, logrus.WarnLevel, ParseLogLevel("warning"))
	assert.Equal(t, logrus.InfoLevel, ParseLogLevel("bogus"))
}

func TestFileLog(t *testing.T) {
	captureConsole(t)
	path := filepath.Join(t.TempDir(), "app.log")
	ConfigureFileLog(FileLogOptions{Path: path})
	l := NewLogger("FILELOG")
	l.SetLevel(logrus.InfoLevel)

	l.WithField("file", "seed.json").Info("Loaded seed data")
	require.NoError(t, CloseFileLog())
	l.Info("after close")

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(content)
	assert.Contains(t, text, "Loaded seed data file=seed.json")
	assert.NotContains(t, text, "after close")
	assert.False(t, strings.Contains(text, "\x1b["), "file output has no color codes")
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("RDSDEMO_TEST_INT", " 42 ")
	t.Setenv("RDSDEMO_TEST_BAD", "x")
	t.Setenv("RDSDEMO_TEST_BOOL", "true")

	n, ok := EnvInt("RDSDEMO_TEST_INT")
	assert.True(t, ok)
	assert.Equal(t, 42, n)
	_, ok = EnvInt("RDSDEMO_TEST_BAD")
	assert.False(t, ok)

	d, ok := EnvSeconds("RDSDEMO_TEST_INT")
	assert.True(t, ok)
	assert.Equal(t, 42*time.Second, d)

	assert.True(t, EnvDefaultBool("RDSDEMO_TEST_BOOL", false))
	assert.True(t, EnvDefaultBool("RDSDEMO_TEST_BAD", true))
	assert.Equal(t, "fallback", EnvDefaultString("RDSDEMO_TEST_MISSING", "fallback"))
}
