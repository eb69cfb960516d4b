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
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	DefaultLogFilePath = "rdsdemo.log"
	DefaultMaxSizeMB   = 50
	DefaultMaxBackups  = 5
	DefaultMaxAgeDays  = 30
)

var (
	fileLogMu     sync.RWMutex
	fileLogWriter *lumberjack.Logger
	fileLogFormat = EnvDefaultString("FILE_LOG_FORMAT", "text")
)

// FileLogOptions controls the rotating log file shared by all loggers.
type FileLogOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Format     string
}

// FileLogOptionsFromEnv reads FILE_LOG_ENABLED, FILE_LOG_PATH and
// FILE_LOG_FORMAT. ok is false when file logging is disabled.
func FileLogOptionsFromEnv() (opts FileLogOptions, ok bool) {
	if !EnvDefaultBool("FILE_LOG_ENABLED", false) {
		return opts, false
	}
	return FileLogOptions{
		Path:       EnvDefaultString("FILE_LOG_PATH", DefaultLogFilePath),
		MaxSizeMB:  DefaultMaxSizeMB,
		MaxBackups: DefaultMaxBackups,
		MaxAgeDays: DefaultMaxAgeDays,
		Compress:   true,
		Format:     EnvDefaultString("FILE_LOG_FORMAT", "text"),
	}, true
}

// ConfigureFileLog starts copying every log entry into a size rotated file.
// Calling it again replaces the previous file.
func ConfigureFileLog(opts FileLogOptions) {
	if opts.Path == "" {
		opts.Path = DefaultLogFilePath
	}
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = DefaultMaxSizeMB
	}
	w := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}
	fileLogMu.Lock()
	prev := fileLogWriter
	fileLogWriter = w
	if opts.Format != "" {
		fileLogFormat = strings.ToLower(strings.TrimSpace(opts.Format))
	}
	fileLogMu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}
}

// CloseFileLog stops file logging and closes the current file.
func CloseFileLog() error {
	fileLogMu.Lock()
	w := fileLogWriter
	fileLogWriter = nil
	fileLogMu.Unlock()
	if w == nil {
		return nil
	}
	return w.Close()
}

type fileWriterHook struct {
	text logrus.Formatter
	json logrus.Formatter
}

func newFileWriterHook(name string) *fileWriterHook {
	return &fileWriterHook{
		text: &Log4jColorFormatter{LoggerName: name, NameWidth: 10, DisableColors: true},
		json: &JSONLogFormatter{LoggerName: name},
	}
}

func (h *fileWriterHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *fileWriterHook) Fire(e *logrus.Entry) error {
	fileLogMu.RLock()
	defer fileLogMu.RUnlock()
	if fileLogWriter == nil {
		return nil
	}
	formatter := h.text
	if fileLogFormat == "json" {
		formatter = h.json
	}
	b, err := formatter.Format(e)
	if err != nil {
		return err
	}
	_, err = fileLogWriter.Write(b)
	return err
}
