// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package log re-exports the structured logger every ASF component
// accepts at construction, so the core never depends on fmt.Println
// or a concrete logging backend.
package log

import (
	luxlog "github.com/luxfi/log"
)

// Logger is the structured, leveled logger interface threaded through
// every component constructor in this module.
type Logger = luxlog.Logger

// NewNoOpLogger returns a Logger that discards everything; used by
// tests and by callers that haven't wired up real logging yet.
func NewNoOpLogger() Logger {
	return luxlog.NewNoOpLogger()
}

// Debug, Info, Warn and Error log at package scope against the
// process-wide default logger, matching the convenience calls used
// throughout this module's validation and storage layers.
func Debug(msg string, kv ...interface{}) { luxlog.Debug(msg, kv...) }
func Info(msg string, kv ...interface{})  { luxlog.Info(msg, kv...) }
func Warn(msg string, kv ...interface{})  { luxlog.Warn(msg, kv...) }
func Error(msg string, kv ...interface{}) { luxlog.Error(msg, kv...) }
