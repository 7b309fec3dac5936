// Copyright 2026 The cmlids Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log is the structured logger used by every cmlids component. Log
// calls take a message and a flat list of key/value pairs:
//
//	log.Info("Installed rules", "count", len(rules))
package log

import (
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cml-ids/cmlids/pkg/private/serrors"
)

// Level is a log level. It mirrors the zapcore levels.
type Level zapcore.Level

const (
	DebugLevel = Level(zapcore.DebugLevel)
	InfoLevel  = Level(zapcore.InfoLevel)
	ErrorLevel = Level(zapcore.ErrorLevel)
)

// Logger describes the logger interface.
type Logger interface {
	New(ctx ...any) Logger
	Debug(msg string, ctx ...any)
	Info(msg string, ctx ...any)
	Error(msg string, ctx ...any)
	Enabled(lvl Level) bool
}

var (
	rootMtx sync.RWMutex
	root    Logger = &logger{logger: zap.NewNop()}
	level          = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Setup configures the root logger from cfg. It should be called once, early
// during process start.
func Setup(cfg Config) error {
	cfg.InitDefaults()
	lvl, err := zapcore.ParseLevel(cfg.Console.Level)
	if err != nil {
		return serrors.Wrap("parsing console log level", err, "level", cfg.Console.Level)
	}
	level.SetLevel(lvl)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	var enc zapcore.Encoder
	switch strings.ToLower(cfg.Console.Format) {
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	case "human":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		return serrors.New("unknown console log format", "format", cfg.Console.Format)
	}
	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level)
	zl := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))

	rootMtx.Lock()
	defer rootMtx.Unlock()
	root = &logger{logger: zl}
	zap.ReplaceGlobals(zl)
	return nil
}

// SetLevel changes the level of the root logger at runtime.
func SetLevel(lvl Level) {
	level.SetLevel(zapcore.Level(lvl))
}

// Root returns the root logger. It is never nil.
func Root() Logger {
	rootMtx.RLock()
	defer rootMtx.RUnlock()
	return root
}

// New creates a logger with the given context derived from the root logger.
func New(ctx ...any) Logger {
	return Root().New(ctx...)
}

// Debug logs at debug level on the root logger.
func Debug(msg string, ctx ...any) {
	Root().Debug(msg, ctx...)
}

// Info logs at info level on the root logger.
func Info(msg string, ctx ...any) {
	Root().Info(msg, ctx...)
}

// Error logs at error level on the root logger.
func Error(msg string, ctx ...any) {
	Root().Error(msg, ctx...)
}

// Flush writes buffered log entries.
func Flush() {
	if l, ok := Root().(*logger); ok {
		_ = l.logger.Sync()
	}
}

// HandlePanic catches panics, logs them with a stack trace and exits the
// process. It must be deferred at the top of every goroutine.
func HandlePanic() {
	if msg := recover(); msg != nil {
		Root().Error("Panic", "msg", msg, "stack", string(debug.Stack()))
		Flush()
		fmt.Fprintf(os.Stderr, "panic: %v\n", msg)
		os.Exit(255)
	}
}

type logger struct {
	logger *zap.Logger
}

func (l *logger) New(ctx ...any) Logger {
	return &logger{logger: l.logger.With(convertCtx(ctx)...)}
}

func (l *logger) Debug(msg string, ctx ...any) {
	l.logger.Debug(msg, convertCtx(ctx)...)
}

func (l *logger) Info(msg string, ctx ...any) {
	l.logger.Info(msg, convertCtx(ctx)...)
}

func (l *logger) Error(msg string, ctx ...any) {
	l.logger.Error(msg, convertCtx(ctx)...)
}

func (l *logger) Enabled(lvl Level) bool {
	return l.logger.Core().Enabled(zapcore.Level(lvl))
}

// ConvertCtx turns a flat key/value list into zap fields. Values implementing
// zapcore.ObjectMarshaler (such as serrors errors) are logged as objects.
func ConvertCtx(ctx []any) []zap.Field {
	return convertCtx(ctx)
}

func convertCtx(ctx []any) []zap.Field {
	fields := make([]zap.Field, 0, len(ctx)/2)
	for i := 0; i+1 < len(ctx); i += 2 {
		key := fmt.Sprint(ctx[i])
		fields = append(fields, zap.Any(key, ctx[i+1]))
	}
	return fields
}
