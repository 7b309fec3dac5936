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

package log

import (
	"io"
	"strings"

	"github.com/cml-ids/cmlids/pkg/private/serrors"
	"github.com/cml-ids/cmlids/private/config"
)

const (
	DefaultConsoleLevel  = "info"
	DefaultConsoleFormat = "human"
)

// Config is the configuration for the logger.
type Config struct {
	Console ConsoleConfig `toml:"console,omitempty"`
}

// ConsoleConfig is the config for the console logger.
type ConsoleConfig struct {
	// Level of console logging (defaults to info).
	Level string `toml:"level,omitempty"`
	// Format of the console logging, human or json (defaults to human).
	Format string `toml:"format,omitempty"`
}

// InitDefaults populates unset fields in cfg to their default values.
func (cfg *Config) InitDefaults() {
	if cfg.Console.Level == "" {
		cfg.Console.Level = DefaultConsoleLevel
	}
	if cfg.Console.Format == "" {
		cfg.Console.Format = DefaultConsoleFormat
	}
}

// Validate checks the level and format values.
func (cfg *Config) Validate() error {
	switch strings.ToLower(cfg.Console.Level) {
	case "debug", "info", "warn", "error", "":
	default:
		return serrors.New("invalid console log level", "level", cfg.Console.Level)
	}
	switch strings.ToLower(cfg.Console.Format) {
	case "human", "json", "":
	default:
		return serrors.New("invalid console log format", "format", cfg.Console.Format)
	}
	return nil
}

// Sample writes the commented sample of the log block.
func (cfg *Config) Sample(dst io.Writer, _ config.Path, _ config.CtxMap) {
	config.WriteString(dst, loggingSample)
}

// ConfigName is the toml key for the logging config.
func (cfg *Config) ConfigName() string {
	return "log"
}

const loggingSample = `
[log.console]
# Console logging level (debug|info|error) (default info)
level = "info"

# Console logging format (human|json) (default human)
format = "human"
`
