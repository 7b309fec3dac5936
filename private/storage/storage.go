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

// Package storage provides factories for the application storage backends.
package storage

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cml-ids/cmlids/pkg/log"
	"github.com/cml-ids/cmlids/pkg/private/serrors"
	"github.com/cml-ids/cmlids/pkg/private/util"
	"github.com/cml-ids/cmlids/private/config"
	"github.com/cml-ids/cmlids/private/storage/verdict"
	sqliteverdictdb "github.com/cml-ids/cmlids/private/storage/verdict/sqlite"
)

// Backend indicates the database backend type.
type Backend string

const (
	// BackendSqlite indicates an sqlite backend.
	BackendSqlite Backend = "sqlite"
	// DefaultVerdictDBPath is the default verdict database location.
	DefaultVerdictDBPath = "/var/lib/cmlids/verdicts.db"
	// DefaultRetention is how long verdicts are kept by default.
	DefaultRetention = 24 * time.Hour
)

var _ config.Config = (*DBConfig)(nil)

// DBConfig is the configuration of the verdict database. An empty
// connection after defaults disables verdict recording.
type DBConfig struct {
	// Connection is the path of the database file.
	Connection string `toml:"connection,omitempty"`
	// Retention is how long verdicts are kept before being pruned.
	Retention util.DurWrap `toml:"retention,omitempty"`
	// Disable turns off verdict recording.
	Disable bool `toml:"disable,omitempty"`
}

func (cfg *DBConfig) InitDefaults() {
	if cfg.Connection == "" {
		cfg.Connection = DefaultVerdictDBPath
	}
	if cfg.Retention.Duration == 0 {
		cfg.Retention.Duration = DefaultRetention
	}
}

func (cfg *DBConfig) Validate() error {
	if cfg.Retention.Duration < 0 {
		return serrors.New("negative retention", "retention", cfg.Retention)
	}
	return nil
}

// Sample writes a config sample to the writer.
func (cfg *DBConfig) Sample(dst io.Writer, path config.Path, ctx config.CtxMap) {
	config.WriteString(dst, sample)
}

// ConfigName is the key in the toml file.
func (cfg *DBConfig) ConfigName() string {
	return "verdicts"
}

// NewVerdictStorage opens the verdict database described by c. If reg is
// not nil the database reports query metrics to it.
func NewVerdictStorage(c DBConfig, reg prometheus.Registerer) (verdict.DB, error) {
	log.Info("Connecting VerdictDB", "backend", BackendSqlite, "connection", c.Connection)
	db, err := sqliteverdictdb.New(c.Connection)
	if err != nil {
		return nil, err
	}
	if reg == nil {
		return db, nil
	}
	return &verdict.Database{Backend: db, Metrics: verdict.NewMetrics(reg)}, nil
}
