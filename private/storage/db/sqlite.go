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

// Package db opens the sqlite databases of the cmlids services.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"runtime"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // sqlite driver

	"github.com/cml-ids/cmlids/pkg/private/serrors"
)

// Reader is the read-only part of a database handle.
type Reader interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	Stats() sql.DBStats
}

// SqliteConfig configures the sqlite database instance.
type SqliteConfig struct {
	MaxOpenReadConns int
	InMemory         bool
}

// Sqlite holds a single connection write pool and a read pool on the same
// database.
type Sqlite struct {
	Full     *sql.DB
	ReadOnly Reader
	read     *sql.DB
}

// NewSqlite opens the database at path. Writes go through a pool limited to
// one connection; transactions start IMMEDIATE so that the busy timeout
// applies to them. In-memory databases must be explicitly named.
func NewSqlite(path string, cfg *SqliteConfig) (*Sqlite, error) {
	var c SqliteConfig
	if cfg != nil {
		c = *cfg
	}
	if strings.Contains(path, ":memory:") {
		return nil, serrors.New("use explicitly named memory database", "path", path)
	}
	noFile, hasScheme := strings.CutPrefix(path, "file:")

	params := make(url.Values)
	params.Add("_txlock", "immediate")
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "busy_timeout(1000)")
	params.Add("_pragma", "synchronous(NORMAL)")
	params.Add("_pragma", "foreign_keys(1)")
	if c.InMemory {
		registerMemoryDB(noFile)
		params.Add("mode", "memory")
		params.Add("cache", "shared")
	}
	conn := path + "?" + params.Encode()
	if !hasScheme {
		conn = "file:" + conn
	}

	write, err := sql.Open("sqlite", conn)
	if err != nil {
		return nil, serrors.Wrap("opening write database", err, "path", path)
	}
	write.SetMaxOpenConns(1)

	read, err := sql.Open("sqlite", conn)
	if err != nil {
		write.Close()
		return nil, serrors.Wrap("opening read database", err, "path", path)
	}
	if c.MaxOpenReadConns == 0 {
		c.MaxOpenReadConns = max(4, runtime.NumCPU())
	}
	read.SetMaxOpenConns(c.MaxOpenReadConns)

	db := &Sqlite{Full: write, ReadOnly: read, read: read}
	if c.InMemory {
		runtime.AddCleanup(db, func(name string) { unregisterMemoryDB(name) }, noFile)
	}
	return db, nil
}

// Setup applies schema to a fresh database and records schemaVersion. An
// existing database must carry the same version.
func (db *Sqlite) Setup(schema string, schemaVersion int) error {
	var existing int
	if err := db.Full.QueryRow("PRAGMA user_version;").Scan(&existing); err != nil {
		return serrors.Wrap("checking database schema version", err)
	}
	switch {
	case existing == 0:
		if _, err := db.Full.Exec(schema); err != nil {
			return serrors.Wrap("applying schema", err)
		}
		if _, err := db.Full.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
			return serrors.Wrap("writing schema version", err)
		}
		return nil
	case existing != schemaVersion:
		return serrors.New("database schema version mismatch",
			"expected", schemaVersion, "actual", existing)
	default:
		return nil
	}
}

// Close closes both pools.
func (db *Sqlite) Close() error {
	var errs serrors.List
	if err := db.Full.Close(); err != nil {
		errs = append(errs, serrors.Wrap("closing write db", err))
	}
	if err := db.read.Close(); err != nil {
		errs = append(errs, serrors.Wrap("closing read db", err))
	}
	return errs.ToError()
}

// memoryDBCheck prevents two in-memory databases with the same name, which
// would silently share their contents.
var memoryDBCheck = struct {
	mtx sync.Mutex
	dbs map[string]struct{}
}{
	dbs: make(map[string]struct{}),
}

func registerMemoryDB(name string) {
	memoryDBCheck.mtx.Lock()
	defer memoryDBCheck.mtx.Unlock()
	if _, ok := memoryDBCheck.dbs[name]; ok {
		panic(fmt.Sprintf("memory database with name %s already exists", name))
	}
	memoryDBCheck.dbs[name] = struct{}{}
}

func unregisterMemoryDB(name string) {
	memoryDBCheck.mtx.Lock()
	defer memoryDBCheck.mtx.Unlock()
	delete(memoryDBCheck.dbs, name)
}
