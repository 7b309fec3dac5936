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

// Package sqlite stores verdicts in an SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/cml-ids/cmlids/pkg/private/serrors"
	"github.com/cml-ids/cmlids/private/storage/db"
	"github.com/cml-ids/cmlids/private/storage/verdict"
)

var _ verdict.DB = (*Backend)(nil)

// Backend implements the verdict store on SQLite.
type Backend struct {
	db *db.Sqlite
	// insertLock serializes the multi-statement inserts.
	insertLock sync.Mutex
}

// New opens the database at path and applies the schema if necessary.
func New(path string) (*Backend, error) {
	d, err := db.NewSqlite(path, nil)
	if err != nil {
		return nil, err
	}
	if err := d.Setup(Schema, SchemaVersion); err != nil {
		d.Close()
		return nil, err
	}
	return &Backend{db: d}, nil
}

// Close closes the database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// InsertVerdict inserts v and its predictions in a single transaction.
func (b *Backend) InsertVerdict(ctx context.Context, v verdict.Verdict) error {
	if err := checkVerdict(v); err != nil {
		return err
	}
	b.insertLock.Lock()
	defer b.insertLock.Unlock()

	tx, err := b.db.Full.BeginTx(ctx, nil)
	if err != nil {
		return db.NewTxError("begin", err)
	}
	if err := insertVerdict(ctx, tx, v); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return db.NewTxError("commit", err)
	}
	return nil
}

// checkVerdict rejects verdicts that the tables cannot represent.
func checkVerdict(v verdict.Verdict) error {
	if v.Class != 0 && v.Class != 1 {
		return db.NewInputDataError("class out of range", nil,
			"flow_id", v.FlowID, "class", v.Class)
	}
	for i, p := range v.Predictions {
		if p.Model == "" {
			return db.NewInputDataError("prediction without model", nil,
				"flow_id", v.FlowID, "prediction", i)
		}
	}
	return nil
}

func insertVerdict(ctx context.Context, tx *sql.Tx, v verdict.Verdict) error {
	const insertVerdict = `INSERT INTO Verdicts (FlowID, Class, Proba0, Proba1, Time)
		VALUES (?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, insertVerdict,
		int64(v.FlowID), v.Class, v.Proba[0], v.Proba[1], v.Time.UnixNano())
	if err != nil {
		return db.NewWriteError("insert verdict", err, "flow_id", v.FlowID)
	}
	rowID, err := res.LastInsertId()
	if err != nil {
		return db.NewWriteError("retrieve verdict row id", err)
	}
	const insertPrediction = `INSERT INTO Predictions
		(VerdictRowID, Model, Proba0, Proba1, LatencyNs) VALUES (?, ?, ?, ?, ?)`
	for _, p := range v.Predictions {
		_, err := tx.ExecContext(ctx, insertPrediction,
			rowID, p.Model, p.Proba[0], p.Proba[1], p.Latency.Nanoseconds())
		if err != nil {
			return db.NewWriteError("insert prediction", err,
				"flow_id", v.FlowID, "model", p.Model)
		}
	}
	return nil
}

// Verdicts returns the verdicts of the flow ordered by insertion.
func (b *Backend) Verdicts(ctx context.Context, flowID uint64) ([]verdict.Verdict, error) {
	const query = `SELECT RowID, Class, Proba0, Proba1, Time FROM Verdicts
		WHERE FlowID = ? ORDER BY RowID`
	rows, err := b.db.ReadOnly.QueryContext(ctx, query, int64(flowID))
	if err != nil {
		return nil, db.NewReadError("query verdicts", err, "flow_id", flowID)
	}
	var verdicts []verdict.Verdict
	index := make(map[int64]int)
	for rows.Next() {
		var rowID, ns int64
		v := verdict.Verdict{FlowID: flowID}
		if err := rows.Scan(&rowID, &v.Class, &v.Proba[0], &v.Proba[1], &ns); err != nil {
			rows.Close()
			return nil, db.NewDataError("scan verdict", err)
		}
		v.Time = time.Unix(0, ns).UTC()
		index[rowID] = len(verdicts)
		verdicts = append(verdicts, v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, db.NewReadError("iterate verdicts", err)
	}
	if len(verdicts) == 0 {
		return nil, nil
	}

	const predQuery = `SELECT p.VerdictRowID, p.Model, p.Proba0, p.Proba1, p.LatencyNs
		FROM Predictions p JOIN Verdicts v ON p.VerdictRowID = v.RowID
		WHERE v.FlowID = ? ORDER BY p.VerdictRowID, p.rowid`
	prows, err := b.db.ReadOnly.QueryContext(ctx, predQuery, int64(flowID))
	if err != nil {
		return nil, db.NewReadError("query predictions", err, "flow_id", flowID)
	}
	defer prows.Close()
	for prows.Next() {
		var rowID, ns int64
		var p verdict.Prediction
		if err := prows.Scan(&rowID, &p.Model, &p.Proba[0], &p.Proba[1], &ns); err != nil {
			return nil, db.NewDataError("scan prediction", err)
		}
		p.Latency = time.Duration(ns)
		i, ok := index[rowID]
		if !ok {
			return nil, db.NewDataError("prediction without verdict", nil, "row_id", rowID)
		}
		verdicts[i].Predictions = append(verdicts[i].Predictions, p)
	}
	if err := prows.Err(); err != nil {
		return nil, db.NewReadError("iterate predictions", err)
	}
	return verdicts, nil
}

// ClassCounts returns the number of verdicts per class.
func (b *Backend) ClassCounts(ctx context.Context) (map[int]int, error) {
	const query = `SELECT Class, COUNT(*) FROM Verdicts GROUP BY Class`
	rows, err := b.db.ReadOnly.QueryContext(ctx, query)
	if err != nil {
		return nil, db.NewReadError("count classes", err)
	}
	defer rows.Close()
	counts := make(map[int]int)
	for rows.Next() {
		var class, n int
		if err := rows.Scan(&class, &n); err != nil {
			return nil, db.NewDataError("scan class count", err)
		}
		counts[class] = n
	}
	if err := rows.Err(); err != nil {
		return nil, db.NewReadError("iterate class counts", err)
	}
	return counts, nil
}

// DeleteBefore deletes all verdicts recorded before cutoff.
func (b *Backend) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	b.insertLock.Lock()
	defer b.insertLock.Unlock()
	res, err := b.db.Full.ExecContext(ctx,
		`DELETE FROM Verdicts WHERE Time < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, db.NewWriteError("delete verdicts", err, "cutoff", cutoff)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, serrors.Wrap("retrieving deleted rows", err)
	}
	return int(n), nil
}
