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

// Package verdict defines the store of classification verdicts produced by
// the controller.
package verdict

import (
	"context"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	dblib "github.com/cml-ids/cmlids/private/storage/db"
)

// Prediction is the output of a single model for a flow.
type Prediction struct {
	Model   string
	Proba   [2]float64
	Latency time.Duration
}

// Verdict is the combined classification of a flow.
type Verdict struct {
	FlowID      uint64
	Class       int
	Proba       [2]float64
	Predictions []Prediction
	Time        time.Time
}

// DB stores verdicts.
type DB interface {
	io.Closer
	// InsertVerdict stores v together with its per-model predictions.
	InsertVerdict(ctx context.Context, v Verdict) error
	// Verdicts returns all verdicts for the flow in insertion order.
	Verdicts(ctx context.Context, flowID uint64) ([]Verdict, error)
	// ClassCounts returns the number of stored verdicts per class.
	ClassCounts(ctx context.Context) (map[int]int, error)
	// DeleteBefore removes verdicts older than cutoff and returns how many
	// were removed.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}

const (
	promOpInsert  = "insert_verdict"
	promOpGet     = "get_verdicts"
	promOpCount   = "count_classes"
	promOpCleanup = "delete_before"
)

// Metrics counts the queries against the store and their results.
type Metrics struct {
	QueriesTotal *prometheus.CounterVec
	ResultsTotal *prometheus.CounterVec
}

// NewMetrics registers the store metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		QueriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cmlids_verdictdb_queries_total",
			Help: "Total number of verdict database queries.",
		}, []string{"operation"}),
		ResultsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cmlids_verdictdb_results_total",
			Help: "Results of verdict database queries.",
		}, []string{"operation", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.QueriesTotal, m.ResultsTotal)
	}
	return m
}

func (m *Metrics) observe(ctx context.Context, op string, action func(context.Context) error) {
	if m == nil {
		_ = action(ctx)
		return
	}
	m.QueriesTotal.WithLabelValues(op).Inc()
	err := action(ctx)
	m.ResultsTotal.WithLabelValues(op, dblib.ErrToMetricLabel(err)).Inc()
}

var _ DB = (*Database)(nil)

// Database decorates a backend with metrics. A nil Metrics is allowed.
type Database struct {
	Backend DB
	Metrics *Metrics
}

func (db *Database) Close() error {
	return db.Backend.Close()
}

func (db *Database) InsertVerdict(ctx context.Context, v Verdict) error {
	var err error
	db.Metrics.observe(ctx, promOpInsert, func(ctx context.Context) error {
		err = db.Backend.InsertVerdict(ctx, v)
		return err
	})
	return err
}

func (db *Database) Verdicts(ctx context.Context, flowID uint64) ([]Verdict, error) {
	var ret []Verdict
	var err error
	db.Metrics.observe(ctx, promOpGet, func(ctx context.Context) error {
		ret, err = db.Backend.Verdicts(ctx, flowID)
		return err
	})
	return ret, err
}

func (db *Database) ClassCounts(ctx context.Context) (map[int]int, error) {
	var ret map[int]int
	var err error
	db.Metrics.observe(ctx, promOpCount, func(ctx context.Context) error {
		ret, err = db.Backend.ClassCounts(ctx)
		return err
	})
	return ret, err
}

func (db *Database) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	var ret int
	var err error
	db.Metrics.observe(ctx, promOpCleanup, func(ctx context.Context) error {
		ret, err = db.Backend.DeleteBefore(ctx, cutoff)
		return err
	})
	return ret, err
}
