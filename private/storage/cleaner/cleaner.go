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

// Package cleaner periodically removes expired data from a store.
package cleaner

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cml-ids/cmlids/pkg/log"
)

// ExpiredDeleter is used to delete expired data.
type ExpiredDeleter func(ctx context.Context) (int, error)

// Cleaner deletes expired data using its deleter.
type Cleaner struct {
	deleter   ExpiredDeleter
	subsystem string
	metrics   Metrics
}

// Metrics contains the metrics for a cleaner. Nil counters are skipped.
type Metrics struct {
	// ErrorsTotal reports the total number of errors during cleaning.
	ErrorsTotal prometheus.Counter
	// RunsTotal reports the total number of successful runs.
	RunsTotal prometheus.Counter
	// DeletedTotal reports the total number of deleted entries.
	DeletedTotal prometheus.Counter
}

// New returns a new cleaner that deletes expired data using deleter.
func New(deleter ExpiredDeleter, subsystem string, metrics Metrics) *Cleaner {
	return &Cleaner{
		deleter:   deleter,
		subsystem: subsystem,
		metrics:   metrics,
	}
}

// Name returns the cleaner name.
func (c *Cleaner) Name() string {
	return fmt.Sprintf("%s_cleaner", c.subsystem)
}

// Run deletes expired entries once.
func (c *Cleaner) Run(ctx context.Context) {
	count, err := c.deleter(ctx)
	logger := log.FromCtx(ctx)
	if err != nil {
		logger.Error("Failed to delete", "subsystem", c.subsystem, "err", err)
		inc(c.metrics.ErrorsTotal, 1)
		return
	}
	if count > 0 {
		logger.Info("Deleted expired", "subsystem", c.subsystem, "count", count)
		inc(c.metrics.DeletedTotal, float64(count))
	}
	inc(c.metrics.RunsTotal, 1)
}

// Loop runs the cleaner every interval until ctx is done.
func (c *Cleaner) Loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Run(ctx)
		}
	}
}

func inc(c prometheus.Counter, v float64) {
	if c != nil {
		c.Add(v)
	}
}
