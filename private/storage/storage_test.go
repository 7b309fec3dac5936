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

package storage_test

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cml-ids/cmlids/private/storage"
	"github.com/cml-ids/cmlids/private/storage/verdict"
)

func TestDBConfigSample(t *testing.T) {
	var sample bytes.Buffer
	var cfg storage.DBConfig
	cfg.Sample(&sample, nil, nil)
	err := toml.NewDecoder(bytes.NewReader(sample.Bytes())).DisallowUnknownFields().Decode(&cfg)
	require.NoError(t, err)
	assert.Equal(t, storage.DefaultVerdictDBPath, cfg.Connection)
	assert.Equal(t, 24*time.Hour, cfg.Retention.Duration)
	assert.False(t, cfg.Disable)
	assert.NoError(t, cfg.Validate())
}

func TestDBConfigDefaults(t *testing.T) {
	var cfg storage.DBConfig
	cfg.InitDefaults()
	assert.Equal(t, storage.DefaultVerdictDBPath, cfg.Connection)
	assert.Equal(t, storage.DefaultRetention, cfg.Retention.Duration)

	cfg.Retention.Duration = -time.Second
	assert.Error(t, cfg.Validate())
}

func TestNewVerdictStorage(t *testing.T) {
	cfg := storage.DBConfig{Connection: filepath.Join(t.TempDir(), "v.db")}
	db, err := storage.NewVerdictStorage(cfg, prometheus.NewRegistry())
	require.NoError(t, err)
	defer db.Close()
	assert.IsType(t, &verdict.Database{}, db)
	require.NoError(t, db.InsertVerdict(context.Background(),
		verdict.Verdict{FlowID: 1, Time: time.Now()}))
}
