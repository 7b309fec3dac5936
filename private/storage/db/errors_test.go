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

package db

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrFmt(t *testing.T) {
	f := func(t *testing.T, expect error, err error) {
		t.Helper()
		expectedMsg := fmt.Sprintf("%s {detailMsg=test}", expect)
		require.Equal(t, expectedMsg, err.Error())
	}

	f(t, ErrTx, NewTxError("test", nil))
	f(t, ErrInvalidInputData, NewInputDataError("test", nil))
	f(t, ErrDataInvalid, NewDataError("test", nil))
	f(t, ErrReadFailed, NewReadError("test", nil))
	f(t, ErrWriteFailed, NewWriteError("test", nil))
}

func TestErrToMetricLabel(t *testing.T) {
	testCases := map[string]struct {
		err   error
		label string
	}{
		"nil":          {err: nil, label: "ok_success"},
		"read":         {err: NewReadError("x", errors.New("io")), label: "err_db_read"},
		"write":        {err: NewWriteError("x", nil), label: "err_db_write"},
		"input":        {err: NewInputDataError("x", nil), label: "err_input_data_invalid"},
		"unclassified": {err: errors.New("other"), label: "err_db_unclassified"},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.label, ErrToMetricLabel(tc.err))
		})
	}
}

func TestSqliteSetup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "setup.db")
	schema := `CREATE TABLE t(id INTEGER PRIMARY KEY);`

	d, err := NewSqlite(path, nil)
	require.NoError(t, err)
	require.NoError(t, d.Setup(schema, 1))
	// Reapplying with the same version is a no-op.
	require.NoError(t, d.Setup(schema, 1))
	assert.Error(t, d.Setup(schema, 2))
	require.NoError(t, d.Close())

	_, err = NewSqlite("file::memory:", nil)
	assert.Error(t, err)
}
