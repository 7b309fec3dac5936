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

	"github.com/cml-ids/cmlids/pkg/private/serrors"
)

var (
	// ErrInvalidInputData indicates invalid data was tried to input in the DB.
	ErrInvalidInputData = errors.New("db: input data invalid")
	// ErrDataInvalid indicates invalid data is stored in the DB.
	ErrDataInvalid = errors.New("db: db data invalid")
	// ErrReadFailed indicates that reading from the DB failed.
	ErrReadFailed = errors.New("db: read failed")
	// ErrWriteFailed indicates that writing to the DB failed.
	ErrWriteFailed = errors.New("db: write failed")
	// ErrTx indicates a transaction error.
	ErrTx = errors.New("db: transaction error")
)

func NewTxError(msg string, err error, logCtx ...any) error {
	return serrors.Join(ErrTx, err, append([]any{"detailMsg", msg}, logCtx...)...)
}

func NewInputDataError(msg string, err error, logCtx ...any) error {
	return serrors.Join(ErrInvalidInputData, err, append([]any{"detailMsg", msg}, logCtx...)...)
}

func NewDataError(msg string, err error, logCtx ...any) error {
	return serrors.Join(ErrDataInvalid, err, append([]any{"detailMsg", msg}, logCtx...)...)
}

func NewReadError(msg string, err error, logCtx ...any) error {
	return serrors.Join(ErrReadFailed, err, append([]any{"detailMsg", msg}, logCtx...)...)
}

func NewWriteError(msg string, err error, logCtx ...any) error {
	return serrors.Join(ErrWriteFailed, err, append([]any{"detailMsg", msg}, logCtx...)...)
}

// ErrToMetricLabel classifies err into a short result label.
func ErrToMetricLabel(err error) string {
	switch {
	case err == nil:
		return "ok_success"
	case errors.Is(err, ErrInvalidInputData):
		return "err_input_data_invalid"
	case errors.Is(err, ErrDataInvalid):
		return "err_db_data_invalid"
	case errors.Is(err, ErrReadFailed):
		return "err_db_read"
	case errors.Is(err, ErrWriteFailed):
		return "err_db_write"
	case errors.Is(err, ErrTx):
		return "err_db_transaction"
	default:
		return "err_db_unclassified"
	}
}
