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

// Package serrors provides errors that carry key/value context. Errors created
// with serrors render their context in Error() and marshal it as structured
// fields when logged with zap. For any err returned by this package,
// errors.Is(err, err) is true, and errors.Is(err, cause) is true for the cause
// it wraps or the base error it joins.
package serrors

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxPair struct {
	Key   string
	Value any
}

// errorInfo keeps ctx behind a pointer so that error values stay comparable.
type errorInfo struct {
	ctx   *[]ctxPair
	cause error
}

func mkErrorInfo(cause error, errCtx ...any) errorInfo {
	np := len(errCtx) / 2
	ctx := make([]ctxPair, np)
	for i := 0; i < np; i++ {
		ctx[i] = ctxPair{Key: fmt.Sprint(errCtx[2*i]), Value: errCtx[2*i+1]}
	}
	sort.SliceStable(ctx, func(a, b int) bool {
		return ctx[a].Key < ctx[b].Key
	})
	return errorInfo{ctx: &ctx, cause: cause}
}

func (e errorInfo) error() string {
	var buf bytes.Buffer
	if len(*e.ctx) != 0 {
		buf.WriteString(" {")
		for i, p := range *e.ctx {
			fmt.Fprintf(&buf, "%s=%v", p.Key, p.Value)
			if i != len(*e.ctx)-1 {
				buf.WriteString("; ")
			}
		}
		buf.WriteString("}")
	}
	if e.cause != nil {
		fmt.Fprintf(&buf, ": %s", e.cause)
	}
	return buf.String()
}

func (e errorInfo) marshalLogObject(enc zapcore.ObjectEncoder) error {
	if e.cause != nil {
		if m, ok := e.cause.(zapcore.ObjectMarshaler); ok {
			if err := enc.AddObject("cause", m); err != nil {
				return err
			}
		} else {
			enc.AddString("cause", e.cause.Error())
		}
	}
	for _, pair := range *e.ctx {
		zap.Any(pair.Key, pair.Value).AddTo(enc)
	}
	return nil
}

// basicError is an error with a message, an optional cause and context.
type basicError struct {
	errorInfo
	msg string
}

func (e basicError) Error() string {
	return e.msg + e.errorInfo.error()
}

func (e basicError) Unwrap() error {
	return e.cause
}

// MarshalLogObject implements zapcore.ObjectMarshaler to have a nicer log
// representation.
func (e basicError) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("msg", e.msg)
	return e.errorInfo.marshalLogObject(enc)
}

// New creates a new error with the given message and context.
func New(msg string, errCtx ...any) error {
	return &basicError{
		errorInfo: mkErrorInfo(nil, errCtx...),
		msg:       msg,
	}
}

// Wrap returns an error with the given message that wraps cause and carries
// the given context. errors.Is(result, cause) is true.
func Wrap(msg string, cause error, errCtx ...any) error {
	return basicError{
		errorInfo: mkErrorInfo(cause, errCtx...),
		msg:       msg,
	}
}

// joinedError associates a base error, typically a sentinel, with a cause and
// context.
type joinedError struct {
	errorInfo
	error error
}

func (e joinedError) Error() string {
	return e.error.Error() + e.errorInfo.error()
}

func (e joinedError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.error}
	}
	return []error{e.error, e.cause}
}

// MarshalLogObject implements zapcore.ObjectMarshaler. The base error is not
// dissected.
func (e joinedError) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("msg", e.error.Error())
	return e.errorInfo.marshalLogObject(enc)
}

// Join returns an error that associates err with cause (unless nil) and the
// given context. errors.Is(result, err) is true, and so is errors.Is(result,
// cause) if cause is not nil. Join returns nil if both err and cause are nil.
func Join(err, cause error, errCtx ...any) error {
	if err == nil && cause == nil {
		return nil
	}
	if err == nil {
		return Wrap("error", cause, errCtx...)
	}
	return joinedError{
		errorInfo: mkErrorInfo(cause, errCtx...),
		error:     err,
	}
}

// IsTimeout returns whether err is or is caused by a timeout error.
func IsTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// List is a slice of errors.
type List []error

// Error implements the error interface.
func (e List) Error() string {
	s := make([]string, 0, len(e))
	for _, err := range e {
		s = append(s, err.Error())
	}
	return fmt.Sprintf("[ %s ]", strings.Join(s, "; "))
}

// ToError returns the object as error interface implementation.
func (e List) ToError() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// Unwrap lets errors.Is and errors.As look into every listed error.
func (e List) Unwrap() []error {
	return e
}

// MarshalLogArray implements zapcore.ArrayMarshaler for nicer logging format
// of error lists.
func (e List) MarshalLogArray(ae zapcore.ArrayEncoder) error {
	for _, err := range e {
		if m, ok := err.(zapcore.ObjectMarshaler); ok {
			if err := ae.AppendObject(m); err != nil {
				return err
			}
		} else {
			ae.AppendString(err.Error())
		}
	}
	return nil
}
