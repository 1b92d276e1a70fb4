// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package apperr defines the error kinds shared by the organization
// lifecycle, authentication and storage layers.
//
// Storage engines classify driver errors into a Kind at their boundary.
// Services annotate errors with the operation (saga step) that failed while
// preserving the kind, so callers can both branch on the kind and report
// which step needs a retry.
package apperr

import (
	"errors"
	"strings"
)

// Kind classifies an error for callers and transports.
type Kind string

const (
	KindInternal           Kind = "internal"
	KindInvalid            Kind = "invalid"
	KindNotFound           Kind = "not_found"
	KindConflict           Kind = "conflict"
	KindInvalidToken       Kind = "invalid_token"
	KindExpiredToken       Kind = "expired_token"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindCorruptCredential  Kind = "corrupt_credential"
	KindRenameUnsupported  Kind = "rename_unsupported"
	KindStoreUnavailable   Kind = "store_unavailable"
	KindForbidden          Kind = "forbidden"
)

// Kind-only sentinels. errors.Is(err, ErrNotFound) is true for any error in
// the chain carrying KindNotFound.
var (
	ErrInternal           = &Error{Kind: KindInternal}
	ErrInvalid            = &Error{Kind: KindInvalid}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrConflict           = &Error{Kind: KindConflict}
	ErrInvalidToken       = &Error{Kind: KindInvalidToken}
	ErrExpiredToken       = &Error{Kind: KindExpiredToken}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials}
	ErrCorruptCredential  = &Error{Kind: KindCorruptCredential}
	ErrRenameUnsupported  = &Error{Kind: KindRenameUnsupported}
	ErrStoreUnavailable   = &Error{Kind: KindStoreUnavailable}
	ErrForbidden          = &Error{Kind: KindForbidden}
)

// Error is a classified error.
type Error struct {
	Kind Kind
	// Op is the operation or saga step that failed, e.g. "tenant.create.insert_admin".
	Op  string
	Msg string
	Err error
}

// New returns a classified error with a message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap classifies err as kind. It returns nil if err is nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// E annotates err with op and keeps the kind already present in the chain.
// It returns nil if err is nil.
func E(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindOf(err), Op: op, Err: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.Msg != "" && e.Err != nil:
		b.WriteString(e.Msg)
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	case e.Msg != "":
		b.WriteString(e.Msg)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString(string(e.Kind))
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the kind-only sentinel for e's kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

// KindOf returns the kind of the outermost classified error in the chain,
// or KindInternal when nothing in the chain is classified.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Kind != "" {
		return e.Kind
	}
	return KindInternal
}

// OpOf returns the innermost operation recorded in the chain. The innermost
// op is the most specific saga step.
func OpOf(err error) string {
	op := ""
	for err != nil {
		if e, ok := err.(*Error); ok && e.Op != "" {
			op = e.Op
		}
		err = errors.Unwrap(err)
	}
	return op
}
