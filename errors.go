// Copyright 2026 The wxreport Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bufr

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind is the closed set of error categories a decode or encode call can
// fail with. Every failure that crosses a package boundary carries one of
// these.
type Kind int

// The closed error-kind set.
const (
	// NotFound: unknown Varcode, unknown table.
	NotFound Kind = iota
	// TypeMismatch: value type does not match Varinfo type.
	TypeMismatch
	// TooLong: buffer too short for expected data.
	TooLong
	// Parse: malformed wire data.
	Parse
	// Consistency: structural invariant violated.
	Consistency
	// Domain: value outside the encodable range of its Varinfo.
	Domain
	// Unimplemented: opcode or modifier not yet supported.
	Unimplemented
	// System: underlying I/O or allocation failure, surfaced unchanged.
	System
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "NOTFOUND"
	case TypeMismatch:
		return "TYPE"
	case TooLong:
		return "TOOLONG"
	case Parse:
		return "PARSE"
	case Consistency:
		return "CONSISTENCY"
	case Domain:
		return "DOMAIN"
	case Unimplemented:
		return "UNIMPLEMENTED"
	case System:
		return "SYSTEM"
	default:
		return "UNKNOWN"
	}
}

// Error is the error type returned by every exported operation in this
// package. It carries enough context (file name, section, offset) to
// reconstruct what went wrong without re-running the decode.
type Error struct {
	Kind    Kind
	File    string
	Section int // -1 if not applicable
	Offset  int // -1 if not applicable
	Msg     string
	Cause   error

	// ID is a random UUID assigned when the error is created; every Error
	// value gets its own.
	ID uuid.UUID
}

func (e *Error) Error() string {
	s := fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	if e.File != "" {
		s = fmt.Sprintf("%s (file %s", s, e.File)
		if e.Section >= 0 {
			s = fmt.Sprintf("%s, section %d", s, e.Section)
		}
		if e.Offset >= 0 {
			s = fmt.Sprintf("%s, offset %d", s, e.Offset)
		}
		s += ")"
	} else if e.Section >= 0 || e.Offset >= 0 {
		s = fmt.Sprintf("%s (section %d, offset %d)", s, e.Section, e.Offset)
	}
	return s
}

// Unwrap exposes the underlying cause, if any, to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Kind, so callers can
// do errors.Is(err, bufr.ErrNotFound) style checks against the sentinels
// below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels usable with errors.Is for a coarse kind check.
var (
	ErrNotFound      = &Error{Kind: NotFound, Section: -1, Offset: -1}
	ErrTypeMismatch  = &Error{Kind: TypeMismatch, Section: -1, Offset: -1}
	ErrTooLong       = &Error{Kind: TooLong, Section: -1, Offset: -1}
	ErrParse         = &Error{Kind: Parse, Section: -1, Offset: -1}
	ErrConsistency   = &Error{Kind: Consistency, Section: -1, Offset: -1}
	ErrDomain        = &Error{Kind: Domain, Section: -1, Offset: -1}
	ErrUnimplemented = &Error{Kind: Unimplemented, Section: -1, Offset: -1}
	ErrSystem        = &Error{Kind: System, Section: -1, Offset: -1}
)

func newErr(kind Kind, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Section: -1,
		Offset:  -1,
		Msg:     fmt.Sprintf(format, args...),
		ID:      uuid.New(),
	}
}

func newErrf(kind Kind, file string, section, offset int, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		File:    file,
		Section: section,
		Offset:  offset,
		Msg:     fmt.Sprintf(format, args...),
		ID:      uuid.New(),
	}
}

func wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	e := newErr(kind, format, args...)
	e.Cause = cause
	return e
}
