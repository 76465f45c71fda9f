// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package rerr defines the error kinds used throughout the repacker
// core, and a small helper for building contextual error chains.
package rerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error so that callers can switch on errors.Is
// without parsing messages.
type Kind struct{ name string }

func (k *Kind) Error() string { return k.name }

var (
	// NotFound is returned when a required file is absent (e.g. no
	// globalgamemanagers, or an external named by a FileIdentifier
	// cannot be resolved).
	NotFound = &Kind{"not found"}
	// Parse is returned when a serialized file or bundle fails to
	// decode.
	Parse = &Kind{"parse error"}
	// MissingType is returned when a class or script type has no
	// known type tree.
	MissingType = &Kind{"missing type tree"}
	// MissingObject is returned when a path-id is referenced but is
	// absent from its file.
	MissingObject = &Kind{"missing object"}
	// UnsupportedFeature is returned when a file uses a format
	// variant the walker does not handle.
	UnsupportedFeature = &Kind{"unsupported feature"}
	// InvalidBundle is returned when a packed container exists but
	// cannot be parsed as UnityFS.
	InvalidBundle = &Kind{"invalid bundle"}
	// Probe is returned when a game directory does not exist at all.
	Probe = &Kind{"probe failed"}
	// LookupMiss is returned when a hierarchy path resolves to
	// nothing. Callers downgrade this to a warning; it is not fatal.
	LookupMiss = &Kind{"lookup miss"}
	// IO wraps failures from the resolver or underlying storage.
	IO = &Kind{"io error"}
	// Internal marks invariant violations that should not occur.
	Internal = &Kind{"internal error"}
)

// kindErr pairs a Kind with a message and an optional wrapped cause, so
// that errors.Is(err, rerr.NotFound) works alongside a normal %w chain.
type kindErr struct {
	kind *Kind
	msg  string
	wrap error
}

func (e *kindErr) Error() string {
	if e.wrap != nil {
		return e.msg + ": " + e.wrap.Error()
	}
	return e.msg
}

func (e *kindErr) Unwrap() error { return e.wrap }

func (e *kindErr) Is(target error) bool { return target == e.kind }

// New creates an error of the given kind with a formatted message.
func New(kind *Kind, format string, args ...any) error {
	return &kindErr{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind and contextual message to an existing error,
// preserving it in the Unwrap chain so errors.Is/As still see through
// to the original cause.
func Wrap(kind *Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &kindErr{kind: kind, msg: fmt.Sprintf(format, args...), wrap: err}
}

// Context wraps err with a plain contextual message (no kind change),
// for building chains like "In external {id} {path}: In monobehaviour
// {path_id}: <original error>".
func Context(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is is a re-export of errors.Is for convenience in callers that
// otherwise only import rerr.
func Is(err error, target error) bool { return errors.Is(err, target) }
