// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package unityfs implements the data model shared by the rest of the
// repacker: PPtr references, type trees, object tables, and the
// SerializedFile view.
package unityfs

import "fmt"

// PPtr is a reference to an object, either in the current file
// (FileID == 0) or in one of the current file's externals
// (FileID indexes 1-based into SerializedFile.Externals).
//
// (0, 0) is the null pointer.
type PPtr struct {
	FileID int32
	PathID int64
}

// IsNull reports whether p is the (0, 0) null pointer.
func (p PPtr) IsNull() bool { return p.FileID == 0 && p.PathID == 0 }

// IsLocal reports whether p refers to an object in the same file.
// A null PPtr is not considered local.
func (p PPtr) IsLocal() bool { return p.FileID == 0 && !p.IsNull() }

func (p PPtr) String() string { return fmt.Sprintf("PPtr(%d, %d)", p.FileID, p.PathID) }

// TypedPPtr carries a phantom target class for documentation and
// type-safety at call sites; it has the same representation as PPtr.
type TypedPPtr[T any] struct {
	PPtr
}

// NewTypedPPtr wraps a raw PPtr with a phantom target type.
func NewTypedPPtr[T any](p PPtr) TypedPPtr[T] { return TypedPPtr[T]{PPtr: p} }
