// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package typetree implements the type-tree-guided binary walker: the
// common currency between scanning an object's pointer fields and
// rewriting them in place, built once and reused by both operations.
//
// The TypeTreeNode *is* the schema, read at run time from the
// serialized file itself, so the walker is a plain recursive
// interpreter over (node, bytes, cursor) rather than a reflect.Type
// switch over a static Go struct.
package typetree

import (
	"encoding/binary"
	"fmt"

	"github.com/unityrepack/scene-repacker/lib/rerr"
	"github.com/unityrepack/scene-repacker/lib/unityfs"
)

// primitiveWidths gives the byte width of every primitive type name
// the walker recognises directly.
var primitiveWidths = map[string]int{
	"bool":   1,
	"SInt8":  1,
	"UInt8":  1,
	"char":   1,
	"SInt16": 2,
	"UInt16": 2,
	"SInt32": 4,
	"UInt32": 4,
	"float":  4,
	"SInt64": 8,
	"UInt64": 8,
	"double": 8,
	// Unity's own type trees spell the implicit array-length field
	// (the "size" child of an "Array" node) as a plain "int" rather
	// than "SInt32"; both widths are 4 bytes so they're aliased here.
	"int":          4,
	"unsigned int": 4,
}

// unsupportedTypeNames are type names the walker recognises but
// refuses to interpret: not required by the covered workload, so
// these are rejected with Unsupported rather than half-handled.
var unsupportedTypeNames = map[string]bool{
	"TypelessData":              true,
	"ManagedReferencesRegistry": true,
}

func isUnsupportedTypeName(name string) bool {
	if unsupportedTypeNames[name] {
		return true
	}
	return len(name) >= len("ReferencedObject") && name[:len("ReferencedObject")] == "ReferencedObject"
}

func align4(pos int) int {
	if rem := pos % 4; rem != 0 {
		pos += 4 - rem
	}
	return pos
}

func needBytes(data []byte, pos, n int) error {
	if pos < 0 || n < 0 || pos+n > len(data) {
		return rerr.New(rerr.Parse, "typetree: need %d bytes at offset %d, have %d", n, pos, len(data))
	}
	return nil
}

func readU32(data []byte, pos int, ord binary.ByteOrder) (uint32, error) {
	if err := needBytes(data, pos, 4); err != nil {
		return 0, err
	}
	return ord.Uint32(data[pos:]), nil
}

// readPrimitiveRaw reads a width-n little/big-endian unsigned integer,
// widened to uint64, advancing past it. Floats are returned as their
// raw bit patterns; callers needing math semantics convert with
// math.Float32frombits/Float64frombits.
func readPrimitiveRaw(data []byte, pos, width int, ord binary.ByteOrder) (uint64, error) {
	if err := needBytes(data, pos, width); err != nil {
		return 0, err
	}
	switch width {
	case 1:
		return uint64(data[pos]), nil
	case 2:
		return uint64(ord.Uint16(data[pos:])), nil
	case 4:
		return uint64(ord.Uint32(data[pos:])), nil
	case 8:
		return ord.Uint64(data[pos:]), nil
	default:
		return 0, fmt.Errorf("typetree: unsupported primitive width %d", width)
	}
}

// ByteOrderFor selects the runtime byte order for a file: endianness
// comes from the file header and must be honoured byte-exactly. Only
// little-endian files are accepted.
func ByteOrderFor(hdr unityfs.Header) (binary.ByteOrder, error) {
	if hdr.Endianness != 0 {
		return nil, rerr.New(rerr.UnsupportedFeature, "typetree: big-endian object payloads are not supported")
	}
	return binary.LittleEndian, nil
}
