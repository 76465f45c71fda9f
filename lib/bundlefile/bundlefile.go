// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package bundlefile reads and writes the single-container "UnityFS"
// bundle format: a flat archive of named file entries, used both for
// the packed-game-directory resolver variant and for the merge step's
// asset-bundle output modes.
//
// As with lib/unityfs, this is a self-consistent internal encoding
// rather than a byte-exact replica of Unity's actual compressed
// blocks-and-directory container layout: the engine's own block
// compression and multi-block directory format are assumed given by
// "the underlying Unity file parser" this repacker builds on top of,
// so only the entry table and concatenated bodies this package's
// callers actually need are modeled.
package bundlefile

import (
	"encoding/binary"

	"github.com/unityrepack/scene-repacker/lib/rerr"
)

// Signature is the fixed magic every bundle begins with.
const Signature = "UnityFS"

// FormatVersion is the bundle format version this package emits and
// expects.
const FormatVersion uint32 = 7

// entry is one file's location within the bundle body.
type entry struct {
	name   string
	offset int64
	size   int64
}

// Reader provides random access to a parsed bundle's entries.
type Reader struct {
	body    []byte
	entries []entry
	names   []string
	byName  map[string]entry
}

// Parse decodes a bundle previously written by Write (or another
// instance of this package).
func Parse(data []byte) (*Reader, error) {
	c := &cursor{data: data, ord: binary.LittleEndian}

	sig, err := c.fixed(len(Signature))
	if err != nil || string(sig) != Signature {
		return nil, rerr.New(rerr.Parse, "bundlefile: bad signature")
	}
	version, err := c.u32()
	if err != nil {
		return nil, rerr.Context(err, "bundlefile: reading format version")
	}
	if version != FormatVersion {
		return nil, rerr.New(rerr.UnsupportedFeature, "bundlefile: unsupported format version %d", version)
	}
	if _, err := c.cstring(); err != nil { // unity version string, informational
		return nil, rerr.Context(err, "bundlefile: reading unity version")
	}
	if _, err := c.cstring(); err != nil { // unity revision string, informational
		return nil, rerr.Context(err, "bundlefile: reading unity revision")
	}
	compression, err := c.u32()
	if err != nil {
		return nil, rerr.Context(err, "bundlefile: reading compression kind")
	}
	if Compression(compression) != CompressionNone {
		return nil, rerr.New(rerr.UnsupportedFeature, "bundlefile: compression kind %d is not supported", compression)
	}

	numEntries, err := c.u32()
	if err != nil {
		return nil, rerr.Context(err, "bundlefile: reading entry count")
	}
	entries := make([]entry, numEntries)
	for i := range entries {
		name, err := c.cstring()
		if err != nil {
			return nil, rerr.Context(err, "bundlefile: reading entry %d name", i)
		}
		offset, err := c.i64()
		if err != nil {
			return nil, rerr.Context(err, "bundlefile: reading entry %d offset", i)
		}
		size, err := c.i64()
		if err != nil {
			return nil, rerr.Context(err, "bundlefile: reading entry %d size", i)
		}
		entries[i] = entry{name: name, offset: offset, size: size}
	}

	body := data[c.pos:]
	r := &Reader{body: body, entries: entries, byName: make(map[string]entry, len(entries))}
	for _, e := range entries {
		r.names = append(r.names, e.name)
		r.byName[e.name] = e
	}
	return r, nil
}

// ReadAt returns the named entry's bytes, if present.
func (r *Reader) ReadAt(name string) ([]byte, bool) {
	e, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	if e.offset < 0 || e.size < 0 || e.offset+e.size > int64(len(r.body)) {
		return nil, false
	}
	return r.body[e.offset : e.offset+e.size], true
}

// Names returns every entry name in the bundle, in on-disk order.
func (r *Reader) Names() []string {
	return r.names
}
