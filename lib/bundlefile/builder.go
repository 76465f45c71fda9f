// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package bundlefile

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/unityrepack/scene-repacker/lib/rerr"
)

// Builder accumulates named entries to be written as one bundle.
type Builder struct {
	unityVersion  string
	unityRevision string
	compression   CompressionWriter
	names         []string
	bodies        map[string][]byte
}

// NewBuilder starts a bundle writer tagged with the given Unity
// version strings. comp is the compressor to use for the body
// section; pass NoneWriter() when in doubt.
func NewBuilder(unityVersion, unityRevision string, comp CompressionWriter) *Builder {
	return &Builder{
		unityVersion:  unityVersion,
		unityRevision: unityRevision,
		compression:   comp,
		bodies:        make(map[string][]byte),
	}
}

// Add appends a named entry. Entries are written in the order Add was
// called.
func (b *Builder) Add(name string, data []byte) {
	if _, exists := b.bodies[name]; !exists {
		b.names = append(b.names, name)
	}
	b.bodies[name] = data
}

// Write serializes the accumulated entries to w.
func (b *Builder) Write(w io.Writer) error {
	var body bytes.Buffer
	offsets := make([]int64, len(b.names))
	sizes := make([]int64, len(b.names))
	for i, name := range b.names {
		offsets[i] = int64(body.Len())
		data := b.bodies[name]
		sizes[i] = int64(len(data))
		if _, err := body.Write(data); err != nil {
			return rerr.Wrap(rerr.IO, err, "bundlefile: building body")
		}
	}

	compressedBody, err := b.compression.Compress(body.Bytes())
	if err != nil {
		return rerr.Context(err, "bundlefile: compressing body")
	}

	var out bytes.Buffer
	out.WriteString(Signature)
	writeU32(&out, FormatVersion)
	writeCString(&out, b.unityVersion)
	writeCString(&out, b.unityRevision)
	writeU32(&out, uint32(b.compression.Kind()))
	writeU32(&out, uint32(len(b.names)))
	for i, name := range b.names {
		writeCString(&out, name)
		writeI64(&out, offsets[i])
		writeI64(&out, sizes[i])
	}
	out.Write(compressedBody)

	if _, err := w.Write(out.Bytes()); err != nil {
		return rerr.Wrap(rerr.IO, err, "bundlefile: writing output")
	}
	return nil
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeI64(buf *bytes.Buffer, v int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	buf.Write(b[:])
}

func writeCString(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
	buf.WriteByte(0)
}
