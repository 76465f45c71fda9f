// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package unityfs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/unityrepack/scene-repacker/lib/rerr"
)

// FormatVersion is the serialized-file format version this package
// reads and writes. Real game files in the wild span many format
// versions; this package only needs to interpret and emit the one
// modern layout it's built around, and treats anything else (32-bit
// path-ids, big-endian bodies, reference-typed objects) as
// UnsupportedFeature.
const FormatVersion uint32 = 22

const headerSize = 28

// Header is the fixed-size prefix of a SerializedFile, read and
// written big-endian regardless of the body's own endianness.
type Header struct {
	MetadataSize uint32
	FileSize     int64
	Version      uint32
	DataOffset   int64
	// Endianness is 0 for little-endian bodies, 1 for big-endian.
	// Only 0 is supported.
	Endianness byte
}

// SerializedFile is a parsed view over one Unity serialized file
// (a scene, a level file, globalgamemanagers, or a .assets file).
type SerializedFile struct {
	Header          Header
	UnityVersionStr string
	UnityVersion    UnityVersion
	Types           []*SerializedType
	Objects         []*ObjectInfo
	ScriptTypes     []*ScriptTypeInfo
	Externals       []FileIdentifier
	RefTypes        []*SerializedType
	UserInformation string

	data []byte // backing bytes, shared with the environment cache's Data
}

// ParseSerializedFile decodes a SerializedFile view from raw bytes.
// The returned view borrows data; the caller must keep data alive
// for the view's lifetime (see lib/env for the cache that owns it).
func ParseSerializedFile(data []byte) (*SerializedFile, error) {
	if len(data) < headerSize {
		return nil, rerr.Wrap(rerr.Parse, io.ErrUnexpectedEOF, "unityfs: file too small for header")
	}
	hc := newCursor(data[:headerSize], binary.BigEndian)
	var hdr Header
	var err error
	var u32v uint32
	if u32v, err = hc.u32(); err != nil {
		return nil, rerr.Wrap(rerr.Parse, err, "unityfs: reading header")
	}
	hdr.MetadataSize = u32v
	if hdr.FileSize, err = hc.i64(); err != nil {
		return nil, rerr.Wrap(rerr.Parse, err, "unityfs: reading header")
	}
	if u32v, err = hc.u32(); err != nil {
		return nil, rerr.Wrap(rerr.Parse, err, "unityfs: reading header")
	}
	hdr.Version = u32v
	if hdr.DataOffset, err = hc.i64(); err != nil {
		return nil, rerr.Wrap(rerr.Parse, err, "unityfs: reading header")
	}
	if hdr.Endianness, err = hc.u8(); err != nil {
		return nil, rerr.Wrap(rerr.Parse, err, "unityfs: reading header")
	}
	if hdr.Version != FormatVersion {
		return nil, rerr.New(rerr.UnsupportedFeature, "unityfs: unsupported serialized-file version %d (want %d)", hdr.Version, FormatVersion)
	}
	if hdr.Endianness != 0 {
		return nil, rerr.New(rerr.UnsupportedFeature, "unityfs: big-endian serialized files are not supported")
	}
	if int64(headerSize)+int64(hdr.MetadataSize) > int64(len(data)) {
		return nil, rerr.New(rerr.Parse, "unityfs: metadata size %d overruns file of length %d", hdr.MetadataSize, len(data))
	}

	sf := &SerializedFile{Header: hdr, data: data}
	mc := newCursor(data[headerSize:headerSize+int(hdr.MetadataSize)], binary.LittleEndian)

	if sf.UnityVersionStr, err = mc.cstring(); err != nil {
		return nil, rerr.Wrap(rerr.Parse, err, "unityfs: reading unity version")
	}
	if sf.UnityVersion, err = ParseUnityVersion(sf.UnityVersionStr); err != nil {
		return nil, rerr.Wrap(rerr.Parse, err, "unityfs: parsing unity version %q", sf.UnityVersionStr)
	}
	if _, err = mc.i32(); err != nil { // target platform, unused by the repacker core
		return nil, rerr.Wrap(rerr.Parse, err, "unityfs: reading target platform")
	}
	enableTypeTree, err := mc.bool()
	if err != nil {
		return nil, rerr.Wrap(rerr.Parse, err, "unityfs: reading enableTypeTree")
	}

	typeCount, err := mc.u32()
	if err != nil {
		return nil, rerr.Wrap(rerr.Parse, err, "unityfs: reading type count")
	}
	sf.Types = make([]*SerializedType, typeCount)
	for i := range sf.Types {
		t, err := readSerializedType(mc, enableTypeTree)
		if err != nil {
			return nil, rerr.Context(err, "unityfs: reading type %d", i)
		}
		sf.Types[i] = t
	}

	objCount, err := mc.u32()
	if err != nil {
		return nil, rerr.Wrap(rerr.Parse, err, "unityfs: reading object count")
	}
	sf.Objects = make([]*ObjectInfo, objCount)
	for i := range sf.Objects {
		o := &ObjectInfo{}
		if o.PathID, err = mc.i64(); err != nil {
			return nil, rerr.Context(err, "unityfs: reading object %d", i)
		}
		if o.Offset, err = mc.i64(); err != nil {
			return nil, rerr.Context(err, "unityfs: reading object %d", i)
		}
		if o.Size, err = mc.i64(); err != nil {
			return nil, rerr.Context(err, "unityfs: reading object %d", i)
		}
		if o.TypeID, err = mc.i32(); err != nil {
			return nil, rerr.Context(err, "unityfs: reading object %d", i)
		}
		if o.ClassID, err = mc.i32(); err != nil {
			return nil, rerr.Context(err, "unityfs: reading object %d", i)
		}
		if o.ScriptTypeIndex, err = mc.i16(); err != nil {
			return nil, rerr.Context(err, "unityfs: reading object %d", i)
		}
		if o.Offset < 0 || o.Size < 0 || o.Offset+o.Size > int64(len(data)) {
			return nil, rerr.New(rerr.Parse, "unityfs: object %d (path_id=%d) byte range [%d,%d) out of bounds", i, o.PathID, o.Offset, o.Offset+o.Size)
		}
		sf.Objects[i] = o
	}

	scriptCount, err := mc.u32()
	if err != nil {
		return nil, rerr.Wrap(rerr.Parse, err, "unityfs: reading script type count")
	}
	sf.ScriptTypes = make([]*ScriptTypeInfo, scriptCount)
	for i := range sf.ScriptTypes {
		st := &ScriptTypeInfo{}
		if st.LocalSerializedFileIndex, err = mc.i32(); err != nil {
			return nil, rerr.Context(err, "unityfs: reading script type %d", i)
		}
		if st.LocalIdentifierInFile, err = mc.i64(); err != nil {
			return nil, rerr.Context(err, "unityfs: reading script type %d", i)
		}
		sf.ScriptTypes[i] = st
	}

	extCount, err := mc.u32()
	if err != nil {
		return nil, rerr.Wrap(rerr.Parse, err, "unityfs: reading externals count")
	}
	sf.Externals = make([]FileIdentifier, extCount)
	for i := range sf.Externals {
		fi := &sf.Externals[i]
		if fi.Guid, err = mc.guid(); err != nil {
			return nil, rerr.Context(err, "unityfs: reading external %d", i)
		}
		if fi.Type, err = mc.i32(); err != nil {
			return nil, rerr.Context(err, "unityfs: reading external %d", i)
		}
		if fi.PathName, err = mc.str32(); err != nil {
			return nil, rerr.Context(err, "unityfs: reading external %d", i)
		}
	}

	refCount, err := mc.u32()
	if err != nil {
		return nil, rerr.Wrap(rerr.Parse, err, "unityfs: reading ref-types count")
	}
	sf.RefTypes = make([]*SerializedType, refCount)
	for i := range sf.RefTypes {
		t, err := readSerializedType(mc, enableTypeTree)
		if err != nil {
			return nil, rerr.Context(err, "unityfs: reading ref-type %d", i)
		}
		sf.RefTypes[i] = t
	}

	if sf.UserInformation, err = mc.str32(); err != nil {
		return nil, rerr.Wrap(rerr.Parse, err, "unityfs: reading user information")
	}

	return sf, nil
}

func readSerializedType(c *cursor, enableTypeTree bool) (*SerializedType, error) {
	t := &SerializedType{}
	var err error
	if t.ClassID, err = c.i32(); err != nil {
		return nil, err
	}
	if t.IsStrippedType, err = c.bool(); err != nil {
		return nil, err
	}
	if t.ScriptTypeIndex, err = c.i16(); err != nil {
		return nil, err
	}
	if t.ScriptID, err = c.guid(); err != nil {
		return nil, err
	}
	if t.OldTypeHash, err = c.guid(); err != nil {
		return nil, err
	}
	if enableTypeTree {
		hasTree, err := c.bool()
		if err != nil {
			return nil, err
		}
		if hasTree {
			if t.Nodes, err = readTypeTree(c); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

func writeSerializedType(w *writer, t *SerializedType, enableTypeTree bool) {
	w.i32(t.ClassID)
	w.boolv(t.IsStrippedType)
	w.i16(t.ScriptTypeIndex)
	w.guid(t.ScriptID)
	w.guid(t.OldTypeHash)
	if enableTypeTree {
		w.boolv(t.Nodes != nil)
		if t.Nodes != nil {
			writeTypeTree(w, t.Nodes)
		}
	}
}

// ObjectBytes returns the raw payload bytes for o, sliced from the
// file's backing buffer.
func (sf *SerializedFile) ObjectBytes(o *ObjectInfo) []byte {
	return sf.data[o.Offset : o.Offset+o.Size]
}

// FindObject looks up an object by path-id.
func (sf *SerializedFile) FindObject(pathID int64) (*ObjectInfo, bool) {
	for _, o := range sf.Objects {
		if o.PathID == pathID {
			return o, true
		}
	}
	return nil, false
}

// TypeByID returns the local type tree entry for a TypeID.
func (sf *SerializedFile) TypeByID(id int32) (*SerializedType, bool) {
	if id < 0 || int(id) >= len(sf.Types) {
		return nil, false
	}
	return sf.Types[id], true
}

// FileMeta is everything WriteSerializedFile needs besides the object
// records themselves: the accumulated state a lib/builder.Builder
// holds.
type FileMeta struct {
	UnityVersionStr string
	Types           []*SerializedType
	ScriptTypes     []*ScriptTypeInfo
	Externals       []FileIdentifier
	RefTypes        []*SerializedType
	UserInformation string
	EnableTypeTree  bool
}

// ObjectRecord is one object ready to be emitted: its (already
// remapped) info, and its final payload bytes. Offset and Size in
// Info are ignored by WriteSerializedFile and recomputed from Data, so
// that offsets inside ObjectInfo always reflect positions in the
// written stream.
type ObjectRecord struct {
	Info ObjectInfo
	Data []byte
}

// WriteSerializedFile emits the full binary for meta plus records,
// following the standard serialized-file layout: header (sizes,
// format version, endianness), metadata (unity version, target
// platform, types, object table, script-types, externals, ref-types,
// user information), then the
// object-data section at the aligned offset. records must already be
// in the order to be written (lib/builder sorts by output path_id for
// deterministic output).
func WriteSerializedFile(w io.Writer, meta FileMeta, records []ObjectRecord) (int64, error) {
	const dataAlign = 8

	dataBuf := &bytes.Buffer{}
	patched := make([]ObjectInfo, len(records))
	for i, rec := range records {
		for dataBuf.Len()%dataAlign != 0 {
			dataBuf.WriteByte(0)
		}
		info := rec.Info
		info.Offset = int64(dataBuf.Len())
		info.Size = int64(len(rec.Data))
		dataBuf.Write(rec.Data)
		patched[i] = info
	}

	mw := newWriter(binary.LittleEndian)
	mw.cstring(meta.UnityVersionStr)
	mw.i32(0) // target platform
	mw.boolv(meta.EnableTypeTree)

	mw.u32(uint32(len(meta.Types)))
	for _, t := range meta.Types {
		writeSerializedType(mw, t, meta.EnableTypeTree)
	}

	mw.u32(uint32(len(patched)))
	for _, info := range patched {
		mw.i64(info.PathID)
		mw.i64(info.Offset)
		mw.i64(info.Size)
		mw.i32(info.TypeID)
		mw.i32(info.ClassID)
		mw.i16(info.ScriptTypeIndex)
	}

	mw.u32(uint32(len(meta.ScriptTypes)))
	for _, st := range meta.ScriptTypes {
		mw.i32(st.LocalSerializedFileIndex)
		mw.i64(st.LocalIdentifierInFile)
	}

	mw.u32(uint32(len(meta.Externals)))
	for _, ext := range meta.Externals {
		mw.guid(ext.Guid)
		mw.i32(ext.Type)
		mw.str32(ext.PathName)
	}

	mw.u32(uint32(len(meta.RefTypes)))
	for _, t := range meta.RefTypes {
		writeSerializedType(mw, t, meta.EnableTypeTree)
	}

	mw.str32(meta.UserInformation)

	metadataSize := len(mw.buf)
	dataOffset := headerSize + metadataSize
	for dataOffset%4 != 0 {
		dataOffset++
	}
	fileSize := dataOffset + dataBuf.Len()

	hw := newWriter(binary.BigEndian)
	hw.u32(uint32(metadataSize))
	hw.i64(int64(fileSize))
	hw.u32(FormatVersion)
	hw.i64(int64(dataOffset))
	hw.u8(0) // endianness: little
	hw.raw(make([]byte, 3))

	out := make([]byte, 0, fileSize)
	out = append(out, hw.buf...)
	out = append(out, mw.buf...)
	for len(out) < dataOffset {
		out = append(out, 0)
	}
	out = append(out, dataBuf.Bytes()...)

	n, err := w.Write(out)
	if err != nil {
		return int64(n), fmt.Errorf("unityfs: writing serialized file: %w", err)
	}
	return int64(n), nil
}
