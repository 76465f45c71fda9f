// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package builder implements the serialized-file builder: the
// accumulator that a merge pass feeds objects, types, externals, and
// script-types into, and that finally emits the merged binary via
// unityfs.WriteSerializedFile.
package builder

import (
	"encoding/binary"
	"io"
	"sort"

	"github.com/unityrepack/scene-repacker/lib/rerr"
	"github.com/unityrepack/scene-repacker/lib/typetree"
	"github.com/unityrepack/scene-repacker/lib/unityfs"
)

// firstAllocatedPathID is the lowest id PathIDAllocator.Next returns;
// path-id 1 is reserved by convention for the single output
// AssetBundle object (invariant I4).
const firstAllocatedPathID int64 = 2

// PathIDAllocator hands out one id per surviving object, starting at
// 2, rather than reusing a caller-provided interleave of ids.
type PathIDAllocator struct {
	next int64
}

// NewPathIDAllocator returns an allocator starting at 2.
func NewPathIDAllocator() *PathIDAllocator {
	return &PathIDAllocator{next: firstAllocatedPathID}
}

// Next returns the next path-id and advances the allocator.
func (a *PathIDAllocator) Next() int64 {
	id := a.next
	a.next++
	return id
}

// Builder accumulates an output SerializedFile's metadata and object
// records.
type Builder struct {
	ids             *PathIDAllocator
	unityVersionStr string
	userInformation string

	types       []*unityfs.SerializedType
	scriptTypes []*unityfs.ScriptTypeInfo
	externals   []unityfs.FileIdentifier
	refTypes    []*unityfs.SerializedType
	records     []unityfs.ObjectRecord
}

// New constructs an empty Builder tagged with the given Unity version
// string, which is copied verbatim into the output header.
func New(unityVersionStr string) *Builder {
	return &Builder{ids: NewPathIDAllocator(), unityVersionStr: unityVersionStr}
}

// GetNextPathID allocates and returns the next path-id.
func (b *Builder) GetNextPathID() int64 { return b.ids.Next() }

// AddTypeUncached appends t to the output's type list and returns its
// index. Callers are responsible for their own deduplication cache if
// they want to avoid appending the same type twice.
func (b *Builder) AddTypeUncached(t *unityfs.SerializedType) int32 {
	b.types = append(b.types, t)
	return int32(len(b.types) - 1)
}

// AddExternalUncached appends fi to the output's externals list and
// returns its 1-based index. No deduplication is performed: a scene
// referencing the same external file twice gets two identical
// entries, matching the merged output's externals table exactly to
// whatever its inputs asked for.
func (b *Builder) AddExternalUncached(fi unityfs.FileIdentifier) int32 {
	b.externals = append(b.externals, fi)
	return int32(len(b.externals))
}

// AddScriptTypeUncached appends st to the output's script-types list
// and returns its index.
func (b *Builder) AddScriptTypeUncached(st *unityfs.ScriptTypeInfo) int16 {
	b.scriptTypes = append(b.scriptTypes, st)
	return int16(len(b.scriptTypes) - 1)
}

// TypeTree returns the type tree for a previously-added type index, so
// callers can resolve a remapped type id back to its tree without
// keeping their own shadow copy of the appended types.
func (b *Builder) TypeTree(id int32) *unityfs.TypeTreeNode {
	if id < 0 || int(id) >= len(b.types) {
		return nil
	}
	return b.types[id].Nodes
}

// AddObject pushes a (info, data) tuple to be written. Offset/Size in
// info are ignored; Write computes them from data's position in the
// output's data section.
func (b *Builder) AddObject(info unityfs.ObjectInfo, data []byte) {
	b.records = append(b.records, unityfs.ObjectRecord{Info: info, Data: data})
}

// AddValue encodes v with ord and pushes the result as an object, for
// callers (the output orchestrator) constructing synthetic objects
// like the merged AssetBundle or a scene-bundle's PreloadData
// directly from a typetree.Value rather than from rewritten bytes.
func (b *Builder) AddValue(v *typetree.Value, ord binary.ByteOrder, info unityfs.ObjectInfo) error {
	data, err := typetree.Encode(v, ord)
	if err != nil {
		return rerr.Context(err, "builder: encoding object at path_id %d", info.PathID)
	}
	b.AddObject(info, data)
	return nil
}

// Write emits the accumulated state as a complete serialized file.
// Objects are sorted by output path_id first so the on-disk layout is
// deterministic for identical input regardless of the order AddObject
// was called in.
func (b *Builder) Write(w io.Writer) (int64, error) {
	sorted := make([]unityfs.ObjectRecord, len(b.records))
	copy(sorted, b.records)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Info.PathID < sorted[j].Info.PathID
	})

	meta := unityfs.FileMeta{
		UnityVersionStr: b.unityVersionStr,
		Types:           b.types,
		ScriptTypes:     b.scriptTypes,
		Externals:       b.externals,
		RefTypes:        b.refTypes,
		UserInformation: b.userInformation,
		EnableTypeTree:  true,
	}
	return unityfs.WriteSerializedFile(w, meta, sorted)
}

// ObjectCount returns how many objects have been added so far, for
// the orchestrator's ObjectsAfter statistic.
func (b *Builder) ObjectCount() int { return len(b.records) }
