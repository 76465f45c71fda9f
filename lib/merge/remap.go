// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package merge

import (
	"github.com/unityrepack/scene-repacker/lib/builder"
)

// RemapTables holds the four lookup tables the planning step produces
// for one scene: every old identifier a surviving object (or the
// metadata it references) might carry, mapped to its new home in the
// shared output builder.
type RemapTables struct {
	PathID     map[int64]int64
	FileID     map[int32]int32
	ScriptType map[int16]int16
	TypeID     map[int32]int32
}

// newRemapTables allocates the four empty maps a PlanScene call fills
// in.
func newRemapTables() *RemapTables {
	return &RemapTables{
		PathID:     make(map[int64]int64),
		FileID:     make(map[int32]int32),
		ScriptType: make(map[int16]int16),
		TypeID:     make(map[int32]int32),
	}
}

// PlanScene plans one scene's contribution to a shared merge: it
// appends the scene's externals, script-types, and (only those
// referenced by surviving objects) types into b, and allocates one new
// path-id per surviving object. PlanScene must be called sequentially
// per scene against a shared builder; it is not safe to call
// concurrently for two scenes sharing the same *builder.Builder.
func PlanScene(b *builder.Builder, scene *Scene) *RemapTables {
	rt := newRemapTables()

	for _, info := range scene.keepSetOrdered() {
		rt.PathID[info.PathID] = b.GetNextPathID()
	}

	for i, ext := range scene.File.Externals {
		oldFileID := int32(i + 1)
		rt.FileID[oldFileID] = b.AddExternalUncached(ext)
	}

	for i, st := range scene.File.ScriptTypes {
		remapped := *st
		if newFileID, ok := rt.FileID[remapped.LocalSerializedFileIndex]; ok {
			remapped.LocalSerializedFileIndex = newFileID
		}
		rt.ScriptType[int16(i)] = b.AddScriptTypeUncached(&remapped)
	}

	used := usedTypeIDs(scene)
	for i, t := range scene.File.Types {
		oldTypeID := int32(i)
		if !used[oldTypeID] {
			continue
		}
		remapped := *t
		if newScriptType, ok := rt.ScriptType[remapped.ScriptTypeIndex]; ok {
			remapped.ScriptTypeIndex = newScriptType
		}
		rt.TypeID[oldTypeID] = b.AddTypeUncached(&remapped)
	}

	return rt
}

// remapFunc builds the typetree.RewriteInPlace callback: local PPtrs
// (file_id == 0) are remapped by path-id, non-local ones by file-id; a
// component with no entry in the relevant table is left unchanged
// (this happens for pointers into externals the scene references but
// whose target object fell outside every scene's keep set — those are
// left dangling-by-convention, as the original PPtr still names a
// valid object in the still-shipped external file).
func (rt *RemapTables) remapFunc() func(int32, int64) (int32, int64) {
	return func(fileID int32, pathID int64) (int32, int64) {
		if fileID == 0 {
			if newPathID, ok := rt.PathID[pathID]; ok {
				return 0, newPathID
			}
			return 0, pathID
		}
		if newFileID, ok := rt.FileID[fileID]; ok {
			return newFileID, pathID
		}
		return fileID, pathID
	}
}
