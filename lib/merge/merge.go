// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package merge implements the scene merger, the most intricate
// component in the repacker core: given a sequence of pruned scenes,
// it plans a shared remap (path-ids, externals, script-types, types)
// against one output lib/builder.Builder, then rewrites every
// surviving object's bytes in parallel across scenes, and finally
// assembles one of the three output modes (asset bundle, scene
// bundle, shallow asset bundle).
package merge

import (
	"strings"

	"github.com/unityrepack/scene-repacker/lib/prune"
	"github.com/unityrepack/scene-repacker/lib/unityfs"
)

// Scene is one scene's input to the merger: the pruned result plus
// enough of the original file to plan and rewrite it. lib/repack
// constructs one of these per input scene after running lib/prune.
type Scene struct {
	// Name is the scene's Unity build-setting name, stripped of
	// extension, used both for log context and for the hierarchy-path
	// prefix in container-table entries.
	Name string
	// FilePath is the resolver path the scene's bytes were read from
	// (e.g. "level3"), used only by shallow-asset-bundle mode to build
	// a synthetic external pointing back at the still-shipped file.
	FilePath string
	File     *unityfs.SerializedFile

	Reachable    map[int64]bool
	Replacements map[int64][]byte
	Retained     []prune.RetainedPath

	// MBTypes maps a MonoBehaviour's original path-id to the type tree
	// resolved for its script: when a surviving object is a
	// MonoBehaviour registered here, the rewrite step uses this tree
	// instead of the class's generic header type.
	MBTypes map[int64]*unityfs.TypeTreeNode
}

// Stats reports the merge's before/after object and byte counts.
type Stats struct {
	ObjectsBefore uint64
	ObjectsAfter  uint64
	SizeBefore    uint64
	SizeAfter     uint64
}

func (s *Stats) addBefore(objects int, size int) {
	s.ObjectsBefore += uint64(objects)
	s.SizeBefore += uint64(size)
}

func (s *Stats) addAfter(objects int, size int) {
	s.ObjectsAfter += uint64(objects)
	s.SizeAfter += uint64(size)
}

// keepSetOrdered returns the objects this scene's merge output should
// include: every reachable object, in the scene's original
// declaration order.
func (s *Scene) keepSetOrdered() []*unityfs.ObjectInfo {
	out := make([]*unityfs.ObjectInfo, 0, len(s.Reachable))
	for _, info := range s.File.Objects {
		if s.Reachable[info.PathID] {
			out = append(out, info)
		}
	}
	return out
}

// containerPath builds the lower-cased key used in the output asset
// bundle's container table for one retained root:
// `"{scene_name}/{hierarchy_path}.prefab"`.
func containerPath(sceneName, hierarchyPath string) string {
	return strings.ToLower(sceneName + "/" + hierarchyPath + ".prefab")
}

// usedTypeIDs returns the set of local type indices referenced by
// scene's surviving objects; both scene-bundle mode and PlanScene's
// type-remap step build their own type list restriction on top of this
// shared set.
func usedTypeIDs(scene *Scene) map[int32]bool {
	used := make(map[int32]bool)
	for _, info := range scene.keepSetOrdered() {
		used[info.TypeID] = true
	}
	return used
}

// pruneTypes restricts a scene's local type list to only the types
// referenced by surviving objects. Unlike PlanScene, this does not
// touch script-types or externals, since scene-bundle mode emits each
// scene's bytes with no pointer remapping at all.
func pruneTypes(scene *Scene) (map[int32]int32, []*unityfs.SerializedType) {
	used := usedTypeIDs(scene)
	remap := make(map[int32]int32)
	var types []*unityfs.SerializedType
	for i, t := range scene.File.Types {
		oldID := int32(i)
		if !used[oldID] {
			continue
		}
		remap[oldID] = int32(len(types))
		types = append(types, t)
	}
	return remap, types
}
