// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package merge

import (
	"encoding/binary"

	"github.com/unityrepack/scene-repacker/lib/builder"
	"github.com/unityrepack/scene-repacker/lib/rerr"
	"github.com/unityrepack/scene-repacker/lib/typetree"
	"github.com/unityrepack/scene-repacker/lib/unityfs"
)

// RewriteScene produces the final (ObjectInfo, bytes) pair for every
// surviving object in scene. Unlike PlanScene, RewriteScene reads b
// only (via b.TypeTree) and is safe to call concurrently for distinct
// scenes sharing the same builder.
func RewriteScene(b *builder.Builder, scene *Scene, rt *RemapTables, ord binary.ByteOrder) ([]unityfs.ObjectRecord, error) {
	objects := scene.keepSetOrdered()
	records := make([]unityfs.ObjectRecord, 0, len(objects))
	remap := rt.remapFunc()

	for _, info := range objects {
		newPathID, ok := rt.PathID[info.PathID]
		if !ok {
			return nil, rerr.New(rerr.Internal, "merge: %s: object %d has no path-id remap", scene.Name, info.PathID)
		}

		newTypeID, ok := rt.TypeID[info.TypeID]
		if !ok {
			return nil, rerr.New(rerr.Internal, "merge: %s: object %d has no type-id remap", scene.Name, info.PathID)
		}

		var tree *unityfs.TypeTreeNode
		if mbTree, ok := scene.MBTypes[info.PathID]; ok {
			tree = mbTree
		} else {
			tree = b.TypeTree(newTypeID)
			if tree == nil {
				return nil, rerr.New(rerr.MissingType, "merge: %s: no type tree for remapped type %d", scene.Name, newTypeID)
			}
		}

		payload := scenePayload(scene, info)

		if err := typetree.RewriteInPlace(tree, payload, ord, remap); err != nil {
			return nil, rerr.Context(err, "merge: %s: rewriting object %d", scene.Name, info.PathID)
		}

		newInfo := unityfs.ObjectInfo{
			PathID:          newPathID,
			TypeID:          newTypeID,
			ClassID:         info.ClassID,
			ScriptTypeIndex: info.ScriptTypeIndex,
		}
		if info.ClassID == unityfs.ClassMonoBehaviour {
			if remapped, ok := rt.ScriptType[info.ScriptTypeIndex]; ok {
				newInfo.ScriptTypeIndex = remapped
			}
		}

		records = append(records, unityfs.ObjectRecord{Info: newInfo, Data: payload})
	}

	return records, nil
}

// scenePayload returns the starting bytes for one object's rewrite: a
// replacement override if ancestor promotion or disable-roots
// produced one, otherwise a copy of the scene's original bytes.
// Copying is required even in the unmodified case because
// typetree.RewriteInPlace mutates its buffer in place, and the
// original slice aliases the shared env cache's backing bytes that
// other readers may still be using concurrently.
func scenePayload(scene *Scene, info *unityfs.ObjectInfo) []byte {
	if override, ok := scene.Replacements[info.PathID]; ok {
		out := make([]byte, len(override))
		copy(out, override)
		return out
	}
	src := scene.File.ObjectBytes(info)
	out := make([]byte, len(src))
	copy(out, src)
	return out
}
