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

// buildAssetBundleObject constructs the single synthetic AssetBundle
// object every output mode ends with, and appends it to b at path-id
// 1 (the reserved id for the bundle's own root object).
func buildAssetBundleObject(b *builder.Builder, bundleName string, container []typetree.AssetBundleContainerEntry, ord binary.ByteOrder) error {
	typeID := b.AddTypeUncached(&unityfs.SerializedType{
		ClassID: unityfs.ClassAssetBundle,
		Nodes:   unityfs.StdAssetBundleType(),
	})
	tree := b.TypeTree(typeID)

	v := typetree.Zero(tree)
	v.Field("m_Name").Str = bundleName
	v.Field("m_RuntimeCompatibility").Uint = 1
	v.Field("m_AssetBundleName").Str = bundleName
	typetree.SetAssetBundleContainer(v, container)

	return b.AddValue(v, ord, unityfs.ObjectInfo{
		PathID:  1,
		TypeID:  typeID,
		ClassID: unityfs.ClassAssetBundle,
	})
}

// sceneContainerEntries builds one container-table entry per retained
// root in scene: key `"{scene_name}/{hierarchy_path}.prefab"`
// (lower-cased), asset = PPtr(0, remapped_go_path_id).
func sceneContainerEntries(scene *Scene, rt *RemapTables) ([]typetree.AssetBundleContainerEntry, error) {
	entries := make([]typetree.AssetBundleContainerEntry, 0, len(scene.Retained))
	for _, rp := range scene.Retained {
		newGOPathID, ok := rt.PathID[rp.GameObjectPathID]
		if !ok {
			return nil, rerr.New(rerr.Internal, "merge: %s: retained root %q's game object %d has no path-id remap", scene.Name, rp.Path, rp.GameObjectPathID)
		}
		entries = append(entries, typetree.AssetBundleContainerEntry{
			Path:  containerPath(scene.Name, rp.Path),
			Asset: unityfs.PPtr{FileID: 0, PathID: newGOPathID},
		})
	}
	return entries, nil
}
