// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package merge

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/unityrepack/scene-repacker/lib/builder"
	"github.com/unityrepack/scene-repacker/lib/bundlefile"
	"github.com/unityrepack/scene-repacker/lib/typetree"
	"github.com/unityrepack/scene-repacker/lib/unityfs"
)

// preloadAssetFileID/PathID is Unity's sentinel PPtr a sharedAssets
// file's PreloadData points at to name "this bundle's own preload
// table".
const (
	preloadAssetFileID int32 = 1
	preloadAssetPathID int64 = 10001
)

// BuildSceneBundle implements the scene-bundle output mode: for each
// scene, it writes the scene's own bytes unchanged (save for a pruned
// local type list, per pruneTypes) plus a "sharedAssets" companion
// carrying a PreloadData and, only for the first scene, the merged
// AssetBundle object. Unlike MergeAssetBundle, no path-id or file-id
// remapping happens at all — every scene keeps its original
// identifiers, so there is no shared planning state and no parallel
// rewrite stage is needed; each scene's two entries are independent
// and are appended to bb directly.
func BuildSceneBundle(bb *bundlefile.Builder, bundleName, unityVersionStr string, scenes []*Scene, ord binary.ByteOrder) (*Stats, error) {
	stats := &Stats{}

	container := make([]typetree.AssetBundleContainerEntry, 0, len(scenes))
	for _, scene := range scenes {
		container = append(container, typetree.AssetBundleContainerEntry{
			Path:  fmt.Sprintf("unity-scene-repacker/%s_%s.unity", bundleName, scene.Name),
			Asset: unityfs.PPtr{},
		})
	}

	for i, scene := range scenes {
		stats.addBefore(len(scene.File.Objects), totalObjectBytes(scene.File.Objects, scene.File))

		sceneData, err := sceneBundleBody(scene)
		if err != nil {
			return nil, err
		}
		bb.Add(fmt.Sprintf("BuildPlayer-%s_%s", bundleName, scene.Name), sceneData)
		stats.addAfter(len(scene.keepSetOrdered()), len(sceneData))

		sharedData, err := sharedAssetsBody(unityVersionStr, bundleName, container, i == 0, ord)
		if err != nil {
			return nil, err
		}
		bb.Add(fmt.Sprintf("BuildPlayer-%s_%s.sharedAssets", bundleName, scene.Name), sharedData)
	}

	return stats, nil
}

// sceneBundleBody repacks a scene's kept objects with an internal
// type list pruned to the used subset, but no pointer rewriting at
// all.
func sceneBundleBody(scene *Scene) ([]byte, error) {
	typeRemap, types := pruneTypes(scene)

	objects := scene.keepSetOrdered()
	records := make([]unityfs.ObjectRecord, 0, len(objects))
	for _, info := range objects {
		newTypeID := typeRemap[info.TypeID]
		payload := scenePayload(scene, info)
		records = append(records, unityfs.ObjectRecord{
			Info: unityfs.ObjectInfo{
				PathID:          info.PathID,
				TypeID:          newTypeID,
				ClassID:         info.ClassID,
				ScriptTypeIndex: info.ScriptTypeIndex,
			},
			Data: payload,
		})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Info.PathID < records[j].Info.PathID })

	meta := unityfs.FileMeta{
		UnityVersionStr: scene.File.UnityVersionStr,
		Types:           types,
		ScriptTypes:     scene.File.ScriptTypes,
		Externals:       scene.File.Externals,
		RefTypes:        scene.File.RefTypes,
		UserInformation: scene.File.UserInformation,
		EnableTypeTree:  true,
	}
	var buf bytes.Buffer
	if _, err := unityfs.WriteSerializedFile(&buf, meta, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// sharedAssetsBody builds one scene's sharedAssets companion file: a
// PreloadData pointing at the preload sentinel, and, for the bundle's
// first scene only, the single AssetBundle object carrying the shared
// container table.
func sharedAssetsBody(unityVersionStr, bundleName string, container []typetree.AssetBundleContainerEntry, includeAssetBundle bool, ord binary.ByteOrder) ([]byte, error) {
	b := builder.New(unityVersionStr)

	preloadTypeID := b.AddTypeUncached(&unityfs.SerializedType{
		ClassID: unityfs.ClassPreloadData,
		Nodes:   unityfs.StdPreloadDataType(),
	})
	preloadValue := typetree.Zero(b.TypeTree(preloadTypeID))
	assetsField := preloadValue.Field("m_Assets")
	elemNode := assetsField.Node.Children[0].Children[1]
	assetItem := &typetree.Value{Node: elemNode}
	assetItem.SetPPtr(unityfs.PPtr{FileID: preloadAssetFileID, PathID: preloadAssetPathID})
	assetsField.Items = []*typetree.Value{assetItem}
	if err := b.AddValue(preloadValue, ord, unityfs.ObjectInfo{
		PathID:  b.GetNextPathID(),
		TypeID:  preloadTypeID,
		ClassID: unityfs.ClassPreloadData,
	}); err != nil {
		return nil, err
	}

	if includeAssetBundle {
		if err := buildAssetBundleObject(b, bundleName, container, ord); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if _, err := b.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
