// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package merge

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unityrepack/scene-repacker/lib/bundlefile"
	"github.com/unityrepack/scene-repacker/lib/prune"
	"github.com/unityrepack/scene-repacker/lib/typetree"
	"github.com/unityrepack/scene-repacker/lib/unityfs"
)

// buildOneRootScene assembles a minimal but realistic single-scene
// fixture: one root GameObject/Transform pair with no children,
// round-tripped through unityfs.WriteSerializedFile +
// ParseSerializedFile (the same path real game data takes) so the
// resulting *Scene.File behaves exactly like a parsed level file.
func buildOneRootScene(t *testing.T, name string) *Scene {
	t.Helper()
	ord := binary.LittleEndian

	goTypeID := int32(0)
	trTypeID := int32(1)
	const goPathID int64 = 100
	const trPathID int64 = 101

	goTree := unityfs.StdGameObjectType()
	goVal := typetree.Zero(goTree)
	goVal.Field("m_Name").Str = "root"
	goVal.Field("m_IsActive").SetBool(true)
	goBytes, err := typetree.Encode(goVal, ord)
	require.NoError(t, err)

	trTree := unityfs.StdTransformType()
	trVal := typetree.Zero(trTree)
	trVal.Field("m_GameObject").SetPPtr(unityfs.PPtr{PathID: goPathID})
	trBytes, err := typetree.Encode(trVal, ord)
	require.NoError(t, err)

	meta := unityfs.FileMeta{
		UnityVersionStr: "2020.3.1f1",
		Types: []*unityfs.SerializedType{
			{ClassID: unityfs.ClassGameObject, Nodes: goTree},
			{ClassID: unityfs.ClassTransform, Nodes: trTree},
		},
		EnableTypeTree: true,
	}
	records := []unityfs.ObjectRecord{
		{Info: unityfs.ObjectInfo{PathID: goPathID, TypeID: goTypeID, ClassID: unityfs.ClassGameObject, ScriptTypeIndex: -1}, Data: goBytes},
		{Info: unityfs.ObjectInfo{PathID: trPathID, TypeID: trTypeID, ClassID: unityfs.ClassTransform, ScriptTypeIndex: -1}, Data: trBytes},
	}

	var buf bytes.Buffer
	_, err = unityfs.WriteSerializedFile(&buf, meta, records)
	require.NoError(t, err)

	sf, err := unityfs.ParseSerializedFile(buf.Bytes())
	require.NoError(t, err)

	return &Scene{
		Name:         name,
		FilePath:     "level0",
		File:         sf,
		Reachable:    map[int64]bool{goPathID: true, trPathID: true},
		Replacements: map[int64][]byte{},
		Retained:     []prune.RetainedPath{{Path: "root", PathID: trPathID, GameObjectPathID: goPathID}},
	}
}

func TestMergeAssetBundle(t *testing.T) {
	scene := buildOneRootScene(t, "Scene0")
	ctx := context.Background()

	b, stats, err := MergeAssetBundle(ctx, "2020.3.1f1", "testbundle", []*Scene{scene}, binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, 2, int(stats.ObjectsBefore))
	assert.Equal(t, 3, int(stats.ObjectsAfter)) // GameObject + Transform + AssetBundle

	var buf bytes.Buffer
	_, err = b.Write(&buf)
	require.NoError(t, err)

	out, err := unityfs.ParseSerializedFile(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, out.Objects, 3)

	var bundleInfo *unityfs.ObjectInfo
	for _, o := range out.Objects {
		if o.ClassID == unityfs.ClassAssetBundle {
			bundleInfo = o
		}
	}
	require.NotNil(t, bundleInfo)
	assert.EqualValues(t, 1, bundleInfo.PathID)

	bundleTree, ok := out.TypeByID(bundleInfo.TypeID)
	require.True(t, ok)
	bundleVal, err := typetree.Decode(bundleTree.Nodes, out.ObjectBytes(bundleInfo), binary.LittleEndian)
	require.NoError(t, err)

	container := typetree.AssetBundleContainer(bundleVal)
	require.Len(t, container, 1)
	assert.Equal(t, "scene0/root.prefab", container[0].Path)
	assert.EqualValues(t, 0, container[0].Asset.FileID)

	// The container's referenced path-id must exist among the output
	// objects: no dangling local pointer.
	_, found := out.FindObject(container[0].Asset.PathID)
	assert.True(t, found)
}

func TestBuildSceneBundle(t *testing.T) {
	scene := buildOneRootScene(t, "Scene0")

	bb := bundlefile.NewBuilder("2020.3.1f1", "", bundlefile.NoneWriter())
	stats, err := BuildSceneBundle(bb, "testbundle", "2020.3.1f1", []*Scene{scene}, binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, 2, int(stats.ObjectsAfter))

	var buf bytes.Buffer
	require.NoError(t, bb.Write(&buf))
	assert.NotZero(t, buf.Len())
}

func TestBuildShallowAssetBundle(t *testing.T) {
	scene := buildOneRootScene(t, "Scene0")

	b, stats, err := BuildShallowAssetBundle("2020.3.1f1", "testbundle", []*Scene{scene}, binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, 1, int(stats.ObjectsAfter))

	var buf bytes.Buffer
	_, err = b.Write(&buf)
	require.NoError(t, err)

	out, err := unityfs.ParseSerializedFile(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, out.Objects, 1)
	assert.Equal(t, unityfs.ClassAssetBundle, out.Objects[0].ClassID)

	bundleTree, _ := out.TypeByID(out.Objects[0].TypeID)
	bundleVal, err := typetree.Decode(bundleTree.Nodes, out.ObjectBytes(out.Objects[0]), binary.LittleEndian)
	require.NoError(t, err)
	container := typetree.AssetBundleContainer(bundleVal)
	require.Len(t, container, 1)
	assert.EqualValues(t, 1, container[0].Asset.FileID) // the scene's single synthetic external
	assert.EqualValues(t, 100, container[0].Asset.PathID)
}
