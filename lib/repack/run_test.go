// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package repack

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unityrepack/scene-repacker/lib/env"
	"github.com/unityrepack/scene-repacker/lib/monobehaviour"
	"github.com/unityrepack/scene-repacker/lib/typetree"
	"github.com/unityrepack/scene-repacker/lib/unityfs"
)

func buildLevelFile(t *testing.T) []byte {
	t.Helper()
	ord := binary.LittleEndian

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
		{Info: unityfs.ObjectInfo{PathID: goPathID, TypeID: 0, ClassID: unityfs.ClassGameObject, ScriptTypeIndex: -1}, Data: goBytes},
		{Info: unityfs.ObjectInfo{PathID: trPathID, TypeID: 1, ClassID: unityfs.ClassTransform, ScriptTypeIndex: -1}, Data: trBytes},
	}

	var buf bytes.Buffer
	_, err = unityfs.WriteSerializedFile(&buf, meta, records)
	require.NoError(t, err)
	return buf.Bytes()
}

func TestRunAssetBundle(t *testing.T) {
	res := memResolver{
		"globalgamemanagers": buildGlobalGameManagers(t, []string{"Assets/Scenes/Menu.unity"}),
		"level0":             buildLevelFile(t),
	}
	e := env.New(res)
	mbCache := monobehaviour.NewPrefilled(nil)

	cfg := &RepackConfig{
		BundleName: "testbundle",
		Mode:       ModeAssetBundle,
		Scenes:     []SceneSelection{{Name: "Menu", Paths: []string{"root"}}},
	}

	result, err := Run(context.Background(), e, cfg, mbCache)
	require.NoError(t, err)
	require.NotNil(t, result.AssetBundle)
	assert.EqualValues(t, 2, result.Stats.ObjectsBefore)
	assert.EqualValues(t, 3, result.Stats.ObjectsAfter)

	var out bytes.Buffer
	_, err = result.AssetBundle.Write(&out)
	require.NoError(t, err)
	assert.NotZero(t, out.Len())
}
