// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package repack

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unityrepack/scene-repacker/lib/env"
	"github.com/unityrepack/scene-repacker/lib/rerr"
	"github.com/unityrepack/scene-repacker/lib/resolver"
	"github.com/unityrepack/scene-repacker/lib/typetree"
	"github.com/unityrepack/scene-repacker/lib/unityfs"
)

// memResolver is a trivial in-memory resolver.Resolver for exercising
// lib/env without touching the filesystem.
type memResolver map[string][]byte

func (r memResolver) ReadPath(name string) ([]byte, error) {
	data, ok := r[name]
	if !ok {
		return nil, rerr.New(rerr.NotFound, "memResolver: %q not found", name)
	}
	return data, nil
}

func (r memResolver) AllFiles() ([]string, error) {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	return names, nil
}

var _ resolver.Resolver = memResolver{}

func buildGlobalGameManagers(t *testing.T, scenes []string) []byte {
	t.Helper()
	ord := binary.LittleEndian

	tree := unityfs.StdBuildSettingsType()
	v := typetree.Zero(tree)
	items := make([]*typetree.Value, len(scenes))
	arrayNode := v.Field("scenes").Node.Children[0]
	elemNode := arrayNode.Children[1]
	for i, s := range scenes {
		items[i] = &typetree.Value{Node: elemNode, Str: s}
	}
	v.Field("scenes").Items = items
	v.Field("m_Version").Str = "2020.3.1f1"

	data, err := typetree.Encode(v, ord)
	require.NoError(t, err)

	meta := unityfs.FileMeta{
		UnityVersionStr: "2020.3.1f1",
		Types: []*unityfs.SerializedType{
			{ClassID: unityfs.ClassBuildSettings, Nodes: tree},
		},
		EnableTypeTree: true,
	}
	records := []unityfs.ObjectRecord{
		{Info: unityfs.ObjectInfo{PathID: 1, TypeID: 0, ClassID: unityfs.ClassBuildSettings, ScriptTypeIndex: -1}, Data: data},
	}

	var buf bytes.Buffer
	_, err = unityfs.WriteSerializedFile(&buf, meta, records)
	require.NoError(t, err)
	return buf.Bytes()
}

func TestSceneLevelFiles(t *testing.T) {
	res := memResolver{
		"globalgamemanagers": buildGlobalGameManagers(t, []string{
			"Assets/Scenes/Menu.unity",
			"Assets/Scenes/Level1.unity",
		}),
	}
	e := env.New(res)

	got, err := sceneLevelFiles(e)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"Menu":   "level0",
		"Level1": "level1",
	}, got)
}
