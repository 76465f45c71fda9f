// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package repack

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepackConfigValidate(t *testing.T) {
	valid := RepackConfig{
		BundleName: "mybundle",
		Mode:       ModeAssetBundle,
		Scenes:     []SceneSelection{{Name: "Foo", Paths: []string{"Root"}}},
	}
	assert.NoError(t, valid.Validate())

	noName := valid
	noName.BundleName = ""
	assert.Error(t, noName.Validate())

	badMode := valid
	badMode.Mode = "bogus"
	assert.Error(t, badMode.Validate())

	noScenes := valid
	noScenes.Scenes = nil
	assert.Error(t, noScenes.Validate())

	dup := valid
	dup.Scenes = []SceneSelection{{Name: "Foo"}, {Name: "Foo"}}
	assert.Error(t, dup.Validate())
}

func TestScanDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Foo.txt"), []byte("Root\nRoot/Child\n# comment\n\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Bar.txt"), []byte("Other\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notascene.json"), []byte("{}"), 0o644))

	sel, err := ScanDir(dir)
	require.NoError(t, err)

	byName := make(map[string][]string, len(sel))
	for _, s := range sel {
		byName[s.Name] = s.Paths
	}
	assert.Equal(t, []string{"Root", "Root/Child"}, byName["Foo"])
	assert.Equal(t, []string{"Other"}, byName["Bar"])
	assert.NotContains(t, byName, "notascene")
}

func TestSceneNameOf(t *testing.T) {
	assert.Equal(t, "Foo", sceneNameOf("Assets/Scenes/Foo.unity"))
	assert.Equal(t, "Bar", sceneNameOf("Bar.unity"))
	assert.Equal(t, "Baz", sceneNameOf("Assets/Scenes/Baz"))
}
