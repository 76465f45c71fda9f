// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package repack

import (
	"path"
	"strconv"
	"strings"

	"github.com/unityrepack/scene-repacker/lib/env"
	"github.com/unityrepack/scene-repacker/lib/rerr"
	"github.com/unityrepack/scene-repacker/lib/scenelookup"
	"github.com/unityrepack/scene-repacker/lib/typetree"
	"github.com/unityrepack/scene-repacker/lib/unityfs"
)

// globalGameManagersFile is the fixed file BuildSettings is read from.
const globalGameManagersFile = "globalgamemanagers"

// sceneLevelFiles decodes globalgamemanagers' BuildSettings and
// returns a map from scene name (each entry's path, stripped of
// directory and extension) to the "levelN" file holding that scene,
// where N is the entry's position in the scenes array.
func sceneLevelFiles(e *env.Env) (map[string]string, error) {
	h, err := e.LoadCached(globalGameManagersFile)
	if err != nil {
		return nil, rerr.Context(err, "repack: resolving scene list")
	}
	sf := h.File

	ord, err := typetree.ByteOrderFor(sf.Header)
	if err != nil {
		return nil, err
	}

	var buildSettingsInfo *unityfs.ObjectInfo
	for _, info := range sf.Objects {
		if info.ClassID == unityfs.ClassBuildSettings {
			buildSettingsInfo = info
			break
		}
	}
	if buildSettingsInfo == nil {
		return nil, rerr.New(rerr.MissingObject, "repack: no BuildSettings object in %q", globalGameManagersFile)
	}

	nodes, err := scenelookup.TypeTreeFor(sf, unityfs.ClassBuildSettings)
	if err != nil {
		return nil, err
	}

	v, err := typetree.Decode(nodes, sf.ObjectBytes(buildSettingsInfo), ord)
	if err != nil {
		return nil, rerr.Context(err, "repack: decoding BuildSettings")
	}

	out := make(map[string]string)
	for i, item := range v.Field("scenes").Items {
		sceneName := sceneNameOf(item.Str)
		out[sceneName] = "level" + strconv.Itoa(i)
	}
	return out, nil
}

// sceneNameOf strips a BuildSettings scene entry (e.g.
// "Assets/Scenes/Foo.unity") down to its bare scene name ("Foo").
func sceneNameOf(entry string) string {
	base := path.Base(entry)
	if i := strings.LastIndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	return base
}
