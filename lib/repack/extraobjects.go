// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package repack

import (
	"encoding/binary"

	"github.com/unityrepack/scene-repacker/lib/env"
	"github.com/unityrepack/scene-repacker/lib/prune"
	"github.com/unityrepack/scene-repacker/lib/rerr"
	"github.com/unityrepack/scene-repacker/lib/typetree"
	"github.com/unityrepack/scene-repacker/lib/unityfs"
)

// resolveExtraSeeds scans every MonoBehaviour in a scene file and
// selects the ones matching the extra-object selection by script
// class name and object name: objects that don't appear under any
// Transform (e.g. scriptable objects) but must still be retained and
// exposed through the container table.
//
// Matches are collected in the scene file's object order rather than
// the selection's declaration order; this is still fully deterministic
// for a given input, it just doesn't mirror the config's own ordering
// the way scene selection does.
func resolveExtraSeeds(e *env.Env, sceneName, levelFile string, sf *unityfs.SerializedFile, ord binary.ByteOrder, selections []ExtraObjectSelection) ([]prune.ExtraSeed, error) {
	if len(selections) == 0 {
		return nil, nil
	}
	wanted := make(map[string]map[string]bool, len(selections))
	for _, sel := range selections {
		names := wanted[sel.Class]
		if names == nil {
			names = make(map[string]bool, len(sel.Objects))
			wanted[sel.Class] = names
		}
		for _, name := range sel.Objects {
			names[name] = true
		}
	}

	headerTree := unityfs.StdMonoBehaviourHeaderType()
	scriptTree := unityfs.StdMonoScriptType()

	var seeds []prune.ExtraSeed
	for _, info := range sf.Objects {
		if info.ClassID != unityfs.ClassMonoBehaviour {
			continue
		}
		header, err := typetree.Decode(headerTree, sf.ObjectBytes(info), ord)
		if err != nil {
			return nil, rerr.Context(err, "repack: decoding MonoBehaviour header %d in %s", info.PathID, sceneName)
		}
		scriptPtr := typetree.MonoBehaviourScript(header)
		if scriptPtr.IsNull() {
			continue
		}
		scriptBytes, _, err := e.DerefRead(scriptPtr, levelFile, sf)
		if err != nil {
			return nil, rerr.Context(err, "repack: resolving script for MonoBehaviour %d in %s", info.PathID, sceneName)
		}
		scriptVal, err := typetree.Decode(scriptTree, scriptBytes, ord)
		if err != nil {
			return nil, rerr.Context(err, "repack: decoding MonoScript for MonoBehaviour %d in %s", info.PathID, sceneName)
		}
		className := typetree.MonoScriptClassName(scriptVal)
		names, ok := wanted[className]
		if !ok {
			continue
		}
		objectName := header.Field("m_Name").Str
		if !names[objectName] {
			continue
		}
		seeds = append(seeds, prune.ExtraSeed{
			ContainerPath: "extra/" + className + "/" + objectName,
			PathID:        info.PathID,
		})
	}
	return seeds, nil
}
