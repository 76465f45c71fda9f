// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package merge

import (
	"encoding/binary"

	"github.com/unityrepack/scene-repacker/lib/builder"
	"github.com/unityrepack/scene-repacker/lib/typetree"
	"github.com/unityrepack/scene-repacker/lib/unityfs"
)

// BuildShallowAssetBundle implements the shallow-asset-bundle output
// mode: no object bodies are emitted at all. The single
// resulting `CAB-{bundle}` serialized file holds only the synthetic
// AssetBundle object, whose container table references each selected
// object directly in the still-shipped game files via
// `PPtr(level_file_external_id, original_path_id)` — unlike the other
// two modes, neither path-ids nor type-ids are ever remapped, since
// nothing but the AssetBundle object itself is written.
func BuildShallowAssetBundle(unityVersionStr, bundleName string, scenes []*Scene, ord binary.ByteOrder) (*builder.Builder, *Stats, error) {
	b := builder.New(unityVersionStr)
	stats := &Stats{}

	var container []typetree.AssetBundleContainerEntry
	for _, scene := range scenes {
		stats.addBefore(len(scene.File.Objects), totalObjectBytes(scene.File.Objects, scene.File))

		externalID := b.AddExternalUncached(unityfs.FileIdentifier{PathName: scene.FilePath})
		for _, rp := range scene.Retained {
			container = append(container, typetree.AssetBundleContainerEntry{
				Path:  containerPath(scene.Name, rp.Path),
				Asset: unityfs.PPtr{FileID: externalID, PathID: rp.GameObjectPathID},
			})
		}
	}

	if err := buildAssetBundleObject(b, bundleName, container, ord); err != nil {
		return nil, nil, err
	}
	stats.addAfter(1, 0)

	return b, stats, nil
}
