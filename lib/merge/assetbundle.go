// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package merge

import (
	"context"
	"encoding/binary"

	"github.com/datawire/dlib/dgroup"

	"github.com/unityrepack/scene-repacker/lib/builder"
	"github.com/unityrepack/scene-repacker/lib/typetree"
	"github.com/unityrepack/scene-repacker/lib/unityfs"
)

// MergeAssetBundle implements the asset-bundle output mode: a full
// merge producing one `CAB-{bundle}` entry whose container table maps
// every retained root's hierarchy path to its remapped object, and
// whose objects carry fully remapped local/external pointers.
//
// Planning runs sequentially per scene, since every scene appends into
// the same shared builder; the per-object rewrite that follows runs in
// parallel across scenes via a dgroup.Group, fanning independent
// per-scene work out into a shared result slice.
func MergeAssetBundle(ctx context.Context, unityVersionStr, bundleName string, scenes []*Scene, ord binary.ByteOrder) (*builder.Builder, *Stats, error) {
	b := builder.New(unityVersionStr)
	stats := &Stats{}

	plans := make([]*RemapTables, len(scenes))
	var container []typetree.AssetBundleContainerEntry
	for i, scene := range scenes {
		stats.addBefore(len(scene.File.Objects), totalObjectBytes(scene.File.Objects, scene.File))

		plans[i] = PlanScene(b, scene)
		entries, err := sceneContainerEntries(scene, plans[i])
		if err != nil {
			return nil, nil, err
		}
		container = append(container, entries...)
	}

	recordsByScene := make([][]unityfs.ObjectRecord, len(scenes))
	grp := dgroup.NewGroup(ctx, dgroup.GroupConfig{})
	for i, scene := range scenes {
		i, scene, rt := i, scene, plans[i]
		grp.Go(scene.Name, func(ctx context.Context) error {
			records, err := RewriteScene(b, scene, rt, ord)
			if err != nil {
				return err
			}
			recordsByScene[i] = records
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, nil, err
	}

	for _, records := range recordsByScene {
		for _, rec := range records {
			b.AddObject(rec.Info, rec.Data)
		}
		size := 0
		for _, rec := range records {
			size += len(rec.Data)
		}
		stats.addAfter(len(records), size)
	}

	if err := buildAssetBundleObject(b, bundleName, container, ord); err != nil {
		return nil, nil, err
	}
	stats.addAfter(1, 0)

	return b, stats, nil
}

// totalObjectBytes sums the on-disk size of the given objects within
// sf, for the pre-merge "size_before" statistic.
func totalObjectBytes(objects []*unityfs.ObjectInfo, sf *unityfs.SerializedFile) int {
	total := 0
	for _, o := range objects {
		total += len(sf.ObjectBytes(o))
	}
	return total
}
