// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package prune computes a scene's retained-object closure and the
// re-serialized replacement bytes ancestor promotion and disable-roots
// require.
package prune

import (
	"context"

	"github.com/datawire/dlib/dlog"

	"github.com/unityrepack/scene-repacker/lib/rerr"
	"github.com/unityrepack/scene-repacker/lib/scenelookup"
	"github.com/unityrepack/scene-repacker/lib/typetree"
	"github.com/unityrepack/scene-repacker/lib/unityfs"
)

// RetainedPath pairs a configured hierarchy path with the transform
// path-id it resolved to in this scene, and that transform's owning
// GameObject path-id, which the merger needs directly for the
// container-table entry (AssetInfo.asset = PPtr(0, remapped_go_path_id)).
type RetainedPath struct {
	Path             string
	PathID           int64
	GameObjectPathID int64
}

// Result is the outcome of pruning one scene.
type Result struct {
	// Reachable holds every path-id that survives pruning.
	Reachable map[int64]bool
	// Replacements holds re-serialized bytes for objects edited by
	// ancestor promotion or disable-roots, keyed by path-id; objects
	// not present here are carried through unchanged.
	Replacements map[int64][]byte
	// Retained records which configured paths actually resolved, for
	// the merge step and for reporting.
	Retained []RetainedPath
}

// ExtraSeed is a retained object selected by identity rather than by
// hierarchy path: a MonoBehaviour, such as a scriptable object, that
// doesn't appear under any Transform. Its container-table entry points
// directly at the object itself, since there is no owning GameObject
// to resolve through.
type ExtraSeed struct {
	ContainerPath string
	PathID        int64
}

// Options configures a prune pass.
type Options struct {
	RetainPaths  []string
	ExtraSeeds   []ExtraSeed
	DisableRoots bool
}

// Prune computes the retained closure and replacement bytes for one
// scene.
func Prune(ctx context.Context, sceneName string, idx *scenelookup.Index, opts Options) (*Result, error) {
	sf := idx.SerializedFile()
	ord, err := typetree.ByteOrderFor(sf.Header)
	if err != nil {
		return nil, err
	}

	var retainIDs []int64
	var hierarchyRetained []RetainedPath
	for _, path := range opts.RetainPaths {
		pathID, err := idx.Lookup(ctx, path)
		if err != nil {
			if rerr.Is(err, rerr.LookupMiss) {
				dlog.Warnf(ctx, "prune: could not find path %q in %s", path, sceneName)
				continue
			}
			return nil, err
		}
		retainIDs = append(retainIDs, pathID)

		var goPathID int64
		if v, ok := idx.Transform(pathID); ok {
			if goPtr := typetree.TransformGameObject(v); goPtr.IsLocal() {
				goPathID = goPtr.PathID
			}
		}
		hierarchyRetained = append(hierarchyRetained, RetainedPath{Path: path, PathID: pathID, GameObjectPathID: goPathID})
	}

	retained := append([]RetainedPath{}, hierarchyRetained...)
	for _, seed := range opts.ExtraSeeds {
		if _, ok := sf.FindObject(seed.PathID); !ok {
			dlog.Warnf(ctx, "prune: extra object %q (path_id %d) not found in %s", seed.ContainerPath, seed.PathID, sceneName)
			continue
		}
		retainIDs = append(retainIDs, seed.PathID)
		retained = append(retained, RetainedPath{Path: seed.ContainerPath, PathID: seed.PathID, GameObjectPathID: seed.PathID})
	}

	reachable, err := closureImpl(sf, ord, retainIDs)
	if err != nil {
		return nil, rerr.Context(err, "prune: computing reachable set for %s", sceneName)
	}

	gameObjectTree, err := scenelookup.TypeTreeFor(sf, unityfs.ClassGameObject)
	if err != nil {
		return nil, err
	}

	replacements := make(map[int64][]byte)

	// Only hierarchy-resolved roots have a Transform to walk up from;
	// extra seeds are selected by identity outside the hierarchy and
	// have no ancestors to promote.
	if err := promoteAncestors(ord, idx, reachable, replacements, hierarchyRetained); err != nil {
		return nil, rerr.Context(err, "prune: promoting ancestors in %s", sceneName)
	}

	for _, info := range sf.Objects {
		if info.ClassID == unityfs.ClassRenderSettings {
			reachable[info.PathID] = true
		}
	}

	if opts.DisableRoots {
		for _, rp := range hierarchyRetained {
			if err := disableRoot(sf, ord, gameObjectTree, idx, replacements, rp.PathID); err != nil {
				return nil, rerr.Context(err, "prune: disabling root %q in %s", rp.Path, sceneName)
			}
		}
	}

	return &Result{Reachable: reachable, Replacements: replacements, Retained: retained}, nil
}

// Trace prints the chain of local pointers visited while computing the
// closure from a single starting PPtr, for diagnosing why an
// unexpected object survived pruning.
func Trace(ctx context.Context, sf *unityfs.SerializedFile, start int64) error {
	ord, err := typetree.ByteOrderFor(sf.Header)
	if err != nil {
		return err
	}
	seen := map[int64]bool{start: true}
	queue := []int64{start}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		info, ok := sf.FindObject(id)
		if !ok {
			dlog.Infof(ctx, "prune: trace: %d not found, stopping", id)
			continue
		}
		tree, err := scenelookup.TypeTreeFor(sf, info.ClassID)
		if err != nil {
			dlog.Infof(ctx, "prune: trace: %d (class %d): %v", id, info.ClassID, err)
			continue
		}
		ptrs, err := typetree.Scan(tree, sf.ObjectBytes(info), ord)
		if err != nil {
			dlog.Infof(ctx, "prune: trace: %d (class %d): scan error: %v", id, info.ClassID, err)
			continue
		}
		for _, p := range ptrs {
			if !p.IsLocal() {
				dlog.Infof(ctx, "prune: trace: %d -> external file_id=%d path_id=%d", id, p.FileID, p.PathID)
				continue
			}
			dlog.Infof(ctx, "prune: trace: %d -> %d", id, p.PathID)
			if !seen[p.PathID] {
				seen[p.PathID] = true
				queue = append(queue, p.PathID)
			}
		}
	}
	return nil
}
