// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package scenelookup

import (
	"context"
	"strings"

	"github.com/datawire/dlib/dlog"

	"github.com/unityrepack/scene-repacker/lib/rerr"
	"github.com/unityrepack/scene-repacker/lib/typetree"
	"github.com/unityrepack/scene-repacker/lib/unityfs"
)

// Lookup resolves a "/"-separated hierarchy path to the path-id of
// the Transform it names. At each segment, every child whose
// GameObject name matches is considered; if more than one matches, the
// last one found wins and a warning is logged.
func (idx *Index) Lookup(ctx context.Context, path string) (int64, error) {
	segments := strings.Split(path, "/")
	if len(segments) == 0 || segments[0] == "" {
		return 0, rerr.New(rerr.LookupMiss, "scenelookup: empty path")
	}

	root, ok := idx.roots[segments[0]]
	if !ok {
		return 0, rerr.New(rerr.LookupMiss, "scenelookup: no root GameObject named %q", segments[0])
	}

	ord, err := typetree.ByteOrderFor(idx.sf.Header)
	if err != nil {
		return 0, err
	}
	gameObjectTree, err := TypeTreeFor(idx.sf, unityfs.ClassGameObject)
	if err != nil {
		return 0, err
	}

	current := []*node{root}
	for _, segment := range segments[1:] {
		var matches []*node
		for _, cur := range current {
			for _, childPtr := range typetree.TransformChildren(cur.value) {
				if !childPtr.IsLocal() {
					continue
				}
				child, ok := idx.byID[childPtr.PathID]
				if !ok {
					continue
				}
				goPtr := typetree.TransformGameObject(child.value)
				if !goPtr.IsLocal() {
					continue
				}
				goInfo, ok := idx.sf.FindObject(goPtr.PathID)
				if !ok {
					continue
				}
				goVal, err := typetree.Decode(gameObjectTree, idx.sf.ObjectBytes(goInfo), ord)
				if err != nil {
					return 0, rerr.Context(err, "scenelookup: decoding game object %d", goPtr.PathID)
				}
				if typetree.GameObjectName(goVal) == segment {
					matches = append(matches, child)
				}
			}
		}
		if len(matches) == 0 {
			return 0, rerr.New(rerr.LookupMiss, "scenelookup: no child named %q under %q", segment, path)
		}
		if len(matches) > 1 {
			dlog.Warnf(ctx, "scenelookup: %d children named %q while resolving %q; keeping the last", len(matches), segment, path)
		}
		current = matches[len(matches)-1:]
	}

	return current[len(current)-1].pathID, nil
}
