// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package prune

import (
	"encoding/binary"

	"github.com/unityrepack/scene-repacker/lib/rerr"
	"github.com/unityrepack/scene-repacker/lib/scenelookup"
	"github.com/unityrepack/scene-repacker/lib/typetree"
	"github.com/unityrepack/scene-repacker/lib/unityfs"
)

// closureImpl performs a breadth-first walk over local pointers:
// starting from roots, every visited object's bytes are scanned
// (walker scan mode) for PPtr fields, and every local target
// discovered is added to the reachable set and enqueued.
func closureImpl(sf *unityfs.SerializedFile, ord binary.ByteOrder, roots []int64) (map[int64]bool, error) {
	reachable := make(map[int64]bool, len(roots))
	queue := make([]int64, 0, len(roots))
	for _, id := range roots {
		if !reachable[id] {
			reachable[id] = true
			queue = append(queue, id)
		}
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		info, ok := sf.FindObject(id)
		if !ok {
			return nil, rerr.New(rerr.MissingObject, "prune: path_id %d not found", id)
		}
		tree, err := scenelookup.TypeTreeFor(sf, info.ClassID)
		if err != nil {
			return nil, rerr.Context(err, "prune: resolving type tree for object %d (class %d)", id, info.ClassID)
		}
		ptrs, err := typetree.Scan(tree, sf.ObjectBytes(info), ord)
		if err != nil {
			return nil, rerr.Context(err, "prune: scanning object %d (class %d)", id, info.ClassID)
		}
		for _, p := range ptrs {
			if !p.IsLocal() {
				continue
			}
			if !reachable[p.PathID] {
				reachable[p.PathID] = true
				queue = append(queue, p.PathID)
			}
		}
	}

	return reachable, nil
}

// promoteAncestors implements ancestor promotion: for every retained
// root, it walks up the m_Father chain (stopping at a
// null father or one already in the closure), adding each ancestor
// transform and its GameObject to reachable. Once every ancestor is
// known, a second pass rebuilds each ancestor's m_Children array
// filtered to the final closure and re-serializes it into
// replacements, since a sibling subtree discovered by a later root
// could otherwise be dropped by an earlier, narrower filter.
func promoteAncestors(ord binary.ByteOrder, idx *scenelookup.Index, reachable map[int64]bool, replacements map[int64][]byte, retained []RetainedPath) error {
	ancestors := make(map[int64]bool)

	for _, rp := range retained {
		current := rp.PathID
		for {
			v, ok := idx.Transform(current)
			if !ok {
				return rerr.New(rerr.MissingObject, "prune: transform %d not found while promoting ancestors", current)
			}
			father := typetree.TransformFather(v)
			if !father.IsLocal() {
				break
			}
			alreadyReachable := reachable[father.PathID]
			reachable[father.PathID] = true
			ancestors[father.PathID] = true
			if alreadyReachable {
				break
			}
			current = father.PathID
		}
	}

	for pathID := range ancestors {
		v, ok := idx.Transform(pathID)
		if !ok {
			return rerr.New(rerr.MissingObject, "prune: ancestor transform %d not found", pathID)
		}

		kept := make([]unityfs.PPtr, 0, len(typetree.TransformChildren(v)))
		for _, c := range typetree.TransformChildren(v) {
			if c.IsLocal() && reachable[c.PathID] {
				kept = append(kept, c)
			}
		}
		typetree.SetTransformChildren(v, kept)

		data, err := typetree.Encode(v, ord)
		if err != nil {
			return rerr.Context(err, "prune: re-serializing ancestor transform %d", pathID)
		}
		replacements[pathID] = data

		if goPtr := typetree.TransformGameObject(v); goPtr.IsLocal() {
			reachable[goPtr.PathID] = true
		}
	}

	return nil
}

// disableRoot clears a retained root GameObject's m_IsActive flag and
// stores the re-serialized replacement, for the "disable roots"
// option.
func disableRoot(sf *unityfs.SerializedFile, ord binary.ByteOrder, gameObjectTree *unityfs.TypeTreeNode, idx *scenelookup.Index, replacements map[int64][]byte, rootTransformPathID int64) error {
	v, ok := idx.Transform(rootTransformPathID)
	if !ok {
		return rerr.New(rerr.MissingObject, "prune: root transform %d not found", rootTransformPathID)
	}
	goPtr := typetree.TransformGameObject(v)
	if !goPtr.IsLocal() {
		return rerr.New(rerr.Internal, "prune: root transform %d has no local game object", rootTransformPathID)
	}
	goInfo, ok := sf.FindObject(goPtr.PathID)
	if !ok {
		return rerr.New(rerr.MissingObject, "prune: game object %d not found", goPtr.PathID)
	}
	goVal, err := typetree.Decode(gameObjectTree, sf.ObjectBytes(goInfo), ord)
	if err != nil {
		return rerr.Context(err, "prune: decoding game object %d", goPtr.PathID)
	}
	typetree.SetGameObjectIsActive(goVal, false)
	data, err := typetree.Encode(goVal, ord)
	if err != nil {
		return rerr.Context(err, "prune: re-serializing game object %d", goPtr.PathID)
	}
	replacements[goPtr.PathID] = data
	return nil
}
