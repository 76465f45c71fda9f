// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package scenelookup resolves hierarchy paths ("Root/Child/Grand")
// to path-ids within one scene.
package scenelookup

import (
	"context"

	"github.com/datawire/dlib/dlog"

	"github.com/unityrepack/scene-repacker/lib/rerr"
	"github.com/unityrepack/scene-repacker/lib/typetree"
	"github.com/unityrepack/scene-repacker/lib/unityfs"
)

// node is one decoded Transform, cached by path-id.
type node struct {
	pathID int64
	value  *typetree.Value
}

// Index answers hierarchy-path lookups against one serialized scene
// file.
type Index struct {
	sf    *unityfs.SerializedFile
	byID  map[int64]*node
	roots map[string]*node
}

// TypeTreeFor resolves the type tree for a class within a scene,
// consulting the scene's own Types list first and falling back to the
// built-in stock-class trees.
func TypeTreeFor(sf *unityfs.SerializedFile, classID int32) (*unityfs.TypeTreeNode, error) {
	for _, t := range sf.Types {
		if t.ClassID == classID && t.Nodes != nil {
			return t.Nodes, nil
		}
	}
	if tree, ok := unityfs.StdTypeTreeForClass(classID, sf.UnityVersion); ok {
		return tree, nil
	}
	return nil, rerr.New(rerr.MissingType, "scenelookup: no type tree for class %d", classID)
}

// Build scans every Transform in sf and indexes root transforms
// (those with a null m_Father) by their GameObject's name: roots by
// GameObject name, first occurrence wins.
func Build(ctx context.Context, sf *unityfs.SerializedFile) (*Index, error) {
	ord, err := typetree.ByteOrderFor(sf.Header)
	if err != nil {
		return nil, err
	}

	transformTree, err := TypeTreeFor(sf, unityfs.ClassTransform)
	if err != nil {
		return nil, err
	}
	gameObjectTree, err := TypeTreeFor(sf, unityfs.ClassGameObject)
	if err != nil {
		return nil, err
	}

	idx := &Index{sf: sf, byID: make(map[int64]*node), roots: make(map[string]*node)}

	for _, info := range sf.Objects {
		if info.ClassID != unityfs.ClassTransform {
			continue
		}
		v, err := typetree.Decode(transformTree, sf.ObjectBytes(info), ord)
		if err != nil {
			return nil, rerr.Context(err, "scenelookup: decoding transform %d", info.PathID)
		}
		n := &node{pathID: info.PathID, value: v}
		idx.byID[info.PathID] = n

		father := typetree.TransformFather(v)
		if !father.IsNull() {
			continue
		}

		goPtr := typetree.TransformGameObject(v)
		if !goPtr.IsLocal() {
			continue
		}
		goInfo, ok := sf.FindObject(goPtr.PathID)
		if !ok {
			continue
		}
		goVal, err := typetree.Decode(gameObjectTree, sf.ObjectBytes(goInfo), ord)
		if err != nil {
			return nil, rerr.Context(err, "scenelookup: decoding game object %d", goPtr.PathID)
		}
		name := typetree.GameObjectName(goVal)
		if _, exists := idx.roots[name]; exists {
			dlog.Warnf(ctx, "scenelookup: duplicate root GameObject name %q; keeping first occurrence", name)
			continue
		}
		idx.roots[name] = n
	}

	return idx, nil
}

// SerializedFile returns the scene file idx was built from.
func (idx *Index) SerializedFile() *unityfs.SerializedFile { return idx.sf }

// Transform returns a previously-decoded Transform by path-id.
func (idx *Index) Transform(pathID int64) (*typetree.Value, bool) {
	n, ok := idx.byID[pathID]
	if !ok {
		return nil, false
	}
	return n.value, true
}
