// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package typetree

import "github.com/unityrepack/scene-repacker/lib/unityfs"

// This file holds typed accessors over the decoded Value tree for the
// handful of stock classes the repacker core edits directly: the
// prune package's ancestor promotion and disable-roots passes, and the
// scenelookup package's scene index build. They live here rather than
// alongside the type trees in lib/unityfs because they operate on
// typetree.Value, and unityfs must not import typetree (typetree
// already imports unityfs).

// GameObjectName returns a decoded GameObject's m_Name field.
func GameObjectName(v *Value) string {
	return v.Field("m_Name").Str
}

// GameObjectIsActive returns a decoded GameObject's m_IsActive field.
func GameObjectIsActive(v *Value) bool {
	return v.Field("m_IsActive").Bool()
}

// SetGameObjectIsActive overwrites a decoded GameObject's m_IsActive
// field, for the disable-roots pass.
func SetGameObjectIsActive(v *Value, active bool) {
	v.Field("m_IsActive").SetBool(active)
}

// GameObjectComponents returns the component pointers (the PPtr half
// of each (classID, PPtr) pair) listed in a decoded GameObject's
// m_Component array.
func GameObjectComponents(v *Value) []unityfs.PPtr {
	items := v.Field("m_Component").Items
	out := make([]unityfs.PPtr, 0, len(items))
	for _, pair := range items {
		out = append(out, pair.Field("second").PPtr())
	}
	return out
}

// TransformGameObject returns a decoded Transform's owning GameObject
// pointer.
func TransformGameObject(v *Value) unityfs.PPtr {
	return v.Field("m_GameObject").PPtr()
}

// TransformFather returns a decoded Transform's parent pointer, the
// null PPtr for a root transform.
func TransformFather(v *Value) unityfs.PPtr {
	return v.Field("m_Father").PPtr()
}

// TransformChildren returns a decoded Transform's child pointers in
// order.
func TransformChildren(v *Value) []unityfs.PPtr {
	items := v.Field("m_Children").Items
	out := make([]unityfs.PPtr, 0, len(items))
	for _, item := range items {
		out = append(out, item.PPtr())
	}
	return out
}

// SetTransformChildren overwrites a decoded Transform's m_Children
// array, for the ancestor-promotion pass: pruned scenes drop children
// whose subtree was entirely pruned away, so the array must be
// rebuilt rather than patched pointer-by-pointer.
func SetTransformChildren(v *Value, children []unityfs.PPtr) {
	field := v.Field("m_Children")
	arrayNode := field.Node.Children[0]
	elemNode := arrayNode.Children[1]
	items := make([]*Value, len(children))
	for i, p := range children {
		items[i] = &Value{Node: elemNode}
		items[i].SetPPtr(p)
	}
	field.Items = items
}

// MonoScriptClassName returns a decoded MonoScript's m_ClassName
// field, used to key the MonoBehaviour script-type cache.
func MonoScriptClassName(v *Value) string {
	return v.Field("m_ClassName").Str
}

// MonoScriptNamespace returns a decoded MonoScript's m_Namespace
// field.
func MonoScriptNamespace(v *Value) string {
	return v.Field("m_Namespace").Str
}

// MonoScriptAssemblyName returns a decoded MonoScript's
// m_AssemblyName field.
func MonoScriptAssemblyName(v *Value) string {
	return v.Field("m_AssemblyName").Str
}

// MonoBehaviourGameObject returns a decoded MonoBehaviour header's
// owning GameObject pointer.
func MonoBehaviourGameObject(v *Value) unityfs.PPtr {
	return v.Field("m_GameObject").PPtr()
}

// MonoBehaviourScript returns a decoded MonoBehaviour header's
// MonoScript pointer.
func MonoBehaviourScript(v *Value) unityfs.PPtr {
	return v.Field("m_Script").PPtr()
}

// AssetBundleContainerEntry is one decoded m_Container entry of an
// AssetBundle: the asset's logical path and the object it resolves
// to.
type AssetBundleContainerEntry struct {
	Path  string
	Asset unityfs.PPtr
}

// AssetBundleContainer returns a decoded AssetBundle's m_Container
// table, in order, for the scene index and the shallow asset-bundle
// merge mode.
func AssetBundleContainer(v *Value) []AssetBundleContainerEntry {
	items := v.Field("m_Container").Items
	out := make([]AssetBundleContainerEntry, 0, len(items))
	for _, pair := range items {
		out = append(out, AssetBundleContainerEntry{
			Path:  pair.Field("first").Str,
			Asset: pair.Field("second").Field("asset").PPtr(),
		})
	}
	return out
}

// SetAssetBundleContainer overwrites a decoded AssetBundle's
// m_Container table, for the merge step that builds the output
// bundle's asset index.
func SetAssetBundleContainer(v *Value, entries []AssetBundleContainerEntry) {
	field := v.Field("m_Container")
	arrayNode := field.Node.Children[0]
	elemNode := arrayNode.Children[1]
	assetInfoNode := elemNode.FindChild("second")
	items := make([]*Value, len(entries))
	for i, e := range entries {
		pathVal := &Value{Node: elemNode.FindChild("first"), Str: e.Path}
		assetVal := &Value{Node: assetInfoNode, Items: []*Value{
			{Node: assetInfoNode.FindChild("preloadIndex")},
			{Node: assetInfoNode.FindChild("preloadSize")},
			{Node: assetInfoNode.FindChild("asset")},
		}}
		assetVal.Field("asset").SetPPtr(e.Asset)
		items[i] = &Value{Node: elemNode, Items: []*Value{pathVal, assetVal}}
	}
	field.Items = items
}
