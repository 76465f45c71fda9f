// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package unityfs

// This file ships the canonical type trees for the handful of stock
// classes the repacker core decodes directly. They serve as a shared
// type tree blob keyed by class id (and, in principle, Unity version)
// for when a scene's own Types list doesn't carry trees
// (EnableTypeTree == false). Real games across engine versions vary
// these layouts in minor ways the repacker core never needs to
// observe (it only ever touches the fields named here), so one
// representative layout is kept per class rather than a table of
// per-version variants.

func prim(typeName, field string) *TypeTreeNode {
	return &TypeTreeNode{TypeName: typeName, FieldName: field}
}

func pptrField(target, field string) *TypeTreeNode {
	return &TypeTreeNode{TypeName: "PPtr<" + target + ">", FieldName: field}
}

func stringField(field string) *TypeTreeNode {
	return &TypeTreeNode{TypeName: "string", FieldName: field, MetaFlag: MetaFlagAlignBytes}
}

// arrayField builds the implicit "vector { Array { int size; T data } }"
// shape used for array-shaped nodes.
func arrayField(field string, elem *TypeTreeNode) *TypeTreeNode {
	elemCopy := elem.Clone()
	elemCopy.FieldName = "data"
	return &TypeTreeNode{
		TypeName:  "vector",
		FieldName: field,
		MetaFlag:  MetaFlagAlignBytes,
		Children: []*TypeTreeNode{
			{
				TypeName: "Array",
				FieldName: "Array",
				MetaFlag:  MetaFlagAlignBytes,
				Children: []*TypeTreeNode{
					prim("int", "size"),
					elemCopy,
				},
			},
		},
	}
}

func structNode(typeName, field string, children ...*TypeTreeNode) *TypeTreeNode {
	return &TypeTreeNode{TypeName: typeName, FieldName: field, Children: children}
}

// StdGameObjectType returns the canonical GameObject layout.
func StdGameObjectType() *TypeTreeNode {
	component := structNode("ComponentPair", "data",
		prim("SInt32", "first"),
		pptrField("Component", "second"),
	)
	return structNode("GameObject", "base",
		arrayField("m_Component", component),
		prim("SInt32", "m_Layer"),
		stringField("m_Name"),
		prim("UInt16", "m_Tag"),
		prim("bool", "m_IsActive"),
	)
}

// StdTransformType returns the canonical Transform layout.
func StdTransformType() *TypeTreeNode {
	quat := structNode("Quaternionf", "m_LocalRotation",
		prim("float", "x"), prim("float", "y"), prim("float", "z"), prim("float", "w"))
	vec3 := func(field string) *TypeTreeNode {
		return structNode("Vector3f", field, prim("float", "x"), prim("float", "y"), prim("float", "z"))
	}
	return structNode("Transform", "base",
		pptrField("GameObject", "m_GameObject"),
		quat,
		vec3("m_LocalPosition"),
		vec3("m_LocalScale"),
		arrayField("m_Children", pptrField("Transform", "data")),
		pptrField("Transform", "m_Father"),
	)
}

// StdMonoScriptType returns the canonical MonoScript layout.
func StdMonoScriptType() *TypeTreeNode {
	return structNode("MonoScript", "base",
		stringField("m_Name"),
		prim("SInt32", "m_ExecutionOrder"),
		&TypeTreeNode{TypeName: "GUID", FieldName: "m_PropertiesHash", Children: []*TypeTreeNode{
			prim("UInt8", "data[16]"),
		}},
		stringField("m_ClassName"),
		stringField("m_Namespace"),
		stringField("m_AssemblyName"),
	)
}

// StdMonoBehaviourHeaderType returns the fixed fields every
// MonoBehaviour begins with, before the script's own fields. The
// MonoBehaviour cache's generated tree prepends these header fields as
// children in front of a script's own fields.
func StdMonoBehaviourHeaderType() *TypeTreeNode {
	return structNode("MonoBehaviour", "base",
		pptrField("GameObject", "m_GameObject"),
		prim("UInt8", "m_Enabled"),
		pptrField("MonoScript", "m_Script"),
		stringField("m_Name"),
	)
}

// StdAssetInfoType returns the {preloadIndex, preloadSize, asset}
// triple stored per container-table entry.
func StdAssetInfoType() *TypeTreeNode {
	return structNode("AssetInfo", "second",
		prim("SInt32", "preloadIndex"),
		prim("SInt32", "preloadSize"),
		pptrField("Object", "asset"),
	)
}

// StdAssetBundleType returns the canonical AssetBundle layout.
func StdAssetBundleType() *TypeTreeNode {
	containerPair := structNode("pair", "data",
		stringField("first"),
		StdAssetInfoType(),
	)
	return structNode("AssetBundle", "base",
		stringField("m_Name"),
		arrayField("m_PreloadTable", pptrField("Object", "data")),
		arrayField("m_Container", containerPair),
		StdAssetInfoType(),
		prim("UInt32", "m_RuntimeCompatibility"),
		stringField("m_AssetBundleName"),
	)
}

// StdPreloadDataType returns the canonical PreloadData layout.
func StdPreloadDataType() *TypeTreeNode {
	return structNode("PreloadData", "base",
		stringField("m_Name"),
		arrayField("m_Assets", pptrField("Object", "data")),
		arrayField("m_Dependencies", stringField("data")),
	)
}

// StdBuildSettingsType returns the canonical BuildSettings layout.
func StdBuildSettingsType() *TypeTreeNode {
	return structNode("BuildSettings", "base",
		arrayField("scenes", stringField("data")),
		stringField("m_Version"),
	)
}

// StdRenderSettingsType returns a minimal RenderSettings layout: the
// repacker core never edits RenderSettings fields, it only needs to
// recognise and retain the object whole, so only enough shape to
// round-trip generically through the walker is declared.
func StdRenderSettingsType() *TypeTreeNode {
	return structNode("RenderSettings", "base",
		prim("bool", "m_Fog"),
		prim("float", "m_FogDensity"),
	)
}

// stdTypeTrees indexes the canonical trees above by class id, for
// lib/prune's fallback lookup when a scene's own Types list lacks a
// tree for a class it needs to walk.
var stdTypeTrees = map[int32]func() *TypeTreeNode{
	ClassGameObject:     StdGameObjectType,
	ClassTransform:      StdTransformType,
	ClassMonoScript:     StdMonoScriptType,
	ClassMonoBehaviour:  StdMonoBehaviourHeaderType,
	ClassAssetBundle:    StdAssetBundleType,
	ClassPreloadData:    StdPreloadDataType,
	ClassBuildSettings:  StdBuildSettingsType,
	ClassRenderSettings: StdRenderSettingsType,
}

// StdTypeTreeForClass returns the built-in type tree for a stock
// class id, if one is known. unity is accepted for forward
// compatibility even though the current table doesn't vary by
// version.
func StdTypeTreeForClass(classID int32, unity UnityVersion) (*TypeTreeNode, bool) {
	_ = unity
	ctor, ok := stdTypeTrees[classID]
	if !ok {
		return nil, false
	}
	return ctor(), true
}
