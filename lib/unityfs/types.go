// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package unityfs

// Well-known class IDs the repacker decodes directly. Unity assigns
// many more, but only these have stable fields the core inspects.
const (
	ClassGameObject     int32 = 1
	ClassTransform      int32 = 4
	ClassRenderSettings int32 = 104
	ClassMonoBehaviour  int32 = 114
	ClassMonoScript     int32 = 115
	ClassBuildSettings  int32 = 141
	ClassAssetBundle    int32 = 142
	ClassPreloadData    int32 = 150
)

// ObjectInfo describes one object's position and type within a
// SerializedFile.
type ObjectInfo struct {
	PathID int64
	Offset int64
	Size   int64
	// TypeID indexes into the owning file's local Types list; it is
	// not a global identifier.
	TypeID int32
	ClassID int32
	// ScriptTypeIndex is only meaningful when ClassID ==
	// ClassMonoBehaviour; -1 otherwise.
	ScriptTypeIndex int16
}

// SerializedType describes one entry in a file's local type list: the
// class it represents, and (if present) the type tree dictating that
// class's binary layout.
type SerializedType struct {
	ClassID         int32
	IsStrippedType  bool
	ScriptTypeIndex int16
	ScriptID        [16]byte
	OldTypeHash     [16]byte
	Nodes           *TypeTreeNode // nil if the file was built without type trees
}

// FileIdentifier names a sibling file referenced by a PPtr with
// FileID > 0.
type FileIdentifier struct {
	Guid     [16]byte
	Type     int32
	PathName string
}

// ScriptTypeInfo binds a MonoBehaviour's ScriptTypeIndex to the
// MonoScript object describing its class.
type ScriptTypeInfo struct {
	LocalSerializedFileIndex int32
	LocalIdentifierInFile    int64
}
