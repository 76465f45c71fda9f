// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package unityfs

import "strings"

// MetaFlag bits carried by a TypeTreeNode. Only the bit the repacker
// core cares about (alignment) is named; the rest of Unity's meta
// flags (e.g. "is array", "is string", transfer-using-flags hints)
// are preserved byte-for-byte but not individually interpreted here,
// since the walker derives array/string-ness from TypeName/children
// shape instead.
const (
	MetaFlagAlignBytes int32 = 0x4000
)

// TypeTreeNode is one node of the ordered tree that dictates the
// binary layout of every object of a given type.
type TypeTreeNode struct {
	TypeName  string
	FieldName string
	Level     int8
	MetaFlag  int32
	Children  []*TypeTreeNode
}

// AlignAfter reports whether the walker must round its cursor up to
// the next 4-byte boundary after reading this node.
func (n *TypeTreeNode) AlignAfter() bool {
	return n.MetaFlag&MetaFlagAlignBytes != 0
}

// IsArrayShaped reports whether n is the implicit wrapper node Unity
// emits for arrays/vectors: exactly one child named "Array" with two
// children "size" and "data".
func (n *TypeTreeNode) IsArrayShaped() bool {
	if len(n.Children) != 1 || n.Children[0].FieldName != "Array" {
		return false
	}
	arr := n.Children[0]
	return len(arr.Children) == 2 && arr.Children[0].FieldName == "size" && arr.Children[1].FieldName == "data"
}

// IsPPtr reports whether n's type name is "PPtr<...>".
func (n *TypeTreeNode) IsPPtr() bool {
	return strings.HasPrefix(n.TypeName, "PPtr<")
}

// Clone deep-copies the subtree rooted at n.
func (n *TypeTreeNode) Clone() *TypeTreeNode {
	if n == nil {
		return nil
	}
	cp := *n
	if n.Children != nil {
		cp.Children = make([]*TypeTreeNode, len(n.Children))
		for i, c := range n.Children {
			cp.Children[i] = c.Clone()
		}
	}
	return &cp
}

// FindChild returns the first direct child with the given field name.
func (n *TypeTreeNode) FindChild(field string) *TypeTreeNode {
	for _, c := range n.Children {
		if c.FieldName == field {
			return c
		}
	}
	return nil
}

// PrependChildren returns a new root node with extra prepended before
// n's existing children, used to splice the standard MonoBehaviour
// header fields in front of a script's own fields.
func (n *TypeTreeNode) PrependChildren(extra ...*TypeTreeNode) *TypeTreeNode {
	cp := n.Clone()
	cp.Children = append(append([]*TypeTreeNode{}, extra...), cp.Children...)
	return cp
}
