// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package unityfs

// readTypeTree decodes one TypeTreeNode subtree, recursively. Unlike
// stock Unity's packed "node blob + string table" sub-format, this
// package's own serialized files store each node's strings inline,
// which simplifies encoding at the cost of being slightly larger on
// the wire; see DESIGN.md for the tradeoff.
func readTypeTree(c *cursor) (*TypeTreeNode, error) {
	typeName, err := c.str32()
	if err != nil {
		return nil, err
	}
	fieldName, err := c.str32()
	if err != nil {
		return nil, err
	}
	level, err := c.u8()
	if err != nil {
		return nil, err
	}
	metaFlag, err := c.i32()
	if err != nil {
		return nil, err
	}
	childCount, err := c.u32()
	if err != nil {
		return nil, err
	}
	n := &TypeTreeNode{
		TypeName:  typeName,
		FieldName: fieldName,
		Level:     int8(level),
		MetaFlag:  metaFlag,
	}
	n.Children = make([]*TypeTreeNode, childCount)
	for i := range n.Children {
		child, err := readTypeTree(c)
		if err != nil {
			return nil, err
		}
		n.Children[i] = child
	}
	return n, nil
}

func writeTypeTree(w *writer, n *TypeTreeNode) {
	w.str32(n.TypeName)
	w.str32(n.FieldName)
	w.u8(byte(n.Level))
	w.i32(n.MetaFlag)
	w.u32(uint32(len(n.Children)))
	for _, c := range n.Children {
		writeTypeTree(w, c)
	}
}
