// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package typetree

import (
	"encoding/binary"

	"github.com/unityrepack/scene-repacker/lib/rerr"
	"github.com/unityrepack/scene-repacker/lib/unityfs"
)

// PPtrVisitor is invoked by Walk at every PPtr field encountered
// during a scan or rewrite pass. data holds the full object payload;
// off is the byte offset of the 12-byte (file_id int32, path_id
// int64) pair within data. Implementations read and/or mutate those
// 12 bytes using ord.
type PPtrVisitor interface {
	VisitPPtr(node *unityfs.TypeTreeNode, data []byte, off int, ord binary.ByteOrder) error
}

// Walk traverses data's binary layout as described by root,
// invoking v at every PPtr field except the synthetic "m_Father"
// field (ancestor edges are handled separately by lib/prune; skipping
// them here prevents infinite regress walking up the transform tree).
// It returns the cursor position after the walk, which for a
// top-level object should equal len(data).
func Walk(root *unityfs.TypeTreeNode, data []byte, ord binary.ByteOrder, v PPtrVisitor) (int, error) {
	return walkNode(root, data, 0, ord, v)
}

func walkNode(node *unityfs.TypeTreeNode, data []byte, pos int, ord binary.ByteOrder, v PPtrVisitor) (int, error) {
	width, isPrimitive := primitiveWidths[node.TypeName]

	switch {
	case node.TypeName == "string":
		n, err := readU32(data, pos, ord)
		if err != nil {
			return pos, rerr.Context(err, "typetree: reading string length of %q", node.FieldName)
		}
		pos += 4
		if err := needBytes(data, pos, int(n)); err != nil {
			return pos, rerr.Context(err, "typetree: reading string body of %q", node.FieldName)
		}
		pos += int(n)

	case isUnsupportedTypeName(node.TypeName):
		return pos, rerr.New(rerr.UnsupportedFeature, "typetree: type %q (field %q) is not supported", node.TypeName, node.FieldName)

	case node.IsPPtr():
		if err := needBytes(data, pos, 12); err != nil {
			return pos, rerr.Context(err, "typetree: reading PPtr %q", node.FieldName)
		}
		if node.FieldName != "m_Father" {
			if err := v.VisitPPtr(node, data, pos, ord); err != nil {
				return pos, rerr.Context(err, "typetree: visiting PPtr %q", node.FieldName)
			}
		}
		pos += 12

	case isPrimitive:
		if err := needBytes(data, pos, width); err != nil {
			return pos, rerr.Context(err, "typetree: reading %q", node.FieldName)
		}
		pos += width

	case node.IsArrayShaped():
		arrayNode := node.Children[0]
		sizeNode := arrayNode.Children[0]
		dataNode := arrayNode.Children[1]

		sizeWidth, ok := primitiveWidths[sizeNode.TypeName]
		if !ok {
			sizeWidth = 4
		}
		countRaw, err := readPrimitiveRaw(data, pos, sizeWidth, ord)
		if err != nil {
			return pos, rerr.Context(err, "typetree: reading count of %q", node.FieldName)
		}
		pos += sizeWidth
		if sizeNode.AlignAfter() {
			pos = align4(pos)
		}

		for i := uint64(0); i < countRaw; i++ {
			pos, err = walkNode(dataNode, data, pos, ord, v)
			if err != nil {
				return pos, err
			}
		}
		if arrayNode.AlignAfter() {
			pos = align4(pos)
		}

	default:
		var err error
		for _, child := range node.Children {
			pos, err = walkNode(child, data, pos, ord, v)
			if err != nil {
				return pos, err
			}
		}
	}

	if node.AlignAfter() {
		pos = align4(pos)
	}
	return pos, nil
}

// scanVisitor implements PPtrVisitor by collecting non-null PPtrs.
type scanVisitor struct {
	found []unityfs.PPtr
}

func (s *scanVisitor) VisitPPtr(_ *unityfs.TypeTreeNode, data []byte, off int, ord binary.ByteOrder) error {
	fileID := int32(ord.Uint32(data[off:]))
	pathID := int64(ord.Uint64(data[off+4:]))
	p := unityfs.PPtr{FileID: fileID, PathID: pathID}
	if !p.IsNull() {
		s.found = append(s.found, p)
	}
	return nil
}

// Scan walks an object's bytes and returns every non-null PPtr found,
// excluding m_Father.
func Scan(root *unityfs.TypeTreeNode, data []byte, ord binary.ByteOrder) ([]unityfs.PPtr, error) {
	v := &scanVisitor{}
	if _, err := Walk(root, data, ord, v); err != nil {
		return nil, err
	}
	return v.found, nil
}

// RemapFunc is consulted by RewriteInPlace for every PPtr found. It returns
// the value to write back (possibly unchanged) — callers that don't
// want to touch a given component return it unmodified.
type RemapFunc func(fileID int32, pathID int64) (newFileID int32, newPathID int64)

type rewriteVisitor struct {
	remap RemapFunc
}

func (r *rewriteVisitor) VisitPPtr(_ *unityfs.TypeTreeNode, data []byte, off int, ord binary.ByteOrder) error {
	fileID := int32(ord.Uint32(data[off:]))
	pathID := int64(ord.Uint64(data[off+4:]))
	if fileID == 0 && pathID == 0 {
		return nil // null PPtrs are never remapped
	}
	newFileID, newPathID := r.remap(fileID, pathID)
	ord.PutUint32(data[off:], uint32(newFileID))
	ord.PutUint64(data[off+4:], uint64(newPathID))
	return nil
}

// RewriteInPlace walks data exactly as Scan does, but patches every
// non-null PPtr's file-id/path-id pair in place via remap. Local PPtrs
// (file_id == 0) are conventionally remapped by path-id and non-local
// PPtrs by file-id; callers encode that policy in remap and return the
// component unchanged when no mapping exists.
func RewriteInPlace(root *unityfs.TypeTreeNode, data []byte, ord binary.ByteOrder, remap RemapFunc) error {
	_, err := Walk(root, data, ord, &rewriteVisitor{remap: remap})
	return err
}
