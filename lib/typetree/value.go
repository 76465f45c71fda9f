// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package typetree

import (
	"encoding/binary"
	"math"

	"github.com/unityrepack/scene-repacker/lib/rerr"
	"github.com/unityrepack/scene-repacker/lib/unityfs"
)

// Value is a generic decoded representation of one type-tree node's
// content. Decode/Encode are the slow path used where the repacker
// actually needs to edit an object's structure (ancestor promotion,
// the disable-roots active flag) rather than just patch PPtr fields in
// place: the object is re-serialized from its type tree into fresh
// bytes, as opposed to the merge step's in-place PPtr rewrite which
// never re-deserializes unchanged objects.
type Value struct {
	Node *unityfs.TypeTreeNode

	Uint uint64 // populated for unsigned/bool primitives
	Int  int64  // populated for signed primitives
	Str  string // populated for "string" nodes

	// Items holds, in order: struct field values (parallel to
	// Node.Children), or array/map element values.
	Items []*Value
}

// Field returns the decoded child value with the given field name,
// for a struct-shaped Value.
func (v *Value) Field(name string) *Value {
	for i, c := range v.Node.Children {
		if c.FieldName == name {
			return v.Items[i]
		}
	}
	return nil
}

// Decode fully decodes data according to root into a Value tree.
func Decode(root *unityfs.TypeTreeNode, data []byte, ord binary.ByteOrder) (*Value, error) {
	v, pos, err := decodeNode(root, data, 0, ord)
	if err != nil {
		return nil, err
	}
	_ = pos
	return v, nil
}

func decodeNode(node *unityfs.TypeTreeNode, data []byte, pos int, ord binary.ByteOrder) (*Value, int, error) {
	width, isPrimitive := primitiveWidths[node.TypeName]
	val := &Value{Node: node}

	switch {
	case node.TypeName == "string":
		n, err := readU32(data, pos, ord)
		if err != nil {
			return nil, pos, rerr.Context(err, "typetree: decoding string length of %q", node.FieldName)
		}
		pos += 4
		if err := needBytes(data, pos, int(n)); err != nil {
			return nil, pos, rerr.Context(err, "typetree: decoding string body of %q", node.FieldName)
		}
		val.Str = string(data[pos : pos+int(n)])
		pos += int(n)

	case isUnsupportedTypeName(node.TypeName):
		return nil, pos, rerr.New(rerr.UnsupportedFeature, "typetree: type %q (field %q) is not supported", node.TypeName, node.FieldName)

	case node.IsPPtr():
		if err := needBytes(data, pos, 12); err != nil {
			return nil, pos, rerr.Context(err, "typetree: decoding PPtr %q", node.FieldName)
		}
		fileID := int32(ord.Uint32(data[pos:]))
		pathID := int64(ord.Uint64(data[pos+4:]))
		val.Int = int64(fileID)
		val.Uint = uint64(pathID)
		pos += 12

	case isPrimitive:
		raw, err := readPrimitiveRaw(data, pos, width, ord)
		if err != nil {
			return nil, pos, rerr.Context(err, "typetree: decoding %q", node.FieldName)
		}
		val.Uint = raw
		val.Int = signExtend(raw, width)
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
			return nil, pos, rerr.Context(err, "typetree: decoding count of %q", node.FieldName)
		}
		pos += sizeWidth
		if sizeNode.AlignAfter() {
			pos = align4(pos)
		}

		val.Items = make([]*Value, countRaw)
		for i := uint64(0); i < countRaw; i++ {
			var elem *Value
			elem, pos, err = decodeNode(dataNode, data, pos, ord)
			if err != nil {
				return nil, pos, err
			}
			val.Items[i] = elem
		}
		if arrayNode.AlignAfter() {
			pos = align4(pos)
		}

	default:
		val.Items = make([]*Value, len(node.Children))
		var err error
		for i, child := range node.Children {
			val.Items[i], pos, err = decodeNode(child, data, pos, ord)
			if err != nil {
				return nil, pos, err
			}
		}
	}

	if node.AlignAfter() {
		pos = align4(pos)
	}
	return val, pos, nil
}

func signExtend(raw uint64, width int) int64 {
	switch width {
	case 1:
		return int64(int8(raw))
	case 2:
		return int64(int16(raw))
	case 4:
		return int64(int32(raw))
	default:
		return int64(raw)
	}
}

// Encode is the inverse of Decode: it serializes v (which must have
// been produced by Decode, possibly edited in place) back into bytes.
func Encode(v *Value, ord binary.ByteOrder) ([]byte, error) {
	buf := make([]byte, 0, 64)
	buf, err := encodeNode(v, ord, buf)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func encodeNode(v *Value, ord binary.ByteOrder, buf []byte) ([]byte, error) {
	node := v.Node
	width, isPrimitive := primitiveWidths[node.TypeName]

	switch {
	case node.TypeName == "string":
		var lenBuf [4]byte
		ord.PutUint32(lenBuf[:], uint32(len(v.Str)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, v.Str...)

	case node.IsPPtr():
		var b [12]byte
		ord.PutUint32(b[:4], uint32(int32(v.Int)))
		ord.PutUint64(b[4:], v.Uint)
		buf = append(buf, b[:]...)

	case isPrimitive:
		var b [8]byte
		switch width {
		case 1:
			b[0] = byte(v.Uint)
		case 2:
			ord.PutUint16(b[:2], uint16(v.Uint))
		case 4:
			ord.PutUint32(b[:4], uint32(v.Uint))
		case 8:
			ord.PutUint64(b[:8], v.Uint)
		}
		buf = append(buf, b[:width]...)

	case node.IsArrayShaped():
		arrayNode := node.Children[0]
		sizeNode := arrayNode.Children[0]
		sizeWidth, ok := primitiveWidths[sizeNode.TypeName]
		if !ok {
			sizeWidth = 4
		}
		var b [8]byte
		switch sizeWidth {
		case 1:
			b[0] = byte(len(v.Items))
		case 2:
			ord.PutUint16(b[:2], uint16(len(v.Items)))
		case 4:
			ord.PutUint32(b[:4], uint32(len(v.Items)))
		case 8:
			ord.PutUint64(b[:8], uint64(len(v.Items)))
		}
		buf = append(buf, b[:sizeWidth]...)
		if sizeNode.AlignAfter() {
			buf = alignBuf(buf)
		}
		var err error
		for _, elem := range v.Items {
			buf, err = encodeNode(elem, ord, buf)
			if err != nil {
				return nil, err
			}
		}
		if arrayNode.AlignAfter() {
			buf = alignBuf(buf)
		}

	default:
		var err error
		for _, item := range v.Items {
			buf, err = encodeNode(item, ord, buf)
			if err != nil {
				return nil, err
			}
		}
	}

	if node.AlignAfter() {
		buf = alignBuf(buf)
	}
	return buf, nil
}

func alignBuf(buf []byte) []byte {
	for len(buf)%4 != 0 {
		buf = append(buf, 0)
	}
	return buf
}

// Float32 interprets a primitive Value decoded from a "float" node.
func (v *Value) Float32() float32 { return math.Float32frombits(uint32(v.Uint)) }

// SetFloat32 sets a primitive Value decoded from a "float" node.
func (v *Value) SetFloat32(f float32) { v.Uint = uint64(math.Float32bits(f)) }

// Bool interprets a primitive Value decoded from a "bool" node.
func (v *Value) Bool() bool { return v.Uint != 0 }

// SetBool sets a primitive Value decoded from a "bool" node.
func (v *Value) SetBool(b bool) {
	if b {
		v.Uint = 1
	} else {
		v.Uint = 0
	}
}

// Zero builds a Value tree for node with every primitive at its zero
// value, every string empty, and every array empty — the starting
// point for constructing a synthetic object (the merged AssetBundle,
// a scene-bundle's PreloadData) field-by-field rather than decoding
// one from existing bytes.
func Zero(node *unityfs.TypeTreeNode) *Value {
	val := &Value{Node: node}
	switch {
	case node.TypeName == "string", node.IsPPtr(), node.IsArrayShaped():
		// string: Str defaults to ""; PPtr: Int/Uint default to 0;
		// array: Items defaults to nil, i.e. zero elements.
	case len(node.Children) > 0:
		val.Items = make([]*Value, len(node.Children))
		for i, child := range node.Children {
			val.Items[i] = Zero(child)
		}
	}
	return val
}

// PPtr interprets a Value decoded from a PPtr<T> node.
func (v *Value) PPtr() unityfs.PPtr {
	return unityfs.PPtr{FileID: int32(v.Int), PathID: int64(v.Uint)}
}

// SetPPtr sets a Value decoded from a PPtr<T> node.
func (v *Value) SetPPtr(p unityfs.PPtr) {
	v.Int = int64(p.FileID)
	v.Uint = uint64(p.PathID)
}
