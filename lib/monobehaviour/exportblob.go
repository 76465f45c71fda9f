// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package monobehaviour

import (
	"encoding/binary"

	"github.com/pierrec/lz4/v4"

	"github.com/unityrepack/scene-repacker/lib/rerr"
	"github.com/unityrepack/scene-repacker/lib/unityfs"
)

// DecodeExportBlob decodes the offline MonoBehaviour type-tree export
// format: a size-prefixed LZ4 block (a u32 little-endian uncompressed
// size, then a raw LZ4 block), followed by an assembly/type/node
// table. The returned map is ready to back NewPrefilled.
func DecodeExportBlob(data []byte) (map[Key]*unityfs.TypeTreeNode, error) {
	if len(data) < 4 {
		return nil, rerr.New(rerr.Parse, "monobehaviour: export blob too small for LZ4 size header")
	}
	uncompressedSize := binary.LittleEndian.Uint32(data[:4])
	dst := make([]byte, uncompressedSize)
	n, err := lz4.UncompressBlock(data[4:], dst)
	if err != nil {
		return nil, rerr.Wrap(rerr.Parse, err, "monobehaviour: decompressing export blob")
	}
	body := dst[:n]

	c := &blobCursor{data: body}
	result := make(map[Key]*unityfs.TypeTreeNode)

	numAssemblies, err := c.u32()
	if err != nil {
		return nil, rerr.Context(err, "monobehaviour: reading assembly count")
	}
	for a := uint32(0); a < numAssemblies; a++ {
		assemblyName, err := c.str32()
		if err != nil {
			return nil, rerr.Context(err, "monobehaviour: reading assembly %d name", a)
		}
		numTypes, err := c.u32()
		if err != nil {
			return nil, rerr.Context(err, "monobehaviour: reading assembly %q type count", assemblyName)
		}
		for t := uint32(0); t < numTypes; t++ {
			fullName, err := c.str32()
			if err != nil {
				return nil, rerr.Context(err, "monobehaviour: reading type %d/%d name in %q", t, numTypes, assemblyName)
			}
			numNodes, err := c.u32()
			if err != nil {
				return nil, rerr.Context(err, "monobehaviour: reading node count for %s/%s", assemblyName, fullName)
			}
			nodes := make([]flatNode, numNodes)
			for i := uint32(0); i < numNodes; i++ {
				nodes[i], err = c.node()
				if err != nil {
					return nil, rerr.Context(err, "monobehaviour: reading node %d of %s/%s", i, assemblyName, fullName)
				}
			}
			root, err := unflatten(nodes)
			if err != nil {
				return nil, rerr.Context(err, "monobehaviour: unflattening %s/%s", assemblyName, fullName)
			}
			result[Key{Assembly: assemblyName, FullName: fullName}] = root
		}
	}

	return result, nil
}

// flatNode is one pre-order-flattened node from the export blob's
// node table.
type flatNode struct {
	name     string
	typeName string
	level    uint8
	metaFlag int32
}

// unflatten rebuilds a TypeTreeNode tree from its pre-order
// flattening: the first node with level = 0 is the root, and
// consecutive nodes with strictly increasing level become children of
// the immediately preceding lower-level ancestor.
func unflatten(nodes []flatNode) (*unityfs.TypeTreeNode, error) {
	if len(nodes) == 0 {
		return nil, rerr.New(rerr.Parse, "monobehaviour: empty node sequence")
	}
	if nodes[0].level != 0 {
		return nil, rerr.New(rerr.Parse, "monobehaviour: first node has level %d, want 0", nodes[0].level)
	}

	// stack[i] is the most recently emitted node at level i.
	root := toTree(nodes[0])
	stack := []*unityfs.TypeTreeNode{root}

	for _, n := range nodes[1:] {
		node := toTree(n)
		level := int(n.level)
		if level == 0 || level > len(stack) {
			return nil, rerr.New(rerr.Parse, "monobehaviour: node %q has out-of-sequence level %d", n.name, n.level)
		}
		parent := stack[level-1]
		parent.Children = append(parent.Children, node)
		stack = append(stack[:level], node)
	}

	return root, nil
}

func toTree(n flatNode) *unityfs.TypeTreeNode {
	return &unityfs.TypeTreeNode{
		TypeName:  n.typeName,
		FieldName: n.name,
		Level:     int8(n.level),
		MetaFlag:  n.metaFlag,
	}
}

// blobCursor is a minimal little-endian reader over the decompressed
// export blob body, separate from lib/unityfs's internal cursor since
// this format is independent of the serialized-file layout.
type blobCursor struct {
	data []byte
	pos  int
}

func (c *blobCursor) need(n int) error {
	if c.pos+n > len(c.data) {
		return rerr.New(rerr.Parse, "monobehaviour: export blob truncated at offset %d (need %d bytes)", c.pos, n)
	}
	return nil
}

func (c *blobCursor) u32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(c.data[c.pos:])
	c.pos += 4
	return v, nil
}

func (c *blobCursor) i32() (int32, error) {
	v, err := c.u32()
	return int32(v), err
}

func (c *blobCursor) u8() (uint8, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	v := c.data[c.pos]
	c.pos++
	return v, nil
}

func (c *blobCursor) str32() (string, error) {
	n, err := c.u32()
	if err != nil {
		return "", err
	}
	if err := c.need(int(n)); err != nil {
		return "", err
	}
	s := string(c.data[c.pos : c.pos+int(n)])
	c.pos += int(n)
	return s, nil
}

func (c *blobCursor) node() (flatNode, error) {
	var n flatNode
	var err error
	if n.name, err = c.str32(); err != nil {
		return n, err
	}
	if n.typeName, err = c.str32(); err != nil {
		return n, err
	}
	if n.level, err = c.u8(); err != nil {
		return n, err
	}
	if n.metaFlag, err = c.i32(); err != nil {
		return n, err
	}
	return n, nil
}
