// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package monobehaviour

import (
	"encoding/binary"
	"math"

	"github.com/unityrepack/scene-repacker/lib/rerr"
	"github.com/unityrepack/scene-repacker/lib/typetree"
	"github.com/unityrepack/scene-repacker/lib/unityfs"
)

// Dump decodes a MonoBehaviour's bytes against tree and renders every
// field as a generic map[string]any, for debugging and offline export.
// It generalizes the same walker primitive Scan uses, but captures
// every leaf rather than only PPtr fields.
func Dump(tree *unityfs.TypeTreeNode, data []byte, ord binary.ByteOrder) (map[string]any, error) {
	v, err := typetree.Decode(tree, data, ord)
	if err != nil {
		return nil, err
	}
	rendered, ok := valueToAny(v).(map[string]any)
	if !ok {
		return nil, rerr.New(rerr.Internal, "monobehaviour: dump: root type %q did not decode to a struct", tree.TypeName)
	}
	return rendered, nil
}

func valueToAny(v *typetree.Value) any {
	node := v.Node
	switch {
	case node.IsPPtr():
		return v.PPtr()
	case node.TypeName == "string":
		return v.Str
	case node.IsArrayShaped():
		arr := make([]any, len(v.Items))
		for i, item := range v.Items {
			arr[i] = valueToAny(item)
		}
		return arr
	case len(node.Children) > 0:
		m := make(map[string]any, len(node.Children))
		for i, child := range node.Children {
			if i < len(v.Items) {
				m[child.FieldName] = valueToAny(v.Items[i])
			}
		}
		return m
	default:
		return primitiveToAny(node.TypeName, v)
	}
}

func primitiveToAny(typeName string, v *typetree.Value) any {
	switch typeName {
	case "bool":
		return v.Bool()
	case "float":
		return v.Float32()
	case "double":
		return math.Float64frombits(v.Uint)
	case "SInt8", "SInt16", "SInt32", "SInt64", "char":
		return v.Int
	default:
		return v.Uint
	}
}
