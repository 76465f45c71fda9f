// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package bundlefile

import "github.com/unityrepack/scene-repacker/lib/rerr"

// Compression identifies a bundle body's compression kind, mirroring
// the kind tag the real UnityFS format stores (LZMA=1, LZ4/LZ4HC=2/3
// in the engine's numbering; only None is implemented here, see
// CompressionWriter).
type Compression uint32

const (
	CompressionNone Compression = 0
	CompressionLZ4HC Compression = 3
	CompressionLZMA  Compression = 1
)

// CompressionWriter encodes a bundle body. This package only needs to
// produce self-consistent output bundles its own reader can parse
// back; real LZ4HC/LZMA codecs are a separate collaborator this
// package does not implement.
type CompressionWriter interface {
	Kind() Compression
	Compress(body []byte) ([]byte, error)
}

// noneWriter stores bodies uncompressed.
type noneWriter struct{}

// NoneWriter returns a CompressionWriter that stores bundle bodies
// uncompressed.
func NoneWriter() CompressionWriter { return noneWriter{} }

func (noneWriter) Kind() Compression { return CompressionNone }

func (noneWriter) Compress(body []byte) ([]byte, error) { return body, nil }

// LZ4HCWriter would compress bundle bodies with LZ4 high-compression
// mode, as real Unity bundles typically do; not implemented.
func LZ4HCWriter() (CompressionWriter, error) {
	return nil, rerr.New(rerr.UnsupportedFeature, "bundlefile: LZ4HC compression is not implemented")
}

// LZMAWriter would compress bundle bodies with LZMA, as some Unity
// bundles do; not implemented.
func LZMAWriter() (CompressionWriter, error) {
	return nil, rerr.New(rerr.UnsupportedFeature, "bundlefile: LZMA compression is not implemented")
}
