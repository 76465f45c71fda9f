// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package bundlefile

import (
	"encoding/binary"

	"github.com/unityrepack/scene-repacker/lib/rerr"
)

// cursor is a minimal sequential little-endian reader, mirroring the
// one lib/unityfs keeps private to itself; kept small and duplicated
// rather than shared, since the two packages' wire formats are
// unrelated and a shared cursor type would couple them for no reason.
type cursor struct {
	data []byte
	pos  int
	ord  binary.ByteOrder
}

func (c *cursor) need(n int) error {
	if c.pos < 0 || n < 0 || c.pos+n > len(c.data) {
		return rerr.New(rerr.Parse, "bundlefile: need %d bytes at offset %d, have %d", n, c.pos, len(c.data))
	}
	return nil
}

func (c *cursor) fixed(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func (c *cursor) u32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := c.ord.Uint32(c.data[c.pos:])
	c.pos += 4
	return v, nil
}

func (c *cursor) i64() (int64, error) {
	if err := c.need(8); err != nil {
		return 0, err
	}
	v := int64(c.ord.Uint64(c.data[c.pos:]))
	c.pos += 8
	return v, nil
}

func (c *cursor) cstring() (string, error) {
	start := c.pos
	for c.pos < len(c.data) && c.data[c.pos] != 0 {
		c.pos++
	}
	if c.pos >= len(c.data) {
		return "", rerr.New(rerr.Parse, "bundlefile: unterminated string at offset %d", start)
	}
	s := string(c.data[start:c.pos])
	c.pos++
	return s, nil
}
