// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package unityfs

import (
	"encoding/binary"
	"fmt"
)

// cursor is a small sequential byte-slice reader used for the
// metadata section of a SerializedFile. The object-data section
// itself is never read this way: that is the type-tree walker's job
// (lib/typetree), which is the only component allowed to interpret
// an object's payload.
type cursor struct {
	buf []byte
	pos int
	ord binary.ByteOrder
}

func newCursor(buf []byte, ord binary.ByteOrder) *cursor {
	return &cursor{buf: buf, ord: ord}
}

func (c *cursor) need(n int) error {
	if c.pos+n > len(c.buf) {
		return fmt.Errorf("unityfs: short read: need %d bytes at offset %d, have %d", n, c.pos, len(c.buf))
	}
	return nil
}

func (c *cursor) u8() (byte, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	v := c.buf[c.pos]
	c.pos++
	return v, nil
}

func (c *cursor) bool() (bool, error) {
	v, err := c.u8()
	return v != 0, err
}

func (c *cursor) i16() (int16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	v := int16(c.ord.Uint16(c.buf[c.pos:]))
	c.pos += 2
	return v, nil
}

func (c *cursor) u32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := c.ord.Uint32(c.buf[c.pos:])
	c.pos += 4
	return v, nil
}

func (c *cursor) i32() (int32, error) {
	v, err := c.u32()
	return int32(v), err
}

func (c *cursor) i64() (int64, error) {
	if err := c.need(8); err != nil {
		return 0, err
	}
	v := int64(c.ord.Uint64(c.buf[c.pos:]))
	c.pos += 8
	return v, nil
}

func (c *cursor) bytesN(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	v := c.buf[c.pos : c.pos+n]
	c.pos += n
	return v, nil
}

func (c *cursor) guid() ([16]byte, error) {
	var g [16]byte
	b, err := c.bytesN(16)
	if err != nil {
		return g, err
	}
	copy(g[:], b)
	return g, nil
}

// cstring reads a NUL-terminated string.
func (c *cursor) cstring() (string, error) {
	start := c.pos
	for c.pos < len(c.buf) && c.buf[c.pos] != 0 {
		c.pos++
	}
	if c.pos >= len(c.buf) {
		return "", fmt.Errorf("unityfs: unterminated string at offset %d", start)
	}
	s := string(c.buf[start:c.pos])
	c.pos++ // skip NUL
	return s, nil
}

// str32 reads a uint32 length-prefixed string (no alignment; callers
// align separately when the field says so).
func (c *cursor) str32() (string, error) {
	n, err := c.u32()
	if err != nil {
		return "", err
	}
	b, err := c.bytesN(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// writer is the metadata-section counterpart of cursor.
type writer struct {
	buf []byte
	ord binary.ByteOrder
}

func newWriter(ord binary.ByteOrder) *writer { return &writer{ord: ord} }

func (w *writer) u8(v byte)   { w.buf = append(w.buf, v) }
func (w *writer) boolv(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

func (w *writer) i16(v int16) {
	var b [2]byte
	w.ord.PutUint16(b[:], uint16(v))
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) u32(v uint32) {
	var b [4]byte
	w.ord.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) i32(v int32) { w.u32(uint32(v)) }

func (w *writer) i64(v int64) {
	var b [8]byte
	w.ord.PutUint64(b[:], uint64(v))
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) raw(b []byte) { w.buf = append(w.buf, b...) }

func (w *writer) guid(g [16]byte) { w.buf = append(w.buf, g[:]...) }

func (w *writer) cstring(s string) {
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}

func (w *writer) str32(s string) {
	w.u32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *writer) align4() {
	for len(w.buf)%4 != 0 {
		w.buf = append(w.buf, 0)
	}
}
