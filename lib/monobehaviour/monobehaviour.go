// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package monobehaviour implements the MonoBehaviour type-tree cache:
// per-(assembly, class) type tree lookup, backed either by a prebuilt
// export blob (see exportblob.go) or by a live reflective extractor,
// wrapped behind one small interface so callers never need to know
// which backs a given Cache.
package monobehaviour

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/unityrepack/scene-repacker/lib/rerr"
	"github.com/unityrepack/scene-repacker/lib/unityfs"
)

// Key identifies one script's type tree by its assembly and
// fully-qualified class name.
type Key struct {
	Assembly string
	FullName string
}

// Extractor is the live reflective generator: a synchronous
// request/response over a dynamically loaded sibling library. An
// empty, nil-error response means "no script-specific fields, use the
// base tree".
type Extractor interface {
	Generate(assembly, fullName string) ([]*unityfs.TypeTreeNode, error)
}

// internLimit bounds the live-mode interning cache. Reflective
// generation is expensive enough per (assembly, class) that an
// unbounded map would be the simpler choice, but a real long-running
// repack over many scenes can see enough distinct script types that a
// bounded ARC cache is the safer default.
const internLimit = 4096

// Cache answers Generate lookups for MonoBehaviour type trees. The
// zero Cache is not usable; construct with NewPrefilled or NewLive.
type Cache struct {
	prefilled map[Key]*unityfs.TypeTreeNode
	extractor Extractor

	mu     sync.Mutex
	intern *lru.ARCCache // Key -> *unityfs.TypeTreeNode, live mode only

	statsMu  sync.Mutex
	stats    Stats
	seenKeys map[Key]bool
}

// NewPrefilled constructs a Cache that only ever consults a
// previously decoded export blob map ("prefilled mode").
func NewPrefilled(blob map[Key]*unityfs.TypeTreeNode) *Cache {
	return &Cache{prefilled: blob, seenKeys: make(map[Key]bool)}
}

// NewLive constructs a Cache backed by a reflective extractor ("live
// mode"). Results are interned for the cache's lifetime.
func NewLive(extractor Extractor) *Cache {
	arc, _ := lru.NewARC(internLimit)
	return &Cache{extractor: extractor, intern: arc, seenKeys: make(map[Key]bool)}
}

// Generate resolves the type tree for one script: the returned tree
// includes the standard MonoBehaviour header fields prepended as
// children.
func (c *Cache) Generate(assembly, fullName string) (*unityfs.TypeTreeNode, error) {
	key := Key{Assembly: assembly, FullName: fullName}

	c.statsMu.Lock()
	firstSeen := !c.seenKeys[key]
	c.seenKeys[key] = true
	c.stats.ScriptTypesSeen++
	c.statsMu.Unlock()

	if c.prefilled != nil {
		tree, ok := c.prefilled[key]
		if !ok {
			return nil, rerr.New(rerr.MissingType, "monobehaviour: no prefilled type tree for %s/%s", assembly, fullName)
		}
		return tree, nil
	}

	if c.extractor == nil {
		return nil, rerr.New(rerr.MissingType, "monobehaviour: %s/%s: no prefilled blob and no live extractor configured", assembly, fullName)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.intern.Get(key); ok {
		return cached.(*unityfs.TypeTreeNode), nil
	}

	fields, err := c.extractor.Generate(assembly, fullName)
	if err != nil {
		return nil, rerr.Context(err, "monobehaviour: generating type tree for %s/%s", assembly, fullName)
	}
	// The header's own fields come first, followed by the script's;
	// unityfs.TypeTreeNode.PrependChildren prepends in the other
	// direction, so the splice is done directly here.
	tree := unityfs.StdMonoBehaviourHeaderType()
	if len(fields) > 0 {
		tree.Children = append(append([]*unityfs.TypeTreeNode{}, tree.Children...), fields...)
	}

	if firstSeen {
		c.statsMu.Lock()
		c.stats.ScriptTypesGenerated++
		c.statsMu.Unlock()
	}

	c.intern.Add(key, tree)
	return tree, nil
}

// Stats reports script-type resolution counts across the cache's
// lifetime.
type Stats struct {
	// ScriptTypesSeen counts every Generate call, including repeats.
	ScriptTypesSeen int
	// ScriptTypesGenerated counts distinct keys that required the live
	// extractor (always 0 in prefilled mode).
	ScriptTypesGenerated int
}

// Stats returns a snapshot of the cache's resolution statistics.
func (c *Cache) Stats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}
