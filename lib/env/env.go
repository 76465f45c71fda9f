// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package env implements the environment / file cache: a
// single-writer, many-reader cache amortising the parse of files
// loaded via externals, so a scene referencing the same external file
// twice only pays the parse cost once.
package env

import (
	"sync"

	"github.com/unityrepack/scene-repacker/lib/containers"
	"github.com/unityrepack/scene-repacker/lib/resolver"
	"github.com/unityrepack/scene-repacker/lib/rerr"
	"github.com/unityrepack/scene-repacker/lib/unityfs"
)

// fileEntry boxes a parsed file and its backing bytes for address
// stability: once inserted, an *fileEntry is never replaced, only read
// concurrently.
type fileEntry struct {
	file    *unityfs.SerializedFile
	backing []byte
}

// Handle is a borrowing view onto a cached file, valid for the
// lifetime of the Env it came from.
type Handle struct {
	Path string
	File *unityfs.SerializedFile
}

// Env is the environment / file cache. The zero Env is not usable;
// construct with New.
type Env struct {
	res   resolver.Resolver
	cache containers.SyncMap[string, *fileEntry]

	versionOnce sync.Once
	version     unityfs.UnityVersion
	versionErr  error
}

// New constructs an Env reading game files through res.
func New(res resolver.Resolver) *Env {
	return &Env{res: res}
}

// LoadLeaf performs a fresh, uncached parse of path.
func (e *Env) LoadLeaf(path string) (*unityfs.SerializedFile, []byte, error) {
	data, err := e.res.ReadPath(path)
	if err != nil {
		return nil, nil, rerr.Context(err, "env: loading %q", path)
	}
	sf, err := unityfs.ParseSerializedFile(data)
	if err != nil {
		return nil, nil, rerr.Context(err, "env: parsing %q", path)
	}
	return sf, data, nil
}

// LoadCached parses path at most once for the life of e, and returns a
// Handle borrowing the cached result thereafter.
func (e *Env) LoadCached(path string) (Handle, error) {
	if entry, ok := e.cache.Load(path); ok {
		return Handle{Path: path, File: entry.file}, nil
	}
	sf, data, err := e.LoadLeaf(path)
	if err != nil {
		return Handle{}, err
	}
	entry := &fileEntry{file: sf, backing: data}
	actual, _ := e.cache.LoadOrStore(path, entry)
	return Handle{Path: path, File: actual.file}, nil
}

// DerefRead resolves pptr relative to containingFile (the path the
// pointer was read from) and returns the raw object bytes, following
// an external FileIdentifier through the cache when pptr is non-local.
func (e *Env) DerefRead(pptr unityfs.PPtr, containingFile string, containing *unityfs.SerializedFile) ([]byte, *unityfs.SerializedFile, error) {
	if pptr.IsLocal() {
		obj, ok := containing.FindObject(pptr.PathID)
		if !ok {
			return nil, nil, rerr.New(rerr.MissingObject, "env: path_id %d not found in %q", pptr.PathID, containingFile)
		}
		return containing.ObjectBytes(obj), containing, nil
	}

	idx := int(pptr.FileID) - 1
	if idx < 0 || idx >= len(containing.Externals) {
		return nil, nil, rerr.New(rerr.MissingObject, "env: file_id %d out of range for externals of %q", pptr.FileID, containingFile)
	}
	extPath := containing.Externals[idx].PathName

	h, err := e.LoadCached(extPath)
	if err != nil {
		return nil, nil, rerr.Context(err, "env: dereferencing external %q from %q", extPath, containingFile)
	}
	obj, ok := h.File.FindObject(pptr.PathID)
	if !ok {
		return nil, nil, rerr.New(rerr.MissingObject, "env: path_id %d not found in external %q", pptr.PathID, extPath)
	}
	return h.File.ObjectBytes(obj), h.File, nil
}

// unityVersionFile is the fixed well-known file the global Unity
// version is read from.
const unityVersionFile = "globalgamemanagers"

// UnityVersion lazily loads globalgamemanagers and memoises the
// result under a sync.Once.
func (e *Env) UnityVersion() (unityfs.UnityVersion, error) {
	e.versionOnce.Do(func() {
		h, err := e.LoadCached(unityVersionFile)
		if err != nil {
			e.versionErr = rerr.Context(err, "env: reading unity version")
			return
		}
		e.version = h.File.UnityVersion
	})
	return e.version, e.versionErr
}

// Resolver returns the underlying Resolver, for callers (lib/repack)
// that need to enumerate or read files outside the cache's purview.
func (e *Env) Resolver() resolver.Resolver { return e.res }
