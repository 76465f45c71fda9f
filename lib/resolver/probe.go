// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package resolver

import (
	"os"
	"path/filepath"

	"github.com/unityrepack/scene-repacker/lib/bundlefile"
	"github.com/unityrepack/scene-repacker/lib/rerr"
)

// bundleFileName is the fixed name of the single-container packed
// layout's bundle file.
const bundleFileName = "data.unity3d"

// Probe inspects gameDir and returns the appropriate Resolver: an
// unpacked resolver reading files directly from disk, or a packed
// resolver backed by data.unity3d.
func Probe(gameDir string) (Resolver, error) {
	info, err := os.Stat(gameDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, rerr.New(rerr.Probe, "resolver: probe: game directory %q does not exist", gameDir)
		}
		return nil, rerr.Wrap(rerr.IO, err, "resolver: probe: stat %q", gameDir)
	}
	if !info.IsDir() {
		return nil, rerr.New(rerr.Probe, "resolver: probe: %q is not a directory", gameDir)
	}

	bundlePath := filepath.Join(gameDir, bundleFileName)
	if _, err := os.Stat(bundlePath); err == nil {
		return newPackedResolver(gameDir, bundlePath)
	} else if !os.IsNotExist(err) {
		return nil, rerr.Wrap(rerr.IO, err, "resolver: probe: stat %q", bundlePath)
	}

	return &UnpackedResolver{baseDir: gameDir}, nil
}

// UnpackedResolver reads files directly from an on-disk Unity data
// directory (the "unpacked" layout).
type UnpackedResolver struct {
	baseDir string
}

var _ Resolver = (*UnpackedResolver)(nil)

// BaseDir returns the directory this resolver reads from.
func (r *UnpackedResolver) BaseDir() string { return r.baseDir }

func (r *UnpackedResolver) ReadPath(name string) ([]byte, error) {
	full := filepath.Join(r.baseDir, filepath.FromSlash(name))
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, rerr.New(rerr.NotFound, "resolver: %q not found under %q", name, r.baseDir)
		}
		return nil, rerr.Wrap(rerr.IO, err, "resolver: reading %q", full)
	}
	return data, nil
}

func (r *UnpackedResolver) AllFiles() ([]string, error) {
	var out []string
	err := filepath.WalkDir(r.baseDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(r.baseDir, path)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, rerr.Wrap(rerr.IO, err, "resolver: listing %q", r.baseDir)
	}
	return out, nil
}

// PackedResolver reads files out of a single data.unity3d UnityFS
// container (the "packed" layout). A path under Library/ is first
// looked for on disk under Resources/<suffix>, mirroring the engine's
// streamed-resource fallback, before falling back to the container
// itself.
type PackedResolver struct {
	baseDir string
	bundle  *bundlefile.Reader
}

var _ Resolver = (*PackedResolver)(nil)

func newPackedResolver(baseDir, bundlePath string) (*PackedResolver, error) {
	data, err := os.ReadFile(bundlePath)
	if err != nil {
		return nil, rerr.Wrap(rerr.IO, err, "resolver: reading bundle %q", bundlePath)
	}
	bf, err := bundlefile.Parse(data)
	if err != nil {
		return nil, rerr.Wrap(rerr.InvalidBundle, err, "resolver: parsing bundle %q", bundlePath)
	}
	return &PackedResolver{baseDir: baseDir, bundle: bf}, nil
}

const libraryPrefix = "Library/"
const resourcesPrefix = "Resources/"

func (r *PackedResolver) ReadPath(name string) ([]byte, error) {
	if rest, ok := stripPrefix(name, libraryPrefix); ok {
		onDisk := filepath.Join(r.baseDir, resourcesPrefix, filepath.FromSlash(rest))
		if data, err := os.ReadFile(onDisk); err == nil {
			return data, nil
		} else if !os.IsNotExist(err) {
			return nil, rerr.Wrap(rerr.IO, err, "resolver: reading %q", onDisk)
		}
	}

	data, ok := r.bundle.ReadAt(name)
	if !ok {
		return nil, rerr.New(rerr.NotFound, "resolver: %q not found in bundle %q", name, bundleFileName)
	}
	return data, nil
}

func (r *PackedResolver) AllFiles() ([]string, error) {
	names := r.bundle.Names()
	out := make([]string, len(names))
	copy(out, names)
	return out, nil
}

func stripPrefix(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || s[:len(prefix)] != prefix {
		return "", false
	}
	return s[len(prefix):], true
}
