// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package repack implements the output orchestrator: given a probed
// resolver/environment and a RepackConfig, it resolves scene names to
// level files via globalgamemanagers' BuildSettings, prunes each scene
// in parallel, resolves MonoBehaviour script types, and dispatches to
// one of lib/merge's three output modes, returning accumulated
// statistics.
package repack

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/unityrepack/scene-repacker/lib/rerr"
)

// OutputMode selects which of lib/merge's three output shapes an
// invocation produces.
type OutputMode string

const (
	ModeAssetBundle      OutputMode = "asset-bundle"
	ModeSceneBundle      OutputMode = "scene-bundle"
	ModeShallowAssetBundle OutputMode = "shallow-asset-bundle"
)

// CompressionMode names one of the bundle-level compression settings a
// config can select; only "none" is actually implemented (see
// lib/bundlefile.CompressionWriter).
type CompressionMode string

const (
	CompressionNone  CompressionMode = "none"
	CompressionLZ4HC CompressionMode = "lz4hc"
	CompressionLZMA  CompressionMode = "lzma"
)

// SceneSelection is one scene's entry in a RepackConfig's scene-object
// selection: the scene name (a Unity build-setting entry, stripped of
// extension) and the ordered list of "/"-separated hierarchy paths to
// retain from it.
//
// Selections are carried as an ordered slice rather than a map because
// the output's scene/container-table ordering must follow the user's
// input order; a plain Go map has no stable iteration order.
type SceneSelection struct {
	Name  string   `json:"name"`
	Paths []string `json:"paths"`
}

// ExtraObjectSelection is one entry in a RepackConfig's extra-object
// selection: an unqualified MonoBehaviour class name and the object
// names to retain for it even though they don't appear in the
// transform hierarchy (e.g. scriptable objects). Ordered for the same
// reason as SceneSelection.
type ExtraObjectSelection struct {
	Class   string   `json:"class"`
	Objects []string `json:"objects"`
}

// RepackConfig is the external input a repack invocation is driven by:
// a scene-object selection, an extra-object selection, and the output
// mode and compression to use. Decoded from JSON via
// git.lukeshu.com/go/lowmemjson.
type RepackConfig struct {
	BundleName  string          `json:"bundle_name"`
	Mode        OutputMode      `json:"mode"`
	Compression CompressionMode `json:"compression"`

	// Scenes is the scene-object selection, in the order scenes
	// should appear in the output.
	Scenes []SceneSelection `json:"scenes"`

	// ExtraObjects is the extra-object selection.
	ExtraObjects []ExtraObjectSelection `json:"extra_objects,omitempty"`

	DisableRoots bool `json:"disable_roots,omitempty"`

	// MonoBehaviourExportBlob optionally names a file holding an
	// offline export blob to decode into a prefilled
	// lib/monobehaviour.Cache. When empty, the caller is expected to
	// supply a live Cache instead.
	MonoBehaviourExportBlob string `json:"mb_export_blob,omitempty"`
}

// Validate checks the config for the obvious shape errors before a
// Run is attempted.
func (c *RepackConfig) Validate() error {
	if c.BundleName == "" {
		return rerr.New(rerr.Internal, "repack: config: bundle_name is required")
	}
	switch c.Mode {
	case ModeAssetBundle, ModeSceneBundle, ModeShallowAssetBundle:
	default:
		return rerr.New(rerr.Internal, "repack: config: unknown mode %q", c.Mode)
	}
	if len(c.Scenes) == 0 {
		return rerr.New(rerr.Internal, "repack: config: scenes selection is empty")
	}
	seen := make(map[string]bool, len(c.Scenes))
	for _, s := range c.Scenes {
		if s.Name == "" {
			return rerr.New(rerr.Internal, "repack: config: scene entry with empty name")
		}
		if seen[s.Name] {
			return rerr.New(rerr.Internal, "repack: config: duplicate scene %q", s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

// ScanDir builds a scene selection, in directory-listing order, from a
// directory of "*.txt" files, one per scene: the file's base name
// (minus ".txt") is the scene name, and each non-blank line not
// starting with "#" is a hierarchy path to retain. A common authoring convenience, analogous
// to how a *_Data directory's layout is inferred rather than
// hand-typed (lib/resolver.GuessGameDir).
func ScanDir(dir string) ([]SceneSelection, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, rerr.Wrap(rerr.IO, err, "repack: scanning %q", dir)
	}

	var out []SceneSelection
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".txt") {
			continue
		}
		sceneName := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		body, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, rerr.Wrap(rerr.IO, err, "repack: reading %q", entry.Name())
		}

		var paths []string
		for _, line := range strings.Split(string(body), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			paths = append(paths, line)
		}
		out = append(out, SceneSelection{Name: sceneName, Paths: paths})
	}

	return out, nil
}
