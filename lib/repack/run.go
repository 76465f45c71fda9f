// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package repack

import (
	"context"
	"encoding/binary"

	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"

	"github.com/unityrepack/scene-repacker/lib/builder"
	"github.com/unityrepack/scene-repacker/lib/bundlefile"
	"github.com/unityrepack/scene-repacker/lib/env"
	"github.com/unityrepack/scene-repacker/lib/merge"
	"github.com/unityrepack/scene-repacker/lib/monobehaviour"
	"github.com/unityrepack/scene-repacker/lib/prune"
	"github.com/unityrepack/scene-repacker/lib/rerr"
	"github.com/unityrepack/scene-repacker/lib/scenelookup"
	"github.com/unityrepack/scene-repacker/lib/typetree"
	"github.com/unityrepack/scene-repacker/lib/unityfs"
)

// Result is Run's return value: the assembled output, in whichever of
// the two shapes cfg.Mode produced, plus accumulated statistics.
type Result struct {
	Stats       merge.Stats
	ScriptStats monobehaviour.Stats

	// AssetBundle is set for ModeAssetBundle and ModeShallowAssetBundle.
	AssetBundle *builder.Builder
	// Bundle is set for ModeSceneBundle.
	Bundle *bundlefile.Builder
}

// prepareScene loads a scene's level file, builds its hierarchy index,
// prunes it against the configured selection, resolves its surviving
// MonoBehaviours' script types, and resolves any extra-object
// selection matching this scene.
func prepareScene(ctx context.Context, e *env.Env, mbCache *monobehaviour.Cache, cfg *RepackConfig, sel SceneSelection, levelFile string) (*merge.Scene, error) {
	h, err := e.LoadCached(levelFile)
	if err != nil {
		return nil, rerr.Context(err, "repack: loading scene %q", sel.Name)
	}
	sf := h.File

	ord, err := typetree.ByteOrderFor(sf.Header)
	if err != nil {
		return nil, err
	}

	idx, err := scenelookup.Build(ctx, sf)
	if err != nil {
		return nil, rerr.Context(err, "repack: indexing scene %q", sel.Name)
	}

	extraSeeds, err := resolveExtraSeeds(e, sel.Name, levelFile, sf, ord, cfg.ExtraObjects)
	if err != nil {
		return nil, err
	}

	pruned, err := prune.Prune(ctx, sel.Name, idx, prune.Options{
		RetainPaths:  sel.Paths,
		ExtraSeeds:   extraSeeds,
		DisableRoots: cfg.DisableRoots,
	})
	if err != nil {
		return nil, rerr.Context(err, "repack: pruning scene %q", sel.Name)
	}

	mbTypes, err := resolveMBTypes(e, mbCache, sel.Name, levelFile, sf, ord, pruned.Reachable)
	if err != nil {
		return nil, err
	}

	return &merge.Scene{
		Name:         sel.Name,
		FilePath:     levelFile,
		File:         sf,
		Reachable:    pruned.Reachable,
		Replacements: pruned.Replacements,
		Retained:     pruned.Retained,
		MBTypes:      mbTypes,
	}, nil
}

// resolveMBTypes resolves a type tree, via mbCache, for every
// surviving MonoBehaviour in a scene: it follows the header's m_Script
// pointer to the MonoScript, generates the tree for that script's
// assembly and class name, and returns the trees keyed by path-id.
// MonoBehaviours with a null m_Script are left out of the map.
func resolveMBTypes(e *env.Env, mbCache *monobehaviour.Cache, sceneName, levelFile string, sf *unityfs.SerializedFile, ord binary.ByteOrder, reachable map[int64]bool) (map[int64]*unityfs.TypeTreeNode, error) {
	headerTree := unityfs.StdMonoBehaviourHeaderType()
	scriptTree := unityfs.StdMonoScriptType()

	out := make(map[int64]*unityfs.TypeTreeNode)
	for _, info := range sf.Objects {
		if info.ClassID != unityfs.ClassMonoBehaviour || !reachable[info.PathID] {
			continue
		}
		header, err := typetree.Decode(headerTree, sf.ObjectBytes(info), ord)
		if err != nil {
			return nil, rerr.Context(err, "repack: decoding MonoBehaviour header %d in %s", info.PathID, sceneName)
		}
		scriptPtr := typetree.MonoBehaviourScript(header)
		if scriptPtr.IsNull() {
			continue
		}
		scriptBytes, _, err := e.DerefRead(scriptPtr, levelFile, sf)
		if err != nil {
			return nil, rerr.Context(err, "repack: resolving script for MonoBehaviour %d in %s", info.PathID, sceneName)
		}
		scriptVal, err := typetree.Decode(scriptTree, scriptBytes, ord)
		if err != nil {
			return nil, rerr.Context(err, "repack: decoding MonoScript for MonoBehaviour %d in %s", info.PathID, sceneName)
		}

		assembly := typetree.MonoScriptAssemblyName(scriptVal)
		fullName := typetree.MonoScriptClassName(scriptVal)
		if ns := typetree.MonoScriptNamespace(scriptVal); ns != "" {
			fullName = ns + "." + fullName
		}

		tree, err := mbCache.Generate(assembly, fullName)
		if err != nil {
			return nil, rerr.Context(err, "repack: resolving script type for MonoBehaviour %d in %s", info.PathID, sceneName)
		}
		out[info.PathID] = tree
	}
	return out, nil
}

// Run executes one repack invocation end-to-end: resolving configured
// scene names to level files via
// globalgamemanagers' BuildSettings, preparing every scene in
// parallel, then dispatching the prepared scenes to the mode
// cfg.Mode selects. Scene preparation (index build, prune,
// MonoBehaviour resolution) is independent across scenes and runs
// concurrently via a dgroup.Group, the way lib/merge's per-object
// rewrite stage fans out across scenes once planning is done.
func Run(ctx context.Context, e *env.Env, cfg *RepackConfig, mbCache *monobehaviour.Cache) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	levelFiles, err := sceneLevelFiles(e)
	if err != nil {
		return nil, err
	}

	unityVersion, err := e.UnityVersion()
	if err != nil {
		return nil, err
	}

	scenes := make([]*merge.Scene, len(cfg.Scenes))
	grp := dgroup.NewGroup(ctx, dgroup.GroupConfig{})
	for i, sel := range cfg.Scenes {
		i, sel := i, sel
		levelFile, ok := levelFiles[sel.Name]
		if !ok {
			return nil, rerr.New(rerr.LookupMiss, "repack: no scene named %q in BuildSettings", sel.Name)
		}
		grp.Go(sel.Name, func(ctx context.Context) error {
			scene, err := prepareScene(ctx, e, mbCache, cfg, sel, levelFile)
			if err != nil {
				return err
			}
			scenes[i] = scene
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	for _, s := range scenes {
		dlog.Infof(ctx, "repack: %s: %d objects retained under %d configured roots", s.Name, len(s.Reachable), len(s.Retained))
	}

	result := &Result{ScriptStats: mbCache.Stats()}
	ord := binary.LittleEndian

	switch cfg.Mode {
	case ModeAssetBundle:
		b, stats, err := merge.MergeAssetBundle(ctx, unityVersion.String(), cfg.BundleName, scenes, ord)
		if err != nil {
			return nil, err
		}
		result.AssetBundle = b
		result.Stats = *stats

	case ModeShallowAssetBundle:
		b, stats, err := merge.BuildShallowAssetBundle(unityVersion.String(), cfg.BundleName, scenes, ord)
		if err != nil {
			return nil, err
		}
		result.AssetBundle = b
		result.Stats = *stats

	case ModeSceneBundle:
		comp, err := compressionWriter(cfg.Compression)
		if err != nil {
			return nil, err
		}
		bb := bundlefile.NewBuilder(unityVersion.String(), "", comp)
		stats, err := merge.BuildSceneBundle(bb, cfg.BundleName, unityVersion.String(), scenes, ord)
		if err != nil {
			return nil, err
		}
		result.Bundle = bb
		result.Stats = *stats

	default:
		return nil, rerr.New(rerr.Internal, "repack: unknown mode %q", cfg.Mode)
	}

	return result, nil
}

// compressionWriter resolves a CompressionMode to the
// bundlefile.CompressionWriter it names.
func compressionWriter(mode CompressionMode) (bundlefile.CompressionWriter, error) {
	switch mode {
	case "", CompressionNone:
		return bundlefile.NoneWriter(), nil
	case CompressionLZ4HC:
		return bundlefile.LZ4HCWriter()
	case CompressionLZMA:
		return bundlefile.LZMAWriter()
	default:
		return nil, rerr.New(rerr.Internal, "repack: unknown compression %q", mode)
	}
}
