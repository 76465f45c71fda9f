// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Command scenerepack packs a subset of a Unity game's scenes and
// objects into a standalone asset bundle.
package main

import (
	"context"
	"os"

	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"
	"github.com/datawire/ocibuild/pkg/cliutil"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/unityrepack/scene-repacker/lib/env"
	"github.com/unityrepack/scene-repacker/lib/monobehaviour"
	"github.com/unityrepack/scene-repacker/lib/profile"
	"github.com/unityrepack/scene-repacker/lib/repack"
	"github.com/unityrepack/scene-repacker/lib/resolver"
	"github.com/unityrepack/scene-repacker/lib/textui"
)

type logLevelFlag struct {
	logrus.Level
}

func (lvl *logLevelFlag) Type() string { return "loglevel" }
func (lvl *logLevelFlag) Set(str string) error {
	var err error
	lvl.Level, err = logrus.ParseLevel(str)
	return err
}

var _ pflag.Value = (*logLevelFlag)(nil)

func main() {
	logLvl := logLevelFlag{Level: logrus.InfoLevel}
	var gameDirFlag string
	var configFlag string
	var outputFlag string
	var mbExportBlobFlag string

	argparser := &cobra.Command{
		Use:   "scenerepack --game-dir DIR --config repack.json -o OUTPUT",
		Short: "Pack a subset of a Unity game's scenes into a standalone asset bundle",

		Args: cliutil.WrapPositionalArgs(cobra.NoArgs),

		SilenceErrors: true, // main() will handle this after .ExecuteContext() returns
		SilenceUsage:  true, // our FlagErrorFunc will handle it

		CompletionOptions: cobra.CompletionOptions{ //nolint:exhaustivestruct
			DisableDefaultCmd: true,
		},
	}
	argparser.SetFlagErrorFunc(cliutil.FlagErrorFunc)
	argparser.SetHelpTemplate(cliutil.HelpTemplate)
	argparser.Flags().Var(&logLvl, "verbosity", "set the verbosity")
	argparser.Flags().StringVar(&gameDirFlag, "game-dir", "", "the Unity game's data directory, or its install directory (auto-detected via the `*_Data` subdirectory)")
	if err := argparser.MarkFlagRequired("game-dir"); err != nil {
		panic(err)
	}
	argparser.Flags().StringVar(&configFlag, "config", "", "the repack configuration `file`")
	if err := argparser.MarkFlagFilename("config"); err != nil {
		panic(err)
	}
	if err := argparser.MarkFlagRequired("config"); err != nil {
		panic(err)
	}
	argparser.Flags().StringVarP(&outputFlag, "output", "o", "", "write the repacked bundle to `file`")
	if err := argparser.MarkFlagFilename("output"); err != nil {
		panic(err)
	}
	if err := argparser.MarkFlagRequired("output"); err != nil {
		panic(err)
	}
	argparser.Flags().StringVar(&mbExportBlobFlag, "mb-export-blob", "", "decode an offline MonoBehaviour type-tree export from `file` instead of using a live extractor")
	if err := argparser.MarkFlagFilename("mb-export-blob"); err != nil {
		panic(err)
	}
	profileStop := profile.AddProfileFlags(argparser.Flags(), "")

	argparser.RunE = func(cmd *cobra.Command, _ []string) (err error) {
		ctx := cmd.Context()
		logger := logrus.New()
		logger.SetLevel(logLvl.Level)
		ctx = dlog.WithLogger(ctx, dlog.WrapLogrus(logger))

		grp := dgroup.NewGroup(ctx, dgroup.GroupConfig{
			EnableSignalHandling: true,
		})
		grp.Go("main", func(ctx context.Context) error {
			return run(ctx, gameDirFlag, configFlag, outputFlag, mbExportBlobFlag)
		})
		return grp.Wait()
	}

	err := argparser.ExecuteContext(context.Background())
	if stopErr := profileStop(); err == nil {
		err = stopErr
	}
	if err != nil {
		textui.Fprintf(os.Stderr, "%v: error: %v\n", argparser.CommandPath(), err)
		os.Exit(1)
	}
}

// run wires the resolver probe, environment cache, MonoBehaviour
// cache, and lib/repack orchestrator together for one invocation.
func run(ctx context.Context, gameDir, configPath, outputPath, mbExportBlobPath string) (err error) {
	maybeSetErr := func(_err error) {
		if _err != nil && err == nil {
			err = _err
		}
	}

	if guessed, guessErr := resolver.GuessGameDir(gameDir); guessErr == nil {
		dlog.Infof(ctx, "scenerepack: using detected data directory %q", guessed)
		gameDir = guessed
	}

	res, err := resolver.Probe(gameDir)
	if err != nil {
		return err
	}
	e := env.New(res)

	cfg, err := readJSONFile[repack.RepackConfig](ctx, configPath)
	if err != nil {
		return err
	}

	mbExportBlob := resolveMBExportBlob(mbExportBlobPath, cfg.MonoBehaviourExportBlob)
	mbCache, err := loadMonoBehaviourCache(mbExportBlob)
	if err != nil {
		return err
	}

	result, err := repack.Run(ctx, e, &cfg, mbCache)
	if err != nil {
		return err
	}

	dlog.Infof(ctx, "scenerepack: %d -> %d objects, %d -> %d bytes; %d script types seen, %d generated live",
		result.Stats.ObjectsBefore, result.Stats.ObjectsAfter,
		result.Stats.SizeBefore, result.Stats.SizeAfter,
		result.ScriptStats.ScriptTypesSeen, result.ScriptStats.ScriptTypesGenerated)

	out, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer func() {
		maybeSetErr(out.Close())
	}()

	switch {
	case result.AssetBundle != nil:
		_, err = result.AssetBundle.Write(out)
	case result.Bundle != nil:
		err = result.Bundle.Write(out)
	}
	return err
}

// resolveMBExportBlob resolves the effective export-blob path: an
// explicit flag wins, falling back to the value named in the config
// file itself.
func resolveMBExportBlob(flagVal, cfgVal string) string {
	if flagVal != "" {
		return flagVal
	}
	return cfgVal
}

// loadMonoBehaviourCache constructs a monobehaviour.Cache: prefilled
// from an offline export blob when one is configured, otherwise empty,
// since a live reflective extractor is a separate collaborator that
// scenerepack itself does not implement.
func loadMonoBehaviourCache(exportBlobPath string) (*monobehaviour.Cache, error) {
	if exportBlobPath == "" {
		return monobehaviour.NewPrefilled(nil), nil
	}
	data, err := os.ReadFile(exportBlobPath)
	if err != nil {
		return nil, err
	}
	blob, err := monobehaviour.DecodeExportBlob(data)
	if err != nil {
		return nil, err
	}
	return monobehaviour.NewPrefilled(blob), nil
}
