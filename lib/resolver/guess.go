// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package resolver

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/unityrepack/scene-repacker/lib/rerr"
)

// GuessGameDir scans installDir for a "*_Data" subdirectory and
// returns it, the way a Unity player install is laid out next to its
// executable.
func GuessGameDir(installDir string) (string, error) {
	entries, err := os.ReadDir(installDir)
	if err != nil {
		return "", rerr.Wrap(rerr.IO, err, "resolver: reading %q", installDir)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), "_Data") {
			return filepath.Join(installDir, entry.Name()), nil
		}
	}
	return "", rerr.New(rerr.NotFound, "resolver: no *_Data directory found under %q; is this a unity game install?", installDir)
}
