// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package resolver abstracts over where a game's serialized files are
// read from: an unpacked install directory, or a single UnityFS bundle
// acting as a virtual filesystem.
package resolver

import (
	"path/filepath"
	"strconv"
	"strings"
)

// Resolver abstracts over a source of named, flat game files.
type Resolver interface {
	// ReadPath returns the full contents of the named file.
	ReadPath(name string) ([]byte, error)
	// AllFiles lists every file name the resolver can read.
	AllFiles() ([]string, error)
}

// SerializedFiles filters AllFiles down to the names recognised as
// serialized files: "levelN", "*.assets", and "globalgamemanagers".
func SerializedFiles(r Resolver) ([]string, error) {
	all, err := r.AllFiles()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, name := range all {
		base := filepath.Base(name)
		if isSerializedName(base) {
			out = append(out, name)
		}
	}
	return out, nil
}

func isSerializedName(base string) bool {
	if isLevelName(base) {
		return true
	}
	if base == "globalgamemanagers" {
		return true
	}
	return strings.EqualFold(filepath.Ext(base), ".assets")
}

func isLevelName(base string) bool {
	suffix := strings.TrimPrefix(base, "level")
	if suffix == base {
		return false
	}
	_, err := strconv.ParseUint(suffix, 10, 64)
	return err == nil
}

// LevelIndices returns the numeric suffixes of every "levelN" file
// AllFiles reports.
func LevelIndices(r Resolver) ([]int, error) {
	all, err := r.AllFiles()
	if err != nil {
		return nil, err
	}
	var out []int
	for _, name := range all {
		base := filepath.Base(name)
		suffix := strings.TrimPrefix(base, "level")
		if suffix == base {
			continue
		}
		n, err := strconv.Atoi(suffix)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}
