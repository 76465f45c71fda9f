// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package unityfs

import (
	"fmt"
	"strconv"
	"strings"
)

// UnityVersion is a parsed Unity engine version, e.g. "2019.4.21f1" or
// "5.6.0p4". It selects which type-tree records apply for the stock
// classes.
type UnityVersion struct {
	Major, Minor, Patch int
	// ReleaseType is one of 'f' (final), 'p' (patch), 'b' (beta),
	// 'a' (alpha), 'x' (experimental), or 0 if absent.
	ReleaseType byte
	Build       int
}

// ParseUnityVersion parses a version string of the form
// "MAJOR.MINOR.PATCH[TYPEBUILD]", e.g. "2021.3.16f1".
func ParseUnityVersion(s string) (UnityVersion, error) {
	var v UnityVersion
	parts := strings.SplitN(s, ".", 3)
	if len(parts) < 2 {
		return v, fmt.Errorf("unityfs: malformed unity version %q", s)
	}
	var err error
	if v.Major, err = strconv.Atoi(parts[0]); err != nil {
		return v, fmt.Errorf("unityfs: malformed unity version %q: %w", s, err)
	}
	if v.Minor, err = strconv.Atoi(parts[1]); err != nil {
		return v, fmt.Errorf("unityfs: malformed unity version %q: %w", s, err)
	}
	if len(parts) == 3 {
		rest := parts[2]
		i := 0
		for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
			i++
		}
		if i > 0 {
			if v.Patch, err = strconv.Atoi(rest[:i]); err != nil {
				return v, fmt.Errorf("unityfs: malformed unity version %q: %w", s, err)
			}
		}
		rest = rest[i:]
		if len(rest) > 0 {
			v.ReleaseType = rest[0]
			rest = rest[1:]
			if len(rest) > 0 {
				if v.Build, err = strconv.Atoi(rest); err != nil {
					// Trailing garbage after the build number is tolerated.
					v.Build = 0
				}
			}
		}
	}
	return v, nil
}

func (v UnityVersion) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.ReleaseType != 0 {
		s += string(v.ReleaseType) + strconv.Itoa(v.Build)
	}
	return s
}

// Cmp orders two versions by (Major, Minor, Patch, Build); ReleaseType
// does not affect ordering.
func (v UnityVersion) Cmp(o UnityVersion) int {
	switch {
	case v.Major != o.Major:
		return cmpInt(v.Major, o.Major)
	case v.Minor != o.Minor:
		return cmpInt(v.Minor, o.Minor)
	case v.Patch != o.Patch:
		return cmpInt(v.Patch, o.Patch)
	default:
		return cmpInt(v.Build, o.Build)
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
