// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package textui_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/unityrepack/scene-repacker/lib/fmtutil"
	"github.com/unityrepack/scene-repacker/lib/textui"
)

// pathID is a minimal stand-in for a path-id-shaped integer type that
// renders as hex for "%v" and plain decimal for "%d", exercising
// textui.Humanized/Portion against a Format-implementing type without
// pulling in a whole object model.
type pathID int64

func (p pathID) Format(f fmt.State, verb rune) {
	switch verb {
	case 'v', 's', 'q':
		fmt.Fprintf(f, fmtutil.FmtStateString(f, verb), fmt.Sprintf("%#016x", int64(p)))
	default:
		fmt.Fprintf(f, fmtutil.FmtStateString(f, verb), int64(p))
	}
}

func TestFprintf(t *testing.T) {
	t.Parallel()
	var out strings.Builder
	textui.Fprintf(&out, "%d", 12345)
	assert.Equal(t, "12,345", out.String())
}

func TestHumanized(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "12,345", fmt.Sprint(textui.Humanized(12345)))
	assert.Equal(t, "12,345  ", fmt.Sprintf("%-8d", textui.Humanized(12345)))

	id := pathID(345243543)
	assert.Equal(t, "0x000000001493ff97", fmt.Sprintf("%v", textui.Humanized(id)))
	assert.Equal(t, "345243543", fmt.Sprintf("%d", textui.Humanized(id)))
	assert.Equal(t, "345,243,543", fmt.Sprintf("%d", textui.Humanized(uint64(id))))
}

func TestPortion(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "100% (0/0)", fmt.Sprint(textui.Portion[int]{}))
	assert.Equal(t, "0% (1/12,345)", fmt.Sprint(textui.Portion[int]{N: 1, D: 12345}))
	assert.Equal(t, "100% (0/0)", fmt.Sprint(textui.Portion[pathID]{}))
	assert.Equal(t, "0% (1/12,345)", fmt.Sprint(textui.Portion[pathID]{N: 1, D: 12345}))
}
