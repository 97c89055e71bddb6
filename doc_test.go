// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package harp

import (
	"runtime/debug"
	"testing"
)

func TestVersionOf(t *testing.T) {
	const root = "github.com/go-lpc/harp"
	for _, tc := range []struct {
		name string
		bi   *debug.BuildInfo
		vers string
		sum  string
	}{
		{
			name: "nil",
		},
		{
			name: "main",
			bi: &debug.BuildInfo{
				Main: debug.Module{Path: root, Version: "(devel)"},
			},
			vers: "(devel)",
		},
		{
			name: "dep",
			bi: &debug.BuildInfo{
				Main: debug.Module{Path: "example.org/daq"},
				Deps: []*debug.Module{
					{Path: "golang.org/x/sync", Version: "v0.1.0"},
					{Path: root, Version: "v0.3.0", Sum: "h1:xyz"},
				},
			},
			vers: "v0.3.0",
			sum:  "h1:xyz",
		},
		{
			name: "replace-path-version",
			bi: &debug.BuildInfo{
				Deps: []*debug.Module{
					{
						Path: root, Version: "v0.3.0",
						Replace: &debug.Module{Path: "example.org/harp", Version: "v0.3.1", Sum: "h1:abc"},
					},
				},
			},
			vers: "example.org/harp v0.3.1",
			sum:  "h1:abc",
		},
		{
			name: "replace-local",
			bi: &debug.BuildInfo{
				Deps: []*debug.Module{
					{Path: root, Version: "v0.3.0", Replace: &debug.Module{}},
				},
			},
			vers: "v0.3.0*",
		},
		{
			name: "missing",
			bi: &debug.BuildInfo{
				Deps: []*debug.Module{
					{Path: "golang.org/x/sync", Version: "v0.1.0"},
				},
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			vers, sum := versionOf(tc.bi)
			if vers != tc.vers {
				t.Fatalf("invalid version: got=%q, want=%q", vers, tc.vers)
			}
			if sum != tc.sum {
				t.Fatalf("invalid sum: got=%q, want=%q", sum, tc.sum)
			}
		})
	}
}
