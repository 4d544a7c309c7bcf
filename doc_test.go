// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xpad

import (
	"runtime/debug"
	"testing"
)

func TestVersion(t *testing.T) {
	for _, tc := range []struct {
		name    string
		info    *debug.BuildInfo
		version string
		sum     string
	}{
		{
			name: "nil",
		},
		{
			name: "no-dep",
			info: &debug.BuildInfo{
				Deps: []*debug.Module{
					{Path: "go-hep.org/x/hep", Version: "v0.32.1", Sum: "h1:hep"},
				},
			},
		},
		{
			name: "dep",
			info: &debug.BuildInfo{
				Deps: []*debug.Module{
					{Path: "go-hep.org/x/hep", Version: "v0.32.1", Sum: "h1:hep"},
					{Path: "github.com/go-lpc/xpad", Version: "v0.2.0", Sum: "h1:xpad"},
				},
			},
			version: "v0.2.0",
			sum:     "h1:xpad",
		},
		{
			name: "main",
			info: &debug.BuildInfo{
				Main: debug.Module{Path: "github.com/go-lpc/xpad", Version: "v0.3.0", Sum: "h1:main"},
				Deps: []*debug.Module{
					{Path: "go-hep.org/x/hep", Version: "v0.32.1", Sum: "h1:hep"},
				},
			},
			version: "v0.3.0",
			sum:     "h1:main",
		},
		{
			name: "main-devel",
			info: &debug.BuildInfo{
				Main: debug.Module{Path: "github.com/go-lpc/xpad"},
			},
		},
		{
			name: "replace-version",
			info: &debug.BuildInfo{
				Deps: []*debug.Module{
					{
						Path: "github.com/go-lpc/xpad", Version: "v0.2.0", Sum: "h1:xpad",
						Replace: &debug.Module{Version: "v0.2.1", Sum: "h1:xpad-1"},
					},
				},
			},
			version: "v0.2.1",
			sum:     "h1:xpad-1",
		},
		{
			name: "replace-path-version",
			info: &debug.BuildInfo{
				Deps: []*debug.Module{
					{
						Path: "github.com/go-lpc/xpad", Version: "v0.2.0",
						Replace: &debug.Module{Path: "example.org/xpad", Version: "v0.3.0", Sum: "h1:fork"},
					},
				},
			},
			version: "example.org/xpad v0.3.0",
			sum:     "h1:fork",
		},
		{
			name: "replace-local",
			info: &debug.BuildInfo{
				Deps: []*debug.Module{
					{
						Path: "github.com/go-lpc/xpad", Version: "v0.2.0",
						Replace: &debug.Module{},
					},
				},
			},
			version: "v0.2.0*",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			version, sum := versionOf(tc.info)
			if version != tc.version {
				t.Fatalf("invalid version: got=%q, want=%q", version, tc.version)
			}
			if sum != tc.sum {
				t.Fatalf("invalid sum: got=%q, want=%q", sum, tc.sum)
			}
		})
	}
}
