// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package xpad holds code to drive XPAD hybrid pixel detectors.
//
// The module is organized as follows:
//
//   - frame reassembles the raw line buffers delivered by the XPAD PCIe
//     board into images, and encodes images back into raw buffers;
//   - xpix binds the vendor SDK (with the xpix build tag) and provides an
//     in-memory simulator;
//   - camera drives acquisitions in the slow, fast and asynchronous modes
//     and publishes frames into a buffer manager;
//   - buffer holds the in-memory frame buffers frames are published into;
//   - conddb describes acquisition presets and the run log, stored in MySQL.
//
// Commands:
//
//   - xpad-daq runs one acquisition and stores its frames in an LCIO file;
//   - xpad-dump displays frames stored in LCIO files;
//   - xpad-svc serves control requests for a detector;
//   - xpad-ctl sends control requests to xpad-svc, or runs an interactive shell;
//   - xpad-tdaq drives a detector from a TDAQ run control;
//   - xpad-sql inspects the acquisition presets and the run log.
package xpad // import "github.com/go-lpc/xpad"

import (
	"fmt"
	"runtime/debug"
)

const modpath = "github.com/go-lpc/xpad"

// Version returns the version of xpad and its checksum.
// The returned values are only valid in binaries built with module support.
func Version() (version, sum string) {
	b, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	return versionOf(b)
}

func versionOf(b *debug.BuildInfo) (version, sum string) {
	if b == nil {
		return "", ""
	}

	// xpad commands are built with xpad as the main module.
	if b.Main.Path == modpath && b.Main.Version != "" {
		return b.Main.Version, b.Main.Sum
	}

	for _, m := range b.Deps {
		if m.Path == modpath {
			return moduleVersion(m)
		}
	}
	return "", ""
}

func moduleVersion(m *debug.Module) (version, sum string) {
	r := m.Replace
	switch {
	case r == nil:
		return m.Version, m.Sum
	case r.Version != "" && r.Path != "":
		return fmt.Sprintf("%s %s", r.Path, r.Version), r.Sum
	case r.Version != "":
		return r.Version, r.Sum
	case r.Path != "":
		return r.Path, r.Sum
	default:
		return m.Version + "*", ""
	}
}
