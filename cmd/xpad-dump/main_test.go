// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-lpc/xpad/frame"
	"github.com/go-lpc/xpad/internal/xcnv"
	"github.com/go-lpc/xpad/xpix"
)

func TestDump(t *testing.T) {
	var (
		tmp   = t.TempDir()
		fname = filepath.Join(tmp, "xpad.slcio")
		geo   = frame.Geometry{Chips: 1, Mask: 0x06, Depth: frame.Depth16}
	)

	w, err := xcnv.Create(fname, 42, geo, "")
	if err != nil {
		t.Fatalf("could not create LCIO file: %+v", err)
	}
	defer w.Close()

	for i := 0; i < 3; i++ {
		err = w.WriteFrame(i, time.Duration(i+1)*time.Millisecond, xpix.SimImage(i, geo))
		if err != nil {
			t.Fatalf("could not write frame %d: %+v", i, err)
		}
	}
	err = w.Close()
	if err != nil {
		t.Fatalf("could not close LCIO file: %+v", err)
	}

	out := new(strings.Builder)
	err = process(out, fname, 2)
	if err != nil {
		t.Fatalf("could not dump file: %+v", err)
	}

	want := []string{
		"=== run 42 ===",
		geo.String(),
		"--- frame 0 (t=1ms) ---",
		fmt.Sprintf("  module=2 %s", fmtStats(moduleStats(xpix.SimImage(0, geo), geo, 2))),
		fmt.Sprintf("  module=3 %s", fmtStats(moduleStats(xpix.SimImage(0, geo), geo, 3))),
		"--- frame 1 (t=2ms) ---",
		fmt.Sprintf("  module=2 %s", fmtStats(moduleStats(xpix.SimImage(1, geo), geo, 2))),
		fmt.Sprintf("  module=3 %s", fmtStats(moduleStats(xpix.SimImage(1, geo), geo, 3))),
		"",
	}
	if got, want := out.String(), strings.Join(want, "\n"); got != want {
		t.Fatalf("invalid dump:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func fmtStats(st stats) string {
	return fmt.Sprintf("min=% 10d max=% 10d mean=% 10.1f", st.min, st.max, st.mean)
}

func TestModuleStats(t *testing.T) {
	geo := frame.Geometry{Chips: 1, Mask: 0x01, Depth: frame.Depth32}
	img := make([]byte, geo.ImageSize())

	// module 1 holds 1, 2, 3 and zeros.
	for i, v := range []byte{1, 2, 3} {
		img[4*i] = v
	}
	// module 2 is left empty.

	st := moduleStats(img, geo, 1)
	if st.min != 0 || st.max != 3 {
		t.Fatalf("invalid module-1 stats: %+v", st)
	}
	if got, want := st.mean, 6.0/float64(frame.ModuleLines*geo.Width()); got != want {
		t.Fatalf("invalid module-1 mean: got=%v, want=%v", got, want)
	}

	st = moduleStats(img, geo, 2)
	if st != (stats{}) {
		t.Fatalf("invalid module-2 stats: %+v", st)
	}
}
