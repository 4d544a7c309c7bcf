// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-lpc/xpad/frame"
	"github.com/go-lpc/xpad/internal/xcnv"
	"github.com/go-lpc/xpad/xpix"
)

func init() {
	log.SetOutput(io.Discard)
}

func TestRun(t *testing.T) {
	for _, tc := range []struct {
		name   string
		cfg    string
		mask   uint8
		geo    frame.Geometry
		frames int
	}{
		{
			name:   "slow-b2",
			cfg:    "mode: slow-b2\nframes: 3\nexposure: 1ms\nchips: 2\n",
			mask:   0xff,
			geo:    frame.Geometry{Chips: 2, Mask: 0xff, Depth: frame.Depth16},
			frames: 3,
		},
		{
			name:   "fast-b2",
			cfg:    "mode: fast-b2\ndepth: 16\nframes: 4\nexposure: 1ms\nchips: 1\n",
			mask:   0x05,
			geo:    frame.Geometry{Chips: 1, Mask: 0x05, Depth: frame.Depth16},
			frames: 4,
		},
		{
			name:   "fast-async",
			cfg:    "mode: fast-async\ndepth: 32\nframes: 5\nexposure: 1ms\nchips: 1\nmodules: 3\npollInterval: 1ms\n",
			mask:   0xff,
			geo:    frame.Geometry{Chips: 1, Mask: 0x03, Depth: frame.Depth32},
			frames: 5,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tmp := t.TempDir()
			fname := filepath.Join(tmp, "settings.yaml")
			err := os.WriteFile(fname, []byte(tc.cfg), 0644)
			if err != nil {
				t.Fatalf("could not write settings: %+v", err)
			}

			opts := options{
				cfg:     fname,
				odir:    tmp,
				run:     42,
				slots:   2,
				sim:     true,
				simMask: tc.mask,
			}
			err = run(opts, make(chan os.Signal, 1))
			if err != nil {
				t.Fatalf("could not run acquisition: %+v", err)
			}

			r, err := xcnv.Open(filepath.Join(tmp, "xpad_run_000042.slcio"))
			if err != nil {
				t.Fatalf("could not open output file: %+v", err)
			}
			defer r.Close()

			n := 0
			for r.Next() {
				if got, want := r.Geometry(), tc.geo; got != want {
					t.Fatalf("invalid geometry:\ngot= %v\nwant=%v", got, want)
				}
				f := r.Frame()
				if got, want := f.Frame, n; got != want {
					t.Fatalf("invalid frame number: got=%d, want=%d", got, want)
				}
				if !bytes.Equal(f.Image, xpix.SimImage(n, tc.geo)) {
					t.Fatalf("frame %d: invalid image content", n)
				}
				n++
			}
			if err := r.Err(); err != nil {
				t.Fatalf("could not read output file: %+v", err)
			}
			if n != tc.frames {
				t.Fatalf("invalid number of frames: got=%d, want=%d", n, tc.frames)
			}
		})
	}
}

func TestRunStop(t *testing.T) {
	tmp := t.TempDir()
	fname := filepath.Join(tmp, "settings.yaml")
	err := os.WriteFile(fname, []byte("mode: slow-b2\nchips: 1\nexposure: 1ms\ncontinuous: true\n"), 0644)
	if err != nil {
		t.Fatalf("could not write settings: %+v", err)
	}

	stop := make(chan os.Signal, 1)
	go func() {
		time.Sleep(50 * time.Millisecond)
		stop <- os.Interrupt
	}()

	err = run(options{cfg: fname, odir: tmp, run: 7, slots: 4, sim: true, simMask: 0x01}, stop)
	if err != nil {
		t.Fatalf("could not run acquisition: %+v", err)
	}

	r, err := xcnv.Open(filepath.Join(tmp, "xpad_run_000007.slcio"))
	if err != nil {
		t.Fatalf("could not open output file: %+v", err)
	}
	defer r.Close()

	n := 0
	for r.Next() {
		n++
	}
	if err := r.Err(); err != nil {
		t.Fatalf("could not read output file: %+v", err)
	}
	if n == 0 {
		t.Fatalf("no frame written before stop")
	}
}

func TestRunErrors(t *testing.T) {
	tmp := t.TempDir()

	for _, tc := range []struct {
		name string
		opts options
	}{
		{
			name: "no-driver",
			opts: options{odir: tmp, run: 1, slots: 1},
		},
		{
			name: "preset-without-db",
			opts: options{odir: tmp, run: 1, slots: 1, sim: true, simMask: 1, preset: "calib"},
		},
		{
			name: "missing-settings",
			opts: options{odir: tmp, run: 1, slots: 1, sim: true, simMask: 1, cfg: filepath.Join(tmp, "missing.yaml")},
		},
		{
			name: "no-slots",
			opts: options{odir: tmp, run: 1, slots: 0, sim: true, simMask: 1},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if tc.name == "no-driver" && xpixHardware {
				t.Skip("hardware driver available")
			}
			err := run(tc.opts, make(chan os.Signal, 1))
			if err == nil {
				t.Fatalf("expected an error")
			}
		})
	}
}
