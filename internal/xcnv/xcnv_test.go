// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xcnv

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-lpc/xpad/frame"
)

func genFrame(g frame.Geometry, seed int) []byte {
	img := make([]byte, g.ImageSize())
	for i := range img {
		img[i] = byte(seed*31 + i*7)
	}
	return img
}

func TestRoundTrip(t *testing.T) {
	tmp := t.TempDir()

	for _, tc := range []struct {
		name   string
		geo    frame.Geometry
		frames int
	}{
		{
			name:   "full-b4",
			geo:    frame.Geometry{Chips: 7, Mask: 0xff, Depth: frame.Depth32},
			frames: 3,
		},
		{
			name:   "partial-b2",
			geo:    frame.Geometry{Chips: 2, Mask: 0x05, Depth: frame.Depth16},
			frames: 5,
		},
		{
			name:   "empty",
			geo:    frame.Geometry{Chips: 1, Mask: 0x01, Depth: frame.Depth16},
			frames: 0,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			const run = 42
			fname := filepath.Join(tmp, tc.name+".slcio")

			w, err := Create(fname, run, tc.geo, "xpad test run")
			if err != nil {
				t.Fatalf("could not create writer: %+v", err)
			}
			defer w.Close()

			for i := 0; i < tc.frames; i++ {
				err = w.WriteFrame(i, time.Duration(i)*time.Millisecond, genFrame(tc.geo, i))
				if err != nil {
					t.Fatalf("could not write frame %d: %+v", i, err)
				}
			}
			if got, want := w.Frames(), tc.frames; got != want {
				t.Fatalf("invalid number of written frames: got=%d, want=%d", got, want)
			}

			err = w.Close()
			if err != nil {
				t.Fatalf("could not close writer: %+v", err)
			}

			r, err := Open(fname)
			if err != nil {
				t.Fatalf("could not open reader: %+v", err)
			}
			defer r.Close()

			n := 0
			for r.Next() {
				if n == 0 {
					if got, want := r.Geometry(), tc.geo; got != want {
						t.Fatalf("invalid geometry:\ngot= %v\nwant=%v", got, want)
					}
				}
				f := r.Frame()
				if got, want := f.Run, int32(run); got != want {
					t.Fatalf("frame %d: invalid run number: got=%d, want=%d", n, got, want)
				}
				if got, want := f.Frame, n; got != want {
					t.Fatalf("invalid frame number: got=%d, want=%d", got, want)
				}
				if got, want := f.Time, time.Duration(n)*time.Millisecond; got != want {
					t.Fatalf("frame %d: invalid timestamp: got=%v, want=%v", n, got, want)
				}
				if got, want := f.Image, genFrame(tc.geo, n); !bytes.Equal(got, want) {
					t.Fatalf("frame %d: invalid image content", n)
				}
				n++
			}
			if err := r.Err(); err != nil {
				t.Fatalf("could not read frames: %+v", err)
			}
			if n != tc.frames {
				t.Fatalf("invalid number of read frames: got=%d, want=%d", n, tc.frames)
			}
		})
	}
}

func TestWriterErrors(t *testing.T) {
	tmp := t.TempDir()

	_, err := Create(filepath.Join(tmp, "bad.slcio"), 1, frame.Geometry{Chips: 9, Mask: 1, Depth: frame.Depth16}, "")
	if !errors.Is(err, frame.ErrGeometry) {
		t.Fatalf("invalid error: got=%+v, want=%v", err, frame.ErrGeometry)
	}

	g := frame.Geometry{Chips: 1, Mask: 1, Depth: frame.Depth16}
	w, err := Create(filepath.Join(tmp, "short.slcio"), 1, g, "")
	if err != nil {
		t.Fatalf("could not create writer: %+v", err)
	}
	defer w.Close()

	err = w.WriteFrame(0, 0, make([]byte, g.ImageSize()-1))
	if !errors.Is(err, frame.ErrGeometry) {
		t.Fatalf("invalid error: got=%+v, want=%v", err, frame.ErrGeometry)
	}
	if got := w.Frames(); got != 0 {
		t.Fatalf("invalid number of written frames: got=%d, want=0", got)
	}
}
