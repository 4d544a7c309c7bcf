// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xcnv

import (
	"compress/flate"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/go-lpc/xpad/frame"
	"go-hep.org/x/hep/lcio"
)

// Writer writes XPAD frames to an LCIO file.
type Writer struct {
	mu  sync.Mutex
	w   *lcio.Writer
	run int32
	geo frame.Geometry
	raw *lcio.GenericObject
	n   int // number of written frames
}

// Create creates the named LCIO file and writes the run header.
func Create(fname string, run int32, g frame.Geometry, descr string) (*Writer, error) {
	err := g.Validate()
	if err != nil {
		return nil, fmt.Errorf("xcnv: invalid geometry: %w", err)
	}

	w, err := lcio.Create(fname)
	if err != nil {
		return nil, fmt.Errorf("xcnv: could not create LCIO file %q: %w", fname, err)
	}
	w.SetCompressionLevel(flate.BestSpeed)

	err = w.WriteRunHeader(&lcio.RunHeader{
		RunNumber: run,
		Detector:  detector,
		Descr:     descr,
		Params: lcio.Params{
			Ints: map[string][]int32{
				"Chips":  {int32(g.Chips)},
				"Mask":   {int32(g.Mask)},
				"Depth":  {int32(g.Depth)},
				"Width":  {int32(g.Width())},
				"Height": {int32(g.Height())},
			},
		},
	})
	if err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("xcnv: could not write run header: %w", err)
	}

	return &Writer{
		w:   w,
		run: run,
		geo: g,
		raw: &lcio.GenericObject{
			Data: []lcio.GenericObjectData{
				{I32s: nil},
			},
		},
	}, nil
}

// WriteFrame writes the clean image of frame n, published at t relative
// to the start of the acquisition.
func (w *Writer) WriteFrame(n int, t time.Duration, img []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	size := w.geo.ImageSize()
	if len(img) < size {
		return fmt.Errorf(
			"xcnv: frame %d too small (got=%d bytes, want=%d): %w",
			n, len(img), size, frame.ErrGeometry,
		)
	}

	evt := lcio.Event{
		RunNumber:   w.run,
		EventNumber: int32(n),
		TimeStamp:   int64(t),
		Detector:    detector,
	}
	w.raw.Data[0].I32s = i32sFrom(w.raw.Data[0].I32s, img[:size])
	evt.Add(collection, w.raw)

	err := w.w.WriteEvent(&evt)
	if err != nil {
		return fmt.Errorf("xcnv: could not write frame %d: %w", n, err)
	}
	w.n++
	return nil
}

// Frames returns the number of frames written so far.
func (w *Writer) Frames() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}

// Close flushes and closes the LCIO file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.w == nil {
		return nil
	}
	err := w.w.Close()
	w.w = nil
	if err != nil {
		return fmt.Errorf("xcnv: could not close LCIO file: %w", err)
	}
	return nil
}

// i32sFrom packs img into little-endian 32-bit words, reusing dst.
// Clean images always span an even number of rows, so their size is a
// multiple of 4 bytes.
func i32sFrom(dst []int32, img []byte) []int32 {
	n := len(img) / 4
	if cap(dst) < n {
		dst = make([]int32, n)
	}
	dst = dst[:n]
	for i := range dst {
		dst[i] = int32(binary.LittleEndian.Uint32(img[4*i:]))
	}
	return dst
}
