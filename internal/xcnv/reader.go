// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xcnv

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-lpc/xpad/frame"
	"go-hep.org/x/hep/lcio"
)

// Frame is a frame read back from an LCIO file.
type Frame struct {
	Run   int32
	Frame int
	Time  time.Duration
	Image []byte
}

// Reader reads XPAD frames from an LCIO file.
type Reader struct {
	r   *lcio.Reader
	geo frame.Geometry
	hdr bool
	cur Frame
	err error
}

// Open opens the named LCIO file.
func Open(fname string) (*Reader, error) {
	r, err := lcio.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("xcnv: could not open LCIO file %q: %w", fname, err)
	}
	return &Reader{r: r}, nil
}

// Close closes the underlying LCIO file.
func (r *Reader) Close() error {
	return r.r.Close()
}

// Geometry returns the frame geometry recorded in the run header.
// It is only valid after a first call to Next.
func (r *Reader) Geometry() frame.Geometry { return r.geo }

// Next loads the next frame. It returns false at the end of the file or
// on error; use Err to tell them apart.
func (r *Reader) Next() bool {
	if r.err != nil {
		return false
	}
	if !r.r.Next() {
		return false
	}

	if !r.hdr {
		r.hdr = true
		r.geo, r.err = geometryFrom(r.r.RunHeader())
		if r.err != nil {
			return false
		}
	}

	evt := r.r.Event()
	obj, ok := evt.Get(collection).(*lcio.GenericObject)
	if !ok || len(obj.Data) == 0 {
		r.err = fmt.Errorf("xcnv: event %d has no %s collection", evt.EventNumber, collection)
		return false
	}

	raw := obj.Data[0].I32s
	img := make([]byte, 4*len(raw))
	for i, v := range raw {
		binary.LittleEndian.PutUint32(img[4*i:], uint32(v))
	}
	if want := r.geo.ImageSize(); len(img) != want {
		r.err = fmt.Errorf(
			"xcnv: event %d: invalid image size (got=%d, want=%d): %w",
			evt.EventNumber, len(img), want, frame.ErrGeometry,
		)
		return false
	}

	r.cur = Frame{
		Run:   evt.RunNumber,
		Frame: int(evt.EventNumber),
		Time:  time.Duration(evt.TimeStamp),
		Image: img,
	}
	return true
}

// Frame returns the current frame.
func (r *Reader) Frame() Frame { return r.cur }

// Err returns the first error encountered while reading.
func (r *Reader) Err() error {
	if r.err != nil {
		return r.err
	}
	err := r.r.Err()
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("xcnv: could not read LCIO file: %w", err)
	}
	return nil
}

func geometryFrom(hdr lcio.RunHeader) (frame.Geometry, error) {
	get := func(name string) (int32, error) {
		vs, ok := hdr.Params.Ints[name]
		if !ok || len(vs) != 1 {
			return 0, fmt.Errorf("xcnv: run header has no %q parameter", name)
		}
		return vs[0], nil
	}

	var (
		g   frame.Geometry
		err error
		v   int32
	)
	if v, err = get("Chips"); err != nil {
		return g, err
	}
	g.Chips = int(v)
	if v, err = get("Mask"); err != nil {
		return g, err
	}
	g.Mask = uint8(v)
	if v, err = get("Depth"); err != nil {
		return g, err
	}
	g.Depth = frame.Depth(v)

	err = g.Validate()
	if err != nil {
		return g, fmt.Errorf("xcnv: invalid run header geometry: %w", err)
	}
	return g, nil
}
