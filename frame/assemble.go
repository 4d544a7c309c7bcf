// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package frame

import (
	"encoding/binary"

	"golang.org/x/xerrors"
)

// Assembler reassembles raw frame buffers of a fixed geometry into clean images.
// An Assembler holds no per-frame state and may be shared between goroutines.
type Assembler struct {
	geo Geometry
	put func(row []byte, line Line) // stores the pixels of a line
}

// NewAssembler returns an assembler for the provided geometry.
func NewAssembler(g Geometry) (*Assembler, error) {
	err := g.Validate()
	if err != nil {
		return nil, xerrors.Errorf("frame: could not create assembler: %w", err)
	}

	asm := &Assembler{geo: g}
	switch g.Depth {
	case Depth16:
		asm.put = put16
	case Depth32:
		asm.put = put32
	}
	return asm, nil
}

// Geometry returns the geometry the assembler was created with.
func (asm *Assembler) Geometry() Geometry { return asm.geo }

// Assemble zero-fills dst and copies every line of raw at its place in dst.
// dst must hold at least ImageSize bytes and raw exactly RawWords words.
func (asm *Assembler) Assemble(dst []byte, raw []uint16) error {
	var (
		size = asm.geo.ImageSize()
		n    = asm.geo.LineWords()
	)
	if len(dst) < size {
		return xerrors.Errorf(
			"frame: destination too small (got=%d bytes, want=%d): %w",
			len(dst), size, ErrGeometry,
		)
	}
	if want := asm.geo.RawWords(); len(raw) != want {
		return xerrors.Errorf(
			"frame: invalid raw buffer (got=%d words, want=%d): %w",
			len(raw), want, ErrGeometry,
		)
	}

	img := dst[:size]
	for i := range img {
		img[i] = 0
	}

	for i := 0; i < asm.geo.Lines(); i++ {
		line, err := Demux(raw[i*n:(i+1)*n], asm.geo)
		if err != nil {
			return xerrors.Errorf("frame: could not demux raw line %d: %w", i, err)
		}

		var (
			depth = int(asm.geo.Depth)
			beg   = line.Offset * depth
			end   = beg + asm.geo.Width()*depth
		)
		if end > len(img) {
			return xerrors.Errorf(
				"frame: raw line %d (module=%d, row=%d) out of image bounds: %w",
				i, line.Module, line.Row, ErrGeometry,
			)
		}
		asm.put(img[beg:end], line)
	}

	return nil
}

// Assemble reassembles the raw frame buffer into dst, according to the
// provided geometry.
func Assemble(dst []byte, raw []uint16, g Geometry) error {
	asm, err := NewAssembler(g)
	if err != nil {
		return err
	}
	return asm.Assemble(dst, raw)
}

func put16(row []byte, line Line) {
	for i, v := range line.Data {
		binary.LittleEndian.PutUint16(row[2*i:], v)
	}
}

func put32(row []byte, line Line) {
	n := len(row) / 4
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(row[4*i:], line.Pixel(i, Depth32))
	}
}
