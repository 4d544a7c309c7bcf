// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package frame

import (
	"golang.org/x/xerrors"
)

// Line is a demultiplexed raw line.
type Line struct {
	Module int      // 1-based module index
	Row    int      // 1-based line index within the module
	Offset int      // offset in pixels of the line in the clean image
	Data   []uint16 // pixel payload, without header nor trailer
}

// Pixel returns the i-th pixel of the line.
// 32-bit pixels are made of two consecutive words, low word first.
func (line Line) Pixel(i int, depth Depth) uint32 {
	switch depth {
	case Depth32:
		return uint32(line.Data[2*i]) | uint32(line.Data[2*i+1])<<16
	default:
		return uint32(line.Data[i])
	}
}

// Offset returns the offset in pixels, in a clean image of the given
// width, of the 1-based line row of the 1-based module.
func Offset(module, row, width int) int {
	return (ModuleLines*(module-1) + (row - 1)) * width
}

// Demux decodes the routing header of a raw line and locates its pixel
// payload. Lines from modules outside g.Mask are rejected.
// The returned Line.Data aliases the input line.
func Demux(line []uint16, g Geometry) (Line, error) {
	if n := g.LineWords(); len(line) != n {
		return Line{}, xerrors.Errorf(
			"frame: invalid raw line length (got=%d, want=%d): %w",
			len(line), n, ErrGeometry,
		)
	}

	var (
		mod = int(line[hdrModule])
		row = int(line[hdrLine])
	)
	if mod < 1 || mod > MaxModules {
		return Line{}, xerrors.Errorf(
			"frame: invalid module index %d (line=%d): %w", mod, row, ErrDecode,
		)
	}
	if (g.Mask>>(mod-1))&1 == 0 {
		return Line{}, xerrors.Errorf(
			"frame: line from inactive module %d (line=%d, mask=0x%02x): %w", mod, row, g.Mask, ErrDecode,
		)
	}
	if row < 1 || row > ModuleLines {
		return Line{}, xerrors.Errorf(
			"frame: invalid line index %d (module=%d): %w", row, mod, ErrDecode,
		)
	}

	return Line{
		Module: mod,
		Row:    row,
		Offset: Offset(mod, row, g.Width()),
		Data:   line[HeaderWords : len(line)-TrailerWords],
	}, nil
}
