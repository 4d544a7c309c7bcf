// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package frame reassembles XPAD raw buffers into row-major images.
//
// The XPAD SDK delivers one exposure as a sequence of lines, each line
// carrying a small header with its module and in-module line indices.
// Lines come out line-major: line 1 of every answering module, then
// line 2 of every answering module, and so on.
//
//	raw (SDK) buffer          clean image
//	----------------          -----------
//	line   1  mod 1           line   1  mod 1
//	line   1  mod 2           line   2  mod 1
//	...                       ...
//	line   1  mod N           line 120  mod 1
//	line   2  mod 1           line   1  mod 2
//	...                       ...
//	line 120  mod N           line 120  mod 8
//
// The clean image always spans the full 8-module footprint; regions of
// modules that did not answer are zero.
package frame // import "github.com/go-lpc/xpad/frame"

import (
	"errors"
	"fmt"
	"math/bits"

	"golang.org/x/xerrors"
)

const (
	ModuleLines = 120 // number of lines per module
	MaxModules  = 8   // number of modules of a full detector
	ChipWidth   = 80  // number of pixel columns per chip
	MaxChips    = 7   // number of chips per module

	HeaderWords  = 5 // number of 16-bit words before the pixel data of a line
	TrailerWords = 1 // number of 16-bit words after the pixel data of a line
	ControlWords = HeaderWords + TrailerWords

	// Height is the height in pixels of a clean image.
	Height = ModuleLines * MaxModules

	// MaxImageSize is the size in bytes of the largest clean image.
	MaxImageSize = ChipWidth * MaxChips * Height * 4
)

const (
	hdrModule = 1 // header word holding the 1-based module index
	hdrLine   = 4 // header word holding the 1-based in-module line index
)

var (
	// ErrDecode is returned when a raw line carries invalid routing metadata.
	ErrDecode = errors.New("frame: invalid line header")

	// ErrGeometry is returned when raw data or a destination image does not
	// match the detector geometry.
	ErrGeometry = errors.New("frame: geometry mismatch")
)

// Depth is the size in bytes of one pixel.
type Depth uint8

const (
	Depth16 Depth = 2 // 16-bit pixels
	Depth32 Depth = 4 // 32-bit pixels
)

func (d Depth) String() string {
	switch d {
	case Depth16:
		return "16-bit"
	case Depth32:
		return "32-bit"
	default:
		return fmt.Sprintf("Depth(%d)", uint8(d))
	}
}

// Bits returns the number of bits per pixel.
func (d Depth) Bits() int { return 8 * int(d) }

// words returns the number of 16-bit SDK words per pixel.
func (d Depth) words() int { return int(d) / 2 }

// Geometry describes the detector layout for one acquisition.
type Geometry struct {
	Chips int   // number of chips per module, in [1, MaxChips]
	Mask  uint8 // active-module mask: bit i set when module i+1 answered
	Depth Depth // pixel depth
}

// Validate checks the geometry is usable for an acquisition.
func (g Geometry) Validate() error {
	switch {
	case g.Chips < 1 || g.Chips > MaxChips:
		return xerrors.Errorf("frame: invalid number of chips %d (want [1, %d]): %w", g.Chips, MaxChips, ErrGeometry)
	case g.Mask == 0:
		return xerrors.Errorf("frame: empty module mask: %w", ErrGeometry)
	}
	switch g.Depth {
	case Depth16, Depth32:
	default:
		return xerrors.Errorf("frame: invalid pixel depth %d: %w", g.Depth, ErrGeometry)
	}
	return nil
}

// Modules returns the number of modules that answered.
func (g Geometry) Modules() int { return bits.OnesCount8(g.Mask) }

// Width returns the width in pixels of a clean image.
func (g Geometry) Width() int { return ChipWidth * g.Chips }

// Height returns the height in pixels of a clean image.
func (g Geometry) Height() int { return Height }

// Pixels returns the number of pixels of a clean image.
func (g Geometry) Pixels() int { return g.Width() * Height }

// ImageSize returns the size in bytes of a clean image.
func (g Geometry) ImageSize() int { return g.Pixels() * int(g.Depth) }

// LineWords returns the number of 16-bit words of one raw line,
// control words included.
func (g Geometry) LineWords() int { return ControlWords + g.Width()*g.Depth.words() }

// Lines returns the number of raw lines delivered per exposure.
func (g Geometry) Lines() int { return ModuleLines * g.Modules() }

// RawWords returns the number of 16-bit words of one raw frame buffer.
func (g Geometry) RawWords() int { return g.LineWords() * g.Lines() }

// RawSize returns the size in bytes of one raw frame buffer.
func (g Geometry) RawSize() int { return 2 * g.RawWords() }

// ModuleIDs returns the 1-based indices of the modules that answered,
// in increasing order.
func (g Geometry) ModuleIDs() []int {
	ids := make([]int, 0, g.Modules())
	for i := 0; i < MaxModules; i++ {
		if (g.Mask>>i)&1 == 1 {
			ids = append(ids, i+1)
		}
	}
	return ids
}

func (g Geometry) String() string {
	return fmt.Sprintf(
		"Geometry{chips=%d, mask=0x%02x, modules=%d, depth=%v, image=%dx%d}",
		g.Chips, g.Mask, g.Modules(), g.Depth, g.Width(), Height,
	)
}
