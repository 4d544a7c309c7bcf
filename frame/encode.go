// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package frame

import (
	"encoding/binary"

	"golang.org/x/xerrors"
)

// Encoder lays out clean images as raw frame buffers, in the order the
// XPAD hardware delivers them.
type Encoder struct {
	geo  Geometry
	mods []int
}

// NewEncoder returns an encoder for the provided geometry.
func NewEncoder(g Geometry) (*Encoder, error) {
	err := g.Validate()
	if err != nil {
		return nil, xerrors.Errorf("frame: could not create encoder: %w", err)
	}
	return &Encoder{geo: g, mods: g.ModuleIDs()}, nil
}

// Encode fills raw with the lines of img belonging to the active modules.
// raw must hold exactly RawWords words.
func (enc *Encoder) Encode(raw []uint16, img []byte) error {
	var (
		g     = enc.geo
		n     = g.LineWords()
		w     = g.Width()
		depth = int(g.Depth)
	)
	if len(img) < g.ImageSize() {
		return xerrors.Errorf(
			"frame: source image too small (got=%d bytes, want=%d): %w",
			len(img), g.ImageSize(), ErrGeometry,
		)
	}
	if len(raw) != g.RawWords() {
		return xerrors.Errorf(
			"frame: invalid raw buffer (got=%d words, want=%d): %w",
			len(raw), g.RawWords(), ErrGeometry,
		)
	}

	i := 0
	for row := 1; row <= ModuleLines; row++ {
		for _, mod := range enc.mods {
			line := raw[i*n : (i+1)*n]
			for j := range line {
				line[j] = 0
			}
			line[hdrModule] = uint16(mod)
			line[hdrLine] = uint16(row)

			var (
				src = img[Offset(mod, row, w)*depth:]
				pix = line[HeaderWords : n-TrailerWords]
			)
			switch g.Depth {
			case Depth16:
				for k := 0; k < w; k++ {
					pix[k] = binary.LittleEndian.Uint16(src[2*k:])
				}
			case Depth32:
				for k := 0; k < w; k++ {
					v := binary.LittleEndian.Uint32(src[4*k:])
					pix[2*k+0] = uint16(v)
					pix[2*k+1] = uint16(v >> 16)
				}
			}
			i++
		}
	}

	return nil
}

// Encode lays out img as a raw frame buffer according to the provided geometry.
func Encode(raw []uint16, img []byte, g Geometry) error {
	enc, err := NewEncoder(g)
	if err != nil {
		return err
	}
	return enc.Encode(raw, img)
}
