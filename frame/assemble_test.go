// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/rand"
	"testing"
)

// genImage returns a clean image with random pixels in the regions of the
// active modules and zeros everywhere else.
func genImage(g Geometry, seed int64) []byte {
	var (
		rnd   = rand.New(rand.NewSource(seed))
		img   = make([]byte, g.ImageSize())
		w     = g.Width()
		depth = int(g.Depth)
	)
	for _, mod := range g.ModuleIDs() {
		beg := Offset(mod, 1, w) * depth
		end := beg + ModuleLines*w*depth
		rnd.Read(img[beg:end])
	}
	return img
}

func TestAssembleRoundTrip(t *testing.T) {
	for _, g := range []Geometry{
		{Chips: 7, Mask: 0xff, Depth: Depth16},
		{Chips: 7, Mask: 0xff, Depth: Depth32},
		{Chips: 1, Mask: 0x01, Depth: Depth16},
		{Chips: 3, Mask: 0x5a, Depth: Depth16},
		{Chips: 5, Mask: 0x81, Depth: Depth32},
	} {
		t.Run(g.String(), func(t *testing.T) {
			want := genImage(g, 1234)
			raw := make([]uint16, g.RawWords())
			err := Encode(raw, want, g)
			if err != nil {
				t.Fatalf("could not encode image: %+v", err)
			}

			got := make([]byte, g.ImageSize())
			err = Assemble(got, raw, g)
			if err != nil {
				t.Fatalf("could not assemble image: %+v", err)
			}

			if !bytes.Equal(got, want) {
				t.Fatalf("round-trip failed")
			}
		})
	}
}

func TestAssembleShuffled(t *testing.T) {
	g := Geometry{Chips: 2, Mask: 0x36, Depth: Depth32}
	want := genImage(g, 42)
	raw := make([]uint16, g.RawWords())
	err := Encode(raw, want, g)
	if err != nil {
		t.Fatalf("could not encode image: %+v", err)
	}

	// lines are routed by their header, whatever their position.
	var (
		n    = g.LineWords()
		rnd  = rand.New(rand.NewSource(42))
		shuf = make([]uint16, len(raw))
	)
	for i, j := range rnd.Perm(g.Lines()) {
		copy(shuf[i*n:(i+1)*n], raw[j*n:(j+1)*n])
	}

	got := make([]byte, g.ImageSize())
	err = Assemble(got, shuf, g)
	if err != nil {
		t.Fatalf("could not assemble image: %+v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("shuffled lines were not routed to their place")
	}
}

func TestAssembleZeroFill(t *testing.T) {
	g := Geometry{Chips: 7, Mask: 0x05, Depth: Depth16}
	raw := make([]uint16, g.RawWords())
	err := Encode(raw, genImage(g, 1), g)
	if err != nil {
		t.Fatalf("could not encode image: %+v", err)
	}

	img := make([]byte, g.ImageSize())
	for i := range img {
		img[i] = 0xff
	}

	asm, err := NewAssembler(g)
	if err != nil {
		t.Fatalf("could not create assembler: %+v", err)
	}
	if got, want := asm.Geometry(), g; got != want {
		t.Fatalf("invalid geometry: got=%v, want=%v", got, want)
	}

	for i := 0; i < 2; i++ {
		err = asm.Assemble(img, raw)
		if err != nil {
			t.Fatalf("could not assemble image (pass %d): %+v", i, err)
		}
	}

	var (
		w     = g.Width()
		depth = int(g.Depth)
	)
	for _, mod := range []int{2, 4, 5, 6, 7, 8} {
		beg := Offset(mod, 1, w) * depth
		end := beg + ModuleLines*w*depth
		for i, v := range img[beg:end] {
			if v != 0 {
				t.Fatalf("module %d: byte %d not zeroed: 0x%x", mod, i, v)
			}
		}
	}
}

func TestAssembleIdempotent(t *testing.T) {
	g := Geometry{Chips: 4, Mask: 0xff, Depth: Depth32}
	raw := make([]uint16, g.RawWords())
	err := Encode(raw, genImage(g, 2), g)
	if err != nil {
		t.Fatalf("could not encode image: %+v", err)
	}

	var (
		img1 = make([]byte, g.ImageSize())
		img2 = make([]byte, g.ImageSize())
	)
	err = Assemble(img1, raw, g)
	if err != nil {
		t.Fatalf("could not assemble image: %+v", err)
	}
	err = Assemble(img2, raw, g)
	if err != nil {
		t.Fatalf("could not assemble image: %+v", err)
	}
	if !bytes.Equal(img1, img2) {
		t.Fatalf("assembly is not idempotent")
	}
}

func TestAssemblePixelOrder(t *testing.T) {
	g := Geometry{Chips: 7, Mask: 0xff, Depth: Depth32}
	raw := make([]uint16, g.RawWords())

	// place a single line, module 3 line 45, as the last line of the buffer.
	n := g.LineWords()
	for i := 0; i < g.Lines(); i++ {
		line := raw[i*n : (i+1)*n]
		line[hdrModule] = 1
		line[hdrLine] = uint16(i%ModuleLines) + 1
	}
	line := raw[len(raw)-n:]
	line[hdrModule] = 3
	line[hdrLine] = 45
	line[HeaderWords+0] = 0x0001
	line[HeaderWords+1] = 0x8000

	img := make([]byte, g.ImageSize())
	err := Assemble(img, raw, g)
	if err != nil {
		t.Fatalf("could not assemble image: %+v", err)
	}

	off := 159040 * int(g.Depth)
	if got, want := binary.LittleEndian.Uint32(img[off:]), uint32(0x80000001); got != want {
		t.Fatalf("invalid pixel: got=0x%x, want=0x%x", got, want)
	}
}

func TestAssembleErrors(t *testing.T) {
	g := Geometry{Chips: 2, Mask: 0x03, Depth: Depth16}

	valid := func() []uint16 {
		raw := make([]uint16, g.RawWords())
		err := Encode(raw, genImage(g, 3), g)
		if err != nil {
			t.Fatalf("could not encode image: %+v", err)
		}
		return raw
	}

	for _, tc := range []struct {
		name string
		dst  []byte
		raw  func() []uint16
		want error
	}{
		{
			name: "small-dst",
			dst:  make([]byte, g.ImageSize()-1),
			raw:  valid,
			want: ErrGeometry,
		},
		{
			name: "short-raw",
			dst:  make([]byte, g.ImageSize()),
			raw:  func() []uint16 { return valid()[1:] },
			want: ErrGeometry,
		},
		{
			name: "long-raw",
			dst:  make([]byte, g.ImageSize()),
			raw:  func() []uint16 { return append(valid(), 0) },
			want: ErrGeometry,
		},
		{
			name: "bad-module",
			dst:  make([]byte, g.ImageSize()),
			raw: func() []uint16 {
				raw := valid()
				raw[g.LineWords()+hdrModule] = 0
				return raw
			},
			want: ErrDecode,
		},
		{
			name: "bad-line",
			dst:  make([]byte, g.ImageSize()),
			raw: func() []uint16 {
				raw := valid()
				raw[3*g.LineWords()+hdrLine] = 200
				return raw
			},
			want: ErrDecode,
		},
		{
			name: "inactive-module",
			dst:  make([]byte, g.ImageSize()),
			raw: func() []uint16 {
				raw := valid()
				raw[hdrModule] = 5
				return raw
			},
			want: ErrDecode,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := Assemble(tc.dst, tc.raw(), g)
			if !errors.Is(err, tc.want) {
				t.Fatalf("invalid error: got=%+v, want=%+v", err, tc.want)
			}
		})
	}

	_, err := NewAssembler(Geometry{})
	if !errors.Is(err, ErrGeometry) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, ErrGeometry)
	}
}

func TestAssembleInactiveModule(t *testing.T) {
	g := Geometry{Chips: 1, Mask: 0x01, Depth: Depth16}

	raw := make([]uint16, g.RawWords())
	err := Encode(raw, genImage(g, 42), g)
	if err != nil {
		t.Fatalf("could not encode image: %+v", err)
	}
	raw[hdrModule] = 5

	dst := make([]byte, g.ImageSize())
	err = Assemble(dst, raw, g)
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, ErrDecode)
	}

	var (
		depth = int(g.Depth)
		beg   = Offset(5, 1, g.Width()) * depth
		end   = beg + ModuleLines*g.Width()*depth
	)
	for i, v := range dst[beg:end] {
		if v != 0 {
			t.Fatalf("inactive module 5 region written at byte %d: 0x%x", beg+i, v)
		}
	}
}
