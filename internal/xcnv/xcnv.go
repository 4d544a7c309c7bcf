// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package xcnv provides tools to store XPAD frames in LCIO files and to
// read them back.
//
// Each frame is an LCIO event holding one generic object, XPAD_FRAME,
// whose 32-bit words are the little-endian clean image. The run header
// records the frame geometry.
package xcnv // import "github.com/go-lpc/xpad/internal/xcnv"

const (
	detector   = "XPAD"
	collection = "XPAD_FRAME"
)
