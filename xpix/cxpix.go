// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build xpix

package xpix

//#cgo CFLAGS: -g -Wall -D_GNU_SOURCE=1
//#cgo LDFLAGS: -lxpci_lib
//
//#include <stdlib.h>
//#include <stdint.h>
//#include "xpci_interface.h"
//
//static int xpad_mod_ready(unsigned *mask) {
//	return xpci_modAskReady(mask);
//}
//
//static int xpad_one_image(int depth, unsigned mask, unsigned chips,
//                          uint16_t *buf, int trig, unsigned exp,
//                          unsigned unit, unsigned timeout) {
//	return xpci_getOneImage(depth, mask, chips, buf, trig, exp, unit, timeout);
//}
//
//static int xpad_img_seq(int depth, unsigned mask, unsigned chips,
//                        int trig, unsigned exp, unsigned unit,
//                        unsigned n, void **bufs, unsigned timeout) {
//	return xpci_getImgSeq(depth, mask, chips, trig, exp, unit, n, bufs, timeout);
//}
//
//static int xpad_img_seq_async(int depth, unsigned mask, unsigned chips,
//                              int trig, unsigned exp, unsigned unit,
//                              unsigned n, void **bufs, unsigned timeout) {
//	return xpci_getImgSeqAs(depth, mask, chips, NULL, 10000, trig, exp, unit, n, bufs, timeout, NULL);
//}
import "C"

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/go-lpc/xpad/frame"
)

// Open opens the XPAD PCIe board through the vendor SDK.
func Open() (SDK, error) {
	return &cdevice{
		async: asyncCopier{
			running: func() bool { return C.xpci_asyncReadStatus() != 0 },
			got:     func() int { return int(C.xpci_getGotImages()) },
		},
	}, nil
}

// cdevice drives the XPAD PCIe board.
//
// The SDK writes exposures into C-allocated buffers. Asynchronous
// acquisitions are copied into the caller's raw buffers as Completed
// reports them.
type cdevice struct {
	async asyncCopier
}

var _ SDK = (*cdevice)(nil)

func (dev *cdevice) ModulesReady() (uint8, error) {
	var mask C.uint
	rc := C.xpad_mod_ready(&mask)
	if rc != 0 {
		return 0, fmt.Errorf("cxpix: could not ask modules ready (rc=%d)", rc)
	}
	return uint8(mask), nil
}

func (dev *cdevice) AcquireSingle(req Request, raw []uint16) error {
	err := req.validate(raw)
	if err != nil {
		return err
	}
	rc := C.xpad_one_image(
		cdepth(req.Depth), C.uint(req.Mask), C.uint(req.Chips),
		(*C.uint16_t)(unsafe.Pointer(&raw[0])),
		C.int(req.Trigger), C.uint(req.Exposure), C.uint(req.Unit),
		ctimeout(req.Timeout),
	)
	if rc != 0 {
		return fmt.Errorf("cxpix: xpci_getOneImage failed (rc=%d): %w", rc, ErrAcquire)
	}
	return nil
}

func (dev *cdevice) AcquireBatch(req Request, raws [][]uint16) error {
	err := req.validate(raws...)
	if err != nil {
		return err
	}
	bufs := newCBuffers(len(raws), req.Geometry())
	defer bufs.free()

	rc := C.xpad_img_seq(
		cdepth(req.Depth), C.uint(req.Mask), C.uint(req.Chips),
		C.int(req.Trigger), C.uint(req.Exposure), C.uint(req.Unit),
		C.uint(len(raws)), bufs.ptrs, ctimeout(req.Timeout),
	)
	if rc != 0 {
		return fmt.Errorf("cxpix: xpci_getImgSeq failed (rc=%d): %w", rc, ErrAcquire)
	}
	for i, raw := range raws {
		bufs.copy(raw, i)
	}
	return nil
}

func (dev *cdevice) AcquireBatchAsync(req Request, raws [][]uint16) error {
	err := req.validate(raws...)
	if err != nil {
		return err
	}

	return dev.async.start(raws, func() (staging, error) {
		bufs := newCBuffers(len(raws), req.Geometry())
		rc := C.xpad_img_seq_async(
			cdepth(req.Depth), C.uint(req.Mask), C.uint(req.Chips),
			C.int(req.Trigger), C.uint(req.Exposure), C.uint(req.Unit),
			C.uint(len(raws)), bufs.ptrs, ctimeout(req.Timeout),
		)
		if rc != 0 {
			bufs.free()
			return nil, fmt.Errorf("cxpix: xpci_getImgSeqAs failed (rc=%d): %w", rc, ErrAcquire)
		}
		return bufs, nil
	})
}

func (dev *cdevice) Completed() int { return dev.async.completed() }
func (dev *cdevice) Running() bool  { return dev.async.isRunning() }

// cbuffers is a C-allocated array of raw exposure buffers.
type cbuffers struct {
	n     int
	words int
	ptrs  *unsafe.Pointer
}

func newCBuffers(n int, g frame.Geometry) *cbuffers {
	bufs := &cbuffers{
		n:     n,
		words: g.RawWords(),
		ptrs:  (*unsafe.Pointer)(C.calloc(C.size_t(n), C.size_t(unsafe.Sizeof(uintptr(0))))),
	}
	ptrs := bufs.slice()
	for i := range ptrs {
		ptrs[i] = C.calloc(C.size_t(bufs.words), 2)
	}
	return bufs
}

func (bufs *cbuffers) slice() []unsafe.Pointer {
	return unsafe.Slice(bufs.ptrs, bufs.n)
}

func (bufs *cbuffers) copy(dst []uint16, i int) {
	src := unsafe.Slice((*uint16)(bufs.slice()[i]), bufs.words)
	copy(dst, src)
}

func (bufs *cbuffers) free() {
	for _, p := range bufs.slice() {
		C.free(p)
	}
	C.free(unsafe.Pointer(bufs.ptrs))
	bufs.ptrs = nil
}

func cdepth(d frame.Depth) C.int {
	switch d {
	case frame.Depth32:
		return C.B4
	default:
		return C.B2
	}
}

func ctimeout(d time.Duration) C.uint {
	return C.uint(d / time.Millisecond)
}
