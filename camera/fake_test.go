// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package camera

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-lpc/xpad/frame"
	"github.com/go-lpc/xpad/xpix"
)

// fakeBuffers is an in-memory buffer manager recording publications.
type fakeBuffers struct {
	mu     sync.Mutex
	start  time.Time
	dsts   map[int][]byte
	frames []int    // published frames, in publication order
	imgs   [][]byte // published images, in publication order

	size      int
	onPublish func(n int)
}

func newFakeBuffers() *fakeBuffers {
	return &fakeBuffers{
		dsts: make(map[int][]byte),
		size: frame.MaxImageSize,
	}
}

func (bm *fakeBuffers) SetImageSize(n int) error {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	bm.size = n
	return nil
}

func (bm *fakeBuffers) StartTimestamp(t time.Time) {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	bm.start = t
}

func (bm *fakeBuffers) Destination(n int) ([]byte, error) {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	dst := make([]byte, bm.size)
	for i := range dst {
		dst[i] = 0xff
	}
	bm.dsts[n] = dst
	return dst, nil
}

func (bm *fakeBuffers) Publish(n int) error {
	bm.mu.Lock()
	dst, ok := bm.dsts[n]
	if !ok {
		bm.mu.Unlock()
		return fmt.Errorf("frame %d not reserved", n)
	}
	delete(bm.dsts, n)
	bm.frames = append(bm.frames, n)
	bm.imgs = append(bm.imgs, dst)
	hook := bm.onPublish
	bm.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return nil
}

func (bm *fakeBuffers) published() []int {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	return append([]int(nil), bm.frames...)
}

// scriptedSDK emulates an asynchronous acquisition whose progress follows
// a predefined sequence of completed-frame counts, one per poll.
// The SDK stops running once the last count is reached.
type scriptedSDK struct {
	mu     sync.Mutex
	steps  []int
	p      int
	cur    int
	starts int
}

func newScriptedSDK(steps ...int) *scriptedSDK {
	return &scriptedSDK{steps: steps}
}

var _ xpix.SDK = (*scriptedSDK)(nil)

func (sdk *scriptedSDK) ModulesReady() (uint8, error) { return 0xff, nil }

func (sdk *scriptedSDK) AcquireSingle(req xpix.Request, raw []uint16) error {
	return fmt.Errorf("not implemented")
}

func (sdk *scriptedSDK) AcquireBatch(req xpix.Request, raws [][]uint16) error {
	return fmt.Errorf("not implemented")
}

func (sdk *scriptedSDK) AcquireBatchAsync(req xpix.Request, raws [][]uint16) error {
	sdk.mu.Lock()
	defer sdk.mu.Unlock()
	sdk.starts++

	g := req.Geometry()
	for i, raw := range raws {
		err := frame.Encode(raw, xpix.SimImage(i, g), g)
		if err != nil {
			return err
		}
	}
	return nil
}

func (sdk *scriptedSDK) Running() bool {
	sdk.mu.Lock()
	defer sdk.mu.Unlock()

	last := len(sdk.steps) - 1
	sdk.cur = sdk.steps[sdk.p]
	running := sdk.p < last
	if running {
		sdk.p++
	}
	return running
}

func (sdk *scriptedSDK) Completed() int {
	sdk.mu.Lock()
	defer sdk.mu.Unlock()
	return sdk.cur
}

func (sdk *scriptedSDK) stopped() bool {
	sdk.mu.Lock()
	defer sdk.mu.Unlock()
	return sdk.p == len(sdk.steps)-1
}
