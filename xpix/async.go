// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xpix

import (
	"fmt"
	"sync"
)

// staging holds the driver-owned buffers an asynchronous acquisition
// writes its exposures into.
type staging interface {
	copy(dst []uint16, i int) // copies exposure i into dst
	free()
}

// asyncCopier copies exposures of an asynchronous acquisition from the
// driver buffers into the caller's raw buffers, and frees the driver
// buffers as soon as the driver reports the acquisition has ended.
type asyncCopier struct {
	running func() bool // whether the driver still acquires
	got     func() int  // number of exposures written by the driver

	mu   sync.Mutex
	bufs staging
	raws [][]uint16
	done int
}

// start launches a new acquisition into raws.
func (a *asyncCopier) start(raws [][]uint16, launch func() (staging, error)) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.bufs != nil {
		if a.running() {
			return fmt.Errorf("xpix: async acquisition already running: %w", ErrAcquire)
		}
		a.release()
	}

	bufs, err := launch()
	if err != nil {
		return err
	}
	a.bufs = bufs
	a.raws = raws
	a.done = 0
	return nil
}

// completed returns the number of exposures copied into the raw buffers.
func (a *asyncCopier) completed() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.bufs == nil {
		return a.done
	}
	running := a.running()
	a.collect()
	if !running {
		a.release()
	}
	return a.done
}

// isRunning reports whether the driver still acquires. Once it stopped,
// all remaining exposures are copied and the driver buffers freed.
func (a *asyncCopier) isRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	running := a.running()
	if !running && a.bufs != nil {
		a.collect()
		a.release()
	}
	return running
}

func (a *asyncCopier) collect() {
	n := a.got()
	if n > len(a.raws) {
		n = len(a.raws)
	}
	for i := a.done; i < n; i++ {
		a.bufs.copy(a.raws[i], i)
	}
	if n > a.done {
		a.done = n
	}
}

func (a *asyncCopier) release() {
	a.bufs.free()
	a.bufs = nil
	a.raws = nil
}
