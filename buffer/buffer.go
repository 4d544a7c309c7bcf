// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package buffer holds clean images handed out to the acquisition
// controller and notifies consumers when frames are published.
package buffer // import "github.com/go-lpc/xpad/buffer"

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-lpc/xpad/frame"
	"github.com/go-lpc/xpad/internal/mmap"
)

var (
	// ErrNotReserved is returned when publishing a frame whose slot
	// was not requested with Destination.
	ErrNotReserved = errors.New("buffer: frame not reserved")

	// ErrClosed is returned when using a closed ring.
	ErrClosed = errors.New("buffer: closed")
)

// Info describes a published frame.
type Info struct {
	Frame int           // zero-based sequence number of the frame
	Slot  int           // ring slot holding the image
	Time  time.Duration // publication time, relative to the start timestamp
	Size  int           // size in bytes of the image
}

// Callback is invoked for each published frame, from the publishing
// goroutine. img is only valid until the callback returns.
type Callback func(info Info, img []byte)

// Ring is a fixed number of image slots. Frame n is written into
// slot n % len(slots).
type Ring struct {
	mu    sync.Mutex
	data  []byte
	shm   *mmap.Handle
	slots []slot
	size  int // size in bytes of one image

	start time.Time
	last  int // last published frame, -1 if none
	npub  int // number of published frames
	cbs   []Callback
}

type slot struct {
	frame int // frame held by the slot, -1 if none
	busy  bool
	img   []byte
}

// NewRing returns a ring of n slots, each able to hold the largest
// XPAD image.
func NewRing(n int) (*Ring, error) {
	if n <= 0 {
		return nil, fmt.Errorf("buffer: invalid number of slots %d", n)
	}
	return newRing(make([]byte, n*frame.MaxImageSize), n), nil
}

// NewShm returns a ring of n slots backed by the named shared-memory
// file (typically under /dev/shm). Slot i lives at offset
// i*frame.MaxImageSize of the file.
func NewShm(fname string, n int) (*Ring, error) {
	if n <= 0 {
		return nil, fmt.Errorf("buffer: invalid number of slots %d", n)
	}
	h, err := mmap.Create(fname, n*frame.MaxImageSize)
	if err != nil {
		return nil, fmt.Errorf("buffer: could not create shared ring: %w", err)
	}
	data, err := h.Slice(0, h.Len())
	if err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("buffer: could not access shared ring: %w", err)
	}
	ring := newRing(data, n)
	ring.shm = h
	return ring, nil
}

func newRing(data []byte, n int) *Ring {
	ring := &Ring{
		data:  data,
		slots: make([]slot, n),
		size:  frame.MaxImageSize,
		start: time.Now(),
		last:  -1,
	}
	for i := range ring.slots {
		beg := i * frame.MaxImageSize
		ring.slots[i] = slot{
			frame: -1,
			img:   data[beg : beg+frame.MaxImageSize : beg+frame.MaxImageSize],
		}
	}
	return ring
}

// Close releases the ring memory.
func (ring *Ring) Close() error {
	ring.mu.Lock()
	defer ring.mu.Unlock()

	ring.slots = nil
	ring.data = nil
	if ring.shm == nil {
		return nil
	}
	err := ring.shm.Close()
	ring.shm = nil
	if err != nil {
		return fmt.Errorf("buffer: could not close shared ring: %w", err)
	}
	return nil
}

// Len returns the number of slots of the ring.
func (ring *Ring) Len() int {
	ring.mu.Lock()
	defer ring.mu.Unlock()
	return len(ring.slots)
}

// SetImageSize sets the size in bytes of the images handed out by
// Destination.
func (ring *Ring) SetImageSize(size int) error {
	if size <= 0 || size > frame.MaxImageSize {
		return fmt.Errorf(
			"buffer: invalid image size %d (max=%d): %w",
			size, frame.MaxImageSize, frame.ErrGeometry,
		)
	}
	ring.mu.Lock()
	defer ring.mu.Unlock()
	ring.size = size
	return nil
}

// OnFrame registers a callback invoked for each published frame.
func (ring *Ring) OnFrame(cb Callback) {
	ring.mu.Lock()
	defer ring.mu.Unlock()
	ring.cbs = append(ring.cbs, cb)
}

// StartTimestamp sets the reference time of the following publications
// and forgets previously published frames.
func (ring *Ring) StartTimestamp(t time.Time) {
	ring.mu.Lock()
	defer ring.mu.Unlock()
	ring.start = t
	ring.last = -1
	ring.npub = 0
	for i := range ring.slots {
		ring.slots[i].frame = -1
		ring.slots[i].busy = false
	}
}

// Destination returns the image where frame n is to be assembled.
func (ring *Ring) Destination(n int) ([]byte, error) {
	ring.mu.Lock()
	defer ring.mu.Unlock()

	if ring.slots == nil {
		return nil, ErrClosed
	}
	if n < 0 {
		return nil, fmt.Errorf("buffer: invalid frame number %d", n)
	}
	i := n % len(ring.slots)
	s := &ring.slots[i]
	s.frame = n
	s.busy = true
	return s.img[:ring.size], nil
}

// Publish marks frame n as complete and notifies the registered callbacks.
func (ring *Ring) Publish(n int) error {
	ring.mu.Lock()
	if ring.slots == nil {
		ring.mu.Unlock()
		return ErrClosed
	}
	if n < 0 {
		ring.mu.Unlock()
		return fmt.Errorf("buffer: invalid frame number %d", n)
	}
	i := n % len(ring.slots)
	s := &ring.slots[i]
	if !s.busy || s.frame != n {
		ring.mu.Unlock()
		return fmt.Errorf("buffer: could not publish frame %d: %w", n, ErrNotReserved)
	}
	s.busy = false
	ring.last = n
	ring.npub++

	var (
		info = Info{
			Frame: n,
			Slot:  i,
			Time:  time.Since(ring.start),
			Size:  ring.size,
		}
		img = s.img[:ring.size]
		cbs = ring.cbs
	)
	ring.mu.Unlock()

	for _, cb := range cbs {
		cb(info, img)
	}
	return nil
}

// Last returns the last published frame, or -1 if none.
func (ring *Ring) Last() int {
	ring.mu.Lock()
	defer ring.mu.Unlock()
	return ring.last
}

// Published returns the number of frames published since the last
// start timestamp.
func (ring *Ring) Published() int {
	ring.mu.Lock()
	defer ring.mu.Unlock()
	return ring.npub
}

// Frame returns a copy of the image of frame n, if the ring still holds it.
func (ring *Ring) Frame(n int) ([]byte, bool) {
	ring.mu.Lock()
	defer ring.mu.Unlock()

	if ring.slots == nil || n < 0 {
		return nil, false
	}
	s := &ring.slots[n%len(ring.slots)]
	if s.frame != n || s.busy {
		return nil, false
	}
	img := make([]byte, ring.size)
	copy(img, s.img)
	return img, true
}
