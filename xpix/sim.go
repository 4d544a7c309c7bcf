// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xpix

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-lpc/xpad/frame"
)

// Sim is a simulated XPAD detector.
//
// Exposure n (counted from zero since the creation of the simulator)
// is the image returned by SimImage(n, geometry).
type Sim struct {
	mask  uint8
	delay time.Duration // readout time of one exposure
	seed  int64         // line shuffling seed, 0 for hardware order

	failSingle int // index of the single acquisition to fail, -1 for none
	failBatch  bool
	abortAfter int // number of async exposures before the SDK stops, -1 for none

	mu    sync.Mutex
	shots int // number of exposures acquired so far
	calls int // number of AcquireSingle calls

	done    atomic.Int32
	running atomic.Bool
	wg      sync.WaitGroup
}

// SimOption configures a simulated detector.
type SimOption func(sim *Sim)

// WithSimMask sets the mask of the answering modules.
func WithSimMask(mask uint8) SimOption {
	return func(sim *Sim) {
		sim.mask = mask
	}
}

// WithSimDelay sets the readout time of one exposure.
func WithSimDelay(d time.Duration) SimOption {
	return func(sim *Sim) {
		sim.delay = d
	}
}

// WithSimShuffle delivers raw lines in a random order drawn from seed,
// instead of the hardware line-major order.
func WithSimShuffle(seed int64) SimOption {
	return func(sim *Sim) {
		sim.seed = seed
	}
}

// WithSimSingleFailure makes the i-th AcquireSingle call fail.
func WithSimSingleFailure(i int) SimOption {
	return func(sim *Sim) {
		sim.failSingle = i
	}
}

// WithSimBatchFailure makes AcquireBatch and AcquireBatchAsync fail.
func WithSimBatchFailure() SimOption {
	return func(sim *Sim) {
		sim.failBatch = true
	}
}

// WithSimAbort stops asynchronous acquisitions after n exposures.
func WithSimAbort(n int) SimOption {
	return func(sim *Sim) {
		sim.abortAfter = n
	}
}

// NewSim returns a simulated detector with all 8 modules answering.
func NewSim(opts ...SimOption) *Sim {
	sim := &Sim{
		mask:       0xff,
		failSingle: -1,
		abortAfter: -1,
	}
	for _, opt := range opts {
		opt(sim)
	}
	return sim
}

var _ SDK = (*Sim)(nil)

func (sim *Sim) ModulesReady() (uint8, error) {
	return sim.mask, nil
}

func (sim *Sim) AcquireSingle(req Request, raw []uint16) error {
	err := sim.check(req, raw)
	if err != nil {
		return err
	}

	sim.mu.Lock()
	call := sim.calls
	sim.calls++
	sim.mu.Unlock()

	if call == sim.failSingle {
		return fmt.Errorf("xpix: single acquisition %d: %w", call, ErrAcquire)
	}

	time.Sleep(sim.delay)
	return sim.expose(req, raw)
}

func (sim *Sim) AcquireBatch(req Request, raws [][]uint16) error {
	err := sim.check(req, raws...)
	if err != nil {
		return err
	}
	if sim.failBatch {
		return fmt.Errorf("xpix: batch acquisition of %d frames: %w", len(raws), ErrAcquire)
	}

	for _, raw := range raws {
		time.Sleep(sim.delay)
		err = sim.expose(req, raw)
		if err != nil {
			return err
		}
	}
	return nil
}

func (sim *Sim) AcquireBatchAsync(req Request, raws [][]uint16) error {
	err := sim.check(req, raws...)
	if err != nil {
		return err
	}
	if sim.failBatch {
		return fmt.Errorf("xpix: async acquisition of %d frames: %w", len(raws), ErrAcquire)
	}
	if sim.running.Load() {
		return fmt.Errorf("xpix: async acquisition already running: %w", ErrAcquire)
	}

	sim.done.Store(0)
	sim.running.Store(true)
	sim.wg.Add(1)
	go func() {
		defer sim.wg.Done()
		defer sim.running.Store(false)
		for i, raw := range raws {
			if i == sim.abortAfter {
				return
			}
			time.Sleep(sim.delay)
			err := sim.expose(req, raw)
			if err != nil {
				return
			}
			sim.done.Add(1)
		}
	}()
	return nil
}

func (sim *Sim) Completed() int { return int(sim.done.Load()) }
func (sim *Sim) Running() bool  { return sim.running.Load() }

// Wait waits for the in-flight asynchronous acquisition to finish.
func (sim *Sim) Wait() { sim.wg.Wait() }

// Shots returns the number of exposures acquired so far.
func (sim *Sim) Shots() int {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	return sim.shots
}

func (sim *Sim) check(req Request, raws ...[]uint16) error {
	err := req.validate(raws...)
	if err != nil {
		return err
	}
	if req.Mask&^sim.mask != 0 {
		return fmt.Errorf(
			"xpix: modules 0x%02x not ready (ready=0x%02x): %w",
			req.Mask&^sim.mask, sim.mask, ErrAcquire,
		)
	}
	return nil
}

func (sim *Sim) expose(req Request, raw []uint16) error {
	sim.mu.Lock()
	n := sim.shots
	sim.shots++
	sim.mu.Unlock()

	g := req.Geometry()
	err := frame.Encode(raw, SimImage(n, g), g)
	if err != nil {
		return fmt.Errorf("xpix: could not encode exposure %d: %w", n, err)
	}
	if sim.seed != 0 {
		shuffle(raw, g.LineWords(), sim.seed+int64(n))
	}
	return nil
}

func shuffle(raw []uint16, n int, seed int64) {
	var (
		rnd = rand.New(rand.NewSource(seed))
		tmp = make([]uint16, n)
	)
	rnd.Shuffle(len(raw)/n, func(i, j int) {
		copy(tmp, raw[i*n:(i+1)*n])
		copy(raw[i*n:(i+1)*n], raw[j*n:(j+1)*n])
		copy(raw[j*n:(j+1)*n], tmp)
	})
}

// SimImage returns the clean image of the n-th simulated exposure.
// Pixels of modules outside the geometry mask are zero.
func SimImage(n int, g frame.Geometry) []byte {
	var (
		img = make([]byte, g.ImageSize())
		w   = g.Width()
	)
	for _, mod := range g.ModuleIDs() {
		beg := frame.Offset(mod, 1, w)
		end := beg + frame.ModuleLines*w
		for i := beg; i < end; i++ {
			v := uint32(n)*7919 + uint32(i) + 1
			switch g.Depth {
			case frame.Depth16:
				binary.LittleEndian.PutUint16(img[2*i:], uint16(v))
			case frame.Depth32:
				binary.LittleEndian.PutUint32(img[4*i:], v|uint32(n)<<24)
			}
		}
	}
	return img
}
