// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package camera

import (
	"fmt"
	"time"

	"github.com/go-lpc/xpad/frame"
)

// Start starts an acquisition with the current configuration and returns
// immediately. Use Wait to wait for its completion.
func (cam *Camera) Start() error {
	cam.mu.Lock()
	defer cam.mu.Unlock()

	if cam.busy {
		return ErrBusy
	}

	cfg := cam.cfg
	err := cfg.validate(cam.mask)
	if err != nil {
		return err
	}

	if r, ok := cam.bm.(interface{ SetImageSize(int) error }); ok {
		err = r.SetImageSize(cfg.geometry().ImageSize())
		if err != nil {
			return fmt.Errorf("camera: could not set buffer image size: %w", err)
		}
	}

	cam.busy = true
	cam.err = nil
	cam.done = make(chan struct{})
	cam.stop.Store(false)
	cam.setStatus(StatusExposure)

	cam.msg.Printf(
		"start acquisition: mode=%v, frames=%d, exposure=%v, %v",
		cfg.Mode, cfg.Frames, cfg.Exposure, cfg.geometry(),
	)
	done := cam.done
	cam.goroutine(func() { cam.run(cfg, done) })
	return nil
}

// Stop requests the running acquisition to stop at the next frame boundary.
// Stop does not wait for the acquisition to end.
func (cam *Camera) Stop() error {
	cam.stop.Store(true)
	return nil
}

// Wait waits for the current acquisition to end and returns its error.
func (cam *Camera) Wait() error {
	cam.mu.Lock()
	done := cam.done
	cam.mu.Unlock()

	if done == nil {
		return nil
	}
	<-done

	cam.mu.Lock()
	defer cam.mu.Unlock()
	return cam.err
}

func (cam *Camera) run(cfg Config, done chan struct{}) {
	start := cam.now()
	err := cam.acquire(cfg)

	cam.mu.Lock()
	defer cam.mu.Unlock()

	cam.err = err
	cam.busy = false
	if err != nil {
		cam.setStatus(StatusFault)
		cam.msg.Printf("acquisition failed: %+v", err)
	} else {
		cam.setStatus(StatusReady)
		cam.msg.Printf("acquisition done (%v)", cam.now().Sub(start))
	}
	close(done)
}

func (cam *Camera) acquire(cfg Config) error {
	asm, err := frame.NewAssembler(cfg.geometry())
	if err != nil {
		return fmt.Errorf("camera: could not create frame assembler: %v: %w", err, ErrUnsupported)
	}
	cam.bm.StartTimestamp(cam.now())

	switch cfg.Mode {
	case ModeSlowB2, ModeSlowB4:
		return cam.acquireSlow(cfg, asm)
	case ModeFastB2:
		return cam.acquireBatch(cfg, asm)
	case ModeFastAsync:
		return cam.acquireAsync(cfg, asm)
	default:
		return fmt.Errorf("camera: invalid mode %v: %w", cfg.Mode, ErrUnsupported)
	}
}

// acquireSlow acquires frames one SDK call at a time.
func (cam *Camera) acquireSlow(cfg Config, asm *frame.Assembler) error {
	var (
		req = cfg.request()
		raw = cam.pool.get(asm.Geometry().RawWords())
	)
	defer cam.pool.put(raw)

	for i := 0; cfg.Continuous || i < cfg.Frames; i++ {
		if cam.stop.Load() {
			cam.msg.Printf("stop requested after %d frames", i)
			return nil
		}

		cam.setStatus(StatusExposure)
		err := cam.sdk.AcquireSingle(req, raw)
		if err != nil {
			if cfg.SkipFailed {
				cam.msg.Printf("could not acquire frame %d: %+v (skipped)", i, err)
				continue
			}
			return fmt.Errorf("camera: could not acquire frame %d (%v): %w", i, err, ErrSDK)
		}

		cam.setStatus(StatusReadout)
		err = cam.publish(asm, raw, i)
		if err != nil {
			return err
		}
	}
	return nil
}

// acquireBatch acquires all frames with one synchronous SDK call.
func (cam *Camera) acquireBatch(cfg Config, asm *frame.Assembler) error {
	var (
		req  = cfg.request()
		raws = cam.pool.getN(cfg.Frames, asm.Geometry().RawWords())
	)
	defer cam.pool.put(raws...)

	if cam.stop.Load() {
		return nil
	}

	err := cam.sdk.AcquireBatch(req, raws)
	if err != nil {
		return fmt.Errorf("camera: could not acquire %d frames (%v): %w", cfg.Frames, err, ErrSDKBatch)
	}

	cam.setStatus(StatusReadout)
	for i, raw := range raws {
		if cam.stop.Load() {
			cam.msg.Printf("stop requested after %d frames", i)
			return nil
		}
		err = cam.publish(asm, raw, i)
		if err != nil {
			return err
		}
	}
	return nil
}

// acquireAsync starts an asynchronous SDK acquisition and publishes frames
// as the SDK reports them complete.
func (cam *Camera) acquireAsync(cfg Config, asm *frame.Assembler) error {
	var (
		req  = cfg.request()
		n    = cfg.Frames
		raws = cam.pool.getN(n, asm.Geometry().RawWords())
		tick = time.NewTicker(cfg.PollInterval)
	)
	defer tick.Stop()
	defer func() {
		// the SDK owns the raw buffers until it stops.
		for cam.sdk.Running() {
			<-tick.C
		}
		cam.pool.put(raws...)
	}()

	if cam.stop.Load() {
		return nil
	}

	err := cam.sdk.AcquireBatchAsync(req, raws)
	if err != nil {
		return fmt.Errorf("camera: could not start acquisition of %d frames (%v): %w", n, err, ErrSDKBatch)
	}
	cam.setStatus(StatusReadout)

	next := 0
	for {
		running := cam.sdk.Running()
		avail := cam.sdk.Completed()
		if avail > n {
			avail = n
		}

		for ; next < avail; next++ {
			if cam.stop.Load() {
				cam.msg.Printf("stop requested after %d frames", next)
				return nil
			}
			err = cam.publish(asm, raws[next], next)
			if err != nil {
				return err
			}
		}

		if !running {
			if next < n {
				return fmt.Errorf(
					"camera: SDK stopped after %d frames (want=%d): %w",
					next, n, ErrSDKBatch,
				)
			}
			return nil
		}

		<-tick.C
	}
}

// publish assembles raw into the destination of frame i and publishes it.
func (cam *Camera) publish(asm *frame.Assembler, raw []uint16, i int) error {
	dst, err := cam.bm.Destination(i)
	if err != nil {
		return fmt.Errorf("camera: could not get destination of frame %d: %w", i, err)
	}

	err = asm.Assemble(dst, raw)
	if err != nil {
		return fmt.Errorf("camera: could not assemble frame %d: %w", i, err)
	}

	err = cam.bm.Publish(i)
	if err != nil {
		return fmt.Errorf("camera: could not publish frame %d: %w", i, err)
	}
	return nil
}
