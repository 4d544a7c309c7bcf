// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xpix

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/go-lpc/xpad/frame"
)

func TestExposure(t *testing.T) {
	for _, tc := range []struct {
		d    time.Duration
		v    uint32
		unit TimeUnit
	}{
		{500 * time.Microsecond, 500, Microsecond},
		{time.Millisecond, 1, Millisecond},
		{1500 * time.Millisecond, 1500, Millisecond},
		{32 * time.Second, 32000, Millisecond},
		{33 * time.Second, 33, Second},
	} {
		t.Run(tc.d.String(), func(t *testing.T) {
			v, unit := Exposure(tc.d)
			if v != tc.v || unit != tc.unit {
				t.Fatalf("invalid exposure: got=(%d, %v), want=(%d, %v)", v, unit, tc.v, tc.unit)
			}
			if got, want := unit.Duration(v), tc.d; got != want {
				t.Fatalf("invalid duration: got=%v, want=%v", got, want)
			}
		})
	}
}

func TestParseTrigger(t *testing.T) {
	for _, want := range []Trigger{InternalGate, ExternalTrigger, ExternalGate} {
		got, err := ParseTrigger(want.String())
		if err != nil {
			t.Fatalf("could not parse %q: %+v", want, err)
		}
		if got != want {
			t.Fatalf("invalid trigger: got=%v, want=%v", got, want)
		}
	}
	_, err := ParseTrigger("soft")
	if err == nil {
		t.Fatalf("expected an error")
	}
}

func newRequest(mask uint8, depth frame.Depth) Request {
	return Request{
		Depth:    depth,
		Mask:     mask,
		Chips:    7,
		Trigger:  InternalGate,
		Exposure: 1,
		Unit:     Millisecond,
		Timeout:  time.Second,
	}
}

func TestSimSingle(t *testing.T) {
	for _, tc := range []struct {
		name string
		opts []SimOption
		req  Request
	}{
		{
			name: "full-b2",
			req:  newRequest(0xff, frame.Depth16),
		},
		{
			name: "full-b4-shuffled",
			opts: []SimOption{WithSimShuffle(42)},
			req:  newRequest(0xff, frame.Depth32),
		},
		{
			name: "partial-b2",
			opts: []SimOption{WithSimMask(0x0f)},
			req:  newRequest(0x05, frame.Depth16),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			sim := NewSim(tc.opts...)
			g := tc.req.Geometry()
			raw := make([]uint16, g.RawWords())
			img := make([]byte, g.ImageSize())

			for i := 0; i < 3; i++ {
				err := sim.AcquireSingle(tc.req, raw)
				if err != nil {
					t.Fatalf("could not acquire frame %d: %+v", i, err)
				}
				err = frame.Assemble(img, raw, g)
				if err != nil {
					t.Fatalf("could not assemble frame %d: %+v", i, err)
				}
				if !bytes.Equal(img, SimImage(i, g)) {
					t.Fatalf("frame %d: invalid image", i)
				}
			}
			if got, want := sim.Shots(), 3; got != want {
				t.Fatalf("invalid number of shots: got=%d, want=%d", got, want)
			}
		})
	}
}

func TestSimErrors(t *testing.T) {
	req := newRequest(0xff, frame.Depth16)
	raw := make([]uint16, req.Geometry().RawWords())

	sim := NewSim(WithSimMask(0x0f))
	mask, err := sim.ModulesReady()
	if err != nil {
		t.Fatalf("could not get modules: %+v", err)
	}
	if mask != 0x0f {
		t.Fatalf("invalid mask: got=0x%x, want=0x0f", mask)
	}
	err = sim.AcquireSingle(req, raw)
	if !errors.Is(err, ErrAcquire) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, ErrAcquire)
	}

	sim = NewSim()
	err = sim.AcquireSingle(req, raw[1:])
	if !errors.Is(err, frame.ErrGeometry) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, frame.ErrGeometry)
	}

	sim = NewSim(WithSimSingleFailure(1))
	for i, want := range []error{nil, ErrAcquire, nil} {
		err := sim.AcquireSingle(req, raw)
		if !errors.Is(err, want) {
			t.Fatalf("call %d: invalid error: got=%+v, want=%+v", i, err, want)
		}
	}

	sim = NewSim(WithSimBatchFailure())
	raws := [][]uint16{raw}
	err = sim.AcquireBatch(req, raws)
	if !errors.Is(err, ErrAcquire) {
		t.Fatalf("invalid batch error: got=%+v, want=%+v", err, ErrAcquire)
	}
	err = sim.AcquireBatchAsync(req, raws)
	if !errors.Is(err, ErrAcquire) {
		t.Fatalf("invalid async error: got=%+v, want=%+v", err, ErrAcquire)
	}
}

func TestSimAsync(t *testing.T) {
	const n = 5
	req := newRequest(0x81, frame.Depth32)
	g := req.Geometry()

	raws := make([][]uint16, n)
	for i := range raws {
		raws[i] = make([]uint16, g.RawWords())
	}

	sim := NewSim(WithSimDelay(time.Millisecond))
	err := sim.AcquireBatchAsync(req, raws)
	if err != nil {
		t.Fatalf("could not start async acquisition: %+v", err)
	}
	sim.Wait()

	if sim.Running() {
		t.Fatalf("async acquisition still running")
	}
	if got, want := sim.Completed(), n; got != want {
		t.Fatalf("invalid completed count: got=%d, want=%d", got, want)
	}

	img := make([]byte, g.ImageSize())
	for i, raw := range raws {
		err = frame.Assemble(img, raw, g)
		if err != nil {
			t.Fatalf("could not assemble frame %d: %+v", i, err)
		}
		if !bytes.Equal(img, SimImage(i, g)) {
			t.Fatalf("frame %d: invalid image", i)
		}
	}

	sim = NewSim(WithSimAbort(2))
	err = sim.AcquireBatchAsync(req, raws)
	if err != nil {
		t.Fatalf("could not start async acquisition: %+v", err)
	}
	sim.Wait()
	if got, want := sim.Completed(), 2; got != want {
		t.Fatalf("invalid completed count: got=%d, want=%d", got, want)
	}
}
