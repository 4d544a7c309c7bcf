// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package xpix describes the XPAD acquisition SDK (libxpci) as consumed
// by the camera controller.
//
// A hardware binding is available when building with the xpix build tag.
// A simulated detector, Sim, is always available.
package xpix // import "github.com/go-lpc/xpad/xpix"

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-lpc/xpad/frame"
)

var (
	// ErrNoDriver is returned by Open when the hardware binding was not
	// compiled in.
	ErrNoDriver = errors.New("xpix: hardware driver not available (build with -tags xpix)")

	// ErrAcquire is returned when the SDK reports a failed acquisition.
	ErrAcquire = errors.New("xpix: acquisition failed")
)

// SDK is the subset of the XPAD SDK needed to acquire images.
//
// Raw buffers are provided by the caller and must hold
// Request.Geometry().RawWords() words each.
type SDK interface {
	// ModulesReady returns the mask of the modules answering on the bus.
	ModulesReady() (uint8, error)

	// AcquireSingle acquires one exposure into raw.
	AcquireSingle(req Request, raw []uint16) error

	// AcquireBatch acquires len(raws) exposures and returns when all
	// of them have been read out.
	AcquireBatch(req Request, raws [][]uint16) error

	// AcquireBatchAsync starts the acquisition of len(raws) exposures
	// and returns immediately.
	AcquireBatchAsync(req Request, raws [][]uint16) error

	// Completed returns the number of exposures of the current
	// asynchronous acquisition already written into their raw buffer.
	Completed() int

	// Running reports whether an asynchronous acquisition is in flight.
	Running() bool
}

// Trigger is the SDK trigger (gate) mode.
type Trigger uint8

const (
	InternalGate Trigger = iota // exposure gated by the detector
	ExternalTrigger             // each exposure started by an external trigger
	ExternalGate                // exposure gated by an external signal
)

func (t Trigger) String() string {
	switch t {
	case InternalGate:
		return "internal-gate"
	case ExternalTrigger:
		return "external-trigger"
	case ExternalGate:
		return "external-gate"
	default:
		return fmt.Sprintf("Trigger(%d)", uint8(t))
	}
}

// ParseTrigger parses the textual representation of a trigger mode.
func ParseTrigger(s string) (Trigger, error) {
	for _, t := range []Trigger{InternalGate, ExternalTrigger, ExternalGate} {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("xpix: unknown trigger mode %q", s)
}

// TimeUnit is the unit of the exposure value sent to the SDK.
type TimeUnit uint8

const (
	Microsecond TimeUnit = 1
	Millisecond TimeUnit = 2
	Second      TimeUnit = 3
)

func (u TimeUnit) String() string {
	switch u {
	case Microsecond:
		return "us"
	case Millisecond:
		return "ms"
	case Second:
		return "s"
	default:
		return fmt.Sprintf("TimeUnit(%d)", uint8(u))
	}
}

// Duration returns the duration of v units.
func (u TimeUnit) Duration(v uint32) time.Duration {
	switch u {
	case Microsecond:
		return time.Duration(v) * time.Microsecond
	case Millisecond:
		return time.Duration(v) * time.Millisecond
	case Second:
		return time.Duration(v) * time.Second
	default:
		return 0
	}
}

// Exposure converts an exposure duration into an SDK value and unit.
// Sub-millisecond exposures are expressed in microseconds, exposures up
// to 32s in milliseconds and longer ones in seconds.
func Exposure(d time.Duration) (uint32, TimeUnit) {
	switch {
	case d < time.Millisecond:
		return uint32(d / time.Microsecond), Microsecond
	case d <= 32*time.Second:
		return uint32(d / time.Millisecond), Millisecond
	default:
		return uint32(d / time.Second), Second
	}
}

// Request describes one SDK acquisition.
type Request struct {
	Depth    frame.Depth
	Mask     uint8 // active-module mask
	Chips    int
	Trigger  Trigger
	Exposure uint32 // exposure value, in Unit
	Unit     TimeUnit
	Timeout  time.Duration // readout timeout of the first exposure
}

// Geometry returns the frame geometry of the requested acquisition.
func (req Request) Geometry() frame.Geometry {
	return frame.Geometry{Chips: req.Chips, Mask: req.Mask, Depth: req.Depth}
}

func (req Request) validate(raws ...[]uint16) error {
	g := req.Geometry()
	err := g.Validate()
	if err != nil {
		return fmt.Errorf("xpix: invalid request: %w", err)
	}
	n := g.RawWords()
	for i, raw := range raws {
		if len(raw) != n {
			return fmt.Errorf(
				"xpix: invalid raw buffer %d (got=%d words, want=%d): %w",
				i, len(raw), n, frame.ErrGeometry,
			)
		}
	}
	return nil
}
