// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package camera drives an XPAD detector through its acquisition SDK and
// publishes reassembled images to a buffer manager.
package camera // import "github.com/go-lpc/xpad/camera"

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-lpc/xpad/frame"
	"github.com/go-lpc/xpad/xpix"
)

var (
	// ErrSDK is returned when the SDK fails to acquire a single frame.
	ErrSDK = errors.New("camera: SDK acquisition failed")

	// ErrSDKBatch is returned when the SDK fails a batch acquisition.
	ErrSDKBatch = errors.New("camera: SDK batch acquisition failed")

	// ErrUnsupported is returned for invalid or unsupported configurations.
	ErrUnsupported = errors.New("camera: unsupported configuration")

	// ErrBusy is returned when reconfiguring or starting a camera while
	// an acquisition is running.
	ErrBusy = errors.New("camera: acquisition running")

	// ErrNoModules is returned when no detector module answers.
	ErrNoModules = errors.New("camera: no modules ready")
)

// BufferManager hands out destination images and receives completed frames.
type BufferManager interface {
	// StartTimestamp sets the reference time of the acquisition.
	StartTimestamp(t time.Time)
	// Destination returns the image where frame n is to be assembled.
	Destination(n int) ([]byte, error)
	// Publish notifies that frame n is complete.
	Publish(n int) error
}

// Status is the acquisition status of a camera.
type Status int32

const (
	StatusReady Status = iota
	StatusExposure
	StatusReadout
	StatusFault
)

func (st Status) String() string {
	switch st {
	case StatusReady:
		return "ready"
	case StatusExposure:
		return "exposure"
	case StatusReadout:
		return "readout"
	case StatusFault:
		return "fault"
	default:
		return fmt.Sprintf("Status(%d)", int32(st))
	}
}

// DetectorInfo holds the static properties of the detector.
type DetectorInfo struct {
	Type      string  `json:"type"`
	Model     string  `json:"model"`
	PixelSize float64 `json:"pixel_size"` // in meters
	Width     int     `json:"width"`      // in pixels
	Height    int     `json:"height"`     // in pixels
	Modules   uint8   `json:"modules"`    // mask of the answering modules
}

// Camera is an XPAD detector.
type Camera struct {
	msg  *log.Logger
	sdk  xpix.SDK
	bm   BufferManager
	mask uint8 // modules answering on the bus

	mu   sync.Mutex
	cfg  Config
	busy bool
	done chan struct{} // closed when the current acquisition ends
	err  error         // error of the last acquisition

	status atomic.Int32
	stop   atomic.Bool

	pool rawPool

	goroutine func(f func())
	now       func() time.Time
}

// New creates a camera driving the provided SDK and publishing to the
// provided buffer manager.
func New(sdk xpix.SDK, bm BufferManager, opts ...Option) (*Camera, error) {
	mask, err := sdk.ModulesReady()
	if err != nil {
		return nil, fmt.Errorf("camera: could not ask modules ready: %w", err)
	}
	if mask == 0 {
		return nil, ErrNoModules
	}

	cfg := newConfig(mask)
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.err != nil {
		return nil, cfg.err
	}
	err = cfg.acq.validate(mask)
	if err != nil {
		return nil, err
	}

	cam := &Camera{
		msg:       cfg.msg,
		sdk:       sdk,
		bm:        bm,
		mask:      mask,
		cfg:       cfg.acq,
		goroutine: func(f func()) { go f() },
		now:       time.Now,
	}
	cam.msg.Printf("modules ready: mask=0x%02x (%d modules)", mask, cam.cfg.geometry().Modules())
	return cam, nil
}

// Info returns the static properties of the detector.
func (cam *Camera) Info() DetectorInfo {
	cfg := cam.Config()
	return DetectorInfo{
		Type:      "XPAD",
		Model:     "PCIe-3.2",
		PixelSize: 130e-6,
		Width:     cfg.geometry().Width(),
		Height:    frame.Height,
		Modules:   cam.mask,
	}
}

// Status returns the current acquisition status.
func (cam *Camera) Status() Status {
	return Status(cam.status.Load())
}

func (cam *Camera) setStatus(st Status) {
	cam.status.Store(int32(st))
}

// Config returns the current acquisition configuration.
func (cam *Camera) Config() Config {
	cam.mu.Lock()
	defer cam.mu.Unlock()
	return cam.cfg
}

// ImageSize returns the size in bytes of the images of the current
// configuration.
func (cam *Camera) ImageSize() int {
	cfg := cam.Config()
	return cfg.geometry().ImageSize()
}

// Configure applies the provided options to the acquisition configuration.
// The configuration is left untouched when an option is invalid.
func (cam *Camera) Configure(opts ...Option) error {
	cam.mu.Lock()
	defer cam.mu.Unlock()

	if cam.busy {
		return ErrBusy
	}

	cfg := config{acq: cam.cfg, msg: cam.msg}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.err != nil {
		return cfg.err
	}
	err := cfg.acq.validate(cam.mask)
	if err != nil {
		return err
	}
	cam.cfg = cfg.acq
	cam.msg = cfg.msg
	return nil
}

// SetMode sets the acquisition mode.
// Slow modes select the pixel depth they acquire with.
func (cam *Camera) SetMode(mode Mode) error { return cam.Configure(WithMode(mode)) }

// SetDepth sets the pixel depth.
func (cam *Camera) SetDepth(depth frame.Depth) error { return cam.Configure(WithDepth(depth)) }

// SetChips sets the number of chips per module.
func (cam *Camera) SetChips(n int) error { return cam.Configure(WithChips(n)) }

// SetFrames sets the number of frames to acquire.
func (cam *Camera) SetFrames(n int) error { return cam.Configure(WithFrames(n)) }

// SetExposure sets the exposure time of one frame.
func (cam *Camera) SetExposure(d time.Duration) error { return cam.Configure(WithExposure(d)) }

// SetTrigger sets the trigger mode.
func (cam *Camera) SetTrigger(t xpix.Trigger) error { return cam.Configure(WithTrigger(t)) }

// SetContinuous enables or disables continuous acquisition.
func (cam *Camera) SetContinuous(v bool) error { return cam.Configure(WithContinuous(v)) }

// Running reports whether an acquisition is in progress.
func (cam *Camera) Running() bool {
	cam.mu.Lock()
	defer cam.mu.Unlock()
	return cam.busy
}

func newLogger() *log.Logger {
	return log.New(os.Stdout, "xpad: ", 0)
}
