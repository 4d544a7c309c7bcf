// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package camera

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/go-lpc/xpad/frame"
	"github.com/go-lpc/xpad/xpix"
)

// Mode is an acquisition mode.
type Mode uint8

const (
	ModeSlowB2    Mode = 0 // one SDK call per frame, 16-bit pixels
	ModeFastB2    Mode = 1 // one synchronous SDK call for all frames
	ModeSlowB4    Mode = 2 // one SDK call per frame, 32-bit pixels
	ModeFastAsync Mode = 3 // one asynchronous SDK call, frames published as they complete
)

var modeNames = [...]string{
	ModeSlowB2:    "slow-b2",
	ModeFastB2:    "fast-b2",
	ModeSlowB4:    "slow-b4",
	ModeFastAsync: "fast-async",
}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// ParseMode parses the textual representation of an acquisition mode.
func ParseMode(s string) (Mode, error) {
	for i, name := range modeNames {
		if name == s {
			return Mode(i), nil
		}
	}
	return 0, fmt.Errorf("camera: unknown mode %q: %w", s, ErrUnsupported)
}

func (m Mode) slow() bool { return m == ModeSlowB2 || m == ModeSlowB4 }

const (
	slowB2Timeout = 30 * time.Second
	batchTimeout  = 8 * time.Second
	slowB4Factor  = 1050 // readout timeout, in units of the exposure time

	defaultPoll = 2 * time.Millisecond
)

// Config is the configuration of an acquisition.
type Config struct {
	Mode       Mode          `json:"mode"`
	Depth      frame.Depth   `json:"depth"`
	Chips      int           `json:"chips"`
	Mask       uint8         `json:"mask"` // modules to read out
	Frames     int           `json:"frames"`
	Exposure   time.Duration `json:"exposure"`
	Trigger    xpix.Trigger  `json:"trigger"`
	Continuous bool          `json:"continuous"`

	SkipFailed   bool          `json:"skip_failed"`
	PollInterval time.Duration `json:"poll_interval"`
}

func (cfg Config) geometry() frame.Geometry {
	return frame.Geometry{Chips: cfg.Chips, Mask: cfg.Mask, Depth: cfg.Depth}
}

// Geometry returns the frame geometry of the acquisition.
func (cfg Config) Geometry() frame.Geometry { return cfg.geometry() }

func (cfg Config) request() xpix.Request {
	exp, unit := xpix.Exposure(cfg.Exposure)
	req := xpix.Request{
		Depth:    cfg.Depth,
		Mask:     cfg.Mask,
		Chips:    cfg.Chips,
		Trigger:  cfg.Trigger,
		Exposure: exp,
		Unit:     unit,
	}
	switch cfg.Mode {
	case ModeSlowB2:
		req.Timeout = slowB2Timeout
	case ModeSlowB4:
		req.Timeout = slowB4Factor * cfg.Exposure
	default:
		req.Timeout = batchTimeout
	}
	return req
}

func (cfg Config) validate(ready uint8) error {
	if int(cfg.Mode) >= len(modeNames) {
		return fmt.Errorf("camera: invalid mode %d: %w", cfg.Mode, ErrUnsupported)
	}
	switch {
	case cfg.Mode == ModeSlowB2 && cfg.Depth != frame.Depth16:
		return fmt.Errorf("camera: mode %v requires 16-bit pixels (got %v): %w", cfg.Mode, cfg.Depth, ErrUnsupported)
	case cfg.Mode == ModeSlowB4 && cfg.Depth != frame.Depth32:
		return fmt.Errorf("camera: mode %v requires 32-bit pixels (got %v): %w", cfg.Mode, cfg.Depth, ErrUnsupported)
	case cfg.Continuous && !cfg.Mode.slow():
		return fmt.Errorf("camera: continuous acquisition not available in mode %v: %w", cfg.Mode, ErrUnsupported)
	case cfg.Mask&^ready != 0:
		return fmt.Errorf("camera: modules 0x%02x not ready (ready=0x%02x): %w", cfg.Mask&^ready, ready, ErrUnsupported)
	case cfg.Frames < 1:
		return fmt.Errorf("camera: invalid number of frames %d: %w", cfg.Frames, ErrUnsupported)
	case cfg.Exposure < time.Microsecond:
		return fmt.Errorf("camera: invalid exposure time %v: %w", cfg.Exposure, ErrUnsupported)
	case cfg.PollInterval <= 0:
		return fmt.Errorf("camera: invalid poll interval %v: %w", cfg.PollInterval, ErrUnsupported)
	case cfg.Trigger > xpix.ExternalGate:
		return fmt.Errorf("camera: invalid trigger mode %v: %w", cfg.Trigger, ErrUnsupported)
	}
	err := cfg.geometry().Validate()
	if err != nil {
		return fmt.Errorf("camera: invalid geometry: %v: %w", err, ErrUnsupported)
	}
	return nil
}

type config struct {
	acq Config
	msg *log.Logger
	err error // first invalid option
}

func newConfig(mask uint8) config {
	return config{
		acq: Config{
			Mode:         ModeSlowB4,
			Depth:        frame.Depth32,
			Chips:        frame.MaxChips,
			Mask:         mask,
			Frames:       1,
			Exposure:     time.Second,
			Trigger:      xpix.InternalGate,
			PollInterval: defaultPoll,
		},
		msg: newLogger(),
	}
}

func (cfg *config) fail(err error) {
	if cfg.err == nil {
		cfg.err = err
	}
}

// Option configures a camera.
type Option func(*config)

// WithLogger sets the logger of the camera.
// A nil writer discards all messages.
func WithLogger(w io.Writer) Option {
	return func(cfg *config) {
		if w == nil {
			w = io.Discard
		}
		cfg.msg = log.New(w, "xpad: ", 0)
	}
}

// WithMode sets the acquisition mode.
// Slow modes select the pixel depth they acquire with.
func WithMode(mode Mode) Option {
	return func(cfg *config) {
		cfg.acq.Mode = mode
		switch mode {
		case ModeSlowB2:
			cfg.acq.Depth = frame.Depth16
		case ModeSlowB4:
			cfg.acq.Depth = frame.Depth32
		}
	}
}

// WithDepth sets the pixel depth.
func WithDepth(depth frame.Depth) Option {
	return func(cfg *config) {
		switch depth {
		case frame.Depth16, frame.Depth32:
			cfg.acq.Depth = depth
		default:
			cfg.fail(fmt.Errorf("camera: invalid pixel depth %v: %w", depth, ErrUnsupported))
		}
	}
}

// WithChips sets the number of chips per module.
func WithChips(n int) Option {
	return func(cfg *config) {
		if n < 1 || n > frame.MaxChips {
			cfg.fail(fmt.Errorf("camera: invalid number of chips %d: %w", n, ErrUnsupported))
			return
		}
		cfg.acq.Chips = n
	}
}

// WithModules restricts the acquisition to the modules of the provided mask.
func WithModules(mask uint8) Option {
	return func(cfg *config) {
		if mask == 0 {
			cfg.fail(fmt.Errorf("camera: empty module mask: %w", ErrUnsupported))
			return
		}
		cfg.acq.Mask = mask
	}
}

// WithFrames sets the number of frames to acquire.
func WithFrames(n int) Option {
	return func(cfg *config) {
		if n < 1 {
			cfg.fail(fmt.Errorf("camera: invalid number of frames %d: %w", n, ErrUnsupported))
			return
		}
		cfg.acq.Frames = n
	}
}

// WithExposure sets the exposure time of one frame.
// The detector counts exposures in whole microseconds at best.
func WithExposure(d time.Duration) Option {
	return func(cfg *config) {
		if d < time.Microsecond {
			cfg.fail(fmt.Errorf("camera: invalid exposure time %v: %w", d, ErrUnsupported))
			return
		}
		cfg.acq.Exposure = d
	}
}

// WithTrigger sets the trigger mode.
func WithTrigger(t xpix.Trigger) Option {
	return func(cfg *config) {
		cfg.acq.Trigger = t
	}
}

// WithContinuous enables acquisition until Stop is called.
// Only slow modes support continuous acquisition.
func WithContinuous(v bool) Option {
	return func(cfg *config) {
		cfg.acq.Continuous = v
	}
}

// WithSkipFailedFrames makes slow-mode acquisitions log and skip frames
// the SDK failed to acquire, instead of aborting.
func WithSkipFailedFrames(v bool) Option {
	return func(cfg *config) {
		cfg.acq.SkipFailed = v
	}
}

// WithPollInterval sets the polling period of asynchronous acquisitions.
func WithPollInterval(d time.Duration) Option {
	return func(cfg *config) {
		if d <= 0 {
			cfg.fail(fmt.Errorf("camera: invalid poll interval %v: %w", d, ErrUnsupported))
			return
		}
		cfg.acq.PollInterval = d
	}
}
