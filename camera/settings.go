// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package camera

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-lpc/xpad/frame"
	"github.com/go-lpc/xpad/xpix"
	"gopkg.in/yaml.v3"
)

// Settings is the textual form of an acquisition configuration, as found
// in configuration files and control requests.
// Zero-valued fields leave the corresponding setting untouched.
type Settings struct {
	Mode         string `yaml:"mode,omitempty" json:"mode,omitempty"`         // slow-b2, fast-b2, slow-b4 or fast-async
	Depth        int    `yaml:"depth,omitempty" json:"depth,omitempty"`       // bits per pixel, 16 or 32
	Chips        int    `yaml:"chips,omitempty" json:"chips,omitempty"`       // chips per module
	Modules      uint8  `yaml:"modules,omitempty" json:"modules,omitempty"`   // mask of the modules to read out
	Frames       int    `yaml:"frames,omitempty" json:"frames,omitempty"`     // number of frames
	Exposure     string `yaml:"exposure,omitempty" json:"exposure,omitempty"` // exposure time, e.g. "10ms"
	Trigger      string `yaml:"trigger,omitempty" json:"trigger,omitempty"`   // internal-gate, external-trigger or external-gate
	Continuous   *bool  `yaml:"continuous,omitempty" json:"continuous,omitempty"`
	SkipFailed   *bool  `yaml:"skipFailed,omitempty" json:"skip_failed,omitempty"`
	PollInterval string `yaml:"pollInterval,omitempty" json:"poll_interval,omitempty"`
}

// LoadSettings reads acquisition settings from the named YAML file.
func LoadSettings(fname string) (Settings, error) {
	f, err := os.Open(fname)
	if err != nil {
		return Settings{}, fmt.Errorf("camera: could not open settings file: %w", err)
	}
	defer f.Close()

	return ReadSettings(f)
}

// ReadSettings reads acquisition settings in YAML from r.
func ReadSettings(r io.Reader) (Settings, error) {
	var set Settings
	err := yaml.NewDecoder(r).Decode(&set)
	if err != nil && err != io.EOF {
		return set, fmt.Errorf("camera: could not decode settings: %w", err)
	}
	return set, nil
}

// Options returns the camera options corresponding to the settings.
func (set Settings) Options() ([]Option, error) {
	var opts []Option

	if set.Mode != "" {
		mode, err := ParseMode(set.Mode)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithMode(mode))
	}

	switch set.Depth {
	case 0:
	case 16:
		opts = append(opts, WithDepth(frame.Depth16))
	case 32:
		opts = append(opts, WithDepth(frame.Depth32))
	default:
		return nil, fmt.Errorf("camera: invalid pixel depth %d bits: %w", set.Depth, ErrUnsupported)
	}

	if set.Chips != 0 {
		opts = append(opts, WithChips(set.Chips))
	}
	if set.Modules != 0 {
		opts = append(opts, WithModules(set.Modules))
	}
	if set.Frames != 0 {
		opts = append(opts, WithFrames(set.Frames))
	}

	if set.Exposure != "" {
		d, err := time.ParseDuration(set.Exposure)
		if err != nil {
			return nil, fmt.Errorf("camera: invalid exposure time %q: %w", set.Exposure, ErrUnsupported)
		}
		opts = append(opts, WithExposure(d))
	}

	if set.Trigger != "" {
		t, err := xpix.ParseTrigger(set.Trigger)
		if err != nil {
			return nil, fmt.Errorf("camera: %v: %w", err, ErrUnsupported)
		}
		opts = append(opts, WithTrigger(t))
	}

	if set.Continuous != nil {
		opts = append(opts, WithContinuous(*set.Continuous))
	}
	if set.SkipFailed != nil {
		opts = append(opts, WithSkipFailedFrames(*set.SkipFailed))
	}

	if set.PollInterval != "" {
		d, err := time.ParseDuration(set.PollInterval)
		if err != nil {
			return nil, fmt.Errorf("camera: invalid poll interval %q: %w", set.PollInterval, ErrUnsupported)
		}
		opts = append(opts, WithPollInterval(d))
	}

	return opts, nil
}
