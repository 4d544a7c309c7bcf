// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package conddb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-lpc/xpad/camera"
)

// Preset is a named acquisition configuration.
type Preset struct {
	Name     string
	Mode     string
	Depth    int // bits per pixel
	Chips    int
	Modules  uint8
	Frames   int
	Exposure time.Duration
	Trigger  string
}

// Settings returns the camera settings of the preset.
func (p Preset) Settings() camera.Settings {
	return camera.Settings{
		Mode:     p.Mode,
		Depth:    p.Depth,
		Chips:    p.Chips,
		Modules:  p.Modules,
		Frames:   p.Frames,
		Exposure: p.Exposure.String(),
		Trigger:  p.Trigger,
	}
}

const presetColumns = "name, mode, depth, chips, modules, frames, exposure_us, trigger_mode"

func scanPreset(rows *sql.Rows) (Preset, error) {
	var (
		p   Preset
		exp int64
	)
	err := rows.Scan(
		&p.Name, &p.Mode, &p.Depth, &p.Chips,
		&p.Modules, &p.Frames, &exp, &p.Trigger,
	)
	p.Exposure = time.Duration(exp) * time.Microsecond
	return p, err
}

// Preset returns the named acquisition preset.
func (db *DB) Preset(ctx context.Context, name string) (Preset, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := db.db.QueryContext(
		ctx,
		"SELECT "+presetColumns+" FROM presets WHERE name=? LIMIT 1",
		name,
	)
	if err != nil {
		return Preset{}, fmt.Errorf("conddb: could not query preset %q: %w", name, err)
	}
	defer rows.Close()

	var (
		preset Preset
		found  bool
	)
	for rows.Next() {
		preset, err = scanPreset(rows)
		if err != nil {
			return preset, fmt.Errorf("conddb: could not scan preset %q: %w", name, err)
		}
		found = true
	}

	if err := rows.Err(); err != nil {
		return preset, fmt.Errorf("conddb: could not scan db for preset %q: %w", name, err)
	}

	if err := ctx.Err(); err != nil {
		return preset, fmt.Errorf("conddb: context error while retrieving preset %q: %w", name, err)
	}

	if !found {
		return preset, fmt.Errorf("conddb: preset %q: %w", name, ErrNotFound)
	}

	return preset, nil
}

// Presets returns all acquisition presets, ordered by name.
func (db *DB) Presets(ctx context.Context) ([]Preset, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var presets []Preset
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT "+presetColumns+" FROM presets ORDER BY name",
	)
	if err != nil {
		return nil, fmt.Errorf("conddb: could not run presets query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPreset(rows)
		if err != nil {
			return presets, fmt.Errorf("conddb: could not scan presets: %w", err)
		}
		presets = append(presets, p)
	}

	if err := rows.Err(); err != nil {
		return presets, fmt.Errorf("conddb: could not scan db for presets: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return presets, fmt.Errorf("conddb: context error while retrieving presets: %w", err)
	}

	return presets, nil
}
