// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package conddb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run is an entry of the run log.
type Run struct {
	ID     uuid.UUID
	Number uint32
	Preset string
	Mode   string
	Frames int // number of requested frames
	Start  time.Time
}

// NewRun returns a new run log entry with a fresh identifier.
func NewRun(number uint32, preset, mode string, frames int) Run {
	return Run{
		ID:     uuid.New(),
		Number: number,
		Preset: preset,
		Mode:   mode,
		Frames: frames,
		Start:  time.Now().UTC(),
	}
}

// BeginRun records the start of a run.
func (db *DB) BeginRun(ctx context.Context, run Run) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := db.db.ExecContext(
		ctx,
		"INSERT INTO runs (id, number, preset, mode, frames, start) VALUES (?, ?, ?, ?, ?, ?)",
		run.ID.String(), int64(run.Number), run.Preset, run.Mode, int64(run.Frames), run.Start,
	)
	if err != nil {
		return fmt.Errorf("conddb: could not record start of run %d: %w", run.Number, err)
	}
	return nil
}

// EndRun records the outcome of a run: the number of published frames,
// the final camera status and the error message, if any.
func (db *DB) EndRun(ctx context.Context, run Run, published int, status string, failure error) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	msg := ""
	if failure != nil {
		msg = failure.Error()
	}

	_, err := db.db.ExecContext(
		ctx,
		"UPDATE runs SET stop=?, published=?, status=?, error=? WHERE id=?",
		time.Now().UTC(), int64(published), status, msg, run.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("conddb: could not record end of run %d: %w", run.Number, err)
	}
	return nil
}
