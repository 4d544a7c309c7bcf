// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command xpad-sql inspects the XPAD acquisition presets and run log.
//
// With -preset, the named preset is printed as a YAML settings file
// suitable for xpad-daq -cfg:
//
//	$> xpad-sql -preset calib > calib.yaml
//	$> xpad-daq -cfg calib.yaml
package main // import "github.com/go-lpc/xpad/cmd/xpad-sql"

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/go-lpc/xpad/conddb"
	"gopkg.in/yaml.v3"
)

func main() {
	log.SetPrefix("xpad-sql: ")
	log.SetFlags(0)

	var (
		dbname = flag.String("db", "xpad", "name of the conddb database")
		preset = flag.String("preset", "", "preset to export as YAML settings")
	)

	flag.Parse()

	db, err := conddb.Open(*dbname)
	if err != nil {
		log.Fatalf("could not open XPAD db: %+v", err)
	}
	defer db.Close()

	err = doQuery(os.Stdout, db, *preset)
	if err != nil {
		log.Fatalf("could not do query: %+v", err)
	}
}

func doQuery(w io.Writer, db *conddb.DB, preset string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if preset != "" {
		p, err := db.Preset(ctx, preset)
		if err != nil {
			return fmt.Errorf("could not get preset %q: %w", preset, err)
		}
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		err = enc.Encode(p.Settings())
		if err != nil {
			return fmt.Errorf("could not encode preset %q: %w", preset, err)
		}
		return nil
	}

	run, err := db.LastRunNumber(ctx)
	if err != nil {
		return fmt.Errorf("could not get last run number: %w", err)
	}
	log.Printf("last run: %d", run)

	presets, err := db.Presets(ctx)
	if err != nil {
		return fmt.Errorf("could not get presets: %w", err)
	}
	log.Printf("presets: %d", len(presets))
	for i, p := range presets {
		log.Printf("row[%d]: name=%q mode=%s depth=%d chips=%d modules=0x%02x frames=%d exposure=%v trigger=%s",
			i, p.Name, p.Mode, p.Depth, p.Chips, p.Modules, p.Frames, p.Exposure, p.Trigger,
		)
	}

	return nil
}
