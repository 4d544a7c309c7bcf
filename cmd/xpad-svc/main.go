// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command xpad-svc serves control requests for an XPAD detector.
//
// Frames are published into a ring of images, optionally backed by a
// shared-memory file other processes may map.
package main // import "github.com/go-lpc/xpad/cmd/xpad-svc"

import (
	"flag"
	"io"
	"log"
	"os"
	"time"

	"github.com/go-lpc/xpad"
	"github.com/go-lpc/xpad/buffer"
	"github.com/go-lpc/xpad/camera"
	"github.com/go-lpc/xpad/xpix"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	var (
		addr    = flag.String("addr", ":9999", "xpad-ctl [addr]:port")
		cfg     = flag.String("cfg", "", "path to a YAML acquisition settings file")
		shm     = flag.String("shm", "/dev/shm/xpad-frames", "path to the shared memory file holding the frame ring (empty: in-memory ring)")
		slots   = flag.Int("slots", 16, "number of slots of the frame ring")
		logfile = flag.String("log", "", "path to a rotated log file")
		sim     = flag.Bool("sim", false, "use a simulated detector")
		simMask = flag.Uint("sim-mask", 0xff, "mask of the simulated modules")
	)

	log.SetPrefix("xpad-svc: ")
	log.SetFlags(0)

	flag.Parse()

	if *logfile != "" {
		rotator := &lumberjack.Logger{
			Filename:   *logfile,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		defer rotator.Close()
		log.SetOutput(io.MultiWriter(os.Stdout, rotator))
		log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	}

	if v, _ := xpad.Version(); v != "" {
		log.Printf("version: %s", v)
	}

	var (
		sdk xpix.SDK
		err error
	)
	switch {
	case *sim:
		sdk = xpix.NewSim(
			xpix.WithSimMask(uint8(*simMask)),
			xpix.WithSimDelay(time.Millisecond),
		)
	default:
		sdk, err = xpix.Open()
		if err != nil {
			log.Fatalf("could not open XPAD SDK: %+v", err)
		}
	}

	var ring *buffer.Ring
	switch *shm {
	case "":
		ring, err = buffer.NewRing(*slots)
	default:
		ring, err = buffer.NewShm(*shm, *slots)
	}
	if err != nil {
		log.Fatalf("could not create frame ring: %+v", err)
	}
	defer ring.Close()

	ring.OnFrame(func(info buffer.Info, img []byte) {
		log.Printf("frame %d: slot=%d, t=%v", info.Frame, info.Slot, info.Time)
	})

	opts := []camera.Option{camera.WithLogger(log.Writer())}
	if *cfg != "" {
		set, err := camera.LoadSettings(*cfg)
		if err != nil {
			log.Fatalf("could not load settings: %+v", err)
		}
		o, err := set.Options()
		if err != nil {
			log.Fatalf("invalid settings file %q: %+v", *cfg, err)
		}
		opts = append(opts, o...)
	}

	cam, err := camera.New(sdk, ring, opts...)
	if err != nil {
		log.Fatalf("could not create camera: %+v", err)
	}

	log.Printf("serving XPAD detector on %q...", *addr)
	err = camera.Serve(*addr, cam)
	if err != nil {
		log.Fatalf("could not serve xpad-ctl requests: %+v", err)
	}
}
