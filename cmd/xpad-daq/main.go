// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command xpad-daq runs one XPAD acquisition and stores its frames in
// an LCIO file.
//
// The acquisition settings are read from an optional conddb preset,
// then from an optional YAML file:
//
//	mode: fast-async
//	frames: 100
//	exposure: 10ms
//	trigger: internal-gate
//
// Hitting Ctrl-C stops the acquisition at the next frame boundary.
package main // import "github.com/go-lpc/xpad/cmd/xpad-daq"

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/go-lpc/xpad"
	"github.com/go-lpc/xpad/buffer"
	"github.com/go-lpc/xpad/camera"
	"github.com/go-lpc/xpad/conddb"
	"github.com/go-lpc/xpad/internal/alert"
	"github.com/go-lpc/xpad/internal/xcnv"
	"github.com/go-lpc/xpad/xpix"
	"github.com/sbinet/pmon"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	var (
		opts options

		simMask = flag.Uint("sim-mask", 0xff, "mask of the simulated modules")
	)

	flag.StringVar(&opts.cfg, "cfg", "", "path to a YAML acquisition settings file")
	flag.StringVar(&opts.preset, "preset", "", "name of the conddb acquisition preset")
	flag.StringVar(&opts.db, "db", "", "name of the conddb database (empty disables the run log)")
	flag.StringVar(&opts.odir, "o", ".", "output directory")
	flag.UintVar(&opts.run, "run", 0, "run number (0: next run number from conddb)")
	flag.StringVar(&opts.shm, "shm", "", "path to a shared memory file holding the frame ring")
	flag.IntVar(&opts.slots, "slots", 16, "number of slots of the frame ring")
	flag.StringVar(&opts.logfile, "log", "", "path to a rotated log file")
	flag.BoolVar(&opts.sim, "sim", false, "use a simulated detector")
	flag.BoolVar(&opts.pmon, "pmon", false, "enable pmon monitoring")
	flag.DurationVar(&opts.freq, "freq", 1*time.Second, "pmon frequency")
	flag.BoolVar(&opts.alert, "alert", false, "send a mail alert on acquisition failure")

	flag.Parse()

	log.SetPrefix("xpad-daq: ")
	log.SetFlags(0)

	if opts.logfile != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.logfile,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		defer rotator.Close()
		log.SetOutput(io.MultiWriter(os.Stdout, rotator))
		log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	}
	opts.simMask = uint8(*simMask)

	if v, _ := xpad.Version(); v != "" {
		log.Printf("version: %s", v)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	defer signal.Stop(stop)

	err := run(opts, stop)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

type options struct {
	cfg     string
	preset  string
	db      string
	odir    string
	run     uint
	shm     string
	slots   int
	logfile string

	sim     bool
	simMask uint8

	pmon  bool
	freq  time.Duration
	alert bool
}

// frameItem is a published frame, copied out of the ring.
type frameItem struct {
	info buffer.Info
	img  []byte
}

var openSDK = func(opts options) (xpix.SDK, error) {
	if opts.sim {
		return xpix.NewSim(
			xpix.WithSimMask(opts.simMask),
			xpix.WithSimDelay(time.Millisecond),
		), nil
	}
	return xpix.Open()
}

func run(opts options, stop chan os.Signal) error {
	ctx := context.Background()

	sdk, err := openSDK(opts)
	if err != nil {
		return fmt.Errorf("could not open XPAD SDK: %w", err)
	}

	var db *conddb.DB
	if opts.db != "" {
		db, err = conddb.Open(opts.db)
		if err != nil {
			return fmt.Errorf("could not open conddb: %w", err)
		}
		defer db.Close()
	}

	camOpts, err := settings(ctx, db, opts)
	if err != nil {
		return err
	}
	camOpts = append(camOpts, camera.WithLogger(log.Writer()))

	runnbr, err := runNumber(ctx, db, opts)
	if err != nil {
		return err
	}

	var ring *buffer.Ring
	switch opts.shm {
	case "":
		ring, err = buffer.NewRing(opts.slots)
	default:
		ring, err = buffer.NewShm(opts.shm, opts.slots)
	}
	if err != nil {
		return fmt.Errorf("could not create frame ring: %w", err)
	}
	defer ring.Close()

	cam, err := camera.New(sdk, ring, camOpts...)
	if err != nil {
		return fmt.Errorf("could not create camera: %w", err)
	}
	cfg := cam.Config()

	fname := filepath.Join(opts.odir, fmt.Sprintf("xpad_run_%06d.slcio", runnbr))
	w, err := xcnv.Create(fname, int32(runnbr), cfg.Geometry(), fmt.Sprintf("mode=%v, exposure=%v", cfg.Mode, cfg.Exposure))
	if err != nil {
		return fmt.Errorf("could not create output file: %w", err)
	}
	defer w.Close()

	frames := make(chan frameItem, ring.Len())
	ring.OnFrame(func(info buffer.Info, img []byte) {
		buf := make([]byte, len(img))
		copy(buf, img)
		frames <- frameItem{info: info, img: buf}
	})

	rlog := conddb.NewRun(uint32(runnbr), opts.preset, cfg.Mode.String(), cfg.Frames)
	if db != nil {
		err = db.BeginRun(ctx, rlog)
		if err != nil {
			return fmt.Errorf("could not log run %d: %w", runnbr, err)
		}
	}

	if opts.pmon {
		kill, err := monitor(opts)
		if err != nil {
			return err
		}
		defer kill()
	}

	log.Printf("starting run %d -> %q...", runnbr, fname)
	err = cam.Start()
	if err != nil {
		return fmt.Errorf("could not start acquisition: %w", err)
	}

	var (
		grp  errgroup.Group
		done = make(chan struct{})
	)
	grp.Go(func() error {
		defer close(frames)
		defer close(done)
		return cam.Wait()
	})
	grp.Go(func() error {
		var werr error
		for item := range frames {
			if werr != nil {
				continue
			}
			werr = w.WriteFrame(item.info.Frame, item.info.Time, item.img)
			if werr != nil {
				_ = cam.Stop()
			}
		}
		if werr != nil {
			return werr
		}
		return w.Close()
	})

	go func() {
		select {
		case <-stop:
			log.Printf("stopping run %d...", runnbr)
			_ = cam.Stop()
		case <-done:
		}
	}()

	err = grp.Wait()
	log.Printf("run %d: published=%d, written=%d, status=%v", runnbr, ring.Published(), w.Frames(), cam.Status())

	if db != nil {
		status := "done"
		if err != nil {
			status = "fault"
		}
		e := db.EndRun(ctx, rlog, ring.Published(), status, err)
		if e != nil {
			log.Printf("could not log end of run %d: %+v", runnbr, e)
		}
	}

	if err != nil {
		if opts.alert {
			m := alert.New("xpad-daq", alert.FromEnv(), nil)
			e := m.Alert(
				fmt.Sprintf("run %d fault", runnbr),
				fmt.Sprintf("run:    %d\nfile:   %q\nframes: %d/%d\nerror:  %+v\n",
					runnbr, fname, ring.Published(), cfg.Frames, err,
				),
			)
			if e != nil {
				log.Printf("could not send alert: %+v", e)
			}
		}
		return fmt.Errorf("could not run acquisition: %w", err)
	}

	return nil
}

func settings(ctx context.Context, db *conddb.DB, opts options) ([]camera.Option, error) {
	var camOpts []camera.Option

	if opts.preset != "" {
		if db == nil {
			return nil, fmt.Errorf("preset %q requires a conddb database", opts.preset)
		}
		p, err := db.Preset(ctx, opts.preset)
		if err != nil {
			return nil, fmt.Errorf("could not retrieve preset %q: %w", opts.preset, err)
		}
		o, err := p.Settings().Options()
		if err != nil {
			return nil, fmt.Errorf("invalid preset %q: %w", opts.preset, err)
		}
		camOpts = append(camOpts, o...)
	}

	if opts.cfg != "" {
		set, err := camera.LoadSettings(opts.cfg)
		if err != nil {
			return nil, fmt.Errorf("could not load settings: %w", err)
		}
		o, err := set.Options()
		if err != nil {
			return nil, fmt.Errorf("invalid settings file %q: %w", opts.cfg, err)
		}
		camOpts = append(camOpts, o...)
	}

	return camOpts, nil
}

func runNumber(ctx context.Context, db *conddb.DB, opts options) (uint32, error) {
	switch {
	case opts.run != 0:
		return uint32(opts.run), nil
	case db == nil:
		return 1, nil
	}
	last, err := db.LastRunNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("could not retrieve last run number: %w", err)
	}
	return last + 1, nil
}

// monitor starts monitoring the resources of the current process and
// returns the function stopping it.
func monitor(opts options) (func(), error) {
	pid := os.Getpid()
	p, err := pmon.Monitor(pid)
	if err != nil {
		return nil, fmt.Errorf("could not start monitoring (pid=%d): %w", pid, err)
	}
	f, err := os.Create(filepath.Join(opts.odir, "xpad-daq-pmon.log"))
	if err != nil {
		return nil, fmt.Errorf("could not create pmon log file: %w", err)
	}
	p.W = f
	p.Freq = opts.freq

	go func() {
		defer f.Close()
		err := p.Run()
		if err != nil {
			log.Printf("could not run pmon: %+v", err)
		}
	}()

	return func() {
		err := p.Kill()
		if err != nil {
			log.Printf("could not stop monitoring: %+v", err)
		}
	}, nil
}
