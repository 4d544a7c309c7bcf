// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command xpad-tdaq starts a TDAQ server driving an XPAD detector.
//
// The body of the /config command holds YAML acquisition settings.
// Frames are sent on the /frames output as:
//
//	u32 frame, u64 time (ns), u32 chips, u32 mask, u32 depth, image bytes
package main // import "github.com/go-lpc/xpad/cmd/xpad-tdaq"

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"
	"github.com/go-lpc/xpad/buffer"
	"github.com/go-lpc/xpad/camera"
	"github.com/go-lpc/xpad/frame"
	"github.com/go-lpc/xpad/xpix"
)

func main() {
	cmd := flags.New()

	sdk, err := openSDK()
	if err != nil {
		log.Panicf("could not open XPAD SDK: %+v", err)
	}

	dev, err := newDevice(cmd.Args[0], sdk, 16)
	if err != nil {
		log.Panicf("could not create XPAD device: %+v", err)
	}
	defer dev.ring.Close()

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", dev.OnConfig)
	srv.CmdHandle("/init", dev.OnInit)
	srv.CmdHandle("/reset", dev.OnReset)
	srv.CmdHandle("/start", dev.OnStart)
	srv.CmdHandle("/stop", dev.OnStop)
	srv.CmdHandle("/quit", dev.OnQuit)

	srv.OutputHandle("/frames", dev.frames)

	err = srv.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}

func openSDK() (xpix.SDK, error) {
	if os.Getenv("XPAD_SIM") != "" {
		return xpix.NewSim(xpix.WithSimDelay(time.Millisecond)), nil
	}
	return xpix.Open()
}

type device struct {
	name string
	ring *buffer.Ring
	cam  *camera.Camera

	geo  atomic.Value // frame.Geometry of the current acquisition
	data chan []byte
	lost atomic.Int64 // number of frames dropped for lack of a consumer
}

func newDevice(name string, sdk xpix.SDK, slots int) (*device, error) {
	ring, err := buffer.NewRing(slots)
	if err != nil {
		return nil, fmt.Errorf("could not create frame ring: %w", err)
	}

	cam, err := camera.New(sdk, ring, camera.WithLogger(os.Stdout))
	if err != nil {
		_ = ring.Close()
		return nil, fmt.Errorf("could not create camera: %w", err)
	}

	dev := &device{
		name: name,
		ring: ring,
		cam:  cam,
		data: make(chan []byte, slots),
	}
	dev.geo.Store(cam.Config().Geometry())
	ring.OnFrame(dev.onFrame)
	return dev, nil
}

func (dev *device) onFrame(info buffer.Info, img []byte) {
	body := frameBody(info, dev.geo.Load().(frame.Geometry), img)
	select {
	case dev.data <- body:
	default:
		dev.lost.Add(1)
	}
}

// frameBody encodes a published frame for the /frames output.
func frameBody(info buffer.Info, g frame.Geometry, img []byte) []byte {
	buf := new(bytes.Buffer)
	buf.Grow(24 + len(img))

	enc := tdaq.NewEncoder(buf)
	enc.WriteU32(uint32(info.Frame))
	enc.WriteU64(uint64(info.Time))
	enc.WriteU32(uint32(g.Chips))
	enc.WriteU32(uint32(g.Mask))
	enc.WriteU32(uint32(g.Depth))
	buf.Write(img)

	return buf.Bytes()
}

func (dev *device) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")
	set, err := camera.ReadSettings(bytes.NewReader(req.Body))
	if err != nil {
		ctx.Msg.Errorf("could not decode settings: %+v", err)
		return fmt.Errorf("could not decode settings: %w", err)
	}
	opts, err := set.Options()
	if err != nil {
		ctx.Msg.Errorf("invalid settings: %+v", err)
		return fmt.Errorf("invalid settings: %w", err)
	}
	err = dev.cam.Configure(opts...)
	if err != nil {
		ctx.Msg.Errorf("could not configure camera: %+v", err)
		return fmt.Errorf("could not configure camera: %w", err)
	}
	cfg := dev.cam.Config()
	dev.geo.Store(cfg.Geometry())
	ctx.Msg.Infof("configured: mode=%v, frames=%d, exposure=%v, %v",
		cfg.Mode, cfg.Frames, cfg.Exposure, cfg.Geometry(),
	)
	return nil
}

func (dev *device) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	info := dev.cam.Info()
	ctx.Msg.Infof("detector %s (%s): %dx%d pixels, modules=0x%02x",
		info.Type, info.Model, info.Width, info.Height, info.Modules,
	)
	dev.drain()
	return nil
}

func (dev *device) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	_ = dev.cam.Stop()
	err := dev.cam.Wait()
	if err != nil {
		ctx.Msg.Warnf("previous acquisition failed: %+v", err)
	}
	dev.drain()
	return nil
}

func (dev *device) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	dev.lost.Store(0)
	err := dev.cam.Start()
	if err != nil {
		ctx.Msg.Errorf("could not start acquisition: %+v", err)
		return fmt.Errorf("could not start acquisition: %w", err)
	}
	return nil
}

func (dev *device) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	_ = dev.cam.Stop()
	err := dev.cam.Wait()
	ctx.Msg.Debugf("received /stop command... -> published=%d, lost=%d",
		dev.ring.Published(), dev.lost.Load(),
	)
	if err != nil {
		ctx.Msg.Errorf("acquisition failed: %+v", err)
		return fmt.Errorf("acquisition failed: %w", err)
	}
	return nil
}

func (dev *device) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	_ = dev.cam.Stop()
	_ = dev.cam.Wait()
	return nil
}

func (dev *device) frames(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case data := <-dev.data:
		dst.Body = data
	}
	return nil
}

func (dev *device) drain() {
	for {
		select {
		case <-dev.data:
		default:
			return
		}
	}
}
