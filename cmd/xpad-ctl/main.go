// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command xpad-ctl sends control requests to an xpad-svc server.
//
// Without arguments, xpad-ctl starts an interactive shell:
//
//	$> xpad-ctl -addr localhost:9999
//	xpad> configure mode=fast-async frames=100 exposure=10ms
//	xpad> start
//	xpad> wait
//	xpad> status
//
// Otherwise, the command line arguments form a single request:
//
//	$> xpad-ctl -addr localhost:9999 configure chips=7 modules=0xff
package main // import "github.com/go-lpc/xpad/cmd/xpad-ctl"

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-lpc/xpad/camera"
	"github.com/peterh/liner"
)

func main() {
	addr := flag.String("addr", ":9999", "xpad-svc [addr]:port")

	log.SetPrefix("xpad-ctl: ")
	log.SetFlags(0)

	flag.Parse()

	c, err := camera.Dial(*addr)
	if err != nil {
		log.Fatalf("could not connect to xpad-svc: %+v", err)
	}
	defer c.Close()

	if flag.NArg() > 0 {
		_, err = execute(c, os.Stdout, strings.Join(flag.Args(), " "))
		if err != nil {
			log.Fatalf("%+v", err)
		}
		return
	}

	err = shell(c)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

var cmdNames = []string{
	"configure", "start", "stop", "wait", "status", "info", "help", "quit",
}

var settingKeys = []string{
	"mode", "depth", "chips", "modules", "frames", "exposure",
	"trigger", "continuous", "skip-failed", "poll",
}

func shell(c *camera.Client) error {
	term := liner.NewLiner()
	defer term.Close()

	term.SetCtrlCAborts(true)
	term.SetCompleter(complete)

	hist := filepath.Join(os.TempDir(), ".xpad-ctl.history")
	if f, err := os.Open(hist); err == nil {
		_, _ = term.ReadHistory(f)
		f.Close()
	}
	defer func() {
		f, err := os.Create(hist)
		if err != nil {
			return
		}
		defer f.Close()
		_, _ = term.WriteHistory(f)
	}()

	for {
		line, err := term.Prompt("xpad> ")
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				return nil
			}
			return fmt.Errorf("could not read command: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		term.AppendHistory(line)

		quit, err := execute(c, os.Stdout, line)
		if err != nil {
			log.Printf("%+v", err)
		}
		if quit {
			return nil
		}
	}
}

func complete(line string) []string {
	var (
		out    []string
		fields = strings.Fields(line)
	)
	switch {
	case len(fields) == 0:
		return cmdNames
	case len(fields) == 1 && !strings.HasSuffix(line, " "):
		for _, name := range cmdNames {
			if strings.HasPrefix(name, fields[0]) {
				out = append(out, name)
			}
		}
	case fields[0] == "configure":
		prefix := line[:strings.LastIndex(line, " ")+1]
		last := ""
		if !strings.HasSuffix(line, " ") {
			last = fields[len(fields)-1]
		}
		for _, key := range settingKeys {
			if strings.HasPrefix(key+"=", last) {
				out = append(out, prefix+key+"=")
			}
		}
	}
	return out
}

// execute sends the request described by line and prints its reply to w.
// It reports whether the session should end.
func execute(c *camera.Client, w io.Writer, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}

	name := strings.ToLower(fields[0])
	switch name {
	case "help":
		fmt.Fprintf(w, "commands: %s\n", strings.Join(cmdNames, ", "))
		fmt.Fprintf(w, "configure keys: %s\n", strings.Join(settingKeys, ", "))
		return false, nil
	case "exit":
		name = "quit"
	}

	var args interface{}
	if name == "configure" {
		set, err := parseSettings(fields[1:])
		if err != nil {
			return false, err
		}
		args = set
	}

	rep, err := c.Send(name, args)
	if err != nil {
		return name == "quit", err
	}

	fmt.Fprintf(w, "status: %s\n", rep.Status)
	switch {
	case rep.Config != nil:
		err = printJSON(w, rep.Config)
	case rep.Info != nil:
		err = printJSON(w, rep.Info)
	}
	return name == "quit", err
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	err := enc.Encode(v)
	if err != nil {
		return fmt.Errorf("could not print reply: %w", err)
	}
	return nil
}

// parseSettings parses key=value pairs into acquisition settings.
func parseSettings(args []string) (camera.Settings, error) {
	var set camera.Settings
	for _, arg := range args {
		i := strings.Index(arg, "=")
		if i <= 0 {
			return set, fmt.Errorf("invalid setting %q (want key=value)", arg)
		}
		var (
			key = strings.ToLower(arg[:i])
			val = arg[i+1:]
			err error
		)
		switch key {
		case "mode":
			set.Mode = val
		case "depth":
			set.Depth, err = strconv.Atoi(val)
		case "chips":
			set.Chips, err = strconv.Atoi(val)
		case "modules":
			var v uint64
			v, err = strconv.ParseUint(val, 0, 8)
			set.Modules = uint8(v)
		case "frames":
			set.Frames, err = strconv.Atoi(val)
		case "exposure":
			set.Exposure = val
		case "trigger":
			set.Trigger = val
		case "continuous":
			var v bool
			v, err = strconv.ParseBool(val)
			set.Continuous = &v
		case "skip-failed":
			var v bool
			v, err = strconv.ParseBool(val)
			set.SkipFailed = &v
		case "poll":
			set.PollInterval = val
		default:
			keys := append([]string(nil), settingKeys...)
			sort.Strings(keys)
			return set, fmt.Errorf("unknown setting %q (valid: %s)", key, strings.Join(keys, ", "))
		}
		if err != nil {
			return set, fmt.Errorf("invalid value for setting %q: %w", key, err)
		}
	}
	return set, nil
}
