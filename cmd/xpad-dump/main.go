// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// xpad-dump displays XPAD frames stored in LCIO files.
//
// Usage: xpad-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]
//
// Example:
//
//	$> xpad-dump -n 1 ./xpad_run_000042.slcio
//	=== run 42 ===
//	Geometry{chips=7, mask=0xff, modules=8, depth=32-bit, image=560x960}
//	--- frame 0 (t=1.21ms) ---
//	  module=1 min=         1 max=     67200 mean=   33600.5
//	  module=2 min=     67201 max=    134400 mean=  100800.5
//	  [...]
package main

import (
	"bufio"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/go-lpc/xpad/frame"
	"github.com/go-lpc/xpad/internal/xcnv"
)

const usage = `xpad-dump displays XPAD frames stored in LCIO files.

Usage: xpad-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]

Example:

 $> xpad-dump -n 1 ./xpad_run_000042.slcio
 === run 42 ===
 Geometry{chips=7, mask=0xff, modules=8, depth=32-bit, image=560x960}
 --- frame 0 (t=1.21ms) ---
   module=1 min=         1 max=     67200 mean=   33600.5
   module=2 min=     67201 max=    134400 mean=  100800.5
 [...]

`

func main() {
	xmain(os.Stdout, os.Args[1:])
}

func xmain(w io.Writer, args []string) {
	log.SetPrefix("xpad-dump: ")
	log.SetFlags(0)

	var (
		fset = flag.NewFlagSet("xpad-dump", flag.ExitOnError)

		nmax = fset.Int("n", -1, "maximum number of frames to display per file (-1: all)")
	)

	fset.Usage = func() {
		fmt.Print(usage)
		fset.PrintDefaults()
	}

	err := fset.Parse(args)
	if err != nil {
		log.Fatalf("could not parse input arguments: %+v", err)
	}

	if fset.NArg() == 0 {
		fset.Usage()
		log.Fatalf("missing path to input LCIO file")
	}

	for _, fname := range fset.Args() {
		err := process(w, fname, *nmax)
		if err != nil {
			log.Fatalf("could not dump file %q: %+v", fname, err)
		}
	}
}

func process(w io.Writer, fname string, nmax int) error {
	wbuf := bufio.NewWriter(w)
	defer wbuf.Flush()

	r, err := xcnv.Open(fname)
	if err != nil {
		return err
	}
	defer r.Close()

	for i := 0; nmax < 0 || i < nmax; i++ {
		if !r.Next() {
			break
		}
		var (
			f   = r.Frame()
			geo = r.Geometry()
		)
		if i == 0 {
			fmt.Fprintf(wbuf, "=== run %d ===\n%v\n", f.Run, geo)
		}
		fmt.Fprintf(wbuf, "--- frame %d (t=%v) ---\n", f.Frame, f.Time)
		for _, mod := range geo.ModuleIDs() {
			st := moduleStats(f.Image, geo, mod)
			fmt.Fprintf(wbuf, "  module=%d min=% 10d max=% 10d mean=% 10.1f\n",
				mod, st.min, st.max, st.mean,
			)
		}
	}

	return r.Err()
}

type stats struct {
	min, max uint32
	mean     float64
}

// moduleStats computes the pixel statistics of the region of the image
// covered by the 1-based module mod.
func moduleStats(img []byte, g frame.Geometry, mod int) stats {
	var (
		w   = g.Width()
		beg = frame.Offset(mod, 1, w)
		n   = frame.ModuleLines * w
		st  = stats{min: ^uint32(0)}
		sum float64
	)
	for i := beg; i < beg+n; i++ {
		var v uint32
		switch g.Depth {
		case frame.Depth16:
			v = uint32(binary.LittleEndian.Uint16(img[2*i:]))
		case frame.Depth32:
			v = binary.LittleEndian.Uint32(img[4*i:])
		}
		if v < st.min {
			st.min = v
		}
		if v > st.max {
			st.max = v
		}
		sum += float64(v)
	}
	st.mean = sum / float64(n)
	return st
}
