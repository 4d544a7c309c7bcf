// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package camera

import "sync"

// rawPool recycles raw frame buffers between acquisitions.
type rawPool struct {
	mu    sync.Mutex
	free  map[int][][]uint16 // free buffers, by size in words
	inuse int
}

func (p *rawPool) get(words int) []uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.inuse++
	bufs := p.free[words]
	if n := len(bufs); n > 0 {
		raw := bufs[n-1]
		p.free[words] = bufs[:n-1]
		return raw
	}
	return make([]uint16, words)
}

func (p *rawPool) getN(n, words int) [][]uint16 {
	raws := make([][]uint16, n)
	for i := range raws {
		raws[i] = p.get(words)
	}
	return raws
}

func (p *rawPool) put(raws ...[]uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.free == nil {
		p.free = make(map[int][][]uint16)
	}
	for _, raw := range raws {
		if raw == nil {
			continue
		}
		p.inuse--
		p.free[len(raw)] = append(p.free[len(raw)], raw)
	}
}

// InUse returns the number of raw buffers not yet released.
func (p *rawPool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inuse
}
