// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !xpix

package xpix

// Open opens the XPAD PCIe board through the vendor SDK.
func Open() (SDK, error) {
	return nil, ErrNoDriver
}
