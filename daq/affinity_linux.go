// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package daq

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// pin binds the calling OS thread to the provided CPU.
func pin(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)

	err := unix.SchedSetaffinity(0, &set)
	if err != nil {
		return fmt.Errorf("daq: could not set CPU affinity to %d: %w", cpu, err)
	}
	return nil
}
