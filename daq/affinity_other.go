// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !linux

package daq

import (
	"fmt"
	"runtime"
)

func pin(cpu int) error {
	return fmt.Errorf("daq: CPU pinning not supported on %s", runtime.GOOS)
}
