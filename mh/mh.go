// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mh describes the capabilities of a MultiHarp device:
// measurement control, FIFO readout and status reporting.
//
// Real devices are driven through the vendor mhlib library, which is only
// compiled in with the "mhlib" build tag. Simulated devices are provided
// by package mh/sim.
package mh // import "github.com/go-lpc/harp/mh"

import (
	"fmt"

	"github.com/go-lpc/harp/tttr"
)

const (
	MaxDevNum = 8         // maximum number of devices handled by the library
	TTReadMax = 1048576   // maximum number of records returned by a FIFO read
	AcqTMin   = 1         // minimal acquisition time (ms)
	AcqTMax   = 360000000 // maximal acquisition time (ms)
	SerialLen = 8         // maximal length of a serial number
)

// Mode is a device measurement mode.
type Mode int32

const (
	Histogramming Mode = 0
	T2            Mode = 2
	T3            Mode = 3
)

func (m Mode) String() string {
	switch m {
	case Histogramming:
		return "histogramming"
	case T2:
		return "T2"
	case T3:
		return "T3"
	default:
		return fmt.Sprintf("Mode(%d)", int32(m))
	}
}

// TTTR returns the record layout associated with a time-tagging mode.
func (m Mode) TTTR() (tttr.Mode, bool) {
	switch m {
	case T2:
		return tttr.T2, true
	case T3:
		return tttr.T3, true
	default:
		return 0, false
	}
}

// RefClock is the reference clock source of a device.
type RefClock int32

const (
	Internal RefClock = iota
	External
	WRMasterGeneric
	WRSlaveGeneric
	WRGrandMasterGeneric
	ExtGPSPPS
	ExtGPSPPSUART
	WRMasterMHarp
	WRSlaveMHarp
	WRGrandMasterMHarp
)

// Control is the measurement control mode, ie: how a measurement is
// started and stopped.
type Control int32

const (
	SingleShotCTC Control = iota
	C1Gated
	C1StartCTCStop
	C1StartC2Stop
	WRM2S
	WRS2M
	SwStartSwStop
)

// Bounded returns whether measurements are stopped by the CTC timer.
func (c Control) Bounded() bool {
	return c != SwStartSwStop
}

// Flag is the device status bitmask.
type Flag int32

const (
	FlagOverflow      Flag = 0x0001
	FlagFIFOFull      Flag = 0x0002
	FlagSyncLost      Flag = 0x0004
	FlagRefLost       Flag = 0x0008
	FlagSysError      Flag = 0x0010
	FlagActive        Flag = 0x0020
	FlagCountsDropped Flag = 0x0040
)
