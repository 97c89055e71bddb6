// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mh

import "fmt"

// Device is an opened MultiHarp device.
//
// A Device is not safe for concurrent use: during a measurement it is
// owned by the goroutine draining its FIFO.
type Device interface {
	Index() int
	Serial() string

	// Init initializes the device in the provided measurement mode.
	Init(mode Mode, ref RefClock) error

	// StartMeasurement starts a measurement lasting ms milliseconds.
	StartMeasurement(ms int) error
	StopMeasurement() error

	// CTCStatus returns true while a measurement is running.
	CTCStatus() (bool, error)

	// ReadFIFO drains the device FIFO into buf and returns the number
	// of records written at the front of buf.
	// buf must be at least TTReadMax long.
	ReadFIFO(buf []uint32) (int, error)

	Warnings() (Warning, error)

	Close() error
}

// CheckIndex checks a device index is in [0, MaxDevNum).
func CheckIndex(i int) error {
	if i < 0 || i >= MaxDevNum {
		return &ArgumentError{
			Name:  "index",
			Value: i,
			Msg:   fmt.Sprintf("must be in [0, %d)", MaxDevNum),
		}
	}
	return nil
}

// CheckSerial checks the length of a serial number.
func CheckSerial(serial string) error {
	if len(serial) > SerialLen {
		return &ArgumentError{
			Name:  "serial",
			Value: serial,
			Msg:   fmt.Sprintf("must be at most %d characters long", SerialLen),
		}
	}
	return nil
}

// CheckAcqTime checks an acquisition time is in [AcqTMin, AcqTMax].
func CheckAcqTime(ms int) error {
	if ms < AcqTMin || ms > AcqTMax {
		return &ArgumentError{
			Name:  "acquisition time",
			Value: ms,
			Msg:   fmt.Sprintf("must be in [%d, %d] ms", AcqTMin, AcqTMax),
		}
	}
	return nil
}

// CheckReadBuffer checks buf can hold a full FIFO read.
func CheckReadBuffer(buf []uint32) error {
	if len(buf) < TTReadMax {
		return &ArgumentError{
			Name:  "buffer length",
			Value: len(buf),
			Msg:   fmt.Sprintf("must be at least TTReadMax=%d", TTReadMax),
		}
	}
	return nil
}

// Flagger is implemented by devices reporting their status flags.
type Flagger interface {
	Flags() (Flag, error)
}

// Rater is implemented by devices reporting their input rates.
type Rater interface {
	NumChannels() (int, error)
	SyncRate() (int, error)
	CountRate(ch int) (int, error)
}
