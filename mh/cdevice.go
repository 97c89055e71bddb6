// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build mhlib

package mh

//#cgo CFLAGS: -g -Wall -I/opt/mhlib
//#cgo LDFLAGS: -L/opt/mhlib -lmhlib
//
//#include <stdlib.h>
//#include "mhdefin.h"
//#include "mhlib.h"
//#include "errorcodes.h"
import "C"

import (
	"fmt"
	"unsafe"
)

type cdevice struct {
	idx    int
	serial string
	mode   Mode
	init   bool
}

var (
	_ Device  = (*cdevice)(nil)
	_ Flagger = (*cdevice)(nil)
	_ Rater   = (*cdevice)(nil)
)

// Open opens the i-th MultiHarp device.
func Open(i int) (Device, error) {
	if err := CheckIndex(i); err != nil {
		return nil, err
	}

	buf := (*C.char)(C.calloc(C.size_t(SerialLen+1), 1))
	defer C.free(unsafe.Pointer(buf))

	rc := C.MH_OpenDevice(C.int(i), buf)
	if err := Code(int32(rc)); err != nil {
		return nil, fmt.Errorf("mh: could not open device %d: %w", i, err)
	}

	return &cdevice{idx: i, serial: C.GoString(buf)}, nil
}

// OpenBySerial opens the MultiHarp device with the provided serial number.
func OpenBySerial(serial string) (Device, error) {
	if err := CheckSerial(serial); err != nil {
		return nil, err
	}

	for i := 0; i < MaxDevNum; i++ {
		dev, err := Open(i)
		if err != nil {
			continue
		}
		if dev.Serial() == serial {
			return dev, nil
		}
		_ = dev.Close()
	}
	return nil, ErrNoDevice
}

func (dev *cdevice) Index() int     { return dev.idx }
func (dev *cdevice) Serial() string { return dev.serial }

func (dev *cdevice) Close() error {
	if dev.idx < 0 {
		return nil
	}
	rc := C.MH_CloseDevice(C.int(dev.idx))
	dev.idx = -1
	if err := Code(int32(rc)); err != nil {
		return fmt.Errorf("mh: could not close device %s: %w", dev.serial, err)
	}
	return nil
}

func (dev *cdevice) Init(mode Mode, ref RefClock) error {
	rc := C.MH_Initialize(C.int(dev.idx), C.int(mode), C.int(ref))
	if err := Code(int32(rc)); err != nil {
		return fmt.Errorf("mh: could not initialize device %s (mode=%v, ref=%d): %w",
			dev.serial, mode, ref, err,
		)
	}
	dev.mode = mode
	dev.init = true
	return nil
}

func (dev *cdevice) StartMeasurement(ms int) error {
	if err := CheckAcqTime(ms); err != nil {
		return err
	}
	if !dev.init {
		return ErrNotInitialized
	}
	rc := C.MH_StartMeas(C.int(dev.idx), C.int(ms))
	if err := Code(int32(rc)); err != nil {
		return fmt.Errorf("mh: could not start measurement: %w", err)
	}
	return nil
}

func (dev *cdevice) StopMeasurement() error {
	rc := C.MH_StopMeas(C.int(dev.idx))
	if err := Code(int32(rc)); err != nil {
		return fmt.Errorf("mh: could not stop measurement: %w", err)
	}
	return nil
}

func (dev *cdevice) CTCStatus() (bool, error) {
	var ctc C.int
	rc := C.MH_CTCStatus(C.int(dev.idx), &ctc)
	if err := Code(int32(rc)); err != nil {
		return false, fmt.Errorf("mh: could not read CTC status: %w", err)
	}
	// the library reports 0 while the acquisition time is running.
	return ctc == 0, nil
}

func (dev *cdevice) ReadFIFO(buf []uint32) (int, error) {
	if err := CheckReadBuffer(buf); err != nil {
		return 0, err
	}
	var n C.int
	rc := C.MH_ReadFiFo(C.int(dev.idx), (*C.uint)(unsafe.Pointer(&buf[0])), &n)
	if err := Code(int32(rc)); err != nil {
		return 0, fmt.Errorf("mh: could not read FIFO: %w", err)
	}
	return int(n), nil
}

func (dev *cdevice) Warnings() (Warning, error) {
	// warnings are only valid after the rates have been refreshed.
	var (
		sync  C.int
		rates [64]C.int
	)
	rc := C.MH_GetAllCountRates(C.int(dev.idx), &sync, &rates[0])
	if err := Code(int32(rc)); err != nil {
		return 0, fmt.Errorf("mh: could not read count rates: %w", err)
	}

	var w C.int
	rc = C.MH_GetWarnings(C.int(dev.idx), &w)
	if err := Code(int32(rc)); err != nil {
		return 0, fmt.Errorf("mh: could not read warnings: %w", err)
	}
	return Warning(w), nil
}

func (dev *cdevice) Flags() (Flag, error) {
	var flags C.int
	rc := C.MH_GetFlags(C.int(dev.idx), &flags)
	if err := Code(int32(rc)); err != nil {
		return 0, fmt.Errorf("mh: could not read flags: %w", err)
	}
	return Flag(flags), nil
}

func (dev *cdevice) NumChannels() (int, error) {
	var n C.int
	rc := C.MH_GetNumOfInputChannels(C.int(dev.idx), &n)
	if err := Code(int32(rc)); err != nil {
		return 0, fmt.Errorf("mh: could not read number of input channels: %w", err)
	}
	return int(n), nil
}

func (dev *cdevice) SyncRate() (int, error) {
	var v C.int
	rc := C.MH_GetSyncRate(C.int(dev.idx), &v)
	if err := Code(int32(rc)); err != nil {
		return 0, fmt.Errorf("mh: could not read sync rate: %w", err)
	}
	return int(v), nil
}

func (dev *cdevice) CountRate(ch int) (int, error) {
	var v C.int
	rc := C.MH_GetCountRate(C.int(dev.idx), C.int(ch), &v)
	if err := Code(int32(rc)); err != nil {
		return 0, fmt.Errorf("mh: could not read count rate of channel %d: %w", ch, err)
	}
	return int(v), nil
}
