// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mh

import (
	"errors"
	"fmt"
)

var (
	ErrNoDevice       = errors.New("mh: no MultiHarp device available")
	ErrNoLibrary      = errors.New("mh: binary built without mhlib support")
	ErrNotImplemented = errors.New("mh: functionality not implemented")

	ErrFeatureNotAvailable = errors.New("mh: feature not available")
)

// Error is an error code returned by the device library.
type Error int32

const (
	ErrDeviceOpenFail  Error = -1
	ErrDeviceBusy      Error = -2
	ErrDeviceCloseFail Error = -6
	ErrDeviceResetFail Error = -7
	ErrDeviceNotOpen   Error = -10
	ErrDeviceLocked    Error = -11
	ErrInstanceRunning Error = -16
	ErrInvalidArgument Error = -17
	ErrInvalidMode     Error = -18
	ErrInvalidOption   Error = -19
	ErrInvalidMemory   Error = -20
	ErrInvalidRData    Error = -21
	ErrNotInitialized  Error = -22
	ErrNotCalibrated   Error = -23
	ErrDMAFail         Error = -24
	ErrFIFOResetFail   Error = -28
	ErrThreadStateFail Error = -29
	ErrThreadLockFail  Error = -30
	ErrUSBBulkReadFail Error = -37
	ErrUSBResetFail    Error = -38
	ErrInvalid         Error = -1000
)

var errText = map[Error]string{
	-1:    "device open failed",
	-2:    "device busy",
	-3:    "device event setup failed",
	-4:    "device callback setup failed",
	-5:    "device bar mapping failed",
	-6:    "device close failed",
	-7:    "device reset failed",
	-8:    "could not get device version",
	-9:    "device version mismatch",
	-10:   "device not open",
	-11:   "device locked",
	-12:   "device driver version mismatch",
	-16:   "instance running",
	-17:   "invalid argument",
	-18:   "invalid mode",
	-19:   "invalid option",
	-20:   "invalid memory",
	-21:   "invalid readout data",
	-22:   "not initialized",
	-23:   "not calibrated",
	-24:   "DMA failure",
	-25:   "XT device failure",
	-26:   "FPGA configuration failed",
	-27:   "interface configuration failed",
	-28:   "FIFO reset failed",
	-29:   "thread state failure",
	-30:   "thread lock failure",
	-32:   "could not get USB driver version",
	-33:   "USB driver version mismatch",
	-34:   "could not get USB interface info",
	-35:   "USB high-speed failure",
	-36:   "USB VCMD failure",
	-37:   "USB bulk read failed",
	-38:   "USB reset failed",
	-40:   "lane-up timeout",
	-41:   "done-all timeout",
	-42:   "MB ack timeout",
	-43:   "M-active timeout",
	-44:   "memory clear failed",
	-45:   "memory test failed",
	-46:   "calibration failed",
	-47:   "reference selection failed",
	-48:   "status failure",
	-49:   "module number failure",
	-50:   "digital mux failure",
	-51:   "module mux failure",
	-52:   "module firmware/PCB mismatch",
	-53:   "module firmware version mismatch",
	-54:   "module property mismatch",
	-55:   "invalid magic",
	-56:   "invalid length",
	-57:   "rate failure",
	-58:   "module firmware version too old",
	-59:   "module firmware version too new",
	-60:   "MB ack failure",
	-1000: "invalid error code",
}

func (e Error) Error() string {
	if e == 0 {
		return "mh: no error"
	}
	txt, ok := errText[e]
	if !ok {
		if e <= -64 && e >= -78 {
			return fmt.Sprintf("mh: EEPROM failure F%02d (code=%d)", -63-int32(e), int32(e))
		}
		txt = errText[ErrInvalid]
	}
	return fmt.Sprintf("mh: %s (code=%d)", txt, int32(e))
}

// Code converts a library return code into an error.
// Code returns nil for non-negative return codes.
func Code(rc int32) error {
	if rc >= 0 {
		return nil
	}
	return Error(rc)
}

// ArgumentError is returned when a caller-provided parameter is
// outside its valid range. No device interaction has happened when an
// ArgumentError is returned.
type ArgumentError struct {
	Name  string
	Value interface{}
	Msg   string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("mh: invalid argument %s=%v: %s", e.Name, e.Value, e.Msg)
}

// Is reports whether target is ErrInvalidArgument.
func (e *ArgumentError) Is(target error) bool {
	return target == ErrInvalidArgument
}
