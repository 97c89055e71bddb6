// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !mhlib

package mh

// Open opens the i-th MultiHarp device.
func Open(i int) (Device, error) {
	if err := CheckIndex(i); err != nil {
		return nil, err
	}
	return nil, ErrNoLibrary
}

// OpenBySerial opens the MultiHarp device with the provided serial number.
func OpenBySerial(serial string) (Device, error) {
	if err := CheckSerial(serial); err != nil {
		return nil, err
	}
	return nil, ErrNoLibrary
}
