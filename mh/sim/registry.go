// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sim

import (
	"strconv"
	"sync"

	"golang.org/x/xerrors"

	"github.com/go-lpc/harp/mh"
)

// Registry tracks the simulated devices currently opened.
//
// Each registry has mh.MaxDevNum slots; slot i holds a device with the
// serial number 1044272+i.
type Registry struct {
	mu   sync.Mutex
	devs [mh.MaxDevNum]*Device
	opts []Option
}

// NewRegistry creates a registry whose devices are configured with opts.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{opts: opts}
}

// Serial returns the serial number of the i-th slot.
func (reg *Registry) Serial(i int) string {
	return strconv.Itoa(defaultSerial + i)
}

// Open opens the i-th simulated device.
// Options are applied after the ones of the registry.
func (reg *Registry) Open(i int, opts ...Option) (*Device, error) {
	err := mh.CheckIndex(i)
	if err != nil {
		return nil, err
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if reg.devs[i] != nil {
		return nil, &mh.ArgumentError{
			Name:  "index",
			Value: i,
			Msg:   "device already occupied",
		}
	}

	cfg := newConfig()
	for _, opt := range reg.opts {
		opt(&cfg)
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	dev, err := newDevice(reg, i, reg.Serial(i), cfg)
	if err != nil {
		return nil, xerrors.Errorf("sim: could not create device %d: %w", i, err)
	}
	reg.devs[i] = dev
	return dev, nil
}

// OpenBySerial opens the simulated device with the provided serial number.
func (reg *Registry) OpenBySerial(serial string, opts ...Option) (*Device, error) {
	err := mh.CheckSerial(serial)
	if err != nil {
		return nil, err
	}
	for i := 0; i < mh.MaxDevNum; i++ {
		if reg.Serial(i) == serial {
			return reg.Open(i, opts...)
		}
	}
	return nil, mh.ErrNoDevice
}

// Occupied returns the indices of the opened devices.
func (reg *Registry) Occupied() []int {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	var idx []int
	for i, dev := range reg.devs {
		if dev != nil {
			idx = append(idx, i)
		}
	}
	return idx
}

func (reg *Registry) release(dev *Device) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if reg.devs[dev.idx] == dev {
		reg.devs[dev.idx] = nil
	}
}
