// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

import (
	"sync"
	"time"

	"github.com/go-lpc/harp/mh"
)

// fakeDevice replays a scripted sequence of FIFO reads.
type fakeDevice struct {
	mu sync.Mutex

	reads  [][]uint32    // scripted reads, empty reads once exhausted
	nctc   int           // number of CTC status calls reporting a running measurement, -1 for unbounded
	delay  time.Duration // duration of each FIFO read
	rderr  error         // error returned by the FIFO read following the scripted ones
	ctcerr error
	warn   mh.Warning

	started bool
	stopped bool
	nreads  int
	nwarns  int
}

var _ mh.Device = (*fakeDevice)(nil)

func (dev *fakeDevice) Index() int                      { return 0 }
func (dev *fakeDevice) Serial() string                  { return "fake" }
func (dev *fakeDevice) Init(mh.Mode, mh.RefClock) error { return nil }
func (dev *fakeDevice) Close() error                    { return nil }
func (dev *fakeDevice) StopMeasurement() error          { dev.stopped = true; return nil }
func (dev *fakeDevice) StartMeasurement(ms int) error   { dev.started = true; return mh.CheckAcqTime(ms) }
func (dev *fakeDevice) Warnings() (mh.Warning, error)   { dev.nwarns++; return dev.warn, nil }

func (dev *fakeDevice) CTCStatus() (bool, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if dev.ctcerr != nil {
		return false, dev.ctcerr
	}
	switch {
	case dev.nctc < 0:
		return true, nil
	case dev.nctc == 0:
		return false, nil
	default:
		dev.nctc--
		return true, nil
	}
}

func (dev *fakeDevice) ReadFIFO(buf []uint32) (int, error) {
	err := mh.CheckReadBuffer(buf)
	if err != nil {
		return 0, err
	}
	if dev.delay > 0 {
		time.Sleep(dev.delay)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	if len(dev.reads) == 0 {
		if dev.rderr != nil {
			return 0, dev.rderr
		}
		return 0, nil
	}
	n := copy(buf, dev.reads[0])
	dev.reads = dev.reads[1:]
	dev.nreads++
	return n, nil
}
