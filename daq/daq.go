// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package daq drains the FIFO of a MultiHarp device and hands the acquired
// records over to consumer goroutines.
//
// An acquisition session is made of:
//   - one acquisition goroutine, locked to its OS thread, polling the device
//     and pushing each non-empty FIFO read as a Batch into a Handoff,
//   - one or more consumers, draining the Handoff and aggregating statistics.
//
// The acquisition goroutine never waits on consumers.
package daq // import "github.com/go-lpc/harp/daq"

import (
	"github.com/go-lpc/harp/mh"
)

const (
	verbose = false
)

// Device is the part of a MultiHarp device used by the acquisition loop.
type Device interface {
	CTCStatus() (bool, error)
	ReadFIFO(buf []uint32) (int, error)
	Warnings() (mh.Warning, error)
}

var _ Device = (mh.Device)(nil)

// Batch is the content of a single FIFO read.
type Batch struct {
	Seq  uint64   // index of the batch within its session
	Recs []uint32 // records, in acquisition order
}

// Len returns the number of records in the batch.
func (b Batch) Len() int { return len(b.Recs) }
