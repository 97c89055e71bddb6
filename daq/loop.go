// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

import (
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/go-lpc/harp/mh"
)

// Loop drains the FIFO of a device into a hand-off.
type Loop struct {
	dev  Device
	out  Handoff
	msg  *log.Logger
	warn time.Duration // period of warnings checks
	buf  []uint32
	seq  uint64

	stop atomic.Bool
	err  error // last error, valid once Run has returned

	stats struct {
		reads   atomic.Uint64
		empty   atomic.Uint64
		recs    atomic.Uint64
		batches atomic.Uint64
		rtime   atomic.Int64
		rmax    atomic.Int64
		warns   atomic.Int32
		flags   atomic.Int32
	}
	lastw mh.Warning
}

// LoopStats describes the activity of an acquisition loop.
type LoopStats struct {
	Reads    uint64        // number of FIFO reads
	Empty    uint64        // number of FIFO reads returning no record
	Records  uint64        // number of records read
	Batches  uint64        // number of batches handed over
	ReadTime time.Duration // cumulated time spent in FIFO reads
	MaxRead  time.Duration // longest FIFO read
	Warnings mh.Warning    // union of the device warnings seen
	Flags    mh.Flag       // union of the device flags seen
}

// NewLoop creates an acquisition loop reading from dev and pushing
// batches into out.
func NewLoop(dev Device, out Handoff, opts ...Option) *Loop {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return newLoop(dev, out, cfg)
}

func newLoop(dev Device, out Handoff, cfg config) *Loop {
	return &Loop{
		dev:  dev,
		out:  out,
		msg:  cfg.msg,
		warn: cfg.warnings,
		buf:  make([]uint32, mh.TTReadMax),
	}
}

// Stop requests the loop to stop.
// The loop observes the request before its next FIFO read.
func (l *Loop) Stop() {
	l.stop.Store(true)
}

// Err returns the error that terminated the loop, if any.
func (l *Loop) Err() error {
	return l.err
}

// Run polls the device until its measurement ends, Stop is called or a
// device error occurs. A measurement that ended is drained before Run
// returns. FIFO read errors are not retried.
func (l *Loop) Run() error {
	var (
		last = time.Now()
		done = false
	)

	for !l.stop.Load() {
		ok, err := l.dev.CTCStatus()
		if err != nil {
			l.err = fmt.Errorf("daq: could not read CTC status: %w", err)
			break
		}
		if !ok {
			done = true
			break
		}

		beg := time.Now()
		_, err = l.read()
		if err != nil {
			l.err = err
			break
		}

		if l.warn > 0 && beg.Sub(last) >= l.warn {
			l.check()
			last = beg
		}
	}

	if done {
		err := l.Drain()
		if err != nil {
			l.err = err
		}
	}

	if l.err != nil {
		l.msg.Printf("acquisition terminated: %+v", l.err)
		return l.err
	}
	l.check()
	return nil
}

// Drain reads the FIFO until it is empty.
// Drain must not be called concurrently with Run.
func (l *Loop) Drain() error {
	for {
		n, err := l.read()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
}

func (l *Loop) read() (int, error) {
	beg := time.Now()
	n, err := l.dev.ReadFIFO(l.buf)
	dt := time.Since(beg)
	if err != nil {
		return 0, fmt.Errorf("daq: could not read FIFO: %w", err)
	}
	if n < 0 || n > len(l.buf) {
		return 0, fmt.Errorf("daq: invalid FIFO read count %d", n)
	}

	l.stats.reads.Add(1)
	l.stats.rtime.Add(int64(dt))
	if int64(dt) > l.stats.rmax.Load() {
		l.stats.rmax.Store(int64(dt))
	}

	if verbose {
		l.msg.Printf("loaded %d records in %v", n, dt)
	}

	if n == 0 {
		l.stats.empty.Add(1)
		return 0, nil
	}

	l.out.Put(Batch{Seq: l.seq, Recs: l.buf[:n]})
	l.seq++
	l.stats.recs.Add(uint64(n))
	l.stats.batches.Add(1)
	return n, nil
}

// check surfaces device warnings and flags. Failures are only logged.
func (l *Loop) check() {
	w, err := l.dev.Warnings()
	if err != nil {
		l.msg.Printf("could not read device warnings: %+v", err)
		return
	}
	if w != 0 && w != l.lastw {
		l.msg.Printf("device warnings: %v (0x%x)", w, int32(w))
	}
	l.lastw = w
	l.stats.warns.Store(l.stats.warns.Load() | int32(w))

	dev, ok := l.dev.(mh.Flagger)
	if !ok {
		return
	}
	flags, err := dev.Flags()
	if err != nil {
		l.msg.Printf("could not read device flags: %+v", err)
		return
	}
	old := mh.Flag(l.stats.flags.Load())
	if flags&mh.FlagFIFOFull != 0 && old&mh.FlagFIFOFull == 0 {
		l.msg.Printf("device FIFO full: records were lost")
	}
	l.stats.flags.Store(int32(old | flags))
}

// Stats returns a snapshot of the loop statistics.
// Stats is safe to call concurrently with Run.
func (l *Loop) Stats() LoopStats {
	return LoopStats{
		Reads:    l.stats.reads.Load(),
		Empty:    l.stats.empty.Load(),
		Records:  l.stats.recs.Load(),
		Batches:  l.stats.batches.Load(),
		ReadTime: time.Duration(l.stats.rtime.Load()),
		MaxRead:  time.Duration(l.stats.rmax.Load()),
		Warnings: mh.Warning(l.stats.warns.Load()),
		Flags:    mh.Flag(l.stats.flags.Load()),
	}
}
